package model

// SessionInfo is the distributed directory record for one live connection
// (spec §3, §4.6).
type SessionInfo struct {
	ConnectionID ConnectionId `json:"connection_id"`
	UserID       UserId       `json:"user_id"`
	TenantID     TenantId     `json:"tenant_id"`
	ServerID     ServerId     `json:"server_id"`
	ConnectedAt  int64        `json:"connected_at"`
	Channels     []Channel    `json:"channels"`
}

// RoutedMessage is a pre-serialized ServerMessage plus routing metadata,
// exchanged on the cluster routing bus (spec §3, §4.6, §4.7).
type RoutedMessage struct {
	UserID       UserId       `json:"user_id"`
	TenantID     TenantId     `json:"tenant_id"`
	ConnectionID ConnectionId `json:"connection_id,omitempty"`
	Payload      string       `json:"payload"`
	FromServer   ServerId     `json:"from_server"`
	ToServer     *ServerId    `json:"to_server,omitempty"`
}

// PendingAck is a record that a notification was sent to a specific
// connection and is awaiting the client's Ack frame (spec §3, §4.5).
type PendingAck struct {
	NotificationID NotificationId `json:"notification_id"`
	UserID         UserId         `json:"user_id"`
	ConnectionID   ConnectionId   `json:"connection_id"`
	SentAt         int64          `json:"sent_at"` // unix seconds
}

// StoredMessage is one offline-queue item (spec §3, §4.4).
type StoredMessage struct {
	ID       NotificationId    `json:"id"`
	Event    NotificationEvent `json:"event"`
	QueuedAt int64             `json:"queued_at"` // unix seconds
	Attempts int               `json:"attempts"`
	StreamID string            `json:"stream_id,omitempty"`
}
