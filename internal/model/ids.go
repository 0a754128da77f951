// Package model defines the wire and in-memory data types shared across
// the notification core: identifiers, claims, messages, events, and
// cluster records (spec §3).
package model

// ConnectionId uniquely identifies one live client connection for the
// lifetime of the process. NotificationId uniquely identifies one
// dispatched notification. Both are 128-bit random values minted by
// internal/ids.
type ConnectionId string

// NotificationId identifies one notification across its dispatch, queue,
// and ack lifecycle.
type NotificationId string

// UserId, TenantId, ServerId and Channel are opaque non-empty strings.
type (
	UserId   string
	TenantId string
	ServerId string
	Channel  string
)

// DefaultTenant is used when multi-tenancy is disabled or a claim carries
// no tenant_id.
const DefaultTenant TenantId = "default"
