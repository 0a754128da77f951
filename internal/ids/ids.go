// Package ids mints the 128-bit random identifiers used throughout the
// core (spec §3): connection ids, notification ids, and the per-process
// server id.
package ids

import (
	"os"

	"github.com/google/uuid"

	"github.com/notifyhub/core/internal/model"
)

// NewConnectionID mints a fresh, process-unique connection identifier.
func NewConnectionID() model.ConnectionId {
	return model.ConnectionId(uuid.NewString())
}

// NewNotificationID mints a fresh notification identifier.
func NewNotificationID() model.NotificationId {
	return model.NotificationId(uuid.NewString())
}

// ServerID resolves the process's server id: the configured value if
// supplied, otherwise a fresh id generated per process start (spec §3).
func ServerID(configured string) model.ServerId {
	if configured != "" {
		return model.ServerId(configured)
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return model.ServerId(host + "-" + uuid.NewString()[:8])
	}
	return model.ServerId(uuid.NewString())
}
