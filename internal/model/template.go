package model

import "encoding/json"

// Template is an in-memory notification template (spec §3, §4.11).
type Template struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	EventType       string          `json:"event_type"`
	PayloadTemplate json.RawMessage `json:"payload_template"`
	DefaultPriority Priority        `json:"default_priority"`
	DefaultTTL      *int64          `json:"default_ttl,omitempty"`
	Description     string          `json:"description,omitempty"`
	CreatedAt       int64           `json:"created_at"`
	UpdatedAt       int64           `json:"updated_at"`
}
