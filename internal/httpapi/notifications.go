package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/notifyhub/core/internal/ids"
	"github.com/notifyhub/core/internal/model"
)

// notificationRequest is the common body shape across every send endpoint
// (spec §6): either an inline event_type+payload, or a template_id to
// render with variables.
type notificationRequest struct {
	TargetUserID  string          `json:"target_user_id"`
	TargetUserIDs []string        `json:"target_user_ids"`
	Channel       string          `json:"channel"`
	Channels      []string        `json:"channels"`

	EventType     string                 `json:"event_type"`
	Payload       json.RawMessage        `json:"payload"`
	TemplateID    string                 `json:"template_id"`
	Variables     map[string]interface{} `json:"variables"`

	Priority      string   `json:"priority"`
	TTL           *int64   `json:"ttl"`
	CorrelationID string   `json:"correlation_id"`
	Audience      *model.Audience `json:"audience"`
}

// buildEvent resolves the inline-vs-template content choice and assembles
// a NotificationEvent, returning an HTTP status/message pair on failure
// (422 per spec §6 for template substitution failure).
func (s *Server) buildEvent(req notificationRequest) (model.NotificationEvent, int, string) {
	payload := req.Payload
	eventType := req.EventType

	if req.TemplateID != "" {
		tpl, ok := s.templates.Get(req.TemplateID)
		if !ok {
			return model.NotificationEvent{}, http.StatusNotFound, "template not found"
		}
		rendered, err := s.templates.Render(req.TemplateID, req.Variables)
		if err != nil {
			return model.NotificationEvent{}, http.StatusUnprocessableEntity, "template substitution failed: " + err.Error()
		}
		payload = rendered
		if eventType == "" {
			eventType = tpl.EventType
		}
	}

	priority := model.PriorityNormal
	if req.Priority != "" {
		priority = model.Priority(req.Priority)
	}

	event := model.NotificationEvent{
		ID:         ids.NewNotificationID(),
		OccurredAt: nowUnix(),
		EventType:  eventType,
		Payload:    payload,
		Metadata: model.EventMetadata{
			Source:        "http",
			Priority:      priority,
			TTLSeconds:    req.TTL,
			Audience:      req.Audience,
			CorrelationID: req.CorrelationID,
		},
	}
	return event, http.StatusOK, ""
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	var req notificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TargetUserID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "target_user_id is required")
		return
	}
	event, status, msg := s.buildEvent(req)
	if status != http.StatusOK {
		writeError(w, status, "invalid_request", msg)
		return
	}
	result := s.dispatcher.SendToUser(r.Context(), model.UserId(req.TargetUserID), event)
	writeJSON(w, http.StatusOK, toResponse(result))
}

func (s *Server) handleSendToUsers(w http.ResponseWriter, r *http.Request) {
	var req notificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.TargetUserIDs) == 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "target_user_ids is required")
		return
	}
	event, status, msg := s.buildEvent(req)
	if status != http.StatusOK {
		writeError(w, status, "invalid_request", msg)
		return
	}
	userIDs := make([]model.UserId, len(req.TargetUserIDs))
	for i, u := range req.TargetUserIDs {
		userIDs[i] = model.UserId(u)
	}
	result := s.dispatcher.SendToUsers(r.Context(), userIDs, event)
	writeJSON(w, http.StatusOK, toResponse(result))
}

func (s *Server) handleBroadcast(w http.ResponseWriter, r *http.Request) {
	var req notificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed body")
		return
	}
	event, status, msg := s.buildEvent(req)
	if status != http.StatusOK {
		writeError(w, status, "invalid_request", msg)
		return
	}
	result := s.dispatcher.Broadcast(r.Context(), event)
	writeJSON(w, http.StatusOK, toResponse(result))
}

func (s *Server) handleChannel(w http.ResponseWriter, r *http.Request) {
	var req notificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Channel == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "channel is required")
		return
	}
	event, status, msg := s.buildEvent(req)
	if status != http.StatusOK {
		writeError(w, status, "invalid_request", msg)
		return
	}
	result := s.dispatcher.SendToChannel(r.Context(), model.Channel(req.Channel), event)
	writeJSON(w, http.StatusOK, toResponse(result))
}

func (s *Server) handleChannels(w http.ResponseWriter, r *http.Request) {
	var req notificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Channels) == 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "channels is required")
		return
	}
	event, status, msg := s.buildEvent(req)
	if status != http.StatusOK {
		writeError(w, status, "invalid_request", msg)
		return
	}
	channels := make([]model.Channel, len(req.Channels))
	for i, c := range req.Channels {
		channels[i] = model.Channel(c)
	}
	result := s.dispatcher.SendToChannels(r.Context(), channels, event)
	writeJSON(w, http.StatusOK, toResponse(result))
}
