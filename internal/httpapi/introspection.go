package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/notifyhub/core/internal/model"
)

// healthResponse is a minimal liveness view; degraded/unhealthy judgment
// based on cluster/backend reachability is left to the caller's own polling
// cadence since the core exposes stats rather than a verdict.
type healthResponse struct {
	Status    string `json:"status"`
	Timestamp int64  `json:"timestamp"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Timestamp: nowUnix()})
}

type statsResponse struct {
	Registry registryStats `json:"registry"`
	System   systemStats   `json:"system"`
}

type registryStats struct {
	TotalConnections int `json:"total_connections"`
	TotalUsers       int `json:"total_users"`
	TotalTenants     int `json:"total_tenants"`
	TotalChannels    int `json:"total_channels"`
}

type systemStats struct {
	CPUPercent float64     `json:"cpu_percent"`
	Memory     memoryStats `json:"memory"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	rs := s.registry.Stats()
	writeJSON(w, http.StatusOK, statsResponse{
		Registry: registryStats{
			TotalConnections: rs.TotalConnections,
			TotalUsers:       rs.TotalUsers,
			TotalTenants:     rs.TotalTenants,
			TotalChannels:    rs.TotalChannels,
		},
		System: systemStats{
			CPUPercent: s.system.cpuPercent(),
			Memory:     readMemoryStats(),
		},
	})
}

func (s *Server) handleTemplateCreate(w http.ResponseWriter, r *http.Request) {
	var tpl model.Template
	if err := json.NewDecoder(r.Body).Decode(&tpl); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed template body")
		return
	}
	if err := s.templates.Create(tpl); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_template", err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, tpl)
}

func (s *Server) handleTemplateGet(w http.ResponseWriter, r *http.Request) {
	tpl, ok := s.templates.Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "template not found")
		return
	}
	writeJSON(w, http.StatusOK, tpl)
}

func (s *Server) handleTemplateDelete(w http.ResponseWriter, r *http.Request) {
	if !s.templates.Delete(r.PathValue("id")) {
		writeError(w, http.StatusNotFound, "not_found", "template not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTemplateList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.templates.List())
}

func (s *Server) handleClusterStatus(w http.ResponseWriter, r *http.Request) {
	connCount, err := s.cluster.ClusterConnectionCount(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "cluster_unavailable", err.Error())
		return
	}
	userCount, err := s.cluster.ClusterUserCount(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "cluster_unavailable", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"enabled":           s.cluster.IsEnabled(),
		"backend":           s.cluster.BackendType(),
		"server_id":         s.cluster.ServerID(),
		"connection_count":  connCount,
		"user_count":        userCount,
	})
}

func (s *Server) handleClusterUser(w http.ResponseWriter, r *http.Request) {
	userID := model.UserId(r.PathValue("user_id"))
	sessions, err := s.cluster.GetUserSessions(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "cluster_unavailable", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (s *Server) handleTenantList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.ListTenants())
}

func (s *Server) handleTenantGet(w http.ResponseWriter, r *http.Request) {
	tenantID := model.TenantId(r.PathValue("tenant_id"))
	writeJSON(w, http.StatusOK, map[string]any{
		"tenant_id":      tenantID,
		"connections":    s.registry.TenantStats(tenantID),
		"channels":       s.registry.ListTenantChannels(tenantID),
		"limits":         s.tenants.LimitsFor(tenantID),
	})
}
