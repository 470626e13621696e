package web

import (
	"context"
	"net/http"
	"time"

	"github.com/JonMunkholm/salesingest/internal/core"
)

const (
	defaultIngestionLimit = 50
	maxIngestionLimit     = 500
	healthTimeout         = 2 * time.Second
)

// BannerResponse describes the service at the root path.
type BannerResponse struct {
	Service     string   `json:"service"`
	Status      string   `json:"status"`
	RecordTypes []string `json:"record_types"`
	Endpoints   []string `json:"endpoints"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Uptime   string `json:"uptime"`
	Code     string `json:"code,omitempty"`
}

// handleBanner lists what the service accepts.
func (s *Server) handleBanner(w http.ResponseWriter, r *http.Request) {
	types := make([]string, 0, len(core.RecordTypes))
	for _, rt := range core.RecordTypes {
		types = append(types, string(rt))
	}

	endpoints := []string{
		"POST /api/uploads",
		"POST /api/uploads/all-sheets",
		"GET /api/ingestions",
		"GET /health",
	}
	if s.cfg.Metrics.Enabled && s.metrics != nil {
		endpoints = append(endpoints, "GET "+s.cfg.Metrics.Path)
	}

	writeJSON(w, http.StatusOK, BannerResponse{
		Service:     "salesingest",
		Status:      "ok",
		RecordTypes: types,
		Endpoints:   endpoints,
	})
}

// handleHealth reports 200 when the store answers a ping, 503 otherwise.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	resp := HealthResponse{
		Status:   "ok",
		Database: "ok",
		Uptime:   time.Since(s.started).Round(time.Second).String(),
	}
	status := http.StatusOK

	if err := s.backend.Ping(ctx); err != nil {
		msg := core.MapError(err)
		resp.Status = "unavailable"
		resp.Database = msg.Message
		resp.Code = msg.Code
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// handleListIngestions returns the most recent ingestion log entries.
// Query: limit (default 50, max 500).
func (s *Server) handleListIngestions(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r, "limit", defaultIngestionLimit)
	if limit > maxIngestionLimit {
		limit = maxIngestionLimit
	}

	entries, err := s.backend.RecentLogEntries(r.Context(), limit)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if entries == nil {
		entries = []core.LogEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}
