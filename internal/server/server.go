package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"ratewatch/internal/history"
	"ratewatch/internal/metrics"
	"ratewatch/internal/models"
	"ratewatch/internal/monitor"
	"ratewatch/internal/report"
	"ratewatch/internal/storage"
)

const (
	defaultHistoryLimit   = 200
	defaultTimelineWindow = 24 * time.Hour
)

// Server exposes the recorded history over HTTP: a rendered dashboard, JSON
// APIs, and a websocket overview feed.
type Server struct {
	httpServer   *http.Server
	store        storage.Store
	connectivity monitor.ConnectivitySource
	recentRuns   int
	historyLimit int
}

// New creates a configured HTTP server. connectivity may be nil.
func New(addr string, store storage.Store, connectivity monitor.ConnectivitySource, recentRuns int) *Server {
	mux := http.NewServeMux()
	s := &Server{
		httpServer:   &http.Server{Addr: addr, Handler: mux},
		store:        store,
		connectivity: connectivity,
		recentRuns:   recentRuns,
		historyLimit: defaultHistoryLimit,
	}
	s.registerRoutes(mux)
	return s
}

// Run blocks and serves HTTP traffic.
func (s *Server) Run() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts the server down.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/", s.handleDashboard)
	mux.HandleFunc("/api/status", s.handleLatest)
	mux.HandleFunc("/api/history", s.handleHistory)
	mux.HandleFunc("/api/uptime", s.handleUptime)
	mux.HandleFunc("/api/timelines", s.handleTimelines)
	mux.HandleFunc("/api/connectivity", s.handleConnectivity)
	mux.HandleFunc("/ws/overview", s.handleOverviewWS)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	entries := s.store.History()
	var latest *models.RunEntry
	if entry, ok := s.store.Latest(); ok {
		latest = &entry
	}
	rep := report.Build(latest, entries, s.recentRuns)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := report.RenderHTML(w, rep, entries, time.Now()); err != nil {
		log.Printf("render dashboard: %v", err)
	}
}

func (s *Server) handleLatest(w http.ResponseWriter, _ *http.Request) {
	entry, ok := s.store.Latest()
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{
			"timestamp": nil,
			"checks":    []models.CheckResult{},
		})
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, s.historyLimit)
	writeJSON(w, http.StatusOK, s.store.HistoryN(limit))
}

func (s *Server) handleUptime(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, s.historyLimit)
	entries := s.store.HistoryN(limit)
	writeJSON(w, http.StatusOK, map[string]any{
		"models":             metrics.ComputeModelUptime(entries),
		"counts_by_category": metrics.CountByCategory(entries),
		"success_percent":    metrics.SuccessRate(entries),
		"generated_at":       time.Now().UTC(),
	})
}

func (s *Server) handleTimelines(w http.ResponseWriter, r *http.Request) {
	end := time.Now().UTC()
	start := end.Add(-parseWindow(r))
	points := parsePoints(r)
	entries := s.store.History()
	writeJSON(w, http.StatusOK, map[string]any{
		"range_start": start,
		"range_end":   end,
		"timelines":   history.BuildModelTimelines(entries, start, end, points),
	})
}

func (s *Server) handleConnectivity(w http.ResponseWriter, _ *http.Request) {
	if s.connectivity == nil {
		writeJSON(w, http.StatusOK, map[string]any{"enabled": false})
		return
	}
	latest, ok := s.connectivity.Latest()
	resp := map[string]any{
		"enabled": true,
		"history": s.connectivity.History(),
	}
	if ok {
		resp["latest"] = latest
	}
	writeJSON(w, http.StatusOK, resp)
}

func parseLimit(r *http.Request, fallback int) int {
	if fallback <= 0 {
		return fallback
	}
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	if value > fallback {
		return fallback
	}
	return value
}

func parseWindow(r *http.Request) time.Duration {
	raw := r.URL.Query().Get("hours")
	if raw == "" {
		return defaultTimelineWindow
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return defaultTimelineWindow
	}
	return time.Duration(value) * time.Hour
}

func parsePoints(r *http.Request) int {
	raw := r.URL.Query().Get("points")
	if raw == "" {
		return history.DefaultTimelinePoints
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 || value > 400 {
		return history.DefaultTimelinePoints
	}
	return value
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(payload)
}
