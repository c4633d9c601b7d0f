package server

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"ratewatch/internal/metrics"
	"ratewatch/internal/models"
)

const (
	overviewPushInterval = 60 * time.Second
	overviewWriteTimeout = 5 * time.Second
)

var overviewUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		host := strings.ToLower(strings.TrimSpace(r.Host))
		originHost := strings.ToLower(strings.TrimSpace(u.Host))
		return host == originHost
	},
}

type overviewSnapshot struct {
	GeneratedAt  time.Time                  `json:"generated_at"`
	Latest       *models.RunEntry           `json:"latest"`
	Models       []metrics.ModelUptime      `json:"models"`
	Counts       map[models.Category]int    `json:"counts_by_category"`
	Connectivity *models.ConnectivityStatus `json:"connectivity,omitempty"`
}

func (s *Server) handleOverviewWS(w http.ResponseWriter, r *http.Request) {
	conn, err := overviewUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.serveOverviewConnection(conn)
}

func (s *Server) serveOverviewConnection(conn *websocket.Conn) {
	defer conn.Close()

	if err := writeOverviewPayload(conn, s.buildOverviewSnapshot()); err != nil {
		return
	}

	ticker := time.NewTicker(overviewPushInterval)
	defer ticker.Stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ticker.C:
			if err := writeOverviewPayload(conn, s.buildOverviewSnapshot()); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func (s *Server) buildOverviewSnapshot() overviewSnapshot {
	entries := s.store.HistoryN(s.historyLimit)
	snapshot := overviewSnapshot{
		GeneratedAt: time.Now().UTC(),
		Models:      metrics.ComputeModelUptime(entries),
		Counts:      metrics.CountByCategory(entries),
	}
	if entry, ok := s.store.Latest(); ok {
		snapshot.Latest = &entry
	}
	if s.connectivity != nil {
		if latest, ok := s.connectivity.Latest(); ok {
			snapshot.Connectivity = &latest
		}
	}
	return snapshot
}

func writeOverviewPayload(conn *websocket.Conn, payload overviewSnapshot) error {
	_ = conn.SetWriteDeadline(time.Now().Add(overviewWriteTimeout))
	return conn.WriteJSON(payload)
}
