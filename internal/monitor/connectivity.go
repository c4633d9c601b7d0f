package monitor

import (
	"net"
	"strings"
	"sync"
	"time"

	"ratewatch/internal/config"
	"ratewatch/internal/models"
)

const connectivityHistoryCap = 2048

// ConnectivitySource exposes connectivity probe results.
type ConnectivitySource interface {
	Latest() (models.ConnectivityStatus, bool)
	History() []models.ConnectivityStatus
}

// ConnectivityMonitor periodically dials a known endpoint so the dashboard
// can tell a provider outage apart from this machine being offline.
type ConnectivityMonitor struct {
	cfg      config.Connectivity
	interval time.Duration
	timeout  time.Duration

	mu      sync.RWMutex
	latest  *models.ConnectivityStatus
	history []models.ConnectivityStatus

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewConnectivityMonitor configures a new connectivity monitor.
func NewConnectivityMonitor(cfg config.Connectivity) *ConnectivityMonitor {
	interval := time.Duration(cfg.IntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 60 * time.Second
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 4 * time.Second
	}

	return &ConnectivityMonitor{
		cfg:      cfg,
		interval: interval,
		timeout:  timeout,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start launches the probing loop. If disabled, the monitor exits immediately.
func (m *ConnectivityMonitor) Start() {
	if !m.cfg.Enabled {
		close(m.doneCh)
		return
	}
	go m.run()
}

// Stop requests the probing loop to terminate.
func (m *ConnectivityMonitor) Stop() {
	select {
	case <-m.doneCh:
		return
	default:
	}
	close(m.stopCh)
	<-m.doneCh
}

// Latest returns the most recent connectivity sample.
func (m *ConnectivityMonitor) Latest() (models.ConnectivityStatus, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.latest == nil {
		return models.ConnectivityStatus{}, false
	}
	return *m.latest, true
}

// History returns a copy of the retained connectivity samples.
func (m *ConnectivityMonitor) History() []models.ConnectivityStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.history) == 0 {
		return nil
	}
	out := make([]models.ConnectivityStatus, len(m.history))
	copy(out, m.history)
	return out
}

func (m *ConnectivityMonitor) run() {
	defer close(m.doneCh)

	m.probe()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.probe()
		case <-m.stopCh:
			return
		}
	}
}

func (m *ConnectivityMonitor) probe() {
	target := strings.TrimSpace(m.cfg.Target)
	if target == "" {
		target = "1.1.1.1"
	}

	address := target
	if !strings.Contains(address, ":") {
		address = net.JoinHostPort(address, "53")
	}

	started := time.Now()
	conn, err := net.DialTimeout("tcp", address, m.timeout)

	status := models.ConnectivityStatus{
		Target:    target,
		CheckedAt: time.Now().UTC(),
	}
	if err != nil {
		status.Error = err.Error()
	} else {
		status.OK = true
		status.LatencyMS = time.Since(started).Milliseconds()
		_ = conn.Close()
	}

	m.mu.Lock()
	m.latest = &status
	m.history = append(m.history, status)
	if len(m.history) > connectivityHistoryCap {
		m.history = m.history[len(m.history)-connectivityHistoryCap:]
	}
	m.mu.Unlock()
}
