package monitor

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/google/uuid"

	"ratewatch/internal/classify"
	"ratewatch/internal/models"
	"ratewatch/internal/probe"
	"ratewatch/internal/storage"
)

// listingTarget is the pseudo-model recorded when model discovery itself
// fails: a network problem is a recorded outcome, not a tool failure.
const listingTarget = "models.list"

// Prober issues the outbound API requests for one run.
type Prober interface {
	ListModels(ctx context.Context) ([]models.ModelInfo, error)
	GenerateContent(ctx context.Context, model string) probe.Outcome
}

// Options configures a Monitor.
type Options struct {
	Interval      time.Duration
	Models        []string
	ExcludeModels []string
	QuotaPatterns []string
	ProbeDelay    time.Duration
	Prober        Prober
	Store         storage.Store
	// Progress receives per-model progress lines; nil silences them.
	Progress io.Writer
}

// Monitor runs probe rounds and persists their results.
type Monitor struct {
	interval      time.Duration
	modelList     []string
	exclude       []string
	quotaPatterns []string
	probeDelay    time.Duration
	prober        Prober
	store         storage.Store
	progress      io.Writer

	stopCh chan struct{}
	doneCh chan struct{}
}

// New creates a monitor. Interval only matters for the serve-mode loop.
func New(opts Options) *Monitor {
	interval := opts.Interval
	if interval < time.Minute {
		interval = time.Minute
	}
	progress := opts.Progress
	if progress == nil {
		progress = io.Discard
	}

	return &Monitor{
		interval:      interval,
		modelList:     opts.Models,
		exclude:       opts.ExcludeModels,
		quotaPatterns: opts.QuotaPatterns,
		probeDelay:    opts.ProbeDelay,
		prober:        opts.Prober,
		store:         opts.Store,
		progress:      progress,
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
	}
}

// RunOnce executes a single probe-classify-persist round and returns the
// recorded entry. Classified failures (rate limits, quota, auth, network) are
// data and never produce an error; only a failed history append does.
func (m *Monitor) RunOnce(ctx context.Context) (models.RunEntry, error) {
	entry := models.RunEntry{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
	}

	targets, discoveryErr := m.resolveTargets(ctx)
	if discoveryErr != nil {
		// No target list to work with; record the discovery failure itself.
		entry.Checks = []models.CheckResult{failedListing(discoveryErr)}
		fmt.Fprintf(m.progress, "model discovery failed: %v\n", discoveryErr)
	} else {
		fmt.Fprintf(m.progress, "testing %d endpoint(s)\n", len(targets))
		entry.Checks = make([]models.CheckResult, 0, len(targets))
		for i, model := range targets {
			result := m.checkModel(ctx, model)
			entry.Checks = append(entry.Checks, result)
			fmt.Fprintf(m.progress, "  %s: %s\n", model, messageOrEmpty(result.Message))

			if i < len(targets)-1 && m.probeDelay > 0 {
				if err := sleepCtx(ctx, m.probeDelay); err != nil {
					break
				}
			}
		}
	}

	entry.Total = len(entry.Checks)
	for _, check := range entry.Checks {
		if check.Category.OK() {
			entry.Succeeded++
		}
	}

	if err := m.store.Append(entry); err != nil {
		return entry, fmt.Errorf("append history: %w", err)
	}
	return entry, nil
}

// Start launches the periodic probe loop in a goroutine.
func (m *Monitor) Start() {
	go m.run()
}

// Stop requests graceful loop termination and waits until it is done.
func (m *Monitor) Stop() {
	select {
	case <-m.doneCh:
		return
	default:
	}
	close(m.stopCh)
	<-m.doneCh
}

func (m *Monitor) run() {
	defer close(m.doneCh)

	if _, err := m.RunOnce(context.Background()); err != nil {
		log.Printf("initial probe round failed: %v", err)
	}

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := m.RunOnce(context.Background()); err != nil {
				log.Printf("probe round failed: %v", err)
			}
		case <-m.stopCh:
			return
		}
	}
}

// resolveTargets returns the configured model list, or discovers testable
// models from the provider listing when none is configured.
func (m *Monitor) resolveTargets(ctx context.Context) ([]string, error) {
	if len(m.modelList) > 0 {
		return m.modelList, nil
	}
	infos, err := m.prober.ListModels(ctx)
	if err != nil {
		return nil, err
	}
	return probe.FilterTestable(infos, m.exclude), nil
}

func (m *Monitor) checkModel(ctx context.Context, model string) models.CheckResult {
	outcome := m.prober.GenerateContent(ctx, model)
	category, msg := classify.Classify(outcome, m.quotaPatterns)

	result := models.CheckResult{
		Model:    model,
		Category: category,
		Message:  &msg,
	}
	if outcome.Err == nil {
		status := outcome.StatusCode
		result.HTTPStatus = &status
	}
	if outcome.Latency > 0 {
		latency := float64(outcome.Latency.Milliseconds())
		result.LatencyMS = &latency
	}
	return result
}

func failedListing(err error) models.CheckResult {
	msg := fmt.Sprintf("Exception: %s", err)
	return models.CheckResult{
		Model:    listingTarget,
		Category: models.CategoryTransient,
		Message:  &msg,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func messageOrEmpty(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}
