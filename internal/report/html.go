package report

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"ratewatch/internal/models"
)

//go:embed template/dashboard.html.tmpl
var templateFS embed.FS

var dashboardTmpl = template.Must(
	template.New("dashboard.html.tmpl").Funcs(template.FuncMap{
		"succPercent": entrySuccessPercent,
		"shortTime": func(t time.Time) string {
			return t.Local().Format("Jan 02, 15:04:05")
		},
		"badgeClass": func(c models.Category) string {
			if c.OK() {
				return "status-success"
			}
			return "status-fail"
		},
		"badgeText": func(c models.Category) string {
			if c.OK() {
				return "Operational"
			}
			return string(c)
		},
		"message": func(ptr *string) string {
			if ptr == nil {
				return ""
			}
			return *ptr
		},
		"latency": func(ptr *float64) string {
			if ptr == nil {
				return "-"
			}
			return fmt.Sprintf("%.0f ms", *ptr)
		},
	}).ParseFS(templateFS, "template/dashboard.html.tmpl"),
)

type htmlData struct {
	Report       Report
	GeneratedAt  string
	LatestChecks []models.CheckResult
	RunsNewest   []models.RunEntry
}

// RenderHTML writes the static dashboard page. Inputs are copied before
// sorting, never mutated.
func RenderHTML(w io.Writer, r Report, entries []models.RunEntry, now time.Time) error {
	data := htmlData{
		Report:      r,
		GeneratedAt: now.Format("2006-01-02 15:04:05"),
		RunsNewest:  reverseEntries(entries),
	}
	if r.Latest != nil {
		data.LatestChecks = sortChecksSuccessFirst(r.Latest.Checks)
	}
	if err := dashboardTmpl.Execute(w, data); err != nil {
		return fmt.Errorf("render dashboard: %w", err)
	}
	return nil
}

// WriteHTML renders the dashboard to path, overwriting any previous page.
func WriteHTML(path string, r Report, entries []models.RunEntry, now time.Time) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("ensure report directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create html report: %w", err)
	}
	if err := RenderHTML(f, r, entries, now); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("write html report: %w", err)
	}
	return nil
}

func entrySuccessPercent(entry models.RunEntry) float64 {
	if entry.Total == 0 {
		return 0
	}
	return float64(entry.Succeeded) / float64(entry.Total) * 100
}

func sortChecksSuccessFirst(checks []models.CheckResult) []models.CheckResult {
	copied := make([]models.CheckResult, len(checks))
	copy(copied, checks)
	sort.SliceStable(copied, func(i, j int) bool {
		return copied[i].Category.OK() && !copied[j].Category.OK()
	})
	return copied
}

func reverseEntries(entries []models.RunEntry) []models.RunEntry {
	copied := make([]models.RunEntry, len(entries))
	for i, entry := range entries {
		copied[len(entries)-1-i] = entry
	}
	return copied
}
