package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ratewatch/internal/models"
)

// maxBodyBytes caps how much of a response body is retained for
// classification and raw messages.
const maxBodyBytes = 4096

// Outcome is the raw result of a single generateContent attempt.
// Err is set for network-level failures where no response was received.
type Outcome struct {
	StatusCode int
	Body       string
	Latency    time.Duration
	Err        error
}

// Prober issues requests against the content-generation API.
type Prober struct {
	baseURL string
	apiKey  string
	prompt  string
	client  *http.Client
}

// New creates a prober. The API key must be non-empty; there is no point in
// reaching the network without one.
func New(baseURL, apiKey, prompt string, timeout time.Duration) (*Prober, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("api key must not be empty")
	}
	return &Prober{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		prompt:  prompt,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

type promptPart struct {
	Text string `json:"text"`
}

type promptContent struct {
	Parts []promptPart `json:"parts"`
}

type generatePayload struct {
	Contents []promptContent `json:"contents"`
}

func (p *Prober) generateBody() ([]byte, error) {
	return json.Marshal(generatePayload{
		Contents: []promptContent{{Parts: []promptPart{{Text: p.prompt}}}},
	})
}

// GenerateContent sends one minimal prompt to the given model and returns the
// raw outcome. A single attempt, no retries.
func (p *Prober) GenerateContent(ctx context.Context, model string) Outcome {
	body, err := p.generateBody()
	if err != nil {
		return Outcome{Err: fmt.Errorf("encode payload: %w", err)}
	}

	url := fmt.Sprintf("%s/%s:generateContent", p.baseURL, model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Outcome{Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", p.apiKey)

	start := time.Now()
	resp, err := p.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		return Outcome{Latency: latency, Err: err}
	}
	defer resp.Body.Close()

	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if readErr != nil {
		raw = nil
	}

	return Outcome{
		StatusCode: resp.StatusCode,
		Body:       string(raw),
		Latency:    latency,
	}
}

type modelList struct {
	Models []models.ModelInfo `json:"models"`
}

// ListModels fetches the provider's model listing.
func (p *Prober) ListModels(ctx context.Context) ([]models.ModelInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/models", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("x-goog-api-key", p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch models: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		return nil, fmt.Errorf("fetch models: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var list modelList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("decode models: %w", err)
	}
	return list.Models, nil
}

// FilterTestable keeps model names that support generateContent and do not
// match any excluded substring.
func FilterTestable(infos []models.ModelInfo, exclude []string) []string {
	var selected []string
	for _, info := range infos {
		if !supportsGenerate(info) {
			continue
		}
		if matchesAny(info.Name, exclude) {
			continue
		}
		selected = append(selected, info.Name)
	}
	return selected
}

func supportsGenerate(info models.ModelInfo) bool {
	for _, m := range info.Methods {
		if m == "generateContent" {
			return true
		}
	}
	return false
}

func matchesAny(name string, patterns []string) bool {
	lower := strings.ToLower(name)
	for _, p := range patterns {
		if p == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(p)) {
			return true
		}
	}
	return false
}
