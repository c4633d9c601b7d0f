package probe

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ratewatch/internal/models"
)

func TestNewRequiresAPIKey(t *testing.T) {
	_, err := New("https://example.com/v1beta", "", "Hello", time.Second)
	require.Error(t, err)

	_, err = New("https://example.com/v1beta", "   ", "Hello", time.Second)
	require.Error(t, err)
}

func TestGenerateContent(t *testing.T) {
	var gotPath, gotKey, gotContentType string
	var gotPayload generatePayload

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")
		gotContentType = r.Header.Get("Content-Type")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"slow down"}}`))
	}))
	defer srv.Close()

	p, err := New(srv.URL+"/v1beta", "test-key", "Hello", time.Second)
	require.NoError(t, err)

	out := p.GenerateContent(context.Background(), "models/gemini-2.0-flash")
	require.NoError(t, out.Err)
	require.Equal(t, http.StatusTooManyRequests, out.StatusCode)
	require.Contains(t, out.Body, "slow down")
	require.Greater(t, out.Latency, time.Duration(0))

	require.Equal(t, "/v1beta/models/gemini-2.0-flash:generateContent", gotPath)
	require.Equal(t, "test-key", gotKey)
	require.Equal(t, "application/json", gotContentType)
	require.Len(t, gotPayload.Contents, 1)
	require.Len(t, gotPayload.Contents[0].Parts, 1)
	require.Equal(t, "Hello", gotPayload.Contents[0].Parts[0].Text)
}

func TestGenerateContentNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from now on

	p, err := New(srv.URL+"/v1beta", "test-key", "Hello", time.Second)
	require.NoError(t, err)

	out := p.GenerateContent(context.Background(), "models/gemini-2.0-flash")
	require.Error(t, out.Err)
	require.Zero(t, out.StatusCode)
}

func TestListModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1beta/models", r.URL.Path)
		require.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"models":[
			{"name":"models/gemini-2.0-flash","supportedGenerationMethods":["generateContent","countTokens"]},
			{"name":"models/embedding-001","supportedGenerationMethods":["embedContent"]}
		]}`))
	}))
	defer srv.Close()

	p, err := New(srv.URL+"/v1beta", "test-key", "Hello", time.Second)
	require.NoError(t, err)

	infos, err := p.ListModels(context.Background())
	require.NoError(t, err)
	require.Len(t, infos, 2)
	require.Equal(t, "models/gemini-2.0-flash", infos[0].Name)
}

func TestListModelsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	p, err := New(srv.URL+"/v1beta", "test-key", "Hello", time.Second)
	require.NoError(t, err)

	_, err = p.ListModels(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "status 403")
}

func TestFilterTestable(t *testing.T) {
	infos := []models.ModelInfo{
		{Name: "models/gemini-2.0-flash", Methods: []string{"generateContent"}},
		{Name: "models/gemma-3-27b-it", Methods: []string{"generateContent"}},
		{Name: "models/embedding-001", Methods: []string{"embedContent"}},
		{Name: "models/gemini-2.5-pro", Methods: []string{"countTokens", "generateContent"}},
	}

	selected := FilterTestable(infos, []string{"gemma"})
	require.Equal(t, []string{"models/gemini-2.0-flash", "models/gemini-2.5-pro"}, selected)

	// No exclusions keeps everything that supports generateContent.
	selected = FilterTestable(infos, nil)
	require.Len(t, selected, 3)
}
