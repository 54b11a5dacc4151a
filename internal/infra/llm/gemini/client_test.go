package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGenerateReturnsCandidateText(t *testing.T) {
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.HasSuffix(r.URL.Path, "models/gemini-2.0-flash:generateContent"), r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"Short "},{"text":"answer."}]}}]}`))
	}))
	defer server.Close()

	client, err := NewClient(context.Background(), "test-key", Options{BaseURL: server.URL + "/"})
	require.NoError(t, err)

	text, err := client.Generate(context.Background(), "gemini-2.0-flash", "What is it about?")
	require.NoError(t, err)
	require.Equal(t, "Short answer.", text)

	raw, err := json.Marshal(body["contents"])
	require.NoError(t, err)
	require.Contains(t, string(raw), "What is it about?")

	all, err := json.Marshal(body)
	require.NoError(t, err)
	require.NotContains(t, string(all), "temperature")
}

func TestGenerateSendsConfiguredTemperature(t *testing.T) {
	var body struct {
		GenerationConfig struct {
			Temperature *float64 `json:"temperature"`
		} `json:"generationConfig"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"ok"}]}}]}`))
	}))
	defer server.Close()

	temperature := float32(0.7)
	client, err := NewClient(context.Background(), "test-key", Options{
		BaseURL:     server.URL + "/",
		Temperature: &temperature,
		Timeout:     5 * time.Second,
	})
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), "gemini-2.0-flash", "hi")
	require.NoError(t, err)
	require.NotNil(t, body.GenerationConfig.Temperature)
	require.InDelta(t, 0.7, *body.GenerationConfig.Temperature, 1e-6)
}

func TestGenerateEmptyCandidates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	}))
	defer server.Close()

	client, err := NewClient(context.Background(), "test-key", Options{BaseURL: server.URL + "/"})
	require.NoError(t, err)
	text, err := client.Generate(context.Background(), "gemini-2.0-flash", "hi")
	require.NoError(t, err)
	require.Empty(t, text)
}

func TestGenerateUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":403,"message":"API key not valid","status":"PERMISSION_DENIED"}}`))
	}))
	defer server.Close()

	client, err := NewClient(context.Background(), "test-key", Options{BaseURL: server.URL + "/"})
	require.NoError(t, err)
	_, err = client.Generate(context.Background(), "gemini-2.0-flash", "hi")
	require.ErrorContains(t, err, "gemini generate content")
}

func TestNewClientRequiresKey(t *testing.T) {
	_, err := NewClient(context.Background(), "", Options{})
	require.EqualError(t, err, "gemini api key cannot be empty")
}
