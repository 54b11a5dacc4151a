package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRecorderCountsLLMCalls(t *testing.T) {
	r := NewRecorder()
	r.ObserveLLM("summarize", nil, 20*time.Millisecond, NewTokenUsage(12, 5))
	r.ObserveLLM("summarize", errors.New("boom"), time.Millisecond, TokenUsage{})

	require.Equal(t, 1.0, testutil.ToFloat64(r.llmCalls.WithLabelValues("summarize", "ok")))
	require.Equal(t, 1.0, testutil.ToFloat64(r.llmCalls.WithLabelValues("summarize", "error")))
	require.Equal(t, 12.0, testutil.ToFloat64(r.llmTokens.WithLabelValues("summarize")))
	require.Equal(t, 5.0, testutil.ToFloat64(r.llmOutput.WithLabelValues("summarize")))
}

func TestRecorderHandlerExposesMetrics(t *testing.T) {
	r := NewRecorder()
	r.ObserveRequest(http.MethodPost, "/chat", http.StatusOK, time.Millisecond)
	r.ObserveUpload("pdf", nil)
	r.SetSessions(3)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.Contains(t, body, `docchat_http_requests_total{method="POST",route="/chat",status="200"} 1`)
	require.Contains(t, body, `docchat_documents_uploads_total{format="pdf",status="ok"} 1`)
	require.Contains(t, body, "docchat_sessions_active 3")
}

func TestNilRecorderIsNoop(t *testing.T) {
	var r *Recorder
	require.NotPanics(t, func() {
		r.ObserveRequest("GET", "/", 200, time.Second)
		r.ObserveLLM("chat", nil, time.Second, TokenUsage{})
		r.ObserveUpload("txt", nil)
		r.SetSessions(1)
	})
	require.True(t, TokenUsage{}.IsZero())
	require.False(t, NewTokenUsage(0, 3).IsZero())
	require.Equal(t, 10, NewTokenUsage(7, 3).TotalTokens)
}
