package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder exports request, model-call and session metrics in Prometheus format.
type Recorder struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec

	llmCalls   *prometheus.CounterVec
	llmLatency *prometheus.HistogramVec
	llmTokens  *prometheus.CounterVec
	llmOutput  *prometheus.CounterVec

	uploads  *prometheus.CounterVec
	sessions prometheus.Gauge
}

// NewRecorder registers all collectors on a fresh registry.
func NewRecorder() *Recorder {
	registry := prometheus.NewRegistry()
	buckets := []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60}

	r := &Recorder{
		registry: registry,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docchat",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "docchat",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds.",
			Buckets:   buckets,
		}, []string{"method", "route"}),
		llmCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docchat",
			Subsystem: "llm",
			Name:      "calls_total",
			Help:      "Model calls by operation and outcome.",
		}, []string{"operation", "status"}),
		llmLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "docchat",
			Subsystem: "llm",
			Name:      "call_duration_seconds",
			Help:      "Model call latency in seconds.",
			Buckets:   buckets,
		}, []string{"operation"}),
		llmTokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docchat",
			Subsystem: "llm",
			Name:      "prompt_tokens_total",
			Help:      "Prompt tokens sent to the model.",
		}, []string{"operation"}),
		llmOutput: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docchat",
			Subsystem: "llm",
			Name:      "completion_tokens_total",
			Help:      "Tokens in model responses.",
		}, []string{"operation"}),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docchat",
			Subsystem: "documents",
			Name:      "uploads_total",
			Help:      "Uploaded documents by detected format and outcome.",
		}, []string{"format", "status"}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "docchat",
			Subsystem: "sessions",
			Name:      "active",
			Help:      "Sessions currently held by the in-memory store.",
		}),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.httpRequests, r.httpLatency,
		r.llmCalls, r.llmLatency, r.llmTokens, r.llmOutput,
		r.uploads, r.sessions,
	)
	return r
}

// ObserveRequest records one served HTTP request.
func (r *Recorder) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if r == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	r.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	r.httpLatency.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ObserveLLM records one model call.
func (r *Recorder) ObserveLLM(operation string, err error, elapsed time.Duration, usage TokenUsage) {
	if r == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	r.llmCalls.WithLabelValues(operation, status).Inc()
	r.llmLatency.WithLabelValues(operation).Observe(elapsed.Seconds())
	if usage.IsZero() {
		return
	}
	r.llmTokens.WithLabelValues(operation).Add(float64(usage.PromptTokens))
	r.llmOutput.WithLabelValues(operation).Add(float64(usage.CompletionTokens))
}

// ObserveUpload records an upload attempt. format must come from a closed set.
func (r *Recorder) ObserveUpload(format string, err error) {
	if r == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	if format == "" {
		format = "unsupported"
	}
	r.uploads.WithLabelValues(format, status).Inc()
}

// SetSessions reports the number of live sessions.
func (r *Recorder) SetSessions(n int) {
	if r == nil {
		return
	}
	r.sessions.Set(float64(n))
}

// Handler serves the registry.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}
