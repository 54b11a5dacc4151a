package http

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/yanqian/docchat/internal/domain/chat"
	"github.com/yanqian/docchat/internal/domain/docchat"
	"github.com/yanqian/docchat/internal/domain/session"
	"github.com/yanqian/docchat/internal/domain/summarizer"
	"github.com/yanqian/docchat/internal/infra/config"
	"github.com/yanqian/docchat/internal/infra/extract"
	"github.com/yanqian/docchat/internal/infra/sessionstore"
	apperrors "github.com/yanqian/docchat/pkg/errors"
	"github.com/yanqian/docchat/pkg/metrics"
)

func TestRouter_NoInput(t *testing.T) {
	tests := []struct {
		name string
		req  func() *http.Request
	}{
		{
			name: "empty body",
			req:  func() *http.Request { return httptest.NewRequest(http.MethodPost, "/chat", nil) },
		},
		{
			name: "empty multipart form",
			req: func() *http.Request {
				return newMultipartRequest(t, map[string]string{}, "", nil)
			},
		},
		{
			name: "empty message",
			req: func() *http.Request {
				return newMultipartRequest(t, map[string]string{"message": ""}, "", nil)
			},
		},
		{
			name: "urlencoded without message",
			req: func() *http.Request {
				r := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader("other=1"))
				r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
				return r
			},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubDocChat{}
			rec := serve(newRouterUnderTest(t, svc, nil), tt.req())

			require.Equal(t, http.StatusBadRequest, rec.Code)
			require.JSONEq(t, `{"error":"No input provided."}`, rec.Body.String())
			require.Zero(t, svc.calls)
		})
	}
}

func TestRouter_UploadSuccess(t *testing.T) {
	svc := &stubDocChat{
		uploadFn: func(clientID, filename string, data []byte) (docchat.UploadResult, error) {
			require.Equal(t, "192.0.2.1", clientID)
			require.Equal(t, "notes.txt", filename)
			require.Equal(t, "hello world", string(data))
			return docchat.UploadResult{Summary: "S", AI: docchat.UploadedMessage}, nil
		},
	}

	rec := serve(newRouterUnderTest(t, svc, nil), newMultipartRequest(t, map[string]string{"message": "ignored"}, "notes.txt", []byte("hello world")))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"summary":"S","ai":"File uploaded and summarized successfully!"}`, rec.Body.String())
	require.Zero(t, svc.askCalls)
}

func TestRouter_UploadFailure(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{
			name:       "unsupported",
			err:        apperrors.Wrap(apperrors.CodeUnsupportedFormat, "Unsupported file type", nil),
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"error":"Error reading file: Unsupported file type"}`,
		},
		{
			name:       "model failure",
			err:        apperrors.Wrap(apperrors.CodeLLM, "summarize document", errors.New("quota")),
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"error":"Error reading file: summarize document: quota"}`,
		},
		{
			name:       "storage failure",
			err:        apperrors.Wrap(apperrors.CodeStorage, "save session", errors.New("down")),
			wantStatus: http.StatusInternalServerError,
			wantBody:   `{"error":"Error reading file: save session: down"}`,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubDocChat{
				uploadFn: func(string, string, []byte) (docchat.UploadResult, error) { return docchat.UploadResult{}, tt.err },
			}
			rec := serve(newRouterUnderTest(t, svc, nil), newMultipartRequest(t, nil, "a.png", []byte("x")))
			require.Equal(t, tt.wantStatus, rec.Code)
			require.JSONEq(t, tt.wantBody, rec.Body.String())
		})
	}
}

func TestRouter_UploadTooLarge(t *testing.T) {
	svc := &stubDocChat{}
	cfg := testConfig()
	cfg.HTTP.MaxUploadBytes = 16
	router := NewRouter(cfg, NewHandler(cfg, svc, newTestLogger()), nil)

	rec := serve(router, newMultipartRequest(t, nil, "big.txt", bytes.Repeat([]byte("a"), 1024)))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "Error reading file: file exceeds the 16 byte upload limit")
	require.Zero(t, svc.calls)
}

func TestRouter_RequestBodyTooLarge(t *testing.T) {
	svc := &stubDocChat{}
	cfg := testConfig()
	cfg.HTTP.MaxUploadBytes = 16
	router := NewRouter(cfg, NewHandler(cfg, svc, newTestLogger()), nil)

	rec := serve(router, newMultipartRequest(t, nil, "huge.txt", bytes.Repeat([]byte("a"), 128<<10)))
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	require.JSONEq(t, `{"error":"Error reading file: file exceeds the 16 byte upload limit"}`, rec.Body.String())
	require.Zero(t, svc.calls)
}

func TestRouter_Ask(t *testing.T) {
	tests := []struct {
		name       string
		askErr     error
		wantStatus int
		wantBody   string
	}{
		{
			name:       "answered",
			wantStatus: http.StatusOK,
			wantBody:   `{"user":"What is it?","ai":"An answer."}`,
		},
		{
			name:       "no document yet",
			askErr:     apperrors.Wrap(apperrors.CodePreconditionFailed, "Please upload a file first.", nil),
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"error":"Please upload a file first."}`,
		},
		{
			name:       "surfaced model failure",
			askErr:     apperrors.Wrap(apperrors.CodeLLM, "answer question", errors.New("timeout")),
			wantStatus: http.StatusBadGateway,
			wantBody:   `{"error":"Error: timeout"}`,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubDocChat{
				askFn: func(clientID, message string) (docchat.AskResult, error) {
					if tt.askErr != nil {
						return docchat.AskResult{}, tt.askErr
					}
					return docchat.AskResult{User: message, AI: "An answer."}, nil
				},
			}
			rec := serve(newRouterUnderTest(t, svc, nil), newMultipartRequest(t, map[string]string{"message": "What is it?"}, "", nil))
			require.Equal(t, tt.wantStatus, rec.Code)
			require.JSONEq(t, tt.wantBody, rec.Body.String())
		})
	}
}

func TestRouter_AskURLEncoded(t *testing.T) {
	svc := &stubDocChat{
		askFn: func(_, message string) (docchat.AskResult, error) {
			return docchat.AskResult{User: message, AI: "ok"}, nil
		},
	}
	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader("message=hi+there"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	rec := serve(newRouterUnderTest(t, svc, nil), req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"user":"hi there","ai":"ok"}`, rec.Body.String())
}

func TestRouter_FullConversation(t *testing.T) {
	llm := &stubGenerator{}
	router := newFullStackRouter(t, llm)

	rec := serve(router, newMultipartRequest(t, map[string]string{"message": "What is it?"}, "", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.JSONEq(t, `{"error":"Please upload a file first."}`, rec.Body.String())
	require.Zero(t, llm.count())

	rec = serve(router, newMultipartRequest(t, nil, "notes.txt", []byte("hello world")))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"summary":"A greeting.","ai":"File uploaded and summarized successfully!"}`, rec.Body.String())

	rec = serve(router, newMultipartRequest(t, map[string]string{"message": "What is it?"}, "", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"user":"What is it?","ai":"It says hello."}`, rec.Body.String())
	require.Contains(t, llm.last(), "Summary: A greeting.")

	rec = serve(router, httptest.NewRequest(http.MethodGet, "/chat/history", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"history":[{"user":"What is it?","ai":"It says hello."}]}`, rec.Body.String())

	rec = serve(router, httptest.NewRequest(http.MethodDelete, "/chat/session", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = serve(router, httptest.NewRequest(http.MethodGet, "/chat/history", nil))
	require.JSONEq(t, `{"history":[]}`, rec.Body.String())

	rec = serve(router, newMultipartRequest(t, nil, "slides.pptx", []byte("x")))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.JSONEq(t, `{"error":"Error reading file: Unsupported file type"}`, rec.Body.String())
}

func TestRouter_CookieIdentity(t *testing.T) {
	var seen []string
	svc := &stubDocChat{
		historyFn: func(clientID string) ([]session.Exchange, error) {
			seen = append(seen, clientID)
			return nil, nil
		},
	}
	cfg := testConfig()
	cfg.Session.Identity = config.IdentityCookie
	router := NewRouter(cfg, NewHandler(cfg, svc, newTestLogger()), nil)

	first := serve(router, httptest.NewRequest(http.MethodGet, "/chat/history", nil))
	cookies := first.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, sessionCookie, cookies[0].Name)
	require.True(t, cookies[0].HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/chat/history", nil)
	req.AddCookie(cookies[0])
	second := serve(router, req)
	require.Empty(t, second.Result().Cookies())

	other := serve(router, httptest.NewRequest(http.MethodGet, "/chat/history", nil))
	require.Len(t, other.Result().Cookies(), 1)

	require.Len(t, seen, 3)
	require.Equal(t, seen[0], seen[1])
	require.NotEqual(t, seen[0], seen[2])
}

func TestRouter_RateLimit(t *testing.T) {
	svc := &stubDocChat{}
	cfg := testConfig()
	cfg.HTTP.RateLimit = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 1, Burst: 2}
	router := NewRouter(cfg, NewHandler(cfg, svc, newTestLogger()), nil)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		codes = append(codes, serve(router, httptest.NewRequest(http.MethodGet, "/chat/history", nil)).Code)
	}
	require.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	rec := serve(router, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_PagesHealthAndMetrics(t *testing.T) {
	recorder := metrics.NewRecorder()
	router := newRouterUnderTest(t, &stubDocChat{}, recorder)

	for _, path := range []string{"/", "/about", "/contact", "/chat"} {
		rec := serve(router, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, rec.Code, path)
		require.Contains(t, rec.Header().Get("Content-Type"), "text/html", path)
		require.Contains(t, rec.Body.String(), "DocChat", path)
	}

	rec := serve(router, httptest.NewRequest(http.MethodGet, "/static/chat.js", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = serve(router, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = serve(router, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `docchat_http_requests_total{method="GET",route="/healthz",status="200"} 1`)
}

func TestRouter_CORSPreflight(t *testing.T) {
	tests := []struct {
		name            string
		allowed         []string
		origin          string
		wantOrigin      string
		wantCredentials string
	}{
		{name: "any origin", origin: "https://example.com", wantOrigin: "*"},
		{name: "wildcard entry", allowed: []string{"*"}, origin: "https://example.com", wantOrigin: "*"},
		{
			name:            "listed origin",
			allowed:         []string{"https://other.example", "https://app.example"},
			origin:          "https://app.example",
			wantOrigin:      "https://app.example",
			wantCredentials: "true",
		},
		{
			name:            "unlisted origin",
			allowed:         []string{"https://app.example"},
			origin:          "https://evil.example",
			wantOrigin:      "https://app.example",
			wantCredentials: "true",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.HTTP.AllowedOrigins = tt.allowed
			router := NewRouter(cfg, NewHandler(cfg, &stubDocChat{}, newTestLogger()), nil)

			req := httptest.NewRequest(http.MethodOptions, "/chat", nil)
			req.Header.Set("Origin", tt.origin)
			rec := serve(router, req)
			require.Equal(t, http.StatusNoContent, rec.Code)
			require.Equal(t, tt.wantOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
			require.Equal(t, tt.wantCredentials, rec.Header().Get("Access-Control-Allow-Credentials"))
		})
	}
}

func TestRouter_IdentityModes(t *testing.T) {
	tests := []struct {
		mode  string
		check func(t *testing.T, clientID string)
	}{
		{
			mode:  config.IdentityRemoteAddr,
			check: func(t *testing.T, clientID string) { require.Equal(t, "10.1.1.1", clientID) },
		},
		{
			mode:  config.IdentityClientIP,
			check: func(t *testing.T, clientID string) { require.Equal(t, "203.0.113.9", clientID) },
		},
		{
			mode: config.IdentityCookie,
			check: func(t *testing.T, clientID string) {
				_, err := uuid.Parse(clientID)
				require.NoError(t, err, clientID)
			},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.mode, func(t *testing.T) {
			var seen string
			svc := &stubDocChat{historyFn: func(clientID string) ([]session.Exchange, error) {
				seen = clientID
				return nil, nil
			}}
			cfg := testConfig()
			cfg.Session.Identity = tt.mode
			router := NewRouter(cfg, NewHandler(cfg, svc, newTestLogger()), nil)

			req := httptest.NewRequest(http.MethodGet, "/chat/history", nil)
			req.RemoteAddr = "10.1.1.1:4321"
			req.Header.Set("X-Forwarded-For", "203.0.113.9")
			rec := serve(router, req)
			require.Equal(t, http.StatusOK, rec.Code)
			tt.check(t, seen)
		})
	}
}

func serve(server *http.Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	server.Handler.ServeHTTP(rec, req)
	return rec
}

func newMultipartRequest(t *testing.T, fields map[string]string, filename string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	if filename != "" {
		part, err := writer.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/chat", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func testConfig() *config.Config {
	return &config.Config{
		HTTP: config.HTTPConfig{
			Address:        ":0",
			ReadTimeout:    time.Second,
			WriteTimeout:   time.Second,
			MaxUploadBytes: 1 << 20,
		},
		Session: config.SessionConfig{Identity: config.IdentityRemoteAddr},
		Metrics: config.MetricsConfig{Enabled: true, Path: "/metrics"},
	}
}

func newRouterUnderTest(t *testing.T, svc docchat.Service, recorder *metrics.Recorder) *http.Server {
	t.Helper()
	cfg := testConfig()
	return NewRouter(cfg, NewHandler(cfg, svc, newTestLogger()), recorder)
}

func newFullStackRouter(t *testing.T, llm *stubGenerator) *http.Server {
	t.Helper()
	logger := newTestLogger()
	sum := summarizer.NewService(summarizer.Config{Model: "m", MaxInputChars: 15000, Prompt: "Summarize:", Fallback: "Summary not available."}, llm, nil, nil, logger)
	chatSvc := chat.NewService(chat.Config{Model: "m", Prompt: "Answer:", Fallback: "No response generated."}, llm, nil, nil, logger)
	store := sessionstore.NewMemoryStore(sessionstore.MemoryOptions{})
	svc := docchat.NewService(docchat.Config{}, extract.New(), sum, chatSvc, store, session.NewKeyedLocker(), nil, nil, logger)
	cfg := testConfig()
	return NewRouter(cfg, NewHandler(cfg, svc, logger), nil)
}

func newTestLogger() *slog.Logger {
	handler := slog.NewTextHandler(io.Discard, nil)
	return slog.New(handler)
}

type stubDocChat struct {
	calls     int
	askCalls  int
	uploadFn  func(clientID, filename string, data []byte) (docchat.UploadResult, error)
	askFn     func(clientID, message string) (docchat.AskResult, error)
	historyFn func(clientID string) ([]session.Exchange, error)
}

func (s *stubDocChat) Upload(_ context.Context, clientID, filename string, data []byte) (docchat.UploadResult, error) {
	s.calls++
	if s.uploadFn != nil {
		return s.uploadFn(clientID, filename, data)
	}
	return docchat.UploadResult{}, nil
}

func (s *stubDocChat) Ask(_ context.Context, clientID, message string) (docchat.AskResult, error) {
	s.calls++
	s.askCalls++
	if s.askFn != nil {
		return s.askFn(clientID, message)
	}
	return docchat.AskResult{}, nil
}

func (s *stubDocChat) History(_ context.Context, clientID string) ([]session.Exchange, error) {
	if s.historyFn != nil {
		return s.historyFn(clientID)
	}
	return []session.Exchange{}, nil
}

func (s *stubDocChat) Reset(context.Context, string) error {
	return nil
}

// stubGenerator summarizes every document as "A greeting." and answers every question with "It says hello.".
type stubGenerator struct {
	mu      sync.Mutex
	calls   int
	prompts []string
}

func (g *stubGenerator) Generate(_ context.Context, _ string, prompt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if strings.HasPrefix(prompt, "Summarize:") {
		return "A greeting.", nil
	}
	g.calls++
	g.prompts = append(g.prompts, prompt)
	return "It says hello.", nil
}

func (g *stubGenerator) count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func (g *stubGenerator) last() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.prompts) == 0 {
		return ""
	}
	return g.prompts[len(g.prompts)-1]
}
