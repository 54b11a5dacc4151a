package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config aggregates runtime configuration used across the service.
type Config struct {
	HTTP    HTTPConfig    `yaml:"http"`
	LLM     LLMConfig     `yaml:"llm"`
	Summary SummaryConfig `yaml:"summary"`
	Chat    ChatConfig    `yaml:"chat"`
	Session SessionConfig `yaml:"session"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// HTTPConfig controls server level behavior.
type HTTPConfig struct {
	Address        string          `yaml:"address"`
	ReadTimeout    time.Duration   `yaml:"readTimeout"`
	WriteTimeout   time.Duration   `yaml:"writeTimeout"`
	MaxUploadBytes int64           `yaml:"maxUploadBytes"`
	AllowedOrigins []string        `yaml:"allowedOrigins"`
	RateLimit      RateLimitConfig `yaml:"rateLimit"`
}

// RateLimitConfig drives the request limiting middleware.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requestsPerMinute"`
	Burst             int  `yaml:"burst"`
}

// LLMConfig selects and configures the text generation backend.
type LLMConfig struct {
	Provider string `yaml:"provider"`
	APIKey   string `yaml:"apiKey"`
	BaseURL  string `yaml:"baseUrl"`
	Model    string `yaml:"model"`
	// Temperature overrides the model default when set.
	Temperature *float32 `yaml:"temperature"`
	// Timeout bounds each Gemini HTTP call when positive. Zero keeps the SDK default.
	Timeout time.Duration `yaml:"timeout"`
	// Encoding names the tiktoken encoding used to measure prompts.
	Encoding string `yaml:"encoding"`
}

// TemperatureOrZero returns the configured temperature, or 0 when unset.
func (c LLMConfig) TemperatureOrZero() float32 {
	if c.Temperature == nil {
		return 0
	}
	return *c.Temperature
}

// SummaryConfig drives document summarization.
type SummaryConfig struct {
	MaxInputChars int    `yaml:"maxInputChars"`
	Prompt        string `yaml:"prompt"`
	Fallback      string `yaml:"fallback"`
}

// ChatConfig drives follow-up questions.
type ChatConfig struct {
	Prompt         string `yaml:"prompt"`
	Fallback       string `yaml:"fallback"`
	IncludeHistory bool   `yaml:"includeHistory"`
	SurfaceErrors  bool   `yaml:"surfaceErrors"`
}

// SessionConfig controls client identity and session storage.
type SessionConfig struct {
	Backend        string         `yaml:"backend"`
	Identity       string         `yaml:"identity"`
	TTL            time.Duration  `yaml:"ttl"`
	MaxEntries     int            `yaml:"maxEntries"`
	LockPerSession bool           `yaml:"lockPerSession"`
	Valkey         ValkeyConfig   `yaml:"valkey"`
	Postgres       PostgresConfig `yaml:"postgres"`
}

// ValkeyConfig contains connection information for the session backend.
type ValkeyConfig struct {
	Addr   string `yaml:"addr"`
	Prefix string `yaml:"prefix"`
}

// PostgresConfig contains pgx pool settings for the session backend.
type PostgresConfig struct {
	DSN      string `yaml:"dsn"`
	MaxConns int32  `yaml:"maxConns"`
	MinConns int32  `yaml:"minConns"`
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Supported enumerations.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"

	BackendMemory   = "memory"
	BackendValkey   = "valkey"
	BackendPostgres = "postgres"

	IdentityRemoteAddr = "remote_addr"
	IdentityClientIP   = "client_ip"
	IdentityCookie     = "cookie"
)

// Load reads configuration from a YAML file, a .env file and environment variables.
func Load() (*Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := hydrateFromFile(cfg, path); err != nil {
			return nil, err
		}
	} else if _, err := os.Stat("configs/config.yaml"); err == nil {
		if err := hydrateFromFile(cfg, "configs/config.yaml"); err != nil {
			return nil, err
		}
	}

	// .env is optional; real environment variables win over it.
	_ = godotenv.Load()
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func hydrateFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("HTTP_ADDRESS"); v != "" {
		cfg.HTTP.Address = v
	}
	if v := os.Getenv("HTTP_MAX_UPLOAD_BYTES"); v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.HTTP.MaxUploadBytes = parsed
		}
	}
	if v := os.Getenv("HTTP_ALLOWED_ORIGINS"); v != "" {
		cfg.HTTP.AllowedOrigins = splitList(v)
	}
	if v := os.Getenv("HTTP_RATE_LIMIT_ENABLED"); v != "" {
		cfg.HTTP.RateLimit.Enabled = parseBool(v)
	}
	if v := os.Getenv("HTTP_RATE_LIMIT_RPM"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.HTTP.RateLimit.RequestsPerMinute = parsed
		}
	}
	if v := os.Getenv("HTTP_RATE_LIMIT_BURST"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.HTTP.RateLimit.Burst = parsed
		}
	}
	if v := os.Getenv("LLM_PROVIDER"); v != "" {
		cfg.LLM.Provider = strings.ToLower(v)
	}
	// GOOGLE_API_KEY is what existing deployments of the service export.
	if v := os.Getenv("GOOGLE_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("LLM_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("LLM_TEMPERATURE"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 32); err == nil {
			temperature := float32(parsed)
			cfg.LLM.Temperature = &temperature
		}
	}
	if v := os.Getenv("LLM_TIMEOUT"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.LLM.Timeout = parsed
		}
	}
	if v := os.Getenv("SUMMARY_MAX_INPUT_CHARS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Summary.MaxInputChars = parsed
		}
	}
	if v := os.Getenv("SUMMARY_PROMPT"); v != "" {
		cfg.Summary.Prompt = v
	}
	if v := os.Getenv("CHAT_PROMPT"); v != "" {
		cfg.Chat.Prompt = v
	}
	if v := os.Getenv("CHAT_INCLUDE_HISTORY"); v != "" {
		cfg.Chat.IncludeHistory = parseBool(v)
	}
	if v := os.Getenv("CHAT_SURFACE_ERRORS"); v != "" {
		cfg.Chat.SurfaceErrors = parseBool(v)
	}
	if v := os.Getenv("SESSION_BACKEND"); v != "" {
		cfg.Session.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("SESSION_IDENTITY"); v != "" {
		cfg.Session.Identity = strings.ToLower(v)
	}
	if v := os.Getenv("SESSION_TTL"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.Session.TTL = parsed
		}
	}
	if v := os.Getenv("SESSION_MAX_ENTRIES"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Session.MaxEntries = parsed
		}
	}
	if v := os.Getenv("SESSION_LOCK"); v != "" {
		cfg.Session.LockPerSession = parseBool(v)
	}
	if v := os.Getenv("SESSION_VALKEY_ADDR"); v != "" {
		cfg.Session.Valkey.Addr = v
	}
	if v := os.Getenv("SESSION_POSTGRES_DSN"); v != "" {
		cfg.Session.Postgres.DSN = v
	}
	if v := os.Getenv("METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = parseBool(v)
	}
}

func parseBool(v string) bool {
	return v == "1" || strings.EqualFold(v, "true")
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func defaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Address:        ":8000",
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   120 * time.Second,
			MaxUploadBytes: 20 << 20,
			RateLimit: RateLimitConfig{
				Enabled:           false,
				RequestsPerMinute: 60,
				Burst:             20,
			},
		},
		LLM: LLMConfig{
			Provider: ProviderGemini,
			Model:    "gemini-2.0-flash",
			Encoding: "cl100k_base",
		},
		Summary: SummaryConfig{
			MaxInputChars: 15000,
			Prompt:        "Summarize this document in a clear and concise way:",
			Fallback:      "Summary not available.",
		},
		Chat: ChatConfig{
			Prompt: "You are chatting with a user who uploaded a document. Use the summary below to answer briefly and conversationally.\n" +
				"Do NOT repeat or restate the summary; just answer the question naturally.",
			Fallback: "No response generated.",
		},
		Session: SessionConfig{
			Backend:        BackendMemory,
			Identity:       IdentityRemoteAddr,
			LockPerSession: true,
			Valkey: ValkeyConfig{
				Prefix: "docchat",
			},
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// Validate ensures the configuration is safe to use.
func (c *Config) Validate() error {
	if c.HTTP.Address == "" {
		return errors.New("http.address cannot be empty")
	}
	if c.HTTP.MaxUploadBytes <= 0 {
		return errors.New("http.maxUploadBytes must be positive")
	}
	if c.HTTP.RateLimit.Enabled {
		if c.HTTP.RateLimit.RequestsPerMinute <= 0 {
			return errors.New("http.rateLimit.requestsPerMinute must be positive")
		}
		if c.HTTP.RateLimit.Burst <= 0 {
			return errors.New("http.rateLimit.burst must be positive")
		}
	}
	switch c.LLM.Provider {
	case ProviderGemini, ProviderOpenAI:
	default:
		return fmt.Errorf("llm.provider %q is not supported", c.LLM.Provider)
	}
	if strings.TrimSpace(c.LLM.Model) == "" {
		return errors.New("llm.model cannot be empty")
	}
	if c.Summary.MaxInputChars <= 0 {
		return errors.New("summary.maxInputChars must be positive")
	}
	if strings.TrimSpace(c.Summary.Prompt) == "" {
		return errors.New("summary.prompt cannot be empty")
	}
	if strings.TrimSpace(c.Chat.Prompt) == "" {
		return errors.New("chat.prompt cannot be empty")
	}
	switch c.Session.Backend {
	case BackendMemory:
	case BackendValkey:
		if strings.TrimSpace(c.Session.Valkey.Addr) == "" {
			return errors.New("session.valkey.addr cannot be empty when the valkey backend is selected")
		}
	case BackendPostgres:
		if strings.TrimSpace(c.Session.Postgres.DSN) == "" {
			return errors.New("session.postgres.dsn cannot be empty when the postgres backend is selected")
		}
		if c.Session.Postgres.MinConns < 0 || c.Session.Postgres.MaxConns < 0 {
			return errors.New("session.postgres pool sizes cannot be negative")
		}
	default:
		return fmt.Errorf("session.backend %q is not supported", c.Session.Backend)
	}
	switch c.Session.Identity {
	case IdentityRemoteAddr, IdentityClientIP, IdentityCookie:
	default:
		return fmt.Errorf("session.identity %q is not supported", c.Session.Identity)
	}
	if c.Session.TTL < 0 {
		return errors.New("session.ttl cannot be negative")
	}
	if c.Session.MaxEntries < 0 {
		return errors.New("session.maxEntries cannot be negative")
	}
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return errors.New("metrics.path must start with /")
	}
	return nil
}
