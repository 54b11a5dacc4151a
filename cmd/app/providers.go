package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/valkey-io/valkey-go"

	"github.com/yanqian/docchat/internal/domain/chat"
	"github.com/yanqian/docchat/internal/domain/docchat"
	"github.com/yanqian/docchat/internal/domain/session"
	"github.com/yanqian/docchat/internal/domain/summarizer"
	"github.com/yanqian/docchat/internal/infra/config"
	"github.com/yanqian/docchat/internal/infra/llm/chatgpt"
	"github.com/yanqian/docchat/internal/infra/llm/gemini"
	"github.com/yanqian/docchat/internal/infra/sessionstore"
	"github.com/yanqian/docchat/internal/infra/tokenizer"
	"github.com/yanqian/docchat/pkg/util"
)

// generator is satisfied by every model backend.
type generator interface {
	Generate(ctx context.Context, model, prompt string) (string, error)
}

func provideSummaryConfig(cfg *config.Config) summarizer.Config {
	return summarizer.Config{
		Model:         cfg.LLM.Model,
		MaxInputChars: cfg.Summary.MaxInputChars,
		Prompt:        cfg.Summary.Prompt,
		Fallback:      cfg.Summary.Fallback,
	}
}

func provideChatConfig(cfg *config.Config) chat.Config {
	return chat.Config{
		Model:          cfg.LLM.Model,
		Prompt:         cfg.Chat.Prompt,
		Fallback:       cfg.Chat.Fallback,
		IncludeHistory: cfg.Chat.IncludeHistory,
	}
}

func provideDocChatConfig(cfg *config.Config) docchat.Config {
	return docchat.Config{SurfaceErrors: cfg.Chat.SurfaceErrors}
}

func provideGenerator(cfg *config.Config, logger *slog.Logger) (generator, error) {
	switch cfg.LLM.Provider {
	case config.ProviderOpenAI:
		logger.Info("using openai-compatible model backend", "model", cfg.LLM.Model)
		return chatgpt.NewClient(cfg.LLM.APIKey, cfg.LLM.BaseURL, cfg.LLM.TemperatureOrZero())
	case config.ProviderGemini:
		logger.Info("using gemini model backend", "model", cfg.LLM.Model)
		return gemini.NewClient(context.Background(), cfg.LLM.APIKey, gemini.Options{
			BaseURL:     cfg.LLM.BaseURL,
			Temperature: cfg.LLM.Temperature,
			Timeout:     cfg.LLM.Timeout,
		})
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.LLM.Provider)
	}
}

func provideSummaryGenerator(g generator) summarizer.Generator {
	return g
}

func provideChatGenerator(g generator) chat.Generator {
	return g
}

func provideTokenCounter(cfg *config.Config, logger *slog.Logger) *tokenizer.Counter {
	return tokenizer.New(cfg.LLM.Encoding, logger)
}

func provideSessionStore(cfg *config.Config, logger *slog.Logger) (session.Store, func()) {
	memory := func() (session.Store, func()) {
		return sessionstore.NewMemoryStore(sessionstore.MemoryOptions{
			TTL:        cfg.Session.TTL,
			MaxEntries: cfg.Session.MaxEntries,
		}), func() {}
	}
	switch cfg.Session.Backend {
	case config.BackendValkey:
		return provideValkeyStore(cfg, logger, memory)
	case config.BackendPostgres:
		return providePostgresStore(cfg, logger, memory)
	default:
		return memory()
	}
}

func provideValkeyStore(cfg *config.Config, logger *slog.Logger, fallback func() (session.Store, func())) (session.Store, func()) {
	opt, err := buildValkeyOptions(cfg.Session.Valkey.Addr)
	if err != nil {
		logger.Error("invalid valkey configuration, falling back to memory store", "error", err)
		return fallback()
	}
	client, err := valkey.NewClient(opt)
	if err != nil {
		logger.Error("failed to create valkey client, falling back to memory store", "error", err)
		return fallback()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		logger.Error("valkey ping failed, falling back to memory store", "error", err)
		client.Close()
		return fallback()
	}
	logger.Info("valkey session store enabled", "addr", cfg.Session.Valkey.Addr)
	return sessionstore.NewValkeyStore(client, cfg.Session.Valkey.Prefix, cfg.Session.TTL), client.Close
}

func providePostgresStore(cfg *config.Config, logger *slog.Logger, fallback func() (session.Store, func())) (session.Store, func()) {
	poolConfig, err := pgxpool.ParseConfig(strings.TrimSpace(cfg.Session.Postgres.DSN))
	if err != nil {
		logger.Error("invalid postgres dsn, falling back to memory store", "error", err)
		return fallback()
	}
	if cfg.Session.Postgres.MaxConns > 0 {
		poolConfig.MaxConns = cfg.Session.Postgres.MaxConns
	}
	if cfg.Session.Postgres.MinConns > 0 {
		poolConfig.MinConns = cfg.Session.Postgres.MinConns
	}
	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		logger.Error("failed to initialize postgres pool, falling back to memory store", "error", err)
		return fallback()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		logger.Error("postgres ping failed, falling back to memory store", "error", err)
		pool.Close()
		return fallback()
	}
	store := sessionstore.NewPostgresStore(pool, cfg.Session.TTL, util.NowUTC)
	if err := store.EnsureSchema(ctx); err != nil {
		logger.Error("failed to create sessions table, falling back to memory store", "error", err)
		pool.Close()
		return fallback()
	}
	logger.Info("postgres session store enabled")
	return store, pool.Close
}

func buildValkeyOptions(addr string) (valkey.ClientOption, error) {
	if strings.Contains(addr, "://") {
		return valkey.ParseURL(addr)
	}
	return valkey.ClientOption{InitAddress: []string{addr}}, nil
}

func provideLocker(cfg *config.Config) session.Locker {
	if cfg.Session.LockPerSession {
		return session.NewKeyedLocker()
	}
	return session.NopLocker{}
}

func provideClock() util.Clock {
	return util.NowUTC
}
