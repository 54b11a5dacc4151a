package summarizer

import (
	"context"
	"log/slog"
	"strings"
	"time"

	apperrors "github.com/yanqian/docchat/pkg/errors"
	"github.com/yanqian/docchat/pkg/metrics"
)

// Config configures the summarizer.
type Config struct {
	Model         string
	MaxInputChars int
	Prompt        string
	Fallback      string
}

// Generator is the single-prompt model call the summarizer depends on.
type Generator interface {
	Generate(ctx context.Context, model, prompt string) (string, error)
}

// TokenCounter measures prompt size for logging and metrics.
type TokenCounter interface {
	Count(text string) int
}

// Service turns extracted document text into a short summary.
type Service interface {
	Summarize(ctx context.Context, text string) (string, error)
}

type service struct {
	cfg      Config
	llm      Generator
	tokens   TokenCounter
	recorder *metrics.Recorder
	logger   *slog.Logger
}

// NewService is a wire provider for the summarizer domain.
func NewService(cfg Config, llm Generator, tokens TokenCounter, recorder *metrics.Recorder, logger *slog.Logger) Service {
	return &service{
		cfg:      cfg,
		llm:      llm,
		tokens:   tokens,
		recorder: recorder,
		logger:   logger.With("component", "summarizer.service"),
	}
}

func (s *service) Summarize(ctx context.Context, text string) (string, error) {
	prompt := s.buildPrompt(text)
	promptTokens := s.count(prompt)

	start := time.Now()
	content, err := s.llm.Generate(ctx, s.cfg.Model, prompt)
	elapsed := time.Since(start)
	if err != nil {
		s.recorder.ObserveLLM("summarize", err, elapsed, metrics.NewTokenUsage(promptTokens, 0))
		s.logger.Error("summary request failed", "error", err, "latency_ms", elapsed.Milliseconds())
		return "", apperrors.Wrap(apperrors.CodeLLM, "summarize document", err)
	}
	usage := metrics.NewTokenUsage(promptTokens, s.count(content))
	s.recorder.ObserveLLM("summarize", nil, elapsed, usage)

	summary := content
	if strings.TrimSpace(summary) == "" {
		s.logger.Warn("model returned an empty summary, using fallback")
		summary = s.cfg.Fallback
	}
	s.logger.Info("document summarized",
		"input_runes", len([]rune(text)),
		"prompt_tokens", usage.PromptTokens,
		"total_tokens", usage.TotalTokens,
		"summary_len", len(summary),
		"latency_ms", elapsed.Milliseconds(),
	)
	return summary, nil
}

func (s *service) buildPrompt(text string) string {
	return s.cfg.Prompt + "\n\n" + truncate(text, s.cfg.MaxInputChars)
}

func (s *service) count(text string) int {
	if s.tokens == nil {
		return 0
	}
	return s.tokens.Count(text)
}

// truncate keeps the first limit runes of text. A non-positive limit disables truncation.
func truncate(text string, limit int) string {
	if limit <= 0 {
		return text
	}
	n := 0
	for i := range text {
		if n == limit {
			return text[:i]
		}
		n++
	}
	return text
}
