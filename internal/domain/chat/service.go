package chat

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/yanqian/docchat/internal/domain/session"
	apperrors "github.com/yanqian/docchat/pkg/errors"
	"github.com/yanqian/docchat/pkg/metrics"
)

// Config configures follow-up answers.
type Config struct {
	Model          string
	Prompt         string
	Fallback       string
	IncludeHistory bool
}

// Generator is the single-prompt model call the chat service depends on.
type Generator interface {
	Generate(ctx context.Context, model, prompt string) (string, error)
}

// TokenCounter measures prompt size for logging and metrics.
type TokenCounter interface {
	Count(text string) int
}

// Result carries the answer shown to the user. When the model call failed,
// Answer holds "Error: <cause>" and Err keeps the underlying failure.
type Result struct {
	Answer string
	Err    error
}

// Failed reports whether the answer is an error message.
func (r Result) Failed() bool {
	return r.Err != nil
}

// Service answers questions about a summarized document.
type Service interface {
	Answer(ctx context.Context, summary, message string, history []session.Exchange) Result
}

type service struct {
	cfg      Config
	llm      Generator
	tokens   TokenCounter
	recorder *metrics.Recorder
	logger   *slog.Logger
}

// NewService is a wire provider for the chat domain.
func NewService(cfg Config, llm Generator, tokens TokenCounter, recorder *metrics.Recorder, logger *slog.Logger) Service {
	return &service{
		cfg:      cfg,
		llm:      llm,
		tokens:   tokens,
		recorder: recorder,
		logger:   logger.With("component", "chat.service"),
	}
}

func (s *service) Answer(ctx context.Context, summary, message string, history []session.Exchange) Result {
	prompt := s.buildPrompt(summary, message, history)
	promptTokens := s.count(prompt)

	start := time.Now()
	content, err := s.llm.Generate(ctx, s.cfg.Model, prompt)
	elapsed := time.Since(start)
	if err != nil {
		s.recorder.ObserveLLM("chat", err, elapsed, metrics.NewTokenUsage(promptTokens, 0))
		s.logger.Error("chat request failed", "error", err, "latency_ms", elapsed.Milliseconds())
		return Result{
			Answer: "Error: " + err.Error(),
			Err:    apperrors.Wrap(apperrors.CodeLLM, "answer question", err),
		}
	}

	usage := metrics.NewTokenUsage(promptTokens, s.count(content))
	s.recorder.ObserveLLM("chat", nil, elapsed, usage)

	answer := content
	if strings.TrimSpace(answer) == "" {
		s.logger.Warn("model returned an empty answer, using fallback")
		answer = s.cfg.Fallback
	}
	s.logger.Debug("question answered",
		"prompt_tokens", usage.PromptTokens,
		"total_tokens", usage.TotalTokens,
		"history_turns", len(history),
		"latency_ms", elapsed.Milliseconds(),
	)
	return Result{Answer: answer}
}

func (s *service) buildPrompt(summary, message string, history []session.Exchange) string {
	var b strings.Builder
	b.WriteString(s.cfg.Prompt)
	b.WriteString("\n\nSummary: ")
	b.WriteString(summary)
	b.WriteString("\n\n")
	if s.cfg.IncludeHistory && len(history) > 0 {
		b.WriteString("Conversation so far:\n")
		for _, ex := range history {
			b.WriteString("User: ")
			b.WriteString(ex.User)
			b.WriteString("\nAI: ")
			b.WriteString(ex.AI)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	b.WriteString("Question: ")
	b.WriteString(message)
	return b.String()
}

func (s *service) count(text string) int {
	if s.tokens == nil {
		return 0
	}
	return s.tokens.Count(text)
}
