// Package docchat drives the upload-then-ask conversation for one client at a time.
package docchat

import (
	"context"
	"log/slog"

	"github.com/yanqian/docchat/internal/domain/chat"
	"github.com/yanqian/docchat/internal/domain/session"
	"github.com/yanqian/docchat/internal/domain/summarizer"
	apperrors "github.com/yanqian/docchat/pkg/errors"
	"github.com/yanqian/docchat/pkg/metrics"
	"github.com/yanqian/docchat/pkg/util"
)

// UploadedMessage acknowledges a successful upload.
const UploadedMessage = "File uploaded and summarized successfully!"

// Config toggles how chat failures reach the caller.
type Config struct {
	// SurfaceErrors returns model failures as errors instead of "Error: ..." answers.
	SurfaceErrors bool
}

// Extractor turns an uploaded file into plain text.
type Extractor interface {
	Extract(filename string, data []byte) (string, error)
	// Classify names the format of filename from a fixed set.
	Classify(filename string) string
}

// UploadResult is returned after a document has been summarized and stored.
type UploadResult struct {
	Summary string `json:"summary"`
	AI      string `json:"ai"`
}

// AskResult is one answered question.
type AskResult struct {
	User string `json:"user"`
	AI   string `json:"ai"`
}

// Service is the conversation entry point used by the transport layer.
type Service interface {
	Upload(ctx context.Context, clientID, filename string, data []byte) (UploadResult, error)
	Ask(ctx context.Context, clientID, message string) (AskResult, error)
	History(ctx context.Context, clientID string) ([]session.Exchange, error)
	Reset(ctx context.Context, clientID string) error
}

type service struct {
	cfg        Config
	extractor  Extractor
	summarizer summarizer.Service
	chat       chat.Service
	store      session.Store
	locker     session.Locker
	recorder   *metrics.Recorder
	clock      util.Clock
	logger     *slog.Logger
}

// NewService is a wire provider for the conversation domain.
func NewService(
	cfg Config,
	extractor Extractor,
	summarizerSvc summarizer.Service,
	chatSvc chat.Service,
	store session.Store,
	locker session.Locker,
	recorder *metrics.Recorder,
	clock util.Clock,
	logger *slog.Logger,
) Service {
	if locker == nil {
		locker = session.NopLocker{}
	}
	return &service{
		cfg:        cfg,
		extractor:  extractor,
		summarizer: summarizerSvc,
		chat:       chatSvc,
		store:      store,
		locker:     locker,
		recorder:   recorder,
		clock:      clock.OrNow(),
		logger:     logger.With("component", "docchat.service"),
	}
}

func (s *service) Upload(ctx context.Context, clientID, filename string, data []byte) (UploadResult, error) {
	format := s.extractor.Classify(filename)
	logger := s.logger.With("client", clientID, "filename", filename, "bytes", len(data))

	text, err := s.extractor.Extract(filename, data)
	if err != nil {
		s.recorder.ObserveUpload(format, err)
		logger.Warn("document extraction failed", "error", err)
		return UploadResult{}, err
	}

	summary, err := s.summarizer.Summarize(ctx, text)
	if err != nil {
		s.recorder.ObserveUpload(format, err)
		return UploadResult{}, err
	}

	unlock := s.locker.Lock(clientID)
	defer unlock()

	sess, err := s.store.Get(ctx, clientID)
	if err != nil {
		s.recorder.ObserveUpload(format, err)
		return UploadResult{}, apperrors.Wrap(apperrors.CodeStorage, "load session", err)
	}
	sess.ReplaceDocument(text, summary, s.clock())
	if err := s.store.Put(ctx, clientID, sess); err != nil {
		s.recorder.ObserveUpload(format, err)
		return UploadResult{}, apperrors.Wrap(apperrors.CodeStorage, "save session", err)
	}
	s.recorder.ObserveUpload(format, nil)
	s.reportSessions()

	logger.Info("document summarized and stored", "text_len", len(text))
	return UploadResult{Summary: summary, AI: UploadedMessage}, nil
}

func (s *service) Ask(ctx context.Context, clientID, message string) (AskResult, error) {
	unlock := s.locker.Lock(clientID)
	defer unlock()

	sess, err := s.store.Get(ctx, clientID)
	if err != nil {
		return AskResult{}, apperrors.Wrap(apperrors.CodeStorage, "load session", err)
	}
	if !sess.HasSummary() {
		return AskResult{}, apperrors.Wrap(apperrors.CodePreconditionFailed, "Please upload a file first.", nil)
	}

	res := s.chat.Answer(ctx, sess.Summary, message, sess.History)
	if res.Failed() && s.cfg.SurfaceErrors {
		return AskResult{}, res.Err
	}

	sess.Append(session.Exchange{User: message, AI: res.Answer}, s.clock())
	if err := s.store.Put(ctx, clientID, sess); err != nil {
		return AskResult{}, apperrors.Wrap(apperrors.CodeStorage, "save session", err)
	}
	return AskResult{User: message, AI: res.Answer}, nil
}

func (s *service) History(ctx context.Context, clientID string) ([]session.Exchange, error) {
	sess, err := s.store.Get(ctx, clientID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStorage, "load session", err)
	}
	if sess.History == nil {
		return []session.Exchange{}, nil
	}
	return sess.History, nil
}

func (s *service) Reset(ctx context.Context, clientID string) error {
	unlock := s.locker.Lock(clientID)
	defer unlock()

	if err := s.store.Delete(ctx, clientID); err != nil {
		return apperrors.Wrap(apperrors.CodeStorage, "delete session", err)
	}
	s.reportSessions()
	s.logger.Info("session reset", "client", clientID)
	return nil
}

// reportSessions publishes the session count for stores that can report it.
func (s *service) reportSessions() {
	if counter, ok := s.store.(interface{ Len() int }); ok {
		s.recorder.SetSessions(counter.Len())
	}
}
