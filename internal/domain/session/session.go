package session

import (
	"context"
	"time"
)

// Exchange is one answered question.
type Exchange struct {
	User string `json:"user"`
	AI   string `json:"ai"`
}

// Session is the per-client bundle of the latest document, its summary and the chat so far.
type Session struct {
	DocumentText string     `json:"documentText"`
	Summary      string     `json:"summary"`
	History      []Exchange `json:"history"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// HasSummary reports whether a document has been summarized for this session.
func (s Session) HasSummary() bool {
	return s.Summary != ""
}

// ReplaceDocument swaps in a new document and summary together and clears the history.
func (s *Session) ReplaceDocument(text, summary string, now time.Time) {
	s.DocumentText = text
	s.Summary = summary
	s.History = nil
	s.UpdatedAt = now
}

// Append records an exchange. Callers must have checked HasSummary.
func (s *Session) Append(ex Exchange, now time.Time) {
	s.History = append(s.History, ex)
	s.UpdatedAt = now
}

// Clone returns a copy that shares no slice storage with s.
func (s Session) Clone() Session {
	out := s
	if s.History != nil {
		out.History = make([]Exchange, len(s.History))
		copy(out.History, s.History)
	}
	return out
}

// Store persists sessions by client identifier.
// Get returns a zero Session for unknown clients; absence is not an error.
type Store interface {
	Get(ctx context.Context, clientID string) (Session, error)
	Put(ctx context.Context, clientID string, s Session) error
	Delete(ctx context.Context, clientID string) error
}
