package sessionstore

import (
	"context"
	"sync"
	"time"

	"github.com/yanqian/docchat/internal/domain/session"
	"github.com/yanqian/docchat/pkg/util"
)

type memoryRecord struct {
	payload  session.Session
	lastSeen time.Time
}

// MemoryOptions bound the in-memory store. Zero values mean unbounded and never expiring.
type MemoryOptions struct {
	TTL        time.Duration
	MaxEntries int
	Clock      util.Clock
}

// MemoryStore keeps sessions in process memory; everything is lost on restart.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]memoryRecord
	ttl      time.Duration
	max      int
	now      util.Clock
}

// NewMemoryStore constructs a store backed by process memory.
func NewMemoryStore(opts MemoryOptions) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]memoryRecord),
		ttl:      opts.TTL,
		max:      opts.MaxEntries,
		now:      opts.Clock.OrNow(),
	}
}

// Get implements session.Store.
func (s *MemoryStore) Get(_ context.Context, clientID string) (session.Session, error) {
	s.mu.RLock()
	record, ok := s.sessions[clientID]
	s.mu.RUnlock()
	if !ok {
		return session.Session{}, nil
	}
	if !s.expired(record.lastSeen) {
		return record.payload.Clone(), nil
	}

	// A Put may have refreshed the record since the read lock was released.
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok = s.sessions[clientID]
	if !ok {
		return session.Session{}, nil
	}
	if s.expired(record.lastSeen) {
		delete(s.sessions, clientID)
		return session.Session{}, nil
	}
	return record.payload.Clone(), nil
}

// Put implements session.Store.
func (s *MemoryStore) Put(_ context.Context, clientID string, sess session.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[clientID] = memoryRecord{payload: sess.Clone(), lastSeen: s.now()}
	s.evictLocked()
	return nil
}

// Delete implements session.Store.
func (s *MemoryStore) Delete(_ context.Context, clientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, clientID)
	return nil
}

// Len reports the number of stored sessions, expired ones included until touched.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *MemoryStore) evictLocked() {
	if s.ttl > 0 {
		for id, record := range s.sessions {
			if s.expired(record.lastSeen) {
				delete(s.sessions, id)
			}
		}
	}
	for s.max > 0 && len(s.sessions) > s.max {
		var (
			oldestID string
			oldest   time.Time
		)
		for id, record := range s.sessions {
			if oldestID == "" || record.lastSeen.Before(oldest) {
				oldestID, oldest = id, record.lastSeen
			}
		}
		delete(s.sessions, oldestID)
	}
}

func (s *MemoryStore) expired(lastSeen time.Time) bool {
	if s.ttl <= 0 {
		return false
	}
	return s.now().Sub(lastSeen) > s.ttl
}

var _ session.Store = (*MemoryStore)(nil)
