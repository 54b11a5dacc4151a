package sessionstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/yanqian/docchat/internal/domain/session"
)

// ValkeyStore persists sessions using a Valkey-compatible database.
type ValkeyStore struct {
	client valkey.Client
	prefix string
	ttl    time.Duration
}

// NewValkeyStore constructs a new store backed by Valkey. A zero ttl keeps sessions forever.
func NewValkeyStore(client valkey.Client, prefix string, ttl time.Duration) *ValkeyStore {
	if prefix == "" {
		prefix = "docchat"
	}
	return &ValkeyStore{client: client, prefix: prefix, ttl: ttl}
}

// Get implements session.Store.
func (s *ValkeyStore) Get(ctx context.Context, clientID string) (session.Session, error) {
	cmd := s.client.B().Get().Key(s.sessionKey(clientID)).Build()
	payload, err := s.client.Do(ctx, cmd).ToString()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return session.Session{}, nil
		}
		return session.Session{}, err
	}
	return decodeSession(payload)
}

// Put implements session.Store.
func (s *ValkeyStore) Put(ctx context.Context, clientID string, sess session.Session) error {
	payload, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	builder := s.client.B().Set().Key(s.sessionKey(clientID)).Value(string(payload))
	var cmd valkey.Completed
	if s.ttl > 0 {
		ttl := s.ttl
		if ttl < time.Second {
			ttl = time.Second
		}
		cmd = builder.Ex(ttl).Build()
	} else {
		cmd = builder.Build()
	}
	return s.client.Do(ctx, cmd).Error()
}

// Delete implements session.Store.
func (s *ValkeyStore) Delete(ctx context.Context, clientID string) error {
	return s.client.Do(ctx, s.client.B().Del().Key(s.sessionKey(clientID)).Build()).Error()
}

func (s *ValkeyStore) sessionKey(clientID string) string {
	return fmt.Sprintf("%s:session:%s", s.prefix, clientID)
}

func decodeSession(payload string) (session.Session, error) {
	var sess session.Session
	if err := json.Unmarshal([]byte(payload), &sess); err != nil {
		return session.Session{}, fmt.Errorf("decode session: %w", err)
	}
	return sess, nil
}

var _ session.Store = (*ValkeyStore)(nil)
