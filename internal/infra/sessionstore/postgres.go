package sessionstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/yanqian/docchat/internal/domain/session"
	"github.com/yanqian/docchat/pkg/util"
)

const createSessionsTable = `
	CREATE TABLE IF NOT EXISTS chat_sessions (
		client_id  TEXT PRIMARY KEY,
		payload    JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)
`

// pgQuerier is the part of *pgxpool.Pool the store uses.
type pgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore persists sessions as JSONB rows keyed by client id.
type PostgresStore struct {
	db  pgQuerier
	ttl time.Duration
	now util.Clock
}

// NewPostgresStore creates a store on top of a pgx pool. A zero ttl keeps sessions forever.
func NewPostgresStore(db pgQuerier, ttl time.Duration, clock util.Clock) *PostgresStore {
	return &PostgresStore{db: db, ttl: ttl, now: clock.OrNow()}
}

// EnsureSchema creates the sessions table when it does not exist yet.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, createSessionsTable)
	return err
}

// Get implements session.Store. Rows older than the ttl read as an empty session.
func (s *PostgresStore) Get(ctx context.Context, clientID string) (session.Session, error) {
	var (
		payload []byte
		updated time.Time
	)
	err := s.db.QueryRow(ctx, `
		SELECT payload, updated_at
		FROM chat_sessions
		WHERE client_id = $1
	`, clientID).Scan(&payload, &updated)
	if errors.Is(err, pgx.ErrNoRows) {
		return session.Session{}, nil
	}
	if err != nil {
		return session.Session{}, err
	}
	if s.ttl > 0 && s.now().Sub(updated) > s.ttl {
		return session.Session{}, nil
	}
	return decodeSession(string(payload))
}

// Put implements session.Store.
func (s *PostgresStore) Put(ctx context.Context, clientID string, sess session.Session) error {
	payload, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO chat_sessions (client_id, payload, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (client_id)
		DO UPDATE SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at
	`, clientID, string(payload), s.now())
	return err
}

// Delete implements session.Store.
func (s *PostgresStore) Delete(ctx context.Context, clientID string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM chat_sessions WHERE client_id = $1`, clientID)
	return err
}

var _ session.Store = (*PostgresStore)(nil)
