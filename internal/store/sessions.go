package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"todolists/internal/session"
)

type dialect struct {
	name   string
	load   string
	save   string
	delete string
	purge  string
}

var postgresDialect = dialect{
	name: "postgres",
	load: `SELECT data FROM sessions WHERE id = $1 AND expires_at_ms > $2`,
	save: `
		INSERT INTO sessions (id, data, expires_at_ms, updated_at_ms)
		VALUES ($1, $2::jsonb, $3, $4)
		ON CONFLICT (id) DO UPDATE SET data=EXCLUDED.data, expires_at_ms=EXCLUDED.expires_at_ms, updated_at_ms=EXCLUDED.updated_at_ms
	`,
	delete: `DELETE FROM sessions WHERE id = $1`,
	purge:  `DELETE FROM sessions WHERE expires_at_ms <= $1`,
}

var sqliteDialect = dialect{
	name: "sqlite",
	load: `SELECT data FROM sessions WHERE id = ? AND expires_at_ms > ?`,
	save: `
		INSERT INTO sessions (id, data, expires_at_ms, updated_at_ms)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET data=excluded.data, expires_at_ms=excluded.expires_at_ms, updated_at_ms=excluded.updated_at_ms
	`,
	delete: `DELETE FROM sessions WHERE id = ?`,
	purge:  `DELETE FROM sessions WHERE expires_at_ms <= ?`,
}

// SessionStore implements session.Store on a sessions table.
type SessionStore struct {
	db  *sql.DB
	d   dialect
	now func() time.Time
}

var _ session.Store = (*SessionStore)(nil)

// NewPostgresSessionStore expects the embedded migrations to be applied.
func NewPostgresSessionStore(db *sql.DB) *SessionStore {
	return &SessionStore{db: db, d: postgresDialect, now: time.Now}
}

// NewSQLiteSessionStore expects a handle from OpenSQLite.
func NewSQLiteSessionStore(db *sql.DB) *SessionStore {
	return &SessionStore{db: db, d: sqliteDialect, now: time.Now}
}

func (s *SessionStore) DB() *sql.DB {
	return s.db
}

func (s *SessionStore) Dialect() string {
	return s.d.name
}

func (s *SessionStore) Load(ctx context.Context, id string) (session.Data, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx, s.d.load, id, s.now().UnixMilli()).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return session.Data{}, session.ErrNotFound
	}
	if err != nil {
		return session.Data{}, fmt.Errorf("load session: %w", err)
	}
	return session.Decode(raw)
}

func (s *SessionStore) Save(ctx context.Context, id string, data session.Data, ttl time.Duration) error {
	raw, err := session.Encode(data)
	if err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = session.DefaultTTL
	}
	now := s.now()
	_, err = s.db.ExecContext(ctx, s.d.save, id, string(raw), now.Add(ttl).UnixMilli(), now.UnixMilli())
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *SessionStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, s.d.delete, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// PurgeExpired removes expired rows and returns how many were deleted.
func (s *SessionStore) PurgeExpired(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, s.d.purge, s.now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}
	return n, nil
}

func (s *SessionStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SessionStore) Close() error {
	return s.db.Close()
}
