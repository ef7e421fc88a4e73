package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bytedungeon/dungeon-server-go/internal/game/gameerr"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"
)

// poolIface is the subset of pgxpool.Pool the repository uses. pgxmock's
// pool satisfies it in tests.
type poolIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const schemaSQL = `CREATE TABLE IF NOT EXISTS sessions (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL DEFAULT '',
	document   JSONB NOT NULL,
	checksum   TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// SessionRecord is one stored session document.
type SessionRecord struct {
	ID        string
	Name      string
	Document  []byte
	Checksum  string
	UpdatedAt time.Time
}

// SessionSummary lists a stored session without its document.
type SessionSummary struct {
	ID        string
	Name      string
	Checksum  string
	UpdatedAt time.Time
}

// SessionRepository stores exported session documents.
type SessionRepository struct {
	pool poolIface
}

// NewSessionRepository creates a repository on pool.
func NewSessionRepository(pool poolIface) *SessionRepository {
	return &SessionRepository{pool: pool}
}

// EnsureSchema creates the sessions table if it does not exist.
func (r *SessionRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schemaSQL); err != nil {
		return oops.With("operation", "ensure session schema").Wrap(err)
	}
	return nil
}

// Save inserts or replaces a session document.
func (r *SessionRepository) Save(ctx context.Context, rec SessionRecord) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO sessions (id, name, document, checksum, updated_at)
		 VALUES ($1, $2, $3, $4, now())
		 ON CONFLICT (id) DO UPDATE SET name = $2, document = $3, checksum = $4, updated_at = now()`,
		rec.ID, rec.Name, rec.Document, rec.Checksum)
	if err != nil {
		return oops.With("operation", "save session").With("session_id", rec.ID).Wrap(err)
	}
	return nil
}

// Load returns the stored document for id.
func (r *SessionRepository) Load(ctx context.Context, id string) (*SessionRecord, error) {
	rec := SessionRecord{ID: id}
	err := r.pool.QueryRow(ctx,
		`SELECT name, document, checksum, updated_at FROM sessions WHERE id = $1`,
		id).Scan(&rec.Name, &rec.Document, &rec.Checksum, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.With("operation", "load session").With("session_id", id).Wrap(gameerr.NotFound("stored session", id))
	}
	if err != nil {
		return nil, oops.With("operation", "load session").With("session_id", id).Wrap(err)
	}
	return &rec, nil
}

// List returns every stored session, most recently updated first.
func (r *SessionRepository) List(ctx context.Context) ([]SessionSummary, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, checksum, updated_at FROM sessions ORDER BY updated_at DESC, id`)
	if err != nil {
		return nil, oops.With("operation", "list sessions").Wrap(err)
	}
	defer rows.Close()

	var out []SessionSummary
	for rows.Next() {
		var s SessionSummary
		if err := rows.Scan(&s.ID, &s.Name, &s.Checksum, &s.UpdatedAt); err != nil {
			return nil, oops.With("operation", "scan session row").Wrap(err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.With("operation", "iterate sessions").Wrap(err)
	}
	return out, nil
}

// Delete removes a stored session.
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return oops.With("operation", "delete session").With("session_id", id).Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.With("operation", "delete session").With("session_id", id).Wrap(gameerr.NotFound("stored session", id))
	}
	return nil
}
