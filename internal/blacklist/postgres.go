package blacklist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// PostgresStore persists blacklist entries in the session_blacklist table.
// Schema lives in internal/db/migrations/0001_init.up.sql.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore returns a blacklist store backed by the given database.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Add(ctx context.Context, entry Entry) error {
	const q = `
		INSERT INTO session_blacklist (session_id, subject_id, reason, blacklisted_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (session_id) DO NOTHING`

	_, err := s.db.ExecContext(ctx, q,
		entry.SessionID, entry.SubjectID, entry.Reason,
		entry.BlacklistedAt.UTC(), entry.ExpiresAt.UTC())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *PostgresStore) Contains(ctx context.Context, sessionID string) (bool, error) {
	const q = `
		SELECT expires_at FROM session_blacklist
		WHERE session_id = $1`

	var expiresAt time.Time
	err := s.db.QueryRowContext(ctx, q, sessionID).Scan(&expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return time.Now().Before(expiresAt), nil
}

func (s *PostgresStore) CleanupExpired(ctx context.Context) (int64, error) {
	const q = `DELETE FROM session_blacklist WHERE expires_at <= NOW()`

	res, err := s.db.ExecContext(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return removed, nil
}
