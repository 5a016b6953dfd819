package auditstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// PostgresStore persists audit events in the audit_log table. Schema lives
// in internal/db/migrations/0001_init.up.sql.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore returns an audit store backed by the given database.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Insert(ctx context.Context, event Event) error {
	const q = `
		INSERT INTO audit_log (action, subject_id, subject_email, ip_address, user_agent, success, error_message, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	var details sql.NullString
	if len(event.Details) > 0 {
		raw, err := json.Marshal(event.Details)
		if err == nil {
			details = sql.NullString{String: string(raw), Valid: true}
		}
	}

	_, err := s.db.ExecContext(ctx, q,
		event.Action,
		nullable(event.SubjectID),
		nullable(event.SubjectEmail),
		event.IP,
		event.UserAgent,
		event.Success,
		nullable(event.ErrorMessage),
		details,
		event.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *PostgresStore) RecentEvents(ctx context.Context, limit int, subjectID string) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}

	const base = `
		SELECT action, subject_id, subject_email, ip_address, user_agent, success, error_message, details, created_at
		FROM audit_log`

	var rows *sql.Rows
	var err error
	if subjectID != "" {
		rows, err = s.db.QueryContext(ctx, base+` WHERE subject_id = $1 ORDER BY created_at DESC LIMIT $2`, subjectID, limit)
	} else {
		rows, err = s.db.QueryContext(ctx, base+` ORDER BY created_at DESC LIMIT $1`, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		var subject, email, errMsg, details sql.NullString
		if err := rows.Scan(&e.Action, &subject, &email, &e.IP, &e.UserAgent, &e.Success, &errMsg, &details, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		e.SubjectID = subject.String
		e.SubjectEmail = email.String
		e.ErrorMessage = errMsg.String
		if details.Valid {
			_ = json.Unmarshal([]byte(details.String), &e.Details)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return out, nil
}

func (s *PostgresStore) FailedLogins(ctx context.Context, ip, email string, since time.Time) (FailureWindow, error) {
	// IP OR email match is intentional: either axis alone is abuse signal.
	const q = `
		SELECT COUNT(*), COALESCE(MAX(created_at), 'epoch'::timestamptz)
		FROM audit_log
		WHERE action = $1
		  AND success = FALSE
		  AND created_at >= $2
		  AND (($3 <> '' AND ip_address = $3) OR ($4 <> '' AND subject_email = $4))`

	var window FailureWindow
	var last time.Time
	err := s.db.QueryRowContext(ctx, q, ActionLogin, since.UTC(), ip, email).Scan(&window.Count, &last)
	if err != nil {
		return FailureWindow{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if window.Count > 0 {
		window.LastFailureAt = last
	}
	return window, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
