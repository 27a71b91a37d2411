package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shoplens/shoplens-backend/internal/repository"
)

// SessionRepository implements repository.SessionRepository using PostgreSQL
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository creates a new PostgreSQL session repository
func NewSessionRepository(db *sqlx.DB) repository.SessionRepository {
	return &SessionRepository{db: db}
}

// Create creates a new session
func (r *SessionRepository) Create(ctx context.Context, session *repository.Session) error {
	if session.ID == "" {
		session.ID = uuid.New().String()
	}
	now := time.Now()
	session.CreatedAt = now
	session.LastMessageAt = now
	if session.Status == "" {
		session.Status = repository.SessionActive
	}
	if len(session.Metadata) == 0 {
		session.Metadata = []byte("{}")
	}

	query := `
		INSERT INTO sessions (id, user_id, title, status, created_at, last_message_at, metadata)
		VALUES (:id, :user_id, :title, :status, :created_at, :last_message_at, :metadata)
	`

	_, err := r.db.NamedExecContext(ctx, query, session)
	return err
}

// Get retrieves a session by ID, scoped to the owning user
func (r *SessionRepository) Get(ctx context.Context, userID uuid.UUID, id string) (*repository.Session, error) {
	var session repository.Session
	query := `
		SELECT id, user_id, title, status, created_at, last_message_at, metadata
		FROM sessions
		WHERE id = $1 AND user_id = $2
	`

	err := r.db.GetContext(ctx, &session, query, id, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	return &session, nil
}

// List retrieves the user's sessions ordered by recent activity
func (r *SessionRepository) List(ctx context.Context, userID uuid.UUID, status string, limit, offset int) ([]*repository.Session, error) {
	sessions := []*repository.Session{}
	query := `
		SELECT id, user_id, title, status, created_at, last_message_at, metadata
		FROM sessions
		WHERE user_id = $1
	`
	args := []interface{}{userID}
	if status != "" {
		query += " AND status = $2 ORDER BY last_message_at DESC LIMIT $3 OFFSET $4"
		args = append(args, status, limit, offset)
	} else {
		query += " ORDER BY last_message_at DESC LIMIT $2 OFFSET $3"
		args = append(args, limit, offset)
	}

	if err := r.db.SelectContext(ctx, &sessions, query, args...); err != nil {
		return nil, err
	}

	return sessions, nil
}

// Count returns the number of sessions matching the filter
func (r *SessionRepository) Count(ctx context.Context, userID uuid.UUID, status string) (int, error) {
	var count int
	if status != "" {
		err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM sessions WHERE user_id = $1 AND status = $2", userID, status)
		return count, err
	}
	err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM sessions WHERE user_id = $1", userID)
	return count, err
}

// Archive marks a session archived. Archiving an archived session is a
// no-op, so the operation is idempotent.
func (r *SessionRepository) Archive(ctx context.Context, userID uuid.UUID, id string) (*repository.Session, error) {
	var session repository.Session
	query := `
		UPDATE sessions SET status = $1
		WHERE id = $2 AND user_id = $3
		RETURNING id, user_id, title, status, created_at, last_message_at, metadata
	`

	err := r.db.GetContext(ctx, &session, query, repository.SessionArchived, id, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	return &session, nil
}

// TouchLastMessage bumps the session's last-message timestamp
func (r *SessionRepository) TouchLastMessage(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, "UPDATE sessions SET last_message_at = $1 WHERE id = $2", at, id)
	return err
}

// UpdateMetadata replaces the denormalized session rollup
func (r *SessionRepository) UpdateMetadata(ctx context.Context, id string, meta repository.SessionMetadata) error {
	raw, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, "UPDATE sessions SET metadata = $1 WHERE id = $2", raw, id)
	return err
}
