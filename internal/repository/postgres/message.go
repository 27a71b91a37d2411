package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shoplens/shoplens-backend/internal/repository"
)

// MessageRepository implements repository.MessageRepository using PostgreSQL
type MessageRepository struct {
	db *sqlx.DB
}

// NewMessageRepository creates a new PostgreSQL message repository
func NewMessageRepository(db *sqlx.DB) repository.MessageRepository {
	return &MessageRepository{db: db}
}

// Create creates a new message. Messages are immutable after creation.
func (r *MessageRepository) Create(ctx context.Context, message *repository.Message) error {
	if message.ID == "" {
		message.ID = uuid.New().String()
	}
	message.CreatedAt = time.Now()

	if len(message.IterationData) == 0 {
		message.IterationData = []byte("{}")
	}

	query := `
		INSERT INTO messages (id, session_id, user_id, role, content, iteration_data, tokens_used, model, created_at)
		VALUES (:id, :session_id, :user_id, :role, :content, :iteration_data, :tokens_used, :model, :created_at)
	`

	_, err := r.db.NamedExecContext(ctx, query, message)
	return err
}

// ListBySession retrieves messages for a session, newest first. A zero
// `before` means no cursor.
func (r *MessageRepository) ListBySession(ctx context.Context, userID uuid.UUID, sessionID string, limit int, before time.Time) ([]*repository.Message, error) {
	messages := []*repository.Message{}
	query := `
		SELECT id, session_id, user_id, role, content, iteration_data, tokens_used, model, created_at
		FROM messages
		WHERE session_id = $1 AND user_id = $2
	`
	args := []interface{}{sessionID, userID}
	if !before.IsZero() {
		query += " AND created_at < $3 ORDER BY created_at DESC LIMIT $4"
		args = append(args, before, limit)
	} else {
		query += " ORDER BY created_at DESC LIMIT $3"
		args = append(args, limit)
	}

	if err := r.db.SelectContext(ctx, &messages, query, args...); err != nil {
		return nil, err
	}

	return messages, nil
}

// CountBySessionRole counts a session's messages with the given role
func (r *MessageRepository) CountBySessionRole(ctx context.Context, sessionID, role string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM messages WHERE session_id = $1 AND role = $2", sessionID, role)
	return count, err
}
