package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shoplens/shoplens-backend/internal/repository"
)

// IterationLogRepository implements repository.IterationLogRepository using
// PostgreSQL. Rows are append-only; there are no update or delete paths.
type IterationLogRepository struct {
	db *sqlx.DB
}

// NewIterationLogRepository creates a new PostgreSQL iteration log repository
func NewIterationLogRepository(db *sqlx.DB) repository.IterationLogRepository {
	return &IterationLogRepository{db: db}
}

// Append inserts one iteration row
func (r *IterationLogRepository) Append(ctx context.Context, log *repository.IterationLog) error {
	if log.ID == "" {
		log.ID = uuid.New().String()
	}
	log.CreatedAt = time.Now()

	if len(log.Evaluation) == 0 {
		log.Evaluation = []byte("{}")
	}
	if len(log.IssuesFromPrevious) == 0 {
		log.IssuesFromPrevious = []byte("[]")
	}

	query := `
		INSERT INTO iteration_logs (
			id, message_id, session_id, user_id, iteration_number,
			planner_response, evaluation, issues_from_previous,
			planner_tokens, researcher_tokens, total_tokens,
			processing_time_ms, created_at
		) VALUES (
			:id, :message_id, :session_id, :user_id, :iteration_number,
			:planner_response, :evaluation, :issues_from_previous,
			:planner_tokens, :researcher_tokens, :total_tokens,
			:processing_time_ms, :created_at
		)
	`

	_, err := r.db.NamedExecContext(ctx, query, log)
	return err
}

// ListByMessage retrieves the audit trail for one message in iteration order
func (r *IterationLogRepository) ListByMessage(ctx context.Context, userID uuid.UUID, messageID string) ([]*repository.IterationLog, error) {
	logs := []*repository.IterationLog{}
	query := `
		SELECT id, message_id, session_id, user_id, iteration_number,
		       planner_response, evaluation, issues_from_previous,
		       planner_tokens, researcher_tokens, total_tokens,
		       processing_time_ms, created_at
		FROM iteration_logs
		WHERE message_id = $1 AND user_id = $2
		ORDER BY iteration_number ASC
	`

	if err := r.db.SelectContext(ctx, &logs, query, messageID, userID); err != nil {
		return nil, err
	}

	return logs, nil
}

// SumTokensByMessage sums total tokens across all iteration rows for a message
func (r *IterationLogRepository) SumTokensByMessage(ctx context.Context, messageID string) (int, error) {
	var total int
	err := r.db.GetContext(ctx, &total, "SELECT COALESCE(SUM(total_tokens), 0) FROM iteration_logs WHERE message_id = $1", messageID)
	return total, err
}

// CountBySession counts iteration rows across all of a session's messages
func (r *IterationLogRepository) CountBySession(ctx context.Context, sessionID string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM iteration_logs WHERE session_id = $1", sessionID)
	return count, err
}
