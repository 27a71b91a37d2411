package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Session statuses. The only legal transition is active -> archived.
const (
	SessionActive   = "active"
	SessionArchived = "archived"
)

// Message roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// SessionMetadata is the denormalized rollup stored on a session, refreshed
// after every completed assistant message.
type SessionMetadata struct {
	TotalIterations     int     `json:"total_iterations"`
	AverageIterations   float64 `json:"average_iterations"`
	FinalResponseLength int     `json:"final_response_length"`
}

// Session is a conversation container owned by one user.
type Session struct {
	ID            string    `db:"id" json:"id"`
	UserID        uuid.UUID `db:"user_id" json:"user_id"`
	Title         string    `db:"title" json:"title"`
	Status        string    `db:"status" json:"status"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	LastMessageAt time.Time `db:"last_message_at" json:"last_message_at"`
	Metadata      []byte    `db:"metadata" json:"-"`
}

// IterationSummary is duplicated onto assistant messages for fast reads;
// the per-iteration detail lives in iteration_logs.
type IterationSummary struct {
	TotalIterations     int    `json:"total_iterations"`
	ResearcherSatisfied bool   `json:"researcher_satisfied"`
	FinalResponse       string `json:"final_response"`
}

// Message is one conversation turn. Immutable after creation.
type Message struct {
	ID            string    `db:"id" json:"id"`
	SessionID     string    `db:"session_id" json:"session_id"`
	UserID        uuid.UUID `db:"user_id" json:"user_id"`
	Role          string    `db:"role" json:"role"`
	Content       string    `db:"content" json:"content"`
	IterationData []byte    `db:"iteration_data" json:"-"`
	TokensUsed    int       `db:"tokens_used" json:"tokens_used"`
	Model         string    `db:"model" json:"model"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// Evaluation is the researcher's structured critique of one planner output.
type Evaluation struct {
	Summary   string   `json:"summary"`
	Issues    []string `json:"issues"`
	Satisfied bool     `json:"satisfied"`
}

// IterationLog is one row per planner/researcher exchange. Append-only;
// iteration numbers are 1-based and contiguous per message.
type IterationLog struct {
	ID                 string    `db:"id" json:"id"`
	MessageID          string    `db:"message_id" json:"message_id"`
	SessionID          string    `db:"session_id" json:"session_id"`
	UserID             uuid.UUID `db:"user_id" json:"user_id"`
	IterationNumber    int       `db:"iteration_number" json:"iteration_number"`
	PlannerResponse    string    `db:"planner_response" json:"planner_response"`
	Evaluation         []byte    `db:"evaluation" json:"-"`
	IssuesFromPrevious []byte    `db:"issues_from_previous" json:"-"`
	PlannerTokens      int       `db:"planner_tokens" json:"planner_tokens"`
	ResearcherTokens   int       `db:"researcher_tokens" json:"researcher_tokens"`
	TotalTokens        int       `db:"total_tokens" json:"total_tokens"`
	ProcessingTimeMs   int64     `db:"processing_time_ms" json:"processing_time_ms"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
}

// User is an authenticated account. Only the identity contract matters to
// the core; storage reads are scoped by User.ID.
type User struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// SessionRepository defines session storage operations. All reads are
// scoped to the owning user.
type SessionRepository interface {
	Create(ctx context.Context, session *Session) error
	Get(ctx context.Context, userID uuid.UUID, id string) (*Session, error)
	List(ctx context.Context, userID uuid.UUID, status string, limit, offset int) ([]*Session, error)
	Count(ctx context.Context, userID uuid.UUID, status string) (int, error)
	Archive(ctx context.Context, userID uuid.UUID, id string) (*Session, error)
	TouchLastMessage(ctx context.Context, id string, at time.Time) error
	UpdateMetadata(ctx context.Context, id string, meta SessionMetadata) error
}

// MessageRepository defines message storage operations. ListBySession
// returns messages newest-first; callers re-order to chronological.
type MessageRepository interface {
	Create(ctx context.Context, message *Message) error
	ListBySession(ctx context.Context, userID uuid.UUID, sessionID string, limit int, before time.Time) ([]*Message, error)
	CountBySessionRole(ctx context.Context, sessionID, role string) (int, error)
}

// IterationLogRepository is the append-only audit trail for orchestration
// runs. Rows are never updated or deleted.
type IterationLogRepository interface {
	Append(ctx context.Context, log *IterationLog) error
	ListByMessage(ctx context.Context, userID uuid.UUID, messageID string) ([]*IterationLog, error)
	SumTokensByMessage(ctx context.Context, messageID string) (int, error)
	CountBySession(ctx context.Context, sessionID string) (int, error)
}

// UserRepository defines user account storage operations
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
}
