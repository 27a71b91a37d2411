package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/shoplens/shoplens-backend/internal/llm"
	"github.com/shoplens/shoplens-backend/internal/repository"
	"github.com/shoplens/shoplens-backend/internal/streaming"
)

// Options tunes the planner/researcher loop. The issue-list thresholds and
// chunk size are policy constants carried from the original deployment;
// ChunkDelay is cosmetic pacing and may be zero.
type Options struct {
	MaxIterations int
	IssueListMax  int
	IssueListKeep int
	ChunkSize     int
	ChunkDelay    time.Duration
}

// DefaultOptions returns the production tuning
func DefaultOptions() Options {
	return Options{
		MaxIterations: 10,
		IssueListMax:  20,
		IssueListKeep: 10,
		ChunkSize:     50,
		ChunkDelay:    50 * time.Millisecond,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxIterations <= 0 {
		o.MaxIterations = d.MaxIterations
	}
	if o.IssueListMax <= 0 {
		o.IssueListMax = d.IssueListMax
	}
	if o.IssueListKeep <= 0 {
		o.IssueListKeep = d.IssueListKeep
	}
	if o.ChunkSize <= 0 {
		o.ChunkSize = d.ChunkSize
	}
	return o
}

// OrchestratorService drives the planner/researcher refinement loop and
// owns session/message reads and writes. One run per inbound message,
// strictly sequential inside a run; independent runs share no mutable
// state.
type OrchestratorService struct {
	sessions   repository.SessionRepository
	messages   repository.MessageRepository
	iterations repository.IterationLogRepository
	gateway    llm.Gateway
	opts       Options
	log        *logrus.Logger
}

// NewOrchestratorService creates an orchestrator
func NewOrchestratorService(
	sessions repository.SessionRepository,
	messages repository.MessageRepository,
	iterations repository.IterationLogRepository,
	gateway llm.Gateway,
	opts Options,
	log *logrus.Logger,
) *OrchestratorService {
	return &OrchestratorService{
		sessions:   sessions,
		messages:   messages,
		iterations: iterations,
		gateway:    gateway,
		opts:       opts.withDefaults(),
		log:        log,
	}
}

// CreateSession creates a conversation container for the user
func (s *OrchestratorService) CreateSession(ctx context.Context, userID uuid.UUID, title string) (*repository.Session, error) {
	if title == "" {
		title = "Chat " + time.Now().Format("1/2/2006")
	}

	session := &repository.Session{
		UserID: userID,
		Title:  title,
		Status: repository.SessionActive,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, &PersistenceError{Op: "create session", Err: err}
	}

	return session, nil
}

// ListSessions returns a page of the user's sessions, most recently active
// first, plus the total count for pagination.
func (s *OrchestratorService) ListSessions(ctx context.Context, userID uuid.UUID, status string, page, limit int) ([]*repository.Session, int, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	sessions, err := s.sessions.List(ctx, userID, status, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.sessions.Count(ctx, userID, status)
	if err != nil {
		return nil, 0, err
	}

	return sessions, total, nil
}

// GetSessionMessages returns a session and a page of its messages in
// chronological order. The storage layer reads newest-first so the `before`
// cursor pages backwards through history.
func (s *OrchestratorService) GetSessionMessages(ctx context.Context, userID uuid.UUID, sessionID string, limit int, before time.Time) ([]*repository.Message, *repository.Session, error) {
	session, err := s.getOwnedSession(ctx, userID, sessionID)
	if err != nil {
		return nil, nil, err
	}

	if limit < 1 || limit > 200 {
		limit = 50
	}

	messages, err := s.messages.ListBySession(ctx, userID, sessionID, limit, before)
	if err != nil {
		return nil, nil, err
	}

	// Storage order is newest-first; callers get chronological.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, session, nil
}

// ArchiveSession archives a session. Idempotent: archiving an archived
// session succeeds and leaves it archived.
func (s *OrchestratorService) ArchiveSession(ctx context.Context, userID uuid.UUID, sessionID string) (*repository.Session, error) {
	if _, err := uuid.Parse(sessionID); err != nil {
		return nil, ErrSessionNotFound
	}

	session, err := s.sessions.Archive(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}

	return session, nil
}

// SendMessage validates the request, persists the user's message, and
// starts an orchestration run. Errors here happen before any transport is
// opened and surface synchronously; once the event channel is returned,
// all failures degrade to an error event followed by channel close.
func (s *OrchestratorService) SendMessage(ctx context.Context, userID uuid.UUID, sessionID, content string) (<-chan streaming.Event, error) {
	if sessionID == "" || strings.TrimSpace(content) == "" {
		return nil, &ValidationError{Msg: "Session ID and message content are required"}
	}

	if _, err := s.getOwnedSession(ctx, userID, sessionID); err != nil {
		return nil, err
	}

	userMsg := &repository.Message{
		SessionID: sessionID,
		UserID:    userID,
		Role:      repository.RoleUser,
		Content:   content,
	}
	if err := s.messages.Create(ctx, userMsg); err != nil {
		return nil, &PersistenceError{Op: "user message", Err: err}
	}
	if err := s.sessions.TouchLastMessage(ctx, sessionID, time.Now()); err != nil {
		s.log.WithError(err).WithField("session_id", sessionID).Warn("failed to bump session activity")
	}

	events := make(chan streaming.Event, 16)
	go s.run(ctx, events, userID, sessionID, userMsg.ID, content)

	return events, nil
}

// run executes one orchestration: Started -> Iterating -> {Satisfied |
// IterationCapReached} -> Finalizing -> Completed, with Errored reachable
// from any point once the channel is open.
func (s *OrchestratorService) run(ctx context.Context, events chan<- streaming.Event, userID uuid.UUID, sessionID, userMessageID, query string) {
	defer close(events)

	runLog := s.log.WithFields(logrus.Fields{
		"session_id": sessionID,
		"message_id": userMessageID,
	})

	emit := func(name streaming.EventName, data interface{}) {
		select {
		case events <- streaming.Event{Name: name, Data: data}:
		case <-ctx.Done():
		}
	}
	fail := func(stage string, err error) {
		runLog.WithError(err).WithField("stage", stage).Error("orchestration run failed")
		emit(streaming.EventError, streaming.ErrorPayload{
			Error:   "Failed to process message",
			Details: err.Error(),
		})
	}

	emit(streaming.EventSession, streaming.SessionPayload{
		SessionID: sessionID,
		MessageID: userMessageID,
		Status:    "processing",
	})

	issues := []string{}
	var (
		finalText  string
		satisfied  bool
		iterations int
	)

	for i := 1; i <= s.opts.MaxIterations; i++ {
		// Cheap disconnect check before each costly model call.
		if ctx.Err() != nil {
			runLog.WithField("iteration", i).Warn("caller gone, abandoning run")
			return
		}

		start := time.Now()

		plan, err := s.gateway.PlanOrRevise(ctx, query, issues)
		if err != nil {
			fail("planner", err)
			return
		}
		eval, err := s.gateway.Evaluate(ctx, query, plan.Text)
		if err != nil {
			fail("researcher", err)
			return
		}

		latencyMs := time.Since(start).Milliseconds()

		evalJSON, err := json.Marshal(repository.Evaluation{
			Summary:   eval.Summary,
			Issues:    eval.Issues,
			Satisfied: eval.Satisfied,
		})
		if err != nil {
			fail("iteration log", err)
			return
		}
		carriedJSON, err := json.Marshal(issues)
		if err != nil {
			fail("iteration log", err)
			return
		}

		row := &repository.IterationLog{
			MessageID:          userMessageID,
			SessionID:          sessionID,
			UserID:             userID,
			IterationNumber:    i,
			PlannerResponse:    plan.Text,
			Evaluation:         evalJSON,
			IssuesFromPrevious: carriedJSON,
			PlannerTokens:      plan.Tokens,
			ResearcherTokens:   eval.Tokens,
			TotalTokens:        plan.Tokens + eval.Tokens,
			ProcessingTimeMs:   latencyMs,
		}
		if err := s.iterations.Append(ctx, row); err != nil {
			fail("iteration log", &PersistenceError{Op: "iteration log", Err: err})
			return
		}

		emit(streaming.EventIteration, streaming.IterationPayload{
			Iteration:   i,
			IssuesFound: len(eval.Issues),
			Satisfied:   eval.Satisfied,
			TokensUsed:  row.TotalTokens,
		})

		iterations = i
		finalText = plan.Text

		if eval.Satisfied {
			satisfied = true
			break
		}

		if len(eval.Issues) > 0 {
			issues = append(issues, eval.Issues...)
			// Bias toward recent critique: past the cap, drop the oldest
			// issues so the planner prompt cannot grow without bound.
			if len(issues) > s.opts.IssueListMax {
				issues = issues[len(issues)-s.opts.IssueListKeep:]
			}
		}
	}

	// Finalizing. On cap-out the last planner output still ships:
	// best-effort delivery beats returning nothing after ten model calls.
	s.streamChunks(ctx, emit, finalText)

	totalTokens, err := s.iterations.SumTokensByMessage(ctx, userMessageID)
	if err != nil {
		fail("token aggregate", &PersistenceError{Op: "token aggregate", Err: err})
		return
	}

	summaryJSON, err := json.Marshal(repository.IterationSummary{
		TotalIterations:     iterations,
		ResearcherSatisfied: satisfied,
		FinalResponse:       finalText,
	})
	if err != nil {
		fail("assistant message", err)
		return
	}

	assistant := &repository.Message{
		SessionID:     sessionID,
		UserID:        userID,
		Role:          repository.RoleAssistant,
		Content:       finalText,
		IterationData: summaryJSON,
		TokensUsed:    totalTokens,
		Model:         s.gateway.Model(),
	}
	if err := s.messages.Create(ctx, assistant); err != nil {
		fail("assistant message", &PersistenceError{Op: "assistant message", Err: err})
		return
	}

	if err := s.refreshSessionMetadata(ctx, sessionID, len(finalText)); err != nil {
		// The rollup is derived data, recomputed on the next completion;
		// the run itself succeeded.
		runLog.WithError(err).Warn("failed to refresh session metadata")
	}
	if err := s.sessions.TouchLastMessage(ctx, sessionID, time.Now()); err != nil {
		runLog.WithError(err).Warn("failed to bump session activity")
	}

	runLog.WithFields(logrus.Fields{
		"iterations": iterations,
		"satisfied":  satisfied,
		"tokens":     totalTokens,
	}).Info("orchestration run completed")

	emit(streaming.EventComplete, streaming.CompletePayload{
		MessageID:       assistant.ID,
		TotalIterations: iterations,
		TotalTokens:     totalTokens,
		Timestamp:       time.Now().UTC().Format(time.RFC3339),
	})
}

// streamChunks emits the final text in fixed-size rune chunks, the last
// one flagged complete. An empty text emits nothing; the complete event
// still follows.
func (s *OrchestratorService) streamChunks(ctx context.Context, emit func(streaming.EventName, interface{}), text string) {
	runes := []rune(text)
	for off := 0; off < len(runes); off += s.opts.ChunkSize {
		end := off + s.opts.ChunkSize
		if end > len(runes) {
			end = len(runes)
		}
		emit(streaming.EventChunk, streaming.ChunkPayload{
			Chunk:    string(runes[off:end]),
			Complete: end == len(runes),
		})
		if s.opts.ChunkDelay > 0 && end < len(runes) {
			select {
			case <-time.After(s.opts.ChunkDelay):
			case <-ctx.Done():
			}
		}
	}
}

// refreshSessionMetadata recomputes the denormalized rollup from durable
// rows rather than trusting in-memory counters.
func (s *OrchestratorService) refreshSessionMetadata(ctx context.Context, sessionID string, finalLen int) error {
	totalIterations, err := s.iterations.CountBySession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("count iterations: %w", err)
	}
	assistantCount, err := s.messages.CountBySessionRole(ctx, sessionID, repository.RoleAssistant)
	if err != nil {
		return fmt.Errorf("count assistant messages: %w", err)
	}

	avg := 0.0
	if assistantCount > 0 {
		avg = float64(totalIterations) / float64(assistantCount)
	}

	return s.sessions.UpdateMetadata(ctx, sessionID, repository.SessionMetadata{
		TotalIterations:     totalIterations,
		AverageIterations:   avg,
		FinalResponseLength: finalLen,
	})
}

func (s *OrchestratorService) getOwnedSession(ctx context.Context, userID uuid.UUID, sessionID string) (*repository.Session, error) {
	// A malformed id can't match anything; collapse it with not-found so
	// the answer never distinguishes absent from forbidden.
	if _, err := uuid.Parse(sessionID); err != nil {
		return nil, ErrSessionNotFound
	}

	session, err := s.sessions.Get(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	return session, nil
}
