// Package streaming carries orchestration run events to a client over a
// long-lived connection. Each run owns exactly one event channel; there is
// no shared emitter state between runs.
package streaming

// EventName identifies an event frame
type EventName string

const (
	EventSession   EventName = "session"
	EventIteration EventName = "iteration"
	EventChunk     EventName = "chunk"
	EventComplete  EventName = "complete"
	EventError     EventName = "error"
)

// Event is one typed frame pushed to the client
type Event struct {
	Name EventName   `json:"event"`
	Data interface{} `json:"data"`
}

// SessionPayload opens a run
type SessionPayload struct {
	SessionID string `json:"sessionId"`
	MessageID string `json:"messageId"`
	Status    string `json:"status"`
}

// IterationPayload reports one planner/researcher cycle
type IterationPayload struct {
	Iteration   int  `json:"iteration"`
	IssuesFound int  `json:"issuesFound"`
	Satisfied   bool `json:"satisfied"`
	TokensUsed  int  `json:"tokensUsed"`
}

// ChunkPayload carries one piece of the final answer. Complete marks the
// last piece.
type ChunkPayload struct {
	Chunk    string `json:"chunk"`
	Complete bool   `json:"complete"`
}

// CompletePayload closes a successful run
type CompletePayload struct {
	MessageID       string `json:"messageId"`
	TotalIterations int    `json:"totalIterations"`
	TotalTokens     int    `json:"totalTokens"`
	Timestamp       string `json:"timestamp"`
}

// ErrorPayload closes a failed run. Clients must also treat a transport
// close without a complete event as a failed run.
type ErrorPayload struct {
	Error   string `json:"error"`
	Details string `json:"details"`
}
