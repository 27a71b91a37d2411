package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
	"github.com/shoplens/shoplens-backend/internal/config"
)

const ragMaxAttempts = 3

// UpstreamError wraps a provider failure. Rate-limit errors on the RAG
// path are retried before one of these is returned; everywhere else the
// first failure is fatal for the current run.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("llm %s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// PlannerResult is one planner generation
type PlannerResult struct {
	Text   string
	Tokens int
}

// EvaluationResult is the researcher's structured critique
type EvaluationResult struct {
	Summary   string
	Issues    []string
	Satisfied bool
	Tokens    int
}

// Gateway issues the three model calls the service needs
type Gateway interface {
	// PlanOrRevise drafts an answer, or revises one against the prior
	// issue list when it is non-empty. Empty model output is returned as
	// empty text, not an error: the researcher will flag it.
	PlanOrRevise(ctx context.Context, userQuery string, priorIssues []string) (*PlannerResult, error)

	// Evaluate critiques a planner output. Unparseable critiques degrade
	// to a synthetic unsatisfied evaluation instead of failing the loop.
	Evaluate(ctx context.Context, userQuery, plannerText string) (*EvaluationResult, error)

	// GenerateFromContext produces a single-shot retrieval-augmented
	// answer, retrying rate-limit errors with linear backoff.
	GenerateFromContext(ctx context.Context, userQuery, context string) (string, error)

	// Model reports the model identifier recorded on assistant messages.
	Model() string
}

// GroqGateway talks to an OpenAI-compatible completion API (Groq by default)
type GroqGateway struct {
	client    *openai.Client
	model     string
	timeout   time.Duration
	retryBase time.Duration
	log       *logrus.Logger
}

// NewGroqGateway creates a gateway from config
func NewGroqGateway(cfg config.LLMConfig, log *logrus.Logger) *GroqGateway {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &GroqGateway{
		client:    openai.NewClientWithConfig(clientCfg),
		model:     cfg.Model,
		timeout:   timeout,
		retryBase: 5 * time.Second,
		log:       log,
	}
}

// Model returns the configured model identifier
func (g *GroqGateway) Model() string {
	return g.model
}

// PlanOrRevise implements Gateway
func (g *GroqGateway) PlanOrRevise(ctx context.Context, userQuery string, priorIssues []string) (*PlannerResult, error) {
	text, usage, err := g.complete(ctx, plannerPrompt(userQuery, priorIssues), 0.7, 2048, false)
	if err != nil {
		return nil, &UpstreamError{Op: "planner", Err: err}
	}

	return &PlannerResult{Text: text, Tokens: tokenCount(usage, text)}, nil
}

// Evaluate implements Gateway
func (g *GroqGateway) Evaluate(ctx context.Context, userQuery, plannerText string) (*EvaluationResult, error) {
	text, usage, err := g.complete(ctx, researcherPrompt(userQuery, plannerText), 0.5, 1024, true)
	if err != nil {
		return nil, &UpstreamError{Op: "researcher", Err: err}
	}

	summary, issues, satisfied := parseEvaluation(text)
	if !satisfied && len(issues) == 1 && issues[0] == parseFailureIssue {
		g.log.WithField("raw", text).Warn("researcher critique was not valid JSON, retrying against it")
	}

	return &EvaluationResult{
		Summary:   summary,
		Issues:    issues,
		Satisfied: satisfied,
		Tokens:    tokenCount(usage, text),
	}, nil
}

// GenerateFromContext implements Gateway
func (g *GroqGateway) GenerateFromContext(ctx context.Context, userQuery, contextText string) (string, error) {
	prompt := ragPrompt(userQuery, contextText)

	var lastErr error
	for attempt := 1; attempt <= ragMaxAttempts; attempt++ {
		text, _, err := g.complete(ctx, prompt, 0.7, 1024, false)
		if err == nil {
			if text == "" {
				return "No response generated.", nil
			}
			return text, nil
		}
		if !isRateLimited(err) {
			return "", &UpstreamError{Op: "rag", Err: err}
		}

		lastErr = err
		delay := time.Duration(attempt) * g.retryBase
		g.log.WithFields(logrus.Fields{
			"attempt": attempt,
			"delay":   delay.String(),
		}).Warn("rag generation rate limited, backing off")

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", &UpstreamError{Op: "rag", Err: ctx.Err()}
		}
	}

	return "", &UpstreamError{Op: "rag", Err: fmt.Errorf("rate limited after %d attempts: %w", ragMaxAttempts, lastErr)}
}

// complete issues one chat completion with the provider-level timeout
// applied. Empty content is a valid result, not an error.
func (g *GroqGateway) complete(ctx context.Context, prompt string, temperature float32, maxTokens int, jsonOutput bool) (string, int, error) {
	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}
	if jsonOutput {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := g.client.CreateChatCompletion(callCtx, req)
	if err != nil {
		return "", 0, err
	}

	text := ""
	if len(resp.Choices) > 0 {
		text = resp.Choices[0].Message.Content
	}

	return text, resp.Usage.TotalTokens, nil
}

const parseFailureIssue = "Failed to parse researcher evaluation"

// parseEvaluation extracts the critique JSON object from the raw model
// text, tolerating surrounding prose. Parse failure is itself a defect the
// planner should retry against, so it degrades to a synthetic unsatisfied
// evaluation instead of an error.
func parseEvaluation(raw string) (summary string, issues []string, satisfied bool) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		var payload struct {
			Summary   string   `json:"planner_response_summary"`
			Issues    []string `json:"issues"`
			Satisfied bool     `json:"is_satisfied"`
		}
		if err := json.Unmarshal([]byte(raw[start:end+1]), &payload); err == nil {
			if payload.Issues == nil {
				payload.Issues = []string{}
			}
			return payload.Summary, payload.Issues, payload.Satisfied
		}
	}

	return "Parser error", []string{parseFailureIssue}, false
}

// tokenCount prefers the upstream-reported usage; when the provider omits
// it, a deterministic chars/4 estimate keeps downstream aggregation off
// nulls.
func tokenCount(usage int, text string) int {
	if usage > 0 {
		return usage
	}
	return estimateTokens(text)
}

func estimateTokens(text string) int {
	return (len(text) + 3) / 4
}

func isRateLimited(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests
	}
	return false
}
