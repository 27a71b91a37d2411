package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEvaluation(t *testing.T) {
	tests := []struct {
		name          string
		raw           string
		wantSummary   string
		wantIssues    []string
		wantSatisfied bool
	}{
		{
			name:          "clean json",
			raw:           `{"planner_response_summary":"solid","issues":["too long"],"is_satisfied":false}`,
			wantSummary:   "solid",
			wantIssues:    []string{"too long"},
			wantSatisfied: false,
		},
		{
			name:          "satisfied with no issues",
			raw:           `{"planner_response_summary":"done","issues":[],"is_satisfied":true}`,
			wantSummary:   "done",
			wantIssues:    []string{},
			wantSatisfied: true,
		},
		{
			name:          "json wrapped in prose",
			raw:           "Here is my evaluation:\n{\"planner_response_summary\":\"ok\",\"issues\":[\"a\",\"b\"],\"is_satisfied\":false}\nThanks!",
			wantSummary:   "ok",
			wantIssues:    []string{"a", "b"},
			wantSatisfied: false,
		},
		{
			name:          "null issues normalized to empty",
			raw:           `{"planner_response_summary":"ok","is_satisfied":true}`,
			wantSummary:   "ok",
			wantIssues:    []string{},
			wantSatisfied: true,
		},
		{
			name:          "not json at all",
			raw:           "I think the answer looks fine.",
			wantSummary:   "Parser error",
			wantIssues:    []string{parseFailureIssue},
			wantSatisfied: false,
		},
		{
			name:          "malformed json",
			raw:           `{"planner_response_summary": "broken", "issues": [`,
			wantSummary:   "Parser error",
			wantIssues:    []string{parseFailureIssue},
			wantSatisfied: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			summary, issues, satisfied := parseEvaluation(tt.raw)
			assert.Equal(t, tt.wantSummary, summary)
			assert.Equal(t, tt.wantIssues, issues)
			assert.Equal(t, tt.wantSatisfied, satisfied)
		})
	}
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, estimateTokens(""))
	assert.Equal(t, 1, estimateTokens("a"))
	assert.Equal(t, 1, estimateTokens("abcd"))
	assert.Equal(t, 2, estimateTokens("abcde"))
	assert.Equal(t, 25, estimateTokens(strings.Repeat("x", 100)))
}

func TestTokenCountPrefersUsage(t *testing.T) {
	assert.Equal(t, 42, tokenCount(42, strings.Repeat("x", 400)))
	assert.Equal(t, 100, tokenCount(0, strings.Repeat("x", 400)))
}

func TestPlannerPromptIssueEnumeration(t *testing.T) {
	fresh := plannerPrompt("what sells best?", nil)
	assert.Contains(t, fresh, "No previous issues")

	revised := plannerPrompt("what sells best?", []string{"missing numbers", "too vague"})
	assert.Contains(t, revised, "1. missing numbers")
	assert.Contains(t, revised, "2. too vague")
	assert.NotContains(t, revised, "No previous issues")
}

// ---- httptest-backed gateway tests ----

type completionResponse struct {
	content     string
	totalTokens int
}

func chatCompletionJSON(r completionResponse) string {
	body := map[string]interface{}{
		"id":      "chatcmpl-test",
		"object":  "chat.completion",
		"created": 1,
		"model":   "test-model",
		"choices": []map[string]interface{}{
			{
				"index":         0,
				"message":       map[string]string{"role": "assistant", "content": r.content},
				"finish_reason": "stop",
			},
		},
		"usage": map[string]int{
			"prompt_tokens":     0,
			"completion_tokens": 0,
			"total_tokens":      r.totalTokens,
		},
	}
	raw, _ := json.Marshal(body)
	return string(raw)
}

func newTestGateway(t *testing.T, handler http.HandlerFunc) *GroqGateway {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = srv.URL + "/v1"

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	return &GroqGateway{
		client:    openai.NewClientWithConfig(cfg),
		model:     "test-model",
		timeout:   5 * time.Second,
		retryBase: time.Millisecond,
		log:       log,
	}
}

func TestPlanOrReviseReturnsTextAndUsage(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, chatCompletionJSON(completionResponse{content: "hello there", totalTokens: 15}))
	})

	result, err := gw.PlanOrRevise(context.Background(), "hi", nil)
	require.NoError(t, err)
	assert.Equal(t, "hello there", result.Text)
	assert.Equal(t, 15, result.Tokens)
}

func TestPlanOrReviseEstimatesTokensWhenUsageMissing(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, chatCompletionJSON(completionResponse{content: "abcdefgh"}))
	})

	result, err := gw.PlanOrRevise(context.Background(), "hi", nil)
	require.NoError(t, err)
	assert.Equal(t, "abcdefgh", result.Text)
	assert.Equal(t, 2, result.Tokens)
}

func TestPlanOrReviseEmptyContentIsNotAnError(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, chatCompletionJSON(completionResponse{}))
	})

	result, err := gw.PlanOrRevise(context.Background(), "hi", nil)
	require.NoError(t, err)
	assert.Empty(t, result.Text)
}

func TestEvaluateDegradesOnUnparseableCritique(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, chatCompletionJSON(completionResponse{content: "looks good to me!", totalTokens: 9}))
	})

	eval, err := gw.Evaluate(context.Background(), "hi", "answer")
	require.NoError(t, err)
	assert.False(t, eval.Satisfied)
	assert.Equal(t, []string{parseFailureIssue}, eval.Issues)
	assert.Equal(t, 9, eval.Tokens)
}

func TestEvaluateParsesCritique(t *testing.T) {
	critique := `{"planner_response_summary":"fine","issues":["cite sources"],"is_satisfied":false}`
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, chatCompletionJSON(completionResponse{content: critique, totalTokens: 20}))
	})

	eval, err := gw.Evaluate(context.Background(), "hi", "answer")
	require.NoError(t, err)
	assert.Equal(t, "fine", eval.Summary)
	assert.Equal(t, []string{"cite sources"}, eval.Issues)
	assert.False(t, eval.Satisfied)
	assert.Equal(t, 20, eval.Tokens)
}

func TestGenerateFromContextRetriesRateLimit(t *testing.T) {
	var calls int32
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		if n <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			fmt.Fprint(w, `{"error":{"message":"rate limit exceeded","type":"tokens"}}`)
			return
		}
		fmt.Fprint(w, chatCompletionJSON(completionResponse{content: "the answer", totalTokens: 10}))
	})

	answer, err := gw.GenerateFromContext(context.Background(), "q", "ctx")
	require.NoError(t, err)
	assert.Equal(t, "the answer", answer)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestGenerateFromContextGivesUpAfterRetries(t *testing.T) {
	var calls int32
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"message":"rate limit exceeded","type":"tokens"}}`)
	})

	_, err := gw.GenerateFromContext(context.Background(), "q", "ctx")
	require.Error(t, err)
	var upstream *UpstreamError
	assert.ErrorAs(t, err, &upstream)
	assert.Equal(t, int32(ragMaxAttempts), atomic.LoadInt32(&calls))
}

func TestGenerateFromContextFailsFastOnOtherErrors(t *testing.T) {
	var calls int32
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"error":{"message":"boom","type":"server_error"}}`)
	})

	_, err := gw.GenerateFromContext(context.Background(), "q", "ctx")
	require.Error(t, err)
	var upstream *UpstreamError
	assert.ErrorAs(t, err, &upstream)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGenerateFromContextEmptyOutputFallback(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, chatCompletionJSON(completionResponse{}))
	})

	answer, err := gw.GenerateFromContext(context.Background(), "q", "ctx")
	require.NoError(t, err)
	assert.Equal(t, "No response generated.", answer)
}
