package streaming

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteSSEFrameFormat(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)

	err := WriteSSE(w, Event{
		Name: EventIteration,
		Data: IterationPayload{Iteration: 1, IssuesFound: 2, Satisfied: false, TokensUsed: 30},
	})
	require.NoError(t, err)

	assert.Equal(t,
		"event: iteration\ndata: {\"iteration\":1,\"issuesFound\":2,\"satisfied\":false,\"tokensUsed\":30}\n\n",
		buf.String())
}

func TestWriteSSEFlushesEachFrame(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)

	require.NoError(t, WriteSSE(w, Event{Name: EventChunk, Data: ChunkPayload{Chunk: "hi", Complete: false}}))
	first := buf.Len()
	assert.Positive(t, first, "frame must be flushed, not buffered")

	require.NoError(t, WriteSSE(w, Event{Name: EventChunk, Data: ChunkPayload{Chunk: "!", Complete: true}}))
	assert.Greater(t, buf.Len(), first)
}

func TestWriteSSEErrorEvent(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)

	require.NoError(t, WriteSSE(w, Event{
		Name: EventError,
		Data: ErrorPayload{Error: "Failed to process message", Details: "provider down"},
	}))

	assert.Contains(t, buf.String(), "event: error\n")
	assert.Contains(t, buf.String(), `"error":"Failed to process message"`)
}
