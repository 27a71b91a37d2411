package services

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/shoplens/shoplens-backend/internal/llm"
	"github.com/shoplens/shoplens-backend/internal/retrieval"
)

const noContextAnswer = "I couldn't find any relevant data to answer your question."

// RetrievalService answers one-shot questions over indexed order data.
// Distinct from the refinement loop: one embedding, one vector query, one
// generation.
type RetrievalService struct {
	embedder retrieval.Embedder
	index    retrieval.VectorIndex
	gateway  llm.Gateway
	topK     int
	log      *logrus.Logger
}

// NewRetrievalService creates a retrieval service
func NewRetrievalService(embedder retrieval.Embedder, index retrieval.VectorIndex, gateway llm.Gateway, topK int, log *logrus.Logger) *RetrievalService {
	if topK <= 0 {
		topK = 5
	}
	return &RetrievalService{
		embedder: embedder,
		index:    index,
		gateway:  gateway,
		topK:     topK,
		log:      log,
	}
}

// Ask answers a question against the vector index. When nothing relevant
// is indexed, it answers honestly without spending a model call.
func (s *RetrievalService) Ask(ctx context.Context, query string) (string, []retrieval.Match, error) {
	if strings.TrimSpace(query) == "" {
		return "", nil, &ValidationError{Msg: "Query is required"}
	}

	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return "", nil, err
	}

	matches, err := s.index.Query(ctx, vector, s.topK)
	if err != nil {
		return "", nil, err
	}
	s.log.WithFields(logrus.Fields{
		"matches": len(matches),
	}).Debug("vector search finished")

	contextText := retrieval.BuildOrderContext(matches)
	if contextText == "" {
		return noContextAnswer, matches, nil
	}

	answer, err := s.gateway.GenerateFromContext(ctx, query, contextText)
	if err != nil {
		return "", nil, err
	}

	return answer, matches, nil
}
