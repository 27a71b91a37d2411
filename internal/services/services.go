package services

import (
	"github.com/sirupsen/logrus"
	"github.com/shoplens/shoplens-backend/internal/llm"
	"github.com/shoplens/shoplens-backend/internal/repository"
	"github.com/shoplens/shoplens-backend/internal/retrieval"
)

// Services holds all service instances
type Services struct {
	Orchestrator *OrchestratorService
	Retrieval    *RetrievalService
}

// NewServices creates all service instances
func NewServices(
	sessionRepo repository.SessionRepository,
	messageRepo repository.MessageRepository,
	iterationRepo repository.IterationLogRepository,
	gateway llm.Gateway,
	embedder retrieval.Embedder,
	index retrieval.VectorIndex,
	opts Options,
	topK int,
	log *logrus.Logger,
) *Services {
	return &Services{
		Orchestrator: NewOrchestratorService(sessionRepo, messageRepo, iterationRepo, gateway, opts, log),
		Retrieval:    NewRetrievalService(embedder, index, gateway, topK, log),
	}
}
