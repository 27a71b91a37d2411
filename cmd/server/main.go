package main

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"

	"github.com/shoplens/shoplens-backend/internal/api"
	"github.com/shoplens/shoplens-backend/internal/auth"
	"github.com/shoplens/shoplens-backend/internal/config"
	"github.com/shoplens/shoplens-backend/internal/database"
	"github.com/shoplens/shoplens-backend/internal/llm"
	"github.com/shoplens/shoplens-backend/internal/repository/postgres"
	"github.com/shoplens/shoplens-backend/internal/retrieval"
	"github.com/shoplens/shoplens-backend/internal/services"
)

func main() {
	log := logrus.New()
	log.SetLevel(logrus.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}

	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}
	defer db.Close()

	if err := database.RunMigrations(cfg.Database); err != nil {
		log.WithError(err).Fatal("failed to run migrations")
	}

	app := fiber.New(fiber.Config{
		AppName:      "ShopLens Backend",
		ErrorHandler: customErrorHandler,
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     corsOrigins(cfg),
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowMethods:     "GET, POST, PATCH, DELETE, OPTIONS",
		AllowCredentials: true,
	}))

	sessionRepo := postgres.NewSessionRepository(db.DB)
	messageRepo := postgres.NewMessageRepository(db.DB)
	iterationRepo := postgres.NewIterationLogRepository(db.DB)
	userRepo := postgres.NewUserRepository(db.DB)

	jwtSecret := cfg.JWTSecret
	if jwtSecret == "" {
		jwtSecret = "change-me-in-production"
		log.Warn("using default JWT secret, set SHOPLENS_JWT_SECRET in production")
	}
	authService := auth.NewService(userRepo, jwtSecret, log)

	gateway := llm.NewGroqGateway(cfg.LLM, log)
	embedder := retrieval.NewOpenAIEmbedder(cfg.LLM.APIKey, cfg.LLM.BaseURL, cfg.Retrieval.EmbeddingModel)

	index, err := retrieval.NewPineconeIndex(cfg.Retrieval.PineconeAPIKey, cfg.Retrieval.PineconeHost, cfg.Retrieval.Namespace)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to vector index")
	}

	opts := services.Options{
		MaxIterations: cfg.Orchestrator.MaxIterations,
		ChunkSize:     cfg.Orchestrator.ChunkSize,
		ChunkDelay:    time.Duration(cfg.Orchestrator.ChunkDelayMs) * time.Millisecond,
	}
	svc := services.NewServices(sessionRepo, messageRepo, iterationRepo, gateway, embedder, index, opts, cfg.Retrieval.TopK, log)

	api.SetupRoutes(app, svc, authService)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.WithField("addr", addr).Info("shoplens backend starting")
	if err := app.Listen(addr); err != nil {
		log.WithError(err).Fatal("failed to start server")
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
		"code":  code,
	})
}

func corsOrigins(cfg *config.Config) string {
	if cfg.CORSOrigins != "" {
		return cfg.CORSOrigins
	}
	return "http://localhost:3000,http://localhost:5173"
}
