package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/local-insights/backend/internal/api/handlers"
	"github.com/local-insights/backend/internal/auth"
	"github.com/local-insights/backend/internal/cache/redis"
	"github.com/local-insights/backend/internal/ingestion"
	"github.com/local-insights/backend/internal/llm"
	"github.com/local-insights/backend/internal/metrics"
	"github.com/local-insights/backend/internal/middleware/ratelimit"
	"github.com/local-insights/backend/internal/middleware/security"
	"github.com/local-insights/backend/internal/middleware/validation"
	"github.com/local-insights/backend/internal/rag"
	"github.com/local-insights/backend/internal/session"
	"github.com/local-insights/backend/internal/storage/sqlite"
	"github.com/local-insights/backend/internal/vector/milvus"
	"github.com/local-insights/backend/pkg/config"
	appLogger "github.com/local-insights/backend/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting LocalInsights API Server")

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	err = sqliteClient.InitSchema()
	if err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	var milvusClient *milvus.Client
	if cfg.Milvus.Enabled {
		milvusClient, err = milvus.NewClient(
			cfg.Milvus.Endpoint,
			cfg.Milvus.CollectionName,
			cfg.Milvus.VectorDim,
		)
		if err != nil {
			appLogger.Fatal("Failed to create Milvus client", zap.Error(err))
		}
		defer milvusClient.Close()

		err = milvusClient.CreateCollection(context.Background())
		if err != nil {
			appLogger.Fatal("Failed to create collection", zap.Error(err))
		}
	} else {
		appLogger.Warn("Vector search disabled, chat answers will not use document retrieval")
	}

	var cacheClient *redis.Client
	if cfg.Redis.Enabled {
		cacheClient, err = redis.NewClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			appLogger.Fatal("Failed to create Redis client", zap.Error(err))
		}
		defer cacheClient.Close()
	}

	llmClient := llm.NewClient(llm.Config{
		BaseURL:        cfg.LLM.BaseURL,
		APIKey:         cfg.LLM.APIKey,
		Model:          cfg.LLM.Model,
		EmbeddingModel: cfg.LLM.EmbeddingModel,
		Temperature:    cfg.LLM.Temperature,
		MaxTokens:      cfg.LLM.MaxTokens,
		Timeout:        time.Duration(cfg.LLM.TimeoutSec) * time.Second,
	})

	processor := ingestion.NewProcessor(sqliteClient, milvusClient, llmClient, cfg.Study.ChunkSize, cfg.Study.ChunkOverlap)
	ragEngine := rag.NewEngine(sqliteClient, milvusClient, llmClient, cacheClient)
	sessionManager := session.NewManager(sqliteClient)
	authService := auth.NewService(
		sqliteClient,
		cfg.Auth.JWTSecret,
		time.Duration(cfg.Auth.TokenTTLHours)*time.Hour,
		cfg.Auth.PBKDF2Iters,
	)

	metrics.Init()

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(metrics.RequestTimer())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{
		IsDevelopment: cfg.Logging.Level == "debug",
	}))

	limiter := ratelimit.New(ratelimit.Config{
		MaxRequestsPerMinute: 120,
		Logger:               appLogger.GetLogger(),
	})
	defer limiter.Stop()
	app.Use(limiter.Middleware())

	app.Use(validation.Middleware(validation.Config{
		MaxDocumentSize: cfg.Server.BodyLimit,
		Logger:          appLogger.GetLogger(),
	}))

	authHandler := handlers.NewAuthHandler(authService, sqliteClient)
	documentHandler := handlers.NewDocumentHandler(processor, sqliteClient)
	studyHandler := handlers.NewStudyHandler(sqliteClient, sessionManager, cacheClient)
	chatHandler := handlers.NewChatHandler(ragEngine, sqliteClient)
	wsHandler := handlers.NewWebSocketHandler(ragEngine, authService)
	memoryHandler := handlers.NewMemoryHandler(sqliteClient)

	api := app.Group("/api/v1")

	api.Post("/auth/register", authHandler.Register)
	api.Post("/auth/login", authHandler.Login)

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	app.Get("/metrics", metrics.MetricsHandler())

	protected := api.Group("", auth.Middleware(authService))

	protected.Get("/auth/me", authHandler.Me)

	protected.Post("/documents", documentHandler.Upload)
	protected.Get("/documents", documentHandler.List)
	protected.Get("/documents/:id", documentHandler.Get)
	protected.Delete("/documents/:id", documentHandler.Delete)
	protected.Post("/documents/:id/materials", documentHandler.GenerateMaterial)
	protected.Get("/summaries", documentHandler.Summaries)

	protected.Get("/flashcards", studyHandler.ListFlashcards)
	protected.Get("/flashcards/due", studyHandler.DueFlashcards)
	protected.Get("/quiz/questions", studyHandler.ListQuizQuestions)

	protected.Post("/study/flashcards", studyHandler.StartFlashcardSession)
	protected.Get("/study/flashcards/:id", studyHandler.CurrentFlashcard)
	protected.Post("/study/flashcards/:id/reveal", studyHandler.RevealFlashcard)
	protected.Post("/study/flashcards/:id/answer", studyHandler.AnswerFlashcard)
	protected.Post("/study/quiz", studyHandler.StartQuizSession)
	protected.Get("/study/quiz/:id", studyHandler.CurrentQuizQuestion)
	protected.Post("/study/quiz/:id/answer", studyHandler.AnswerQuizQuestion)
	protected.Delete("/study/sessions/:id", studyHandler.EndSession)

	protected.Get("/stats", studyHandler.Stats)

	protected.Post("/chat/ask", chatHandler.Ask)
	protected.Get("/chat/conversations", chatHandler.ListConversations)
	protected.Get("/chat/conversations/:id", chatHandler.GetConversation)
	protected.Put("/chat/conversations/:id", chatHandler.RenameConversation)
	protected.Delete("/chat/conversations/:id", chatHandler.DeleteConversation)
	protected.Get("/chat/search", chatHandler.SearchMessages)

	protected.Get("/memory", memoryHandler.List)
	protected.Put("/memory", memoryHandler.Upsert)
	protected.Delete("/memory", memoryHandler.Clear)
	protected.Delete("/memory/:key", memoryHandler.Delete)
	protected.Put("/memory/settings", memoryHandler.UpdateSettings)
	protected.Put("/memory/profile", memoryHandler.UpdateProfile)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/chat", websocket.New(wsHandler.HandleConnection))

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	app.Shutdown()
	appLogger.Info("Server stopped")
}
