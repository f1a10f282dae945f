package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"interviewlab/internal/capture"
	"interviewlab/internal/config"
	"interviewlab/internal/events"
	"interviewlab/internal/handlers"
	"interviewlab/internal/jobs"
	"interviewlab/internal/oracle"
	"interviewlab/internal/question"
	"interviewlab/internal/routers"
	"interviewlab/internal/sandbox"
	"interviewlab/internal/session"
	"interviewlab/internal/store"
	"interviewlab/internal/synthesis"
)

// initStore opens postgres when a DSN is configured and falls back to a
// local sqlite file for development.
func initStore(cfg *config.Config) (store.Store, error) {
	var dialector gorm.Dialector
	if cfg.PostgresDSN != "" {
		dialector = postgres.Open(cfg.PostgresDSN)
	} else {
		dialector = sqlite.Open("interviewlab.db")
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, err
	}
	return store.NewGormStore(db)
}

// initOracle builds the scoring provider. Without an API key every oracle
// operation degrades to its documented default.
func initOracle(ctx context.Context, cfg *config.Config, logger *zap.Logger) oracle.Provider {
	if cfg.GeminiAPIKey == "" {
		logger.Warn("GEMINI_API_KEY not set, oracle will serve defaults only")
		return oracle.NewResilient(nil, cfg.OracleAttempts, logger)
	}

	gemini, err := oracle.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		logger.Warn("failed to initialize Gemini, oracle will serve defaults only", zap.Error(err))
		return oracle.NewResilient(nil, cfg.OracleAttempts, logger)
	}
	return oracle.NewResilient(gemini, cfg.OracleAttempts, logger)
}

// initSandbox selects the execution backend. Stub mode returns no backend,
// which makes the engine use its deterministic local stand-in.
func initSandbox(cfg *config.Config, logger *zap.Logger) sandbox.Backend {
	switch cfg.SandboxMode {
	case config.SandboxRemote:
		return sandbox.NewRemoteBackend(cfg.SandboxURL, cfg.SandboxAPIKey, cfg.SandboxWallTime)
	case config.SandboxDocker:
		backend, err := sandbox.NewDockerBackend(sandbox.Limits{WallTime: cfg.SandboxWallTime})
		if err != nil {
			logger.Warn("docker backend unavailable, using local stand-in", zap.Error(err))
			return nil
		}
		return backend
	default:
		return nil
	}
}

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}
	logger.Info("Configuration loaded",
		zap.String("sandboxMode", string(cfg.SandboxMode)),
		zap.String("geminiModel", cfg.GeminiModel))

	ctx := context.Background()

	sessionStore, err := initStore(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize store", zap.Error(err))
	}

	var questionRepo question.Repository
	if cfg.MongoURI != "" {
		repo, err := question.NewMongoRepository(ctx, cfg.MongoURI)
		if err != nil {
			logger.Warn("question bank unavailable, sessions will use the default set", zap.Error(err))
		} else {
			questionRepo = repo
		}
	}

	publisher := events.NewPublisher(cfg.RedisAddr, logger)
	defer publisher.Close()

	engine := sandbox.NewEngine(initSandbox(cfg, logger), logger)

	manager := session.NewManager(session.Options{
		Store:     sessionStore,
		Oracle:    initOracle(ctx, cfg, logger),
		Engine:    engine,
		Questions: question.NewSource(questionRepo, logger),
		Synth:     synthesis.Noop{},
		Events:    publisher,
		NewCapture: func(onAutoSubmit func()) session.Capturer {
			return capture.New(capture.Options{
				Detection:    cfg.Detection,
				MaxReattach:  cfg.CaptureAttempts,
				OnAutoSubmit: onAutoSubmit,
				Logger:       logger,
			})
		},
		TestCaseCount: cfg.TestCaseCount,
		Logger:        logger,
	})

	reaper := jobs.NewSessionReaper(sessionStore, jobs.ReaperConfig{
		Schedule: "*/10 * * * *",
		MaxAge:   4 * time.Hour,
	}, logger)
	if err := reaper.Start(); err != nil {
		logger.Error("Failed to start session reaper", zap.Error(err))
	}
	defer reaper.Stop()

	router := routers.NewRouter(
		handlers.NewSessionHandler(manager, cfg.JWTSecret),
		handlers.NewLiveHandler(manager, cfg.JWTSecret, logger),
		handlers.NewHealthHandler(),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Interview engine starting", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, syscall.SIGINT, syscall.SIGTERM)
	<-shutdownChan

	logger.Info("Interview engine shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed", zap.Error(err))
	}
	logger.Info("Interview engine stopped")
}
