package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"

	"github.com/gin-gonic/gin"

	"examscan-backend/internal/analysis"
	"examscan-backend/internal/analysis/gemini"
	"examscan-backend/internal/cache"
	"examscan-backend/internal/exams"
	"examscan-backend/internal/history"
	"examscan-backend/internal/shared/config"
	"examscan-backend/internal/shared/server"
	"examscan-backend/internal/shared/storage/db"
	"examscan-backend/internal/shared/storage/object"
	localstore "examscan-backend/internal/shared/storage/object/local"
)

// App holds shared dependencies.
type App struct {
	Config         config.Config
	Router         *gin.Engine
	DB             *sql.DB
	Store          object.ObjectStore
	CacheRepo      cache.Repo
	HistoryRepo    history.Repo
	AnalysisClient analysis.Client
	ExamsService   *exams.Service
	ExamsHandler   *exams.Handler
}

// Build prepares shared dependencies and wires the router.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var (
		cacheRepo   cache.Repo
		historyRepo history.Repo
	)
	if sqlDB != nil {
		cacheRepo = &cache.PGRepo{DB: sqlDB}
		historyRepo = history.NewPGRepo(sqlDB)
	} else {
		cacheRepo = cache.NewMemoryRepo()
		historyRepo = history.NewMemoryRepo()
	}

	client, err := buildClient(cfg)
	if err != nil {
		return nil, err
	}

	store := localstore.New(cfg.LocalStoreDir)
	svc := exams.NewService(
		cacheRepo,
		client,
		store,
		historyRepo,
		cfg.AnalysisLanguages,
		cfg.WorkerConcurrency,
		cfg.CallSpacing,
		cfg.RetryInitialDelay,
	)
	handler := exams.NewHandler(svc, cfg.MaxUploadBytes)

	app := &App{
		Config:         cfg,
		DB:             sqlDB,
		Store:          store,
		CacheRepo:      cacheRepo,
		HistoryRepo:    historyRepo,
		AnalysisClient: client,
		ExamsService:   svc,
		ExamsHandler:   handler,
	}
	app.Router = server.NewRouter(server.RouterDeps{
		Config:       cfg,
		ExamsHandler: handler,
	})
	return app, nil
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: DATABASE_URL empty; using in-memory repositories")
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	opts := db.OptionsFromEnv(db.DefaultServerOptions())
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: database connect failed; using in-memory repositories: %v", err)
			return nil, nil
		}
		return nil, err
	}

	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		sqlDB.Close()
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: migrations failed; using in-memory repositories: %v", err)
			return nil, nil
		}
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return sqlDB, nil
}

func buildClient(cfg config.Config) (analysis.Client, error) {
	if strings.TrimSpace(cfg.GeminiAPIKey) == "" {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: GEMINI_API_KEY empty; analysis calls will fail until configured")
			return analysis.PlaceholderClient{}, nil
		}
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}
	return gemini.NewClient(cfg.GeminiAPIKey, cfg.LLMModel)
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
