package app

import (
	"context"
	"fmt"
	"os"

	"gorm.io/gorm"

	"github.com/itacademy-edms-team/24-3-D-DOCS-sub003/internal/agent"
	"github.com/itacademy-edms-team/24-3-D-DOCS-sub003/internal/data/db"
	"github.com/itacademy-edms-team/24-3-D-DOCS-sub003/internal/data/repos"
	"github.com/itacademy-edms-team/24-3-D-DOCS-sub003/internal/observability"
	"github.com/itacademy-edms-team/24-3-D-DOCS-sub003/internal/platform/logger"
	"github.com/itacademy-edms-team/24-3-D-DOCS-sub003/internal/platform/openai"
	"github.com/itacademy-edms-team/24-3-D-DOCS-sub003/internal/platform/redislock"
	"github.com/itacademy-edms-team/24-3-D-DOCS-sub003/internal/retrieval"
	"github.com/itacademy-edms-team/24-3-D-DOCS-sub003/internal/services"
)

type Repos struct {
	Documents repos.DocumentRepo
	Blocks    repos.DocumentBlockRepo
	AgentLogs repos.AgentLogRepo
}

type App struct {
	Log   *logger.Logger
	DB    *gorm.DB
	Repos Repos

	Retrieval *retrieval.Engine
	Mutation  *services.MutationService

	lock         redislock.Locker
	shutdownOTel func(context.Context) error
}

func New(ctx context.Context) (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	shutdownOTel := observability.InitOTel(ctx, log, observability.OtelConfig{})

	pg, err := db.NewPostgresService(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	theDB := pg.DB()
	if err := db.AutoMigrateAll(theDB); err != nil {
		log.Sync()
		return nil, fmt.Errorf("postgres automigrate: %w", err)
	}

	reposet := Repos{
		Documents: repos.NewDocumentRepo(theDB, log),
		Blocks:    repos.NewDocumentBlockRepo(theDB, log),
		AgentLogs: repos.NewAgentLogRepo(theDB, log),
	}

	ai, err := openai.NewClient(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init openai client: %w", err)
	}

	engine := retrieval.NewEngine(log, ai,
		repos.BlockSourceAdapter{Blocks: reposet.Blocks},
		repos.OwnerAccessAdapter{Documents: reposet.Documents})

	lock, err := redislock.New(log)
	if err != nil {
		log.Warn("Redis unavailable, falling back to in-process session locking", "error", err)
		lock = redislock.NoopLocker{}
	}

	orch := agent.NewOrchestrator(log,
		agent.NewLLMReasoner(log, ai),
		agent.NewToolbox(engine),
		repos.LogSinkAdapter{Logs: reposet.AgentLogs},
		agent.ConfigFromEnv())

	mutation := services.NewMutationService(log, orch, reposet.Documents, lock)

	return &App{
		Log:          log,
		DB:           theDB,
		Repos:        reposet,
		Retrieval:    engine,
		Mutation:     mutation,
		lock:         lock,
		shutdownOTel: shutdownOTel,
	}, nil
}

func (a *App) Shutdown(ctx context.Context) {
	if a == nil {
		return
	}
	if a.lock != nil {
		if err := a.lock.Close(); err != nil {
			a.Log.Warn("Closing session locker failed", "error", err)
		}
	}
	if a.shutdownOTel != nil {
		if err := a.shutdownOTel(ctx); err != nil {
			a.Log.Warn("OTel shutdown failed", "error", err)
		}
	}
	a.Log.Sync()
}
