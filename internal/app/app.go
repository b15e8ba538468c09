package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/medscribe-backend/internal/agent"
	"github.com/yungbote/medscribe-backend/internal/artifact"
	"github.com/yungbote/medscribe-backend/internal/checkpoint"
	"github.com/yungbote/medscribe-backend/internal/clients/openai"
	"github.com/yungbote/medscribe-backend/internal/handlers"
	"github.com/yungbote/medscribe-backend/internal/index"
	"github.com/yungbote/medscribe-backend/internal/observability"
	"github.com/yungbote/medscribe-backend/internal/platform/logger"
	"github.com/yungbote/medscribe-backend/internal/search"
	"github.com/yungbote/medscribe-backend/internal/server"
)

// App is the composition root of the online API: every collaborator is
// constructed once here and threaded into the handlers explicitly.
type App struct {
	Log         *logger.Logger
	Cfg         Config
	Router      *gin.Engine
	Index       *index.Store
	Checkpoints checkpoint.Store
	Runner      *agent.Runner
	Search      *search.Service

	otelShutdown func(context.Context) error
}

func NewServer(ctx context.Context) (*App, error) {
	log, cfg, err := bootstrap()
	if err != nil {
		return nil, err
	}

	otelShutdown := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: "medscribe-api",
		Environment: cfg.Environment,
	})

	oai, err := openai.NewClient(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init openai client: %w", err)
	}

	idx, err := index.NewStore(log, oai, cfg.IndexDir, cfg.EmbedDim)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init vector store: %w", err)
	}
	if err := idx.LoadIndex(); err != nil {
		if !errors.Is(err, index.ErrIndexAbsent) {
			log.Sync()
			return nil, fmt.Errorf("open vector index: %w", err)
		}
		log.Warn("Vector index not built yet; /generate will fail until ingestion runs", "dir", cfg.IndexDir)
	}

	ckpt, err := resolveCheckpointStore(log, cfg)
	if err != nil {
		log.Sync()
		return nil, err
	}

	nodes, err := agent.NewNodes(log, oai, idx, cfg.RetrieverTopK, cfg.MemoryMaxChats)
	if err != nil {
		log.Sync()
		return nil, err
	}
	graph, err := nodes.BuildGraph()
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("compile agent graph: %w", err)
	}
	runner, err := agent.NewRunner(log, graph, ckpt)
	if err != nil {
		log.Sync()
		return nil, err
	}

	searchSvc, err := search.NewService(log, artifact.NewPaths(cfg.DataDir))
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init search service: %w", err)
	}

	router := server.NewRouter(server.RouterConfig{
		GenerateHandler: handlers.NewGenerateHandler(log, runner),
		SearchHandler:   handlers.NewSearchHandler(log, searchSvc),
		OTelEnabled:     cfg.OTelEnabled,
		ServiceName:     "medscribe-api",
	})

	return &App{
		Log:          log,
		Cfg:          cfg,
		Router:       router,
		Index:        idx,
		Checkpoints:  ckpt,
		Runner:       runner,
		Search:       searchSvc,
		otelShutdown: otelShutdown,
	}, nil
}

func (a *App) Run(addr string) error {
	if a == nil || a.Router == nil {
		return fmt.Errorf("app not initialized")
	}
	return a.Router.Run(addr)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.Checkpoints != nil {
		if err := a.Checkpoints.Close(); err != nil {
			a.Log.Warn("Checkpoint store close failed", "error", err)
		}
	}
	if a.Index != nil {
		if err := a.Index.Close(); err != nil {
			a.Log.Warn("Vector store close failed", "error", err)
		}
	}
	if a.otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.otelShutdown(ctx); err != nil {
			a.Log.Warn("OTel shutdown failed", "error", err)
		}
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}

const shutdownTimeout = 5 * time.Second

func bootstrap() (*logger.Logger, Config, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	bootLog, err := logger.New(logMode)
	if err != nil {
		return nil, Config{}, fmt.Errorf("init logger: %w", err)
	}
	bootLog.Info("Loading environment variables...")
	cfg := LoadConfig(bootLog)
	return bootLog, cfg, nil
}
