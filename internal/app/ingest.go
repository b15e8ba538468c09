package app

import (
	"context"
	"fmt"

	"github.com/yungbote/medscribe-backend/internal/artifact"
	"github.com/yungbote/medscribe-backend/internal/clients/comprehend"
	"github.com/yungbote/medscribe-backend/internal/clients/openai"
	"github.com/yungbote/medscribe-backend/internal/clients/textract"
	"github.com/yungbote/medscribe-backend/internal/index"
	"github.com/yungbote/medscribe-backend/internal/pipeline"
	"github.com/yungbote/medscribe-backend/internal/platform/logger"
)

// Ingest is the composition root of the offline pipeline binary.
type Ingest struct {
	Log    *logger.Logger
	Cfg    Config
	Runner *pipeline.Runner
	Index  *index.Store
}

func NewIngest(ctx context.Context) (*Ingest, error) {
	log, cfg, err := bootstrap()
	if err != nil {
		return nil, err
	}

	ocrClient, err := textract.NewClient(ctx, log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init textract client: %w", err)
	}
	nlpClient, err := comprehend.NewClient(ctx, log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init comprehend medical client: %w", err)
	}
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

	paths := artifact.NewPaths(cfg.DataDir)
	runner := pipeline.NewRunner(log,
		pipeline.NewOCRStage(log, paths, ocrClient, cfg.PipelineConcurrency),
		pipeline.NewEntityStage(log, paths, nlpClient, cfg.PipelineConcurrency),
		pipeline.NewSummaryStage(log, paths),
		pipeline.NewStructurerStage(log, paths, oai, cfg.PipelineConcurrency),
		pipeline.NewIndexStage(log, paths, idx),
	)

	return &Ingest{
		Log:    log,
		Cfg:    cfg,
		Runner: runner,
		Index:  idx,
	}, nil
}

func (i *Ingest) Run(ctx context.Context) error {
	reports, err := i.Runner.Run(ctx)
	for _, r := range reports {
		if r.NothingToDo {
			i.Log.Info("Stage report", "stage", r.Stage, "status", "nothing to do")
			continue
		}
		i.Log.Info("Stage report", "stage", r.Stage, "processed", r.Processed, "skipped", r.Skipped, "failed", r.Failed)
	}
	return err
}

func (i *Ingest) Close() {
	if i == nil {
		return
	}
	if i.Index != nil {
		if err := i.Index.Close(); err != nil {
			i.Log.Warn("Vector store close failed", "error", err)
		}
	}
	if i.Log != nil {
		i.Log.Sync()
	}
}
