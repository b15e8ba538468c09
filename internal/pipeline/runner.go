package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/yungbote/medscribe-backend/internal/platform/logger"
)

// Stage is one gated step of the ingestion pipeline.
type Stage interface {
	Name() string
	Run(ctx context.Context) (Report, error)
}

// Runner executes the ingestion stages in order. Per-document failures stay
// inside their stage; a stage with no upstream input ends the run cleanly,
// since every later stage would be starved anyway.
type Runner struct {
	log    *logger.Logger
	stages []Stage
}

func NewRunner(log *logger.Logger, stages ...Stage) *Runner {
	return &Runner{
		log:    log.With("service", "IngestionRunner"),
		stages: stages,
	}
}

func (r *Runner) Run(ctx context.Context) ([]Report, error) {
	reports := make([]Report, 0, len(r.stages))
	for _, stage := range r.stages {
		if err := ctx.Err(); err != nil {
			return reports, err
		}

		report, err := stage.Run(ctx)
		if errors.Is(err, ErrNothingToDo) {
			report.NothingToDo = true
			reports = append(reports, report)
			r.log.Info("Stage has no input, stopping", "stage", stage.Name())
			return reports, nil
		}
		if err != nil {
			return reports, fmt.Errorf("stage %s: %w", stage.Name(), err)
		}

		reports = append(reports, report)
		r.log.Info("Stage complete",
			"stage", stage.Name(),
			"processed", report.Processed,
			"skipped", report.Skipped,
			"failed", report.Failed,
		)
	}
	return reports, nil
}
