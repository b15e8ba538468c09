package pipeline

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/yungbote/medscribe-backend/internal/artifact"
	"github.com/yungbote/medscribe-backend/internal/domain"
	"github.com/yungbote/medscribe-backend/internal/platform/logger"
)

// EntityDetector is the medical-NLP surface the entity stage depends on.
type EntityDetector interface {
	DetectEntities(ctx context.Context, text string) (*domain.EntityRecord, error)
}

// EntityStage turns extracted text into per-document entity records. Source
// keys are the raw text artifact's keys; the committed artifact is
// processed_entities.json.
type EntityStage struct {
	log         *logger.Logger
	paths       artifact.Paths
	detector    EntityDetector
	concurrency int
}

func NewEntityStage(log *logger.Logger, paths artifact.Paths, detector EntityDetector, concurrency int) *EntityStage {
	if concurrency < 1 {
		concurrency = 1
	}
	return &EntityStage{
		log:         log.With("stage", "entities"),
		paths:       paths,
		detector:    detector,
		concurrency: concurrency,
	}
}

func (s *EntityStage) Name() string { return "entities" }

func (s *EntityStage) Run(ctx context.Context) (Report, error) {
	report := Report{Stage: s.Name()}

	textData := map[domain.DocumentID]string{}
	found, err := artifact.ReadJSON(s.paths.RawTextFile(), &textData)
	if err != nil {
		return report, err
	}
	if !found {
		s.log.Warn("Raw text artifact not found", "path", s.paths.RawTextFile())
		return report, ErrNothingToDo
	}

	existing := map[domain.DocumentID]domain.EntityRecord{}
	if _, err := artifact.ReadJSON(s.paths.EntitiesFile(), &existing); err != nil {
		return report, err
	}
	done := make(map[domain.DocumentID]struct{}, len(existing))
	for id := range existing {
		done[id] = struct{}{}
	}

	source := make([]domain.DocumentID, 0, len(textData))
	for id := range textData {
		source = append(source, id)
	}
	ws := Diff(source, done)
	report.Skipped = len(ws.AlreadyProcessed)
	if len(ws.ToProcess) == 0 {
		s.log.Info("No new documents to analyze", "already_processed", report.Skipped)
		return report, nil
	}
	s.log.Info("Detecting clinical entities", "to_process", len(ws.ToProcess), "already_processed", report.Skipped)

	var mu sync.Mutex
	detected := map[domain.DocumentID]domain.EntityRecord{}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, id := range ws.ToProcess {
		g.Go(func() error {
			record, err := s.detector.DetectEntities(gctx, textData[id])
			if err != nil {
				s.log.Error("Entity detection failed, skipping document", "document_id", id, "error", err)
				mu.Lock()
				report.Failed++
				mu.Unlock()
				return nil
			}
			mu.Lock()
			detected[id] = *record
			report.Processed++
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}

	if len(detected) > 0 {
		for id, record := range detected {
			existing[id] = record
		}
		if err := artifact.WriteJSON(s.paths.EntitiesFile(), existing); err != nil {
			return report, err
		}
		s.log.Info("Entity artifact updated", "path", s.paths.EntitiesFile(), "documents", len(existing))
	}
	return report, nil
}
