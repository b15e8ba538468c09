package pipeline

import (
	"context"
	"errors"
	"io/fs"

	"github.com/yungbote/medscribe-backend/internal/artifact"
	"github.com/yungbote/medscribe-backend/internal/domain"
	"github.com/yungbote/medscribe-backend/internal/index"
	"github.com/yungbote/medscribe-backend/internal/platform/logger"
)

// DocIndexer is the vector-store surface the index stage depends on.
type DocIndexer interface {
	BuildIndex(ctx context.Context, docs []domain.IndexedDoc) error
	DocIDs(ctx context.Context) (map[domain.DocumentID]struct{}, error)
}

// IndexStage embeds structured records into the vector store. Source keys
// are the documents with both a summary table and a structured record; the
// committed artifact is the store's own doc-id set.
type IndexStage struct {
	log     *logger.Logger
	paths   artifact.Paths
	indexer DocIndexer
}

func NewIndexStage(log *logger.Logger, paths artifact.Paths, indexer DocIndexer) *IndexStage {
	return &IndexStage{
		log:     log.With("stage", "index"),
		paths:   paths,
		indexer: indexer,
	}
}

func (s *IndexStage) Name() string { return "index" }

func (s *IndexStage) Run(ctx context.Context) (Report, error) {
	report := Report{Stage: s.Name()}

	// Summary filenames carry the full DocumentID; structured files only
	// keep the stem. Walk the summaries to recover the id for each record.
	summaries, err := summaryKeys(s.paths)
	if err != nil {
		return report, err
	}

	records := map[domain.DocumentID]domain.StructuredRecord{}
	for id := range summaries {
		rec, err := artifact.ReadStructuredRecord(s.paths.StructuredFile(id))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			s.log.Error("Unreadable structured record, skipping document", "document_id", id, "error", err)
			report.Failed++
			continue
		}
		records[id] = rec
	}
	if len(records) == 0 {
		s.log.Warn("No structured records found", "dir", s.paths.StructuredDir())
		return report, ErrNothingToDo
	}

	done, err := s.indexer.DocIDs(ctx)
	if err != nil {
		return report, err
	}

	source := make([]domain.DocumentID, 0, len(records))
	for id := range records {
		source = append(source, id)
	}
	ws := Diff(source, done)
	report.Skipped = len(ws.AlreadyProcessed)
	if len(ws.ToProcess) == 0 {
		s.log.Info("No new documents to index", "already_indexed", report.Skipped)
		return report, nil
	}
	s.log.Info("Indexing structured records", "to_process", len(ws.ToProcess), "already_indexed", report.Skipped)

	docs := make([]domain.IndexedDoc, 0, len(ws.ToProcess))
	for _, id := range ws.ToProcess {
		docs = append(docs, index.NewDoc(id, records[id]))
	}
	if err := s.indexer.BuildIndex(ctx, docs); err != nil {
		return report, err
	}
	report.Processed = len(docs)
	return report, nil
}
