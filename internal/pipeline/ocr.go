package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/yungbote/medscribe-backend/internal/artifact"
	"github.com/yungbote/medscribe-backend/internal/clients/textract"
	"github.com/yungbote/medscribe-backend/internal/domain"
	"github.com/yungbote/medscribe-backend/internal/platform/logger"
)

// OCRClient is the text-detection surface the OCR stage depends on.
type OCRClient interface {
	DetectDocumentText(ctx context.Context, image []byte) ([]textract.Block, error)
}

// OCRStage turns raw images into per-document text. Source keys are the
// eligible image filenames under raw_images; the committed artifact is
// processed_text.json.
type OCRStage struct {
	log         *logger.Logger
	paths       artifact.Paths
	ocr         OCRClient
	concurrency int
}

func NewOCRStage(log *logger.Logger, paths artifact.Paths, ocr OCRClient, concurrency int) *OCRStage {
	if concurrency < 1 {
		concurrency = 1
	}
	return &OCRStage{
		log:         log.With("stage", "ocr"),
		paths:       paths,
		ocr:         ocr,
		concurrency: concurrency,
	}
}

func (s *OCRStage) Name() string { return "ocr" }

func (s *OCRStage) Run(ctx context.Context) (Report, error) {
	report := Report{Stage: s.Name()}

	source, err := s.listImages()
	if err != nil {
		return report, err
	}

	existing := map[domain.DocumentID]string{}
	if _, err := artifact.ReadJSON(s.paths.RawTextFile(), &existing); err != nil {
		return report, err
	}
	done := make(map[domain.DocumentID]struct{}, len(existing))
	for id := range existing {
		done[id] = struct{}{}
	}

	ws := Diff(source, done)
	report.Skipped = len(ws.AlreadyProcessed)
	if len(ws.ToProcess) == 0 {
		s.log.Info("No new images to process", "already_processed", report.Skipped)
		return report, nil
	}
	s.log.Info("Extracting text from images", "to_process", len(ws.ToProcess), "already_processed", report.Skipped)

	var mu sync.Mutex
	extracted := map[domain.DocumentID]string{}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, id := range ws.ToProcess {
		g.Go(func() error {
			text, err := s.extractOne(gctx, id)
			if err != nil {
				s.log.Error("OCR failed, skipping image", "document_id", id, "error", err)
				mu.Lock()
				report.Failed++
				mu.Unlock()
				return nil
			}
			mu.Lock()
			extracted[id] = text
			report.Processed++
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}

	if len(extracted) > 0 {
		if err := s.persist(extracted, existing); err != nil {
			return report, err
		}
	}
	return report, nil
}

func (s *OCRStage) listImages() ([]domain.DocumentID, error) {
	entries, err := os.ReadDir(s.paths.RawImagesDir())
	if os.IsNotExist(err) {
		s.log.Warn("Raw images directory not found", "dir", s.paths.RawImagesDir())
		return nil, ErrNothingToDo
	}
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", s.paths.RawImagesDir(), err)
	}

	var ids []domain.DocumentID
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".png", ".jpg", ".jpeg":
			ids = append(ids, e.Name())
		}
	}
	return ids, nil
}

// extractOne reads one image and flattens its LINE blocks, in document
// order, into a single space-joined string.
func (s *OCRStage) extractOne(ctx context.Context, id domain.DocumentID) (string, error) {
	image, err := os.ReadFile(filepath.Join(s.paths.RawImagesDir(), id))
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	blocks, err := s.ocr.DetectDocumentText(ctx, image)
	if err != nil {
		return "", err
	}
	var lines []string
	for _, b := range blocks {
		if b.BlockType == textract.BlockTypeLine {
			lines = append(lines, b.Text)
		}
	}
	return strings.TrimSpace(strings.Join(lines, " ")), nil
}

// persist merges the freshly extracted text into the artifact. Overlapping
// keys take the new value; the work-set diff keeps reruns on new keys only.
func (s *OCRStage) persist(extracted, existing map[domain.DocumentID]string) error {
	for id, text := range extracted {
		existing[id] = text
	}
	if err := artifact.WriteJSON(s.paths.RawTextFile(), existing); err != nil {
		return err
	}
	s.log.Info("Raw text artifact updated", "path", s.paths.RawTextFile(), "documents", len(existing))
	return nil
}
