package index

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/yungbote/medscribe-backend/internal/domain"
	"github.com/yungbote/medscribe-backend/internal/platform/logger"
)

// fixedEmbedder maps known inputs to fixed vectors.
type fixedEmbedder struct {
	vectors map[string][]float32
}

func (f *fixedEmbedder) Embed(_ context.Context, inputs []string) ([][]float32, error) {
	out := make([][]float32, len(inputs))
	for i, input := range inputs {
		vec, ok := f.vectors[input]
		if !ok {
			return nil, fmt.Errorf("no vector for %q", input)
		}
		out[i] = vec
	}
	return out, nil
}

func testDocs() []domain.IndexedDoc {
	return []domain.IndexedDoc{
		NewDoc("note_1.png", domain.StructuredRecord{Patient: "Anupama Joshi", Diagnosis: "diabetes", Treatment: "metformin", FollowUp: "2 weeks"}),
		NewDoc("note_2.png", domain.StructuredRecord{Patient: "Ravi Mehta", Diagnosis: "hypertension", Treatment: "amlodipine", FollowUp: "1 month"}),
	}
}

func testEmbedder(docs []domain.IndexedDoc) *fixedEmbedder {
	return &fixedEmbedder{vectors: map[string][]float32{
		docs[0].Content:           {1, 0, 0, 0},
		docs[1].Content:           {0, 1, 0, 0},
		"who has diabetes":        {0.9, 0.1, 0, 0},
		"blood pressure question": {0.1, 0.9, 0, 0},
	}}
}

func TestStoreBuildAndRetrieve(t *testing.T) {
	docs := testDocs()
	store, err := NewStore(logger.NewNop(), testEmbedder(docs), t.TempDir(), 4)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.BuildIndex(ctx, docs); err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}

	got, err := store.Retrieve(ctx, "who has diabetes", 1)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Retrieve: want 1 doc, got %d", len(got))
	}
	if got[0].Metadata.SourceFile != "note_1.png" {
		t.Fatalf("Retrieve: want=%q got=%q", "note_1.png", got[0].Metadata.SourceFile)
	}
	if got[0].Content != docs[0].Content {
		t.Fatalf("Retrieve content: want=%q got=%q", docs[0].Content, got[0].Content)
	}

	got, err = store.Retrieve(ctx, "blood pressure question", 2)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Retrieve: want 2 docs, got %d", len(got))
	}
	if got[0].Metadata.SourceFile != "note_2.png" {
		t.Fatalf("Retrieve order: want=%q first, got=%q", "note_2.png", got[0].Metadata.SourceFile)
	}
}

func TestStoreRebuildReplacesDocument(t *testing.T) {
	docs := testDocs()
	store, err := NewStore(logger.NewNop(), testEmbedder(docs), t.TempDir(), 4)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.BuildIndex(ctx, docs); err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}
	if err := store.BuildIndex(ctx, docs[:1]); err != nil {
		t.Fatalf("BuildIndex rebuild: %v", err)
	}

	ids, err := store.DocIDs(ctx)
	if err != nil {
		t.Fatalf("DocIDs: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("DocIDs: want 2 after rebuild, got %d", len(ids))
	}
	if _, ok := ids["note_1.png"]; !ok {
		t.Fatalf("DocIDs: note_1.png missing: %v", ids)
	}
}

func TestStoreAbsentIndex(t *testing.T) {
	store, err := NewStore(logger.NewNop(), &fixedEmbedder{}, t.TempDir(), 4)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer store.Close()

	if err := store.LoadIndex(); !errors.Is(err, ErrIndexAbsent) {
		t.Fatalf("LoadIndex: want ErrIndexAbsent, got %v", err)
	}
	if _, err := store.Retrieve(context.Background(), "anything", 1); !errors.Is(err, ErrIndexAbsent) {
		t.Fatalf("Retrieve: want ErrIndexAbsent, got %v", err)
	}

	ids, err := store.DocIDs(context.Background())
	if err != nil {
		t.Fatalf("DocIDs: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("DocIDs: want empty for absent index, got %v", ids)
	}
}
