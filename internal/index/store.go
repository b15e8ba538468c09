package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/yungbote/medscribe-backend/internal/domain"
	"github.com/yungbote/medscribe-backend/internal/platform/ctxutil"
	"github.com/yungbote/medscribe-backend/internal/platform/logger"
)

func init() {
	sqlite_vec.Auto()
}

// ErrIndexAbsent means no index has been built yet at the configured
// location. The API surfaces it as a server error; the ingest pipeline
// treats it as "nothing indexed".
var ErrIndexAbsent = errors.New("vector index not found")

const indexFileName = "index.db"

// Embedder produces one vector per input, in order.
type Embedder interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
}

// Store persists IndexedDocs with their embeddings in a sqlite-vec database
// and answers nearest-neighbor queries by cosine distance. One row per
// DocumentID; rebuilding an existing document replaces it.
type Store struct {
	log      *logger.Logger
	embedder Embedder
	dir      string
	dim      int

	mu sync.Mutex
	db *sql.DB
}

func NewStore(log *logger.Logger, embedder Embedder, dir string, dim int) (*Store, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder required")
	}
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("index dir required")
	}
	if dim <= 0 {
		return nil, fmt.Errorf("embedding dim must be positive, got %d", dim)
	}
	return &Store{
		log:      log.With("service", "VectorStore"),
		embedder: embedder,
		dir:      dir,
		dim:      dim,
	}, nil
}

func (s *Store) path() string {
	return filepath.Join(s.dir, indexFileName)
}

func (s *Store) dsn() string {
	return fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=30000", s.path())
}

// open returns the shared handle, creating the database file and schema when
// create is set. Without create, a missing file is ErrIndexAbsent.
func (s *Store) open(create bool) (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return s.db, nil
	}

	if create {
		if err := os.MkdirAll(s.dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir %s: %w", s.dir, err)
		}
	} else if _, err := os.Stat(s.path()); errors.Is(err, fs.ErrNotExist) {
		return nil, ErrIndexAbsent
	}

	db, err := sql.Open("sqlite3", s.dsn())
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping index: %w", err)
	}
	if err := s.ensureSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	s.db = db
	s.log.Info("Vector index opened", "path", s.path(), "dim", s.dim)
	return db, nil
}

func (s *Store) ensureSchema(db *sql.DB) error {
	ddl := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS records (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    doc_id TEXT NOT NULL UNIQUE,
    content TEXT NOT NULL,
    patient_name TEXT NOT NULL DEFAULT ''
);

CREATE VIRTUAL TABLE IF NOT EXISTS vec_records USING vec0(
    record_id INTEGER PRIMARY KEY,
    embedding float[%d] distance_metric=cosine
);
`, s.dim)
	if _, err := db.Exec(ddl); err != nil {
		return fmt.Errorf("create index schema: %w", err)
	}
	return nil
}

// LoadIndex opens an existing index, failing with ErrIndexAbsent when none
// has been built.
func (s *Store) LoadIndex() error {
	_, err := s.open(false)
	return err
}

// BuildIndex embeds and upserts docs. Existing documents with the same
// DocumentID are replaced so a rebuild never duplicates.
func (s *Store) BuildIndex(ctx context.Context, docs []domain.IndexedDoc) error {
	ctx = ctxutil.Default(ctx)

	db, err := s.open(true)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		return nil
	}

	contents := make([]string, len(docs))
	for i, d := range docs {
		contents[i] = d.Content
	}
	vectors, err := s.embedder.Embed(ctx, contents)
	if err != nil {
		return fmt.Errorf("embed documents: %w", err)
	}
	if len(vectors) != len(docs) {
		return fmt.Errorf("embed documents: expected %d vectors, got %d", len(docs), len(vectors))
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin index tx: %w", err)
	}
	defer tx.Rollback()

	for i, doc := range docs {
		if len(vectors[i]) != s.dim {
			return fmt.Errorf("document %s: embedding dim %d, index expects %d", doc.Metadata.SourceFile, len(vectors[i]), s.dim)
		}

		var recordID int64
		err := tx.QueryRowContext(ctx, `SELECT id FROM records WHERE doc_id = ?`, doc.Metadata.SourceFile).Scan(&recordID)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			res, err := tx.ExecContext(ctx,
				`INSERT INTO records (doc_id, content, patient_name) VALUES (?, ?, ?)`,
				doc.Metadata.SourceFile, doc.Content, doc.Metadata.PatientName)
			if err != nil {
				return fmt.Errorf("insert record %s: %w", doc.Metadata.SourceFile, err)
			}
			recordID, err = res.LastInsertId()
			if err != nil {
				return fmt.Errorf("insert record %s: %w", doc.Metadata.SourceFile, err)
			}
		case err != nil:
			return fmt.Errorf("lookup record %s: %w", doc.Metadata.SourceFile, err)
		default:
			if _, err := tx.ExecContext(ctx,
				`UPDATE records SET content = ?, patient_name = ? WHERE id = ?`,
				doc.Content, doc.Metadata.PatientName, recordID); err != nil {
				return fmt.Errorf("update record %s: %w", doc.Metadata.SourceFile, err)
			}
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM vec_records WHERE record_id = ?`, recordID); err != nil {
				return fmt.Errorf("clear embedding %s: %w", doc.Metadata.SourceFile, err)
			}
		}

		serialized, err := sqlite_vec.SerializeFloat32(vectors[i])
		if err != nil {
			return fmt.Errorf("serialize embedding %s: %w", doc.Metadata.SourceFile, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO vec_records (record_id, embedding) VALUES (?, ?)`,
			recordID, serialized); err != nil {
			return fmt.Errorf("insert embedding %s: %w", doc.Metadata.SourceFile, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit index tx: %w", err)
	}
	s.log.Info("Vector index updated", "documents", len(docs))
	return nil
}

// Retrieve returns the k nearest documents for query, closest first. The
// index is opened on first use when not already loaded.
func (s *Store) Retrieve(ctx context.Context, query string, k int) ([]domain.IndexedDoc, error) {
	ctx = ctxutil.Default(ctx)
	if k <= 0 {
		k = 1
	}

	db, err := s.open(false)
	if err != nil {
		return nil, err
	}

	vectors, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embed query: expected 1 vector, got %d", len(vectors))
	}
	serialized, err := sqlite_vec.SerializeFloat32(vectors[0])
	if err != nil {
		return nil, fmt.Errorf("serialize query embedding: %w", err)
	}

	rows, err := db.QueryContext(ctx, `
		SELECT r.doc_id, r.content, r.patient_name
		FROM vec_records v
		JOIN records r ON r.id = v.record_id
		WHERE v.embedding MATCH ? AND k = ?
		ORDER BY v.distance
	`, serialized, k)
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}
	defer rows.Close()

	var docs []domain.IndexedDoc
	for rows.Next() {
		var doc domain.IndexedDoc
		if err := rows.Scan(&doc.Metadata.SourceFile, &doc.Content, &doc.Metadata.PatientName); err != nil {
			return nil, fmt.Errorf("scan index row: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate index rows: %w", err)
	}
	return docs, nil
}

// DocIDs lists every indexed DocumentID. An absent index reads as empty.
func (s *Store) DocIDs(ctx context.Context) (map[domain.DocumentID]struct{}, error) {
	ctx = ctxutil.Default(ctx)

	db, err := s.open(false)
	if errors.Is(err, ErrIndexAbsent) {
		return map[domain.DocumentID]struct{}{}, nil
	}
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `SELECT doc_id FROM records`)
	if err != nil {
		return nil, fmt.Errorf("list indexed docs: %w", err)
	}
	defer rows.Close()

	ids := map[domain.DocumentID]struct{}{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan doc id: %w", err)
		}
		ids[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate doc ids: %w", err)
	}
	return ids, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
