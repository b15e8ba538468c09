package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/yungbote/medscribe-backend/internal/agent"
	"github.com/yungbote/medscribe-backend/internal/platform/logger"
)

type checkpointRow struct {
	ThreadID  string         `gorm:"column:thread_id;primaryKey"`
	State     datatypes.JSON `gorm:"column:state;not null"`
	UpdatedAt time.Time      `gorm:"column:updated_at"`
}

type leaseRow struct {
	ThreadID  string    `gorm:"column:thread_id;primaryKey"`
	Owner     string    `gorm:"column:owner;not null"`
	ExpiresAt time.Time `gorm:"column:expires_at;not null"`
}

// SQLConfig selects the relational backend. Dialect is "postgres" or
// "sqlite"; Collection names the snapshot table (leases live next to it in
// "<collection>_leases").
type SQLConfig struct {
	Dialect      string
	DSN          string
	Collection   string
	LeaseTTL     time.Duration
	PollInterval time.Duration
}

// SQLStore keeps snapshots in a gorm-managed table and serializes threads
// with an expiring lease row.
type SQLStore struct {
	log        *logger.Logger
	db         *gorm.DB
	stateTable string
	leaseTable string
	leaseTTL   time.Duration
	poll       time.Duration
}

func NewSQLStore(log *logger.Logger, cfg SQLConfig) (*SQLStore, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	collection := strings.TrimSpace(cfg.Collection)
	if collection == "" {
		collection = "agent_checkpoints"
	}

	var dialector gorm.Dialector
	switch strings.ToLower(strings.TrimSpace(cfg.Dialect)) {
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported sql dialect %q", cfg.Dialect)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	s := &SQLStore{
		log:        log.With("service", "SQLCheckpointStore"),
		db:         db,
		stateTable: collection,
		leaseTable: collection + "_leases",
		leaseTTL:   cfg.LeaseTTL,
		poll:       cfg.PollInterval,
	}
	if s.leaseTTL <= 0 {
		s.leaseTTL = defaultLeaseTTL
	}
	if s.poll <= 0 {
		s.poll = defaultPollInterval
	}

	if err := db.Table(s.stateTable).AutoMigrate(&checkpointRow{}); err != nil {
		return nil, fmt.Errorf("migrate %s: %w", s.stateTable, err)
	}
	if err := db.Table(s.leaseTable).AutoMigrate(&leaseRow{}); err != nil {
		return nil, fmt.Errorf("migrate %s: %w", s.leaseTable, err)
	}
	s.log.Info("Checkpoint store ready", "dialect", cfg.Dialect, "table", s.stateTable)
	return s, nil
}

func (s *SQLStore) Load(ctx context.Context, threadID string) (*agent.State, error) {
	var row checkpointRow
	err := s.db.WithContext(ctx).Table(s.stateTable).
		Where("thread_id = ?", threadID).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load thread %s: %w", threadID, err)
	}
	var state agent.State
	if err := json.Unmarshal(row.State, &state); err != nil {
		return nil, fmt.Errorf("decode snapshot for thread %s: %w", threadID, err)
	}
	return &state, nil
}

func (s *SQLStore) Save(ctx context.Context, threadID string, state *agent.State) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode snapshot for thread %s: %w", threadID, err)
	}
	row := checkpointRow{ThreadID: threadID, State: raw, UpdatedAt: time.Now().UTC()}
	err = s.db.WithContext(ctx).Table(s.stateTable).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "thread_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"state", "updated_at"}),
		}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("save thread %s: %w", threadID, err)
	}
	return nil
}

// Acquire claims the thread's lease row, stealing expired leases and
// polling until the claim lands or ctx ends.
func (s *SQLStore) Acquire(ctx context.Context, threadID string) (func(), error) {
	owner := uuid.NewString()
	for {
		claimed, err := s.tryClaim(ctx, threadID, owner)
		if err != nil {
			return nil, err
		}
		if claimed {
			return func() { s.release(threadID, owner) }, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.poll):
		}
	}
}

func (s *SQLStore) tryClaim(ctx context.Context, threadID, owner string) (bool, error) {
	var claimed bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Table(s.leaseTable).
			Where("thread_id = ? AND expires_at < ?", threadID, time.Now().UTC()).
			Delete(&leaseRow{}).Error; err != nil {
			return err
		}
		res := tx.Table(s.leaseTable).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(&leaseRow{
				ThreadID:  threadID,
				Owner:     owner,
				ExpiresAt: time.Now().UTC().Add(s.leaseTTL),
			})
		if res.Error != nil {
			return res.Error
		}
		claimed = res.RowsAffected > 0
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("claim lease for thread %s: %w", threadID, err)
	}
	return claimed, nil
}

func (s *SQLStore) release(threadID, owner string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.db.WithContext(ctx).Table(s.leaseTable).
		Where("thread_id = ? AND owner = ?", threadID, owner).
		Delete(&leaseRow{}).Error; err != nil {
		s.log.Warn("Lease release failed; it will expire", "thread_id", threadID, "error", err)
	}
}

func (s *SQLStore) Close() error {
	db, err := s.db.DB()
	if err != nil {
		return err
	}
	return db.Close()
}
