package app

import (
	"fmt"
	neturl "net/url"
	"strings"

	"github.com/yungbote/medscribe-backend/internal/checkpoint"
	"github.com/yungbote/medscribe-backend/internal/platform/logger"
)

// Injection points so provider resolution can be tested without live
// backends.
var (
	newSQLStore = func(log *logger.Logger, cfg checkpoint.SQLConfig) (checkpoint.Store, error) {
		return checkpoint.NewSQLStore(log, cfg)
	}
	newRedisStore = func(log *logger.Logger, cfg checkpoint.RedisConfig) (checkpoint.Store, error) {
		return checkpoint.NewRedisStore(log, cfg)
	}
	newMemoryStore = func() checkpoint.Store {
		return checkpoint.NewMemoryStore()
	}
)

type CheckpointBootstrapErrorCode string

const (
	CheckpointBootstrapErrorMissingURI    CheckpointBootstrapErrorCode = "missing_uri"
	CheckpointBootstrapErrorInvalidURI    CheckpointBootstrapErrorCode = "invalid_uri"
	CheckpointBootstrapErrorInvalidScheme CheckpointBootstrapErrorCode = "invalid_scheme"
	CheckpointBootstrapErrorInitFailed    CheckpointBootstrapErrorCode = "init_failed"
)

type CheckpointBootstrapError struct {
	Code   CheckpointBootstrapErrorCode
	Scheme string
	Cause  error
}

func (e *CheckpointBootstrapError) Error() string {
	if e == nil {
		return "checkpoint store bootstrap failed"
	}
	return fmt.Sprintf("checkpoint store bootstrap failed (code=%s scheme=%q): %v", e.Code, e.Scheme, e.Cause)
}

func (e *CheckpointBootstrapError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// resolveCheckpointStore picks the conversation-store backend from the
// CHECKPOINT_STORE_URI scheme. Bootstrap failures are startup failures;
// nothing here is deferred to the first request.
func resolveCheckpointStore(log *logger.Logger, cfg Config) (checkpoint.Store, error) {
	uri := strings.TrimSpace(cfg.CheckpointStoreURI)
	if uri == "" {
		return nil, &CheckpointBootstrapError{
			Code:  CheckpointBootstrapErrorMissingURI,
			Cause: fmt.Errorf("CHECKPOINT_STORE_URI not set"),
		}
	}

	parsed, err := neturl.Parse(uri)
	if err != nil {
		return nil, &CheckpointBootstrapError{
			Code:  CheckpointBootstrapErrorInvalidURI,
			Cause: err,
		}
	}
	scheme := strings.ToLower(parsed.Scheme)

	log.Info("Selecting checkpoint store",
		"scheme", scheme,
		"db_name", cfg.CheckpointDBName,
		"collection", cfg.CheckpointCollection,
	)

	switch scheme {
	case "postgres", "postgresql":
		store, err := newSQLStore(log, checkpoint.SQLConfig{
			Dialect:    "postgres",
			DSN:        uri,
			Collection: cfg.CheckpointCollection,
		})
		if err != nil {
			return nil, &CheckpointBootstrapError{Code: CheckpointBootstrapErrorInitFailed, Scheme: scheme, Cause: err}
		}
		return store, nil

	case "sqlite":
		store, err := newSQLStore(log, checkpoint.SQLConfig{
			Dialect:    "sqlite",
			DSN:        strings.TrimPrefix(uri, "sqlite://"),
			Collection: cfg.CheckpointCollection,
		})
		if err != nil {
			return nil, &CheckpointBootstrapError{Code: CheckpointBootstrapErrorInitFailed, Scheme: scheme, Cause: err}
		}
		return store, nil

	case "redis", "rediss":
		store, err := newRedisStore(log, checkpoint.RedisConfig{
			URL:    uri,
			Prefix: cfg.CheckpointDBName + ":" + cfg.CheckpointCollection,
		})
		if err != nil {
			return nil, &CheckpointBootstrapError{Code: CheckpointBootstrapErrorInitFailed, Scheme: scheme, Cause: err}
		}
		return store, nil

	case "memory":
		log.Warn("Using in-memory checkpoint store; conversations will not survive restarts")
		return newMemoryStore(), nil

	default:
		return nil, &CheckpointBootstrapError{
			Code:   CheckpointBootstrapErrorInvalidScheme,
			Scheme: scheme,
			Cause:  fmt.Errorf("unsupported checkpoint store scheme %q", scheme),
		}
	}
}
