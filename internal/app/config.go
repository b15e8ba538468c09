package app

import (
	"github.com/yungbote/medscribe-backend/internal/platform/logger"
	"github.com/yungbote/medscribe-backend/internal/utils"
)

type Config struct {
	LogMode     string
	Port        string
	Environment string

	DataDir  string
	IndexDir string
	EmbedDim int

	RetrieverTopK       int
	MemoryMaxChats      int
	PipelineConcurrency int

	CheckpointStoreURI   string
	CheckpointDBName     string
	CheckpointCollection string

	OTelEnabled bool
}

func LoadConfig(log *logger.Logger) Config {
	return Config{
		LogMode:     utils.GetEnv("LOG_MODE", "development", log),
		Port:        utils.GetEnv("PORT", "8080", log),
		Environment: utils.GetEnv("ENVIRONMENT", "development", log),

		DataDir:  utils.GetEnv("DATA_DIR", "data", log),
		IndexDir: utils.GetEnv("INDEX_DIR", "data/vector_index", log),
		EmbedDim: utils.GetEnvAsInt("EMBED_DIM", 1536, log),

		RetrieverTopK:       utils.GetEnvAsInt("RETRIEVER_TOP_K", 1, log),
		MemoryMaxChats:      utils.GetEnvAsInt("MEMORY_MAX_CHATS", 3, log),
		PipelineConcurrency: utils.GetEnvAsInt("PIPELINE_CONCURRENCY", 1, log),

		CheckpointStoreURI:   utils.GetEnv("CHECKPOINT_STORE_URI", "", log),
		CheckpointDBName:     utils.GetEnv("CHECKPOINT_DB_NAME", "medscribe", log),
		CheckpointCollection: utils.GetEnv("CHECKPOINT_COLLECTION", "agent_checkpoints", log),

		OTelEnabled: utils.GetEnvAsBool("OTEL_ENABLED", false, log),
	}
}
