package config

import "fmt"

const dataRoot = "/usr/local/var/reportqa/data"

// DefaultExtensions are the inbox file types the extractor understands.
var DefaultExtensions = []string{".txt", ".md", ".csv", ".pdf", ".docx", ".xlsx"}

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.PublicBaseURL == "" {
		cfg.Server.PublicBaseURL = fmt.Sprintf("http://%s:%d", cfg.Server.Host, cfg.Server.Port)
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = dataRoot + "/db/reports.db"
	}
	if cfg.Storage.BleveIndexPath == "" {
		cfg.Storage.BleveIndexPath = dataRoot + "/indices/bleve"
	}
	if cfg.Storage.ObjectStorePath == "" {
		cfg.Storage.ObjectStorePath = dataRoot + "/objects"
	}
	if cfg.OpenAI.APIKeyEnv == "" {
		cfg.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.OpenAI.EmbeddingModel == "" {
		cfg.OpenAI.EmbeddingModel = "text-embedding-3-small"
	}
	if cfg.OpenAI.Dimensions == 0 {
		cfg.OpenAI.Dimensions = 1536
	}
	if cfg.OpenAI.ChatModel == "" {
		cfg.OpenAI.ChatModel = "gpt-4o-mini"
	}
	if cfg.OpenAI.TimeoutSecs == 0 {
		cfg.OpenAI.TimeoutSecs = 60
	}
	if cfg.OpenAI.BatchSize == 0 {
		cfg.OpenAI.BatchSize = 100
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 1000
	}
	if cfg.Chunking.Size == 0 {
		cfg.Chunking.Size = 3000
	}
	if cfg.Chunking.Overlap == 0 {
		cfg.Chunking.Overlap = 300
	}
	if cfg.Retrieval.TopN == 0 {
		cfg.Retrieval.TopN = 5
	}
	if cfg.Persist.ChunkBatchSize == 0 {
		cfg.Persist.ChunkBatchSize = 100
	}
	if cfg.Persist.FigureBatchSize == 0 {
		cfg.Persist.FigureBatchSize = 50
	}
	if cfg.Watch.Extensions == nil {
		cfg.Watch.Extensions = append([]string(nil), DefaultExtensions...)
	}
	// Recursive defaults to true when unset (nil).
	if len(cfg.Watch.Directories) > 0 && cfg.Watch.Recursive == nil {
		t := true
		cfg.Watch.Recursive = &t
	}
}
