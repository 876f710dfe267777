// Package config provides configuration loading and structs for the reportqa server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hyperjump/reportqa/internal/errs"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	OpenAI    OpenAIConfig    `yaml:"openai"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Persist   PersistConfig   `yaml:"persist"`
	Watch     WatchConfig     `yaml:"watch"`
}

// ServerConfig holds HTTP server settings. PublicBaseURL prefixes object-store URLs;
// it defaults to http://host:port.
type ServerConfig struct {
	Host          string `yaml:"host"`
	Port          int    `yaml:"port"`
	PublicBaseURL string `yaml:"public_base_url"`
}

// StorageConfig holds paths for the database, the keyword index, and uploaded originals.
type StorageConfig struct {
	DatabasePath    string `yaml:"database_path"`
	BleveIndexPath  string `yaml:"bleve_index_path"`
	ObjectStorePath string `yaml:"object_store_path"`
}

// OpenAIConfig holds settings for the embedding and chat completion provider.
// The API key is read from the environment variable named by APIKeyEnv.
type OpenAIConfig struct {
	BaseURL        string   `yaml:"base_url"`
	APIKeyEnv      string   `yaml:"api_key_env"`
	EmbeddingModel string   `yaml:"embedding_model"`
	Dimensions     int      `yaml:"dimensions"`
	ChatModel      string   `yaml:"chat_model"`
	Temperature    *float32 `yaml:"temperature"`
	TimeoutSecs    int      `yaml:"timeout_secs"`
	BatchSize      int      `yaml:"batch_size"`
}

// APIKey returns the key from the configured environment variable.
func (o *OpenAIConfig) APIKey() string {
	return strings.TrimSpace(os.Getenv(o.APIKeyEnv))
}

// TemperatureOrDefault returns the chat temperature; 0.2 when unset. An explicit 0 is kept.
func (o *OpenAIConfig) TemperatureOrDefault() float32 {
	if o.Temperature != nil {
		return *o.Temperature
	}
	return 0.2
}

// Timeout returns the per-call provider timeout.
func (o *OpenAIConfig) Timeout() time.Duration {
	return time.Duration(o.TimeoutSecs) * time.Second
}

// EmbeddingConfig holds query embedding cache settings.
type EmbeddingConfig struct {
	CacheSize int `yaml:"cache_size"`
}

// ChunkingConfig holds the sliding window in characters.
type ChunkingConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

// RetrievalConfig holds answer context settings.
type RetrievalConfig struct {
	TopN int `yaml:"top_n"`
}

// PersistConfig holds row batch sizes for chunk and figure replacement.
type PersistConfig struct {
	ChunkBatchSize  int `yaml:"chunk_batch_size"`
	FigureBatchSize int `yaml:"figure_batch_size"`
}

// WatchConfig holds inbox directory watch settings.
type WatchConfig struct {
	Directories []string `yaml:"directories"`
	Extensions  []string `yaml:"extensions"`
	Recursive   *bool    `yaml:"recursive"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return true
}

// Addr returns host:port for the HTTP listener.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Chunking.Size <= 0 || c.Chunking.Overlap < 0 || c.Chunking.Size <= c.Chunking.Overlap {
		return errs.Newf(errs.KindConfiguration, "config.validate",
			"chunking size %d must be positive and greater than overlap %d", c.Chunking.Size, c.Chunking.Overlap)
	}
	if c.OpenAI.Dimensions <= 0 {
		return errs.Newf(errs.KindConfiguration, "config.validate", "openai dimensions must be positive, got %d", c.OpenAI.Dimensions)
	}
	if c.Retrieval.TopN <= 0 {
		return errs.Newf(errs.KindConfiguration, "config.validate", "retrieval top_n must be positive, got %d", c.Retrieval.TopN)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errs.Newf(errs.KindConfiguration, "config.validate", "invalid server port %d", c.Server.Port)
	}
	return nil
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.BleveIndexPath = expandPath(cfg.Storage.BleveIndexPath, configDir)
	cfg.Storage.ObjectStorePath = expandPath(cfg.Storage.ObjectStorePath, configDir)
	for i := range cfg.Watch.Directories {
		cfg.Watch.Directories[i] = expandPath(cfg.Watch.Directories[i], configDir)
	}

	return &cfg, nil
}

// Save writes the config to path. Used for persisting watch directory add/remove.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
