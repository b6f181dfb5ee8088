package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete service configuration
type Config struct {
	HTTP          HTTPConfig          `yaml:"http"`
	Storage       StorageConfig       `yaml:"storage"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	Diarization   DiarizationConfig   `yaml:"diarization"`
	TextMerge     TextMergeConfig     `yaml:"text_merge"`
	Retry         RetryConfig         `yaml:"retry"`
	Ingest        IngestConfig        `yaml:"ingest"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// HTTPConfig contains HTTP API server configuration
type HTTPConfig struct {
	Port         int    `yaml:"port"`
	Address      string `yaml:"address"`
	ReadTimeout  int    `yaml:"read_timeout"`  // seconds
	WriteTimeout int    `yaml:"write_timeout"` // seconds
	MaxChunkMB   int    `yaml:"max_chunk_mb"`
}

// StorageConfig contains session and audio storage configuration
type StorageConfig struct {
	Backend  string `yaml:"backend"` // "memory" or "badger"
	DataDir  string `yaml:"data_dir"`
	AudioDir string `yaml:"audio_dir"`
}

// TranscriptionConfig contains the transcription collaborator configuration
type TranscriptionConfig struct {
	Endpoint      string `yaml:"endpoint"`
	APIKey        string `yaml:"api_key"`
	Model         string `yaml:"model"`
	Timeout       int    `yaml:"timeout"` // seconds
	MaxConcurrent int    `yaml:"max_concurrent"`
}

// DiarizationConfig contains the optional diarization collaborator configuration
type DiarizationConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	Language string `yaml:"language"`
	Timeout  int    `yaml:"timeout"` // seconds
}

// TextMergeConfig contains the semantic merge collaborator configuration
type TextMergeConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	Timeout  int    `yaml:"timeout"` // seconds
}

// RetryConfig contains the bounded retry policy for collaborator calls
type RetryConfig struct {
	Attempts    int `yaml:"attempts"`
	BackoffBase int `yaml:"backoff_base_ms"` // milliseconds
}

// IngestConfig contains chunk consolidation parameters
type IngestConfig struct {
	ConflictRetries int `yaml:"conflict_retries"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads and parses the configuration file. Values of the form ${VAR}
// are expanded from the environment before parsing so API keys can stay out
// of the file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	expanded := os.ExpandEnv(string(data))

	var config Config
	if err := yaml.Unmarshal([]byte(expanded), &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}

	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("storage config: %w", err)
	}

	if err := c.Transcription.Validate(); err != nil {
		return fmt.Errorf("transcription config: %w", err)
	}

	if err := c.Diarization.Validate(); err != nil {
		return fmt.Errorf("diarization config: %w", err)
	}

	if err := c.TextMerge.Validate(); err != nil {
		return fmt.Errorf("text_merge config: %w", err)
	}

	if err := c.Retry.Validate(); err != nil {
		return fmt.Errorf("retry config: %w", err)
	}

	if err := c.Ingest.Validate(); err != nil {
		return fmt.Errorf("ingest config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates HTTP configuration
func (h *HTTPConfig) Validate() error {
	if h.Port < 1 || h.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", h.Port)
	}

	if h.Address == "" {
		return fmt.Errorf("address cannot be empty")
	}

	if h.ReadTimeout < 1 {
		return fmt.Errorf("read_timeout must be at least 1 second, got %d", h.ReadTimeout)
	}

	if h.WriteTimeout < 1 {
		return fmt.Errorf("write_timeout must be at least 1 second, got %d", h.WriteTimeout)
	}

	if h.MaxChunkMB < 1 {
		return fmt.Errorf("max_chunk_mb must be at least 1, got %d", h.MaxChunkMB)
	}

	return nil
}

// Validate validates storage configuration
func (s *StorageConfig) Validate() error {
	validBackends := map[string]bool{"memory": true, "badger": true}
	if !validBackends[s.Backend] {
		return fmt.Errorf("backend must be 'memory' or 'badger', got '%s'", s.Backend)
	}

	if s.Backend == "badger" && s.DataDir == "" {
		return fmt.Errorf("data_dir cannot be empty when backend is 'badger'")
	}

	if s.AudioDir == "" {
		return fmt.Errorf("audio_dir cannot be empty")
	}

	return nil
}

// Validate validates transcription collaborator configuration
func (t *TranscriptionConfig) Validate() error {
	if t.Endpoint == "" {
		return fmt.Errorf("endpoint cannot be empty")
	}

	if t.APIKey == "" {
		return fmt.Errorf("api_key cannot be empty")
	}

	if t.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", t.Timeout)
	}

	if t.MaxConcurrent < 1 {
		return fmt.Errorf("max_concurrent must be at least 1, got %d", t.MaxConcurrent)
	}

	return nil
}

// Validate validates diarization collaborator configuration
func (d *DiarizationConfig) Validate() error {
	if !d.Enabled {
		return nil
	}

	if d.Endpoint == "" {
		return fmt.Errorf("endpoint cannot be empty when diarization is enabled")
	}

	if d.APIKey == "" {
		return fmt.Errorf("api_key cannot be empty when diarization is enabled")
	}

	if d.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", d.Timeout)
	}

	return nil
}

// Validate validates text merge collaborator configuration
func (t *TextMergeConfig) Validate() error {
	if !t.Enabled {
		return nil
	}

	if t.Endpoint == "" {
		return fmt.Errorf("endpoint cannot be empty when text_merge is enabled")
	}

	if t.APIKey == "" {
		return fmt.Errorf("api_key cannot be empty when text_merge is enabled")
	}

	if t.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", t.Timeout)
	}

	return nil
}

// Validate validates retry configuration
func (r *RetryConfig) Validate() error {
	if r.Attempts < 1 {
		return fmt.Errorf("attempts must be at least 1, got %d", r.Attempts)
	}

	if r.BackoffBase < 1 {
		return fmt.Errorf("backoff_base_ms must be at least 1, got %d", r.BackoffBase)
	}

	return nil
}

// Validate validates ingest configuration
func (i *IngestConfig) Validate() error {
	if i.ConflictRetries < 1 {
		return fmt.Errorf("conflict_retries must be at least 1, got %d", i.ConflictRetries)
	}

	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	return nil
}

// GetReadTimeout returns the HTTP read timeout as a time.Duration
func (h *HTTPConfig) GetReadTimeout() time.Duration {
	return time.Duration(h.ReadTimeout) * time.Second
}

// GetWriteTimeout returns the HTTP write timeout as a time.Duration
func (h *HTTPConfig) GetWriteTimeout() time.Duration {
	return time.Duration(h.WriteTimeout) * time.Second
}

// MaxChunkBytes returns the maximum accepted chunk size in bytes
func (h *HTTPConfig) MaxChunkBytes() int64 {
	return int64(h.MaxChunkMB) << 20
}

// GetTimeout returns the transcription timeout as a time.Duration
func (t *TranscriptionConfig) GetTimeout() time.Duration {
	return time.Duration(t.Timeout) * time.Second
}

// GetTimeout returns the diarization timeout as a time.Duration
func (d *DiarizationConfig) GetTimeout() time.Duration {
	return time.Duration(d.Timeout) * time.Second
}

// GetTimeout returns the text merge timeout as a time.Duration
func (t *TextMergeConfig) GetTimeout() time.Duration {
	return time.Duration(t.Timeout) * time.Second
}

// GetBackoffBase returns the retry backoff base as a time.Duration
func (r *RetryConfig) GetBackoffBase() time.Duration {
	return time.Duration(r.BackoffBase) * time.Millisecond
}
