package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		HTTP: HTTPConfig{
			Port:         8080,
			Address:      "0.0.0.0",
			ReadTimeout:  30,
			WriteTimeout: 30,
			MaxChunkMB:   25,
		},
		Storage: StorageConfig{
			Backend:  "badger",
			DataDir:  "./data/sessions",
			AudioDir: "./data/audio",
		},
		Transcription: TranscriptionConfig{
			Endpoint:      "https://api.example.com/transcribe",
			APIKey:        "test-key",
			Model:         "large-v3",
			Timeout:       60,
			MaxConcurrent: 8,
		},
		Diarization: DiarizationConfig{
			Enabled:  true,
			Endpoint: "https://api.example.com/diarize",
			APIKey:   "test-key",
			Model:    "nova-3",
			Language: "en",
			Timeout:  60,
		},
		TextMerge: TextMergeConfig{
			Enabled:  true,
			Endpoint: "https://api.example.com/generate",
			APIKey:   "test-key",
			Model:    "flash",
			Timeout:  30,
		},
		Retry: RetryConfig{
			Attempts:    3,
			BackoffBase: 1000,
		},
		Ingest: IngestConfig{
			ConflictRetries: 5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		expectError bool
		errorMsg    string
	}{
		{
			name:        "valid configuration",
			mutate:      func(c *Config) {},
			expectError: false,
		},
		{
			name:        "invalid http port",
			mutate:      func(c *Config) { c.HTTP.Port = 70000 },
			expectError: true,
			errorMsg:    "port must be between",
		},
		{
			name:        "unknown storage backend",
			mutate:      func(c *Config) { c.Storage.Backend = "postgres" },
			expectError: true,
			errorMsg:    "backend must be",
		},
		{
			name:        "badger backend requires data dir",
			mutate:      func(c *Config) { c.Storage.DataDir = "" },
			expectError: true,
			errorMsg:    "data_dir cannot be empty",
		},
		{
			name:        "missing transcription endpoint",
			mutate:      func(c *Config) { c.Transcription.Endpoint = "" },
			expectError: true,
			errorMsg:    "endpoint cannot be empty",
		},
		{
			name:        "missing transcription api key",
			mutate:      func(c *Config) { c.Transcription.APIKey = "" },
			expectError: true,
			errorMsg:    "api_key cannot be empty",
		},
		{
			name: "disabled diarization skips validation",
			mutate: func(c *Config) {
				c.Diarization = DiarizationConfig{Enabled: false}
			},
			expectError: false,
		},
		{
			name: "enabled diarization requires endpoint",
			mutate: func(c *Config) {
				c.Diarization.Endpoint = ""
			},
			expectError: true,
			errorMsg:    "endpoint cannot be empty when diarization is enabled",
		},
		{
			name:        "zero retry attempts",
			mutate:      func(c *Config) { c.Retry.Attempts = 0 },
			expectError: true,
			errorMsg:    "attempts must be at least 1",
		},
		{
			name:        "invalid log level",
			mutate:      func(c *Config) { c.Logging.Level = "verbose" },
			expectError: true,
			errorMsg:    "level must be one of",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.expectError {
				if err == nil {
					t.Fatalf("expected validation error, got nil")
				}
				if tt.errorMsg != "" && !strings.Contains(err.Error(), tt.errorMsg) {
					t.Errorf("expected error containing %q, got %q", tt.errorMsg, err.Error())
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected validation error: %v", err)
			}
		})
	}
}

func TestLoadExpandsEnvironment(t *testing.T) {
	t.Setenv("TEST_TRANSCRIBE_KEY", "secret-from-env")

	content := `
http:
  port: 8080
  address: "0.0.0.0"
  read_timeout: 30
  write_timeout: 30
  max_chunk_mb: 25
storage:
  backend: memory
  audio_dir: ./data/audio
transcription:
  endpoint: https://api.example.com/transcribe
  api_key: ${TEST_TRANSCRIBE_KEY}
  model: large-v3
  timeout: 60
  max_concurrent: 8
diarization:
  enabled: false
text_merge:
  enabled: false
retry:
  attempts: 3
  backoff_base_ms: 1000
ingest:
  conflict_retries: 5
logging:
  level: info
  format: json
  output: stdout
`

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Transcription.APIKey != "secret-from-env" {
		t.Errorf("expected api key expanded from env, got %q", cfg.Transcription.APIKey)
	}

	if cfg.Transcription.GetTimeout() != 60*time.Second {
		t.Errorf("expected 60s timeout, got %v", cfg.Transcription.GetTimeout())
	}

	if cfg.Retry.GetBackoffBase() != time.Second {
		t.Errorf("expected 1s backoff base, got %v", cfg.Retry.GetBackoffBase())
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
}
