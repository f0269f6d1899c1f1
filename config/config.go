package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Port        int    `yaml:"port" validate:"gt=0,lte=65535"`
	Mode        string `yaml:"mode" validate:"oneof=debug release test"`
	MaxUploadMB int    `yaml:"max_upload_mb" validate:"gt=0"`
}

// LogConfig controls the application logger.
type LogConfig struct {
	Level   string `yaml:"level" validate:"oneof=debug info warn error"`
	File    string `yaml:"file"`
	Console bool   `yaml:"console"`
	Dev     bool   `yaml:"dev"`
}

// SessionConfig controls session workspaces.
type SessionConfig struct {
	DataDir       string `yaml:"data_dir" validate:"required"`
	ResetOnUpload bool   `yaml:"reset_on_upload"`
	IdleTTLMins   int    `yaml:"idle_ttl_mins" validate:"gte=0"`
}

// ExtractorConfig selects the PDF backend.
type ExtractorConfig struct {
	Type             string `yaml:"type" validate:"oneof=pdf unipdf"`
	UnidocLicenseEnv string `yaml:"unidoc_license_env"`
}

// ChunkerConfig configures how extracted text is split.
type ChunkerConfig struct {
	Type         string `yaml:"type" validate:"oneof=window recursive token"`
	ChunkSize    int    `yaml:"chunk_size" validate:"gt=0"`
	ChunkOverlap int    `yaml:"chunk_overlap" validate:"gte=0,ltfield=ChunkSize"`
}

// EmbedderConfig points at the Ollama embedding model.
type EmbedderConfig struct {
	OllamaURL   string `yaml:"ollama_url" validate:"required,url"`
	Model       string `yaml:"model" validate:"required"`
	TimeoutSecs int    `yaml:"timeout_secs" validate:"gt=0"`
	CacheSize   int    `yaml:"cache_size" validate:"gte=0"`
	CacheTTLMin int    `yaml:"cache_ttl_mins" validate:"gte=0"`
}

// VectorStoreConfig selects and configures the vector store backend.
type VectorStoreConfig struct {
	Type      string `yaml:"type" validate:"oneof=local chroma"`
	ChromaURL string `yaml:"chroma_url" validate:"required_if=Type chroma"`
	TopK      int    `yaml:"top_k" validate:"gt=0"`
}

// GeneratorConfig selects the model that writes answers.
type GeneratorConfig struct {
	Type         string `yaml:"type" validate:"oneof=ollama gemini"`
	OllamaURL    string `yaml:"ollama_url"`
	Model        string `yaml:"model" validate:"required"`
	GeminiKeyEnv string `yaml:"gemini_key_env"`
	TimeoutSecs  int    `yaml:"timeout_secs" validate:"gt=0"`
}

// FeedbackConfig controls the feedback log sink.
type FeedbackConfig struct {
	LogPath   string `yaml:"log_path" validate:"required"`
	QueueSize int    `yaml:"queue_size" validate:"gt=0"`
}

// AppConfig is the root configuration structure.
type AppConfig struct {
	Server      ServerConfig      `yaml:"server"`
	Log         LogConfig         `yaml:"log"`
	Session     SessionConfig     `yaml:"session"`
	Extractor   ExtractorConfig   `yaml:"extractor"`
	Chunker     ChunkerConfig     `yaml:"chunker"`
	Embedder    EmbedderConfig    `yaml:"embedder"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Generator   GeneratorConfig   `yaml:"generator"`
	Feedback    FeedbackConfig    `yaml:"feedback"`
}

// Load reads a config from path. A missing file yields the defaults.
// Environment overrides are applied last, then the result is validated.
func Load(path string) (*AppConfig, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("decode config: %w", err)
			}
		}
	}
	applyEnv(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration used when no file is present.
func Default() *AppConfig {
	return &AppConfig{
		Server:    ServerConfig{Port: 8080, Mode: "release", MaxUploadMB: 50},
		Log:       LogConfig{Level: "info", Console: true},
		Session:   SessionConfig{DataDir: "session_data", IdleTTLMins: 120},
		Extractor: ExtractorConfig{Type: "pdf", UnidocLicenseEnv: "UNIDOC_LICENSE_KEY"},
		Chunker:   ChunkerConfig{Type: "window", ChunkSize: 500, ChunkOverlap: 100},
		Embedder: EmbedderConfig{
			OllamaURL:   "http://localhost:11434",
			Model:       "nomic-embed-text:v1.5",
			TimeoutSecs: 120,
			CacheSize:   4096,
			CacheTTLMin: 60,
		},
		VectorStore: VectorStoreConfig{Type: "local", TopK: 3},
		Generator: GeneratorConfig{
			Type:         "ollama",
			Model:        "llama3",
			GeminiKeyEnv: "GEMINI_API_KEY",
			TimeoutSecs:  300,
		},
		Feedback: FeedbackConfig{LogPath: "logs/feedback_log.txt", QueueSize: 64},
	}
}

// Validate checks field constraints declared in the struct tags.
func Validate(cfg *AppConfig) error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func applyEnv(cfg *AppConfig) {
	if host := os.Getenv("OLLAMA_HOST"); host != "" {
		cfg.Embedder.OllamaURL = host
		if cfg.Generator.OllamaURL == "" {
			cfg.Generator.OllamaURL = host
		}
	}
	if url := os.Getenv("CHROMA_URL"); url != "" {
		cfg.VectorStore.ChromaURL = url
	}
	if port, err := strconv.Atoi(os.Getenv("PORT")); err == nil && port > 0 {
		cfg.Server.Port = port
	}
	if cfg.Generator.OllamaURL == "" {
		cfg.Generator.OllamaURL = cfg.Embedder.OllamaURL
	}
}

// Timeout helpers keep the yaml surface in plain integers.

func (c EmbedderConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

func (c EmbedderConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLMin) * time.Minute
}

func (c GeneratorConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

func (c SessionConfig) IdleTTL() time.Duration {
	return time.Duration(c.IdleTTLMins) * time.Minute
}
