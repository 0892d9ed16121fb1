package config

import (
	"context"
	"time"
)

// Config represents the complete configuration of the chatbot service.
type Config struct {
	Server     ServerConfig     `koanf:"server"     validate:"required"`
	Runtime    RuntimeConfig    `koanf:"runtime"    validate:"required"`
	LLM        LLMConfig        `koanf:"llm"        validate:"required"`
	Embedder   EmbedderConfig   `koanf:"embedder"   validate:"required"`
	Knowledge  KnowledgeConfig  `koanf:"knowledge"  validate:"required"`
	WhatsApp   WhatsAppConfig   `koanf:"whatsapp"`
	Replies    RepliesConfig    `koanf:"replies"    validate:"required"`
	Monitoring MonitoringConfig `koanf:"monitoring"`
	CLI        CLIConfig        `koanf:"cli"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Host         string        `koanf:"host"           validate:"required"        env:"SERVER_HOST"`
	Port         int           `koanf:"port"           validate:"min=1,max=65535" env:"SERVER_PORT"`
	ReadTimeout  time.Duration `koanf:"read_timeout"                              env:"SERVER_READ_TIMEOUT"`
	WriteTimeout time.Duration `koanf:"write_timeout"                             env:"SERVER_WRITE_TIMEOUT"`
	MaxBodyBytes int64         `koanf:"max_body_bytes" validate:"min=1"           env:"SERVER_MAX_BODY_BYTES"`
}

// RuntimeConfig contains process-level behavior.
type RuntimeConfig struct {
	Environment string `koanf:"environment" validate:"oneof=development staging production" env:"RUNTIME_ENVIRONMENT"`
	LogLevel    string `koanf:"log_level"   validate:"oneof=debug info warn error disabled" env:"RUNTIME_LOG_LEVEL"`
	LogJSON     bool   `koanf:"log_json"                                                    env:"RUNTIME_LOG_JSON"`
	LogSource   bool   `koanf:"log_source"                                                  env:"RUNTIME_LOG_SOURCE"`
}

// LLMConfig selects the chat model used to answer questions.
//
// The API key keeps the GROK_API_KEY name because xAI is the default provider.
type LLMConfig struct {
	Provider    string          `koanf:"provider"    validate:"required" env:"LLM_PROVIDER"`
	Model       string          `koanf:"model"       validate:"required" env:"LLM_MODEL"`
	APIKey      SensitiveString `koanf:"api_key"                         env:"GROK_API_KEY"    sensitive:"true"`
	BaseURL     string          `koanf:"base_url"                        env:"LLM_BASE_URL"`
	Temperature float64         `koanf:"temperature" validate:"min=0"    env:"LLM_TEMPERATURE"`
}

// EmbedderConfig selects the embedding model used for indexing and queries.
// Empty APIKey and BaseURL fall back to the LLM values.
type EmbedderConfig struct {
	Provider      string          `koanf:"provider"       validate:"required" env:"EMBEDDER_PROVIDER"`
	Model         string          `koanf:"model"          validate:"required" env:"EMBEDDER_MODEL"`
	APIKey        SensitiveString `koanf:"api_key"                            env:"EMBEDDER_API_KEY"        sensitive:"true"`
	BaseURL       string          `koanf:"base_url"                           env:"EMBEDDER_BASE_URL"`
	Dimension     int             `koanf:"dimension"      validate:"min=0"    env:"EMBEDDER_DIMENSION"`
	BatchSize     int             `koanf:"batch_size"     validate:"min=1"    env:"EMBEDDER_BATCH_SIZE"`
	CacheSize     int             `koanf:"cache_size"     validate:"min=0"    env:"EMBEDDER_CACHE_SIZE"`
	RetryAttempts int             `koanf:"retry_attempts" validate:"min=0"    env:"EMBEDDER_RETRY_ATTEMPTS"`
}

// KnowledgeConfig describes the source document and its persisted index.
type KnowledgeConfig struct {
	DocumentPath string `koanf:"document_path" validate:"required"          env:"KNOWLEDGE_DOCUMENT_PATH"`
	IndexDir     string `koanf:"index_dir"     validate:"required"          env:"KNOWLEDGE_INDEX_DIR"`
	IndexFormat  string `koanf:"index_format"  validate:"oneof=json bolt"   env:"KNOWLEDGE_INDEX_FORMAT"`
	ChunkSize    int    `koanf:"chunk_size"    validate:"min=1"             env:"KNOWLEDGE_CHUNK_SIZE"`
	ChunkOverlap int    `koanf:"chunk_overlap" validate:"min=0"             env:"KNOWLEDGE_CHUNK_OVERLAP"`
	TopK         int    `koanf:"top_k"         validate:"min=1"             env:"KNOWLEDGE_TOP_K"`
	Prompt       string `koanf:"prompt"                                     env:"KNOWLEDGE_PROMPT"`
}

// WhatsAppConfig holds Graph API credentials. Secrets have no defaults.
type WhatsAppConfig struct {
	PhoneNumberID string          `koanf:"phone_number_id"                       env:"PHONE_NUMBER_ID"`
	AccessToken   SensitiveString `koanf:"access_token"                          env:"ACCESS_TOKEN"        sensitive:"true"`
	VerifyToken   SensitiveString `koanf:"verify_token"                          env:"VERIFY_TOKEN"        sensitive:"true"`
	AppSecret     SensitiveString `koanf:"app_secret"                            env:"WHATSAPP_APP_SECRET" sensitive:"true"`
	APIBaseURL    string          `koanf:"api_base_url" validate:"required,url"  env:"WHATSAPP_API_BASE_URL"`
	APIVersion    string          `koanf:"api_version"  validate:"required"      env:"WHATSAPP_API_VERSION"`
	Timeout       time.Duration   `koanf:"timeout"                               env:"WHATSAPP_TIMEOUT"`
}

// RepliesConfig holds the fixed texts sent back to users.
type RepliesConfig struct {
	Home     string `koanf:"home"      validate:"required" env:"REPLIES_HOME"`
	NotReady string `koanf:"not_ready" validate:"required" env:"REPLIES_NOT_READY"`
	Error    string `koanf:"error"     validate:"required" env:"REPLIES_ERROR"`
}

type MonitoringConfig struct {
	Enabled bool   `koanf:"enabled" env:"MONITORING_ENABLED"`
	Path    string `koanf:"path"    env:"MONITORING_PATH"    validate:"startswith=/"`
}

// CLIConfig carries values that only make sense for the command line.
type CLIConfig struct {
	ConfigFile string `koanf:"config_file" env:"WABOT_CONFIG_FILE"`
	EnvFile    string `koanf:"env_file"    env:"WABOT_ENV_FILE"`
}

// Service defines the configuration loading service.
type Service interface {
	// Load loads configuration from the specified sources with precedence order.
	Load(ctx context.Context, sources ...Source) (*Config, error)
	// Validate validates the provided configuration.
	Validate(config *Config) error
	// GetSource returns the source type for a specific configuration key.
	GetSource(key string) SourceType
}

// Source defines the interface for configuration sources.
type Source interface {
	// Load returns configuration data as a nested map.
	Load() (map[string]any, error)
	// Type returns the source type identifier.
	Type() SourceType
	// Close releases any resources held by the source.
	Close() error
}

// SourceType identifies the type of configuration source.
type SourceType string

const (
	SourceCLI     SourceType = "cli"
	SourceYAML    SourceType = "yaml"
	SourceEnv     SourceType = "env"
	SourceDefault SourceType = "default"
)

const (
	DefaultNotReadyReply = "I'm not ready yet. Try again later."
	DefaultErrorReply    = "Sorry, I couldn't process your message."
	DefaultHomeReply     = "WhatsApp Chatbot is running!"
)

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         5000,
			ReadTimeout:  15 * time.Second,
			// Zero leaves the webhook response unbounded while the model answers.
			WriteTimeout: 0,
			MaxBodyBytes: 1 << 20,
		},
		Runtime: RuntimeConfig{
			Environment: "development",
			LogLevel:    "info",
		},
		LLM: LLMConfig{
			Provider: "xai",
			Model:    "grok-3-mini",
		},
		Embedder: EmbedderConfig{
			Provider:      "openai",
			Model:         "text-embedding-ada-002",
			BatchSize:     64,
			CacheSize:     512,
			RetryAttempts: 3,
		},
		Knowledge: KnowledgeConfig{
			DocumentPath: "documents/knowledge-base.pdf",
			IndexDir:     "vector_index",
			IndexFormat:  "json",
			ChunkSize:    500,
			ChunkOverlap: 50,
			TopK:         4,
		},
		WhatsApp: WhatsAppConfig{
			APIBaseURL: "https://graph.facebook.com",
			APIVersion: "v19.0",
		},
		Replies: RepliesConfig{
			Home:     DefaultHomeReply,
			NotReady: DefaultNotReadyReply,
			Error:    DefaultErrorReply,
		},
		Monitoring: MonitoringConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		CLI: CLIConfig{
			ConfigFile: "wabot.yaml",
			EnvFile:    ".env",
		},
	}
}
