package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/madelhuette/carvitra-sub001/constants"
)

// Config holds all application configuration
type Config struct {
	Log      LogConfig      `yaml:"log"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Storage  StorageConfig  `yaml:"storage"`
	Convert  ConvertConfig  `yaml:"convert"`
	LLM      LLMConfig      `yaml:"llm"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Server   ServerConfig   `yaml:"server"`
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// DatabaseConfig holds the vocabulary source configuration
type DatabaseConfig struct {
	Driver           string        `yaml:"driver"` // postgres, sqlite
	DSN              string        `yaml:"dsn"`
	MaxConns         int32         `yaml:"max_conns"`
	MinConns         int32         `yaml:"min_conns"`
	MaxConnLifetime  time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime  time.Duration `yaml:"max_conn_idle_time"`
	DialTimeout      time.Duration `yaml:"dial_timeout"`
	StatementTimeout time.Duration `yaml:"statement_timeout"`
	Seed             bool          `yaml:"seed"`
}

// RedisConfig holds the shared vocabulary snapshot configuration. Empty Addr disables it.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// StorageConfig holds object storage used to hand documents to the conversion service.
type StorageConfig struct {
	Endpoint      string        `yaml:"endpoint"`
	AccessKey     string        `yaml:"access_key"`
	SecretKey     string        `yaml:"secret_key"`
	Bucket        string        `yaml:"bucket"`
	UseSSL        bool          `yaml:"use_ssl"`
	PresignExpiry time.Duration `yaml:"presign_expiry"`
}

// ConvertConfig holds text-conversion service configuration
type ConvertConfig struct {
	BaseURL         string        `yaml:"base_url"`
	APIKey          string        `yaml:"api_key"`
	Language        string        `yaml:"language"`
	Timeout         time.Duration `yaml:"timeout"`
	MaxRetries      int           `yaml:"max_retries"`
	FallbackOnEmpty bool          `yaml:"fallback_on_empty"`
	Pdftotext       string        `yaml:"pdftotext"`
	ScanBytes       int           `yaml:"scan_bytes"`
}

// LLMConfig holds completion service configuration
type LLMConfig struct {
	Provider       string        `yaml:"provider"` // anthropic, openai, vertex
	Model          string        `yaml:"model"`
	APIKey         string        `yaml:"api_key"`
	BaseURL        string        `yaml:"base_url"`
	Project        string        `yaml:"project"`
	Region         string        `yaml:"region"`
	Temperature    float32       `yaml:"temperature"`
	MaxTokens      int           `yaml:"max_tokens"`
	FieldMaxTokens int           `yaml:"field_max_tokens"`
	Timeout        time.Duration `yaml:"timeout"`
	MaxRetries     int           `yaml:"max_retries"`
}

// PipelineConfig holds orchestration settings
type PipelineConfig struct {
	AcceptConfidence      int           `yaml:"accept_confidence"`
	RequiredFields        []string      `yaml:"required_fields"`
	MapConcurrency        int           `yaml:"map_concurrency"`
	ResolveConcurrency    int           `yaml:"resolve_concurrency"`
	ResolveStagger        time.Duration `yaml:"resolve_stagger"`
	VocabularyLoadTimeout time.Duration `yaml:"vocabulary_load_timeout"`
	Workers               int           `yaml:"workers"`
	QueueSize             int           `yaml:"queue_size"`
	JobTimeout            time.Duration `yaml:"job_timeout"`
	InboxDir              string        `yaml:"inbox_dir"` // watched for new offer PDFs when set
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr string `yaml:"grpc_addr"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{Level: "info", Format: "text"},
		Database: DatabaseConfig{
			Driver:          "postgres",
			MaxConns:        10,
			MinConns:        1,
			MaxConnLifetime: 30 * time.Minute,
			MaxConnIdleTime: 5 * time.Minute,
			DialTimeout:     3 * time.Second,
		},
		Redis:   RedisConfig{KeyPrefix: "carvitra:vocab:"},
		Storage: StorageConfig{Bucket: "offer-documents", PresignExpiry: time.Hour},
		Convert: ConvertConfig{
			BaseURL:         "https://api.pdf.co/v1",
			Language:        "deu",
			Timeout:         constants.DefaultTimeout,
			MaxRetries:      constants.DefaultMaxRetries,
			FallbackOnEmpty: true,
			ScanBytes:       200_000,
		},
		LLM: LLMConfig{
			Provider:       "anthropic",
			Model:          "claude-3-5-haiku-latest",
			Temperature:    0.1,
			MaxTokens:      4000,
			FieldMaxTokens: 100,
			Timeout:        constants.DefaultTimeout,
			MaxRetries:     constants.DefaultMaxRetries,
		},
		Pipeline: PipelineConfig{
			AcceptConfidence:      constants.AcceptConfidence,
			RequiredFields:        []string{"vehicle.make", "vehicle.model"},
			MapConcurrency:        3,
			ResolveConcurrency:    3,
			ResolveStagger:        100 * time.Millisecond,
			VocabularyLoadTimeout: 10 * time.Second,
			Workers:               4,
			QueueSize:             256,
			JobTimeout:            3 * time.Minute,
		},
		Server: ServerConfig{GRPCAddr: ":8080"},
	}
}

// LoadConfig builds the configuration from defaults, the optional YAML file
// named by CONFIG_FILE, and environment variables, in that order.
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.MergeFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

// MergeFile overlays the YAML file at path onto c. Keys absent from the file keep their value.
func (c *Config) MergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return NewAppError("CONFIG_ERROR", "read config file", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return NewAppError("CONFIG_ERROR", fmt.Sprintf("parse %s", path), err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)

	c.Database.Driver = getEnv("DB_DRIVER", c.Database.Driver)
	c.Database.DSN = getEnv("DB_URL", c.Database.DSN)
	c.Database.MaxConns = getEnvAsInt32("DB_MAX_CONNS", c.Database.MaxConns)
	c.Database.MinConns = getEnvAsInt32("DB_MIN_CONNS", c.Database.MinConns)
	c.Database.MaxConnLifetime = getEnvAsDuration("DB_MAX_CONN_LIFETIME", c.Database.MaxConnLifetime)
	c.Database.MaxConnIdleTime = getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", c.Database.MaxConnIdleTime)
	c.Database.DialTimeout = getEnvAsDuration("DB_DIAL_TIMEOUT", c.Database.DialTimeout)
	c.Database.StatementTimeout = getEnvAsDuration("DB_STATEMENT_TIMEOUT", c.Database.StatementTimeout)
	c.Database.Seed = getEnvAsBool("DB_SEED", c.Database.Seed)

	c.Redis.Addr = getEnv("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = getEnvAsInt("REDIS_DB", c.Redis.DB)
	c.Redis.KeyPrefix = getEnv("REDIS_KEY_PREFIX", c.Redis.KeyPrefix)

	c.Storage.Endpoint = getEnv("STORAGE_ENDPOINT", c.Storage.Endpoint)
	c.Storage.AccessKey = getEnv("STORAGE_ACCESS_KEY", c.Storage.AccessKey)
	c.Storage.SecretKey = getEnv("STORAGE_SECRET_KEY", c.Storage.SecretKey)
	c.Storage.Bucket = getEnv("STORAGE_BUCKET", c.Storage.Bucket)
	c.Storage.UseSSL = getEnvAsBool("STORAGE_USE_SSL", c.Storage.UseSSL)
	c.Storage.PresignExpiry = getEnvAsDuration("STORAGE_PRESIGN_EXPIRY", c.Storage.PresignExpiry)

	c.Convert.BaseURL = getEnv("CONVERT_URL", c.Convert.BaseURL)
	c.Convert.APIKey = getEnv("CONVERT_API_KEY", c.Convert.APIKey)
	c.Convert.Language = getEnv("CONVERT_LANGUAGE", c.Convert.Language)
	c.Convert.Timeout = getEnvAsDuration("CONVERT_TIMEOUT", c.Convert.Timeout)
	c.Convert.MaxRetries = getEnvAsInt("CONVERT_MAX_RETRIES", c.Convert.MaxRetries)
	c.Convert.FallbackOnEmpty = getEnvAsBool("CONVERT_FALLBACK_ON_EMPTY", c.Convert.FallbackOnEmpty)
	c.Convert.Pdftotext = getEnv("PDFTOTEXT", c.Convert.Pdftotext)
	c.Convert.ScanBytes = getEnvAsInt("CONVERT_SCAN_BYTES", c.Convert.ScanBytes)

	c.LLM.Provider = strings.ToLower(getEnv("LLM_PROVIDER", c.LLM.Provider))
	c.LLM.Model = getEnv("LLM_MODEL", c.LLM.Model)
	c.LLM.APIKey = getEnv("LLM_API_KEY", c.LLM.APIKey)
	if c.LLM.APIKey == "" {
		switch c.LLM.Provider {
		case "anthropic":
			c.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		case "openai":
			c.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	}
	c.LLM.BaseURL = getEnv("LLM_BASE_URL", c.LLM.BaseURL)
	c.LLM.Project = getEnv("VERTEX_PROJECT", c.LLM.Project)
	c.LLM.Region = getEnv("VERTEX_REGION", c.LLM.Region)
	c.LLM.Temperature = getEnvAsFloat32("LLM_TEMPERATURE", c.LLM.Temperature)
	c.LLM.MaxTokens = getEnvAsInt("LLM_MAX_TOKENS", c.LLM.MaxTokens)
	c.LLM.FieldMaxTokens = getEnvAsInt("LLM_FIELD_MAX_TOKENS", c.LLM.FieldMaxTokens)
	c.LLM.Timeout = getEnvAsDuration("LLM_TIMEOUT", c.LLM.Timeout)
	c.LLM.MaxRetries = getEnvAsInt("LLM_MAX_RETRIES", c.LLM.MaxRetries)

	c.Pipeline.AcceptConfidence = getEnvAsInt("PIPELINE_ACCEPT_CONFIDENCE", c.Pipeline.AcceptConfidence)
	if v := os.Getenv("PIPELINE_REQUIRED_FIELDS"); v != "" {
		c.Pipeline.RequiredFields = splitList(v)
	}
	c.Pipeline.MapConcurrency = getEnvAsInt("PIPELINE_MAP_CONCURRENCY", c.Pipeline.MapConcurrency)
	c.Pipeline.ResolveConcurrency = getEnvAsInt("PIPELINE_RESOLVE_CONCURRENCY", c.Pipeline.ResolveConcurrency)
	c.Pipeline.ResolveStagger = getEnvAsDuration("PIPELINE_RESOLVE_STAGGER", c.Pipeline.ResolveStagger)
	c.Pipeline.VocabularyLoadTimeout = getEnvAsDuration("PIPELINE_VOCABULARY_LOAD_TIMEOUT", c.Pipeline.VocabularyLoadTimeout)
	c.Pipeline.Workers = getEnvAsInt("PIPELINE_WORKERS", c.Pipeline.Workers)
	c.Pipeline.QueueSize = getEnvAsInt("PIPELINE_QUEUE_SIZE", c.Pipeline.QueueSize)
	c.Pipeline.InboxDir = getEnv("PIPELINE_INBOX_DIR", c.Pipeline.InboxDir)
	c.Pipeline.JobTimeout = getEnvAsDuration("PIPELINE_JOB_TIMEOUT", c.Pipeline.JobTimeout)

	c.Server.GRPCAddr = getEnv("GRPC_ADDR", c.Server.GRPCAddr)
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres":
		if c.Database.DSN == "" {
			return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
		}
	case "sqlite":
	default:
		return NewAppError("CONFIG_ERROR", "DB_DRIVER must be postgres or sqlite", ErrInvalidInput)
	}
	switch c.LLM.Provider {
	case "anthropic", "openai":
		if c.LLM.APIKey == "" {
			return NewAppError("CONFIG_ERROR", "LLM_API_KEY is required", ErrInvalidInput)
		}
	case "vertex":
		if c.LLM.Project == "" || c.LLM.Region == "" {
			return NewAppError("CONFIG_ERROR", "VERTEX_PROJECT and VERTEX_REGION are required", ErrInvalidInput)
		}
	default:
		return NewAppError("CONFIG_ERROR", "LLM_PROVIDER must be anthropic, openai or vertex", ErrInvalidInput)
	}
	if c.Pipeline.AcceptConfidence < 0 || c.Pipeline.AcceptConfidence > 100 {
		return NewAppError("CONFIG_ERROR", "PIPELINE_ACCEPT_CONFIDENCE must be within 0..100", ErrInvalidInput)
	}
	if c.Server.GRPCAddr == "" {
		return NewAppError("CONFIG_ERROR", "GRPC_ADDR is required", ErrInvalidInput)
	}
	return nil
}
