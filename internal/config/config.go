package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Vector index drivers.
const (
	DriverValkey   = "valkey"
	DriverRedis    = "redis"
	DriverQdrant   = "qdrant"
	DriverPinecone = "pinecone"
)

// Config holds the vntravel configuration.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Logging    LoggingConfig    `yaml:"logging"`
	Vector     VectorConfig     `yaml:"vector"`
	Graph      GraphConfig      `yaml:"graph"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Generation GenerationConfig `yaml:"generation"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
	// Output is where the chat shell writes logs; stdout is kept for answers.
	Output string `yaml:"output"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// VectorConfig selects and configures the vector index.
type VectorConfig struct {
	Driver           string         `yaml:"driver"` // valkey, redis, qdrant, pinecone (default: valkey)
	Addrs            []string       `yaml:"addrs"`
	Username         string         `yaml:"username"`
	Password         string         `yaml:"password"`
	Index            string         `yaml:"index"`
	KeyPrefix        string         `yaml:"key_prefix"`
	ReturnFields     []string       `yaml:"return_fields"`
	ReadinessTimeout int            `yaml:"readiness_timeout_sec"`
	Qdrant           QdrantConfig   `yaml:"qdrant"`
	Pinecone         PineconeConfig `yaml:"pinecone"`
}

// QdrantConfig holds Qdrant gRPC settings.
type QdrantConfig struct {
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
	UseTLS bool   `yaml:"use_tls"`
}

// PineconeConfig holds Pinecone REST settings.
type PineconeConfig struct {
	APIKey        string `yaml:"api_key"`
	Host          string `yaml:"host"` // index host; resolved from the controller when empty
	Namespace     string `yaml:"namespace"`
	ControllerURL string `yaml:"controller_url"`
	TimeoutSec    int    `yaml:"timeout_sec"`
}

// GraphConfig holds FalkorDB settings.
type GraphConfig struct {
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	Name             string   `yaml:"name"`
	MaxRelated       int      `yaml:"max_related"`
	NodeTypes        []string `yaml:"node_types"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"` // label for metrics
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	// Instruction is prepended to every query before embedding.
	Instruction string `yaml:"instruction"`
}

// GenerationConfig holds chat-completion provider settings.
type GenerationConfig struct {
	Provider    string      `yaml:"provider"`
	APIKey      string      `yaml:"api_key"`
	BaseURL     string      `yaml:"base_url"`
	Model       string      `yaml:"model"`
	Temperature float32     `yaml:"temperature"`
	MaxTokens   int         `yaml:"max_tokens"`
	Retry       RetryConfig `yaml:"retry"`
}

// RetryConfig bounds generation retries.
type RetryConfig struct {
	MaxAttempts    int     `yaml:"max_attempts"`
	InitialDelayMs int     `yaml:"initial_delay_ms"`
	MaxDelayMs     int     `yaml:"max_delay_ms"`
	Multiplier     float64 `yaml:"multiplier"`
	Jitter         *bool   `yaml:"jitter"`
}

// GazetteerEntry is a known place and its alternative spellings.
type GazetteerEntry struct {
	Name    string   `yaml:"name"`
	Aliases []string `yaml:"aliases"`
}

// StageTimeouts bound each upstream stage, in milliseconds.
type StageTimeouts struct {
	EmbedMs    int `yaml:"embed_ms"`
	VectorMs   int `yaml:"vector_ms"`
	GraphMs    int `yaml:"graph_ms"`
	GenerateMs int `yaml:"generate_ms"`
}

// PrewarmConfig controls cache pre-warming.
type PrewarmConfig struct {
	OnStart     bool     `yaml:"on_start"`
	Concurrency int      `yaml:"concurrency"`
	RatePerSec  float64  `yaml:"rate_per_sec"`
	Queries     []string `yaml:"queries"`
}

// PipelineConfig tunes retrieval and fusion.
type PipelineConfig struct {
	TopK          int              `yaml:"top_k"`
	MaxNodes      int              `yaml:"max_nodes"`
	MaxItems      int              `yaml:"max_items"`
	DefaultRegion string           `yaml:"default_region"`
	Gazetteer     []GazetteerEntry `yaml:"gazetteer"` // empty = built-in list
	Timeouts      StageTimeouts    `yaml:"timeouts"`
	Prewarm       PrewarmConfig    `yaml:"prewarm"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from an explicit path.
func LoadFile(configPath string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}
	return Parse(data)
}

// Parse expands env variables, decodes YAML, applies defaults and validates.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		// Generation with retries can take a while.
		c.HTTP.WriteTimeoutSec = 120
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stderr"
	}

	if c.Vector.Driver == "" {
		c.Vector.Driver = DriverValkey
	}
	if c.Vector.Index == "" {
		c.Vector.Index = "vietnam-travel"
	}
	if c.Vector.ReadinessTimeout <= 0 {
		c.Vector.ReadinessTimeout = 10
	}
	if c.Vector.Qdrant.Port <= 0 {
		c.Vector.Qdrant.Port = 6334
	}
	if c.Vector.Pinecone.TimeoutSec <= 0 {
		c.Vector.Pinecone.TimeoutSec = 10
	}

	if c.Graph.Name == "" {
		c.Graph.Name = "travel"
	}
	if c.Graph.MaxRelated <= 0 {
		c.Graph.MaxRelated = 5
	}
	if c.Graph.ReadinessTimeout <= 0 {
		c.Graph.ReadinessTimeout = 10
	}

	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "openai"
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "text-embedding-3-small"
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = 1536
	}

	if c.Generation.Provider == "" {
		c.Generation.Provider = "openai"
	}
	if c.Generation.Model == "" {
		c.Generation.Model = "gpt-4o-mini"
	}
	if c.Generation.MaxTokens <= 0 {
		c.Generation.MaxTokens = 1500
	}
	if c.Generation.Retry.MaxAttempts <= 0 {
		c.Generation.Retry.MaxAttempts = 3
	}
	if c.Generation.Retry.InitialDelayMs <= 0 {
		c.Generation.Retry.InitialDelayMs = 500
	}
	if c.Generation.Retry.MaxDelayMs <= 0 {
		c.Generation.Retry.MaxDelayMs = 8000
	}
	if c.Generation.Retry.Multiplier < 1 {
		c.Generation.Retry.Multiplier = 2
	}
	if c.Generation.Retry.Jitter == nil {
		jitter := true
		c.Generation.Retry.Jitter = &jitter
	}

	p := &c.Pipeline
	if p.TopK <= 0 {
		p.TopK = 5
	}
	if p.MaxNodes <= 0 {
		p.MaxNodes = 15
	}
	if p.MaxItems <= 0 {
		p.MaxItems = 20
	}
	if p.DefaultRegion == "" {
		p.DefaultRegion = "Vietnam"
	}
	if p.Timeouts.EmbedMs <= 0 {
		p.Timeouts.EmbedMs = 10_000
	}
	if p.Timeouts.VectorMs <= 0 {
		p.Timeouts.VectorMs = 5_000
	}
	if p.Timeouts.GraphMs <= 0 {
		p.Timeouts.GraphMs = 5_000
	}
	if p.Timeouts.GenerateMs <= 0 {
		p.Timeouts.GenerateMs = 60_000
	}
	if p.Prewarm.Concurrency <= 0 {
		p.Prewarm.Concurrency = 2
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}

	switch c.Vector.Driver {
	case DriverValkey, DriverRedis:
		if len(c.Vector.Addrs) == 0 {
			return fmt.Errorf("vector.addrs is required for driver %q", c.Vector.Driver)
		}
	case DriverQdrant:
		if c.Vector.Qdrant.Host == "" {
			return errors.New("vector.qdrant.host is required for driver \"qdrant\"")
		}
	case DriverPinecone:
		if c.Vector.Pinecone.APIKey == "" {
			return errors.New("vector.pinecone.api_key is required for driver \"pinecone\"")
		}
	default:
		return fmt.Errorf("vector.driver must be one of valkey, redis, qdrant, pinecone, got %q", c.Vector.Driver)
	}

	if len(c.Graph.Addrs) == 0 {
		return errors.New("graph.addrs is required")
	}
	if c.Embedding.Model == "" || c.Generation.Model == "" {
		return errors.New("embedding.model and generation.model are required")
	}
	if c.Generation.Temperature < 0 || c.Generation.Temperature > 2 {
		return fmt.Errorf("generation.temperature must be between 0 and 2, got %v", c.Generation.Temperature)
	}
	if c.Pipeline.Prewarm.RatePerSec < 0 {
		return fmt.Errorf("pipeline.prewarm.rate_per_sec must not be negative, got %v", c.Pipeline.Prewarm.RatePerSec)
	}
	for i, e := range c.Pipeline.Gazetteer {
		if strings.TrimSpace(e.Name) == "" {
			return fmt.Errorf("pipeline.gazetteer[%d].name is required", i)
		}
	}
	return nil
}

// Duration converts a millisecond setting.
func Duration(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
