package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the hscodex service configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Corpus    CorpusConfig    `yaml:"corpus"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Search    SearchConfig    `yaml:"search"`
	Snapshot  SnapshotConfig  `yaml:"snapshot"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// CorpusConfig holds corpus source settings.
type CorpusConfig struct {
	Path string `yaml:"path"` // .csv or .parquet
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Driver     string        `yaml:"driver"` // openai, bedrock (default: openai)
	Model      string        `yaml:"model"`
	Dimensions int           `yaml:"dimensions"` // expected vector dimension; 0 = take from corpus
	TimeoutSec int           `yaml:"timeout_sec"`
	InputType  string        `yaml:"input_type"` // default: search_query
	OpenAI     OpenAIConfig  `yaml:"openai"`
	Bedrock    BedrockConfig `yaml:"bedrock"`
}

// OpenAIConfig holds OpenAI-compatible provider settings.
type OpenAIConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// BedrockConfig holds AWS Bedrock provider settings.
type BedrockConfig struct {
	Region string `yaml:"region"`
}

// SearchConfig holds search behavior settings.
type SearchConfig struct {
	DefaultK int `yaml:"default_k"`
}

// SnapshotConfig holds "last search" snapshot sink settings.
type SnapshotConfig struct {
	Driver string              `yaml:"driver"` // file, redis (default: file)
	Path   string              `yaml:"path"`
	Mode   string              `yaml:"mode"` // overwrite (default), append
	Redis  RedisSnapshotConfig `yaml:"redis"`
}

// RedisSnapshotConfig holds redis snapshot sink settings.
type RedisSnapshotConfig struct {
	Addrs    []string `yaml:"addrs"`
	Password string   `yaml:"password"`
	Key      string   `yaml:"key"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
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
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Embedding.Driver == "" {
		c.Embedding.Driver = "openai"
	}
	if c.Embedding.TimeoutSec <= 0 {
		c.Embedding.TimeoutSec = 10
	}
	if c.Embedding.InputType == "" {
		c.Embedding.InputType = "search_query"
	}
	if c.Search.DefaultK <= 0 {
		c.Search.DefaultK = 10
	}
	if c.Snapshot.Driver == "" {
		c.Snapshot.Driver = "file"
	}
	if c.Snapshot.Path == "" {
		c.Snapshot.Path = filepath.Join("logs", "results.json")
	}
	if c.Snapshot.Mode == "" {
		c.Snapshot.Mode = "overwrite"
	}
	if c.Snapshot.Redis.Key == "" {
		c.Snapshot.Redis.Key = "hscodex:last_search"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.Corpus.Path == "" {
		return fmt.Errorf("corpus.path is required")
	}
	if c.Embedding.Model == "" {
		return fmt.Errorf("embedding.model is required")
	}
	switch c.Embedding.Driver {
	case "openai", "bedrock":
	default:
		return fmt.Errorf("embedding.driver must be \"openai\" or \"bedrock\", got %q", c.Embedding.Driver)
	}
	switch c.Snapshot.Driver {
	case "file":
	case "redis":
		if len(c.Snapshot.Redis.Addrs) == 0 {
			return fmt.Errorf("snapshot.redis.addrs is required for the redis driver")
		}
	default:
		return fmt.Errorf("snapshot.driver must be \"file\" or \"redis\", got %q", c.Snapshot.Driver)
	}
	switch c.Snapshot.Mode {
	case "overwrite", "append":
	default:
		return fmt.Errorf("snapshot.mode must be \"overwrite\" or \"append\", got %q", c.Snapshot.Mode)
	}
	return nil
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
