package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the llmrank configuration.
type Config struct {
	HTTP    HTTPConfig    `yaml:"http"`
	Auth    AuthConfig    `yaml:"auth"`
	Logging LoggingConfig `yaml:"logging"`
	Backend BackendConfig `yaml:"backend"`
	Scoring ScoringConfig `yaml:"scoring"`
	Probe   ProbeConfig   `yaml:"probe"`
	Budget  BudgetConfig  `yaml:"budget"`
	Store   StoreConfig   `yaml:"store"`

	// SkipIfUnavailable runs the availability probe first and skips scoring when it fails.
	SkipIfUnavailable bool `yaml:"skip_if_unavailable"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"` // bounds a whole streamed rerank response
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// BackendConfig selects the generation backend. Leaving both base_url and
// api_key empty defers to the environment (see ResolveBackend).
type BackendConfig struct {
	Provider             string  `yaml:"provider"`
	BaseURL              string  `yaml:"base_url"`
	APIKey               string  `yaml:"api_key"`
	Model                string  `yaml:"model"`
	Temperature          float32 `yaml:"temperature"`
	MaxTokens            int     `yaml:"max_tokens"`
	DisableLocalFallback bool    `yaml:"disable_local_fallback"`
}

// ScoringConfig tunes the orchestrator and the prompt caps.
type ScoringConfig struct {
	MaxInFlight       int           `yaml:"max_in_flight"`
	PreserveOrder     bool          `yaml:"preserve_order"`
	CallTimeout       time.Duration `yaml:"call_timeout"`
	MaxAttempts       int           `yaml:"max_attempts"`
	RetryBaseDelay    time.Duration `yaml:"retry_base_delay"`
	RetryMaxDelay     time.Duration `yaml:"retry_max_delay"`
	RequestsPerSecond float64       `yaml:"requests_per_second"` // 0 = unlimited
	RunTimeout        time.Duration `yaml:"run_timeout"`         // 0 = unlimited
	DeadlinePolicy    string        `yaml:"deadline_policy"`     // fallback (default) | drop
	MaxQueryRunes     int           `yaml:"max_query_runes"`
	MaxDocumentRunes  int           `yaml:"max_document_runes"`
	MaxDocuments      int           `yaml:"max_documents"` // per HTTP request
}

// ProbeConfig holds availability probe settings.
type ProbeConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

// BudgetConfig holds token budget settings.
type BudgetConfig struct {
	DailyTokenLimit   int64  `yaml:"daily_token_limit"`   // 0 = unlimited
	MonthlyTokenLimit int64  `yaml:"monthly_token_limit"` // 0 = unlimited
	Action            string `yaml:"action"`              // "reject" | "warn" (default)
}

// Enabled reports whether any limit is set.
func (b BudgetConfig) Enabled() bool {
	return b.DailyTokenLimit > 0 || b.MonthlyTokenLimit > 0
}

// StoreConfig holds the optional Redis connection used to persist budget counters.
type StoreConfig struct {
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// Enabled reports whether a store is configured.
func (s StoreConfig) Enabled() bool { return len(s.Addrs) > 0 }

// Default returns a configuration with every default applied and no file read.
func Default() Config {
	cfg := Config{HTTP: HTTPConfig{Port: 8080}}
	cfg.ApplyDefaults()
	return cfg
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadOrDefault is Load, falling back to Default when the environment has no config file.
func LoadOrDefault(env string) (Config, error) {
	cfg, err := Load(env)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// LoadFile reads configuration from path.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
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
		c.HTTP.WriteTimeoutSec = 300
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Backend.MaxTokens <= 0 {
		c.Backend.MaxTokens = 16
	}
	if c.Scoring.MaxInFlight <= 0 {
		c.Scoring.MaxInFlight = 1
	}
	if c.Scoring.MaxAttempts <= 0 {
		c.Scoring.MaxAttempts = 1
	}
	if c.Scoring.CallTimeout <= 0 {
		c.Scoring.CallTimeout = 30 * time.Second
	}
	if c.Scoring.DeadlinePolicy == "" {
		c.Scoring.DeadlinePolicy = "fallback"
	}
	if c.Scoring.MaxDocuments <= 0 {
		c.Scoring.MaxDocuments = 1000
	}
	if c.Probe.Timeout <= 0 {
		c.Probe.Timeout = 5 * time.Second
	}
	if c.Budget.Action == "" {
		c.Budget.Action = "warn"
	}
	if c.Store.ReadinessTimeout <= 0 {
		c.Store.ReadinessTimeout = 10
	}
	// An unset ${VAR:-} in a list leaves an empty entry behind.
	c.Auth.APIKeys = slices.DeleteFunc(c.Auth.APIKeys, func(k string) bool { return k == "" })
	c.Store.Addrs = slices.DeleteFunc(c.Store.Addrs, func(a string) bool { return a == "" })
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.Backend.Temperature < 0 || c.Backend.Temperature > 2 {
		return fmt.Errorf("backend.temperature must be between 0 and 2, got %v", c.Backend.Temperature)
	}
	switch c.Scoring.DeadlinePolicy {
	case "fallback", "drop":
	default:
		return fmt.Errorf("scoring.deadline_policy must be \"fallback\" or \"drop\", got %q", c.Scoring.DeadlinePolicy)
	}
	if c.Scoring.RequestsPerSecond < 0 {
		return fmt.Errorf("scoring.requests_per_second must be >= 0, got %v", c.Scoring.RequestsPerSecond)
	}
	if c.Scoring.RunTimeout < 0 {
		return fmt.Errorf("scoring.run_timeout must be >= 0, got %v", c.Scoring.RunTimeout)
	}
	switch c.Budget.Action {
	case "warn", "reject":
	default:
		return fmt.Errorf("budget.action must be \"warn\" or \"reject\", got %q", c.Budget.Action)
	}
	if c.Budget.DailyTokenLimit < 0 || c.Budget.MonthlyTokenLimit < 0 {
		return fmt.Errorf("budget limits must be >= 0")
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// Relative to the source file, for tests and `go run` from a subdirectory.
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

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
		expr := string(match[2 : len(match)-1])
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
