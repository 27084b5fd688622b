// Package config loads Colloquy settings from an optional YAML file and the
// environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Deployment environments.
const (
	EnvDev  = "dev"
	EnvTest = "test"
	EnvProd = "prod"
)

// DefaultPath is read when COLLOQUY_CONFIG is unset.
const DefaultPath = "config/colloquy.yaml"

type Config struct {
	Env        string           `yaml:"env"`
	Log        LogConfig        `yaml:"log"`
	Server     ServerConfig     `yaml:"server"`
	Limits     LimitsConfig     `yaml:"limits"`
	Simulation SimulationConfig `yaml:"simulation"`
	Providers  ProvidersConfig  `yaml:"providers"`
	Catalog    CatalogConfig    `yaml:"catalog"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type ServerConfig struct {
	Addr           string        `yaml:"addr"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	Keepalive      time.Duration `yaml:"keepalive"`
	// RateLimit is the number of requests per minute allowed per client.
	// Zero disables limiting.
	RateLimit    int   `yaml:"rate_limit"`
	MaxBodyBytes int64 `yaml:"max_body_bytes"`
}

type LimitsConfig struct {
	MaxTurnLimit   int `yaml:"max_turn_limit"`
	MaxAgents      int `yaml:"max_agents"`
	MaxTopicChars  int `yaml:"max_topic_chars"`
	MaxStageChars  int `yaml:"max_stage_chars"`
	MaxPromptChars int `yaml:"max_prompt_chars"`
}

type SimulationConfig struct {
	OrphanGrace       time.Duration `yaml:"orphan_grace"`
	PollInterval      time.Duration `yaml:"poll_interval"`
	EventBuffer       int           `yaml:"event_buffer"`
	CadenceMultiplier int           `yaml:"cadence_multiplier"`
}

type ProvidersConfig struct {
	OpenAIAPIKey    string `yaml:"openai_api_key"`
	OpenAIBaseURL   string `yaml:"openai_base_url"`
	AnthropicAPIKey string `yaml:"anthropic_api_key"`
	GoogleAPIKey    string `yaml:"google_api_key"`
	OllamaBaseURL   string `yaml:"ollama_base_url"`
}

type CatalogConfig struct {
	Path string `yaml:"path"`
}

// Defaults returns the built-in settings.
func Defaults() Config {
	return Config{
		Env: EnvDev,
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Server: ServerConfig{
			Addr:           ":8000",
			AllowedOrigins: []string{"http://localhost:5173"},
			Keepalive:      15 * time.Second,
			RateLimit:      120,
			MaxBodyBytes:   1 << 20,
		},
		Limits: LimitsConfig{
			MaxTurnLimit:   40,
			MaxAgents:      4,
			MaxTopicChars:  2000,
			MaxStageChars:  4000,
			MaxPromptChars: 4000,
		},
		Simulation: SimulationConfig{
			OrphanGrace:       5 * time.Second,
			PollInterval:      50 * time.Millisecond,
			EventBuffer:       256,
			CadenceMultiplier: 2,
		},
		Providers: ProvidersConfig{
			OllamaBaseURL: "http://localhost:11434/v1/",
		},
		Catalog: CatalogConfig{
			Path: "model_catalog.json",
		},
	}
}

// Load applies the YAML file named by COLLOQUY_CONFIG (or DefaultPath) and
// then environment overrides on top of Defaults. A missing file is not an
// error.
func Load() (*Config, error) {
	path := os.Getenv("COLLOQUY_CONFIG")
	if path == "" {
		path = DefaultPath
	}
	return LoadFile(path)
}

// LoadFile is Load with an explicit file path.
func LoadFile(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("COLLOQUY_ENV"); v != "" {
		cfg.Env = strings.ToLower(v)
	}
	if v := os.Getenv("COLLOQUY_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("COLLOQUY_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("COLLOQUY_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("COLLOQUY_ALLOWED_ORIGINS"); v != "" {
		cfg.Server.AllowedOrigins = splitList(v)
	}
	if v := os.Getenv("COLLOQUY_ORPHAN_GRACE"); v != "" {
		d, err := parseDuration(v)
		if err != nil {
			return fmt.Errorf("COLLOQUY_ORPHAN_GRACE: %w", err)
		}
		cfg.Simulation.OrphanGrace = d
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Providers.OpenAIAPIKey = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		cfg.Providers.OpenAIBaseURL = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		cfg.Providers.AnthropicAPIKey = v
	}
	if v := os.Getenv("GOOGLE_API_KEY"); v != "" {
		cfg.Providers.GoogleAPIKey = v
	}
	if v := os.Getenv("OLLAMA_BASE_URL"); v != "" {
		cfg.Providers.OllamaBaseURL = v
	}
	if v := os.Getenv("MODEL_CATALOG_PATH"); v != "" {
		cfg.Catalog.Path = v
	}
	return nil
}

// parseDuration accepts Go durations ("2s") and bare seconds ("2", "0.5").
func parseDuration(v string) (time.Duration, error) {
	if d, err := time.ParseDuration(v); err == nil {
		return d, nil
	}
	secs, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", v)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	switch c.Env {
	case EnvDev, EnvTest, EnvProd:
	default:
		return fmt.Errorf("env must be one of dev, test, prod: got %q", c.Env)
	}
	if c.Limits.MaxTurnLimit < 1 {
		return fmt.Errorf("limits.max_turn_limit must be positive")
	}
	if c.Limits.MaxAgents < 2 {
		return fmt.Errorf("limits.max_agents must be at least 2")
	}
	if c.Simulation.OrphanGrace < 0 {
		return fmt.Errorf("simulation.orphan_grace must not be negative")
	}
	if c.Simulation.CadenceMultiplier < 1 {
		return fmt.Errorf("simulation.cadence_multiplier must be positive")
	}
	return nil
}

// IdleShutdown reports whether orphaned or abandoned runs are cancelled.
func (c *Config) IdleShutdown() bool {
	return c.Env != EnvTest && c.Simulation.OrphanGrace > 0
}
