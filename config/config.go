// Package config loads toolflow settings from YAML with environment
// overrides.
//
// Example file:
//
//	timeout_seconds: 60
//	verbose: true
//	max_model_calls: 10
//	instructions: "You route insurance questions to the right tool."
//	model:
//	  provider: openai
//	  name: gpt-4o-mini
//	  requests_per_second: 2
//	members:
//	  dsn: postgres://localhost:5432/insurance
//	policy:
//	  docs_dir: ./docs
//	  top_k: 3
//	  embedder: openai
//	  embedding_model: text-embedding-3-small
//	logging:
//	  level: info
//	  format: json
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/toolflow/core"
	"github.com/hupe1980/toolflow/logging"
)

// Environment variables that override file values.
const (
	EnvTimeoutSeconds = "TOOLFLOW_TIMEOUT_SECONDS"
	EnvVerbose        = "TOOLFLOW_VERBOSE"
	EnvMembersDSN     = "TOOLFLOW_MEMBERS_DSN"
	EnvModelProvider  = "TOOLFLOW_MODEL_PROVIDER"
	EnvPolicyEmbedder = "TOOLFLOW_POLICY_EMBEDDER"
)

// Model providers understood by the example wiring.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderScripted  = "scripted"
)

// EmbedderOpenAI selects the OpenAI embeddings API for the policy index.
const EmbedderOpenAI = "openai"

// Config is the complete runtime configuration.
type Config struct {
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	Verbose        bool   `yaml:"verbose"`
	MaxModelCalls  int    `yaml:"max_model_calls"`
	Instructions   string `yaml:"instructions"`

	Model   ModelConfig   `yaml:"model"`
	Members MembersConfig `yaml:"members"`
	Policy  PolicyConfig  `yaml:"policy"`
	Logging LoggingConfig `yaml:"logging"`
}

// ModelConfig selects the model adapter.
type ModelConfig struct {
	Provider          string  `yaml:"provider"`
	Name              string  `yaml:"name"`
	Temperature       float64 `yaml:"temperature"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// MembersConfig selects the member store. An empty DSN uses the in-memory store.
type MembersConfig struct {
	DSN  string `yaml:"dsn"`
	Seed bool   `yaml:"seed"`
}

// PolicyConfig configures the policy document index. An empty Embedder
// selects the offline keyword index.
type PolicyConfig struct {
	DocsDir        string `yaml:"docs_dir"`
	ChunkSize      int    `yaml:"chunk_size"`
	TopK           int    `yaml:"top_k"`
	Embedder       string `yaml:"embedder"`
	EmbeddingModel string `yaml:"embedding_model"`
}

// LoggingConfig mirrors logging.LoggerConfig in file form.
type LoggingConfig struct {
	Level     string `yaml:"level"`
	Format    string `yaml:"format"`
	AddSource bool   `yaml:"add_source"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		TimeoutSeconds: 120,
		Verbose:        false,
		Model: ModelConfig{
			Provider:    ProviderOpenAI,
			Temperature: 0.2,
			Burst:       1,
		},
		Members: MembersConfig{Seed: true},
		Policy: PolicyConfig{
			TopK: 3,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}

		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// ApplyEnv overrides fields from the environment. lookup is usually os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvTimeoutSeconds); ok && v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return &core.ValidationError{Field: EnvTimeoutSeconds, Message: fmt.Sprintf("not an integer: %q", v)}
		}
		c.TimeoutSeconds = n
	}

	if v, ok := lookup(EnvVerbose); ok && v != "" {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return &core.ValidationError{Field: EnvVerbose, Message: fmt.Sprintf("not a boolean: %q", v)}
		}
		c.Verbose = b
	}

	if v, ok := lookup(EnvMembersDSN); ok {
		c.Members.DSN = v
	}

	if v, ok := lookup(EnvModelProvider); ok && v != "" {
		c.Model.Provider = strings.ToLower(strings.TrimSpace(v))
	}

	if v, ok := lookup(EnvPolicyEmbedder); ok {
		c.Policy.Embedder = strings.ToLower(strings.TrimSpace(v))
	}

	return nil
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs []error

	if c.TimeoutSeconds < 0 {
		errs = append(errs, &core.ValidationError{Field: "timeout_seconds", Message: "must not be negative"})
	}

	if c.MaxModelCalls < 0 {
		errs = append(errs, &core.ValidationError{Field: "max_model_calls", Message: "must not be negative"})
	}

	switch c.Model.Provider {
	case ProviderOpenAI, ProviderAnthropic, ProviderScripted:
	default:
		errs = append(errs, &core.ValidationError{Field: "model.provider", Message: fmt.Sprintf("unknown provider %q", c.Model.Provider)})
	}

	if c.Model.RequestsPerSecond < 0 {
		errs = append(errs, &core.ValidationError{Field: "model.requests_per_second", Message: "must not be negative"})
	}

	if c.Policy.TopK < 0 {
		errs = append(errs, &core.ValidationError{Field: "policy.top_k", Message: "must not be negative"})
	}

	switch c.Policy.Embedder {
	case "", EmbedderOpenAI:
	default:
		errs = append(errs, &core.ValidationError{Field: "policy.embedder", Message: fmt.Sprintf("unknown embedder %q", c.Policy.Embedder)})
	}

	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, &core.ValidationError{Field: "logging.level", Message: err.Error()})
	}

	switch c.Logging.Format {
	case "json", "text":
	default:
		errs = append(errs, &core.ValidationError{Field: "logging.format", Message: fmt.Sprintf("unknown format %q", c.Logging.Format)})
	}

	return errors.Join(errs...)
}

// Timeout returns the run timeout as a duration.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// LoggerConfig converts the logging section to a logging.LoggerConfig.
func (c Config) LoggerConfig() *logging.LoggerConfig {
	cfg := logging.DefaultLoggerConfig()

	if level, err := logging.ParseLevel(c.Logging.Level); err == nil {
		cfg.Level = level
	}

	cfg.Format = c.Logging.Format
	cfg.AddSource = c.Logging.AddSource

	return cfg
}
