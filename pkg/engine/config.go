package engine

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/germanamz/chaichat/pkg/providers/family"
	"github.com/germanamz/chaichat/pkg/providers/model"
	"github.com/germanamz/chaichat/pkg/providers/openai"
	"gopkg.in/yaml.v3"
)

// Config is the top-level engine configuration.
type Config struct {
	Providers          []ProviderConfig `yaml:"providers"`
	Model              string           `yaml:"model"`
	Temperature        *float64         `yaml:"temperature"`
	PromptsDir         string           `yaml:"prompts_dir"`
	ProfilesDir        string           `yaml:"profiles_dir"`
	Profile            string           `yaml:"profile"`
	Retrieval          RetrievalConfig  `yaml:"retrieval"`
	Speech             SpeechConfig     `yaml:"speech"`
	TranscriptionModel string           `yaml:"transcription_model"`
}

// ProviderConfig describes an LLM provider account.
type ProviderConfig struct {
	Name    string `yaml:"name"`
	Kind    string `yaml:"kind"`
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"` //nolint:gosec // configuration field, not a hardcoded secret
}

// RetrievalConfig enables experience lookup for the Upwork proposal
// workflow. Retrieval is off when IndexHost is empty.
type RetrievalConfig struct {
	OpenAIProvider string `yaml:"openai_provider"` // Provider used for embeddings.
	EmbeddingModel string `yaml:"embedding_model"`
	IndexHost      string `yaml:"index_host"`
	APIKey         string `yaml:"api_key"` //nolint:gosec // configuration field, not a hardcoded secret
	Namespace      string `yaml:"namespace"`
	TopK           int    `yaml:"top_k"`
}

// SpeechConfig controls spoken responses.
type SpeechConfig struct {
	Enabled bool   `yaml:"enabled"`
	Model   string `yaml:"model"`
	Voice   string `yaml:"voice"`
}

// LoadConfig reads a YAML file and returns a Config.
// Environment variables referenced as ${VAR} or $VAR in the YAML are expanded
// before parsing, so API keys can live in the environment (e.g. loaded from
// a .env file) rather than in the config.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is caller-provided configuration, not user input
	if err != nil {
		return Config{}, fmt.Errorf("engine: load config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return Config{}, fmt.Errorf("engine: parse config: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration is internally consistent.
func (c Config) Validate() error {
	if len(c.Providers) == 0 {
		return errors.New("engine: config: at least one provider is required")
	}

	names := make(map[string]family.Family, len(c.Providers))
	for _, p := range c.Providers {
		if p.Name == "" {
			return errors.New("engine: config: provider name is required")
		}
		if p.Kind == "" {
			return fmt.Errorf("engine: config: provider %q: kind is required", p.Name)
		}
		f, err := family.Parse(p.Kind)
		if err != nil {
			return fmt.Errorf("engine: config: provider %q: %w", p.Name, err)
		}
		if _, dup := names[p.Name]; dup {
			return fmt.Errorf("engine: config: duplicate provider name %q", p.Name)
		}
		names[p.Name] = f
	}

	if err := (model.Params{Temperature: c.Temperature}).Validate(); err != nil {
		return fmt.Errorf("engine: config: %w", err)
	}

	if c.Model != "" {
		info, err := family.DefaultCatalog().Lookup(c.Model)
		if err != nil {
			return fmt.Errorf("engine: config: %w", err)
		}
		if !c.hasFamily(info.Family) {
			return fmt.Errorf("engine: config: model %q needs a %s provider", c.Model, info.Family)
		}
	}

	if c.Retrieval.IndexHost != "" {
		f, ok := names[c.Retrieval.OpenAIProvider]
		if !ok {
			return fmt.Errorf("engine: config: retrieval: unknown provider %q", c.Retrieval.OpenAIProvider)
		}
		if f != family.OpenAI {
			return fmt.Errorf("engine: config: retrieval: provider %q is not an openai provider", c.Retrieval.OpenAIProvider)
		}
		if c.Retrieval.TopK < 0 {
			return errors.New("engine: config: retrieval: top_k must not be negative")
		}
	}

	if c.Speech.Enabled {
		if !c.hasFamily(family.OpenAI) {
			return errors.New("engine: config: speech needs an openai provider")
		}
		if c.Speech.Voice != "" && !slices.Contains(openai.Voices, c.Speech.Voice) {
			return fmt.Errorf("engine: config: speech: unknown voice %q", c.Speech.Voice)
		}
	}

	return nil
}

func (c Config) hasFamily(f family.Family) bool {
	for _, p := range c.Providers {
		if pf, err := family.Parse(p.Kind); err == nil && pf == f {
			return true
		}
	}
	return false
}

// handles returns the first provider configured for each family.
func (c Config) handles() map[family.Family]family.Handle {
	out := make(map[family.Family]family.Handle, len(c.Providers))
	for _, p := range c.Providers {
		f, err := family.Parse(p.Kind)
		if err != nil {
			continue
		}
		if _, ok := out[f]; ok {
			continue
		}
		out[f] = family.Handle{Family: f, APIKey: p.APIKey, BaseURL: p.BaseURL}
	}
	return out
}

func (c Config) provider(name string) (ProviderConfig, bool) {
	for _, p := range c.Providers {
		if p.Name == name {
			return p, true
		}
	}
	return ProviderConfig{}, false
}
