// Package config loads settings from defaults, a YAML file and AURA_*
// environment variables.
package config

import (
	"fmt"
	"strings"
)

const (
	BackendOllama = "ollama"
	BackendGemini = "gemini"
)

type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	Engine    EngineConfig
	Ollama    OllamaConfig
	Gemini    GeminiConfig
	Assistant AssistantConfig
	Upload    UploadConfig
	Log       LogConfig
}

type ServerConfig struct {
	Port int
}

type StorageConfig struct {
	DataDir string
}

type EngineConfig struct {
	Backend string
}

type OllamaConfig struct {
	BaseURL   string
	ChatModel string
	FastModel string
}

type GeminiConfig struct {
	APIKey     string
	ChatModel  string
	ImageModel string
}

type AssistantConfig struct {
	Name          string
	ContextTokens int
}

type UploadConfig struct {
	MaxBytes int
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server:  ServerConfig{Port: 4100},
		Storage: StorageConfig{DataDir: defaultDataDir()},
		Engine:  EngineConfig{Backend: BackendOllama},
		Ollama: OllamaConfig{
			BaseURL:   "http://localhost:11434",
			ChatModel: "llama3.1",
			FastModel: "phi3.5",
		},
		Gemini: GeminiConfig{
			ChatModel:  "gemini-2.5-flash",
			ImageModel: "imagen-3.0-generate-002",
		},
		Assistant: AssistantConfig{
			Name:          "A.U.R.A",
			ContextTokens: 4000,
		},
		Upload: UploadConfig{MaxBytes: 100 << 20},
		Log:    LogConfig{Level: "info"},
	}
}

// Load reads configuration from the YAML file at
// $XDG_CONFIG_HOME/aura/config.yaml, then AURA_* environment variables, then
// the secrets file for secret keys still unset.
func Load() (Config, error) {
	return loadWith(newFileBackend(configFilePath()), NewSecrets(secretsFilePath()))
}

// secretReader abstracts the secrets file for testing.
type secretReader interface {
	Get(account string) (string, error)
}

func loadWith(b ConfigBackend, sec secretReader) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if cfg.Gemini.APIKey == "" {
		if key, err := sec.Get(accountGeminiAPIKey); err == nil && key != "" {
			cfg.Gemini.APIKey = key
		}
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	c.Engine.Backend = strings.ToLower(strings.TrimSpace(c.Engine.Backend))
	switch c.Engine.Backend {
	case BackendOllama:
	case BackendGemini:
		if c.Gemini.APIKey == "" {
			return fmt.Errorf("missing required config: Gemini API key. "+
				"Set it via environment variable AURA_GEMINI_API_KEY or in %s", secretsFilePath())
		}
	default:
		return fmt.Errorf("invalid engine.backend %q: want %q or %q", c.Engine.Backend, BackendOllama, BackendGemini)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d", c.Server.Port)
	}
	if c.Upload.MaxBytes <= 0 {
		return fmt.Errorf("invalid upload.max_bytes %d", c.Upload.MaxBytes)
	}
	return nil
}
