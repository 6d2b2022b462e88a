package config

import (
	"os"

	"github.com/BurntSushi/toml"
)

const (
	DefaultConfigPath       = "config.toml"
	DefaultHTTPAddr         = ":8080"
	DefaultJWTExpiresIn     = "24h"
	DefaultPGHost           = "127.0.0.1"
	DefaultPGPort           = 5432
	DefaultPGUser           = "postgres"
	DefaultPGDatabase       = "botdesk"
	DefaultPGSSLMode        = "disable"
	DefaultQdrantHost       = "127.0.0.1"
	DefaultQdrantPort       = 6334
	DefaultQdrantCollection = "knowledge"
	DefaultChatModel        = "gpt-4o-mini"
	DefaultTemperature      = 0.7
	DefaultMaxTokens        = 1024
	DefaultHistoryWindow    = 20
	DefaultHistoryBudget    = 8000
	DefaultRetrievalTopK    = 4
	DefaultWindowTTLMinutes = 120
)

type Config struct {
	Log      LogConfig      `toml:"log"`
	Server   ServerConfig   `toml:"server"`
	Admin    AdminConfig    `toml:"admin"`
	Auth     AuthConfig     `toml:"auth"`
	Postgres PostgresConfig `toml:"postgres"`
	Qdrant   QdrantConfig   `toml:"qdrant"`
	LLM      LLMConfig      `toml:"llm"`
	Pipeline PipelineConfig `toml:"pipeline"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

type AdminConfig struct {
	Email    string `toml:"email"`
	Password string `toml:"password"`
}

type AuthConfig struct {
	JWTSecret    string `toml:"jwt_secret"`
	JWTExpiresIn string `toml:"jwt_expires_in"`
}

type PostgresConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
	SSLMode  string `toml:"sslmode"`
}

type QdrantConfig struct {
	Host           string `toml:"host"`
	Port           int    `toml:"port"`
	APIKey         string `toml:"api_key"`
	UseTLS         bool   `toml:"use_tls"`
	Collection     string `toml:"collection"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// LLMConfig carries process-level fallback defaults used when an agent's
// configuration leaves model parameters unset, plus the embeddings endpoint.
type LLMConfig struct {
	DefaultProvider    string  `toml:"default_provider"`
	DefaultModel       string  `toml:"default_model"`
	DefaultTemperature float64 `toml:"default_temperature"`
	DefaultMaxTokens   int     `toml:"default_max_tokens"`
	TimeoutSeconds     int     `toml:"timeout_seconds"`

	OpenAI    ProviderConfig   `toml:"openai"`
	Anthropic ProviderConfig   `toml:"anthropic"`
	Ollama    ProviderConfig   `toml:"ollama"`
	Embedding EmbeddingsConfig `toml:"embedding"`
}

type ProviderConfig struct {
	APIKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url"`
}

type EmbeddingsConfig struct {
	Model      string `toml:"model"`
	Dimensions int    `toml:"dimensions"`
	APIKey     string `toml:"api_key"`
	BaseURL    string `toml:"base_url"`
}

// PipelineConfig bounds the dialogue window and retrieval behavior.
type PipelineConfig struct {
	HistoryWindow    int `toml:"history_window"`
	HistoryBudget    int `toml:"history_budget"`
	RetrievalTopK    int `toml:"retrieval_top_k"`
	WindowTTLMinutes int `toml:"window_ttl_minutes"`
}

func Load(path string) (Config, error) {
	cfg := Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr: DefaultHTTPAddr,
		},
		Admin: AdminConfig{
			Email:    "admin@example.com",
			Password: "change-your-password-here",
		},
		Auth: AuthConfig{
			JWTExpiresIn: DefaultJWTExpiresIn,
		},
		Postgres: PostgresConfig{
			Host:     DefaultPGHost,
			Port:     DefaultPGPort,
			User:     DefaultPGUser,
			Database: DefaultPGDatabase,
			SSLMode:  DefaultPGSSLMode,
		},
		Qdrant: QdrantConfig{
			Host:       DefaultQdrantHost,
			Port:       DefaultQdrantPort,
			Collection: DefaultQdrantCollection,
		},
		LLM: LLMConfig{
			DefaultProvider:    "openai",
			DefaultModel:       DefaultChatModel,
			DefaultTemperature: DefaultTemperature,
			DefaultMaxTokens:   DefaultMaxTokens,
			TimeoutSeconds:     60,
		},
		Pipeline: PipelineConfig{
			HistoryWindow:    DefaultHistoryWindow,
			HistoryBudget:    DefaultHistoryBudget,
			RetrievalTopK:    DefaultRetrievalTopK,
			WindowTTLMinutes: DefaultWindowTTLMinutes,
		},
	}

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}
