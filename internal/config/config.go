// Package config loads careline's layered configuration: built-in defaults,
// then dotenv files, then an optional TOML config file, then CARELINE_* env
// overrides. There is no implicit process-wide config value; callers receive
// an explicit Config and pass it down.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

const (
	DefaultListenAddr  = "127.0.0.1:8080"
	DefaultMCPPath     = "/mcp"
	DefaultLLMBaseURL  = "https://api.groq.com/openai/v1"
	DefaultLLMModel    = "llama3-8b-8192"
	DefaultRowLimit    = 10
	DefaultHistoryMax  = 10
	DefaultContextSize = 6
)

type Config struct {
	Server   ServerConfig      `toml:"server"`
	Upstream UpstreamConfig    `toml:"upstream"`
	LLM      LLMConfig         `toml:"llm"`
	Chat     ChatConfig        `toml:"chat"`
	Audit    AuditConfig       `toml:"audit"`
	Fields   map[string][]string `toml:"fields"`
}

type ServerConfig struct {
	ListenAddr     string `toml:"listen_addr"`
	MCPPath        string `toml:"mcp_path"`
	RateLimitRPS   int    `toml:"rate_limit_rps"`
	RateLimitBurst int    `toml:"rate_limit_burst"`

	// AuthToken is runtime-only, injected from the environment. Never
	// persisted to the config file.
	AuthToken string `toml:"-"`
}

type UpstreamConfig struct {
	BaseURL        string `toml:"base_url"`
	PatientsPath   string `toml:"patients_path"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	DefaultLimit   int    `toml:"default_limit"`

	// NameParam is the upstream's query parameter name for name filtering.
	NameParam string `toml:"name_param"`

	// AuthType is "bearer", "api_key" or "none". AuthHeader applies to
	// api_key auth only. AuthToken is runtime-only.
	AuthType   string `toml:"auth_type"`
	AuthHeader string `toml:"auth_header"`
	AuthToken  string `toml:"-"`
}

type LLMConfig struct {
	BaseURL string `toml:"base_url"`
	Model   string `toml:"model"`
	APIKey  string `toml:"-"`
}

type ChatConfig struct {
	HistoryMax   int `toml:"history_max"`
	ContextTurns int `toml:"context_turns"`
}

type AuditConfig struct {
	// Path of the sqlite audit database. Empty disables auditing.
	Path string `toml:"path"`
}

func Default() Config {
	return Config{
		Server: ServerConfig{
			ListenAddr:     DefaultListenAddr,
			MCPPath:        DefaultMCPPath,
			RateLimitRPS:   60,
			RateLimitBurst: 20,
		},
		Upstream: UpstreamConfig{
			BaseURL:        "http://localhost:5010/api",
			PatientsPath:   "/Patient",
			TimeoutSeconds: 30,
			DefaultLimit:   DefaultRowLimit,
			NameParam:      "name",
			AuthType:       "none",
			AuthHeader:     "X-API-Key",
		},
		LLM: LLMConfig{
			BaseURL: DefaultLLMBaseURL,
			Model:   DefaultLLMModel,
		},
		Chat: ChatConfig{
			HistoryMax:   DefaultHistoryMax,
			ContextTurns: DefaultContextSize,
		},
		Audit:  AuditConfig{},
		Fields: map[string][]string{},
	}
}

// Save writes the non-secret parts of the config as TOML.
func Save(path string, cfg Config) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write config file %s: %w", path, err)
	}
	return nil
}
