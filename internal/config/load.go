package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load builds the effective configuration. Precedence, lowest to highest:
// defaults, .env, .env.local, TOML config file, real environment variables.
// An empty path skips the TOML layer.
func Load(path string) (Config, error) {
	cfg := Default()

	loadDotenv()

	if path != "" {
		if err := mergeUserConfig(&cfg, path); err != nil {
			return cfg, err
		}
	}

	mergeEnv(&cfg)
	return cfg, nil
}

// loadDotenv reads .env.local then .env without clobbering variables already
// set in the real environment. Because a key set by an earlier file also
// blocks later files, .env.local wins over .env and the process environment
// wins over both.
func loadDotenv() {
	for _, name := range []string{".env.local", ".env"} {
		vals, err := godotenv.Read(name)
		if err != nil {
			continue
		}
		for k, v := range vals {
			if _, ok := os.LookupEnv(k); ok {
				continue
			}
			os.Setenv(k, v)
		}
	}
}

func mergeUserConfig(cfg *Config, path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("stat config file %s: %w", path, err)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func mergeEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("CARELINE_LISTEN_ADDR")); v != "" {
		cfg.Server.ListenAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("CARELINE_MCP_PATH")); v != "" {
		cfg.Server.MCPPath = v
	}
	if v := strings.TrimSpace(os.Getenv("CARELINE_AUTH_TOKEN")); v != "" {
		cfg.Server.AuthToken = v
	}
	if v := strings.TrimSpace(os.Getenv("CARELINE_UPSTREAM_URL")); v != "" {
		cfg.Upstream.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("CARELINE_UPSTREAM_PATH")); v != "" {
		cfg.Upstream.PatientsPath = v
	}
	if v := strings.TrimSpace(os.Getenv("CARELINE_UPSTREAM_AUTH_TYPE")); v != "" {
		cfg.Upstream.AuthType = v
	}
	if v := strings.TrimSpace(os.Getenv("CARELINE_UPSTREAM_TOKEN")); v != "" {
		cfg.Upstream.AuthToken = v
	}
	if v := strings.TrimSpace(os.Getenv("CARELINE_UPSTREAM_TIMEOUT")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Upstream.TimeoutSeconds = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("CARELINE_DEFAULT_LIMIT")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Upstream.DefaultLimit = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("CARELINE_LLM_BASE_URL")); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("CARELINE_LLM_MODEL")); v != "" {
		cfg.LLM.Model = v
	}
	if v := strings.TrimSpace(os.Getenv("GROQ_API_KEY")); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("CARELINE_AUDIT_DB")); v != "" {
		cfg.Audit.Path = v
	}
}
