package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	if cfg.Server.ListenAddr != DefaultListenAddr {
		t.Errorf("ListenAddr = %q, want %q", cfg.Server.ListenAddr, DefaultListenAddr)
	}
	if cfg.Upstream.TimeoutSeconds != 30 {
		t.Errorf("TimeoutSeconds = %d, want 30", cfg.Upstream.TimeoutSeconds)
	}
	if cfg.Upstream.DefaultLimit != DefaultRowLimit {
		t.Errorf("DefaultLimit = %d, want %d", cfg.Upstream.DefaultLimit, DefaultRowLimit)
	}
	if cfg.Chat.HistoryMax != DefaultHistoryMax {
		t.Errorf("HistoryMax = %d, want %d", cfg.Chat.HistoryMax, DefaultHistoryMax)
	}
	if cfg.Audit.Path != "" {
		t.Errorf("Audit.Path = %q, want empty (disabled)", cfg.Audit.Path)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.MCPPath != DefaultMCPPath {
		t.Errorf("MCPPath = %q, want %q", cfg.Server.MCPPath, DefaultMCPPath)
	}
}

func TestLoadTOMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "careline.toml")
	body := `
[server]
listen_addr = "0.0.0.0:9090"

[upstream]
base_url = "https://ehr.internal/api"
default_limit = 25

[fields]
diagnosis = ["primary_dx"]
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.ListenAddr != "0.0.0.0:9090" {
		t.Errorf("ListenAddr = %q", cfg.Server.ListenAddr)
	}
	if cfg.Upstream.BaseURL != "https://ehr.internal/api" {
		t.Errorf("BaseURL = %q", cfg.Upstream.BaseURL)
	}
	if cfg.Upstream.DefaultLimit != 25 {
		t.Errorf("DefaultLimit = %d", cfg.Upstream.DefaultLimit)
	}
	// Untouched sections keep their defaults.
	if cfg.LLM.Model != DefaultLLMModel {
		t.Errorf("Model = %q", cfg.LLM.Model)
	}
	if got := cfg.Fields["diagnosis"]; len(got) != 1 || got[0] != "primary_dx" {
		t.Errorf("Fields[diagnosis] = %v", got)
	}
}

func TestEnvOverridesTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "careline.toml")
	if err := os.WriteFile(path, []byte("[upstream]\nbase_url = \"https://file.example\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CARELINE_UPSTREAM_URL", "https://env.example")
	t.Setenv("CARELINE_UPSTREAM_TIMEOUT", "5")
	t.Setenv("GROQ_API_KEY", "gsk_test")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Upstream.BaseURL != "https://env.example" {
		t.Errorf("BaseURL = %q, want env value", cfg.Upstream.BaseURL)
	}
	if cfg.Upstream.TimeoutSeconds != 5 {
		t.Errorf("TimeoutSeconds = %d, want 5", cfg.Upstream.TimeoutSeconds)
	}
	if cfg.LLM.APIKey != "gsk_test" {
		t.Errorf("APIKey = %q", cfg.LLM.APIKey)
	}
}

func TestDotenvPrecedence(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(
		"GROQ_API_KEY=from-dotenv\nCARELINE_UPSTREAM_URL=https://dotenv.example\nCARELINE_LLM_MODEL=model-from-dotenv\n",
	), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".env.local"), []byte(
		"GROQ_API_KEY=from-dotenv-local\nCARELINE_UPSTREAM_URL=https://dotenv-local.example\n",
	), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Chdir(dir)

	// Real environment beats both dotenv files.
	t.Setenv("GROQ_API_KEY", "from-real-env")
	// Unset in the environment: .env.local beats .env.
	t.Setenv("CARELINE_UPSTREAM_URL", "")
	os.Unsetenv("CARELINE_UPSTREAM_URL")
	// Only in .env: still applies.
	t.Setenv("CARELINE_LLM_MODEL", "")
	os.Unsetenv("CARELINE_LLM_MODEL")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LLM.APIKey != "from-real-env" {
		t.Errorf("APIKey = %q, want real environment to win", cfg.LLM.APIKey)
	}
	if cfg.Upstream.BaseURL != "https://dotenv-local.example" {
		t.Errorf("BaseURL = %q, want .env.local to win over .env", cfg.Upstream.BaseURL)
	}
	if cfg.LLM.Model != "model-from-dotenv" {
		t.Errorf("Model = %q, want .env value", cfg.LLM.Model)
	}
}

func TestBadEnvNumbersIgnored(t *testing.T) {
	t.Setenv("CARELINE_UPSTREAM_TIMEOUT", "not-a-number")
	t.Setenv("CARELINE_DEFAULT_LIMIT", "-3")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Upstream.TimeoutSeconds != 30 {
		t.Errorf("TimeoutSeconds = %d, want default 30", cfg.Upstream.TimeoutSeconds)
	}
	if cfg.Upstream.DefaultLimit != DefaultRowLimit {
		t.Errorf("DefaultLimit = %d, want default", cfg.Upstream.DefaultLimit)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "careline.toml")
	cfg := Default()
	cfg.Server.ListenAddr = "127.0.0.1:7777"
	cfg.Server.AuthToken = "secret"
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Server.ListenAddr != "127.0.0.1:7777" {
		t.Errorf("ListenAddr = %q", loaded.Server.ListenAddr)
	}
	if loaded.Server.AuthToken != "" {
		t.Errorf("AuthToken persisted to disk: %q", loaded.Server.AuthToken)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) == "" {
		t.Fatal("config file is empty")
	}
}
