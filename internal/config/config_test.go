package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Default()

	if cfg.Orchestrator.MaxRounds != 5 {
		t.Errorf("MaxRounds = %d, want 5", cfg.Orchestrator.MaxRounds)
	}
	if cfg.Orchestrator.HistoryTail != 5 {
		t.Errorf("HistoryTail = %d, want 5", cfg.Orchestrator.HistoryTail)
	}
	if cfg.Timeouts.Handshake != 10*time.Second {
		t.Errorf("Handshake = %v, want 10s", cfg.Timeouts.Handshake)
	}
	if cfg.Timeouts.Call != 30*time.Second {
		t.Errorf("Call = %v, want 30s", cfg.Timeouts.Call)
	}
	if !cfg.Transcript.Enabled {
		t.Error("transcripts should be enabled by default")
	}
}

func TestLoadFromPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
anthropic:
  api_key: sk-ant-test-key
  use_aws_bedrock: true
  aws_region: eu-west-1
orchestrator:
  max_rounds: 3
timeouts:
  call: 45s
catalog:
  path: /etc/landmeter/backends.yaml
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}

	if cfg.Anthropic.APIKey != "sk-ant-test-key" {
		t.Errorf("APIKey = %q", cfg.Anthropic.APIKey)
	}
	if !cfg.Anthropic.UseAWSBedrock {
		t.Error("UseAWSBedrock not set")
	}
	if cfg.Anthropic.AWSRegion != "eu-west-1" {
		t.Errorf("AWSRegion = %q", cfg.Anthropic.AWSRegion)
	}
	if cfg.Orchestrator.MaxRounds != 3 {
		t.Errorf("MaxRounds = %d, want 3", cfg.Orchestrator.MaxRounds)
	}
	if cfg.Timeouts.Call != 45*time.Second {
		t.Errorf("Call = %v, want 45s", cfg.Timeouts.Call)
	}
	// Defaults fill unset fields
	if cfg.Timeouts.Handshake != 10*time.Second {
		t.Errorf("Handshake = %v, want default 10s", cfg.Timeouts.Handshake)
	}
	if cfg.Catalog.Path != "/etc/landmeter/backends.yaml" {
		t.Errorf("Catalog.Path = %q", cfg.Catalog.Path)
	}
}

func TestLoadFromPathExpandsEnv(t *testing.T) {
	t.Setenv("LANDMETER_TEST_KEY", "sk-ant-from-env")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "anthropic:\n  api_key: ${LANDMETER_TEST_KEY}\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	if cfg.Anthropic.APIKey != "sk-ant-from-env" {
		t.Errorf("APIKey = %q, want expanded value", cfg.Anthropic.APIKey)
	}
}

func TestLoadFromPathMissingFile(t *testing.T) {
	if _, err := LoadFromPath("/nonexistent/config.yaml"); err == nil {
		t.Error("expected error for missing config file")
	}
}
