package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolve_Defaults(t *testing.T) {
	cfg, err := Resolve(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if cfg.PromotionThreshold != 0.65 {
		t.Errorf("threshold = %v", cfg.PromotionThreshold)
	}
	if cfg.SegmentTokens != 2000 {
		t.Errorf("segment tokens = %v", cfg.SegmentTokens)
	}
	if cfg.Model != "gpt-4o-mini" {
		t.Errorf("model = %q", cfg.Model)
	}
	if cfg.ListenAddr != ":8080" {
		t.Errorf("listen addr = %q", cfg.ListenAddr)
	}
}

func TestResolve_FileAndEnvPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `
db_path: /data/condenser.db
slack:
  bot_token: xoxb-from-file
llm:
  model: gpt-4.1
pipeline:
  promotion_threshold: 0.5
  segment_tokens: 1500
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	t.Setenv("SLACK_BOT_TOKEN", "xoxb-from-env")
	t.Setenv("PROMOTION_THRESHOLD", "0.75")

	cfg, err := Resolve(path)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if cfg.DBPath != "/data/condenser.db" {
		t.Errorf("db path = %q", cfg.DBPath)
	}
	if cfg.Model != "gpt-4.1" {
		t.Errorf("model = %q", cfg.Model)
	}
	if cfg.SegmentTokens != 1500 {
		t.Errorf("segment tokens = %d", cfg.SegmentTokens)
	}
	// Env wins over file.
	if cfg.SlackBotToken != "xoxb-from-env" {
		t.Errorf("slack token = %q", cfg.SlackBotToken)
	}
	if cfg.PromotionThreshold != 0.75 {
		t.Errorf("threshold = %v", cfg.PromotionThreshold)
	}
}

func TestResolve_BadThreshold(t *testing.T) {
	t.Setenv("PROMOTION_THRESHOLD", "not-a-number")
	if _, err := Resolve(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for malformed threshold")
	}
}

func TestResolve_MalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	os.WriteFile(path, []byte("slack: [broken"), 0o644)
	if _, err := Resolve(path); err == nil {
		t.Error("expected error for malformed yaml")
	}
}
