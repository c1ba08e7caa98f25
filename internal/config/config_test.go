package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestEnvOverrides(t *testing.T) {
	cfg, err := Default()
	if err != nil {
		t.Fatalf("default: %v", err)
	}
	cfg.Paths.ConfigPath = "/tmp/config" // avoid creation

	t.Setenv("SPEECHINSIGHT_ANALYSIS_PROVIDER", "OpenAI")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("GEMINI_API_KEY", "gm-test")
	t.Setenv("ASSEMBLYAI_API_KEY", "aai-test")
	t.Setenv("SPEECHINSIGHT_METRICS_ADDR", "1.2.3.4:9999")
	t.Setenv("SPEECHINSIGHT_LOG_LEVEL", "debug")
	t.Setenv("SPEECHINSIGHT_LOG_FORMAT", "json")
	t.Setenv("SPEECHINSIGHT_AUTO_ANALYZE", "1")
	t.Setenv("SPEECHINSIGHT_STORAGE_DIR", "/srv/journal")

	applyEnvOverrides(cfg)

	if cfg.Analysis.Provider != "openai" {
		t.Fatalf("provider override failed: %q", cfg.Analysis.Provider)
	}
	if cfg.Analysis.APIKey != "sk-test" {
		t.Fatalf("expected openai key to be picked for openai provider, got %q", cfg.Analysis.APIKey)
	}
	if cfg.Transcription.APIKey != "aai-test" {
		t.Fatalf("transcription key override failed")
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Addr != "1.2.3.4:9999" {
		t.Fatalf("metrics override failed: %+v", cfg.Metrics)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Fatalf("logging overrides failed: %+v", cfg.Logging)
	}
	if !cfg.Daemon.AutoAnalyze {
		t.Fatalf("auto analyze should be enabled via env")
	}
	if cfg.Storage.AudioDir != filepath.Join("/srv/journal", "recordings") || cfg.Storage.MetadataDir != filepath.Join("/srv/journal", "metadata") {
		t.Fatalf("storage override failed: %+v", cfg.Storage)
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/config.toml"

	cfg, err := Default()
	if err != nil {
		t.Fatalf("default: %v", err)
	}
	cfg.Paths.ConfigPath = path
	cfg.Analysis.Provider = "heuristic"
	cfg.Hooks = []HookConfig{{Emotions: []string{"sadness"}, Command: "/bin/echo"}}

	if err := Save(cfg, path); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Analysis.Provider != "heuristic" {
		t.Fatalf("expected provider to persist, got %q", loaded.Analysis.Provider)
	}
	if len(loaded.Hooks) != 1 || loaded.Hooks[0].Command != "/bin/echo" {
		t.Fatalf("expected hook to persist: %+v", loaded.Hooks)
	}

	_ = os.Remove(path)
}

func TestLoadWritesTemplateWhenMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Paths.ConfigPath != path {
		t.Fatalf("config path=%q", cfg.Paths.ConfigPath)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected template to be written: %v", err)
	}
}

func TestValidateRejectsUnknownProvider(t *testing.T) {
	cfg, _ := Default()
	cfg.Analysis.Provider = "ouija"
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected validation error for unknown provider")
	}

	cfg, _ = Default()
	cfg.Hooks = []HookConfig{{Emotions: []string{"joy"}}}
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected validation error for hook without command")
	}

	cfg, _ = Default()
	if err := Validate(cfg); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestDurations(t *testing.T) {
	cfg, _ := Default()
	if cfg.PollInterval() != 5*time.Second {
		t.Fatalf("poll interval=%s", cfg.PollInterval())
	}
	cfg.Transcription.PollIntervalSec = 0.25
	if cfg.PollInterval() != 250*time.Millisecond {
		t.Fatalf("poll interval=%s", cfg.PollInterval())
	}
	if cfg.MaxPollInterval() != 30*time.Second {
		t.Fatalf("max poll interval=%s", cfg.MaxPollInterval())
	}
}

func TestLoadValidatesFirstRun(t *testing.T) {
	t.Setenv("SPEECHINSIGHT_ANALYSIS_PROVIDER", "bogus")
	path := filepath.Join(t.TempDir(), "config.toml")
	if _, err := Load(path); err == nil {
		t.Fatalf("unknown provider from env should fail validation on first run")
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("template should still be written: %v", err)
	}
}

func TestUpdateKeepsEnvOutOfFile(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "gm-secret")
	t.Setenv("ASSEMBLYAI_API_KEY", "aai-secret")
	t.Setenv("SPEECHINSIGHT_LOG_LEVEL", "debug")
	path := filepath.Join(t.TempDir(), "config.toml")
	if _, err := Load(path); err != nil {
		t.Fatalf("load: %v", err)
	}
	cfg, err := Update(path, func(c *Config) { c.Audio.DeviceName = "USB Mic" })
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if cfg.Analysis.APIKey != "" || cfg.Logging.Level != "info" {
		t.Fatalf("env leaked into file values: %+v %+v", cfg.Analysis, cfg.Logging)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	for _, secret := range []string{"gm-secret", "aai-secret", "debug"} {
		if strings.Contains(string(b), secret) {
			t.Fatalf("config file contains %q:\n%s", secret, b)
		}
	}
	if !strings.Contains(string(b), "USB Mic") {
		t.Fatalf("device name not saved:\n%s", b)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if loaded.Analysis.APIKey != "gm-secret" {
		t.Fatalf("env key should still apply at load time, got %q", loaded.Analysis.APIKey)
	}
}
