package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"boardcast/internal/config"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Vision.MaxAttempts != 3 {
		t.Fatalf("expected default max_attempts 3, got %d", cfg.Vision.MaxAttempts)
	}
	if cfg.Speech.Voice != "ja-JP-Neural2-B" {
		t.Fatalf("unexpected default voice %q", cfg.Speech.Voice)
	}
	if cfg.Paths.APIBind == "" {
		t.Fatal("expected default api_bind")
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[paths]
data_dir = "` + filepath.Join(dir, "data") + `"
api_bind = "127.0.0.1:9999"

[vision]
model = "test/model"
max_attempts = 5

[speech]
base_url = "https://tts.example.com/v1/synthesize/"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Paths.APIBind != "127.0.0.1:9999" {
		t.Fatalf("api_bind not applied: %q", cfg.Paths.APIBind)
	}
	if cfg.Vision.Model != "test/model" {
		t.Fatalf("vision model not applied: %q", cfg.Vision.Model)
	}
	if cfg.Vision.MaxAttempts != 5 {
		t.Fatalf("max_attempts not applied: %d", cfg.Vision.MaxAttempts)
	}
	if cfg.Speech.BaseURL != "https://tts.example.com/v1/synthesize" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.Speech.BaseURL)
	}
	// Untouched sections keep defaults.
	if cfg.Vision.FallbackModel == "" {
		t.Fatal("expected fallback model default to survive override")
	}
}

func TestValidateRejectsBadAttempts(t *testing.T) {
	cfg := config.Default()
	cfg.Vision.MaxAttempts = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for max_attempts=0")
	}
}

func TestEnsureDirectories(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.AudioDir = filepath.Join(base, "audio")
	cfg.Paths.UploadDir = filepath.Join(base, "uploads")
	cfg.Paths.LogDir = filepath.Join(base, "logs")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.AudioDir, cfg.Paths.UploadDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Fatalf("expected directory %s to exist", dir)
		}
	}
}

func TestWriteSampleRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := config.WriteSample(path); err != nil {
		t.Fatalf("WriteSample failed: %v", err)
	}
	if err := config.WriteSample(path); err == nil {
		t.Fatal("expected error when config already exists")
	}
}
