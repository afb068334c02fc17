package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir   string `toml:"data_dir"`
	AudioDir  string `toml:"audio_dir"`
	UploadDir string `toml:"upload_dir"`
	LogDir    string `toml:"log_dir"`
	APIBind   string `toml:"api_bind"`
}

// Vision contains connection settings for the board analysis model.
type Vision struct {
	APIKey           string `toml:"api_key"`
	BaseURL          string `toml:"base_url"`
	Model            string `toml:"model"`
	FallbackModel    string `toml:"fallback_model"`
	TimeoutSeconds   int    `toml:"timeout_seconds"`
	MaxAttempts      int    `toml:"max_attempts"`
	RetryBaseSeconds int    `toml:"retry_base_seconds"`
}

// Speech contains connection settings for the speech synthesis service.
type Speech struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Voice          string `toml:"voice"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Notify contains configuration for the worker-to-gateway update bridge.
type Notify struct {
	// Endpoint receiving job change notifications. Empty means notify the
	// daemon's own gateway at api_bind.
	Endpoint       string `toml:"endpoint"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config is the root boardcast configuration.
type Config struct {
	Paths   Paths   `toml:"paths"`
	Vision  Vision  `toml:"vision"`
	Speech  Speech  `toml:"speech"`
	Notify  Notify  `toml:"notify"`
	Logging Logging `toml:"logging"`
}

// DefaultPath returns the conventional config file location.
func DefaultPath() string {
	return expandHome("~/.config/boardcast/config.toml")
}

// Load reads the config file at path (or DefaultPath when empty), layering it
// over defaults. A missing file is not an error; defaults are returned.
func Load(path string) (*Config, error) {
	cfg := Default()

	if strings.TrimSpace(path) == "" {
		path = DefaultPath()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg.normalize()
			return &cfg, cfg.Validate()
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// WriteSample writes the embedded sample config to path, refusing to overwrite.
func WriteSample(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure config dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Validate checks invariants that would otherwise surface as runtime failures.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("config: paths.data_dir must not be empty")
	}
	if strings.TrimSpace(c.Paths.AudioDir) == "" {
		return errors.New("config: paths.audio_dir must not be empty")
	}
	if strings.TrimSpace(c.Paths.APIBind) == "" {
		return errors.New("config: paths.api_bind must not be empty")
	}
	if c.Vision.MaxAttempts < 1 {
		return fmt.Errorf("config: vision.max_attempts must be at least 1, got %d", c.Vision.MaxAttempts)
	}
	if c.Vision.RetryBaseSeconds < 0 {
		return fmt.Errorf("config: vision.retry_base_seconds must not be negative, got %d", c.Vision.RetryBaseSeconds)
	}
	return nil
}

// EnsureDirectories creates every directory the daemon writes into.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.AudioDir, c.Paths.UploadDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

func (c *Config) normalize() {
	c.Paths.DataDir = expandHome(c.Paths.DataDir)
	c.Paths.AudioDir = expandHome(c.Paths.AudioDir)
	c.Paths.UploadDir = expandHome(c.Paths.UploadDir)
	c.Paths.LogDir = expandHome(c.Paths.LogDir)
	c.Vision.BaseURL = strings.TrimRight(strings.TrimSpace(c.Vision.BaseURL), "/")
	c.Speech.BaseURL = strings.TrimRight(strings.TrimSpace(c.Speech.BaseURL), "/")
}

func expandHome(path string) string {
	path = strings.TrimSpace(path)
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil && home != "" {
			if path == "~" {
				return home
			}
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
