package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains file and directory configuration.
type Paths struct {
	ExportHTML     string `toml:"export_html"`
	OutputDir      string `toml:"output_dir"`
	LedgerPath     string `toml:"ledger_path"`
	PairsCachePath string `toml:"pairs_cache_path"`
	LogDir         string `toml:"log_dir"`
}

// Download contains knobs for the fetch engine.
type Download struct {
	DelaySeconds       float64 `toml:"delay_seconds"`
	TimeoutSeconds     int     `toml:"timeout_seconds"`
	MaxRetries         int     `toml:"max_retries"`
	RetryBaseSeconds   float64 `toml:"retry_base_seconds"`
	PermanentSkipAfter int     `toml:"permanent_skip_after"`
}

// Composite contains configuration for overlay compositing.
type Composite struct {
	FFmpegBinary        string `toml:"ffmpeg_binary"`
	FFprobeBinary       string `toml:"ffprobe_binary"`
	VideoTimeoutSeconds int    `toml:"video_timeout_seconds"`
	CopyMetadata        bool   `toml:"copy_metadata"`
	LedgerFlushEvery    int    `toml:"ledger_flush_every"`
}

// Metadata contains configuration for external metadata tooling.
type Metadata struct {
	ExifToolBinary string `toml:"exiftool_binary"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Timezone contains configuration for the UTC-to-local conversion pass.
type Timezone struct {
	// GPSLookup toggles coordinate-based timezone resolution. When off,
	// or when a coordinate resolves to nothing, the system timezone is
	// used instead.
	GPSLookup bool `toml:"gps_lookup"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for the downloader.
//
// Sections by subsystem:
//   - Paths: export HTML location, output tree, ledger and cache files
//   - Download: fetch timeouts, retry/backoff, circuit breaker
//   - Composite: ffmpeg/ffprobe binaries and batch behavior
//   - Metadata: exiftool binary for GPS tagging and tag copies
//   - Timezone: GPS-based timezone conversion
//   - Logging: log format and level
type Config struct {
	Paths     Paths     `toml:"paths"`
	Download  Download  `toml:"download"`
	Composite Composite `toml:"composite"`
	Metadata  Metadata  `toml:"metadata"`
	Timezone  Timezone  `toml:"timezone"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/snapmemories/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized. The boolean reports
// whether a file was actually found.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("snapmemories.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// MediaDirs lists the base media folders under the output directory.
func (c *Config) MediaDirs() []string {
	return []string{
		filepath.Join(c.Paths.OutputDir, "images"),
		filepath.Join(c.Paths.OutputDir, "videos"),
		filepath.Join(c.Paths.OutputDir, "overlays"),
		filepath.Join(c.Paths.OutputDir, "composited", "images"),
		filepath.Join(c.Paths.OutputDir, "composited", "videos"),
	}
}

// EnsureDirectories creates the canonical output tree and the log directory.
// Safe to call repeatedly.
func (c *Config) EnsureDirectories() error {
	dirs := append(c.MediaDirs(), c.Paths.LogDir)
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
