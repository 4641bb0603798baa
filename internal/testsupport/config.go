package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shoeless03/snapchat-memory-downloader/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.ExportHTML = filepath.Join(base, "memories_history.html")
	cfgVal.Paths.OutputDir = filepath.Join(base, "memories")
	cfgVal.Paths.LedgerPath = filepath.Join(base, "memories", "download_progress.json")
	cfgVal.Paths.PairsCachePath = filepath.Join(base, "memories", "overlay_pairs.json")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Download.DelaySeconds = 0

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}

	return builder.cfg
}

// WithDelay sets the inter-download delay on the test config.
func WithDelay(seconds float64) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Download.DelaySeconds = seconds
	}
}

// WithRetries sets the maximum download attempts on the test config.
func WithRetries(max int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Download.MaxRetries = max
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, the default external binaries
// are stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ffmpeg", "ffprobe", "exiftool"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}
		b.t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))
	}
}
