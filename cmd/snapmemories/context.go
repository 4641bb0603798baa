package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/shoeless03/snapchat-memory-downloader/internal/config"
	"github.com/shoeless03/snapchat-memory-downloader/internal/deps"
	"github.com/shoeless03/snapchat-memory-downloader/internal/export"
	"github.com/shoeless03/snapchat-memory-downloader/internal/ledger"
	"github.com/shoeless03/snapchat-memory-downloader/internal/logging"
)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// newRunLogger builds the per-run logger: stderr plus a timestamped log
// file, with a short correlation id on every line.
func (c *commandContext) newRunLogger(cfg *config.Config) (*slog.Logger, error) {
	level := cfg.Logging.Level
	if c.logLevelFlag != nil && strings.TrimSpace(*c.logLevelFlag) != "" {
		level = strings.TrimSpace(*c.logLevelFlag)
	}

	stamp := time.Now().UTC().Format("20060102T150405")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("snapmemories-%s.log", stamp))

	logger, err := logging.New(logging.Options{
		Level:  level,
		Format: cfg.Logging.Format,
		Path:   logPath,
	})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	runID := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return logger.With(logging.String(logging.FieldRunID, runID)), nil
}

// acquireRunLock takes the single-instance lock that serializes mutating
// commands. The caller must invoke the returned release function.
func (c *commandContext) acquireRunLock(cfg *config.Config) (func(), error) {
	lockPath := filepath.Join(cfg.Paths.LogDir, "snapmemories.lock")
	lock := flock.New(lockPath)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("another snapmemories instance is already running (lock %s)", lockPath)
	}
	return func() {
		_ = lock.Unlock()
	}, nil
}

func (c *commandContext) openLedger(cfg *config.Config, logger *slog.Logger) (*ledger.Ledger, error) {
	return ledger.Open(cfg.Paths.LedgerPath, logger)
}

func (c *commandContext) loadRecords(cfg *config.Config) ([]export.MemoryRecord, error) {
	records, err := export.ParseFile(cfg.Paths.ExportHTML)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("no memory records found in %s", cfg.Paths.ExportHTML)
	}
	return records, nil
}

// detectTools probes the optional binaries once and prints a one-time
// advisory for anything missing. Missing tools degrade features, never
// abort the run.
func (c *commandContext) detectTools(cfg *config.Config, out io.Writer) deps.Capabilities {
	caps, statuses := deps.Detect(
		cfg.Composite.FFmpegBinary,
		cfg.Composite.FFprobeBinary,
		cfg.Metadata.ExifToolBinary,
	)
	for _, status := range statuses {
		if status.Available {
			continue
		}
		fmt.Fprintf(out, "note: %s unavailable (%s); %s is disabled\n",
			status.Name, status.Detail, status.Description)
	}
	return caps
}

// signalContext returns a context cancelled by SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
