// Package compositor flattens overlay PNGs onto their base media. Images
// are composited in-process; videos shell out to ffmpeg. Outputs land in a
// parallel composited/ tree and originals are never modified.
package compositor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/shoeless03/snapchat-memory-downloader/internal/deps"
	"github.com/shoeless03/snapchat-memory-downloader/internal/export"
	"github.com/shoeless03/snapchat-memory-downloader/internal/layout"
	"github.com/shoeless03/snapchat-memory-downloader/internal/ledger"
	"github.com/shoeless03/snapchat-memory-downloader/internal/logging"
	"github.com/shoeless03/snapchat-memory-downloader/internal/pairs"
)

// MetadataCopier copies source tags onto a freshly written composite.
type MetadataCopier interface {
	CopyTags(ctx context.Context, src, dst string) error
}

// Executor runs the ffmpeg binary. Replaceable for tests.
type Executor interface {
	Run(ctx context.Context, binary string, args []string) error
}

// Config carries the knobs the compositor needs.
type Config struct {
	OutputDir           string
	FFmpegBinary        string
	FFprobeBinary       string
	VideoTimeoutSeconds int
	CopyMetadata        bool
	LedgerFlushEvery    int
}

// Option configures a Compositor.
type Option func(*Compositor)

// WithExecutor injects a custom ffmpeg executor.
func WithExecutor(exec Executor) Option {
	return func(c *Compositor) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// Compositor merges overlay pairs into composited outputs.
type Compositor struct {
	cfg    Config
	ledger *ledger.Ledger
	copier MetadataCopier
	caps   deps.Capabilities
	logger *slog.Logger
	exec   Executor
}

// New constructs a Compositor. copier may be nil when exiftool is
// unavailable or metadata copying is disabled.
func New(cfg Config, led *ledger.Ledger, copier MetadataCopier, caps deps.Capabilities, logger *slog.Logger, opts ...Option) *Compositor {
	c := &Compositor{
		cfg:    cfg,
		ledger: led,
		copier: copier,
		caps:   caps,
		logger: logging.NewComponentLogger(logger, "compositor"),
		exec:   commandExecutor{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// outputPath maps a base file to its composited counterpart. The composite
// keeps the base file's extension with a _composited marker before it.
func (c *Compositor) outputPath(pair pairs.Pair) string {
	base := filepath.Base(pair.BaseFile)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	media := export.MediaImage
	if pair.MediaType == "video" {
		media = export.MediaVideo
	}
	return filepath.Join(layout.CompositedDir(c.cfg.OutputDir, media), stem+"_composited"+ext)
}

func (c *Compositor) kindOf(pair pairs.Pair) ledger.MediaKind {
	if pair.MediaType == "video" {
		return ledger.KindVideo
	}
	return ledger.KindImage
}

// compositeOne produces a single composite and mirrors the base file's
// modification time onto the output.
func (c *Compositor) compositeOne(ctx context.Context, pair pairs.Pair) error {
	outPath := c.outputPath(pair)

	var err error
	if pair.MediaType == "video" {
		err = c.compositeVideo(ctx, pair.BaseFile, pair.OverlayFile, outPath)
	} else {
		err = c.compositeImage(pair.BaseFile, pair.OverlayFile, outPath)
	}
	if err != nil {
		return err
	}

	if info, statErr := os.Stat(pair.BaseFile); statErr == nil {
		if tsErr := os.Chtimes(outPath, info.ModTime(), info.ModTime()); tsErr != nil {
			c.logger.Warn("failed to mirror timestamps onto composite",
				logging.String(logging.FieldPath, outPath), logging.Error(tsErr))
		}
	}

	if c.cfg.CopyMetadata && c.copier != nil {
		if copyErr := c.copier.CopyTags(ctx, pair.BaseFile, outPath); copyErr != nil {
			// Metadata carry-over is best effort; the composite is already valid.
			c.logger.Warn("failed to copy metadata onto composite",
				logging.String(logging.FieldPath, outPath), logging.Error(copyErr))
		}
	}

	return nil
}

func (c *Compositor) videoTimeout() time.Duration {
	if c.cfg.VideoTimeoutSeconds <= 0 {
		return 300 * time.Second
	}
	return time.Duration(c.cfg.VideoTimeoutSeconds) * time.Second
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string) error {
	cmd := exec.CommandContext(ctx, binary, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%s timed out: %w", binary, ctx.Err())
		}
		trimmed := strings.TrimSpace(string(output))
		if len(trimmed) > 400 {
			trimmed = trimmed[len(trimmed)-400:]
		}
		return fmt.Errorf("%s failed: %w: %s", binary, err, trimmed)
	}
	return nil
}
