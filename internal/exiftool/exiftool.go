// Package exiftool shells out to the external exiftool binary for GPS
// tagging and cross-file metadata copies. Everything here is best-effort:
// when the binary is missing the constructor reports it and callers simply
// run without tagging.
package exiftool

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// ErrUnavailable is returned by New when the binary cannot be found.
var ErrUnavailable = errors.New("exiftool not available")

// Taggable extensions. Overlay PNGs and unrecognized files are skipped.
var taggableExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".mp4":  {},
	".mov":  {},
	".avi":  {},
}

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string) error
}

// Option configures the tool.
type Option func(*Tool)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(t *Tool) {
		if exec != nil {
			t.exec = exec
		}
	}
}

// Tool wraps exiftool invocations with a hard per-call timeout.
type Tool struct {
	binary  string
	timeout time.Duration
	exec    Executor
}

// New constructs a Tool, verifying the binary exists on PATH.
func New(binary string, timeoutSeconds int, opts ...Option) (*Tool, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "exiftool"
	}
	tool := &Tool{
		binary:  binary,
		timeout: time.Duration(timeoutSeconds) * time.Second,
		exec:    commandExecutor{},
	}
	if tool.timeout <= 0 {
		tool.timeout = 30 * time.Second
	}
	for _, opt := range opts {
		opt(tool)
	}
	if _, err := exec.LookPath(binary); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return tool, nil
}

// AddGPS embeds coordinates into the file's metadata. Files whose extension
// is not a taggable media type are skipped silently.
func (t *Tool) AddGPS(ctx context.Context, path string, lat, lon float64) error {
	ext := strings.ToLower(filepath.Ext(path))
	if _, ok := taggableExtensions[ext]; !ok {
		return nil
	}

	latRef := "N"
	if lat < 0 {
		latRef = "S"
	}
	lonRef := "E"
	if lon < 0 {
		lonRef = "W"
	}

	return t.run(ctx,
		fmt.Sprintf("-GPSLatitude=%f", abs(lat)),
		"-GPSLatitudeRef="+latRef,
		fmt.Sprintf("-GPSLongitude=%f", abs(lon)),
		"-GPSLongitudeRef="+lonRef,
		"-overwrite_original",
		"-q",
		path,
	)
}

// CopyTags copies all metadata from src onto dst.
func (t *Tool) CopyTags(ctx context.Context, src, dst string) error {
	return t.run(ctx,
		"-TagsFromFile", src,
		"-all:all",
		"-overwrite_original",
		"-q",
		dst,
	)
}

func (t *Tool) run(ctx context.Context, args ...string) error {
	runCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.exec.Run(runCtx, t.binary, args)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string) error {
	cmd := exec.CommandContext(ctx, binary, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("exiftool: %w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}
