// Package fetch turns memory records into on-disk files, tracked by the
// ledger. DownloadOne is idempotent from the caller's perspective and safe
// to re-run: the ledger short-circuits completed SIDs, a failure-count
// circuit breaker stops hammering permanently broken links, and rate
// limiting retries with bounded exponential backoff.
package fetch

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/shoeless03/snapchat-memory-downloader/internal/deps"
	"github.com/shoeless03/snapchat-memory-downloader/internal/export"
	"github.com/shoeless03/snapchat-memory-downloader/internal/layout"
	"github.com/shoeless03/snapchat-memory-downloader/internal/ledger"
	"github.com/shoeless03/snapchat-memory-downloader/internal/logging"
)

// HTTPDoer abstracts http.Client.Do for testing.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// GPSTagger embeds coordinates into a media file's metadata. Implementations
// are best-effort; a nil tagger disables tagging entirely.
type GPSTagger interface {
	AddGPS(ctx context.Context, path string, lat, lon float64) error
}

// Config carries the fetch engine's tunables.
type Config struct {
	OutputDir     string
	Timeout       time.Duration
	MaxRetries    int
	RetryBase     time.Duration
	SkipThreshold int
}

// Option configures a Downloader.
type Option func(*Downloader)

// WithHTTPClient injects a custom HTTP backend (primarily for tests).
func WithHTTPClient(client HTTPDoer) Option {
	return func(d *Downloader) {
		if client != nil {
			d.client = client
		}
	}
}

// WithSleep replaces the backoff sleep function (primarily for tests).
func WithSleep(sleep func(time.Duration)) Option {
	return func(d *Downloader) {
		if sleep != nil {
			d.sleep = sleep
		}
	}
}

// Downloader is the fetch-and-classify engine.
type Downloader struct {
	cfg    Config
	led    *ledger.Ledger
	tagger GPSTagger
	caps   deps.Capabilities
	logger *slog.Logger
	client HTTPDoer
	sleep  func(time.Duration)
}

// New constructs a Downloader.
func New(cfg Config, led *ledger.Ledger, tagger GPSTagger, caps deps.Capabilities, logger *slog.Logger, opts ...Option) *Downloader {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 5 * time.Second
	}
	if cfg.SkipThreshold <= 0 {
		cfg.SkipThreshold = 5
	}
	d := &Downloader{
		cfg:    cfg,
		led:    led,
		tagger: tagger,
		caps:   caps,
		logger: logging.NewComponentLogger(logger, "fetch"),
		client: &http.Client{},
		sleep:  time.Sleep,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// DownloadOne fetches, classifies, and materializes a single record.
// Returns (success, human-readable message).
func (d *Downloader) DownloadOne(ctx context.Context, record export.MemoryRecord) (bool, string) {
	sid := record.SID

	if d.led.IsDownloaded(sid) {
		d.refreshExisting(ctx, record)
		return true, "already downloaded"
	}

	if count := d.led.FailureCount(sid); count >= d.cfg.SkipThreshold {
		return false, fmt.Sprintf("skipped (failed %d times)", count)
	}

	for attempt := 0; attempt < d.cfg.MaxRetries; attempt++ {
		err := d.attempt(ctx, record)
		if err == nil {
			return true, "downloaded"
		}
		if !isRateLimited(err) {
			d.recordFailure(record, err)
			return false, fmt.Sprintf("error: %v", err)
		}
		if attempt == d.cfg.MaxRetries-1 {
			break
		}
		wait := d.cfg.RetryBase << uint(attempt)
		d.logger.Warn("rate limited, backing off",
			logging.String(logging.FieldSID, record.ShortSID()),
			logging.Duration("wait", wait),
			logging.Int("attempt", attempt+1))
		d.sleep(wait)
	}

	// All attempts rate limited.
	d.recordFailure(record, fmt.Errorf("%w: max retries exceeded", ErrRateLimited))
	return false, "error: max retries exceeded"
}

func isRateLimited(err error) bool {
	return err != nil && errorKind(err) == "rate_limited"
}

func (d *Downloader) recordFailure(record export.MemoryRecord, err error) {
	if saveErr := d.led.RecordFailure(record.SID, record, err.Error(), errorKind(err)); saveErr != nil {
		d.logger.Error("failed to persist failure record",
			logging.String(logging.FieldSID, record.ShortSID()),
			logging.Error(saveErr))
	}
	d.cleanupScratch(record.SID)
}

// attempt performs one fetch-classify-materialize cycle. Any error leaves
// scratch files for recordFailure to clean up; a preserved bad_<sid>.dat
// file is intentionally not cleaned.
func (d *Downloader) attempt(ctx context.Context, record export.MemoryRecord) error {
	sid := record.SID

	reqCtx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, record.DownloadURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: HTTP 429 Too Many Requests", ErrRateLimited)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: HTTP %d", ErrHTTPStatus, resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if strings.Contains(contentType, "text/html") {
		return fmt.Errorf("%w: received HTML error page instead of media", ErrRateLimited)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	scratch := d.scratchPath(sid, ".download")
	if err := os.WriteFile(scratch, data, 0o644); err != nil {
		return fmt.Errorf("write scratch file: %w", err)
	}

	if archive, zipErr := zip.NewReader(bytes.NewReader(data), int64(len(data))); zipErr == nil {
		if err := d.extractArchive(ctx, archive, record); err != nil {
			return err
		}
	} else {
		media := sniffMedia(head(data, 12), contentType)
		if media == "" {
			badPath := filepath.Join(d.cfg.OutputDir, "bad_"+sid+".dat")
			if renameErr := os.Rename(scratch, badPath); renameErr != nil {
				return fmt.Errorf("preserve unrecognized payload: %w", renameErr)
			}
			return fmt.Errorf("%w: not a ZIP or recognized media, saved to %s", ErrUnrecognizedPayload, badPath)
		}
		if err := d.saveDirectMedia(ctx, data, record, media); err != nil {
			return err
		}
	}

	if err := d.led.MarkDownloaded(sid, record); err != nil {
		return fmt.Errorf("persist ledger: %w", err)
	}
	d.cleanupScratch(sid)
	return nil
}

// extractArchive routes archive entries into the canonical layout: entries
// whose name marks them as overlays go to overlays/, everything else goes to
// the folder for the record's declared media type.
func (d *Downloader) extractArchive(ctx context.Context, archive *zip.Reader, record export.MemoryRecord) error {
	for _, entry := range archive.File {
		if entry.FileInfo().IsDir() {
			continue
		}

		isOverlay := strings.Contains(entry.Name, "overlay")
		ext := strings.TrimPrefix(path.Ext(entry.Name), ".")

		var destDir string
		var role layout.Role
		if isOverlay {
			destDir = layout.OverlaysDir(d.cfg.OutputDir)
			role = layout.RoleOverlay
		} else {
			destDir = layout.BaseDir(d.cfg.OutputDir, record.MediaType)
			role = layout.RoleBase
		}

		name, err := layout.RecordFilename(record, ext, role)
		if err != nil {
			return err
		}
		destPath := filepath.Join(destDir, name)

		reader, err := entry.Open()
		if err != nil {
			return fmt.Errorf("open archive entry %s: %w", entry.Name, err)
		}
		content, err := io.ReadAll(reader)
		reader.Close()
		if err != nil {
			return fmt.Errorf("read archive entry %s: %w", entry.Name, err)
		}
		if err := os.WriteFile(destPath, content, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", destPath, err)
		}

		d.stampAndTag(ctx, destPath, record)
	}
	return nil
}

func (d *Downloader) saveDirectMedia(ctx context.Context, data []byte, record export.MemoryRecord, media string) error {
	ext := sniffExtension(head(data, 12), media)

	var mediaType export.MediaType
	if media == "video" {
		mediaType = export.MediaVideo
	} else {
		mediaType = export.MediaImage
	}

	name, err := layout.RecordFilename(record, ext, layout.RoleBase)
	if err != nil {
		return err
	}
	destPath := filepath.Join(layout.BaseDir(d.cfg.OutputDir, mediaType), name)
	if err := os.WriteFile(destPath, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", destPath, err)
	}

	d.stampAndTag(ctx, destPath, record)
	return nil
}

// stampAndTag applies the record's timestamp and, when coordinates and a
// tagger are available, GPS metadata. Both are best-effort.
func (d *Downloader) stampAndTag(ctx context.Context, filePath string, record export.MemoryRecord) {
	if date, err := layout.ParseExportDate(record.Date); err == nil {
		if err := layout.SetTimestamps(filePath, date); err != nil {
			d.logger.Debug("failed to set timestamps",
				logging.String(logging.FieldPath, filePath), logging.Error(err))
		}
	}

	if d.tagger == nil {
		return
	}
	// Overlay PNGs carry no location context.
	if strings.HasSuffix(filePath, "_overlay.png") {
		return
	}
	if lat, lon, ok := layout.ParseLocation(record.Location); ok {
		if err := d.tagger.AddGPS(ctx, filePath, lat, lon); err != nil {
			d.logger.Debug("failed to tag gps",
				logging.String(logging.FieldPath, filePath), logging.Error(err))
		}
	}
}

// refreshExisting re-applies timestamps and GPS tags to files already on
// disk for this SID. Runs when a SID is requested again after download, so
// tools installed later still get to improve earlier files.
func (d *Downloader) refreshExisting(ctx context.Context, record export.MemoryRecord) {
	prefix := record.ShortSID()
	dirs := []string{
		layout.BaseDir(d.cfg.OutputDir, export.MediaImage),
		layout.BaseDir(d.cfg.OutputDir, export.MediaVideo),
		layout.OverlaysDir(d.cfg.OutputDir),
	}
	for _, dir := range dirs {
		matches, err := filepath.Glob(filepath.Join(dir, "*"+prefix+"*"))
		if err != nil {
			continue
		}
		for _, match := range matches {
			d.stampAndTag(ctx, match, record)
		}
	}
}

func (d *Downloader) scratchPath(sid, ext string) string {
	return filepath.Join(d.cfg.OutputDir, "temp_"+sid+ext)
}

// cleanupScratch removes temp files for sid. Preserved bad_<sid>.dat files
// are never touched.
func (d *Downloader) cleanupScratch(sid string) {
	for _, ext := range []string{".download", ".zip"} {
		os.Remove(d.scratchPath(sid, ext))
	}
}

func head(data []byte, n int) []byte {
	if len(data) < n {
		return data
	}
	return data[:n]
}
