// Package pairs derives (base file, overlay file) associations from the
// materialized layout. The JSON cache memoizes a deterministic
// filesystem scan and is rebuilt whenever it is missing, unparseable,
// or explicitly bypassed by the caller.
package pairs

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shoeless03/snapchat-memory-downloader/internal/export"
	"github.com/shoeless03/snapchat-memory-downloader/internal/layout"
	"github.com/shoeless03/snapchat-memory-downloader/internal/logging"
)

// Pair associates a base media file with its overlay PNG.
type Pair struct {
	BaseFile    string `json:"base_file"`
	OverlayFile string `json:"overlay_file"`
	// MediaType is "image" or "video", matching the cache format.
	MediaType string `json:"media_type"`
	// SID is the 8-character prefix recovered from the canonical filename.
	SID string `json:"sid"`
}

type cacheFile struct {
	Created string `json:"created"`
	Count   int    `json:"count"`
	Pairs   []Pair `json:"pairs"`
}

// Scanner produces pairs from the filesystem. Replaceable for tests.
type Scanner func(outputDir string) []Pair

// Option configures an Index.
type Option func(*Index)

// WithScanner injects a custom filesystem scanner (primarily for tests).
func WithScanner(scan Scanner) Option {
	return func(ix *Index) {
		if scan != nil {
			ix.scan = scan
		}
	}
}

// Index discovers overlay pairs with a rebuildable cache.
type Index struct {
	outputDir string
	cachePath string
	logger    *slog.Logger
	scan      Scanner
	now       func() time.Time
}

// New constructs an Index backed by the given output tree and cache file.
func New(outputDir, cachePath string, logger *slog.Logger, opts ...Option) *Index {
	ix := &Index{
		outputDir: outputDir,
		cachePath: cachePath,
		logger:    logging.NewComponentLogger(logger, "pairs"),
		scan:      scanFilesystem,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// FindPairs returns all discovered pairs. With useCache, a parseable cache
// file is returned verbatim; a corrupt cache is logged and rebuilt rather
// than surfaced as an error.
func (ix *Index) FindPairs(useCache bool) ([]Pair, error) {
	if useCache {
		if cached, ok := ix.loadCache(); ok {
			return cached, nil
		}
	}

	found := ix.scan(ix.outputDir)
	ix.logger.Info("scanned filesystem for overlay pairs", logging.Int("count", len(found)))

	if err := ix.saveCache(found); err != nil {
		// The cache is an optimization; a failed save never fails discovery.
		ix.logger.Warn("failed to save pairs cache", logging.Error(err))
	}
	return found, nil
}

func (ix *Index) loadCache() ([]Pair, bool) {
	data, err := os.ReadFile(ix.cachePath)
	if err != nil {
		return nil, false
	}
	var cached cacheFile
	if err := json.Unmarshal(data, &cached); err != nil {
		ix.logger.Warn("pairs cache unreadable, rebuilding", logging.Error(err))
		return nil, false
	}
	ix.logger.Debug("loaded pairs from cache",
		logging.Int("count", cached.Count),
		logging.String("created", cached.Created))
	return cached.Pairs, true
}

func (ix *Index) saveCache(found []Pair) error {
	cached := cacheFile{
		Created: ix.now().Format(time.RFC3339),
		Count:   len(found),
		Pairs:   found,
	}
	data, err := json.MarshalIndent(cached, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal pairs cache: %w", err)
	}
	if err := os.WriteFile(ix.cachePath, data, 0o644); err != nil {
		return fmt.Errorf("write pairs cache: %w", err)
	}
	return nil
}

// scanFilesystem walks overlays/ and matches each overlay back to a base
// file by stripping the overlay suffix and globbing the base folder with a
// wildcard extension. Overlays without a base are an expected partial state
// mid-download and are dropped silently.
func scanFilesystem(outputDir string) []Pair {
	var found []Pair

	overlayGlob := filepath.Join(layout.OverlaysDir(outputDir), "*_overlay.png")
	overlays, err := filepath.Glob(overlayGlob)
	if err != nil {
		return found
	}

	for _, overlayPath := range overlays {
		stem := strings.TrimSuffix(filepath.Base(overlayPath), ".png")
		stem = strings.TrimSuffix(stem, "_overlay")

		var mediaType string
		var baseDir string
		switch {
		case strings.Contains(stem, "_Image_"):
			mediaType = "image"
			baseDir = layout.BaseDir(outputDir, export.MediaImage)
		case strings.Contains(stem, "_Video_"):
			mediaType = "video"
			baseDir = layout.BaseDir(outputDir, export.MediaVideo)
		default:
			continue
		}

		baseMatches, err := filepath.Glob(filepath.Join(baseDir, stem+".*"))
		if err != nil || len(baseMatches) == 0 {
			continue
		}

		parts := strings.Split(stem, "_")
		if len(parts) < 4 {
			continue
		}
		sid := parts[len(parts)-1]

		found = append(found, Pair{
			BaseFile:    baseMatches[0],
			OverlayFile: overlayPath,
			MediaType:   mediaType,
			SID:         sid,
		})
	}

	return found
}
