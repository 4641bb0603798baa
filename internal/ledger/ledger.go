// Package ledger is the durable record of per-SID outcomes.
//
// Presence in the downloaded partition is the sole definition of
// "downloaded". Every mutating call persists the full state with an atomic
// temp-write-then-rename, keeping a .backup copy of the previous good file.
// A ledger file that exists but does not parse aborts the process: silently
// starting over would re-download everything and is worse than a hard stop.
package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shoeless03/snapchat-memory-downloader/internal/export"
	"github.com/shoeless03/snapchat-memory-downloader/internal/fileutil"
	"github.com/shoeless03/snapchat-memory-downloader/internal/logging"
)

// ErrCorrupt marks a ledger file that exists but is not the expected
// structure. Callers must treat this as fatal.
var ErrCorrupt = errors.New("ledger file is corrupt")

// MediaKind partitions composite bookkeeping.
type MediaKind string

const (
	KindImage MediaKind = "images"
	KindVideo MediaKind = "videos"
)

// KindFor maps a record media type to its composite partition.
func KindFor(media export.MediaType) MediaKind {
	if strings.EqualFold(string(media), string(export.MediaVideo)) {
		return KindVideo
	}
	return KindImage
}

// DownloadEntry records one successful download. Field names are part of the
// persisted format and must not change.
type DownloadEntry struct {
	Date              string  `json:"date"`
	MediaType         string  `json:"media_type"`
	DownloadTimestamp string  `json:"download_timestamp"`
	Location          string  `json:"location"`
	TimezoneConverted bool    `json:"timezone_converted"`
	LocalDate         *string `json:"local_date"`
	CurrentTimezone   string  `json:"current_timezone"`
}

// FailureRecord is one failed attempt inside a FailedEntry.
type FailureRecord struct {
	Timestamp string `json:"timestamp"`
	Error     string `json:"error"`
	ErrorType string `json:"error_type,omitempty"`
}

// FailedEntry accumulates failures for a SID until it succeeds or is
// permanently skipped.
type FailedEntry struct {
	Count  int             `json:"count"`
	Errors []FailureRecord `json:"errors"`
	URL    string          `json:"url"`
}

// CompositeEntry records one successful composite.
type CompositeEntry struct {
	Timestamp         string  `json:"timestamp"`
	BaseFilePath      string  `json:"base_file_path"`
	OverlayFilePath   string  `json:"overlay_file_path"`
	TimezoneConverted bool    `json:"timezone_converted,omitempty"`
	LocalDate         *string `json:"local_date,omitempty"`
}

// CompositeFailedEntry accumulates composite failures for a SID.
type CompositeFailedEntry struct {
	Count           int             `json:"count"`
	Errors          []FailureRecord `json:"errors"`
	BaseFilePath    string          `json:"base_file_path"`
	OverlayFilePath string          `json:"overlay_file_path"`
}

type state struct {
	Downloaded       map[string]DownloadEntry                      `json:"downloaded"`
	Failed           map[string]FailedEntry                        `json:"failed"`
	Composited       map[MediaKind]map[string]CompositeEntry       `json:"composited"`
	FailedComposites map[MediaKind]map[string]CompositeFailedEntry `json:"failed_composites"`
}

func emptyState() state {
	return state{
		Downloaded: map[string]DownloadEntry{},
		Failed:     map[string]FailedEntry{},
		Composited: map[MediaKind]map[string]CompositeEntry{
			KindImage: {},
			KindVideo: {},
		},
		FailedComposites: map[MediaKind]map[string]CompositeFailedEntry{
			KindImage: {},
			KindVideo: {},
		},
	}
}

// Ledger provides persistent, mutation-safe access to outcome state.
type Ledger struct {
	path   string
	logger *slog.Logger

	mu    sync.RWMutex
	state state
	now   func() time.Time
}

// Open loads the ledger at path, starting from an empty well-shaped state
// when the file does not exist. A file that exists but fails to parse
// returns ErrCorrupt.
func Open(path string, logger *slog.Logger) (*Ledger, error) {
	l := &Ledger{
		path:   path,
		logger: logging.NewComponentLogger(logger, "ledger"),
		state:  emptyState(),
		now:    time.Now,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return l, nil
		}
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrCorrupt, path)
	}

	var loaded state
	if err := json.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, path, err)
	}
	normalizeState(&loaded)
	l.state = loaded

	l.logger.Debug("loaded ledger",
		logging.String(logging.FieldPath, path),
		logging.Int("downloaded", len(loaded.Downloaded)),
		logging.Int("failed", len(loaded.Failed)))
	return l, nil
}

// Older ledgers may predate a partition; resumability requires tolerating
// them rather than rejecting.
func normalizeState(s *state) {
	if s.Downloaded == nil {
		s.Downloaded = map[string]DownloadEntry{}
	}
	if s.Failed == nil {
		s.Failed = map[string]FailedEntry{}
	}
	if s.Composited == nil {
		s.Composited = map[MediaKind]map[string]CompositeEntry{}
	}
	for _, kind := range []MediaKind{KindImage, KindVideo} {
		if s.Composited[kind] == nil {
			s.Composited[kind] = map[string]CompositeEntry{}
		}
	}
	if s.FailedComposites == nil {
		s.FailedComposites = map[MediaKind]map[string]CompositeFailedEntry{}
	}
	for _, kind := range []MediaKind{KindImage, KindVideo} {
		if s.FailedComposites[kind] == nil {
			s.FailedComposites[kind] = map[string]CompositeFailedEntry{}
		}
	}
}

// Path returns the ledger file location.
func (l *Ledger) Path() string {
	return l.path
}

// Save persists the full state atomically: write a temp file next to the
// target, copy the previous good file to .backup, then rename the temp file
// over the target. Rename is the only interruptible step and leaves either
// the old or the new valid state.
func (l *Ledger) Save() error {
	l.mu.RLock()
	data, err := json.MarshalIndent(l.state, "", "  ")
	l.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("marshal ledger: %w", err)
	}

	if dir := filepath.Dir(l.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create ledger directory: %w", err)
		}
	}

	tmpPath := l.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write ledger temp file: %w", err)
	}

	if _, err := os.Stat(l.path); err == nil {
		if err := fileutil.CopyFile(l.path, l.path+".backup"); err != nil {
			l.logger.Warn("failed to copy ledger backup", logging.Error(err))
		}
	}

	if err := os.Rename(tmpPath, l.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace ledger file: %w", err)
	}
	return nil
}

// IsDownloaded reports whether sid has a downloaded entry.
func (l *Ledger) IsDownloaded(sid string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.state.Downloaded[sid]
	return ok
}

// MarkDownloaded records a successful download, clearing any failure entry
// for the same SID. Marking an already-downloaded SID overwrites in place.
func (l *Ledger) MarkDownloaded(sid string, record export.MemoryRecord) error {
	l.mu.Lock()
	l.state.Downloaded[sid] = DownloadEntry{
		Date:              record.Date,
		MediaType:         string(record.MediaType),
		DownloadTimestamp: l.now().Format(time.RFC3339),
		Location:          record.Location,
		CurrentTimezone:   "UTC",
	}
	delete(l.state.Failed, sid)
	l.mu.Unlock()
	return l.Save()
}

// RecordFailure appends a failure for sid, creating the entry if absent.
func (l *Ledger) RecordFailure(sid string, record export.MemoryRecord, message, errorKind string) error {
	l.mu.Lock()
	entry := l.state.Failed[sid]
	if entry.URL == "" {
		entry.URL = record.DownloadURL
	}
	entry.Count++
	entry.Errors = append(entry.Errors, FailureRecord{
		Timestamp: l.now().Format(time.RFC3339),
		Error:     message,
		ErrorType: errorKind,
	})
	l.state.Failed[sid] = entry
	l.mu.Unlock()
	return l.Save()
}

// FailureCount returns the number of recorded failures for sid.
func (l *Ledger) FailureCount(sid string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state.Failed[sid].Count
}

// IsComposited reports whether sid has a composited entry of the given kind.
func (l *Ledger) IsComposited(sid string, kind MediaKind) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.state.Composited[kind][sid]
	return ok
}

// MarkComposited records a successful composite without saving; callers
// batching many composites flush periodically via Save.
func (l *Ledger) MarkComposited(sid string, kind MediaKind, baseFile, overlayFile string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state.Composited[kind][sid] = CompositeEntry{
		Timestamp:       l.now().Format(time.RFC3339),
		BaseFilePath:    baseFile,
		OverlayFilePath: overlayFile,
	}
	delete(l.state.FailedComposites[kind], sid)
}

// RecordCompositeFailure appends a composite failure without saving.
func (l *Ledger) RecordCompositeFailure(sid string, kind MediaKind, baseFile, overlayFile, message string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry := l.state.FailedComposites[kind][sid]
	entry.Count++
	entry.BaseFilePath = baseFile
	entry.OverlayFilePath = overlayFile
	entry.Errors = append(entry.Errors, FailureRecord{
		Timestamp: l.now().Format(time.RFC3339),
		Error:     message,
	})
	l.state.FailedComposites[kind][sid] = entry
}

// CompositeFailureCount returns recorded composite failures for sid.
func (l *Ledger) CompositeFailureCount(sid string, kind MediaKind) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state.FailedComposites[kind][sid].Count
}

// UTCDate returns the authoritative export date for a downloaded SID.
func (l *Ledger) UTCDate(sid string) (string, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	entry, ok := l.state.Downloaded[sid]
	if !ok {
		return "", false
	}
	return entry.Date, true
}

// Location returns the stored location string for a downloaded SID.
func (l *Ledger) Location(sid string) string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state.Downloaded[sid].Location
}

// MediaTypeOf returns the stored media type for a downloaded SID, defaulting
// to Image when unknown.
func (l *Ledger) MediaTypeOf(sid string) export.MediaType {
	l.mu.RLock()
	defer l.mu.RUnlock()
	entry, ok := l.state.Downloaded[sid]
	if !ok || entry.MediaType == "" {
		return export.MediaImage
	}
	return export.MediaType(entry.MediaType)
}

// IsTimezoneConverted reports whether sid's files were already renamed into
// a local timezone.
func (l *Ledger) IsTimezoneConverted(sid string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state.Downloaded[sid].TimezoneConverted
}

// SetTimezone records the conversion outcome for a downloaded SID.
func (l *Ledger) SetTimezone(sid, timezone, localDate string) error {
	l.mu.Lock()
	entry, ok := l.state.Downloaded[sid]
	if !ok {
		l.mu.Unlock()
		return fmt.Errorf("sid %q not in downloaded ledger", sid)
	}
	entry.TimezoneConverted = true
	entry.CurrentTimezone = timezone
	entry.LocalDate = &localDate
	l.state.Downloaded[sid] = entry
	l.mu.Unlock()
	return l.Save()
}

// SetCompositeTimezone records the conversion outcome for a composited file,
// keyed by SID prefix like the composite partitions themselves.
func (l *Ledger) SetCompositeTimezone(sidPrefix string, kind MediaKind, localDate string) error {
	l.mu.Lock()
	entry, ok := l.state.Composited[kind][sidPrefix]
	if !ok {
		l.mu.Unlock()
		return fmt.Errorf("sid %q not in composited ledger", sidPrefix)
	}
	entry.TimezoneConverted = true
	entry.LocalDate = &localDate
	l.state.Composited[kind][sidPrefix] = entry
	l.mu.Unlock()
	return l.Save()
}

// IsCompositeConverted reports conversion state for a composited file.
func (l *Ledger) IsCompositeConverted(sidPrefix string, kind MediaKind) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state.Composited[kind][sidPrefix].TimezoneConverted
}

// HasComposite reports whether the composited partition holds sidPrefix.
func (l *Ledger) HasComposite(sidPrefix string, kind MediaKind) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.state.Composited[kind][sidPrefix]
	return ok
}

// FindFullSID resolves an 8-character filename prefix back to the full SID.
// Distinct SIDs sharing a prefix collide here; the first match in sorted
// order wins, mirroring the on-disk naming scheme's own ambiguity.
func (l *Ledger) FindFullSID(prefix string) (string, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	sids := make([]string, 0, len(l.state.Downloaded))
	for sid := range l.state.Downloaded {
		sids = append(sids, sid)
	}
	sort.Strings(sids)
	for _, sid := range sids {
		if strings.HasPrefix(sid, prefix) {
			return sid, true
		}
	}
	return "", false
}

// DownloadedCount returns the number of downloaded entries.
func (l *Ledger) DownloadedCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.state.Downloaded)
}
