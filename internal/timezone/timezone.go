// Package timezone renames downloaded and composited files from their UTC
// export names into the local time the memory was captured in. The ledger's
// UTC date remains the authoritative instant; only filenames, file
// timestamps, and the derived local_date fields change.
package timezone

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/shoeless03/snapchat-memory-downloader/internal/export"
	"github.com/shoeless03/snapchat-memory-downloader/internal/layout"
	"github.com/shoeless03/snapchat-memory-downloader/internal/ledger"
	"github.com/shoeless03/snapchat-memory-downloader/internal/logging"
)

const localDateLayout = "2006-01-02 15:04:05 MST"

// Summary reports the outcome of a conversion pass.
type Summary struct {
	Converted int
	Skipped   int
	Failed    int
}

// Option configures a Pass.
type Option func(*Pass)

// WithLocalZone overrides the fallback zone used when GPS lookup is off or
// yields nothing. Tests use this to stay independent of the host timezone.
func WithLocalZone(loc *time.Location) Option {
	return func(p *Pass) {
		if loc != nil {
			p.localZone = loc
		}
	}
}

// Pass converts one output tree. resolver may be nil, which disables GPS
// lookup regardless of configuration.
type Pass struct {
	outputDir string
	gpsLookup bool
	ledger    *ledger.Ledger
	resolver  Resolver
	logger    *slog.Logger
	localZone *time.Location
}

// New constructs a conversion pass over outputDir.
func New(outputDir string, gpsLookup bool, led *ledger.Ledger, resolver Resolver, logger *slog.Logger, opts ...Option) *Pass {
	p := &Pass{
		outputDir: outputDir,
		gpsLookup: gpsLookup && resolver != nil,
		ledger:    led,
		resolver:  resolver,
		logger:    logging.NewComponentLogger(logger, "timezone"),
		localZone: time.Local,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run converts every folder in the output tree. Individual files that fail
// to convert are counted and left in place; the pass keeps going.
func (p *Pass) Run(ctx context.Context) (Summary, error) {
	backfilled, err := p.ledger.EnsureTimezoneFields()
	if err != nil {
		return Summary{}, err
	}
	if backfilled > 0 {
		p.logger.Info("backfilled timezone fields", logging.Int("entries", backfilled))
	}

	var total Summary
	folders := []struct {
		dir  string
		role layout.Role
	}{
		{layout.BaseDir(p.outputDir, export.MediaImage), layout.RoleBase},
		{layout.BaseDir(p.outputDir, export.MediaVideo), layout.RoleBase},
		{layout.OverlaysDir(p.outputDir), layout.RoleOverlay},
		{layout.CompositedDir(p.outputDir, export.MediaImage), layout.RoleComposited},
		{layout.CompositedDir(p.outputDir, export.MediaVideo), layout.RoleComposited},
	}

	for _, folder := range folders {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		summary := p.convertFolder(folder.dir, folder.role)
		total.Converted += summary.Converted
		total.Skipped += summary.Skipped
		total.Failed += summary.Failed
	}

	p.logger.Info("timezone pass finished",
		logging.Int("converted", total.Converted),
		logging.Int("skipped", total.Skipped),
		logging.Int("failed", total.Failed))
	return total, nil
}

func (p *Pass) convertFolder(dir string, role layout.Role) Summary {
	var summary Summary

	entries, err := os.ReadDir(dir)
	if err != nil {
		// A missing folder just means nothing of that kind was downloaded.
		return summary
	}

	kind := folderKind(dir)

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()

		prefix := layout.ParseSIDFromFilename(name)
		if prefix == "" {
			summary.Skipped++
			continue
		}
		full, ok := p.ledger.FindFullSID(prefix)
		if !ok {
			summary.Skipped++
			continue
		}

		if role == layout.RoleComposited {
			if !p.ledger.HasComposite(prefix, kind) {
				summary.Skipped++
				continue
			}
			if p.ledger.IsCompositeConverted(prefix, kind) {
				summary.Skipped++
				continue
			}
		} else if p.ledger.IsTimezoneConverted(full) {
			// A second file for the same SID still needs its own rename.
			if converted, done := p.convertFile(dir, name, full, role); done {
				if converted {
					summary.Converted++
				} else {
					summary.Skipped++
				}
			} else {
				summary.Failed++
			}
			continue
		}

		converted, done := p.convertFile(dir, name, full, role)
		if !done {
			summary.Failed++
			continue
		}
		if converted {
			summary.Converted++
		} else {
			summary.Skipped++
		}

		// The entry is converted even when the local name matches the
		// UTC name; the flag keeps later runs from re-walking it.
		localTime, zone, ok := p.localize(full)
		if !ok {
			continue
		}
		localDate := localTime.Format(localDateLayout)
		var recordErr error
		if role == layout.RoleComposited {
			recordErr = p.ledger.SetCompositeTimezone(prefix, kind, localDate)
		} else {
			recordErr = p.ledger.SetTimezone(full, zone, localDate)
		}
		if recordErr != nil {
			p.logger.Warn("failed to record timezone conversion",
				logging.String(logging.FieldSID, prefix), logging.Error(recordErr))
		}
	}

	return summary
}

// convertFile renames one file into its localized name and stamps its file
// times. A file whose localized name matches its current name is stamped in
// place. Returns (renamed, done); done is false only on a hard failure.
func (p *Pass) convertFile(dir, name, fullSID string, role layout.Role) (bool, bool) {
	localTime, _, ok := p.localize(fullSID)
	if !ok {
		return false, false
	}

	media := p.ledger.MediaTypeOf(fullSID)
	ext := filepath.Ext(name)
	target := layout.Filename(localTime, media, fullSID, ext, role)
	if target == name {
		if err := layout.SetTimestamps(filepath.Join(dir, name), localTime); err != nil {
			p.logger.Warn("failed to stamp local file times",
				logging.String(logging.FieldPath, name), logging.Error(err))
		}
		return false, true
	}

	oldPath := filepath.Join(dir, name)
	newPath := filepath.Join(dir, target)
	if err := os.Rename(oldPath, newPath); err != nil {
		p.logger.Warn("failed to rename into local time",
			logging.String(logging.FieldPath, oldPath), logging.Error(err))
		return false, false
	}
	if err := layout.SetTimestamps(newPath, localTime); err != nil {
		p.logger.Warn("failed to stamp local file times",
			logging.String(logging.FieldPath, newPath), logging.Error(err))
	}
	return true, true
}

// localize computes the capture instant in the memory's local zone. GPS
// coordinates win when lookup is enabled and the point resolves; otherwise
// the system zone applies.
func (p *Pass) localize(fullSID string) (time.Time, string, bool) {
	raw, ok := p.ledger.UTCDate(fullSID)
	if !ok {
		return time.Time{}, "", false
	}
	utc, err := layout.ParseExportDate(raw)
	if err != nil {
		p.logger.Warn("unparseable ledger date",
			logging.String(logging.FieldSID, fullSID), logging.Error(err))
		return time.Time{}, "", false
	}

	loc := p.localZone
	zone := loc.String()
	if p.gpsLookup {
		if lat, lon, ok := layout.ParseLocation(p.ledger.Location(fullSID)); ok {
			if name, found := p.resolver.Resolve(lat, lon); found {
				if resolved, err := time.LoadLocation(name); err == nil {
					loc = resolved
					zone = name
				}
			}
		}
	}

	return utc.In(loc), zone, true
}

func folderKind(dir string) ledger.MediaKind {
	if filepath.Base(dir) == "videos" {
		return ledger.KindVideo
	}
	return ledger.KindImage
}
