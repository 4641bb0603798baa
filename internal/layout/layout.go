// Package layout owns the canonical on-disk naming and timestamp rules.
//
// Everything here is a pure function of its inputs; the package holds no
// state. The fetch engine, pairing index, compositor, and timezone pass all
// share these rules so a filename computed by one component can be parsed
// back by another.
package layout

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shoeless03/snapchat-memory-downloader/internal/export"
)

// Role distinguishes the three materialized forms of a memory.
type Role int

const (
	RoleBase Role = iota
	RoleOverlay
	RoleComposited
)

const exportDateLayout = "2006-01-02 15:04:05"

// ParseExportDate parses the export's fixed "YYYY-MM-DD HH:MM:SS UTC" format
// into a UTC instant.
func ParseExportDate(raw string) (time.Time, error) {
	trimmed := strings.TrimSuffix(strings.TrimSpace(raw), " UTC")
	parsed, err := time.Parse(exportDateLayout, trimmed)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse export date %q: %w", raw, err)
	}
	return parsed, nil
}

// Filename computes the canonical name
// {YYYY-MM-DD}_{HHMMSS}_{Type}_{sid[:8]}{suffix}.{ext}. The date is formatted
// in the location it carries, so a localized time produces a localized name.
// Overlay names always use the .png extension.
func Filename(date time.Time, media export.MediaType, sid, ext string, role Role) string {
	datePart := date.Format("2006-01-02")
	timePart := date.Format("150405")
	typePart := capitalize(string(media))
	if len(sid) > 8 {
		sid = sid[:8]
	}
	ext = strings.TrimPrefix(ext, ".")

	switch role {
	case RoleOverlay:
		return fmt.Sprintf("%s_%s_%s_%s_overlay.png", datePart, timePart, typePart, sid)
	case RoleComposited:
		return fmt.Sprintf("%s_%s_%s_%s_composited.%s", datePart, timePart, typePart, sid, ext)
	default:
		return fmt.Sprintf("%s_%s_%s_%s.%s", datePart, timePart, typePart, sid, ext)
	}
}

// RecordFilename computes the canonical name for a record's base or overlay
// file from its export date.
func RecordFilename(record export.MemoryRecord, ext string, role Role) (string, error) {
	date, err := ParseExportDate(record.Date)
	if err != nil {
		return "", err
	}
	return Filename(date, record.MediaType, record.SID, ext, role), nil
}

// ParseSIDFromFilename recovers the 8-character SID prefix from a canonical
// filename, or "" when the name does not follow the canonical shape.
func ParseSIDFromFilename(name string) string {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	stem = strings.TrimSuffix(stem, "_overlay")
	stem = strings.TrimSuffix(stem, "_composited")

	parts := strings.Split(stem, "_")
	if len(parts) < 4 {
		return ""
	}
	return parts[len(parts)-1]
}

// SuffixOf reports the role suffix embedded in a canonical filename stem.
func SuffixOf(name string) string {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	switch {
	case strings.HasSuffix(stem, "_overlay"):
		return "_overlay"
	case strings.HasSuffix(stem, "_composited"):
		return "_composited"
	default:
		return ""
	}
}

// SetTimestamps sets the file's modification and access times to the given
// instant. Creation/birth time has no portable API: Linux offers no way to
// set it, macOS pins it at file creation, so nothing further is attempted and
// this never fails the surrounding operation for that reason.
func SetTimestamps(path string, t time.Time) error {
	return os.Chtimes(path, t, t)
}

// BaseDir returns the folder that holds base media of the given type.
func BaseDir(outputDir string, media export.MediaType) string {
	if strings.EqualFold(string(media), string(export.MediaVideo)) {
		return filepath.Join(outputDir, "videos")
	}
	return filepath.Join(outputDir, "images")
}

// OverlaysDir returns the folder that holds overlay assets.
func OverlaysDir(outputDir string) string {
	return filepath.Join(outputDir, "overlays")
}

// CompositedDir returns the folder that holds composited outputs for the
// given media type.
func CompositedDir(outputDir string, media export.MediaType) string {
	if strings.EqualFold(string(media), string(export.MediaVideo)) {
		return filepath.Join(outputDir, "composited", "videos")
	}
	return filepath.Join(outputDir, "composited", "images")
}

// ParseLocation extracts coordinates from the export's
// "Latitude, Longitude: <lat>, <lon>" location string.
func ParseLocation(location string) (lat, lon float64, ok bool) {
	const marker = "Latitude, Longitude:"
	idx := strings.Index(location, marker)
	if idx < 0 {
		return 0, 0, false
	}
	coords := strings.TrimSpace(location[idx+len(marker):])
	parts := strings.SplitN(coords, ",", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	if _, err := fmt.Sscanf(strings.TrimSpace(parts[0]), "%f", &lat); err != nil {
		return 0, 0, false
	}
	if _, err := fmt.Sscanf(strings.TrimSpace(parts[1]), "%f", &lon); err != nil {
		return 0, 0, false
	}
	return lat, lon, true
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}
