package layout

import (
	"testing"
	"time"

	"github.com/shoeless03/snapchat-memory-downloader/internal/export"
)

func TestParseExportDate(t *testing.T) {
	parsed, err := ParseExportDate("2023-01-15 14:30:00 UTC")
	if err != nil {
		t.Fatalf("ParseExportDate: %v", err)
	}
	want := time.Date(2023, 1, 15, 14, 30, 0, 0, time.UTC)
	if !parsed.Equal(want) {
		t.Fatalf("parsed = %v, want %v", parsed, want)
	}

	if _, err := ParseExportDate("not a date"); err == nil {
		t.Fatal("expected error for malformed date")
	}
}

func TestFilenameRoundTrip(t *testing.T) {
	date := time.Date(2023, 1, 15, 14, 30, 0, 0, time.UTC)

	cases := []struct {
		name string
		role Role
		ext  string
		want string
	}{
		{"base image", RoleBase, "jpg", "2023-01-15_143000_Image_abc12345.jpg"},
		{"base with dotted ext", RoleBase, ".jpg", "2023-01-15_143000_Image_abc12345.jpg"},
		{"overlay forces png", RoleOverlay, "jpg", "2023-01-15_143000_Image_abc12345_overlay.png"},
		{"composited", RoleComposited, "jpg", "2023-01-15_143000_Image_abc12345_composited.jpg"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Filename(date, export.MediaImage, "abc12345def67890", tc.ext, tc.role)
			if got != tc.want {
				t.Fatalf("Filename = %q, want %q", got, tc.want)
			}
			if sid := ParseSIDFromFilename(got); sid != "abc12345" {
				t.Fatalf("ParseSIDFromFilename(%q) = %q, want abc12345", got, sid)
			}
		})
	}
}

func TestFilenameUsesDateLocation(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	utc := time.Date(2023, 1, 15, 2, 30, 0, 0, time.UTC)
	got := Filename(utc.In(loc), export.MediaVideo, "feedface", "mp4", RoleBase)
	if got != "2023-01-14_213000_Video_feedface.mp4" {
		t.Fatalf("Filename = %q", got)
	}
}

func TestParseSIDFromFilenameRejectsShortNames(t *testing.T) {
	if sid := ParseSIDFromFilename("random.jpg"); sid != "" {
		t.Fatalf("expected empty sid, got %q", sid)
	}
	if sid := ParseSIDFromFilename("a_b.jpg"); sid != "" {
		t.Fatalf("expected empty sid, got %q", sid)
	}
}

func TestSuffixOf(t *testing.T) {
	cases := map[string]string{
		"2023-01-15_143000_Image_abc12345.jpg":            "",
		"2023-01-15_143000_Image_abc12345_overlay.png":    "_overlay",
		"2023-01-15_143000_Video_abc12345_composited.mp4": "_composited",
	}
	for name, want := range cases {
		if got := SuffixOf(name); got != want {
			t.Fatalf("SuffixOf(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestParseLocation(t *testing.T) {
	lat, lon, ok := ParseLocation("Latitude, Longitude: 40.7128, -74.0060")
	if !ok {
		t.Fatal("expected coordinates")
	}
	if lat != 40.7128 || lon != -74.0060 {
		t.Fatalf("got (%v, %v)", lat, lon)
	}

	if _, _, ok := ParseLocation(""); ok {
		t.Fatal("empty location must not parse")
	}
	if _, _, ok := ParseLocation("Latitude, Longitude: north, south"); ok {
		t.Fatal("non-numeric location must not parse")
	}
}

func TestRecordFilename(t *testing.T) {
	record := export.MemoryRecord{
		SID:       "abc12345def",
		Date:      "2023-01-15 14:30:00 UTC",
		MediaType: export.MediaVideo,
	}
	got, err := RecordFilename(record, "mp4", RoleBase)
	if err != nil {
		t.Fatalf("RecordFilename: %v", err)
	}
	if got != "2023-01-15_143000_Video_abc12345.mp4" {
		t.Fatalf("RecordFilename = %q", got)
	}

	record.Date = "garbage"
	if _, err := RecordFilename(record, "mp4", RoleBase); err == nil {
		t.Fatal("expected error for malformed record date")
	}
}
