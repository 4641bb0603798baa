package timezone

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shoeless03/snapchat-memory-downloader/internal/export"
	"github.com/shoeless03/snapchat-memory-downloader/internal/ledger"
	"github.com/shoeless03/snapchat-memory-downloader/internal/logging"
	"github.com/shoeless03/snapchat-memory-downloader/internal/testsupport"
)

type stubResolver struct {
	zone  string
	calls int
}

func (s *stubResolver) Resolve(lat, lon float64) (string, bool) {
	s.calls++
	return s.zone, s.zone != ""
}

func mustZone(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	return loc
}

func setupTree(t *testing.T) (outputDir string, led *ledger.Ledger) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	led = testsupport.MustOpenLedger(t, cfg)

	record := export.MemoryRecord{
		SID:         "abc12345def",
		Date:        "2023-01-15 14:30:00 UTC",
		MediaType:   export.MediaImage,
		Location:    "Latitude, Longitude: 40.7128, -74.0060",
		DownloadURL: "https://example.com/dl?sid=abc12345def",
	}
	if err := led.MarkDownloaded(record.SID, record); err != nil {
		t.Fatalf("MarkDownloaded: %v", err)
	}

	outputDir = cfg.Paths.OutputDir
	testsupport.WriteFile(t,
		filepath.Join(outputDir, "images", "2023-01-15_143000_Image_abc12345.jpg"),
		testsupport.JPEGPayload())
	testsupport.WriteFile(t,
		filepath.Join(outputDir, "overlays", "2023-01-15_143000_Image_abc12345_overlay.png"),
		testsupport.PNGPayload())
	return outputDir, led
}

func TestRunRenamesIntoSystemZone(t *testing.T) {
	outputDir, led := setupTree(t)
	newYork := mustZone(t, "America/New_York")

	pass := New(outputDir, false, led, nil, logging.NewNop(), WithLocalZone(newYork))
	summary, err := pass.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Converted != 2 || summary.Failed != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	basePath := filepath.Join(outputDir, "images", "2023-01-15_093000_Image_abc12345.jpg")
	if _, err := os.Stat(basePath); err != nil {
		t.Fatalf("expected renamed base file: %v", err)
	}
	overlayPath := filepath.Join(outputDir, "overlays", "2023-01-15_093000_Image_abc12345_overlay.png")
	if _, err := os.Stat(overlayPath); err != nil {
		t.Fatalf("expected renamed overlay: %v", err)
	}

	info, err := os.Stat(basePath)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	wantTime := time.Date(2023, 1, 15, 9, 30, 0, 0, newYork)
	if !info.ModTime().Equal(wantTime) {
		t.Fatalf("mtime = %v, want %v", info.ModTime(), wantTime)
	}

	if !led.IsTimezoneConverted("abc12345def") {
		t.Fatal("expected ledger conversion flag")
	}
}

func TestRunPrefersGPSZone(t *testing.T) {
	outputDir, led := setupTree(t)
	mustZone(t, "America/Los_Angeles")

	resolver := &stubResolver{zone: "America/Los_Angeles"}
	pass := New(outputDir, true, led, resolver, logging.NewNop(), WithLocalZone(time.UTC))
	summary, err := pass.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Converted != 2 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if resolver.calls == 0 {
		t.Fatal("resolver was never consulted")
	}

	basePath := filepath.Join(outputDir, "images", "2023-01-15_063000_Image_abc12345.jpg")
	if _, err := os.Stat(basePath); err != nil {
		t.Fatalf("expected Pacific-time name: %v", err)
	}
}

func TestRunIsIdempotent(t *testing.T) {
	outputDir, led := setupTree(t)
	newYork := mustZone(t, "America/New_York")

	pass := New(outputDir, false, led, nil, logging.NewNop(), WithLocalZone(newYork))
	if _, err := pass.Run(context.Background()); err != nil {
		t.Fatalf("first Run: %v", err)
	}

	summary, err := pass.Run(context.Background())
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if summary.Converted != 0 {
		t.Fatalf("second run converted %d files", summary.Converted)
	}
	if summary.Failed != 0 {
		t.Fatalf("second run failed %d files", summary.Failed)
	}
}

func TestRunMarksConvertedWhenNameUnchanged(t *testing.T) {
	outputDir, led := setupTree(t)

	pass := New(outputDir, false, led, nil, logging.NewNop(), WithLocalZone(time.UTC))
	summary, err := pass.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Converted != 0 || summary.Skipped != 2 || summary.Failed != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	if !led.IsTimezoneConverted("abc12345def") {
		t.Fatal("expected ledger conversion flag despite unchanged names")
	}

	basePath := filepath.Join(outputDir, "images", "2023-01-15_143000_Image_abc12345.jpg")
	info, err := os.Stat(basePath)
	if err != nil {
		t.Fatalf("base file must keep its name: %v", err)
	}
	wantTime := time.Date(2023, 1, 15, 14, 30, 0, 0, time.UTC)
	if !info.ModTime().Equal(wantTime) {
		t.Fatalf("mtime = %v, want %v", info.ModTime(), wantTime)
	}
}

func TestRunConvertsCompositedFiles(t *testing.T) {
	outputDir, led := setupTree(t)
	newYork := mustZone(t, "America/New_York")

	compositePath := filepath.Join(outputDir, "composited", "images", "2023-01-15_143000_Image_abc12345_composited.jpg")
	testsupport.WriteFile(t, compositePath, testsupport.JPEGPayload())
	led.MarkComposited("abc12345", ledger.KindImage, "base.jpg", "overlay.png")
	if err := led.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	pass := New(outputDir, false, led, nil, logging.NewNop(), WithLocalZone(newYork))
	summary, err := pass.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Converted != 3 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	renamed := filepath.Join(outputDir, "composited", "images", "2023-01-15_093000_Image_abc12345_composited.jpg")
	if _, err := os.Stat(renamed); err != nil {
		t.Fatalf("expected renamed composite: %v", err)
	}
	if !led.IsCompositeConverted("abc12345", ledger.KindImage) {
		t.Fatal("expected composited conversion flag")
	}
}

func TestRunSkipsUnknownFiles(t *testing.T) {
	outputDir, led := setupTree(t)
	newYork := mustZone(t, "America/New_York")

	testsupport.WriteFile(t,
		filepath.Join(outputDir, "images", "unrelated.jpg"),
		testsupport.JPEGPayload())
	testsupport.WriteFile(t,
		filepath.Join(outputDir, "images", "2023-01-15_143000_Image_notinledg.jpg"),
		testsupport.JPEGPayload())

	pass := New(outputDir, false, led, nil, logging.NewNop(), WithLocalZone(newYork))
	summary, err := pass.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Converted != 2 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if summary.Skipped != 2 {
		t.Fatalf("skipped = %d, want 2", summary.Skipped)
	}
	if _, err := os.Stat(filepath.Join(outputDir, "images", "unrelated.jpg")); err != nil {
		t.Fatalf("unknown file must be left alone: %v", err)
	}
}
