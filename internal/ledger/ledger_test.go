package ledger

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/shoeless03/snapchat-memory-downloader/internal/export"
	"github.com/shoeless03/snapchat-memory-downloader/internal/logging"
)

func testRecord(sid string) export.MemoryRecord {
	return export.MemoryRecord{
		SID:         sid,
		Date:        "2023-01-15 14:30:00 UTC",
		MediaType:   export.MediaImage,
		Location:    "Latitude, Longitude: 40.7128, -74.0060",
		DownloadURL: "https://example.com/dl?sid=" + sid,
	}
}

func openTestLedger(t *testing.T) *Ledger {
	t.Helper()
	led, err := Open(filepath.Join(t.TempDir(), "download_progress.json"), logging.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return led
}

func TestOpenMissingFileStartsEmpty(t *testing.T) {
	led := openTestLedger(t)
	if led.DownloadedCount() != 0 {
		t.Fatalf("expected empty ledger, got %d entries", led.DownloadedCount())
	}
}

func TestOpenCorruptFileFailsFast(t *testing.T) {
	path := filepath.Join(t.TempDir(), "download_progress.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Open(path, logging.NewNop()); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
}

func TestMarkDownloadedClearsFailures(t *testing.T) {
	led := openTestLedger(t)
	record := testRecord("sid-1")

	if err := led.RecordFailure(record.SID, record, "boom", "http"); err != nil {
		t.Fatalf("RecordFailure: %v", err)
	}
	if got := led.FailureCount(record.SID); got != 1 {
		t.Fatalf("FailureCount = %d, want 1", got)
	}

	if err := led.MarkDownloaded(record.SID, record); err != nil {
		t.Fatalf("MarkDownloaded: %v", err)
	}
	if !led.IsDownloaded(record.SID) {
		t.Fatal("expected sid to be downloaded")
	}
	if got := led.FailureCount(record.SID); got != 0 {
		t.Fatalf("FailureCount after success = %d, want 0", got)
	}
}

func TestRecordFailureCountsMonotonically(t *testing.T) {
	led := openTestLedger(t)
	record := testRecord("sid-1")

	for i := 1; i <= 4; i++ {
		if err := led.RecordFailure(record.SID, record, "boom", "http"); err != nil {
			t.Fatalf("RecordFailure %d: %v", i, err)
		}
		if got := led.FailureCount(record.SID); got != i {
			t.Fatalf("FailureCount after %d failures = %d", i, got)
		}
	}
}

func TestMarkDownloadedIsIdempotent(t *testing.T) {
	led := openTestLedger(t)
	record := testRecord("sid-1")

	if err := led.MarkDownloaded(record.SID, record); err != nil {
		t.Fatalf("MarkDownloaded: %v", err)
	}
	if err := led.MarkDownloaded(record.SID, record); err != nil {
		t.Fatalf("MarkDownloaded again: %v", err)
	}
	if led.DownloadedCount() != 1 {
		t.Fatalf("DownloadedCount = %d, want 1", led.DownloadedCount())
	}
}

func TestSaveWritesBackupAndSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "download_progress.json")

	led, err := Open(path, logging.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := led.MarkDownloaded("sid-1", testRecord("sid-1")); err != nil {
		t.Fatalf("MarkDownloaded: %v", err)
	}
	if err := led.MarkDownloaded("sid-2", testRecord("sid-2")); err != nil {
		t.Fatalf("MarkDownloaded: %v", err)
	}

	if _, err := os.Stat(path + ".backup"); err != nil {
		t.Fatalf("expected backup file: %v", err)
	}

	reopened, err := Open(path, logging.NewNop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if reopened.DownloadedCount() != 2 {
		t.Fatalf("DownloadedCount after reopen = %d, want 2", reopened.DownloadedCount())
	}
}

func TestInterruptedSaveLeavesPreviousStateReadable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "download_progress.json")

	led, err := Open(path, logging.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := led.MarkDownloaded("sid-1", testRecord("sid-1")); err != nil {
		t.Fatalf("MarkDownloaded: %v", err)
	}

	// A crash between the temp write and the rename leaves a stray .tmp
	// file next to an untouched live ledger.
	if err := os.WriteFile(path+".tmp", []byte(`{"downloaded": {"sid-2"`), 0o644); err != nil {
		t.Fatalf("write stray temp: %v", err)
	}

	reopened, err := Open(path, logging.NewNop())
	if err != nil {
		t.Fatalf("reopen after interrupted save: %v", err)
	}
	if !reopened.IsDownloaded("sid-1") {
		t.Fatal("previous state lost after interrupted save")
	}
	if reopened.IsDownloaded("sid-2") {
		t.Fatal("half-written temp state must not be visible")
	}
}

func TestPersistedFieldNames(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "download_progress.json")

	led, err := Open(path, logging.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := led.MarkDownloaded("sid-1", testRecord("sid-1")); err != nil {
		t.Fatalf("MarkDownloaded: %v", err)
	}
	led.MarkComposited("sid-1", KindImage, "/base.jpg", "/overlay.png")
	if err := led.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var parsed map[string]json.RawMessage
	if err := json.Unmarshal(raw, &parsed); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"downloaded", "failed", "composited", "failed_composites"} {
		if _, ok := parsed[key]; !ok {
			t.Fatalf("missing top-level key %q", key)
		}
	}

	var downloaded map[string]map[string]any
	if err := json.Unmarshal(parsed["downloaded"], &downloaded); err != nil {
		t.Fatalf("unmarshal downloaded: %v", err)
	}
	entry := downloaded["sid-1"]
	for _, key := range []string{"date", "media_type", "download_timestamp", "location", "timezone_converted", "local_date", "current_timezone"} {
		if _, ok := entry[key]; !ok {
			t.Fatalf("downloaded entry missing field %q", key)
		}
	}
}

func TestCompositeMutationsAreBatched(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "download_progress.json")

	led, err := Open(path, logging.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	led.MarkComposited("abc12345", KindImage, "/base.jpg", "/overlay.png")

	// Not yet flushed to disk.
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected no ledger file before Save, stat err = %v", err)
	}
	if err := led.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	reopened, err := Open(path, logging.NewNop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if !reopened.IsComposited("abc12345", KindImage) {
		t.Fatal("composite entry lost across save/reopen")
	}
}

func TestFindFullSIDPrefersSortedFirstMatch(t *testing.T) {
	led := openTestLedger(t)
	for _, sid := range []string{"abc12345zzz", "abc12345aaa", "unrelated"} {
		if err := led.MarkDownloaded(sid, testRecord(sid)); err != nil {
			t.Fatalf("MarkDownloaded: %v", err)
		}
	}

	full, ok := led.FindFullSID("abc12345")
	if !ok {
		t.Fatal("expected a match")
	}
	if full != "abc12345aaa" {
		t.Fatalf("FindFullSID = %q, want first sorted match %q", full, "abc12345aaa")
	}
	if _, ok := led.FindFullSID("nomatch"); ok {
		t.Fatal("expected no match")
	}
}

func TestVerifyDownloadsClassifiesRecords(t *testing.T) {
	led := openTestLedger(t)
	done := testRecord("sid-done")
	failed := testRecord("sid-failed")
	missing := testRecord("sid-missing")

	if err := led.MarkDownloaded(done.SID, done); err != nil {
		t.Fatalf("MarkDownloaded: %v", err)
	}
	if err := led.RecordFailure(failed.SID, failed, "boom", "http"); err != nil {
		t.Fatalf("RecordFailure: %v", err)
	}
	if err := led.RecordFailure(failed.SID, failed, "boom", "http"); err != nil {
		t.Fatalf("RecordFailure: %v", err)
	}

	result := led.VerifyDownloads([]export.MemoryRecord{done, failed, missing})
	if result.Total != 3 || result.Downloaded != 1 {
		t.Fatalf("unexpected totals: %+v", result)
	}
	if len(result.Failed) != 1 || result.Failed[0].Attempts != 2 {
		t.Fatalf("unexpected failed items: %+v", result.Failed)
	}
	if len(result.Missing) != 1 || result.Missing[0].SID != "sid-missing" {
		t.Fatalf("unexpected missing items: %+v", result.Missing)
	}
}

func TestEnsureTimezoneFieldsBackfills(t *testing.T) {
	led := openTestLedger(t)
	if err := led.MarkDownloaded("sid-1", testRecord("sid-1")); err != nil {
		t.Fatalf("MarkDownloaded: %v", err)
	}

	// Simulate an entry written before timezone tracking existed.
	led.mu.Lock()
	entry := led.state.Downloaded["sid-1"]
	entry.CurrentTimezone = ""
	led.state.Downloaded["sid-1"] = entry
	led.mu.Unlock()

	updated, err := led.EnsureTimezoneFields()
	if err != nil {
		t.Fatalf("EnsureTimezoneFields: %v", err)
	}
	if updated != 1 {
		t.Fatalf("updated = %d, want 1", updated)
	}
	if tz := led.state.Downloaded["sid-1"].CurrentTimezone; tz != "UTC" {
		t.Fatalf("CurrentTimezone = %q, want UTC", tz)
	}

	again, err := led.EnsureTimezoneFields()
	if err != nil {
		t.Fatalf("EnsureTimezoneFields second pass: %v", err)
	}
	if again != 0 {
		t.Fatalf("second pass updated = %d, want 0", again)
	}
}
