package pairs

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/shoeless03/snapchat-memory-downloader/internal/logging"
	"github.com/shoeless03/snapchat-memory-downloader/internal/testsupport"
)

func buildTree(t *testing.T) (outputDir, cachePath string) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	outputDir = cfg.Paths.OutputDir

	testsupport.WriteFile(t,
		filepath.Join(outputDir, "overlays", "2023-01-15_143000_Image_abc12345_overlay.png"),
		testsupport.PNGPayload())
	testsupport.WriteFile(t,
		filepath.Join(outputDir, "images", "2023-01-15_143000_Image_abc12345.jpg"),
		testsupport.JPEGPayload())

	testsupport.WriteFile(t,
		filepath.Join(outputDir, "overlays", "2023-02-20_081530_Video_feedface_overlay.png"),
		testsupport.PNGPayload())
	testsupport.WriteFile(t,
		filepath.Join(outputDir, "videos", "2023-02-20_081530_Video_feedface.mp4"),
		testsupport.MP4Payload())

	// Orphan overlay with no base file.
	testsupport.WriteFile(t,
		filepath.Join(outputDir, "overlays", "2023-03-01_120000_Image_orphaned_overlay.png"),
		testsupport.PNGPayload())

	return outputDir, cfg.Paths.PairsCachePath
}

func TestFindPairsScansFilesystem(t *testing.T) {
	outputDir, cachePath := buildTree(t)
	index := New(outputDir, cachePath, logging.NewNop())

	found, err := index.FindPairs(false)
	if err != nil {
		t.Fatalf("FindPairs: %v", err)
	}
	if len(found) != 2 {
		t.Fatalf("got %d pairs: %+v", len(found), found)
	}

	byType := map[string]Pair{}
	for _, pair := range found {
		byType[pair.MediaType] = pair
	}
	image := byType["image"]
	if image.SID != "abc12345" {
		t.Fatalf("image pair sid = %q", image.SID)
	}
	if filepath.Base(image.BaseFile) != "2023-01-15_143000_Image_abc12345.jpg" {
		t.Fatalf("image base = %q", image.BaseFile)
	}
	video := byType["video"]
	if video.SID != "feedface" {
		t.Fatalf("video pair sid = %q", video.SID)
	}
	if filepath.Base(video.OverlayFile) != "2023-02-20_081530_Video_feedface_overlay.png" {
		t.Fatalf("video overlay = %q", video.OverlayFile)
	}
}

func TestFindPairsIsDeterministic(t *testing.T) {
	outputDir, cachePath := buildTree(t)
	index := New(outputDir, cachePath, logging.NewNop())

	first, err := index.FindPairs(false)
	if err != nil {
		t.Fatalf("FindPairs: %v", err)
	}
	second, err := index.FindPairs(false)
	if err != nil {
		t.Fatalf("FindPairs: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("two scans disagree:\n%+v\n%+v", first, second)
	}
}

func TestFindPairsCacheShortCircuitsScan(t *testing.T) {
	outputDir, cachePath := buildTree(t)

	scans := 0
	index := New(outputDir, cachePath, logging.NewNop(), WithScanner(func(dir string) []Pair {
		scans++
		return scanFilesystem(dir)
	}))

	if _, err := index.FindPairs(false); err != nil {
		t.Fatalf("FindPairs: %v", err)
	}
	if scans != 1 {
		t.Fatalf("scans = %d, want 1", scans)
	}

	cached, err := index.FindPairs(true)
	if err != nil {
		t.Fatalf("FindPairs cached: %v", err)
	}
	if scans != 1 {
		t.Fatalf("cached lookup must not rescan; scans = %d", scans)
	}
	if len(cached) != 2 {
		t.Fatalf("cached pairs = %d", len(cached))
	}

	if _, err := index.FindPairs(false); err != nil {
		t.Fatalf("FindPairs rebuild: %v", err)
	}
	if scans != 2 {
		t.Fatalf("forced rebuild must rescan; scans = %d", scans)
	}
}

func TestFindPairsRebuildsOnCorruptCache(t *testing.T) {
	outputDir, cachePath := buildTree(t)
	if err := os.WriteFile(cachePath, []byte("{broken"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	index := New(outputDir, cachePath, logging.NewNop())
	found, err := index.FindPairs(true)
	if err != nil {
		t.Fatalf("FindPairs: %v", err)
	}
	if len(found) != 2 {
		t.Fatalf("got %d pairs after rebuild", len(found))
	}

	// The rebuilt cache replaces the corrupt one.
	data, err := os.ReadFile(cachePath)
	if err != nil {
		t.Fatalf("read cache: %v", err)
	}
	var rebuilt cacheFile
	if err := json.Unmarshal(data, &rebuilt); err != nil {
		t.Fatalf("cache not rewritten: %v", err)
	}
	if rebuilt.Count != 2 {
		t.Fatalf("rebuilt cache count = %d", rebuilt.Count)
	}
}
