package deps

import (
	"os"
	"path/filepath"
	"testing"
)

func stubBinary(t *testing.T, name string) {
	t.Helper()
	dir := t.TempDir()
	target := filepath.Join(dir, name)
	if err := os.WriteFile(target, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	t.Setenv("PATH", dir)
}

func TestDetectAllMissing(t *testing.T) {
	t.Setenv("PATH", t.TempDir())

	caps, statuses := Detect("ffmpeg", "ffprobe", "exiftool")
	if caps.FFmpeg || caps.FFprobe || caps.ExifTool {
		t.Fatalf("expected no capabilities, got %+v", caps)
	}
	if len(statuses) != 3 {
		t.Fatalf("statuses = %d, want 3", len(statuses))
	}
	for _, status := range statuses {
		if status.Available {
			t.Fatalf("%s should be unavailable", status.Name)
		}
		if status.Detail == "" {
			t.Fatalf("%s missing detail", status.Name)
		}
	}
}

func TestDetectFindsStubbedBinary(t *testing.T) {
	stubBinary(t, "ffmpeg")

	caps, statuses := Detect("ffmpeg", "ffprobe", "exiftool")
	if !caps.FFmpeg {
		t.Fatal("expected ffmpeg capability")
	}
	if caps.FFprobe || caps.ExifTool {
		t.Fatalf("unexpected capabilities: %+v", caps)
	}
	for _, status := range statuses {
		if status.Name == "FFmpeg" && !status.Available {
			t.Fatal("ffmpeg status should be available")
		}
	}
}

func TestCheckBinariesEmptyCommand(t *testing.T) {
	statuses := CheckBinaries([]Requirement{{Name: "Thing", Command: "", Optional: true}})
	if len(statuses) != 1 {
		t.Fatalf("statuses = %d", len(statuses))
	}
	if statuses[0].Available {
		t.Fatal("empty command must be unavailable")
	}
	if statuses[0].Detail != "command not configured" {
		t.Fatalf("detail = %q", statuses[0].Detail)
	}
}
