package testsupport

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

// Magic headers for synthesizing media fixtures that classify correctly.
var (
	JPEGHeader = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 0x4A, 0x46}
	PNGHeader  = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}
	MP4Header  = []byte{0x00, 0x00, 0x00, 0x18, 0x66, 0x74, 0x79, 0x70, 0x69, 0x73, 0x6F, 0x6D}
)

// WriteFile writes content to path, creating parent directories.
func WriteFile(t testing.TB, path string, content []byte) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// JPEGPayload returns bytes that sniff as a JPEG image.
func JPEGPayload() []byte {
	return append(append([]byte{}, JPEGHeader...), bytes.Repeat([]byte{0x11}, 64)...)
}

// MP4Payload returns bytes that sniff as an MP4 video.
func MP4Payload() []byte {
	return append(append([]byte{}, MP4Header...), bytes.Repeat([]byte{0x22}, 64)...)
}

// PNGPayload returns bytes that sniff as a PNG image.
func PNGPayload() []byte {
	return append(append([]byte{}, PNGHeader...), bytes.Repeat([]byte{0x33}, 64)...)
}

// ZipPayload builds an in-memory zip archive from name to content pairs.
func ZipPayload(t testing.TB, files map[string][]byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range files {
		entry, err := w.Create(name)
		if err != nil {
			t.Fatalf("create zip entry %s: %v", name, err)
		}
		if _, err := entry.Write(content); err != nil {
			t.Fatalf("write zip entry %s: %v", name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}
