package fetch

import (
	"bytes"
	"strings"
)

// sniffMedia classifies a payload as "image", "video", or "" using the
// content-type header as a hint and the leading magic bytes as the
// authority. The HTTP status and headers alone are not reliable signals
// from this service.
func sniffMedia(header []byte, contentType string) string {
	if strings.Contains(contentType, "video") {
		return "video"
	}
	if strings.Contains(contentType, "image") {
		return "image"
	}

	switch {
	case len(header) >= 8 && bytes.Equal(header[4:8], []byte("ftyp")): // MP4/MOV
		return "video"
	case len(header) >= 12 && bytes.Equal(header[:4], []byte("RIFF")) && bytes.Equal(header[8:12], []byte("AVI ")):
		return "video"
	case len(header) >= 3 && bytes.Equal(header[:3], []byte{0x1a, 0x45, 0xdf}): // WebM/MKV
		return "video"
	case len(header) >= 2 && bytes.Equal(header[:2], []byte{0xff, 0xd8}): // JPEG
		return "image"
	case len(header) >= 8 && bytes.Equal(header[:8], []byte("\x89PNG\r\n\x1a\n")):
		return "image"
	case len(header) >= 2 && (bytes.Equal(header[:2], []byte("II")) || bytes.Equal(header[:2], []byte("MM"))): // TIFF
		return "image"
	case len(header) >= 6 && (bytes.Equal(header[:6], []byte("GIF87a")) || bytes.Equal(header[:6], []byte("GIF89a"))):
		return "image"
	}
	return ""
}

// sniffExtension picks the concrete extension for a direct media save,
// falling back to the classified kind's default.
func sniffExtension(header []byte, media string) string {
	switch {
	case len(header) >= 8 && bytes.Equal(header[4:8], []byte("ftyp")):
		return "mp4"
	case len(header) >= 2 && bytes.Equal(header[:2], []byte{0xff, 0xd8}):
		return "jpg"
	case len(header) >= 8 && bytes.Equal(header[:8], []byte("\x89PNG\r\n\x1a\n")):
		return "png"
	}
	if media == "video" {
		return "mp4"
	}
	return "jpg"
}
