package compositor

import (
	"fmt"
	"image"
	"image/color"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
)

const jpegQuality = 95

// compositeImage draws the overlay onto the base image at full opacity.
// The overlay is scaled to the base dimensions first; Snapchat overlays are
// exported at the capture resolution but disagree after transcoding.
func (c *Compositor) compositeImage(basePath, overlayPath, outPath string) error {
	base, err := imaging.Open(basePath)
	if err != nil {
		return fmt.Errorf("open base image: %w", err)
	}
	overlay, err := imaging.Open(overlayPath)
	if err != nil {
		return fmt.Errorf("open overlay image: %w", err)
	}

	bounds := base.Bounds()
	if overlay.Bounds().Dx() != bounds.Dx() || overlay.Bounds().Dy() != bounds.Dy() {
		overlay = imaging.Resize(overlay, bounds.Dx(), bounds.Dy(), imaging.Linear)
	}

	merged := imaging.Overlay(base, overlay, image.Pt(0, 0), 1.0)

	if isJPEG(outPath) {
		// JPEG has no alpha channel. Flatten against white so translucent
		// overlay regions do not go black.
		flat := imaging.New(bounds.Dx(), bounds.Dy(), color.White)
		flat = imaging.Overlay(flat, merged, image.Pt(0, 0), 1.0)
		if err := imaging.Save(flat, outPath, imaging.JPEGQuality(jpegQuality)); err != nil {
			return fmt.Errorf("save composite: %w", err)
		}
		return nil
	}

	if err := imaging.Save(merged, outPath); err != nil {
		return fmt.Errorf("save composite: %w", err)
	}
	return nil
}

func isJPEG(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return true
	}
	return false
}
