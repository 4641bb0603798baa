package compositor

import (
	"context"
	"errors"
	"fmt"

	"github.com/shoeless03/snapchat-memory-downloader/internal/ffprobe"
	"github.com/shoeless03/snapchat-memory-downloader/internal/logging"
)

// ErrFFmpegUnavailable is returned when a video composite is requested but
// no usable ffmpeg binary was detected at startup.
var ErrFFmpegUnavailable = errors.New("ffmpeg is not available")

// compositeVideo burns the overlay onto the video with ffmpeg. The overlay
// is scaled to the display dimensions so rotated phone footage lines up,
// and the audio stream is passed through untouched.
func (c *Compositor) compositeVideo(ctx context.Context, basePath, overlayPath, outPath string) error {
	if !c.caps.FFmpeg {
		return ErrFFmpegUnavailable
	}

	width, height := 1920, 1080
	if c.caps.FFprobe {
		probed, err := ffprobe.Inspect(ctx, c.cfg.FFprobeBinary, basePath)
		if err != nil {
			c.logger.Warn("ffprobe failed, using fallback dimensions",
				logging.String(logging.FieldPath, basePath), logging.Error(err))
		} else {
			width, height = probed.DisplayDimensions()
		}
	}

	filter := fmt.Sprintf("[1:v]scale=%d:%d[ovr];[0:v][ovr]overlay=0:0:format=auto", width, height)
	args := []string{
		"-i", basePath,
		"-i", overlayPath,
		"-filter_complex", filter,
		"-codec:a", "copy",
		"-y", outPath,
	}

	runCtx, cancel := context.WithTimeout(ctx, c.videoTimeout())
	defer cancel()

	if err := c.exec.Run(runCtx, c.cfg.FFmpegBinary, args); err != nil {
		return fmt.Errorf("composite video: %w", err)
	}
	return nil
}
