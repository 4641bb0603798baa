// Package ffprobe wraps the ffprobe binary for video stream inspection.
package ffprobe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Result represents the parsed output from an ffprobe inspection.
type Result struct {
	Streams []Stream `json:"streams"`
}

// Stream describes a single stream in the media container.
type Stream struct {
	Index        int        `json:"index"`
	CodecType    string     `json:"codec_type"`
	Width        int        `json:"width"`
	Height       int        `json:"height"`
	SideDataList []SideData `json:"side_data_list"`
}

// SideData carries stream side data such as display rotation.
type SideData struct {
	Rotation *int `json:"rotation"`
}

// Inspect executes ffprobe against the first video stream of path and
// decodes the JSON response.
func Inspect(ctx context.Context, binary, path string) (Result, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	if strings.TrimSpace(path) == "" {
		return Result{}, errors.New("ffprobe inspect: empty path")
	}

	probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cmd := exec.CommandContext(probeCtx, binary,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height:stream_side_data=rotation",
		"-of", "json",
		"--", path)
	output, err := cmd.Output()
	if err != nil {
		return Result{}, fmt.Errorf("ffprobe inspect: %w", err)
	}

	var result Result
	if err := json.Unmarshal(output, &result); err != nil {
		return Result{}, fmt.Errorf("ffprobe parse: %w", err)
	}
	return result, nil
}

// DisplayDimensions returns the first video stream's dimensions corrected
// for rotation metadata: a 90- or 270-degree rotation swaps width and
// height. Falls back to 1920x1080 when nothing usable is reported.
func (r Result) DisplayDimensions() (width, height int) {
	width, height = 1920, 1080
	for _, stream := range r.Streams {
		if !strings.EqualFold(stream.CodecType, "video") && stream.CodecType != "" {
			continue
		}
		if stream.Width <= 0 || stream.Height <= 0 {
			continue
		}
		width, height = stream.Width, stream.Height
		for _, sd := range stream.SideDataList {
			if sd.Rotation == nil {
				continue
			}
			rotation := *sd.Rotation
			if rotation < 0 {
				rotation = -rotation
			}
			if rotation%180 == 90 {
				width, height = height, width
			}
			break
		}
		break
	}
	return width, height
}
