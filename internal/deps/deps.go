// Package deps performs one-shot detection of optional external tools.
//
// The resulting Capabilities value is constructed once at startup and passed
// explicitly into the components that degrade without a given tool. Nothing
// re-probes at call time.
package deps

import (
	"fmt"
	"os/exec"
	"strings"
)

// Requirement defines an external dependency the downloader can use.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// Capabilities is the explicit capability-flags value handed to components.
type Capabilities struct {
	FFmpeg   bool
	FFprobe  bool
	ExifTool bool
}

// Detect probes the configured binaries and returns both the capability
// flags and the per-tool statuses for the startup advisory.
func Detect(ffmpeg, ffprobe, exiftool string) (Capabilities, []Status) {
	statuses := CheckBinaries([]Requirement{
		{Name: "FFmpeg", Command: ffmpeg, Description: "compositing overlays onto videos", Optional: true},
		{Name: "ffprobe", Command: ffprobe, Description: "reading video dimensions and rotation", Optional: true},
		{Name: "ExifTool", Command: exiftool, Description: "GPS metadata embedding and tag copies", Optional: true},
	})

	caps := Capabilities{}
	for _, status := range statuses {
		if !status.Available {
			continue
		}
		switch status.Name {
		case "FFmpeg":
			caps.FFmpeg = true
		case "ffprobe":
			caps.FFprobe = true
		case "ExifTool":
			caps.ExifTool = true
		}
	}
	return caps, statuses
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		if _, err := exec.LookPath(cmd); err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		results = append(results, status)
	}
	return results
}
