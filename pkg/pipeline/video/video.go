// Package video muxes narration audio against a still image into a video
// container by shelling out to ffmpeg, the same tool the usual AV libraries
// wrap.
package video

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"paperboy/pkg/serrors"
)

// Options configures the muxer.
type Options struct {
	// FFmpegPath is the ffmpeg binary; empty means "ffmpeg" on PATH.
	FFmpegPath string
	// ImagePath is the still image shown for the whole video.
	ImagePath string
}

// Muxer renders still-image videos with ffmpeg.
type Muxer struct {
	opts Options
}

// New constructs a Muxer.
func New(opts Options) *Muxer {
	if opts.FFmpegPath == "" {
		opts.FFmpegPath = "ffmpeg"
	}

	return &Muxer{opts: opts}
}

// Mux renders audioPath with the configured image into outPath. The container
// format follows outPath's extension (webm or mp4).
func (m *Muxer) Mux(ctx context.Context, audioPath, outPath string) error {
	if _, err := os.Stat(m.opts.ImagePath); err != nil {
		return serrors.Wrap(serrors.ErrBadRequest, err, "missing still image")
	}

	args := []string{
		"-y",
		"-loop", "1",
		"-i", m.opts.ImagePath,
		"-i", audioPath,
		"-shortest",
		"-r", "1",
	}
	if strings.HasSuffix(outPath, ".webm") {
		args = append(args, "-c:v", "libvpx-vp9", "-c:a", "libopus", "-b:a", "84k")
	} else {
		args = append(args, "-c:v", "libx264", "-tune", "stillimage", "-c:a", "aac", "-pix_fmt", "yuv420p")
	}
	args = append(args, outPath)

	cmd := exec.CommandContext(ctx, m.opts.FFmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return serrors.Wrap(serrors.ErrInternal, err, "ffmpeg failed: %s", lastLine(stderr.String()))
	}

	return nil
}

// lastLine keeps error output manageable: ffmpeg prints its actual failure on
// the final stderr line.
func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) == 0 {
		return ""
	}

	return fmt.Sprintf("%.300s", lines[len(lines)-1])
}
