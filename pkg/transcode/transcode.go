// Package transcode re-encodes the raw annotated container into a
// browser-playable MP4 via an external ffmpeg process. When ffmpeg is missing
// or fails the input is copied verbatim instead: degrade, not fail.
package transcode

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
)

type Transcoder struct {
	FFmpeg string
	logger *slog.Logger
}

func New(ffmpeg_path string, logger *slog.Logger) *Transcoder {
	if ffmpeg_path == "" {
		ffmpeg_path = "ffmpeg"
	}
	return &Transcoder{FFmpeg: ffmpeg_path, logger: logger}
}

// ToMP4 writes an H.264/AAC fast-start MP4 to output_path. Returns whether
// the external transcode actually ran; on any ffmpeg failure the input file
// is copied to output_path unchanged and no error is reported.
func (t *Transcoder) ToMP4(ctx context.Context, input_path, output_path string) (bool, error) {
	cmd := exec.CommandContext(ctx, t.FFmpeg,
		"-y",
		"-i", input_path,
		"-c:v", "libx264",
		"-preset", "fast",
		"-crf", "23",
		"-c:a", "aac",
		"-movflags", "+faststart",
		output_path)

	out, err := cmd.CombinedOutput()
	if err == nil {
		return true, nil
	}

	if t.logger != nil {
		t.logger.Warn(
			"Transcode unavailable, copying raw output verbatim",
			"ffmpeg", t.FFmpeg,
			"error", err,
			"output", string(out))
	}

	if err := copyFile(input_path, output_path); err != nil {
		return false, fmt.Errorf("transcode fallback copy failed: %w", err)
	}
	return false, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
