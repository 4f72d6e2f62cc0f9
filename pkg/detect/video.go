package detect

import (
	// stdlib
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	// internal
	"github.com/grigone/detweb/pkg/seq"
	"github.com/grigone/detweb/pkg/stats"
	"github.com/grigone/detweb/pkg/transcode"

	// external
	"github.com/google/uuid"
	"gocv.io/x/gocv"
)

type VideoResult struct {
	// OutputPath is owned by the caller, who deletes it once served
	OutputPath string
	Stats      *stats.Table
	Frames     int
}

// ProgressFunc receives the frame tally after every processed frame.
// fraction is in [0,1], or -1 when the container reports no usable total.
type ProgressFunc func(done, total int, fraction float64)

// PreviewFunc receives each annotated frame as encoded JPEG
type PreviewFunc func(jpeg []byte)

type frameSource interface {
	Read(m *gocv.Mat) bool
}

type frameSink interface {
	Write(img gocv.Mat) error
}

type inferFunc func(img *gocv.Mat) (gocv.Mat, *stats.Table, error)

// ProcessVideo runs the detector over every frame of the file at input_path
// in sequence: read, detect, write, merge tallies, report progress. The loop
// ends when the container runs out of frames; the advisory frame count only
// feeds progress reporting. The raw annotated container is then transcoded
// (or copied, see transcode) to the returned output path.
func ProcessVideo(
	ctx context.Context,
	logger *slog.Logger,
	d *Detector,
	input_path string,
	tc *transcode.Transcoder,
	on_progress ProgressFunc,
	on_preview PreviewFunc,
) (*VideoResult, error) {
	capture, err := gocv.VideoCaptureFile(input_path)
	if err != nil {
		return nil, fmt.Errorf("can't open video %s: %w", input_path, err)
	}
	defer capture.Close()

	fps := capture.Get(gocv.VideoCaptureFPS)
	width := int(capture.Get(gocv.VideoCaptureFrameWidth))
	height := int(capture.Get(gocv.VideoCaptureFrameHeight))
	total := int(capture.Get(gocv.VideoCaptureFrameCount))
	if fps <= 0 {
		fps = 25
	}

	raw_path := filepath.Join(os.TempDir(), "detweb-raw-"+uuid.NewString()+".avi")
	writer, err := gocv.VideoWriterFile(raw_path, "MJPG", fps, width, height, true)
	if err != nil {
		return nil, fmt.Errorf("can't open video sink %s: %w", raw_path, err)
	}

	logger.Info(
		"Video loop started",
		"input", input_path,
		"fps", fps, "width", width, "height", height,
		"advisory total frames", total)

	table, frames, err := drain(ctx, logger, d.Frame, capture, writer, total, on_progress, on_preview)

	// release both ends before transcoding reads the file back
	if werr := writer.Close(); werr != nil {
		logger.Warn("Sink close failed", "path", raw_path, "error", werr)
	}

	if err != nil {
		removeQuiet(logger, raw_path)
		return nil, err
	}

	output_path := filepath.Join(os.TempDir(), "detweb-out-"+uuid.NewString()+".mp4")
	transcoded, err := tc.ToMP4(ctx, raw_path, output_path)
	removeQuiet(logger, raw_path)
	if err != nil {
		return nil, err
	}

	logger.Info(
		"Video done",
		"frames", frames,
		"detections", table.Total(),
		"transcoded", transcoded,
		"output", output_path)

	return &VideoResult{OutputPath: output_path, Stats: table, Frames: frames}, nil
}

// drain is the sequential read-detect-write cycle. Frame i of the sink is
// always the annotated frame i of the source; nothing is dropped, duplicated
// or reordered. Terminates only when the source has no more frames (or on
// error/cancellation, which aborts the whole run).
func drain(
	ctx context.Context,
	logger *slog.Logger,
	infer inferFunc,
	src frameSource,
	sink frameSink,
	total int,
	on_progress ProgressFunc,
	on_preview PreviewFunc,
) (*stats.Table, int, error) {
	cumulative := stats.New()
	done := 0

	img := gocv.NewMat()
	defer img.Close()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Video loop cancelled by context")
			return nil, done, context.Canceled
		default:
		}

		// an empty frame from a successful read means the container is
		// exhausted too; skipping it would leave a hole in the output
		if !src.Read(&img) || img.Empty() {
			return cumulative, done, nil
		}

		annotated, frame_stats, err := infer(&img)
		if err != nil {
			// no partial results: the whole request is lost
			return nil, done, fmt.Errorf("inference failed on frame %d: %w", done, err)
		}

		if err := sink.Write(annotated); err != nil {
			annotated.Close()
			return nil, done, fmt.Errorf("can't write frame %d: %w", done, err)
		}

		if on_preview != nil {
			if buf, err := gocv.IMEncode(gocv.JPEGFileExt, annotated); err == nil {
				data := make([]byte, buf.Len())
				copy(data, buf.GetBytes())
				buf.Close()
				on_preview(data)
			}
		}
		annotated.Close()

		cumulative.Merge(frame_stats)
		done++
		if on_progress != nil {
			on_progress(done, total, Fraction(done, total))
		}
	}
}

// Fraction maps a frame tally onto [0,1] progress, -1 when the total is
// unknown or unreliable
func Fraction(done, total int) float64 {
	if total <= 0 {
		return -1
	}
	return seq.Clamp(float64(done)/float64(total), 0, 1)
}

// cleanup is best-effort only, never surfaced
func removeQuiet(logger *slog.Logger, path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logger.Debug("Temp file not deleted", "path", path, "error", err)
	}
}
