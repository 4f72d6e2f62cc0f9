package detect

import (
	"errors"
	"fmt"

	"github.com/grigone/detweb/pkg/stats"

	"gocv.io/x/gocv"
)

var ErrBadImage = errors.New("can't decode image")

type DetectionResult struct {
	AnnotatedJPEG []byte
	Stats         *stats.Table
}

// ProcessImage is the whole still-image pipeline: decode, one Frame call,
// re-encode. No batching, no retry.
func ProcessImage(d *Detector, encoded []byte) (*DetectionResult, error) {
	img, err := gocv.IMDecode(encoded, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadImage, err)
	}
	defer img.Close()
	if img.Empty() {
		return nil, ErrBadImage
	}

	annotated, table, err := d.Frame(&img)
	if err != nil {
		return nil, err
	}
	defer annotated.Close()

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, annotated)
	if err != nil {
		return nil, fmt.Errorf("can't encode annotated image: %w", err)
	}
	defer buf.Close()

	data := make([]byte, buf.Len())
	copy(data, buf.GetBytes())

	return &DetectionResult{AnnotatedJPEG: data, Stats: table}, nil
}
