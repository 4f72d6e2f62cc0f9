// Package detect runs one loaded model over still images and video files,
// producing annotated output and per-class tallies.
package detect

import (
	// stdlib
	"errors"
	"image"

	// internal
	"github.com/grigone/detweb/pkg/classes"
	"github.com/grigone/detweb/pkg/gset"
	"github.com/grigone/detweb/pkg/model"
	"github.com/grigone/detweb/pkg/seq"
	"github.com/grigone/detweb/pkg/stats"
	"github.com/grigone/detweb/pkg/yolo"

	// external
	"gocv.io/x/gocv"
)

var ErrNoOutputLayers = errors.New("model has no readable output layers")

// Options are the model-geometry knobs; zero values fall back to the usual
// ultralytics export layout
type Options struct {
	InputSize    image.Point
	ScaleFactor  float64
	NMSThreshold float32
	Transpose    bool
}

type Detector struct {
	model    *model.Model
	layers   []string
	params   yolo.Params
	registry *classes.Registry
	palette  yolo.Palette
}

func New(
	m *model.Model,
	confidence float32,
	selected *gset.Set[int],
	registry *classes.Registry,
	opts Options,
) (*Detector, error) {
	layers := yolo.OutputLayerNames(&m.Net)
	if len(layers) == 0 {
		return nil, ErrNoOutputLayers
	}

	if opts.InputSize.X == 0 || opts.InputSize.Y == 0 {
		opts.InputSize = image.Pt(640, 640)
	}
	if opts.ScaleFactor == 0 {
		opts.ScaleFactor = 1.0 / 255.0
	}
	if opts.NMSThreshold == 0 {
		opts.NMSThreshold = 0.45
	}

	return &Detector{
		model:  m,
		layers: layers,
		params: yolo.Params{
			Blob:       yolo.DefaultBlobParams(opts.InputSize, opts.ScaleFactor),
			Transpose:  opts.Transpose,
			Confidence: seq.Clamp(confidence, 0, 1),
			NMS:        opts.NMSThreshold,
			Classes:    selected,
		},
		registry: registry,
		palette:  yolo.NewPalette(max(registry.Len(), 2)),
	}, nil
}

// Frame runs one inference pass. The returned Mat is a fresh annotated copy
// the caller must Close; img is left untouched.
func (d *Detector) Frame(img *gocv.Mat) (gocv.Mat, *stats.Table, error) {
	boxes, err := yolo.Detect(&d.model.Net, img, d.layers, &d.params)
	if err != nil {
		return gocv.Mat{}, nil, err
	}
	annotated := yolo.Annotate(img, boxes, d.registry, d.palette)
	return annotated, extractStatistics(boxes, d.registry), nil
}

// extractStatistics tallies boxes by resolved display name, insertion order
func extractStatistics(boxes []yolo.Box, registry *classes.Registry) *stats.Table {
	table := stats.New()
	for _, box := range boxes {
		table.Add(registry.Name(box.ClassID), float64(box.Confidence))
	}
	return table
}
