// Package yolo decodes YOLO-family network output into class-aware boxes and
// renders them back onto frames.
package yolo

import (
	"image"

	"github.com/grigone/detweb/pkg/gset"

	"gocv.io/x/gocv"
)

type Box struct {
	Rect       image.Rectangle
	ClassID    int
	Confidence float32
}

type Params struct {
	Blob       gocv.ImageToBlobParams
	Transpose  bool
	Confidence float32
	NMS        float32
	// Classes restricts reported detections; empty or nil means no filter
	Classes *gset.Set[int]
}

func DefaultBlobParams(size image.Point, scale_factor float64) gocv.ImageToBlobParams {
	return gocv.NewImageToBlobParams(
		scale_factor,
		size,
		gocv.NewScalar(0, 0, 0, 0),
		true,
		gocv.MatTypeCV32F,
		gocv.DataLayoutNCHW,
		gocv.PaddingModeLetterbox,
		gocv.NewScalar(0, 0, 0, 0),
	)
}

func OutputLayerNames(net *gocv.Net) []string {
	var output_layer_names []string
	for _, i := range net.GetUnconnectedOutLayers() {
		layer := net.GetLayer(i)
		name := layer.GetName()
		if name != "_input" {
			output_layer_names = append(output_layer_names, name)
		}
	}
	return output_layer_names
}

// Selected reports whether a class id passes the filter. An empty set means
// pass-through, not exclude-all.
func Selected(classes *gset.Set[int], id int) bool {
	if classes.Empty() {
		return true
	}
	return classes.Contains(id)
}

func Detect(net *gocv.Net, img *gocv.Mat, output_layer_names []string, p *Params) ([]Box, error) {
	blob := gocv.BlobFromImageWithParams(*img, p.Blob)
	defer blob.Close()

	net.SetInput(blob, "")

	outputs := net.ForwardLayers(output_layer_names)
	defer func() {
		for _, output := range outputs {
			output.Close()
		}
	}()

	// ultralytics-authored exports come out transposed
	if p.Transpose {
		gocv.TransposeND(outputs[0], []int{0, 2, 1}, &outputs[0])
	}

	var result []Box

	for _, output := range outputs {
		output_2d := output.Reshape(1, output.Size()[1])
		cols := output_2d.Cols()
		var boxes []image.Rectangle
		var confidences []float32
		var class_ids []int
		for i := 0; i < output_2d.Rows(); i++ {
			func() {
				row := output_2d.RowRange(i, i+1)
				defer row.Close()
				// values at indexes 4:cols are the per-class confidence scores
				confidence_scores_area := row.ColRange(4, cols)
				defer confidence_scores_area.Close()
				_, confidence, _, class_id := gocv.MinMaxLoc(confidence_scores_area)
				if confidence < p.Confidence {
					return
				}
				if !Selected(p.Classes, class_id.X) {
					return
				}
				// elements 0 and 1 are the box center, 2 and 3 its dimensions
				x, y := int(row.GetFloatAt(0, 0)), int(row.GetFloatAt(0, 1))
				half_w, half_h := int(row.GetFloatAt(0, 2)/2.0), int(row.GetFloatAt(0, 3)/2.0)
				boxes = append(boxes, image.Rect(x-half_w, y-half_h, x+half_w, y+half_h))
				confidences = append(confidences, confidence)
				class_ids = append(class_ids, class_id.X)
			}()
		}
		output_2d.Close()

		if len(boxes) == 0 {
			continue
		}

		indices := gocv.NMSBoxes(boxes, confidences, p.Confidence, p.NMS)
		kept := make([]image.Rectangle, len(indices))
		for i, j := range indices {
			kept[i] = boxes[j]
		}
		if len(kept) > 0 {
			kept = p.Blob.BlobRectsToImageRects(kept, image.Pt(img.Cols(), img.Rows()))
		}
		for i, j := range indices {
			result = append(result, Box{
				Rect:       kept[i],
				ClassID:    class_ids[j],
				Confidence: confidences[j],
			})
		}
	}

	return result, nil
}
