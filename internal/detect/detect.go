// Package detect defines the black-box detector contract used for
// auto-labeling, and an HTTP adapter for a YOLO-style inference service.
//
// A detector takes raw image bytes and returns pixel-space detections with
// the detector's native class names and confidences. Nothing beyond that
// contract is assumed; the taxonomy mapper decides which detections mean
// anything to the project.
package detect

import (
	"context"
	"fmt"
)

// PixelBox is a corner-based bounding box in pixel coordinates.
type PixelBox struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// Detection is one object reported by the detector, in its native
// vocabulary.
type Detection struct {
	Class      string
	Confidence float64
	Box        PixelBox
}

// Detector runs inference on a single image.
type Detector interface {
	Detect(ctx context.Context, image []byte) ([]Detection, error)
}

// BatchDetector is implemented by adapters that can score several images in
// one invocation. Callers should prefer it where available; the adapter
// round-trip usually dominates throughput.
type BatchDetector interface {
	DetectBatch(ctx context.Context, images [][]byte) ([][]Detection, error)
}

// Error reports an inference failure on one image. It is recoverable: the
// auto-labeling engine treats the image as a zero-detection sample and
// continues.
type Error struct {
	Op      string
	Timeout bool
	Err     error
}

func (e *Error) Error() string {
	if e.Timeout {
		return fmt.Sprintf("detector %s timed out: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("detector %s failed: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
