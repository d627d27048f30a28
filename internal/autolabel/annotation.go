package autolabel

import (
	"fmt"
	"os"
	"strings"

	"github.com/plastivision/datakit/internal/detect"
)

// BoundingBox is one annotation record: a target class id and a box in
// center/size form, all coordinates normalized to [0,1] relative to the
// image dimensions.
type BoundingBox struct {
	ClassID int
	XCenter float64
	YCenter float64
	Width   float64
	Height  float64
}

// Normalize converts a corner-based pixel box to normalized center/size
// form. Values are clamped to [0,1]; adapters occasionally report
// coordinates a fraction outside the image after rounding at the edges.
func Normalize(box detect.PixelBox, imgW, imgH int) BoundingBox {
	w := float64(imgW)
	h := float64(imgH)
	return BoundingBox{
		XCenter: clamp01((box.X1 + box.X2) / (2 * w)),
		YCenter: clamp01((box.Y1 + box.Y2) / (2 * h)),
		Width:   clamp01((box.X2 - box.X1) / w),
		Height:  clamp01((box.Y2 - box.Y1) / h),
	}
}

// Denormalize converts a normalized box back to pixel corners. It inverts
// Normalize to within one pixel of rounding error.
func Denormalize(b BoundingBox, imgW, imgH int) detect.PixelBox {
	w := float64(imgW)
	h := float64(imgH)
	return detect.PixelBox{
		X1: (b.XCenter - b.Width/2) * w,
		Y1: (b.YCenter - b.Height/2) * h,
		X2: (b.XCenter + b.Width/2) * w,
		Y2: (b.YCenter + b.Height/2) * h,
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// FormatLine renders one annotation record in the label-file format:
// class id followed by the four normalized coordinates.
func FormatLine(b BoundingBox) string {
	return fmt.Sprintf("%d %.6f %.6f %.6f %.6f", b.ClassID, b.XCenter, b.YCenter, b.Width, b.Height)
}

// WriteAnnotations writes the label file for one image, one line per box.
// An empty box list writes an empty file rather than no file. The previous
// content (a placeholder from the layout build, or an earlier labeling run)
// is replaced.
func WriteAnnotations(path string, boxes []BoundingBox) error {
	var sb strings.Builder
	for _, b := range boxes {
		sb.WriteString(FormatLine(b))
		sb.WriteByte('\n')
	}
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		return fmt.Errorf("failed to write annotations: %w", err)
	}
	return nil
}
