package autolabel

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/plastivision/datakit/internal/detect"
)

func TestNormalize(t *testing.T) {
	// 100x200 image, box covering the left-top quarter.
	b := Normalize(detect.PixelBox{X1: 0, Y1: 0, X2: 50, Y2: 100}, 100, 200)

	if b.XCenter != 0.25 || b.YCenter != 0.25 {
		t.Errorf("center: got (%v,%v), want (0.25,0.25)", b.XCenter, b.YCenter)
	}
	if b.Width != 0.5 || b.Height != 0.5 {
		t.Errorf("size: got (%v,%v), want (0.5,0.5)", b.Width, b.Height)
	}
}

func TestNormalize_ClampsEdgeOverflow(t *testing.T) {
	// Adapter rounding can push corners slightly outside the image.
	tests := []struct {
		name string
		box  detect.PixelBox
	}{
		{"negative corner", detect.PixelBox{X1: -3, Y1: -2, X2: 50, Y2: 50}},
		{"overflow corner", detect.PixelBox{X1: 50, Y1: 50, X2: 104, Y2: 101}},
		{"full overflow", detect.PixelBox{X1: -10, Y1: -10, X2: 110, Y2: 110}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := Normalize(tt.box, 100, 100)
			for _, v := range []float64{b.XCenter, b.YCenter, b.Width, b.Height} {
				if v < 0 || v > 1 {
					t.Errorf("coordinate %v outside [0,1] for box %+v", v, tt.box)
				}
			}
		})
	}
}

func TestNormalize_RoundTrip(t *testing.T) {
	boxes := []detect.PixelBox{
		{X1: 10, Y1: 20, X2: 110, Y2: 220},
		{X1: 0, Y1: 0, X2: 640, Y2: 480},
		{X1: 333, Y1: 127, X2: 334, Y2: 129},
	}
	for _, px := range boxes {
		b := Normalize(px, 640, 480)
		back := Denormalize(b, 640, 480)
		for _, pair := range [][2]float64{
			{px.X1, back.X1}, {px.Y1, back.Y1}, {px.X2, back.X2}, {px.Y2, back.Y2},
		} {
			if math.Abs(pair[0]-pair[1]) > 1.0 {
				t.Errorf("round trip of %+v drifted: got %+v", px, back)
			}
		}
	}
}

func TestFormatLine(t *testing.T) {
	b := BoundingBox{ClassID: 2, XCenter: 0.5, YCenter: 0.25, Width: 1, Height: 0.333333}
	got := FormatLine(b)
	want := "2 0.500000 0.250000 1.000000 0.333333"
	if got != want {
		t.Errorf("FormatLine: got %q, want %q", got, want)
	}
}

func TestWriteAnnotations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "img.txt")
	boxes := []BoundingBox{
		{ClassID: 0, XCenter: 0.5, YCenter: 0.5, Width: 0.2, Height: 0.4},
		{ClassID: 1, XCenter: 0.1, YCenter: 0.9, Width: 0.05, Height: 0.1},
	}
	if err := WriteAnnotations(path, boxes); err != nil {
		t.Fatalf("WriteAnnotations failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := "0 0.500000 0.500000 0.200000 0.400000\n1 0.100000 0.900000 0.050000 0.100000\n"
	if string(data) != want {
		t.Errorf("content: got %q, want %q", data, want)
	}
}

func TestWriteAnnotations_EmptyFileForZeroDetections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "img.txt")
	if err := WriteAnnotations(path, nil); err != nil {
		t.Fatalf("WriteAnnotations failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("empty annotation file must still exist: %v", err)
	}
	if info.Size() != 0 {
		t.Errorf("size: got %d, want 0", info.Size())
	}
}

func TestWriteAnnotations_ReplacesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "img.txt")
	if err := os.WriteFile(path, []byte("1 0.500000 0.500000 1.000000 1.000000\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := WriteAnnotations(path, []BoundingBox{{ClassID: 2, XCenter: 0.5, YCenter: 0.5, Width: 0.1, Height: 0.1}}); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "2 0.500000 0.500000 0.100000 0.100000\n" {
		t.Errorf("placeholder not replaced: %q", data)
	}
}
