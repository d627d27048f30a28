package augment

import (
	"fmt"
	"image"
	"image/color"
	"math/rand"

	"github.com/anthonynsimon/bild/adjust"
	"github.com/anthonynsimon/bild/blur"
	"github.com/disintegration/imaging"
	colorful "github.com/lucasb-eyer/go-colorful"
)

// Transform applies one stochastic image operation. Apply is called only
// when the transform's probability trigger fired; parameters are drawn from
// rng so repeated runs with the same seed produce identical variants.
type Transform interface {
	Name() string
	Apply(img image.Image, rng *rand.Rand) image.Image
}

// param reads a transform parameter with a default.
func param(params map[string]float64, key string, def float64) float64 {
	if v, ok := params[key]; ok {
		return v
	}
	return def
}

type horizontalFlip struct{}

func (horizontalFlip) Name() string { return "horizontal_flip" }
func (horizontalFlip) Apply(img image.Image, _ *rand.Rand) image.Image {
	return imaging.FlipH(img)
}

type verticalFlip struct{}

func (verticalFlip) Name() string { return "vertical_flip" }
func (verticalFlip) Apply(img image.Image, _ *rand.Rand) image.Image {
	return imaging.FlipV(img)
}

type rotation struct {
	maxDegrees float64
}

func (rotation) Name() string { return "rotation" }
func (t rotation) Apply(img image.Image, rng *rand.Rand) image.Image {
	angle := (rng.Float64()*2 - 1) * t.maxDegrees
	return imaging.Rotate(img, angle, color.NRGBA{A: 255})
}

type brightness struct {
	maxDelta float64 // fraction of full scale
}

func (brightness) Name() string { return "brightness" }
func (t brightness) Apply(img image.Image, rng *rand.Rand) image.Image {
	pct := (rng.Float64()*2 - 1) * t.maxDelta * 100
	return imaging.AdjustBrightness(img, pct)
}

type contrast struct {
	maxDelta float64
}

func (contrast) Name() string { return "contrast" }
func (t contrast) Apply(img image.Image, rng *rand.Rand) image.Image {
	pct := (rng.Float64()*2 - 1) * t.maxDelta * 100
	return imaging.AdjustContrast(img, pct)
}

type gaussianBlur struct {
	maxRadius float64
}

func (gaussianBlur) Name() string { return "blur" }
func (t gaussianBlur) Apply(img image.Image, rng *rand.Rand) image.Image {
	radius := 0.5 + rng.Float64()*(t.maxRadius-0.5)
	return blur.Gaussian(img, radius)
}

type gamma struct {
	min, max float64
}

func (gamma) Name() string { return "gamma" }
func (t gamma) Apply(img image.Image, rng *rand.Rand) image.Image {
	g := t.min + rng.Float64()*(t.max-t.min)
	return adjust.Gamma(img, g)
}

type hueShift struct {
	maxDegrees float64
}

func (hueShift) Name() string { return "hue_shift" }
func (t hueShift) Apply(img image.Image, rng *rand.Rand) image.Image {
	shift := (rng.Float64()*2 - 1) * t.maxDegrees
	return mapHSV(img, func(h, s, v float64) (float64, float64, float64) {
		h += shift
		for h < 0 {
			h += 360
		}
		for h >= 360 {
			h -= 360
		}
		return h, s, v
	})
}

type saturation struct {
	maxDelta float64
}

func (saturation) Name() string { return "saturation" }
func (t saturation) Apply(img image.Image, rng *rand.Rand) image.Image {
	scale := 1 + (rng.Float64()*2-1)*t.maxDelta
	return mapHSV(img, func(h, s, v float64) (float64, float64, float64) {
		s *= scale
		if s < 0 {
			s = 0
		} else if s > 1 {
			s = 1
		}
		return h, s, v
	})
}

// mapHSV applies f to every pixel in HSV space. Pixels whose color cannot be
// represented (fully transparent) pass through unchanged.
func mapHSV(img image.Image, f func(h, s, v float64) (float64, float64, float64)) image.Image {
	bounds := img.Bounds()
	out := image.NewNRGBA(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			px := img.At(x, y)
			c, ok := colorful.MakeColor(px)
			if !ok {
				out.Set(x, y, px)
				continue
			}
			h, s, v := c.Hsv()
			h, s, v = f(h, s, v)
			nr, ng, nb := colorful.Hsv(h, s, v).Clamped().RGB255()
			_, _, _, a := px.RGBA()
			out.SetNRGBA(x, y, color.NRGBA{R: nr, G: ng, B: nb, A: uint8(a >> 8)})
		}
	}
	return out
}

// newTransform builds a named transform from its parameter map, validating
// parameter ranges. Unknown names are a configuration error.
func newTransform(name string, params map[string]float64) (Transform, error) {
	switch name {
	case "horizontal_flip":
		return horizontalFlip{}, nil
	case "vertical_flip":
		return verticalFlip{}, nil
	case "rotation":
		deg := param(params, "max_degrees", 15)
		if deg <= 0 || deg > 180 {
			return nil, fmt.Errorf("rotation max_degrees %v outside (0,180]", deg)
		}
		return rotation{maxDegrees: deg}, nil
	case "brightness":
		d := param(params, "max_delta", 0.2)
		if d <= 0 || d > 1 {
			return nil, fmt.Errorf("brightness max_delta %v outside (0,1]", d)
		}
		return brightness{maxDelta: d}, nil
	case "contrast":
		d := param(params, "max_delta", 0.2)
		if d <= 0 || d > 1 {
			return nil, fmt.Errorf("contrast max_delta %v outside (0,1]", d)
		}
		return contrast{maxDelta: d}, nil
	case "blur":
		r := param(params, "max_radius", 3)
		if r < 0.5 {
			return nil, fmt.Errorf("blur max_radius %v below 0.5", r)
		}
		return gaussianBlur{maxRadius: r}, nil
	case "gamma":
		min := param(params, "min", 0.8)
		max := param(params, "max", 1.25)
		if min <= 0 || max < min {
			return nil, fmt.Errorf("gamma range [%v,%v] invalid", min, max)
		}
		return gamma{min: min, max: max}, nil
	case "hue_shift":
		deg := param(params, "max_degrees", 18)
		if deg <= 0 || deg > 180 {
			return nil, fmt.Errorf("hue_shift max_degrees %v outside (0,180]", deg)
		}
		return hueShift{maxDegrees: deg}, nil
	case "saturation":
		d := param(params, "max_delta", 0.3)
		if d <= 0 || d > 1 {
			return nil, fmt.Errorf("saturation max_delta %v outside (0,1]", d)
		}
		return saturation{maxDelta: d}, nil
	}
	return nil, fmt.Errorf("unknown augmentation transform %q", name)
}
