package augment

import (
	"fmt"
	"image"
	"math/rand"

	"github.com/plastivision/datakit/internal/config"
)

// Pipeline is an ordered chain of probabilistic transforms.
type Pipeline struct {
	steps  []step
	factor int
}

type step struct {
	transform   Transform
	probability float64
}

// NewPipeline builds the transform chain from configuration. It returns an
// error for unknown transform names or invalid parameters; a bad pipeline
// must fail before any image is touched.
func NewPipeline(specs []config.TransformSpec, factor int) (*Pipeline, error) {
	if factor < 1 {
		return nil, fmt.Errorf("augmentation factor %d must be >= 1", factor)
	}
	p := &Pipeline{factor: factor}
	for _, spec := range specs {
		t, err := newTransform(spec.Name, spec.Params)
		if err != nil {
			return nil, err
		}
		p.steps = append(p.steps, step{transform: t, probability: spec.Probability})
	}
	return p, nil
}

// Factor returns the configured augmentation factor: the total number of
// samples (original plus variants) each training image should yield.
func (p *Pipeline) Factor() int { return p.factor }

// Steps returns the names of the configured transforms in order.
func (p *Pipeline) Steps() []string {
	names := make([]string, len(p.steps))
	for i, s := range p.steps {
		names[i] = s.transform.Name()
	}
	return names
}

// Derive produces one variant of img. Each transform in the chain fires
// independently with its configured probability, drawing the trigger and
// its parameters from rng.
func (p *Pipeline) Derive(img image.Image, rng *rand.Rand) image.Image {
	out := img
	for _, s := range p.steps {
		if rng.Float64() < s.probability {
			out = s.transform.Apply(out, rng)
		}
	}
	return out
}
