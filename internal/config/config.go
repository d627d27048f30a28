// Package config loads and validates the single YAML configuration file that
// drives every pipeline component.
//
// Components receive explicit values from the validated Config struct, never
// the raw file, so malformed or missing options fail at startup instead of
// deep inside a processing run.
package config

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v2"
)

// Default values matching the reference configuration.
const (
	DefaultTrainSplit   = 0.8
	DefaultValSplit     = 0.1
	DefaultTestSplit    = 0.1
	DefaultSeed         = 42
	DefaultMinImageSize = 50
	DefaultJPEGQuality  = 95
	DefaultWorkers      = 4
	DefaultConfidence   = 0.3
	DefaultIoU          = 0.45
	DefaultTimeoutSecs  = 30
)

// Config is the root configuration document.
type Config struct {
	Project    Project    `yaml:"project"`
	Classes    []string   `yaml:"classes"`
	Preprocess Preprocess `yaml:"preprocessing"`
	AutoLabel  AutoLabel  `yaml:"auto_label"`
}

// Project holds the corpus directory locations.
type Project struct {
	RawDir       string `yaml:"raw_dir"`
	ProcessedDir string `yaml:"processed_dir"`
}

// Preprocess configures validation, splitting, augmentation and layout.
type Preprocess struct {
	TrainSplit   float64      `yaml:"train_split"`
	ValSplit     float64      `yaml:"val_split"`
	TestSplit    float64      `yaml:"test_split"`
	Seed         int64        `yaml:"seed"`
	MinImageSize int          `yaml:"min_image_size"`
	JPEGQuality  int          `yaml:"jpeg_quality"`
	Workers      int          `yaml:"workers"`
	Augmentation Augmentation `yaml:"augmentation"`
}

// Augmentation configures the training-split transform pipeline.
type Augmentation struct {
	Enabled    bool            `yaml:"enabled"`
	Factor     int             `yaml:"augmentation_factor"`
	Transforms []TransformSpec `yaml:"transforms"`
}

// TransformSpec names one stochastic transform and its parameters. The set
// of valid names and per-name parameters is owned by the augment package,
// which rejects unknown names when the pipeline is built at startup.
type TransformSpec struct {
	Name        string             `yaml:"name"`
	Probability float64            `yaml:"probability"`
	Params      map[string]float64 `yaml:"params"`
}

// AutoLabel configures the detector adapter and the taxonomy bridge.
type AutoLabel struct {
	Endpoint            string            `yaml:"endpoint"`
	ConfidenceThreshold float64           `yaml:"confidence_threshold"`
	IoUThreshold        float64           `yaml:"iou_threshold"`
	TimeoutSeconds      int               `yaml:"timeout_seconds"`
	Workers             int               `yaml:"workers"`
	Taxonomy            map[string]string `yaml:"taxonomy"`
}

// Load reads, parses and validates the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := defaults()
	if err := yaml.UnmarshalStrict(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Preprocess: Preprocess{
			TrainSplit:   DefaultTrainSplit,
			ValSplit:     DefaultValSplit,
			TestSplit:    DefaultTestSplit,
			Seed:         DefaultSeed,
			MinImageSize: DefaultMinImageSize,
			JPEGQuality:  DefaultJPEGQuality,
			Workers:      DefaultWorkers,
			Augmentation: Augmentation{Factor: 1},
		},
		AutoLabel: AutoLabel{
			ConfidenceThreshold: DefaultConfidence,
			IoUThreshold:        DefaultIoU,
			TimeoutSeconds:      DefaultTimeoutSecs,
			Workers:             DefaultWorkers,
		},
	}
}

// Validate checks structural constraints. Transform names and taxonomy
// targets are validated by the packages that own them, before any
// processing starts.
func (c *Config) Validate() error {
	if c.Project.RawDir == "" {
		return fmt.Errorf("project.raw_dir is required")
	}
	if c.Project.ProcessedDir == "" {
		return fmt.Errorf("project.processed_dir is required")
	}
	if len(c.Classes) == 0 {
		return fmt.Errorf("classes list is empty")
	}
	seen := make(map[string]bool, len(c.Classes))
	for _, name := range c.Classes {
		if name == "" {
			return fmt.Errorf("classes contains an empty name")
		}
		if seen[name] {
			return fmt.Errorf("duplicate class %q", name)
		}
		seen[name] = true
	}

	p := c.Preprocess
	for _, r := range []struct {
		name  string
		value float64
	}{
		{"train_split", p.TrainSplit},
		{"val_split", p.ValSplit},
		{"test_split", p.TestSplit},
	} {
		if r.value < 0 || r.value > 1 {
			return fmt.Errorf("preprocessing.%s %v outside [0,1]", r.name, r.value)
		}
	}
	if sum := p.TrainSplit + p.ValSplit + p.TestSplit; math.Abs(sum-1.0) > 1e-6 {
		return fmt.Errorf("split ratios sum to %v, want 1.0", sum)
	}
	if p.MinImageSize < 0 {
		return fmt.Errorf("preprocessing.min_image_size must be >= 0")
	}
	if p.JPEGQuality < 1 || p.JPEGQuality > 100 {
		return fmt.Errorf("preprocessing.jpeg_quality %d outside [1,100]", p.JPEGQuality)
	}
	if p.Workers < 1 {
		return fmt.Errorf("preprocessing.workers must be >= 1")
	}
	if p.Augmentation.Enabled && p.Augmentation.Factor < 1 {
		return fmt.Errorf("augmentation_factor must be >= 1 when augmentation is enabled")
	}
	for i, spec := range p.Augmentation.Transforms {
		if spec.Name == "" {
			return fmt.Errorf("augmentation.transforms[%d] has no name", i)
		}
		if spec.Probability < 0 || spec.Probability > 1 {
			return fmt.Errorf("transform %q probability %v outside [0,1]", spec.Name, spec.Probability)
		}
	}

	a := c.AutoLabel
	if a.ConfidenceThreshold < 0 || a.ConfidenceThreshold > 1 {
		return fmt.Errorf("auto_label.confidence_threshold %v outside [0,1]", a.ConfidenceThreshold)
	}
	if a.IoUThreshold < 0 || a.IoUThreshold > 1 {
		return fmt.Errorf("auto_label.iou_threshold %v outside [0,1]", a.IoUThreshold)
	}
	if a.TimeoutSeconds < 1 {
		return fmt.Errorf("auto_label.timeout_seconds must be >= 1")
	}
	if a.Workers < 1 {
		return fmt.Errorf("auto_label.workers must be >= 1")
	}
	return nil
}

// Ratios returns the train/val/test split ratios in that order.
func (c *Config) Ratios() [3]float64 {
	return [3]float64{c.Preprocess.TrainSplit, c.Preprocess.ValSplit, c.Preprocess.TestSplit}
}
