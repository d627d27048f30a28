// Package pipeline wires the corpus scanner, splitter, augmentation,
// layout builder and auto-labeling engine into the two top-level runs the
// CLI exposes.
//
// Both runs are linear, stateless-per-item passes: all durable state lives
// in the filesystem artifacts, which are fully regenerated on every
// invocation. Cancelling a run stops issuing new work; whatever partial
// output exists is safe to overwrite by the next full run.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/plastivision/datakit/internal/augment"
	"github.com/plastivision/datakit/internal/autolabel"
	"github.com/plastivision/datakit/internal/config"
	"github.com/plastivision/datakit/internal/corpus"
	"github.com/plastivision/datakit/internal/detect"
	"github.com/plastivision/datakit/internal/layout"
	"github.com/plastivision/datakit/internal/split"
	"github.com/plastivision/datakit/internal/taxonomy"
)

// ManifestName is the manifest filename inside the processed root.
const ManifestName = "dataset.yaml"

// PreprocessResult summarizes one preprocess run.
type PreprocessResult struct {
	Valid             int // corpus images admitted by validation
	SkippedValidation int // corpus files dropped by validation
	Counts            map[split.Name]int
	WriteFailures     int
	ManifestPath      string
}

// Preprocess runs scan -> split -> layout/augment -> manifest.
//
// The augmentation pipeline and all other configuration-derived components
// are constructed before the corpus is touched, so configuration mistakes
// fail fast.
func Preprocess(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*PreprocessResult, error) {
	// The transform chain is constructed whether or not augmentation is
	// enabled: a typo'd transform name is a configuration error, not a
	// silent no-op behind a disabled flag.
	aug := cfg.Preprocess.Augmentation
	factor := aug.Factor
	if !aug.Enabled && factor < 1 {
		factor = 1
	}
	built, err := augment.NewPipeline(aug.Transforms, factor)
	if err != nil {
		return nil, fmt.Errorf("augmentation configuration: %w", err)
	}
	var pipeline *augment.Pipeline
	if aug.Enabled {
		pipeline = built
	}

	cache := corpus.NewCache(corpus.DefaultCacheSize)
	builder, err := layout.NewBuilder(layout.Options{
		Root:        cfg.Project.ProcessedDir,
		Classes:     cfg.Classes,
		JPEGQuality: cfg.Preprocess.JPEGQuality,
		Seed:        cfg.Preprocess.Seed,
		Workers:     cfg.Preprocess.Workers,
		Pipeline:    pipeline,
	}, cache, logger)
	if err != nil {
		return nil, err
	}

	c, err := corpus.Scan(cache, cfg.Project.RawDir, cfg.Classes, cfg.Preprocess.MinImageSize, logger)
	if err != nil {
		return nil, err
	}

	// The split must be fixed from the sorted corpus before any parallel
	// fan-out; the builder only consumes the finished assignment.
	parts, err := split.Partition(c, cfg.Ratios(), cfg.Preprocess.Seed, logger)
	if err != nil {
		return nil, err
	}

	res, err := builder.Build(ctx, parts)
	if err != nil {
		return nil, err
	}

	root, err := filepath.Abs(cfg.Project.ProcessedDir)
	if err != nil {
		root = cfg.Project.ProcessedDir
	}
	manifestPath := filepath.Join(cfg.Project.ProcessedDir, ManifestName)
	if err := layout.NewManifest(root, cfg.Classes, res.Counts).Write(manifestPath); err != nil {
		return nil, err
	}
	logger.Info("wrote dataset manifest", zap.String("path", manifestPath))

	return &PreprocessResult{
		Valid:             c.Total,
		SkippedValidation: c.Skipped,
		Counts:            res.Counts,
		WriteFailures:     res.Failures,
		ManifestPath:      manifestPath,
	}, nil
}

// Autolabel runs the auto-labeling engine over the built layout. When
// detector is nil an HTTP adapter is constructed from the configuration;
// tests inject fakes.
func Autolabel(ctx context.Context, cfg *config.Config, detector detect.Detector, logger *zap.Logger) (*autolabel.Summary, error) {
	// Taxonomy validation is a load-time concern: a table entry referencing
	// an undeclared target class must fail here, before any inference runs.
	mapper, err := taxonomy.New(cfg.Classes, cfg.AutoLabel.Taxonomy)
	if err != nil {
		return nil, err
	}

	if detector == nil {
		detector, err = detect.NewHTTPAdapter(detect.HTTPOptions{
			Endpoint:            cfg.AutoLabel.Endpoint,
			Timeout:             time.Duration(cfg.AutoLabel.TimeoutSeconds) * time.Second,
			ConfidenceThreshold: cfg.AutoLabel.ConfidenceThreshold,
			IoUThreshold:        cfg.AutoLabel.IoUThreshold,
		})
		if err != nil {
			return nil, err
		}
	}

	engine, err := autolabel.New(detector, mapper, autolabel.Options{
		ConfidenceThreshold: cfg.AutoLabel.ConfidenceThreshold,
		Workers:             cfg.AutoLabel.Workers,
	}, logger)
	if err != nil {
		return nil, err
	}
	return engine.Run(ctx, cfg.Project.ProcessedDir)
}
