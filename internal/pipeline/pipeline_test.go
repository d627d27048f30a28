package pipeline

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/plastivision/datakit/internal/config"
	"github.com/plastivision/datakit/internal/detect"
	"github.com/plastivision/datakit/internal/layout"
	"github.com/plastivision/datakit/internal/split"
	"github.com/plastivision/datakit/internal/taxonomy"
)

func writeRawCorpus(t *testing.T, rawDir string, perClass map[string]int) {
	t.Helper()
	for class, n := range perClass {
		dir := filepath.Join(rawDir, class)
		require.NoError(t, os.MkdirAll(dir, 0o755))
		for i := 0; i < n; i++ {
			img := image.NewNRGBA(image.Rect(0, 0, 80, 80))
			for y := 0; y < 80; y++ {
				for x := 0; x < 80; x++ {
					img.SetNRGBA(x, y, color.NRGBA{R: uint8(i), G: uint8(x), B: uint8(y), A: 255})
				}
			}
			f, err := os.Create(filepath.Join(dir, fmt.Sprintf("img_%03d.png", i)))
			require.NoError(t, err)
			require.NoError(t, png.Encode(f, img))
			require.NoError(t, f.Close())
		}
	}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	tmp := t.TempDir()
	cfg := &config.Config{
		Project: config.Project{
			RawDir:       filepath.Join(tmp, "raw"),
			ProcessedDir: filepath.Join(tmp, "processed"),
		},
		Classes: []string{"plastic_bottle", "plastic_bag"},
		Preprocess: config.Preprocess{
			TrainSplit:   0.8,
			ValSplit:     0.1,
			TestSplit:    0.1,
			Seed:         42,
			MinImageSize: 50,
			JPEGQuality:  95,
			Workers:      2,
		},
		AutoLabel: config.AutoLabel{
			ConfidenceThreshold: 0.5,
			IoUThreshold:        0.45,
			TimeoutSeconds:      5,
			Workers:             2,
			Taxonomy:            map[string]string{"bottle": "plastic_bottle"},
		},
	}
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestPreprocess_EndToEnd(t *testing.T) {
	cfg := testConfig(t)
	writeRawCorpus(t, cfg.Project.RawDir, map[string]int{"plastic_bottle": 20, "plastic_bag": 20})

	res, err := Preprocess(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)

	require.Equal(t, 40, res.Valid)
	require.Zero(t, res.SkippedValidation)
	require.Equal(t, 32, res.Counts[split.Train])
	require.Equal(t, 4, res.Counts[split.Val])
	require.Equal(t, 4, res.Counts[split.Test])

	m, err := layout.ReadManifest(res.ManifestPath)
	require.NoError(t, err)
	require.Equal(t, 2, m.NC)
	require.Equal(t, []string{"plastic_bottle", "plastic_bag"}, m.Names)
	require.Equal(t, 32, m.Counts["train"])
}

func TestPreprocess_WithAugmentation(t *testing.T) {
	cfg := testConfig(t)
	cfg.Preprocess.Augmentation = config.Augmentation{
		Enabled: true,
		Factor:  2,
		Transforms: []config.TransformSpec{
			{Name: "horizontal_flip", Probability: 1},
		},
	}
	writeRawCorpus(t, cfg.Project.RawDir, map[string]int{"plastic_bottle": 10, "plastic_bag": 10})

	res, err := Preprocess(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)

	// 16 train originals doubled; val/test untouched by augmentation.
	require.Equal(t, 32, res.Counts[split.Train])
	require.Equal(t, 2, res.Counts[split.Val])
	require.Equal(t, 2, res.Counts[split.Test])
}

func TestPreprocess_UnknownTransformFailsBeforeScan(t *testing.T) {
	cfg := testConfig(t)
	cfg.Preprocess.Augmentation = config.Augmentation{
		Enabled:    true,
		Factor:     2,
		Transforms: []config.TransformSpec{{Name: "mosaic", Probability: 1}},
	}
	// Raw dir deliberately missing: the config error must win.

	_, err := Preprocess(context.Background(), cfg, zap.NewNop())
	require.Error(t, err)
	require.Contains(t, err.Error(), "mosaic")
}

func TestPreprocess_UnknownTransformFailsWhenDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Preprocess.Augmentation = config.Augmentation{
		Enabled:    false,
		Transforms: []config.TransformSpec{{Name: "mosiac", Probability: 1}},
	}
	writeRawCorpus(t, cfg.Project.RawDir, map[string]int{"plastic_bottle": 5, "plastic_bag": 5})

	// A misspelled transform is a configuration error even while the
	// augmentation flag is off; it must not surface later as a silent no-op.
	_, err := Preprocess(context.Background(), cfg, zap.NewNop())
	require.Error(t, err)
	require.Contains(t, err.Error(), "mosiac")
}

func TestPreprocess_EmptyCorpusFatal(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.MkdirAll(cfg.Project.RawDir, 0o755))

	_, err := Preprocess(context.Background(), cfg, zap.NewNop())
	var integrity *split.IntegrityError
	require.ErrorAs(t, err, &integrity)
}

type stubDetector struct{}

func (stubDetector) Detect(_ context.Context, _ []byte) ([]detect.Detection, error) {
	return []detect.Detection{
		{Class: "bottle", Confidence: 0.9, Box: detect.PixelBox{X1: 8, Y1: 8, X2: 72, Y2: 72}},
		{Class: "person", Confidence: 0.95, Box: detect.PixelBox{X1: 0, Y1: 0, X2: 80, Y2: 80}},
	}, nil
}

func TestAutolabel_OverLayout(t *testing.T) {
	cfg := testConfig(t)
	writeRawCorpus(t, cfg.Project.RawDir, map[string]int{"plastic_bottle": 20, "plastic_bag": 20})

	_, err := Preprocess(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)

	summary, err := Autolabel(context.Background(), cfg, stubDetector{}, zap.NewNop())
	require.NoError(t, err)

	require.EqualValues(t, 40, summary.Processed)
	// Every image gets the mapped bottle detection; the person detection is
	// discarded without error.
	require.EqualValues(t, 40, summary.Labeled)
	require.Zero(t, summary.Skipped)

	// Spot-check one label: target id 0, box normalized against 80x80.
	var found bool
	_ = filepath.Walk(filepath.Join(cfg.Project.ProcessedDir, "labels"), func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() || filepath.Ext(path) != ".txt" {
			return err
		}
		data, rerr := os.ReadFile(path)
		require.NoError(t, rerr)
		require.Equal(t, "0 0.500000 0.500000 0.800000 0.800000\n", string(data))
		found = true
		return nil
	})
	require.True(t, found)
}

func TestAutolabel_BadTaxonomyFatal(t *testing.T) {
	cfg := testConfig(t)
	cfg.AutoLabel.Taxonomy = map[string]string{"bottle": "glass_bottle"}

	_, err := Autolabel(context.Background(), cfg, stubDetector{}, zap.NewNop())
	var mapErr *taxonomy.MappingError
	require.ErrorAs(t, err, &mapErr)
}
