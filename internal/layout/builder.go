package layout

import (
	"context"
	"fmt"
	"image"
	"math/rand"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"

	"github.com/plastivision/datakit/internal/augment"
	"github.com/plastivision/datakit/internal/corpus"
	"github.com/plastivision/datakit/internal/pool"
	"github.com/plastivision/datakit/internal/split"
)

// Options configures a Builder.
type Options struct {
	Root        string   // processed dataset root
	Classes     []string // ordered target-class list; index = class id
	JPEGQuality int
	Seed        int64
	Workers     int
	Pipeline    *augment.Pipeline // nil disables augmentation
}

// Result accounts for one Build run.
type Result struct {
	Counts   map[split.Name]int // images written per split, variants included
	Failures int                // per-file read/write failures, skipped not fatal
}

// Builder writes the dataset tree for a computed split assignment.
type Builder struct {
	opts    Options
	classID map[string]int
	cache   *corpus.Cache
	logger  *zap.Logger
}

// NewBuilder validates options and returns a Builder.
func NewBuilder(opts Options, cache *corpus.Cache, logger *zap.Logger) (*Builder, error) {
	if opts.Root == "" {
		return nil, fmt.Errorf("layout root is required")
	}
	if len(opts.Classes) == 0 {
		return nil, fmt.Errorf("target class list is empty")
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.JPEGQuality < 1 || opts.JPEGQuality > 100 {
		return nil, fmt.Errorf("jpeg quality %d outside [1,100]", opts.JPEGQuality)
	}
	ids := make(map[string]int, len(opts.Classes))
	for i, name := range opts.Classes {
		ids[name] = i
	}
	return &Builder{opts: opts, classID: ids, cache: cache, logger: logger}, nil
}

// ImageDir returns the image directory for a split and class.
func (b *Builder) ImageDir(name split.Name, class string) string {
	return filepath.Join(b.opts.Root, "images", string(name), class)
}

// LabelDir returns the label directory for a split and class.
func (b *Builder) LabelDir(name split.Name, class string) string {
	return filepath.Join(b.opts.Root, "labels", string(name), class)
}

// Build creates the directory tree and writes every record of every
// partition. The split assignment is already fixed, so records fan out over
// a bounded worker pool; each job touches only its own output files.
func (b *Builder) Build(ctx context.Context, parts *split.Partitions) (*Result, error) {
	for _, name := range split.Names {
		for _, class := range b.opts.Classes {
			for _, dir := range []string{b.ImageDir(name, class), b.LabelDir(name, class)} {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return nil, fmt.Errorf("failed to create %s: %w", dir, err)
				}
			}
		}
	}
	b.logger.Info("created dataset directory structure", zap.String("root", b.opts.Root))

	var written [3]int64
	var failures int64

	p := pool.New(b.opts.Workers)
	for i, name := range split.Names {
		i, name := i, name
		records := parts.ForSplit(name)
		jobs := make([]pool.Job, 0, len(records))
		for idx, rec := range records {
			idx, rec := idx, rec
			jobs = append(jobs, func() error {
				if ctx.Err() != nil {
					return nil
				}
				n, err := b.writeRecord(name, rec, idx)
				atomic.AddInt64(&written[i], int64(n))
				if err != nil {
					atomic.AddInt64(&failures, 1)
					b.logger.Warn("failed to write record",
						zap.String("split", string(name)),
						zap.String("path", rec.Path),
						zap.Error(err))
				}
				return nil
			})
		}
		p.Add(jobs)
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := &Result{Counts: make(map[split.Name]int, 3), Failures: int(failures)}
	for i, name := range split.Names {
		res.Counts[name] = int(written[i])
		if len(parts.ForSplit(name)) > 0 && written[i] == 0 {
			return nil, &split.IntegrityError{
				Detail: fmt.Sprintf("no images written for split %q", name),
			}
		}
	}
	b.logger.Info("built dataset layout",
		zap.Int("train", res.Counts[split.Train]),
		zap.Int("val", res.Counts[split.Val]),
		zap.Int("test", res.Counts[split.Test]),
		zap.Int("failures", res.Failures))
	return res, nil
}

// writeRecord writes the record's JPEG copy, its placeholder label, and for
// the train split the configured number of augmented variants. It returns
// the number of images written; a failure on the original aborts the record,
// a failure on a variant only stops further variants.
func (b *Builder) writeRecord(name split.Name, rec corpus.ImageRecord, idx int) (int, error) {
	classID, ok := b.classID[rec.Class]
	if !ok {
		return 0, fmt.Errorf("record class %q not in target list", rec.Class)
	}

	img, err := b.cache.Load(rec.Path)
	if err != nil {
		return 0, err
	}

	stem := rec.Stem()
	if err := b.writePair(name, rec.Class, stem, img, classID); err != nil {
		return 0, err
	}
	count := 1

	if name == split.Train && b.opts.Pipeline != nil && b.opts.Pipeline.Factor() > 1 {
		// Seeded per record so the variants do not depend on worker
		// scheduling.
		rng := rand.New(rand.NewSource(b.opts.Seed + int64(idx)*7919))
		for i := 0; i < b.opts.Pipeline.Factor()-1; i++ {
			variant := b.opts.Pipeline.Derive(img, rng)
			augStem := fmt.Sprintf("%s_aug_%d", stem, i)
			if err := b.writePair(name, rec.Class, augStem, variant, classID); err != nil {
				return count, err
			}
			count++
		}
	}
	return count, nil
}

// writePair writes one image and its placeholder label file.
func (b *Builder) writePair(name split.Name, class, stem string, img image.Image, classID int) error {
	imgPath := filepath.Join(b.ImageDir(name, class), stem+".jpg")
	if err := imaging.Save(img, imgPath, imaging.JPEGQuality(b.opts.JPEGQuality)); err != nil {
		return fmt.Errorf("failed to save image: %w", err)
	}

	// Full-image box for the class hint. The auto-labeling pass overwrites
	// this with detector output; writing it now keeps the image and label
	// trees 1:1 from the start.
	line := fmt.Sprintf("%d 0.500000 0.500000 1.000000 1.000000\n", classID)
	labelPath := filepath.Join(b.LabelDir(name, class), stem+".txt")
	if err := os.WriteFile(labelPath, []byte(line), 0o644); err != nil {
		return fmt.Errorf("failed to write label: %w", err)
	}
	return nil
}
