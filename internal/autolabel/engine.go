package autolabel

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/plastivision/datakit/internal/detect"
	"github.com/plastivision/datakit/internal/pool"
	"github.com/plastivision/datakit/internal/taxonomy"
)

// Summary accounts for one labeling run. Global counters are updated
// atomically by the workers; the per-class map is mutex-guarded, never a
// freely shared counter.
type Summary struct {
	Processed     int64 // images enumerated
	Labeled       int64 // images with at least one kept detection
	Empty         int64 // images with an empty annotation file
	Skipped       int64 // detector failures treated as zero-detection samples
	WriteFailures int64

	mu       sync.Mutex
	perClass map[string]*ClassCount
}

// ClassCount is the labeled/total tally for one class directory.
type ClassCount struct {
	Total   int
	Labeled int
}

// PerClass returns a snapshot of the per-class labeled/total counts.
func (s *Summary) PerClass() map[string]ClassCount {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]ClassCount, len(s.perClass))
	for class, c := range s.perClass {
		out[class] = *c
	}
	return out
}

func (s *Summary) countClass(class string, labeled bool) {
	if class == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.perClass == nil {
		s.perClass = make(map[string]*ClassCount)
	}
	c := s.perClass[class]
	if c == nil {
		c = &ClassCount{}
		s.perClass[class] = c
	}
	c.Total++
	if labeled {
		c.Labeled++
	}
}

// Options configures an Engine.
type Options struct {
	ConfidenceThreshold float64
	Workers             int
	BatchSize           int // images per adapter call when the detector supports batching
}

// Engine walks a built dataset layout and writes detector-derived
// annotation files next to every image.
type Engine struct {
	detector detect.Detector
	mapper   *taxonomy.Mapper
	opts     Options
	logger   *zap.Logger
}

// New builds an Engine.
func New(detector detect.Detector, mapper *taxonomy.Mapper, opts Options, logger *zap.Logger) (*Engine, error) {
	if detector == nil {
		return nil, fmt.Errorf("detector is required")
	}
	if mapper == nil {
		return nil, fmt.Errorf("taxonomy mapper is required")
	}
	if opts.ConfidenceThreshold < 0 || opts.ConfidenceThreshold > 1 {
		return nil, fmt.Errorf("confidence threshold %v outside [0,1]", opts.ConfidenceThreshold)
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.BatchSize < 1 {
		opts.BatchSize = 8
	}
	return &Engine{detector: detector, mapper: mapper, opts: opts, logger: logger}, nil
}

// item is one image awaiting labeling. class is the class directory the
// image sits in, empty when the layout has no class level.
type item struct {
	imagePath string
	labelPath string
	class     string
}

// Run labels every image under <root>/images, writing to the matching
// <root>/labels location. The item list is enumerated in sorted order before
// any parallel fan-out; each worker touches only its own output file.
func (e *Engine) Run(ctx context.Context, root string) (*Summary, error) {
	items, err := enumerate(root)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("no images found under %s", filepath.Join(root, "images"))
	}

	summary := &Summary{}
	_, batchable := e.detector.(detect.BatchDetector)
	chunk := 1
	if batchable {
		chunk = e.opts.BatchSize
	}

	p := pool.New(e.opts.Workers)
	var jobs []pool.Job
	for start := 0; start < len(items); start += chunk {
		end := start + chunk
		if end > len(items) {
			end = len(items)
		}
		group := items[start:end]
		jobs = append(jobs, func() error {
			if ctx.Err() != nil {
				return nil
			}
			e.processGroup(ctx, group, summary)
			return nil
		})
	}
	p.Add(jobs)
	if err := p.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return summary, err
	}

	e.logger.Info("auto-labeling complete",
		zap.Int64("processed", summary.Processed),
		zap.Int64("labeled", summary.Labeled),
		zap.Int64("empty", summary.Empty),
		zap.Int64("skipped", summary.Skipped),
		zap.Int64("write_failures", summary.WriteFailures))
	perClass := summary.PerClass()
	classes := make([]string, 0, len(perClass))
	for class := range perClass {
		classes = append(classes, class)
	}
	sort.Strings(classes)
	for _, class := range classes {
		c := perClass[class]
		e.logger.Info("class labeling counts",
			zap.String("class", class),
			zap.Int("labeled", c.Labeled),
			zap.Int("total", c.Total))
	}
	return summary, nil
}

// enumerate lists every layout image with its label-file destination, in a
// stable sorted order.
func enumerate(root string) ([]item, error) {
	imagesRoot := filepath.Join(root, "images")
	var items []item
	err := filepath.Walk(imagesRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".jpg" && ext != ".jpeg" && ext != ".png" {
			return nil
		}
		rel, err := filepath.Rel(imagesRoot, path)
		if err != nil {
			return err
		}
		stem := strings.TrimSuffix(rel, filepath.Ext(rel))
		// rel is <split>/<class>/<file> in the standard layout.
		var class string
		if parts := strings.Split(rel, string(filepath.Separator)); len(parts) >= 3 {
			class = parts[1]
		}
		items = append(items, item{
			imagePath: path,
			labelPath: filepath.Join(root, "labels", stem+".txt"),
			class:     class,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate layout images: %w", err)
	}
	// filepath.Walk is already lexically ordered; the sort contract matters,
	// not the extra work.
	return items, nil
}

// processGroup labels one batch of images. When the detector supports
// batching the whole group goes out in a single adapter call; a batch
// failure degrades to per-image calls so one bad image cannot sink its
// neighbors.
func (e *Engine) processGroup(ctx context.Context, group []item, summary *Summary) {
	payloads := make([][]byte, len(group))
	for i, it := range group {
		data, err := os.ReadFile(it.imagePath)
		if err != nil {
			e.skip(it, summary, fmt.Errorf("failed to read image: %w", err))
			continue
		}
		payloads[i] = data
	}

	// Only readable images go out in the batch; a nil payload from a failed
	// read must not sink its neighbors.
	var batched [][]detect.Detection
	var fromBatch []bool
	if bd, ok := e.detector.(detect.BatchDetector); ok && len(group) > 1 {
		idx := make([]int, 0, len(group))
		valid := make([][]byte, 0, len(group))
		for i, p := range payloads {
			if p != nil {
				idx = append(idx, i)
				valid = append(valid, p)
			}
		}
		if len(valid) > 1 {
			results, err := bd.DetectBatch(ctx, valid)
			if err != nil || len(results) != len(valid) {
				e.logger.Warn("batch inference failed, falling back to per-image calls", zap.Error(err))
			} else {
				batched = make([][]detect.Detection, len(group))
				fromBatch = make([]bool, len(group))
				for j, i := range idx {
					batched[i] = results[j]
					fromBatch[i] = true
				}
			}
		}
	}

	for i, it := range group {
		if payloads[i] == nil {
			continue // already skipped above
		}
		var detections []detect.Detection
		var err error
		if fromBatch != nil && fromBatch[i] {
			detections = batched[i]
		} else {
			detections, err = e.detector.Detect(ctx, payloads[i])
		}
		if err != nil {
			// Inference failure or timeout: zero-detection sample, no retry.
			e.skip(it, summary, err)
			continue
		}
		e.label(it, payloads[i], detections, summary)
	}
}

// skip records a per-image failure and writes an empty annotation so the
// label tree stays complete.
func (e *Engine) skip(it item, summary *Summary, cause error) {
	atomic.AddInt64(&summary.Processed, 1)
	atomic.AddInt64(&summary.Skipped, 1)
	summary.countClass(it.class, false)
	e.logger.Warn("skipping image, writing empty annotation",
		zap.String("image", it.imagePath),
		zap.Error(cause))
	if err := WriteAnnotations(it.labelPath, nil); err != nil {
		atomic.AddInt64(&summary.WriteFailures, 1)
		e.logger.Warn("failed to write annotation", zap.String("path", it.labelPath), zap.Error(err))
	} else {
		atomic.AddInt64(&summary.Empty, 1)
	}
}

// label filters, normalizes and writes the detections for one image.
func (e *Engine) label(it item, payload []byte, detections []detect.Detection, summary *Summary) {
	atomic.AddInt64(&summary.Processed, 1)

	cfg, _, err := image.DecodeConfig(bytes.NewReader(payload))
	if err != nil {
		atomic.AddInt64(&summary.Skipped, 1)
		summary.countClass(it.class, false)
		e.logger.Warn("cannot determine image dimensions", zap.String("image", it.imagePath), zap.Error(err))
		if werr := WriteAnnotations(it.labelPath, nil); werr != nil {
			atomic.AddInt64(&summary.WriteFailures, 1)
		} else {
			atomic.AddInt64(&summary.Empty, 1)
		}
		return
	}

	var boxes []BoundingBox
	for _, d := range detections {
		if d.Confidence < e.opts.ConfidenceThreshold {
			continue
		}
		classID, ok := e.mapper.Resolve(d.Class)
		if !ok {
			// Outside the project's taxonomy; discard silently.
			continue
		}
		box := Normalize(d.Box, cfg.Width, cfg.Height)
		box.ClassID = classID
		boxes = append(boxes, box)
	}

	if err := WriteAnnotations(it.labelPath, boxes); err != nil {
		atomic.AddInt64(&summary.WriteFailures, 1)
		summary.countClass(it.class, false)
		e.logger.Warn("failed to write annotation", zap.String("path", it.labelPath), zap.Error(err))
		return
	}
	summary.countClass(it.class, len(boxes) > 0)
	if len(boxes) > 0 {
		atomic.AddInt64(&summary.Labeled, 1)
	} else {
		atomic.AddInt64(&summary.Empty, 1)
	}
}
