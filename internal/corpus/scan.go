package corpus

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// ValidationError reports a corpus file that failed validation. It is
// recoverable: the file is excluded from the corpus and counted, never
// aborting a run.
type ValidationError struct {
	Path   string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid image %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid image %s: %s", e.Path, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// ImageRecord describes one validated corpus image. Records are created by
// scanning and are read-only afterwards.
type ImageRecord struct {
	Path   string // absolute or raw-dir-relative source path
	Class  string // class hint from the raw directory name
	Width  int
	Height int
}

// Stem returns the record's filename without directory or extension. Label
// files and layout copies share this stem.
func (r ImageRecord) Stem() string {
	base := filepath.Base(r.Path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Corpus is the validated image set grouped by class hint.
type Corpus struct {
	ByClass map[string][]ImageRecord
	Total   int
	Skipped int // files dropped by validation
}

// imageExts are the admissible raw-file extensions, matching the upstream
// collector's output.
var imageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

// Scan walks <rawDir>/<class>/ for every declared class and validates each
// candidate file by decoding it. Files that cannot be decoded or whose
// shorter side is below minDim are logged, counted and excluded. A missing
// class directory is a warning, not an error.
func Scan(cache *Cache, rawDir string, classes []string, minDim int, logger *zap.Logger) (*Corpus, error) {
	if _, err := os.Stat(rawDir); err != nil {
		return nil, fmt.Errorf("raw corpus directory: %w", err)
	}

	c := &Corpus{ByClass: make(map[string][]ImageRecord, len(classes))}
	for _, class := range classes {
		classDir := filepath.Join(rawDir, class)
		entries, err := os.ReadDir(classDir)
		if err != nil {
			if os.IsNotExist(err) {
				logger.Warn("class directory not found", zap.String("class", class), zap.String("dir", classDir))
				continue
			}
			return nil, fmt.Errorf("failed to read class directory %s: %w", classDir, err)
		}

		for _, entry := range entries {
			if entry.IsDir() || !imageExts[strings.ToLower(filepath.Ext(entry.Name()))] {
				continue
			}
			path := filepath.Join(classDir, entry.Name())

			rec, verr := validate(cache, path, class, minDim)
			if verr != nil {
				c.Skipped++
				logger.Warn("skipping invalid image",
					zap.String("path", verr.Path),
					zap.String("reason", verr.Reason),
					zap.Error(verr.Err))
				continue
			}
			c.ByClass[class] = append(c.ByClass[class], rec)
			c.Total++
		}
	}

	logger.Info("scanned raw corpus",
		zap.Int("valid", c.Total),
		zap.Int("skipped", c.Skipped),
		zap.Int("classes", len(classes)))
	return c, nil
}

// validate decodes the file to prove readability and checks the minimum
// dimension gate.
func validate(cache *Cache, path, class string, minDim int) (ImageRecord, *ValidationError) {
	img, err := cache.Load(path)
	if err != nil {
		return ImageRecord{}, &ValidationError{Path: path, Reason: "unreadable", Err: err}
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w < minDim || h < minDim {
		cache.Evict(path)
		return ImageRecord{}, &ValidationError{
			Path:   path,
			Reason: fmt.Sprintf("dimensions %dx%d below minimum %d", w, h, minDim),
		}
	}

	return ImageRecord{Path: path, Class: class, Width: w, Height: h}, nil
}
