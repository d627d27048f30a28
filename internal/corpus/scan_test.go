package corpus

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
)

// writeTestPNG writes a solid-color PNG of the given size and returns its path.
func writeTestPNG(t *testing.T, dir, name string, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 100, B: 50, A: 255})
		}
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create %s: %v", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode %s: %v", path, err)
	}
	return path
}

func mkClassDir(t *testing.T, root, class string) string {
	t.Helper()
	dir := filepath.Join(root, class)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("failed to create class dir: %v", err)
	}
	return dir
}

func TestScan(t *testing.T) {
	root := t.TempDir()
	bottles := mkClassDir(t, root, "plastic_bottle")
	bags := mkClassDir(t, root, "plastic_bag")

	writeTestPNG(t, bottles, "b1.png", 100, 80)
	writeTestPNG(t, bottles, "b2.png", 120, 90)
	writeTestPNG(t, bags, "g1.png", 100, 100)

	// Non-image files are ignored, not validation errors.
	if err := os.WriteFile(filepath.Join(bottles, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := Scan(NewCache(16), root, []string{"plastic_bottle", "plastic_bag"}, 50, zap.NewNop())
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	if c.Total != 3 {
		t.Errorf("Total: got %d, want 3", c.Total)
	}
	if c.Skipped != 0 {
		t.Errorf("Skipped: got %d, want 0", c.Skipped)
	}
	if got := len(c.ByClass["plastic_bottle"]); got != 2 {
		t.Errorf("plastic_bottle records: got %d, want 2", got)
	}

	rec := c.ByClass["plastic_bottle"][0]
	if rec.Width != 100 || rec.Height != 80 {
		t.Errorf("dimensions: got %dx%d, want 100x80", rec.Width, rec.Height)
	}
	if rec.Class != "plastic_bottle" {
		t.Errorf("class hint: got %q", rec.Class)
	}
}

func TestScan_CorruptImageSkipped(t *testing.T) {
	root := t.TempDir()
	dir := mkClassDir(t, root, "plastic_bag")
	writeTestPNG(t, dir, "ok.png", 100, 100)

	// Truncated garbage with an image extension.
	if err := os.WriteFile(filepath.Join(dir, "corrupt.jpg"), []byte("not an image"), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := Scan(NewCache(16), root, []string{"plastic_bag"}, 50, zap.NewNop())
	if err != nil {
		t.Fatalf("Scan should not fail on a corrupt file: %v", err)
	}
	if c.Total != 1 {
		t.Errorf("Total: got %d, want 1", c.Total)
	}
	if c.Skipped != 1 {
		t.Errorf("Skipped: got %d, want 1", c.Skipped)
	}
}

func TestScan_TooSmallImageSkipped(t *testing.T) {
	root := t.TempDir()
	dir := mkClassDir(t, root, "plastic_bottle")
	writeTestPNG(t, dir, "tiny.png", 10, 10)

	c, err := Scan(NewCache(16), root, []string{"plastic_bottle"}, 50, zap.NewNop())
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if c.Total != 0 || c.Skipped != 1 {
		t.Errorf("got total=%d skipped=%d, want 0/1", c.Total, c.Skipped)
	}
}

func TestScan_MissingClassDirWarnsOnly(t *testing.T) {
	root := t.TempDir()
	mkClassDir(t, root, "plastic_bottle")

	c, err := Scan(NewCache(16), root, []string{"plastic_bottle", "plastic_wrapper"}, 50, zap.NewNop())
	if err != nil {
		t.Fatalf("missing class dir should not fail the scan: %v", err)
	}
	if _, ok := c.ByClass["plastic_wrapper"]; ok {
		t.Error("missing class should have no records")
	}
}

func TestScan_MissingRawDir(t *testing.T) {
	_, err := Scan(NewCache(16), filepath.Join(t.TempDir(), "nope"), []string{"a"}, 50, zap.NewNop())
	if err == nil {
		t.Error("Scan should fail when the raw directory does not exist")
	}
}

func TestCache_LoadAndEvict(t *testing.T) {
	dir := t.TempDir()
	path := writeTestPNG(t, dir, "img.png", 40, 30)

	cache := NewCache(2)
	img, err := cache.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if img.Bounds().Dx() != 40 || img.Bounds().Dy() != 30 {
		t.Errorf("bounds: got %v", img.Bounds())
	}

	// Cached load survives file deletion; eviction forces a re-read that fails.
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	if _, err := cache.Load(path); err != nil {
		t.Errorf("cached load failed: %v", err)
	}
	cache.Evict(path)
	if _, err := cache.Load(path); err == nil {
		t.Error("Load should fail after eviction of a deleted file")
	}
}

func TestImageRecord_Stem(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/data/raw/plastic_bag/img_001.jpg", "img_001"},
		{"img.PNG", "img"},
		{"archive.tar.png", "archive.tar"},
	}
	for _, tt := range tests {
		rec := ImageRecord{Path: tt.path}
		if got := rec.Stem(); got != tt.want {
			t.Errorf("Stem(%q): got %q, want %q", tt.path, got, tt.want)
		}
	}
}
