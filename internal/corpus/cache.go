package corpus

import (
	"fmt"
	"image"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"os"

	lru "github.com/hashicorp/golang-lru"
)

// DefaultCacheSize bounds the number of decoded images held in memory.
const DefaultCacheSize = 256

// Cache provides thread-safe, LRU-bounded caching of decoded images to
// avoid redundant disk reads across the validation, augmentation and layout
// stages.
//
// Images are keyed by the exact path string used to load them. Least
// recently used entries are evicted once the capacity is reached, so memory
// stays bounded no matter how large the corpus is.
type Cache struct {
	images *lru.Cache
}

// NewCache creates a cache holding at most capacity decoded images.
// Capacities below one fall back to DefaultCacheSize.
func NewCache(capacity int) *Cache {
	if capacity < 1 {
		capacity = DefaultCacheSize
	}
	c, err := lru.New(capacity)
	if err != nil {
		// lru.New only fails for non-positive sizes, which are handled above.
		panic(err)
	}
	return &Cache{images: c}
}

// Load retrieves an image from the cache or decodes it from disk if not
// cached. Supported formats are PNG, JPEG, and GIF.
func (c *Cache) Load(path string) (image.Image, error) {
	if img, ok := c.images.Get(path); ok {
		return img.(image.Image), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	c.images.Add(path, img)
	return img, nil
}

// Evict removes a specific image from the cache by its path.
func (c *Cache) Evict(path string) {
	c.images.Remove(path)
}

// Clear removes all images from the cache, freeing the associated memory.
func (c *Cache) Clear() {
	c.images.Purge()
}
