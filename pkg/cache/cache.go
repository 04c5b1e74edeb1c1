// Package cache stores rendered images keyed by their input and options.
//
// Rendering is deterministic: the same SVG bytes with the same options always
// produce the same image, so the encoded output can be reused. Backends
// range from a no-op [NullCache] through an in-process [MemoryCache] and a
// per-user [FileCache] to shared [RedisCache] and [MongoCache] for the HTTP
// service.
//
// Cache failures never fail a render: callers treat errors from Get as a
// miss and ignore errors from Set.
package cache

import (
	"context"
	"time"
)

// TTLs for cached entries.
const (
	// TTLArtifact is how long an encoded image is kept.
	TTLArtifact = 7 * 24 * time.Hour
)

// Cache is a byte-oriented key/value store with expiry.
type Cache interface {
	// Get returns the value for key. A missing or expired key is a miss
	// (hit == false, err == nil).
	Get(ctx context.Context, key string) (data []byte, hit bool, err error)

	// Set stores data under key. A ttl of zero means no expiry.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases connections and background resources.
	Close() error
}

// Keyer builds cache keys.
type Keyer interface {
	// ArtifactKey returns the key for an image rendered from the SVG with
	// content hash svgHash.
	ArtifactKey(svgHash string, opts ArtifactKeyOpts) string
}

// ArtifactKeyOpts holds every option that changes the rendered bytes.
type ArtifactKeyOpts struct {
	Format        string `json:"format"`
	CanvasWidth   int    `json:"canvas_width"`
	CanvasHeight  int    `json:"canvas_height"`
	TargetWidth   int    `json:"target_width"`
	TargetHeight  int    `json:"target_height"`
	SuperSampling int    `json:"super_sampling"`
	Filter        string `json:"filter"`
	Background    string `json:"background,omitempty"`
	JPEGQuality   int    `json:"jpeg_quality,omitempty"`
	Strict        bool   `json:"strict,omitempty"`
}

// DefaultKeyer produces "artifact:<sha256>" keys.
type DefaultKeyer struct{}

// NewDefaultKeyer returns the default key scheme.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// ArtifactKey hashes the SVG hash together with the options.
func (DefaultKeyer) ArtifactKey(svgHash string, opts ArtifactKeyOpts) string {
	return hashKey("artifact", svgHash, opts)
}
