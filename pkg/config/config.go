// Package config loads svg2img settings from a TOML file.
//
// The file lives at $XDG_CONFIG_HOME/svg2img/config.toml (falling back to
// ~/.config/svg2img/config.toml). A missing file yields Default(). Command-line
// flags and request parameters override whatever is loaded here.
//
//	[render]
//	format = "png"
//	super_sampling = 2
//	filter = "lanczos"
//
//	[cache]
//	backend = "file"      # none | memory | file | redis | mongo
//	ttl = "168h"
//
//	[server]
//	addr = ":8080"
package config

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/svg2img/pkg/cache"
	"github.com/matzehuels/svg2img/pkg/encode"
	"github.com/matzehuels/svg2img/pkg/errors"
	"github.com/matzehuels/svg2img/pkg/pipeline"
	"github.com/matzehuels/svg2img/pkg/pixel"
)

// AppName names the config and cache directories.
const AppName = "svg2img"

// Cache backends.
const (
	BackendNone   = "none"
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendMongo  = "mongo"
)

// Defaults not owned by other packages.
const (
	DefaultAddr         = ":8080"
	DefaultMaxBodyBytes = 10 << 20
	DefaultMaxPixels    = 1 << 26
	DefaultRedisAddr    = "localhost:6379"
)

// Config is the root of the TOML document.
type Config struct {
	Render RenderConfig `toml:"render"`
	Cache  CacheConfig  `toml:"cache"`
	Server ServerConfig `toml:"server"`
}

// RenderConfig holds default render options.
type RenderConfig struct {
	Format        string `toml:"format"`
	SuperSampling int    `toml:"super_sampling"`
	Filter        string `toml:"filter"`
	Background    string `toml:"background,omitempty"`
	JPEGQuality   int    `toml:"jpeg_quality"`
	Strict        bool   `toml:"strict"`
}

// CacheConfig selects and configures the artifact cache.
type CacheConfig struct {
	Backend         string `toml:"backend"`
	Dir             string `toml:"dir,omitempty"`
	TTL             string `toml:"ttl"`
	MemoryMaxBytes  int64  `toml:"memory_max_bytes"`
	RedisAddr       string `toml:"redis_addr"`
	RedisPassword   string `toml:"redis_password,omitempty"`
	RedisDB         int    `toml:"redis_db"`
	MongoURI        string `toml:"mongo_uri,omitempty"`
	MongoDatabase   string `toml:"mongo_database"`
	MongoCollection string `toml:"mongo_collection"`
}

// ServerConfig configures the HTTP service.
type ServerConfig struct {
	Addr         string `toml:"addr"`
	MaxBodyBytes int64  `toml:"max_body_bytes"`

	// MaxPixels bounds the supersampled canvas of a single request.
	MaxPixels int64 `toml:"max_pixels"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Render: RenderConfig{
			Format:        pipeline.DefaultFormat.String(),
			SuperSampling: pipeline.DefaultSuperSampling,
			Filter:        string(pipeline.DefaultFilter),
			JPEGQuality:   pipeline.DefaultJPEGQuality,
		},
		Cache: CacheConfig{
			Backend:         BackendFile,
			TTL:             cache.TTLArtifact.String(),
			MemoryMaxBytes:  cache.DefaultMemoryMaxBytes,
			RedisAddr:       DefaultRedisAddr,
			MongoDatabase:   cache.DefaultMongoDatabase,
			MongoCollection: cache.DefaultMongoCollection,
		},
		Server: ServerConfig{
			Addr:         DefaultAddr,
			MaxBodyBytes: DefaultMaxBodyBytes,
			MaxPixels:    DefaultMaxPixels,
		},
	}
}

// Path returns the default config file location.
func Path() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, AppName, "config.toml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", AppName, "config.toml"), nil
}

// CacheDir returns the default file cache directory (~/.cache/svg2img/).
func CacheDir() (string, error) {
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return filepath.Join(dir, AppName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", AppName), nil
}

// Load reads the config at path over Default(). An empty path means Path();
// a missing default file is not an error, a missing explicit file is.
func Load(path string) (Config, error) {
	cfg := Default()
	explicit := path != ""
	if !explicit {
		p, err := Path()
		if err != nil {
			return cfg, nil
		}
		path = p
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return cfg, nil
		}
		return Config{}, errors.Wrap(errors.ErrCodeIO, err, "read config %s", path)
	}
	if err := Decode(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Decode parses TOML into cfg and validates the result. Keys not present keep
// their current values; unknown keys are rejected.
func Decode(data []byte, cfg *Config) error {
	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidOption, err, "invalid config")
	}
	if undec := md.Undecoded(); len(undec) > 0 {
		return errors.New(errors.ErrCodeInvalidOption, "unknown config key %q", undec[0].String())
	}
	return cfg.Validate()
}

// Encode renders cfg as TOML.
func (c Config) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "encode config")
	}
	return buf.Bytes(), nil
}

// Validate checks every field.
func (c Config) Validate() error {
	if _, err := c.RenderOptions(); err != nil {
		return err
	}
	if _, err := c.Cache.ttl(); err != nil {
		return err
	}
	switch c.Cache.Backend {
	case BackendNone, BackendMemory, BackendFile, BackendRedis, BackendMongo:
	default:
		return errors.New(errors.ErrCodeInvalidOption, "unknown cache backend %q", c.Cache.Backend)
	}
	if c.Cache.Backend == BackendMongo && c.Cache.MongoURI == "" {
		return errors.New(errors.ErrCodeInvalidOption, "cache backend mongo requires mongo_uri")
	}
	if c.Server.MaxBodyBytes <= 0 {
		return errors.New(errors.ErrCodeInvalidOption, "server.max_body_bytes must be positive")
	}
	if c.Server.MaxPixels <= 0 {
		return errors.New(errors.ErrCodeInvalidOption, "server.max_pixels must be positive")
	}
	return nil
}

// RenderOptions converts the [render] section to pipeline options.
func (c Config) RenderOptions() (pipeline.Options, error) {
	var opts pipeline.Options
	if c.Render.Format != "" {
		f, err := encode.ParseFormat(c.Render.Format)
		if err != nil {
			return opts, err
		}
		opts.Format = f
	}
	if c.Render.SuperSampling != 0 {
		if err := errors.ValidateSuperSampling(c.Render.SuperSampling); err != nil {
			return opts, err
		}
	}
	opts.SuperSampling = c.Render.SuperSampling

	f, err := pixel.ParseFilter(c.Render.Filter)
	if err != nil {
		return opts, err
	}
	opts.Filter = f

	if c.Render.Background != "" {
		if _, err := encode.ParseColor(c.Render.Background); err != nil {
			return opts, err
		}
	}
	opts.Background = c.Render.Background

	if q := c.Render.JPEGQuality; q != 0 && (q < 1 || q > 100) {
		return opts, errors.New(errors.ErrCodeInvalidOption, "render.jpeg_quality must be in [1, 100], got %d", q)
	}
	opts.JPEGQuality = c.Render.JPEGQuality
	opts.Strict = c.Render.Strict
	return opts, nil
}

func (c CacheConfig) ttl() (time.Duration, error) {
	if c.TTL == "" {
		return cache.TTLArtifact, nil
	}
	d, err := time.ParseDuration(c.TTL)
	if err != nil || d <= 0 {
		return 0, errors.New(errors.ErrCodeInvalidOption, "cache.ttl must be a positive duration, got %q", c.TTL)
	}
	return d, nil
}

// OpenCache creates the configured cache backend. The file backend uses
// CacheDir() when Dir is empty.
func (c CacheConfig) OpenCache(ctx context.Context) (cache.Cache, error) {
	var (
		cc  cache.Cache
		err error
	)
	switch c.Backend {
	case BackendNone, "":
		return cache.NewNullCache(), nil
	case BackendMemory:
		cc, err = cache.NewMemoryCache(c.MemoryMaxBytes)
	case BackendFile:
		dir := c.Dir
		if dir == "" {
			if dir, err = CacheDir(); err != nil {
				return cache.NewNullCache(), nil
			}
		}
		cc, err = cache.NewFileCache(dir)
	case BackendRedis:
		cc, err = cache.NewRedisCache(ctx, cache.RedisOptions{
			Addr:     c.RedisAddr,
			Password: c.RedisPassword,
			DB:       c.RedisDB,
		})
	case BackendMongo:
		cc, err = cache.NewMongoCache(ctx, cache.MongoOptions{
			URI:        c.MongoURI,
			Database:   c.MongoDatabase,
			Collection: c.MongoCollection,
		})
	default:
		return nil, errors.New(errors.ErrCodeInvalidOption, "unknown cache backend %q", c.Backend)
	}
	if err != nil {
		return nil, err
	}
	ttl, err := c.ttl()
	if err != nil {
		_ = cc.Close()
		return nil, err
	}
	if ttl != cache.TTLArtifact {
		cc = cache.WithTTL(cc, ttl)
	}
	return cc, nil
}
