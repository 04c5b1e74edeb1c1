// Package pkg provides the core libraries for svg2img.
//
// # Overview
//
// svg2img converts SVG documents to raster images. A document is parsed,
// rendered at a supersampled resolution, filtered down to the requested size
// and encoded as PNG, JPEG, GIF or WEBP. The pkg directory is organized into
// three areas:
//
//  1. Domain: [scene], [plan], [raster], [pixel], [encode], [sink]
//  2. Orchestration: [pipeline], [server], [config]
//  3. Infrastructure: [cache], [observability], [errors], [buildinfo]
//
// # Architecture
//
// The data flow of a single conversion:
//
//	SVG bytes
//	    ↓ scene.Parse
//	Scene (intrinsic size, drawable)
//	    ↓ plan.New (Sizer, supersampling factor)
//	Plan (canvas size, target size, transform)
//	    ↓ raster.Rasterize (panics become errors)
//	premultiplied RGBA canvas
//	    ↓ pixel.FromCanvas, pixel.Downsample (Lanczos)
//	straight-alpha NRGBA at target size
//	    ↓ encode.Encode
//	PNG / JPEG / GIF / WEBP bytes
//	    ↓ sink.Destination
//	file, temp file or memory
//
// [pipeline.Runner] ties the stages together and consults the [cache] before
// rendering. The CLI (internal/cli) and the HTTP service ([server]) are thin
// layers over the same Runner.
//
// # Quick Start
//
//	r := pipeline.NewRunner(nil, nil, nil)
//	defer r.Close()
//
//	res, err := r.Execute(ctx, svg, pipeline.Options{
//	    Format: encode.WEBP,
//	    Sizer:  plan.Fit{MaxWidth: 512, MaxHeight: 512},
//	    Output: sink.Memory{},
//	})
//
// # Caching
//
// Rendered images are cached by a hash of the SVG and every option that
// affects the output bytes. Backends:
//
//   - [cache.NullCache]: no caching
//   - [cache.MemoryCache]: in-process, ristretto
//   - [cache.FileCache]: local directory (CLI default)
//   - [cache.RedisCache]: shared across service instances
//   - [cache.MongoCache]: MongoDB collection with a TTL index
package pkg
