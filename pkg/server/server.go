// Package server exposes the rendering pipeline over HTTP.
//
// # Endpoints
//
//	POST /render     body: SVG markup; query: format, super_sampling, size,
//	                 width, height, max_width, max_height, background,
//	                 jpeg_quality, filter, strict
//	GET  /formats    supported output formats
//	GET  /healthz    liveness check
//	GET  /version    build information
//
// A successful render responds with the encoded image, its MIME type and an
// X-Cache header (hit or miss). Failures respond with a JSON body
// {"code": ..., "message": ...}: 400 for bad input (including sizes whose
// canvas exceeds Config.MaxPixels), 413 for oversized bodies, 422 when the
// render engine gives up, 500 otherwise.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/svg2img/pkg/buildinfo"
	"github.com/matzehuels/svg2img/pkg/encode"
	"github.com/matzehuels/svg2img/pkg/pipeline"
)

// Request limits used when the Config leaves them zero.
const (
	DefaultMaxBodyBytes = 10 << 20

	// DefaultMaxPixels allows a 4096x4096 image at super_sampling 2.
	DefaultMaxPixels = 1 << 26
)

// Response headers set by /render.
const (
	HeaderCache       = "X-Cache"
	HeaderImageWidth  = "X-Image-Width"
	HeaderImageHeight = "X-Image-Height"
)

// Config configures a Server.
type Config struct {
	// Defaults are applied before request parameters.
	Defaults pipeline.Options

	MaxBodyBytes int64

	// MaxPixels bounds the supersampled canvas of a request. It is checked
	// after sizing and before anything is rasterized.
	MaxPixels int64

	Logger *log.Logger
}

// Server serves render requests through a shared pipeline Runner.
type Server struct {
	runner    *pipeline.Runner
	defaults  pipeline.Options
	maxBody   int64
	maxPixels int64
	logger    *log.Logger
	router    chi.Router
}

// New creates a server. The runner is not closed by the server.
func New(runner *pipeline.Runner, cfg Config) *Server {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.MaxPixels <= 0 {
		cfg.MaxPixels = DefaultMaxPixels
	}
	if cfg.Logger == nil {
		cfg.Logger = runner.Logger
	}
	s := &Server{
		runner:    runner,
		defaults:  cfg.Defaults,
		maxBody:   cfg.MaxBodyBytes,
		maxPixels: cfg.MaxPixels,
		logger:    cfg.Logger,
	}
	s.router = s.routes()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/version", s.handleVersion)
	r.Get("/formats", s.handleFormats)
	r.With(middleware.RequestSize(s.maxBody)).Post("/render", s.handleRender)
	return r
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, buildinfo.Get())
}

// FormatInfo describes one output format.
type FormatInfo struct {
	Name      string `json:"name"`
	MIMEType  string `json:"mime_type"`
	Extension string `json:"extension"`
	Alpha     bool   `json:"alpha"`
}

type formatsResponse struct {
	Formats []FormatInfo `json:"formats"`
	Default string       `json:"default"`
}

func (s *Server) handleFormats(w http.ResponseWriter, _ *http.Request) {
	resp := formatsResponse{Default: pipeline.DefaultFormat.String()}
	if s.defaults.Format.Valid() {
		resp.Default = s.defaults.Format.String()
	}
	for _, f := range encode.Formats() {
		resp.Formats = append(resp.Formats, FormatInfo{
			Name:      f.String(),
			MIMEType:  f.MIMEType(),
			Extension: f.Extension(),
			Alpha:     f.SupportsAlpha(),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeImage(w http.ResponseWriter, res *pipeline.Result) {
	h := w.Header()
	h.Set("Content-Type", res.Format.MIMEType())
	h.Set("Content-Length", strconv.Itoa(len(res.Data)))
	h.Set(HeaderImageWidth, strconv.Itoa(res.Width))
	h.Set(HeaderImageHeight, strconv.Itoa(res.Height))
	if res.CacheHit {
		h.Set(HeaderCache, "hit")
	} else {
		h.Set(HeaderCache, "miss")
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Data)
}
