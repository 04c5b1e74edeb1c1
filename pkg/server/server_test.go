package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/srwiley/rasterx"

	"github.com/matzehuels/svg2img/pkg/buildinfo"
	"github.com/matzehuels/svg2img/pkg/cache"
	"github.com/matzehuels/svg2img/pkg/encode"
	svgerrors "github.com/matzehuels/svg2img/pkg/errors"
	"github.com/matzehuels/svg2img/pkg/observability"
	"github.com/matzehuels/svg2img/pkg/pipeline"
	"github.com/matzehuels/svg2img/pkg/raster"
	"github.com/matzehuels/svg2img/pkg/scene"
)

const testSVG = `<svg xmlns="http://www.w3.org/2000/svg" width="40" height="20" viewBox="0 0 40 20">` +
	`<rect width="40" height="20" fill="blue"/></svg>`

func newTestServer(t *testing.T, c cache.Cache, cfg Config) *Server {
	t.Helper()
	logger := log.NewWithOptions(&bytes.Buffer{}, log.Options{})
	return New(pipeline.NewRunner(c, nil, logger), cfg)
}

func doRender(t *testing.T, s *Server, query, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/render"+query, strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestRenderPNG(t *testing.T) {
	s := newTestServer(t, nil, Config{})
	rec := doRender(t, s, "", testSVG)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q", ct)
	}
	if rec.Header().Get(HeaderCache) != "miss" {
		t.Errorf("%s = %q", HeaderCache, rec.Header().Get(HeaderCache))
	}
	img, err := png.Decode(rec.Body)
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 40 || b.Dy() != 20 {
		t.Errorf("bounds = %v", b)
	}
}

func TestRenderQueryOptions(t *testing.T) {
	s := newTestServer(t, nil, Config{})
	tests := []struct {
		query  string
		ctype  string
		width  string
		height string
	}{
		{"?format=jpeg&width=80&height=80", "image/jpeg", "80", "80"},
		{"?format=gif&max_width=20", "image/gif", "20", "10"},
		{"?output_format=webp&size=10x5&super_sampling=1", "image/webp", "10", "5"},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := doRender(t, s, tt.query, testSVG)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
			}
			if ct := rec.Header().Get("Content-Type"); ct != tt.ctype {
				t.Errorf("Content-Type = %q, want %q", ct, tt.ctype)
			}
			if w, h := rec.Header().Get(HeaderImageWidth), rec.Header().Get(HeaderImageHeight); w != tt.width || h != tt.height {
				t.Errorf("size = %sx%s, want %sx%s", w, h, tt.width, tt.height)
			}
		})
	}
}

func TestRenderErrors(t *testing.T) {
	s := newTestServer(t, nil, Config{MaxBodyBytes: 1024})
	tests := []struct {
		name   string
		query  string
		body   string
		status int
		code   string
	}{
		{"unknown format", "?format=bmp", testSVG, http.StatusBadRequest, "INVALID_FORMAT"},
		{"bad super sampling", "?super_sampling=3", "", http.StatusBadRequest, "INVALID_OPTION"},
		{"unknown option", "?colour=red", testSVG, http.StatusBadRequest, "INVALID_OPTION"},
		{"output path refused", "?output_path=/etc/passwd", testSVG, http.StatusBadRequest, "INVALID_OPTION"},
		{"repeated key", "?format=png&format=gif", testSVG, http.StatusBadRequest, "INVALID_OPTION"},
		{"malformed svg", "", "<svg><g>", http.StatusBadRequest, "PARSE_FAILED"},
		{"empty body", "", "", http.StatusBadRequest, "PARSE_FAILED"},
		{"zero size", "?size=0x10", testSVG, http.StatusBadRequest, "SIZE_INVALID"},
		{"body too large", "", testSVG + strings.Repeat(" ", 2048), http.StatusRequestEntityTooLarge, "INVALID_INPUT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRender(t, s, tt.query, tt.body)
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.status, rec.Body)
			}
			var resp ErrorResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("decode error body: %v", err)
			}
			if resp.Code != tt.code {
				t.Errorf("code = %q, want %q", resp.Code, tt.code)
			}
			if resp.Message == "" {
				t.Error("empty message")
			}
		})
	}
}

type countingEngine struct {
	mu    sync.Mutex
	calls int
}

func (e *countingEngine) Paint(s *scene.Scene, m rasterx.Matrix2D, c *raster.Canvas) error {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	return raster.OKSVG{}.Paint(s, m, c)
}

func TestRenderPixelLimit(t *testing.T) {
	tests := []struct {
		name   string
		cfg    Config
		query  string
		status int
	}{
		{"huge size rejected by default", Config{}, "?width=16384&height=16384", http.StatusBadRequest},
		{"bounded fit rejected", Config{MaxPixels: 1000}, "?max_width=400", http.StatusBadRequest},
		{"super sampling counts", Config{MaxPixels: 40 * 20 * 4}, "?super_sampling=4", http.StatusBadRequest},
		{"within limit", Config{MaxPixels: 40 * 20 * 4}, "?super_sampling=2", http.StatusOK},
		{"scale within default", Config{}, "?width=400", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := &countingEngine{}
			tt.cfg.Defaults.Engine = engine
			s := newTestServer(t, nil, tt.cfg)

			rec := doRender(t, s, tt.query, testSVG)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.status, rec.Body)
			}
			if tt.status == http.StatusOK {
				if engine.calls != 1 {
					t.Errorf("engine calls = %d, want 1", engine.calls)
				}
				return
			}

			var resp ErrorResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatal(err)
			}
			if resp.Code != "SIZE_INVALID" {
				t.Errorf("code = %q, want SIZE_INVALID", resp.Code)
			}
			if engine.calls != 0 {
				t.Errorf("engine ran %d times for a rejected size", engine.calls)
			}
		})
	}
}

type abortingEngine struct{}

func (abortingEngine) Paint(*scene.Scene, rasterx.Matrix2D, *raster.Canvas) error {
	panic("engine gave up")
}

func TestRenderEngineAbort(t *testing.T) {
	s := newTestServer(t, nil, Config{Defaults: pipeline.Options{Engine: abortingEngine{}}})
	rec := doRender(t, s, "", testSVG)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	var resp ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Code != "RENDER_ENGINE_ABORTED" {
		t.Errorf("code = %q", resp.Code)
	}

	// The server keeps serving.
	get := httptest.NewRecorder()
	s.Handler().ServeHTTP(get, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if get.Code != http.StatusOK {
		t.Errorf("healthz after abort = %d", get.Code)
	}
}

func TestRenderCacheHeader(t *testing.T) {
	mc, err := cache.NewMemoryCache(0)
	if err != nil {
		t.Fatal(err)
	}
	s := newTestServer(t, mc, Config{})
	defer s.runner.Close()

	first := doRender(t, s, "?format=png", testSVG)
	second := doRender(t, s, "?format=png", testSVG)
	if first.Header().Get(HeaderCache) != "miss" || second.Header().Get(HeaderCache) != "hit" {
		t.Errorf("X-Cache = %q then %q, want miss then hit",
			first.Header().Get(HeaderCache), second.Header().Get(HeaderCache))
	}
	if !bytes.Equal(first.Body.Bytes(), second.Body.Bytes()) {
		t.Error("cached response differs")
	}
}

func TestRenderDefaultsFromConfig(t *testing.T) {
	s := newTestServer(t, nil, Config{Defaults: pipeline.Options{Format: encode.JPEG}})
	rec := doRender(t, s, "", testSVG)
	if ct := rec.Header().Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("Content-Type = %q, want configured default", ct)
	}
	rec = doRender(t, s, "?format=png", testSVG)
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q, want request override", ct)
	}
}

func TestInfoEndpoints(t *testing.T) {
	s := newTestServer(t, nil, Config{})

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("GET %s = %d", path, rec.Code)
		}
		return rec
	}

	var health map[string]string
	_ = json.NewDecoder(get("/healthz").Body).Decode(&health)
	if health["status"] != "ok" {
		t.Errorf("healthz = %v", health)
	}

	var v buildinfo.Info
	_ = json.NewDecoder(get("/version").Body).Decode(&v)
	if v.Version == "" {
		t.Errorf("version = %+v", v)
	}

	var f formatsResponse
	_ = json.NewDecoder(get("/formats").Body).Decode(&f)
	if len(f.Formats) != 4 || f.Default != "png" {
		t.Errorf("formats = %+v", f)
	}
	for _, info := range f.Formats {
		if info.Name == "jpeg" && info.Alpha {
			t.Error("jpeg reported as supporting alpha")
		}
	}
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{svgerrors.New(svgerrors.ErrCodeParse, "x"), http.StatusBadRequest},
		{svgerrors.New(svgerrors.ErrCodeInvalidPath, "x"), http.StatusBadRequest},
		{svgerrors.New(svgerrors.ErrCodeEngineAborted, "x"), http.StatusUnprocessableEntity},
		{svgerrors.New(svgerrors.ErrCodeAllocationFailed, "x"), http.StatusUnprocessableEntity},
		{svgerrors.New(svgerrors.ErrCodeEncode, "x"), http.StatusInternalServerError},
		{svgerrors.New(svgerrors.ErrCodeIO, "x"), http.StatusInternalServerError},
		{fmt.Errorf("render: %w", context.Canceled), http.StatusServiceUnavailable},
		{errors.New("plain"), http.StatusInternalServerError},
		{&http.MaxBytesError{Limit: 1}, http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		if got := StatusCode(tt.err); got != tt.want {
			t.Errorf("StatusCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

type recordingHTTPHooks struct {
	observability.NoopHTTPHooks
	mu     sync.Mutex
	routes []string
	codes  []int
}

func (h *recordingHTTPHooks) OnResponse(_ context.Context, _, route string, status int, _ time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.routes = append(h.routes, route)
	h.codes = append(h.codes, status)
}

func TestHTTPHooks(t *testing.T) {
	h := &recordingHTTPHooks{}
	observability.SetHTTPHooks(h)
	defer observability.Reset()

	s := newTestServer(t, nil, Config{})
	doRender(t, s, "?format=bmp", testSVG)
	doRender(t, s, "", testSVG)

	if len(h.routes) != 2 || h.routes[0] != "/render" {
		t.Fatalf("routes = %v", h.routes)
	}
	if h.codes[0] != http.StatusBadRequest || h.codes[1] != http.StatusOK {
		t.Errorf("codes = %v", h.codes)
	}
}

func TestListenAndServeShutdown(t *testing.T) {
	s := newTestServer(t, nil, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx, "127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("ListenAndServe = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
