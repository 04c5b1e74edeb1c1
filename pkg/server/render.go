package server

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/svg2img/pkg/errors"
	"github.com/matzehuels/svg2img/pkg/pipeline"
	"github.com/matzehuels/svg2img/pkg/plan"
	"github.com/matzehuels/svg2img/pkg/sink"
)

// ErrorResponse is the JSON body of a failed request.
type ErrorResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	opts, err := requestOptions(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			s.writeError(w, r, errors.Wrap(errors.ErrCodeInvalidInput, err, "request body exceeds %d bytes", tooLarge.Limit))
			return
		}
		s.writeError(w, r, errors.Wrap(errors.ErrCodeInvalidInput, err, "read request body"))
		return
	}

	opts = s.defaults.Override(opts)
	opts.Output = sink.Memory{}
	opts.Logger = s.logger.With("request_id", middleware.GetReqID(ctx))
	if err := opts.ValidateAndSetDefaults(); err != nil {
		s.writeError(w, r, err)
		return
	}
	opts.Sizer = pixelLimit{Sizer: opts.Sizer, max: s.maxPixels, superSampling: opts.SuperSampling}

	res, err := s.runner.Execute(ctx, body, opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeImage(w, res)
}

// pixelLimit rejects target sizes whose supersampled canvas holds more than
// max pixels.
type pixelLimit struct {
	plan.Sizer
	max           int64
	superSampling int
}

func (l pixelLimit) Size(width, height int) (int, int, error) {
	w, h, err := l.Sizer.Size(width, height)
	if err != nil {
		return 0, 0, err
	}
	ss := int64(l.superSampling)
	if n := int64(w) * int64(h) * ss * ss; n > l.max {
		return 0, 0, errors.New(errors.ErrCodeSize, "%dx%d at super_sampling %d needs %d pixels, limit is %d", w, h, l.superSampling, n, l.max)
	}
	return w, h, nil
}

func (l pixelLimit) String() string { return fmt.Sprint(l.Sizer) }

// requestOptions parses the query string. output_path is not accepted over
// HTTP; the image is always returned in the response.
func requestOptions(r *http.Request) (pipeline.Options, error) {
	q := r.URL.Query()
	m := make(map[string]string, len(q))
	for k, v := range q {
		if k == pipeline.KeyOutputPath {
			return pipeline.Options{}, errors.New(errors.ErrCodeInvalidOption, "%s is not accepted over HTTP", k)
		}
		if len(v) > 1 {
			return pipeline.Options{}, errors.New(errors.ErrCodeInvalidOption, "%s given more than once", k)
		}
		m[k] = v[0]
	}
	return pipeline.ParseOptions(m)
}

// StatusCode maps a pipeline error to an HTTP status.
func StatusCode(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case stderrors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case stderrors.Is(err, context.Canceled), stderrors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	case errors.IsInputError(err):
		return http.StatusBadRequest
	}
	switch errors.GetCode(err) {
	case errors.ErrCodeEngineAborted, errors.ErrCodeAllocationFailed:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusCode(err)
	code := errors.GetCode(err)
	if code == "" {
		code = errors.ErrCodeInternal
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("render failed", "error", err, "request_id", middleware.GetReqID(r.Context()))
	}
	writeJSON(w, status, ErrorResponse{
		Code:      string(code),
		Message:   errors.UserMessage(err),
		RequestID: middleware.GetReqID(r.Context()),
	})
}
