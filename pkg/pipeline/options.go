package pipeline

import (
	"sort"
	"strconv"
	"strings"

	"github.com/matzehuels/svg2img/pkg/encode"
	"github.com/matzehuels/svg2img/pkg/errors"
	"github.com/matzehuels/svg2img/pkg/pixel"
	"github.com/matzehuels/svg2img/pkg/plan"
	"github.com/matzehuels/svg2img/pkg/sink"
)

// Option keys accepted by ParseOptions.
const (
	KeyFormat        = "format"
	KeyOutputFormat  = "output_format" // alias of format
	KeySuperSampling = "super_sampling"
	KeySize          = "size"
	KeyWidth         = "width"
	KeyHeight        = "height"
	KeyMaxWidth      = "max_width"
	KeyMaxHeight     = "max_height"
	KeyOutputPath    = "output_path"
	KeyBackground    = "background"
	KeyJPEGQuality   = "jpeg_quality"
	KeyFilter        = "filter"
	KeyStrict        = "strict"
)

var knownKeys = map[string]bool{
	KeyFormat: true, KeyOutputFormat: true, KeySuperSampling: true,
	KeySize: true, KeyWidth: true, KeyHeight: true,
	KeyMaxWidth: true, KeyMaxHeight: true, KeyOutputPath: true,
	KeyBackground: true, KeyJPEGQuality: true, KeyFilter: true, KeyStrict: true,
}

// ParseOptions builds Options from string key/value pairs, as received from
// query strings or other loosely typed callers. Empty values are ignored.
// Unknown keys and malformed values fail with INVALID_OPTION (INVALID_FORMAT
// for the format).
//
// Size keys combine as follows: size ("WxH") or width+height request an
// exact size; max_width/max_height bound the intrinsic size. Giving only one
// of width and height keeps the aspect ratio and is treated as a bound.
func ParseOptions(m map[string]string) (Options, error) {
	var opts Options

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !knownKeys[k] {
			return Options{}, errors.New(errors.ErrCodeInvalidOption, "unknown option %q", k)
		}
	}

	get := func(k string) string { return strings.TrimSpace(m[k]) }

	format := get(KeyFormat)
	if alias := get(KeyOutputFormat); alias != "" {
		if format != "" && format != alias {
			return Options{}, errors.New(errors.ErrCodeInvalidOption, "conflicting %s %q and %s %q", KeyFormat, format, KeyOutputFormat, alias)
		}
		format = alias
	}
	if format != "" {
		f, err := encode.ParseFormat(format)
		if err != nil {
			return Options{}, err
		}
		opts.Format = f
	}

	var err error
	if opts.SuperSampling, err = intOption(m, KeySuperSampling); err != nil {
		return Options{}, err
	}
	if m[KeySuperSampling] != "" {
		if err := errors.ValidateSuperSampling(opts.SuperSampling); err != nil {
			return Options{}, err
		}
	}
	if opts.JPEGQuality, err = intOption(m, KeyJPEGQuality); err != nil {
		return Options{}, err
	}

	if opts.Sizer, err = parseSizer(m); err != nil {
		return Options{}, err
	}

	if p := get(KeyOutputPath); p != "" {
		if err := errors.ValidateOutputPath(p); err != nil {
			return Options{}, err
		}
		opts.Output = sink.File{Path: p}
	}

	if f := get(KeyFilter); f != "" {
		filter, err := pixel.ParseFilter(f)
		if err != nil {
			return Options{}, err
		}
		opts.Filter = filter
	}

	if bg := get(KeyBackground); bg != "" {
		if _, err := encode.ParseColor(bg); err != nil {
			return Options{}, err
		}
		opts.Background = bg
	}

	if s := get(KeyStrict); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			return Options{}, errors.New(errors.ErrCodeInvalidOption, "%s must be a boolean, got %q", KeyStrict, s)
		}
		opts.Strict, opts.StrictSet = b, true
	}

	return opts, nil
}

func parseSizer(m map[string]string) (plan.Sizer, error) {
	width, err := intOption(m, KeyWidth)
	if err != nil {
		return nil, err
	}
	height, err := intOption(m, KeyHeight)
	if err != nil {
		return nil, err
	}
	maxW, err := intOption(m, KeyMaxWidth)
	if err != nil {
		return nil, err
	}
	maxH, err := intOption(m, KeyMaxHeight)
	if err != nil {
		return nil, err
	}
	size := strings.TrimSpace(m[KeySize])

	exact := size != "" || (width > 0 && height > 0)
	bounded := maxW > 0 || maxH > 0
	if exact && bounded {
		return nil, errors.New(errors.ErrCodeInvalidOption, "exact size and max_width/max_height are mutually exclusive")
	}

	switch {
	case size != "":
		if width > 0 || height > 0 {
			return nil, errors.New(errors.ErrCodeInvalidOption, "size and width/height are mutually exclusive")
		}
		return plan.ParseSize(size)
	case width > 0 && height > 0:
		return plan.Fixed{W: width, H: height}, nil
	case width > 0 || height > 0:
		return plan.Fit{MaxWidth: width, MaxHeight: height}, nil
	case bounded:
		return plan.Fit{MaxWidth: maxW, MaxHeight: maxH}, nil
	}
	return nil, nil
}

// intOption parses m[key] as a positive integer. Missing or empty is 0.
func intOption(m map[string]string, key string) (int, error) {
	s := strings.TrimSpace(m[key])
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.New(errors.ErrCodeInvalidOption, "%s must be an integer, got %q", key, s)
	}
	if n < 1 {
		return 0, errors.New(errors.ErrCodeInvalidOption, "%s must be positive, got %d", key, n)
	}
	return n, nil
}
