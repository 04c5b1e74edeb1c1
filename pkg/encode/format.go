package encode

import (
	"strings"

	"github.com/matzehuels/svg2img/pkg/errors"
)

// Format is an output container format.
type Format int

// Supported formats. The zero value is not a valid format.
const (
	PNG Format = iota + 1
	JPEG
	GIF
	WEBP
)

// DefaultFormat is used when no format is configured.
const DefaultFormat = PNG

var formatNames = map[string]Format{
	"png":  PNG,
	"jpeg": JPEG,
	"jpg":  JPEG,
	"gif":  GIF,
	"webp": WEBP,
}

// Formats lists the supported formats in a stable order.
func Formats() []Format {
	return []Format{PNG, JPEG, GIF, WEBP}
}

// ParseFormat maps a format name to a Format. Accepted names are png, jpeg,
// jpg, gif and webp. Anything else fails with INVALID_FORMAT; there is no
// fallback format.
func ParseFormat(name string) (Format, error) {
	if f, ok := formatNames[name]; ok {
		return f, nil
	}
	return 0, errors.New(errors.ErrCodeInvalidFormat,
		"unknown format %q (must be one of: %s)", name, strings.Join(FormatNames(), ", "))
}

// FormatNames lists the accepted format names, aliases included.
func FormatNames() []string {
	return []string{"png", "jpeg", "jpg", "gif", "webp"}
}

// Valid reports whether f is one of the supported formats.
func (f Format) Valid() bool {
	return f >= PNG && f <= WEBP
}

// String returns the canonical name.
func (f Format) String() string {
	switch f {
	case PNG:
		return "png"
	case JPEG:
		return "jpeg"
	case GIF:
		return "gif"
	case WEBP:
		return "webp"
	}
	return "unknown"
}

// Extension returns the canonical file extension, including the dot.
func (f Format) Extension() string {
	switch f {
	case PNG:
		return ".png"
	case JPEG:
		return ".jpg"
	case GIF:
		return ".gif"
	case WEBP:
		return ".webp"
	}
	return ""
}

// MIMEType returns the media type for HTTP responses.
func (f Format) MIMEType() string {
	switch f {
	case PNG:
		return "image/png"
	case JPEG:
		return "image/jpeg"
	case GIF:
		return "image/gif"
	case WEBP:
		return "image/webp"
	}
	return "application/octet-stream"
}

// SupportsAlpha reports whether the container keeps transparency.
func (f Format) SupportsAlpha() bool {
	return f != JPEG
}

// FormatFromPath infers the format from a file extension.
func FormatFromPath(path string) (Format, bool) {
	i := strings.LastIndexByte(path, '.')
	if i < 0 || strings.ContainsAny(path[i:], `/\`) {
		return 0, false
	}
	f, ok := formatNames[strings.ToLower(path[i+1:])]
	return f, ok
}
