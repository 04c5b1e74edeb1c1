package errors

import (
	"math/bits"
	"strings"
	"unicode"
)

// MaxSuperSampling is the largest supersampling factor accepted.
const MaxSuperSampling = 64

// ValidateSuperSampling checks that n is a power of two in [1, MaxSuperSampling].
func ValidateSuperSampling(n int) error {
	if n < 1 {
		return New(ErrCodeInvalidOption, "super_sampling must be at least 1, got %d", n)
	}
	if n > MaxSuperSampling {
		return New(ErrCodeInvalidOption, "super_sampling too large (max %d), got %d", MaxSuperSampling, n)
	}
	if bits.OnesCount(uint(n)) != 1 {
		return New(ErrCodeInvalidOption, "super_sampling must be a power of two, got %d", n)
	}
	return nil
}

// ValidateDimensions checks that a requested output size is positive.
func ValidateDimensions(width, height int) error {
	if width <= 0 || height <= 0 {
		return New(ErrCodeSize, "dimensions must be positive, got %dx%d", width, height)
	}
	return nil
}

// ValidateOutputPath validates a destination file path for safety.
//
// Validation rules:
//   - Path cannot be empty
//   - Maximum length of 4096 characters
//   - No null bytes or control characters
//   - Must not name a directory (trailing separator)
//
// Unlike repository paths, absolute paths and parent references are allowed:
// the caller chooses where the image goes.
func ValidateOutputPath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidPath, "output path cannot be empty")
	}

	const maxPathLength = 4096
	if len(path) > maxPathLength {
		return New(ErrCodeInvalidPath, "output path too long (max %d characters)", maxPathLength)
	}

	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "output path contains invalid characters")
		}
	}

	if strings.HasSuffix(path, "/") || strings.HasSuffix(path, "\\") {
		return New(ErrCodeInvalidPath, "output path must name a file, not a directory: %q", path)
	}

	return nil
}
