// Package sink delivers encoded images to their destination.
//
// A [Destination] receives the finished bytes once, after encoding has
// succeeded. File-backed destinations write to a temporary file in the
// target directory and rename it into place, so a failed or interrupted
// render never leaves a partial image behind.
package sink

import (
	"context"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/matzehuels/svg2img/pkg/encode"
	"github.com/matzehuels/svg2img/pkg/errors"
)

// TempPrefix starts every generated temporary file name.
const TempPrefix = "svg2img-"

// Destination receives encoded bytes and reports where they went. An empty
// path means the bytes are returned to the caller only.
type Destination interface {
	Deliver(ctx context.Context, data []byte, f encode.Format) (string, error)
}

// Memory keeps the bytes in memory; Deliver returns an empty path.
type Memory struct{}

// Deliver does nothing.
func (Memory) Deliver(ctx context.Context, _ []byte, _ encode.Format) (string, error) {
	return "", ctx.Err()
}

// File writes to a fixed path.
type File struct {
	Path string
}

// Deliver writes data to f.Path atomically, creating parent directories.
func (d File) Deliver(ctx context.Context, data []byte, _ encode.Format) (string, error) {
	if err := errors.ValidateOutputPath(d.Path); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := WriteAtomic(d.Path, data); err != nil {
		return "", err
	}
	return d.Path, nil
}

// Temp writes to a new uniquely named file, svg2img-<uuid><ext>, under Dir
// or the system temp directory when Dir is empty.
type Temp struct {
	Dir string
}

// Deliver writes data to a fresh temp path.
func (d Temp) Deliver(ctx context.Context, data []byte, f encode.Format) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path := TempPath(d.Dir, f)
	if err := WriteAtomic(path, data); err != nil {
		return "", err
	}
	return path, nil
}

// TempPath returns a random path for format f under dir (os.TempDir() if
// empty). Nothing is created.
func TempPath(dir string, f encode.Format) string {
	if dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, TempPrefix+uuid.NewString()+f.Extension())
}

// WriteAtomic writes data to a temporary sibling of path and renames it
// over path. On failure no file is left at path or beside it.
func WriteAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(errors.ErrCodeIO, err, "create directory %s", dir)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return errors.Wrap(errors.ErrCodeIO, err, "create temp file in %s", dir)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return errors.Wrap(errors.ErrCodeIO, err, "write %s", path)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return errors.Wrap(errors.ErrCodeIO, err, "write %s", path)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return errors.Wrap(errors.ErrCodeIO, err, "chmod %s", path)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return errors.Wrap(errors.ErrCodeIO, err, "rename into %s", path)
	}
	return nil
}
