package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Skryldev/photosync/core"
	apperrors "github.com/Skryldev/photosync/errors"
)

// Local stores objects as files in a directory, one file per object name.
// Useful for publishing to a static site checkout and for tests.
type Local struct {
	rootDir     string
	permissions os.FileMode
}

// NewLocal creates a Local store rooted at dir.
func NewLocal(dir string, perm os.FileMode) (*Local, error) {
	if perm == 0 {
		perm = 0o644
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("local storage: mkdir %s: %w", dir, err)
	}
	return &Local{rootDir: dir, permissions: perm}, nil
}

// Root returns the directory objects are written to.
func (l *Local) Root() string { return l.rootDir }

func (l *Local) absPath(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("invalid object name %q", name)
	}
	return filepath.Join(l.rootDir, name), nil
}

// Put writes the object through a temp file and a rename, so a reader never
// observes a half-written object.
func (l *Local) Put(ctx context.Context, name string, data []byte, _ string) error {
	if err := ctx.Err(); err != nil {
		return apperrors.Wrap(apperrors.CategoryUpload, "local.put", err)
	}
	path, err := l.absPath(name)
	if err != nil {
		return apperrors.New(apperrors.CategoryUpload, "local.put", err)
	}

	tmp, err := os.CreateTemp(l.rootDir, "."+name+".*")
	if err != nil {
		return apperrors.Wrap(apperrors.CategoryUpload, "local.put.create", err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return apperrors.Wrap(apperrors.CategoryUpload, "local.put.write", err)
	}
	if err := tmp.Chmod(l.permissions); err != nil {
		tmp.Close()
		return apperrors.Wrap(apperrors.CategoryUpload, "local.put.chmod", err)
	}
	if err := tmp.Close(); err != nil {
		return apperrors.Wrap(apperrors.CategoryUpload, "local.put.close", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return apperrors.Wrap(apperrors.CategoryUpload, "local.put.rename", err)
	}
	return nil
}

func (l *Local) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return apperrors.Wrap(apperrors.CategoryUpload, "local.delete", err)
	}
	path, err := l.absPath(name)
	if err != nil {
		return apperrors.New(apperrors.CategoryUpload, "local.delete", err)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return apperrors.Wrap(apperrors.CategoryUpload, "local.delete", err)
	}
	return nil
}

var _ core.ObjectStore = (*Local)(nil)
