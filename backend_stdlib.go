//go:build !vips

package photosync

import (
	"errors"

	"github.com/Skryldev/photosync/config"
	"github.com/Skryldev/photosync/core"
	apperrors "github.com/Skryldev/photosync/errors"
)

// VipsAvailable reports whether this binary was built with libvips support.
const VipsAvailable = false

func newBackend(cfg config.Config) (core.Backend, func(), error) {
	if cfg.Backend == config.CodecVips {
		return nil, nil, apperrors.New(apperrors.CategoryConfig, "photosync.backend",
			errors.New("vips backend requested but this binary was built without the vips tag"))
	}
	return stdlibBackend(cfg), nil, nil
}
