//go:build vips

package photosync

import (
	"github.com/Skryldev/photosync/adapters/vips"
	"github.com/Skryldev/photosync/config"
	"github.com/Skryldev/photosync/core"
)

// VipsAvailable reports whether this binary was built with libvips support.
const VipsAvailable = true

func newBackend(cfg config.Config) (core.Backend, func(), error) {
	if cfg.Backend != config.CodecVips {
		return stdlibBackend(cfg), nil, nil
	}
	b := vips.NewBackend(vips.BackendConfig{
		Quality:    cfg.Quality,
		MaxWorkers: cfg.Concurrency,
		AutoRotate: cfg.AutoRotate,
	})
	return b, b.Shutdown, nil
}
