// Command photosync publishes new photos from a source folder to object
// storage and records them in the site's photo catalog.
//
//	photosync sync                 # ingest everything new under images/photos
//	photosync sync --dry-run       # only report what would be ingested
//	photosync targets <hash>       # list the object names of one photo
//	photosync catalog              # summarise _data/photos.yml
//
// Exit status is 0 when the run completes, including runs where individual
// files failed, and 1 on configuration, catalog or storage setup errors.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "photosync:", err)
		stop()
		os.Exit(1)
	}
}
