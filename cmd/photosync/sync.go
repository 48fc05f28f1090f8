package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Skryldev/photosync"
)

func newSyncCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Ingest new photos",
		Long: `Fingerprint every file matched by the source glob, derive and upload the
variants of the ones not yet in the catalog, and save the catalog once at the
end. Files that fail are reported and skipped; they are retried next run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log, err := a.logger(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			s, err := photosync.New(a.config(), photosync.WithLogger(log))
			if err != nil {
				return err
			}
			defer s.Close()

			_, err = s.Run(cmd.Context())
			return err
		},
	}

	f := cmd.Flags()
	f.String("source", "", "glob of candidate files")
	f.String("bucket", "", "destination bucket")
	f.String("store", "", "object store: s3 or local")
	f.String("local-dir", "", "output directory for the local store")
	f.String("backend", "", "codec backend: stdlib or vips")
	f.Bool("auto-rotate", true, "apply the EXIF orientation before resizing")
	f.Int("concurrency", 0, "photos processed in parallel (default: number of CPUs)")
	f.Int("quality", 0, "JPEG and WebP quality, 1-100")
	f.Int("max-retries", 0, "retries per upload for transient errors")
	f.Duration("upload-timeout", 0, "timeout per upload")
	f.Bool("cleanup-partial", false, "delete already uploaded variants when a later one fails")
	f.Bool("dry-run", false, "report what would be ingested without uploading or saving")
	f.String("metrics-file", "", "write Prometheus textfile metrics here after the run")
	for flag, key := range map[string]string{
		"source":          "source_glob",
		"bucket":          "bucket",
		"store":           "store",
		"local-dir":       "local_dir",
		"backend":         "backend",
		"auto-rotate":     "auto_rotate",
		"concurrency":     "concurrency",
		"quality":         "quality",
		"max-retries":     "max_retries",
		"upload-timeout":  "upload_timeout",
		"cleanup-partial": "cleanup_partial",
		"dry-run":         "dry_run",
		"metrics-file":    "metrics_file",
	} {
		bind(a.v, f.Lookup(flag), key)
	}
	return cmd
}

// bind makes an explicitly set flag take precedence over env and config file.
func bind(v *viper.Viper, flag *pflag.Flag, key string) {
	if err := v.BindPFlag(key, flag); err != nil {
		panic(err)
	}
}
