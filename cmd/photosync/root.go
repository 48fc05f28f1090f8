package main

import (
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Skryldev/photosync/config"
	"github.com/Skryldev/photosync/hooks"
)

// app carries state shared by every subcommand.
type app struct {
	v       *viper.Viper
	cfgFile string
	envFile string
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	rootCmd := &cobra.Command{
		Use:   "photosync",
		Short: "Publish new photos to object storage and the site catalog",
		Long: `photosync scans the photo source folder, skips every file whose content
is already in the catalog, derives WebP and JPEG variants of the rest, uploads
them under content-addressed names and appends their records to the catalog.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return a.load()
		},
	}
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default ./photosync.yaml if present)")
	pf.StringVar(&a.envFile, "env-file", ".env", "dotenv file with S3 credentials; missing file is ignored")
	pf.String("catalog", "", "YAML catalog path")
	pf.String("log-level", "", "debug, info, warn or error")
	bind(a.v, pf.Lookup("catalog"), "catalog_path")
	bind(a.v, pf.Lookup("log-level"), "log_level")

	rootCmd.AddCommand(newSyncCmd(a))
	rootCmd.AddCommand(newTargetsCmd())
	rootCmd.AddCommand(newCatalogCmd(a))
	return rootCmd
}

// load reads the dotenv file and the optional config file and binds the
// environment.  Flags are bound when the commands are built.
func (a *app) load() error {
	if a.envFile != "" {
		if err := godotenv.Load(a.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}

	setDefaults(a.v)
	a.v.SetEnvPrefix("PHOTOSYNC")
	a.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	a.v.AutomaticEnv()
	// The credential variables keep the names the publishing setup already uses.
	_ = a.v.BindEnv("s3.access_key_id", "S3_ACCESS_KEY_ID", "PHOTOSYNC_S3_ACCESS_KEY_ID")
	_ = a.v.BindEnv("s3.secret_access_key", "S3_SECRET_ACCESS_KEY", "PHOTOSYNC_S3_SECRET_ACCESS_KEY")
	_ = a.v.BindEnv("s3.endpoint", "S3_ENDPOINT", "PHOTOSYNC_S3_ENDPOINT")

	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
		return a.v.ReadInConfig()
	}
	a.v.SetConfigName("photosync")
	a.v.AddConfigPath(".")
	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return err
		}
	}
	return nil
}

func (a *app) config() config.Config {
	v := a.v
	return config.Config{
		SourceGlob:     v.GetString("source_glob"),
		CatalogPath:    v.GetString("catalog_path"),
		Bucket:         v.GetString("bucket"),
		Concurrency:    v.GetInt("concurrency"),
		UploadTimeout:  v.GetDuration("upload_timeout"),
		MaxRetries:     v.GetInt("max_retries"),
		RetryDelay:     v.GetDuration("retry_delay"),
		CleanupPartial: v.GetBool("cleanup_partial"),
		Quality:        v.GetInt("quality"),
		MaxImageBytes:  v.GetInt64("max_image_bytes"),
		Backend:        config.CodecBackend(v.GetString("backend")),
		AutoRotate:     v.GetBool("auto_rotate"),
		Store:          config.StoreBackend(v.GetString("store")),
		LocalDir:       v.GetString("local_dir"),
		S3: config.S3Config{
			Endpoint:        v.GetString("s3.endpoint"),
			Region:          v.GetString("s3.region"),
			AccessKeyID:     v.GetString("s3.access_key_id"),
			SecretAccessKey: v.GetString("s3.secret_access_key"),
			UsePathStyle:    v.GetBool("s3.use_path_style"),
		},
		DryRun:      v.GetBool("dry_run"),
		LogLevel:    v.GetString("log_level"),
		MetricsFile: v.GetString("metrics_file"),
	}
}

// logger builds the run logger: text on w, tagged with a fresh run id.
func (a *app) logger(w io.Writer) (*hooks.SlogLogger, error) {
	level, err := hooks.ParseLevel(a.v.GetString("log_level"))
	if err != nil {
		return nil, err
	}
	h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return hooks.NewSlogLogger(slog.New(h)).With("run_id", uuid.NewString()), nil
}

func setDefaults(v *viper.Viper) {
	d := config.Default()
	v.SetDefault("source_glob", d.SourceGlob)
	v.SetDefault("catalog_path", d.CatalogPath)
	v.SetDefault("bucket", d.Bucket)
	v.SetDefault("concurrency", d.Concurrency)
	v.SetDefault("upload_timeout", d.UploadTimeout)
	v.SetDefault("max_retries", d.MaxRetries)
	v.SetDefault("retry_delay", d.RetryDelay)
	v.SetDefault("cleanup_partial", d.CleanupPartial)
	v.SetDefault("quality", d.Quality)
	v.SetDefault("max_image_bytes", d.MaxImageBytes)
	v.SetDefault("backend", string(d.Backend))
	v.SetDefault("auto_rotate", d.AutoRotate)
	v.SetDefault("store", string(d.Store))
	v.SetDefault("local_dir", d.LocalDir)
	v.SetDefault("s3.region", d.S3.Region)
	v.SetDefault("s3.use_path_style", d.S3.UsePathStyle)
	v.SetDefault("dry_run", d.DryRun)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("metrics_file", d.MetricsFile)
}
