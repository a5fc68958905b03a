package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/oukeidos/posync/internal/catalog"
	"github.com/oukeidos/posync/internal/cleanup"
	"github.com/oukeidos/posync/internal/files"
	"github.com/oukeidos/posync/internal/logger"
	"github.com/oukeidos/posync/internal/memsource"
	"github.com/oukeidos/posync/internal/pipeline"
	"github.com/oukeidos/posync/internal/prompt"
	"github.com/oukeidos/posync/internal/transifex"
	"github.com/spf13/cobra"
)

type syncOptions struct {
	source        string
	destination   string
	localDir      string
	cacheDir      string
	projectID     string
	organization  string
	project       string
	catalogURL    string
	sessionCache  string
	memsourceUser string
	pollInterval  time.Duration
	yes           bool
	allowEnv      bool
	envOnly       bool
	debug         bool
	logFilePath   string
}

var (
	runPipeline  = pipeline.Run
	newConfirmer = prompt.DefaultConfirmer
)

func addSyncFlags(cmd *cobra.Command, opts *syncOptions) {
	cmd.Flags().StringVar(&opts.source, "source", "", "Engine to download from (transifex, memsource or local)")
	cmd.Flags().StringVar(&opts.destination, "destination", pipeline.None, "Engine to upload to (transifex, memsource or none)")
	cmd.Flags().StringVar(&opts.localDir, "local-dir", "", "Directory of .po files read by the local source")
	cmd.Flags().StringVar(&opts.cacheDir, "cache-dir", ".", "Directory that receives <engine>/<key>.po after a download")
	cmd.Flags().StringVar(&opts.projectID, "project-id", "", "Memsource project UID")
	cmd.Flags().StringVar(&opts.organization, "organization", transifex.DefaultOrganization, "Transifex organization slug")
	cmd.Flags().StringVar(&opts.project, "project", transifex.DefaultProject, "Transifex project slug")
	cmd.Flags().StringVar(&opts.catalogURL, "catalog-url", catalog.DefaultURL, "Plugin index listing the Transifex resources")
	cmd.Flags().StringVar(&opts.sessionCache, "session-cache", memsource.DefaultSessionPath(), "File caching the Memsource session token")
	cmd.Flags().StringVar(&opts.memsourceUser, "memsource-user", "", "Memsource user name (falls back to $MEMSOURCE_USERNAME with --allow-env)")
	cmd.Flags().DurationVar(&opts.pollInterval, "poll-interval", transifex.DefaultPollInterval, "Wait between Transifex job status checks")
	cmd.Flags().BoolVarP(&opts.yes, "yes", "y", false, "Upload to the destination without asking")
	cmd.Flags().BoolVar(&opts.allowEnv, "allow-env", false, "Allow reading credentials from environment variables")
	cmd.Flags().BoolVar(&opts.envOnly, "env-only", false, "Use only environment variables for credentials")
	cmd.Flags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	cmd.Flags().StringVar(&opts.logFilePath, "log-file", "", "Path to save machine-readable JSONL logs")
}

func initLogging(opts *syncOptions) error {
	level := logger.LevelInfo
	if opts.debug {
		level = logger.LevelDebug
	}
	var logFileW io.Writer
	if opts.logFilePath != "" {
		if err := files.RejectSymlinkPath(opts.logFilePath); err != nil {
			return err
		}
		f, err := os.OpenFile(opts.logFilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		cleanup.Register(f.Close)
		logFileW = f
	}
	logger.Init(level, logFileW)
	return nil
}

func (o *syncOptions) config() pipeline.Config {
	return pipeline.Config{
		Source:       o.source,
		Destination:  o.destination,
		LocalDir:     o.localDir,
		CacheDir:     o.cacheDir,
		ProjectID:    o.projectID,
		Organization: o.organization,
		Project:      o.project,
		CatalogURL:   o.catalogURL,
		SessionCache: o.sessionCache,
		PollInterval: o.pollInterval,
		Yes:          o.yes,
	}
}

// resolveCredentials fills in the secrets of every engine cfg uses.
func resolveCredentials(cfg *pipeline.Config, opts *syncOptions) error {
	if cfg.Uses(transifex.Name) {
		token, source, err := resolveSecret(transifex.Name, opts.allowEnv, opts.envOnly)
		if err != nil {
			return err
		}
		logger.Info("Using credential", "service", transifex.Name, "source", source)
		cfg.TransifexToken = token
	}
	if cfg.Uses(memsource.Name) {
		if cfg.ProjectID == "" {
			return missingCredential("A Memsource project ID is required (--project-id).")
		}
		user, source, err := resolveMemsourceUser(opts.memsourceUser, opts.allowEnv, opts.envOnly)
		if err != nil {
			return err
		}
		logger.Debug("Using Memsource user", "source", source)
		password, source, err := resolveSecret(memsource.Name, opts.allowEnv, opts.envOnly)
		if err != nil {
			return err
		}
		logger.Info("Using credential", "service", memsource.Name, "source", source)
		cfg.MemsourceUser = user
		cfg.MemsourcePassword = password
	}
	return nil
}

func runSync(cmd *cobra.Command, opts *syncOptions) error {
	if err := initLogging(opts); err != nil {
		return err
	}

	cfg, notes := opts.config().Normalize()
	for _, note := range notes {
		logger.Warn("Config normalized", "detail", note)
	}
	if err := cfg.ValidateEngines(); err != nil {
		return err
	}
	if err := resolveCredentials(&cfg, opts); err != nil {
		return err
	}

	confirmer := newConfirmer()
	cfg.OnConfirmUpload = func(destination string, count int) (bool, error) {
		return confirmer.ConfirmUpload(destination, count, false)
	}

	ctx, stop := signalContext()
	defer stop()

	start := time.Now()
	result, err := runPipeline(ctx, cfg, pipeline.Deps{})
	if err != nil {
		if ctx.Err() == context.Canceled {
			return fmt.Errorf("sync canceled: %w", err)
		}
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Synchronized %d translation file(s) from %s", result.Units, cfg.Source)
	if result.Uploaded {
		fmt.Fprintf(cmd.OutOrStdout(), " to %s", cfg.Destination)
	}
	fmt.Fprintf(cmd.OutOrStdout(), " in %s (run %s)\n", time.Since(start).Round(time.Millisecond), result.RunID)
	return nil
}
