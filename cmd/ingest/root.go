package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"docpipe.ingest/internal/config"
	"docpipe.ingest/internal/core/logger"
	"docpipe.ingest/internal/core/tracing"
)

type globalFlags struct {
	baseURL   string
	apiPath   string
	logLevel  string
	logFormat string
}

// rootCmd is the root Cobra command; sub-commands are registered here.
func rootCmd() *cobra.Command {
	flags := &globalFlags{}
	cmd := &cobra.Command{
		Use:           "ingest",
		Short:         "ingest uploads documents to the ingestion backend and follows the job.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&flags.baseURL, "base-url", "", "backend origin (overrides INGEST_BASE_URL)")
	cmd.PersistentFlags().StringVar(&flags.apiPath, "api-path", "", "API prefix (overrides INGEST_API_PATH)")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "debug, info, warn or error (overrides LOG_LEVEL)")
	cmd.PersistentFlags().StringVar(&flags.logFormat, "log-format", "", "text or json (overrides LOG_FORMAT)")

	cmd.AddCommand(
		submitCmd(flags),
		healthCmd(flags),
	)
	return cmd
}

// loadConfig reads the environment and applies global flag overrides.
func (f *globalFlags) loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if f.baseURL != "" {
		cfg.BaseURL = f.baseURL
	}
	if f.apiPath != "" {
		cfg.APIPath = f.apiPath
	}
	if f.logLevel != "" {
		cfg.LogLevel = config.ParseLogLevel(f.logLevel)
	}
	if f.logFormat != "" {
		cfg.LogFormat = f.logFormat
	}
	return cfg, nil
}

// setup initializes logging and tracing. Diagnostics go to stderr so job
// output on stdout stays readable.
func setup(cfg *config.Config) func() {
	logger.InitWriter(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	if !cfg.EnableTracing {
		return func() {}
	}
	shutdown, err := tracing.Init(tracing.Options{
		ServiceName: cfg.ServiceName,
		Endpoint:    cfg.OTLPEndpoint,
		SampleRatio: cfg.TraceSampleRatio,
	})
	if err != nil {
		logger.Error("Failed to initialize tracing", "error", err)
		return func() {}
	}
	return func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Error("Failed to shutdown tracing", "error", err)
		}
	}
}
