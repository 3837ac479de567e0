package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	httpclient "docpipe.ingest/internal/adapters/client/http"
	"docpipe.ingest/internal/adapters/handler/mqtt"
	"docpipe.ingest/internal/adapters/stream/ws"
	"docpipe.ingest/internal/core/domain"
	"docpipe.ingest/internal/core/logger"
	"docpipe.ingest/internal/core/services"
)

const (
	exitSuccess = 0
	exitFailed  = 1
	// exitUnsettled covers a job whose stream ended without a final status.
	exitUnsettled = 2
)

type submitFlags struct {
	triggerTimeout time.Duration
	idleTimeout    time.Duration
	waitTimeout    time.Duration
	mqttBroker     string
}

func submitCmd(global *globalFlags) *cobra.Command {
	flags := &submitFlags{}
	cmd := &cobra.Command{
		Use:   "submit FILE...",
		Short: "Submit files for ingestion and follow the job log",
		Long: `Submit files for ingestion and follow the job log until it finishes.

Exit status is 0 when the job succeeds, 1 when it fails and 2 when the
log stream ended before the job reported a final status.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := global.loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("timeout") {
				cfg.TriggerTimeout = flags.triggerTimeout
			}
			if cmd.Flags().Changed("idle-timeout") {
				cfg.StreamIdleTimeout = flags.idleTimeout
			}
			if flags.mqttBroker != "" {
				cfg.MQTTBroker = flags.mqttBroker
			}
			defer setup(cfg)()

			files, closeFiles, err := openFiles(args)
			if err != nil {
				return err
			}
			defer closeFiles()

			ctrl := services.NewController(
				httpclient.NewClient(cfg.BaseURL, cfg.APIPath),
				ws.NewOpener(cfg.StreamIdleTimeout),
				services.ControllerConfig{
					BaseURL:        cfg.BaseURL,
					APIPath:        cfg.APIPath,
					TriggerTimeout: cfg.TriggerTimeout,
				},
			)
			defer ctrl.Close()

			if cfg.MQTTBroker != "" {
				client, err := mqtt.Connect(cfg.MQTTBroker)
				if err != nil {
					logger.Error("Failed to connect to MQTT broker, status mirror disabled", "error", err)
				} else {
					pub := mqtt.NewPublisher(client, cfg.MQTTTopicPrefix)
					pub.Mirror(ctrl.Session())
					defer pub.Close()
				}
			}

			unsubscribe := printLogs(cmd.OutOrStdout(), ctrl.Session())
			defer unsubscribe()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if flags.waitTimeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, flags.waitTimeout)
				defer cancel()
			}

			ctrl.StartIngestion(ctx, files)
			status, err := ctrl.Wait(ctx)
			if err != nil {
				// release the stream while the log printer and mirror still listen
				ctrl.Close()
				return &exitError{code: exitUnsettled, msg: fmt.Sprintf("stopped waiting for job: %v", err)}
			}
			return exitFor(status)
		},
	}

	cmd.Flags().DurationVar(&flags.triggerTimeout, "timeout", 30*time.Second, "submission request timeout (overrides INGEST_TRIGGER_TIMEOUT)")
	cmd.Flags().DurationVar(&flags.idleTimeout, "idle-timeout", 2*time.Minute, "log stream idle timeout (overrides INGEST_STREAM_IDLE_TIMEOUT)")
	cmd.Flags().DurationVar(&flags.waitTimeout, "wait", 0, "give up waiting after this long, 0 waits until the job settles")
	cmd.Flags().StringVar(&flags.mqttBroker, "mqtt-broker", "", "mirror status and log to this MQTT broker (overrides MQTT_BROKER)")
	return cmd
}

func exitFor(status domain.IngestionStatus) error {
	switch status {
	case domain.StatusSuccess:
		return nil
	case domain.StatusFailed:
		return &exitError{code: exitFailed}
	default:
		return &exitError{code: exitUnsettled, msg: fmt.Sprintf("job ended with status %s", status)}
	}
}

func openFiles(paths []string) ([]domain.File, func(), error) {
	var opened []*os.File
	closeAll := func() {
		for _, f := range opened {
			f.Close()
		}
	}

	files := make([]domain.File, 0, len(paths))
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("failed to open %s: %w", p, err)
		}
		opened = append(opened, f)
		files = append(files, domain.File{Name: filepath.Base(p), Content: f})
	}
	return files, closeAll, nil
}

// printLogs writes each new log entry of the session to w.
func printLogs(w io.Writer, session *services.JobSession) func() {
	printed := 0
	return session.Logs().Subscribe(func(entries []domain.LogEntry) {
		if len(entries) < printed {
			printed = 0
		}
		for _, e := range entries[printed:] {
			fmt.Fprintln(w, e.String())
		}
		printed = len(entries)
	})
}
