package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	httpclient "docpipe.ingest/internal/adapters/client/http"
	"docpipe.ingest/internal/core/services"
)

func healthCmd(global *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Print the backend health snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := global.loadConfig()
			if err != nil {
				return err
			}
			defer setup(cfg)()

			svc := services.NewHealthService(httpclient.NewClient(cfg.BaseURL, cfg.APIPath))
			snapshot := svc.Fetch(cmd.Context())

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(snapshot); err != nil {
				return err
			}
			if snapshot.Error != "" {
				return &exitError{code: 1}
			}
			return nil
		},
	}
}
