package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ospreyintel/awardflow/config"
	"github.com/ospreyintel/awardflow/internal/ingest"
	"github.com/ospreyintel/awardflow/internal/server"
)

func ingestCMD() *cobra.Command {
	var cfgPath string
	var maxPages, pageLimit int

	var cmd = &cobra.Command{
		Use:   "ingest",
		Short: "Run one discovery and ingestion batch",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cfgPath)
			if err != nil {
				return err
			}
			ctx := context.Background()
			app, err := server.NewApp(ctx, cfg)
			if err != nil {
				return err
			}
			res, err := app.Ingestor.Run(ctx, app.Ingestor.DefaultFilters(time.Now()), ingest.Options{
				MaxPages:  maxPages,
				PageLimit: pageLimit,
			})
			if err != nil {
				return err
			}
			out, _ := json.MarshalIndent(res, "", "  ")
			fmt.Println(string(out))
			return nil
		},
	}
	cmd.Flags().IntVar(&maxPages, "max-pages", 0, "page ceiling (0 = configured default)")
	cmd.Flags().IntVar(&pageLimit, "page-limit", 0, "records per page (0 = configured default)")
	cmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return cmd
}
