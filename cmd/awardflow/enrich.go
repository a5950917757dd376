package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ospreyintel/awardflow/config"
	"github.com/ospreyintel/awardflow/internal/server"
)

func enrichCMD() *cobra.Command {
	var cfgPath string
	var limit int

	var cmd = &cobra.Command{
		Use:   "enrich",
		Short: "Enrich awards still pending detail and transaction fetch",
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
			res, err := app.Enricher.EnrichPending(ctx, limit)
			if err != nil {
				return err
			}
			out, _ := json.MarshalIndent(res, "", "  ")
			fmt.Println(string(out))
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum awards to enrich")
	cmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return cmd
}
