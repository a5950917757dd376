package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ospreyintel/awardflow/config"
	"github.com/ospreyintel/awardflow/internal/pipeline"
	"github.com/ospreyintel/awardflow/internal/server"
)

func pipelineCMD() *cobra.Command {
	var cfgPath string
	var all bool
	var forceScrape, forceEnrich, forceAnalyze bool

	var cmd = &cobra.Command{
		Use:   "pipeline [opportunity-id]",
		Short: "Run the stage pipeline for one or all pursuing opportunities",
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
			opts := pipeline.Options{
				ForceScrape:  forceScrape,
				ForceEnrich:  forceEnrich,
				ForceAnalyze: forceAnalyze,
			}

			var res interface{}
			if all {
				res, err = app.Orch.ProcessAll(ctx, opts)
			} else {
				if len(args) != 1 {
					return errors.New("an opportunity id is required unless --all is set")
				}
				res, err = app.Orch.Process(ctx, args[0], opts)
			}
			if err != nil {
				return err
			}
			out, _ := json.MarshalIndent(res, "", "  ")
			fmt.Println(string(out))
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "process every pursuing opportunity")
	cmd.Flags().BoolVar(&forceScrape, "force-scrape", false, "rerun the scraping stage")
	cmd.Flags().BoolVar(&forceEnrich, "force-enrich", false, "rerun the enrichment stage")
	cmd.Flags().BoolVar(&forceAnalyze, "force-analyze", false, "rerun the analysis stage")
	cmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return cmd
}
