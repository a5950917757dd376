package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ospreyintel/awardflow/config"
	"github.com/ospreyintel/awardflow/internal/server"
)

func linkCMD() *cobra.Command {
	var cfgPath string

	var cmd = &cobra.Command{
		Use:   "link",
		Short: "Link pursuing opportunities to historical awards",
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
			res, err := app.Linker.Run(ctx)
			if err != nil {
				return err
			}
			out, _ := json.MarshalIndent(res, "", "  ")
			fmt.Println(string(out))
			return nil
		},
	}
	cmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return cmd
}
