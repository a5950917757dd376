package main

import (
	"github.com/spf13/cobra"
)

func main() {
	var root = &cobra.Command{Use: "awardflow"}

	root.AddCommand(serveCMD(), migrateCMD(), ingestCMD(), enrichCMD(), linkCMD(), pipelineCMD())
	_ = root.Execute()
}
