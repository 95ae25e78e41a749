package main

import (
	"github.com/spf13/cobra"
	"node.town/subtitles/setup"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Write config.yaml interactively",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")
		return setup.Run(cmd.Context(), path)
	},
}

func init() {
	setupCmd.Flags().String("config", "config.yaml", "Where to write the configuration")
}
