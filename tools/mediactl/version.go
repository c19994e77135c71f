package main

import (
	"github.com/spf13/cobra"

	"github.com/Jari57/studio-agents-sub002/runtime/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, _ []string) error {
		_, err := cmd.OutOrStdout().Write([]byte(version.GetVersionInfo() + "\n"))
		return err
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
