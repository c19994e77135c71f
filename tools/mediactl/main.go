// Command mediactl resolves media payloads and runs the media API server.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Jari57/studio-agents-sub002/runtime/logger"
	"github.com/Jari57/studio-agents-sub002/runtime/version"
)

var rootCmd = &cobra.Command{
	Use:           "mediactl",
	Short:         "Resolve AI media payloads and serve the media runtime",
	Version:       version.GetVersion(),
	SilenceUsage:  true,
	SilenceErrors: false,
	Long: `mediactl turns the payloads returned by image, audio and video generation
services into playable references, and runs the HTTP API that serves
materialized blob handles and drives voice I/O.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if cmd.Flags().Changed("verbose") {
			verbose, err := cmd.Flags().GetBool("verbose")
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error getting verbose flag: %v\n", err)
				return
			}
			logger.SetVerbose(verbose)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")
	rootCmd.SetVersionTemplate(version.GetVersionInfo() + "\n")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
