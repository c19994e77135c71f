package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Jari57/studio-agents-sub002/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Validate a MediaRuntime manifest",
	Long: `Validates a MediaRuntime manifest against its JSON schema and then runs the
semantic checks applied at startup: durations, store settings and the
runtime version constraint annotation.

Examples:
  mediactl validate runtime.yaml
  mediactl validate runtime.yaml --schema-only`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

var validateSchemaOnly bool

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().BoolVar(&validateSchemaOnly, "schema-only", false, "Only validate schema, skip semantic checks")
}

func runValidate(cmd *cobra.Command, args []string) error {
	filePath := args[0]
	out := cmd.OutOrStdout()

	if validateSchemaOnly {
		data, err := os.ReadFile(filePath)
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}
		if err := config.ValidateMediaRuntime(data); err != nil {
			return err
		}
		fmt.Fprintf(out, "%s matches the MediaRuntime schema\n", filepath.Base(filePath))
		return nil
	}

	manifest, err := config.LoadConfig(filePath)
	if err != nil {
		return err
	}
	name := manifest.Metadata.Name
	if name == "" {
		name = filepath.Base(filePath)
	}
	fmt.Fprintf(out, "%s is valid (store: %s, origin: %s)\n",
		name, manifest.Spec.BlobStore.Type, originOrDefault(manifest.Spec.Media.Origin))
	return nil
}

func originOrDefault(origin string) string {
	if origin == "" {
		return "default"
	}
	return origin
}
