package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jmespath/go-jmespath"
	"github.com/spf13/cobra"

	"github.com/Jari57/studio-agents-sub002/pkg/config"
	"github.com/Jari57/studio-agents-sub002/runtime/blob"
	"github.com/Jari57/studio-agents-sub002/runtime/media"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve [payload]",
	Short: "Resolve a media payload into a reference",
	Long: `Resolves one payload the way the HTTP API does and prints the reference.

The payload is JSON, read from the argument, --file, or stdin. A bare string
that is not valid JSON is treated as text. Materialized blob handles only live
for the duration of the command, so --decode writes their bytes to a file.

Examples:
  mediactl resolve --kind image '"https://cdn.example/a.png"'
  mediactl resolve --kind audio --file response.json --select 'data[0]'
  cat tts.json | mediactl resolve --kind audio --decode out.mp3`,
	Args: cobra.MaximumNArgs(1),
	RunE: runResolve,
}

var (
	resolveKind   string
	resolveFile   string
	resolveSelect string
	resolveDecode string
	resolveConfig string
)

func init() {
	rootCmd.AddCommand(resolveCmd)
	resolveCmd.Flags().StringVarP(&resolveKind, "kind", "k", "image", "Media kind: image, audio, video")
	resolveCmd.Flags().StringVarP(&resolveFile, "file", "f", "", "Read the payload from a file")
	resolveCmd.Flags().StringVar(&resolveSelect, "select", "", "JMESPath expression selecting the payload")
	resolveCmd.Flags().StringVar(&resolveDecode, "decode", "", "Write the bytes of a materialized or data URI reference to this file")
	resolveCmd.Flags().StringVarP(&resolveConfig, "config", "c", "", "MediaRuntime manifest supplying media policies")
}

func runResolve(cmd *cobra.Command, args []string) error {
	kind, err := media.ParseKind(resolveKind)
	if err != nil {
		return err
	}

	raw, err := readPayload(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}
	payload, err := parseCLIPayload(raw, resolveSelect)
	if err != nil {
		return err
	}

	manifest := config.Default()
	if resolveConfig != "" {
		if manifest, err = config.LoadConfig(resolveConfig); err != nil {
			return err
		}
	}
	policies, err := manifest.Spec.Media.MediaPolicies()
	if err != nil {
		return err
	}
	registry := blob.NewRegistry(manifest.Spec.RegistryOptions(blob.NewMemoryStore())...)
	resolver := media.NewResolver(media.Config{Registry: registry, Policies: policies})

	ctx := cmd.Context()
	ref := resolver.Resolve(ctx, kind, payload)
	defer func() { _ = registry.RevokeObjectURL(ctx, ref.String()) }()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s\t%s\n", ref.Class(), ref)

	if resolveDecode == "" {
		return nil
	}
	obj, err := referenceBytes(cmd, registry, ref)
	if err != nil {
		return err
	}
	if err := os.WriteFile(resolveDecode, obj.Data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", resolveDecode, err)
	}
	fmt.Fprintf(out, "wrote %d bytes (%s) to %s\n", len(obj.Data), obj.MIMEType, resolveDecode)
	return nil
}

func readPayload(stdin io.Reader, args []string) ([]byte, error) {
	switch {
	case len(args) == 1:
		return []byte(args[0]), nil
	case resolveFile != "":
		data, err := os.ReadFile(resolveFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read payload file: %w", err)
		}
		return data, nil
	default:
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return data, nil
	}
}

// parseCLIPayload decodes JSON, falling back to plain text for inputs such
// as a bare URL or base64 string.
func parseCLIPayload(raw []byte, expr string) (media.Payload, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		if expr != "" {
			return nil, fmt.Errorf("--select needs a JSON payload: %w", err)
		}
		return media.Text(strings.TrimSpace(string(raw))), nil
	}
	if expr != "" {
		selected, err := jmespath.Search(expr, doc)
		if err != nil {
			return nil, fmt.Errorf("invalid --select expression: %w", err)
		}
		doc = selected
	}
	return media.FromAny(doc), nil
}

func referenceBytes(cmd *cobra.Command, registry *blob.Registry, ref media.Reference) (*blob.Object, error) {
	switch ref.Class() {
	case media.ClassLocal:
		return registry.Lookup(cmd.Context(), ref.String())
	case media.ClassDataURI:
		uri, err := blob.ParseDataURI(ref.String())
		if err != nil {
			return nil, err
		}
		data, err := uri.Decode()
		if err != nil {
			return nil, err
		}
		return &blob.Object{MIMEType: uri.MIMEType, Data: data}, nil
	default:
		return nil, fmt.Errorf("reference of class %s has no local bytes", ref.Class())
	}
}
