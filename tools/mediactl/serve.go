package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Jari57/studio-agents-sub002/pkg/config"
	"github.com/Jari57/studio-agents-sub002/runtime/blob"
	"github.com/Jari57/studio-agents-sub002/runtime/logger"
	"github.com/Jari57/studio-agents-sub002/runtime/media"
	prommetrics "github.com/Jari57/studio-agents-sub002/runtime/metrics/prometheus"
	"github.com/Jari57/studio-agents-sub002/runtime/telemetry"
	"github.com/Jari57/studio-agents-sub002/runtime/version"
	"github.com/Jari57/studio-agents-sub002/runtime/voice"
	"github.com/Jari57/studio-agents-sub002/runtime/voice/bridge"
	"github.com/Jari57/studio-agents-sub002/server/mediaapi"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the media API server",
	Long: `Runs the HTTP API: payload resolution, blob handle serving and revocation,
voice I/O driven through the browser bridge, health and metrics.

Examples:
  mediactl serve
  mediactl serve --config runtime.yaml
  mediactl serve --addr :9000`,
	RunE: runServe,
}

var (
	serveConfig string
	serveAddr   string
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVarP(&serveConfig, "config", "c", "", "MediaRuntime manifest (defaults apply when omitted)")
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address, overrides spec.server.addr")
}

func runServe(cmd *cobra.Command, _ []string) error {
	manifest := config.Default()
	if serveConfig != "" {
		var err error
		if manifest, err = config.LoadConfig(serveConfig); err != nil {
			return err
		}
	}
	spec := &manifest.Spec
	if serveAddr != "" {
		spec.Server.Addr = serveAddr
	}
	logger.Configure(spec.Logging.LoggerConfig())
	version.LogStartup()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := buildRuntime(ctx, manifest)
	if err != nil {
		return err
	}
	defer rt.close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("media API listening", "addr", spec.Server.Addr)
		if err := rt.api.ListenAndServe(spec.Server.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("media API: %w", err)
		}
		return nil
	})
	if rt.exporter != nil {
		g.Go(func() error {
			logger.Info("metrics listening", "addr", spec.Server.MetricsAddr)
			if err := rt.exporter.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics exporter: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), spec.Server.ShutdownDuration())
		defer cancel()
		logger.Info("shutting down media API")
		err := rt.api.Shutdown(shutdownCtx)
		if rt.exporter != nil {
			err = errors.Join(err, rt.exporter.Shutdown(shutdownCtx))
		}
		return err
	})
	return g.Wait()
}

// runtimeParts holds everything serve wires together.
type runtimeParts struct {
	api      *mediaapi.Server
	exporter *prommetrics.Exporter
	store    blob.Store
	bridge   *bridge.Engine
	voice    *voice.IO
	tracing  *telemetry.Tracing
}

func buildRuntime(ctx context.Context, manifest *config.MediaRuntime) (*runtimeParts, error) {
	spec := &manifest.Spec
	tracing, err := telemetry.Setup(ctx, manifest.TracingConfig())
	if err != nil {
		return nil, fmt.Errorf("tracing: %w", err)
	}
	rt := &runtimeParts{tracing: tracing}

	store, err := spec.BlobStore.OpenStore()
	if err != nil {
		rt.close()
		return nil, err
	}
	rt.store = store

	metrics := prommetrics.NewMetricsListener()
	registry := blob.NewRegistry(spec.RegistryOptions(store, blob.WithListener(metrics.HandleBlob))...)

	policies, err := spec.Media.MediaPolicies()
	if err != nil {
		rt.close()
		return nil, err
	}
	resolver := media.NewResolver(media.Config{
		Registry: registry,
		Policies: policies,
		Listener: metrics.HandleMedia,
	})

	rt.bridge = bridge.New(bridge.Config{CheckOrigin: originChecker(spec.Server.AllowedOrigins)})
	events := mediaapi.NewVoiceEvents()
	voiceCfg, err := spec.Voice.VoiceConfig()
	if err != nil {
		rt.close()
		return nil, err
	}
	voiceCfg.Listener = func(ev voice.Event) {
		metrics.HandleVoice(ev)
		events.Publish(ev)
	}
	rt.voice = voice.New(rt.bridge.SpeechEngine(), voiceCfg)

	opts := []mediaapi.Option{
		mediaapi.WithBridge(rt.bridge),
		mediaapi.WithVoice(rt.voice, events),
		mediaapi.WithMaxBodySize(spec.Server.MaxBodyBytes),
	}
	opts = append(opts, mediaapi.WithTracer(tracing.Tracer()))
	if rl := spec.Server.RateLimit; rl != nil {
		opts = append(opts, mediaapi.WithRateLimit(rl.RequestsPerSecond, rl.Burst))
	}
	if spec.Server.MetricsAddr != "" {
		rt.exporter = prommetrics.NewExporter(spec.Server.MetricsAddr)
	} else {
		opts = append(opts, mediaapi.WithMetricsHandler(prommetrics.NewExporter("").Handler()))
	}
	rt.api = mediaapi.NewServer(resolver, opts...)
	return rt, nil
}

func (rt *runtimeParts) close() {
	if rt.voice != nil {
		rt.voice.Close()
	}
	if rt.bridge != nil {
		if err := rt.bridge.Close(); err != nil {
			logger.Warn("closing voice bridge", "error", err)
		}
	}
	if rt.store != nil {
		if err := rt.store.Close(); err != nil {
			logger.Warn("closing blob store", "error", err)
		}
	}
	if rt.tracing != nil {
		if err := rt.tracing.Shutdown(context.Background()); err != nil {
			logger.Warn("flushing traces", "error", err)
		}
	}
}

// originChecker admits bridge connections from the listed origins. An empty
// list falls back to the websocket same-origin check.
func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return nil
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(allowed, "*") || slices.Contains(allowed, origin)
	}
}
