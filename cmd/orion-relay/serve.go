package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/e7canasta/orion-relay/internal/config"
	"github.com/e7canasta/orion-relay/internal/health"
	"github.com/e7canasta/orion-relay/internal/server"
	"github.com/e7canasta/orion-relay/internal/telemetry"
	"github.com/e7canasta/orion-relay/modules/framesupplier"
	streamcapture "github.com/e7canasta/orion-relay/modules/stream-capture"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Capture the camera and serve the live stream over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg)
		},
	}

	flags := cmd.Flags()
	flags.String("addr", "", "HTTP listen address (default :8080)")
	flags.Duration("poll-interval", 0, "per-client frame poll interval (default 33ms)")
	flags.Bool("notify", false, "wake sessions on publish instead of polling")
	flags.String("mqtt-broker", "", "MQTT broker URL for health telemetry")
	_ = opts.v.BindPFlag("http.addr", flags.Lookup("addr"))
	_ = opts.v.BindPFlag("stream.poll_interval", flags.Lookup("poll-interval"))
	_ = opts.v.BindPFlag("stream.notify", flags.Lookup("notify"))
	_ = opts.v.BindPFlag("mqtt.broker", flags.Lookup("mqtt-broker"))

	return cmd
}

// runServe wires Source → Adapter → Supplier → Server (+ telemetry) and
// blocks until ctx is cancelled or a component fails.
func runServe(ctx context.Context, cfg *config.Config) error {
	slog.Info("main: starting orion-relay",
		"version", version,
		"instance_id", cfg.InstanceID,
		"source", cfg.Camera.Source,
		"url", streamcapture.RedactURL(cfg.Camera.URL),
		"addr", cfg.HTTP.Addr,
	)

	supplier := framesupplier.New()

	src, err := buildSource(cfg.Camera)
	if err != nil {
		return fmt.Errorf("camera source: %w", err)
	}
	adapter, err := streamcapture.NewAdapter(supplier, src, adapterConfig(cfg, src))
	if err != nil {
		return err
	}
	// A second writer on the supplier is a configuration error: fail the process.
	if err := adapter.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := adapter.Stop(); err != nil {
			slog.Warn("main: ingest stop", "error", err)
		}
	}()

	checker := health.NewChecker(cfg.InstanceID, supplier, adapter, cfg.Stream.StaleAfter)
	srv := server.New(server.Config{
		Addr:            cfg.HTTP.Addr,
		CORSOrigins:     cfg.HTTP.CORSOrigins,
		ShutdownTimeout: cfg.HTTP.ShutdownTimeout,
		DisableWS:       cfg.HTTP.DisableWS,
		PollInterval:    cfg.Stream.PollInterval,
		Notify:          cfg.Stream.Notify,
	}, supplier, checker)

	// Build the publisher before anything runs, so a bad telemetry config
	// fails startup instead of leaving the HTTP server behind.
	var pub *telemetry.Publisher
	if cfg.MQTT.Broker != "" {
		pub, err = telemetry.NewPublisher(cfg.MQTT, checker.Check)
		if err != nil {
			return err
		}
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return srv.Run(ctx)
	})

	if pub != nil {
		g.Go(func() error {
			// Telemetry is best effort: paho keeps retrying in the background.
			if err := pub.Connect(ctx); err != nil {
				slog.Warn("main: telemetry broker unreachable, retrying in background", "error", err)
			}
			defer pub.Disconnect()
			return pub.Run(ctx)
		})
	}

	err = g.Wait()

	st := checker.Check()
	slog.Info("main: orion-relay stopped",
		"published", st.Published,
		"overwritten", st.Overwritten,
		"ingest_restarts", st.Ingest.Restarts,
		"uptime_s", st.UptimeSeconds,
	)
	return err
}
