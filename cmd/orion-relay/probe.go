package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/e7canasta/orion-relay/internal/config"
	"github.com/e7canasta/orion-relay/modules/framesupplier"
	streamcapture "github.com/e7canasta/orion-relay/modules/stream-capture"
)

type probeOptions struct {
	duration  time.Duration
	outputDir string
	maxFrames int
}

func newProbeCmd(opts *rootOptions) *cobra.Command {
	po := &probeOptions{}

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Connect to the camera, measure frame rate stability and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runProbe(ctx, cmd.OutOrStdout(), cfg, po)
		},
	}

	cmd.Flags().DurationVar(&po.duration, "duration", 5*time.Second, "warm-up measurement window")
	cmd.Flags().StringVarP(&po.outputDir, "output", "o", "", "directory to save captured frames (optional)")
	cmd.Flags().IntVar(&po.maxFrames, "max-frames", 10, "frames to save when --output is set")
	return cmd
}

func runProbe(ctx context.Context, out io.Writer, cfg *config.Config, po *probeOptions) error {
	if po.duration <= 0 {
		return fmt.Errorf("probe: --duration must be positive")
	}

	supplier := framesupplier.New()
	src, err := buildSource(cfg.Camera)
	if err != nil {
		return fmt.Errorf("camera source: %w", err)
	}
	adapter, err := streamcapture.NewAdapter(supplier, src, adapterConfig(cfg, src))
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "\n")
	fmt.Fprintf(out, "Probe configuration:\n")
	fmt.Fprintf(out, "  Source:        %s\n", cfg.Camera.Source)
	fmt.Fprintf(out, "  URL:           %s\n", streamcapture.RedactURL(cfg.Camera.URL))
	fmt.Fprintf(out, "  Warm-up:       %s\n", po.duration)
	if po.outputDir != "" {
		fmt.Fprintf(out, "  Output Dir:    %s (%d frames)\n", po.outputDir, po.maxFrames)
	} else {
		fmt.Fprintf(out, "  Output Dir:    (none - frames not saved)\n")
	}
	fmt.Fprintf(out, "\n")

	if err := adapter.Start(ctx); err != nil {
		return err
	}
	defer adapter.Stop()

	saved := 0
	if po.outputDir != "" {
		if err := os.MkdirAll(po.outputDir, 0o755); err != nil {
			return fmt.Errorf("probe: create output directory: %w", err)
		}
		saved, err = saveFrames(ctx, supplier, po.outputDir, po.maxFrames)
		if err != nil {
			return err
		}
	}

	stats, err := streamcapture.Warmup(ctx, supplier, po.duration)
	if err != nil && !errors.Is(err, streamcapture.ErrUnstable) {
		printIngest(out, adapter.Stats())
		return fmt.Errorf("probe: %w", err)
	}

	fmt.Fprintf(out, "╭─────────────────────────────────────────────────────────╮\n")
	fmt.Fprintf(out, "│ Warmup Complete\n")
	fmt.Fprintf(out, "├─────────────────────────────────────────────────────────┤\n")
	fmt.Fprintf(out, "│ Frames Received:    %6d of %d published\n", stats.FramesReceived, stats.FramesPublished)
	fmt.Fprintf(out, "│ Skipped:            %6.1f %%\n", stats.SkippedRatio*100)
	fmt.Fprintf(out, "│ Duration:           %6.1f seconds\n", stats.Duration.Seconds())
	fmt.Fprintf(out, "│ FPS Mean:           %6.2f fps\n", stats.FPSMean)
	fmt.Fprintf(out, "│ FPS StdDev:         %6.2f fps\n", stats.FPSStdDev)
	fmt.Fprintf(out, "│ FPS Range:          %6.1f - %.1f fps\n", stats.FPSMin, stats.FPSMax)
	fmt.Fprintf(out, "│ Jitter Mean:        %6.3f s\n", stats.JitterMean)
	fmt.Fprintf(out, "│ Jitter Max:         %6.3f s\n", stats.JitterMax)
	fmt.Fprintf(out, "│ Stable:             %6v\n", stats.IsStable)
	fmt.Fprintf(out, "│ Poll Interval:      %6s (suggested stream.poll_interval)\n", stats.SuggestedPollInterval)
	fmt.Fprintf(out, "╰─────────────────────────────────────────────────────────╯\n")
	if !stats.IsStable {
		fmt.Fprintf(out, "\nWARNING: stream is unstable (high FPS variance, jitter or skipped frames)\n")
	}
	if saved > 0 {
		fmt.Fprintf(out, "\nSaved %d frames to %s\n", saved, po.outputDir)
	}

	printIngest(out, adapter.Stats())
	return nil
}

func printIngest(out io.Writer, st streamcapture.IngestStats) {
	fmt.Fprintf(out, "\n")
	fmt.Fprintf(out, "Ingest (%s, uptime %s):\n", st.Source, st.Uptime.Round(time.Millisecond))
	fmt.Fprintf(out, "  Frames:        %d (%.2f MB, %d rejected)\n", st.Frames, float64(st.Bytes)/1024/1024, st.Rejected)
	fmt.Fprintf(out, "  Restarts:      %d\n", st.Restarts)
	if ss := st.SourceStats; ss != nil {
		fmt.Fprintf(out, "  Reconnects:    %d\n", ss.Reconnects)
		fmt.Fprintf(out, "  Connected:     %v\n", ss.Connected)
		for category, n := range ss.Errors {
			if n > 0 {
				fmt.Fprintf(out, "  Errors %-8s %d\n", category+":", n)
			}
		}
	}
	fmt.Fprintf(out, "\n")
}

// saveFrames writes the next n frames as they are published. Payloads are
// already encoded, so they are written unchanged.
func saveFrames(ctx context.Context, supplier framesupplier.Supplier, dir string, n int) (int, error) {
	cur := supplier.Subscribe("probe-save")
	defer cur.Close()

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	saved := 0
	for saved < n {
		f, err := cur.Next(ctx)
		if err != nil {
			if saved > 0 {
				slog.Warn("probe: stopped saving frames early", "saved", saved, "error", err)
				return saved, nil
			}
			return 0, fmt.Errorf("probe: no frames to save: %w", err)
		}
		if f == nil {
			break
		}
		name := filepath.Join(dir, fmt.Sprintf("frame_%06d%s", f.Seq, extension(f.ContentType)))
		if err := os.WriteFile(name, f.Data, 0o644); err != nil {
			return saved, fmt.Errorf("probe: save frame %d: %w", f.Seq, err)
		}
		slog.Debug("probe: frame saved", "path", name, "size", len(f.Data), "trace_id", f.TraceID)
		saved++
	}
	return saved, nil
}

func extension(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	default:
		return ".bin"
	}
}
