package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/e7canasta/orion-relay/internal/config"
)

type rootOptions struct {
	configPath string
	debug      bool
	v          *viper.Viper
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{v: config.NewViper()}

	cmd := &cobra.Command{
		Use:           "orion-relay",
		Short:         "Relay a live camera to browsers as an MJPEG stream",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "path to YAML config (default: synthetic test pattern)")
	flags.BoolVar(&opts.debug, "debug", false, "enable debug logging")

	// Camera keys shared by serve and probe; see config.Override.
	flags.String("source", "", "camera source: rtsp, mjpeg, synthetic")
	flags.String("url", "", "camera URL (rtsp:// or http://)")
	flags.String("decoder", "", "H.264 decoder: auto, nvidia, vaapi, software")
	flags.Float64("max-fps", 0, "camera frame rate ceiling (0 = native)")
	_ = opts.v.BindPFlag("camera.source", flags.Lookup("source"))
	_ = opts.v.BindPFlag("camera.url", flags.Lookup("url"))
	_ = opts.v.BindPFlag("camera.decoder", flags.Lookup("decoder"))
	_ = opts.v.BindPFlag("camera.max_fps", flags.Lookup("max-fps"))

	cmd.AddCommand(newServeCmd(opts), newProbeCmd(opts), newVersionCmd())
	return cmd
}

// load reads the config file (or the built-in default), applies flag and
// environment overrides and installs the slog default handler.
func (o *rootOptions) load() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if o.configPath == "" {
		cfg = config.Default()
	} else if cfg, err = config.Load(o.configPath); err != nil {
		return nil, err
	}

	if err := config.Override(cfg, o.v); err != nil {
		return nil, fmt.Errorf("config overrides: %w", err)
	}
	if o.debug {
		cfg.Log.Level = "debug"
	}

	slog.SetDefault(newLogger(cfg.Log))
	slog.Debug("main: configuration loaded",
		"path", o.configPath,
		"instance_id", cfg.InstanceID,
		"source", cfg.Camera.Source,
	)
	return cfg, nil
}
