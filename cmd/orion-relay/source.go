package main

import (
	"fmt"

	"github.com/e7canasta/orion-relay/internal/config"
	streamcapture "github.com/e7canasta/orion-relay/modules/stream-capture"
	"github.com/e7canasta/orion-relay/modules/stream-capture/gstreamer"
)

// buildSource maps the camera section to a streamcapture.Source.
func buildSource(cam config.CameraConfig) (streamcapture.Source, error) {
	reconnect := streamcapture.ReconnectConfig{
		MaxRetries:    cam.Reconnect.MaxRetries,
		RetryDelay:    cam.Reconnect.RetryDelay,
		MaxRetryDelay: cam.Reconnect.MaxRetryDelay,
	}

	switch cam.Source {
	case config.SourceRTSP:
		decoder, err := gstreamer.ParseDecoder(cam.Decoder)
		if err != nil {
			return nil, err
		}
		return gstreamer.NewRTSPSource(gstreamer.RTSPConfig{
			URL:         cam.URL,
			Username:    cam.Username,
			Password:    cam.Password,
			Transport:   cam.Transport,
			LatencyMS:   cam.LatencyMS,
			Decoder:     decoder,
			Width:       cam.Width,
			Height:      cam.Height,
			MaxFPS:      cam.MaxFPS,
			JPEGQuality: cam.JPEGQuality,
			Reconnect:   &reconnect,
		})

	case config.SourceMJPEG:
		return streamcapture.NewMJPEGSource(streamcapture.MJPEGConfig{
			URL:       cam.URL,
			Username:  cam.Username,
			Password:  cam.Password,
			Reconnect: &reconnect,
		})

	case config.SourceSynthetic:
		return streamcapture.NewSyntheticSource(streamcapture.SyntheticConfig{
			Width:   cam.Width,
			Height:  cam.Height,
			FPS:     cam.MaxFPS,
			Quality: cam.JPEGQuality,
		}), nil

	default:
		return nil, fmt.Errorf("unknown camera source %q", cam.Source)
	}
}

func adapterConfig(cfg *config.Config, src streamcapture.Source) streamcapture.AdapterConfig {
	return streamcapture.AdapterConfig{
		Owner:        cfg.InstanceID + "/" + src.Name(),
		RestartDelay: cfg.Camera.RestartDelay,
		Width:        cfg.Camera.Width,
		Height:       cfg.Camera.Height,
	}
}
