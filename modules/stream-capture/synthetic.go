package streamcapture

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"log/slog"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// SyntheticConfig contains configuration for the test pattern source.
type SyntheticConfig struct {
	// Width and Height of the generated frames (default: 640x360)
	Width  int
	Height int
	// FPS is the generation rate (default: 10, max: 60)
	FPS float64
	// Quality is the JPEG quality 1-100 (default: 75)
	Quality int
	// Label is drawn on every frame (default: "orion-relay")
	Label string
}

// SyntheticSource generates JPEG test pattern frames at a fixed rate.
//
// Each frame shows color bars, a bar sweeping across the image and a
// frame counter with a wall clock timestamp, so a stalled stream is obvious
// in the browser. Used for demos, tests and `camera.source: synthetic`.
type SyntheticSource struct {
	cfg SyntheticConfig
}

// NewSyntheticSource creates a synthetic source, applying defaults.
func NewSyntheticSource(cfg SyntheticConfig) *SyntheticSource {
	if cfg.Width <= 0 {
		cfg.Width = 640
	}
	if cfg.Height <= 0 {
		cfg.Height = 360
	}
	if cfg.FPS <= 0 {
		cfg.FPS = 10
	}
	if cfg.FPS > 60 {
		cfg.FPS = 60
	}
	if cfg.Quality <= 0 || cfg.Quality > 100 {
		cfg.Quality = 75
	}
	if cfg.Label == "" {
		cfg.Label = "orion-relay"
	}
	return &SyntheticSource{cfg: cfg}
}

// Name implements Source.
func (s *SyntheticSource) Name() string { return "synthetic" }

// Run implements Source. Generates frames until ctx is done.
func (s *SyntheticSource) Run(ctx context.Context, handler FrameHandler) error {
	frameDuration := time.Duration(float64(time.Second) / s.cfg.FPS)
	ticker := time.NewTicker(frameDuration)
	defer ticker.Stop()

	slog.Info("stream-capture: synthetic source starting",
		"width", s.cfg.Width,
		"height", s.cfg.Height,
		"fps", s.cfg.FPS,
	)

	var n uint64
	for {
		select {
		case <-ctx.Done():
			slog.Debug("stream-capture: synthetic source stopped", "frames", n)
			return nil
		case now := <-ticker.C:
			data, err := s.Render(n, now)
			if err != nil {
				return fmt.Errorf("stream-capture: render test pattern: %w", err)
			}
			n++
			if err := handler(data, ContentTypeJPEG); err != nil {
				slog.Debug("stream-capture: synthetic frame rejected", "error", err)
			}
		}
	}
}

var colorBars = []color.RGBA{
	{192, 192, 192, 255}, // white
	{192, 192, 0, 255},   // yellow
	{0, 192, 192, 255},   // cyan
	{0, 192, 0, 255},     // green
	{192, 0, 192, 255},   // magenta
	{192, 0, 0, 255},     // red
	{0, 0, 192, 255},     // blue
}

// Render encodes test pattern frame number n stamped with ts.
func (s *SyntheticSource) Render(n uint64, ts time.Time) ([]byte, error) {
	w, h := s.cfg.Width, s.cfg.Height
	img := image.NewRGBA(image.Rect(0, 0, w, h))

	barWidth := w / len(colorBars)
	if barWidth == 0 {
		barWidth = 1
	}
	for i, c := range colorBars {
		r := image.Rect(i*barWidth, 0, (i+1)*barWidth, h*2/3)
		if i == len(colorBars)-1 {
			r.Max.X = w
		}
		draw.Draw(img, r, image.NewUniform(c), image.Point{}, draw.Src)
	}
	draw.Draw(img, image.Rect(0, h*2/3, w, h), image.NewUniform(color.RGBA{16, 16, 16, 255}), image.Point{}, draw.Src)

	// Sweep bar: one full pass every 2 seconds at the configured rate.
	period := uint64(2 * s.cfg.FPS)
	if period == 0 {
		period = 1
	}
	x := int(n%period) * w / int(period)
	draw.Draw(img, image.Rect(x, h*2/3, x+w/32+1, h), image.NewUniform(color.White), image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.White),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(8, h*2/3+20),
	}
	d.DrawString(fmt.Sprintf("%s  #%d  %s", s.cfg.Label, n, ts.Format("15:04:05.000")))

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: s.cfg.Quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
