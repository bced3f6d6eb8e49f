package render

import (
	"bytes"
	"fmt"
	"image"
	_ "image/png"

	"github.com/yegors/radar-pi/internal/fsutil"
)

// Display surface size in pixels
const (
	Width  = 800
	Height = 480
)

// ValidatePNG checks that data is a PNG of exactly width x height
func ValidatePNG(data []byte, width, height int) error {
	if len(data) == 0 {
		return fmt.Errorf("empty screenshot")
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to decode screenshot: %w", err)
	}
	if format != "png" {
		return fmt.Errorf("screenshot is %s, want png", format)
	}
	if cfg.Width != width || cfg.Height != height {
		return fmt.Errorf("screenshot is %dx%d, want %dx%d", cfg.Width, cfg.Height, width, height)
	}
	return nil
}

// WriteOutput validates the screenshot and atomically replaces path with it.
// The previous image is untouched on any error.
func WriteOutput(path string, data []byte, width, height int) error {
	if err := ValidatePNG(data, width, height); err != nil {
		return err
	}
	if err := fsutil.WriteFileAtomic(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
