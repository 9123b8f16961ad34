package ocr

import (
	"bytes"
	"image"

	_ "image/jpeg"
	_ "image/png"
)

// Region is a fractional crop window, all coordinates in [0,1].
type Region struct {
	X, Y, W, H float64
}

// Layout describes a recognized screenshot layout and the window where
// the primary text usually sits.
type Layout struct {
	Name       string
	TextRegion Region
}

var fullFrame = Region{X: 0, Y: 0, W: 1, H: 1}

// Aspect-ratio bands (width/height) for common screenshot sources.
// Bands overlap, so the scan order below is fixed and first match wins.
var layoutBands = []struct {
	lo, hi float64
	layout Layout
}{
	{0.50, 0.60, Layout{Name: "instagram", TextRegion: Region{X: 0, Y: 0.15, W: 1, H: 0.70}}},
	{0.55, 0.65, Layout{Name: "tiktok", TextRegion: Region{X: 0, Y: 0.10, W: 0.80, H: 0.80}}},
	{1.70, 1.90, Layout{Name: "youtube", TextRegion: Region{X: 0, Y: 0.60, W: 1, H: 0.40}}},
	{0.90, 2.10, Layout{Name: "twitter", TextRegion: Region{X: 0, Y: 0.10, W: 1, H: 0.85}}},
}

// DetectLayout maps image dimensions to a screenshot layout. Unknown
// ratios (and undecodable images, reported as 0x0) fall back to the
// general layout, which keeps the full frame.
func DetectLayout(width, height int) Layout {
	general := Layout{Name: "general", TextRegion: fullFrame}
	if width <= 0 || height <= 0 {
		return general
	}
	ratio := float64(width) / float64(height)
	for _, b := range layoutBands {
		if ratio >= b.lo && ratio <= b.hi {
			return b.layout
		}
	}
	return general
}

// imageDimensions reads the header of a PNG or JPEG. WebP has no stdlib
// decoder, so it reports 0x0 and skips layout-specific handling.
func imageDimensions(data []byte) (int, int) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0
	}
	return cfg.Width, cfg.Height
}
