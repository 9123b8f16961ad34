package ocr

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
)

// preprocess crops the image to the layout's primary text region and
// converts it to grayscale before handing it to a provider. Images the
// standard decoders cannot read (WebP) pass through unchanged; the
// providers accept them as-is.
func preprocess(data []byte, layout Layout) ([]byte, []string) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return data, nil
	}

	var steps []string
	bounds := src.Bounds()

	if layout.TextRegion != fullFrame {
		crop := regionRect(bounds, layout.TextRegion)
		if crop.Dx() > 0 && crop.Dy() > 0 {
			bounds = crop
			steps = append(steps, "cropTextRegion")
		}
	}

	gray := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			gray.Set(x-bounds.Min.X, y-bounds.Min.Y, color.GrayModel.Convert(src.At(x, y)))
		}
	}
	steps = append(steps, "grayscale")

	var buf bytes.Buffer
	if err := png.Encode(&buf, gray); err != nil {
		return data, nil
	}
	// Preprocessing is only worth it when it shrinks the payload.
	if buf.Len() >= len(data) {
		return data, nil
	}
	return buf.Bytes(), steps
}

func regionRect(bounds image.Rectangle, r Region) image.Rectangle {
	w := float64(bounds.Dx())
	h := float64(bounds.Dy())
	return image.Rect(
		bounds.Min.X+int(r.X*w),
		bounds.Min.Y+int(r.Y*h),
		bounds.Min.X+int((r.X+r.W)*w),
		bounds.Min.Y+int((r.Y+r.H)*h),
	).Intersect(bounds)
}
