package streaming

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"os"
)

// loadFallbackImage returns the JPEG served when no camera frame is
// available. A configured file wins; otherwise a plain dark card is
// generated so clients always receive valid JPEG data.
func loadFallbackImage(path string, width, height int) []byte {
	if path != "" {
		if data, err := os.ReadFile(path); err == nil && len(data) > 0 {
			return data
		}
	}
	return generateFallbackImage(width, height)
}

func generateFallbackImage(width, height int) []byte {
	if width <= 0 || height <= 0 {
		width, height = 640, 480
	}
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	fill := color.RGBA{R: 0x20, G: 0x24, B: 0x28, A: 0xff}
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, fill)
		}
	}
	var buf bytes.Buffer
	jpeg.Encode(&buf, img, &jpeg.Options{Quality: 60})
	return buf.Bytes()
}
