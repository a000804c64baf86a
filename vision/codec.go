package vision

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
)

// EncodeColor compresses img as JPEG at the given quality (1-100).
func EncodeColor(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode color image: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeColor decompresses a JPEG color image.
func DecodeColor(data []byte) (image.Image, error) {
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode color image: %w", err)
	}
	return img, nil
}

// EncodeDepth quantizes a row-major depth grid in meters to 16-bit
// units of metersPerUnit each and compresses it as a lossless
// grayscale PNG. Non-finite and non-positive depths encode as 0
// (no reading); depths beyond the 16-bit range clamp to the maximum.
func EncodeDepth(depth []float32, width, height int, metersPerUnit float64) ([]byte, error) {
	if metersPerUnit <= 0 {
		return nil, fmt.Errorf("depth scaling must be positive, got %v", metersPerUnit)
	}
	if len(depth) != width*height {
		return nil, fmt.Errorf("depth grid has %d values for %dx%d image", len(depth), width, height)
	}

	img := image.NewGray16(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetGray16(x, y, color.Gray16{Y: quantizeDepth(depth[y*width+x], metersPerUnit)})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode depth image: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeDepth decompresses a 16-bit grayscale PNG depth image back to
// meters. Returns the grid and its dimensions.
func DecodeDepth(data []byte, metersPerUnit float64) ([]float32, int, int, error) {
	if metersPerUnit <= 0 {
		return nil, 0, 0, fmt.Errorf("depth scaling must be positive, got %v", metersPerUnit)
	}

	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, 0, 0, fmt.Errorf("decode depth image: %w", err)
	}
	gray, ok := img.(*image.Gray16)
	if !ok {
		return nil, 0, 0, errors.New("depth image is not 16-bit grayscale")
	}

	b := gray.Bounds()
	w, h := b.Dx(), b.Dy()
	depth := make([]float32, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			depth[y*w+x] = float32(float64(gray.Gray16At(b.Min.X+x, b.Min.Y+y).Y) * metersPerUnit)
		}
	}
	return depth, w, h, nil
}

// quantizeDepth converts meters to transmitted units.
func quantizeDepth(meters float32, metersPerUnit float64) uint16 {
	m := float64(meters)
	if math.IsNaN(m) || math.IsInf(m, 0) || m <= 0 {
		return 0
	}
	units := math.Round(m / metersPerUnit)
	if units > math.MaxUint16 {
		return math.MaxUint16
	}
	return uint16(units)
}
