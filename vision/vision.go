// Package vision holds the camera-frame transforms shared by both
// processes: resolution scaling, lossy color compression, and 16-bit
// depth quantization. The robot applies them before publication to
// bound bandwidth; the remote side reverses the codecs on receipt.
package vision

import (
	"image"
	"math"

	"golang.org/x/image/draw"
)

// ScaleColor resizes img by factor using bilinear interpolation.
// A factor of 1 returns img unchanged.
func ScaleColor(img image.Image, factor float64) image.Image {
	if factor == 1 {
		return img
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, scaledDim(b.Dx(), factor), scaledDim(b.Dy(), factor)))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// ScaleDepth resizes a row-major depth grid by factor using nearest
// neighbor, so no depth value is invented across discontinuities.
// A factor of 1 returns the input slice unchanged. Returns the scaled
// grid and its dimensions.
func ScaleDepth(depth []float32, width, height int, factor float64) ([]float32, int, int) {
	if factor == 1 {
		return depth, width, height
	}
	dw, dh := scaledDim(width, factor), scaledDim(height, factor)
	out := make([]float32, dw*dh)
	for y := 0; y < dh; y++ {
		sy := sourceIndex(y, dh, height)
		for x := 0; x < dw; x++ {
			sx := sourceIndex(x, dw, width)
			out[y*dw+x] = depth[sy*width+sx]
		}
	}
	return out, dw, dh
}

// scaledDim returns dim scaled by factor, at least 1.
func scaledDim(dim int, factor float64) int {
	d := int(math.Round(float64(dim) * factor))
	if d < 1 {
		return 1
	}
	return d
}

// sourceIndex maps a destination pixel center back to a source index.
func sourceIndex(dst, dstDim, srcDim int) int {
	s := int((float64(dst) + 0.5) * float64(srcDim) / float64(dstDim))
	if s >= srcDim {
		return srcDim - 1
	}
	return s
}
