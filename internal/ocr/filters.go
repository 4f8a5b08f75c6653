package ocr

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/disintegration/imaging"
)

// binomial 5-tap kernel; the separable 2-D kernel sums to 256.
var gaussKernel = [5]uint32{1, 4, 6, 4, 1}

// Grayscale converts img to 8-bit luma (BT.601 weights). Transparent areas are
// composited over white first so scanned cut-outs read as paper, not ink.
func Grayscale(img image.Image) *image.Gray {
	b := img.Bounds()
	flat := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(flat, flat.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	draw.Draw(flat, flat.Bounds(), img, b.Min, draw.Over)

	g := imaging.Grayscale(flat)
	out := image.NewGray(flat.Bounds())
	for i := 0; i < len(out.Pix); i++ {
		out.Pix[i] = g.Pix[i*4]
	}
	return out
}

// GaussianBlur5 applies a separable 5x5 binomial blur with reflect-101 borders.
// Integer arithmetic only, so the output is identical across runs and platforms.
func GaussianBlur5(src *image.Gray) *image.Gray {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	if w == 0 || h == 0 {
		return out
	}

	tmp := make([]uint32, w*h)
	for y := 0; y < h; y++ {
		row := src.Pix[y*src.Stride : y*src.Stride+w]
		for x := 0; x < w; x++ {
			var sum uint32
			for k := -2; k <= 2; k++ {
				sum += gaussKernel[k+2] * uint32(row[reflect101(x+k, w)])
			}
			tmp[y*w+x] = sum
		}
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var sum uint32
			for k := -2; k <= 2; k++ {
				sum += gaussKernel[k+2] * tmp[reflect101(y+k, h)*w+x]
			}
			out.Pix[y*out.Stride+x] = uint8((sum + 128) >> 8)
		}
	}
	return out
}

// reflect101 mirrors i into [0,n) without repeating the edge pixel (dcb|abcd|cba).
func reflect101(i, n int) int {
	if n == 1 {
		return 0
	}
	for i < 0 || i >= n {
		if i < 0 {
			i = -i
		}
		if i >= n {
			i = 2*n - 2 - i
		}
	}
	return i
}

// OtsuThreshold picks the global threshold that maximizes between-class variance.
// A uniform image yields 0.
func OtsuThreshold(src *image.Gray) uint8 {
	var hist [256]uint64
	w, h := src.Rect.Dx(), src.Rect.Dy()
	for y := 0; y < h; y++ {
		for _, p := range src.Pix[y*src.Stride : y*src.Stride+w] {
			hist[p]++
		}
	}
	total := uint64(w * h)
	if total == 0 {
		return 0
	}

	var sumAll uint64
	for i, c := range hist {
		sumAll += uint64(i) * c
	}

	var (
		wB, sumB uint64
		best     float64
		thresh   uint8
	)
	for t := 0; t < 256; t++ {
		wB += hist[t]
		if wB == 0 {
			continue
		}
		wF := total - wB
		if wF == 0 {
			break
		}
		sumB += uint64(t) * hist[t]
		// explicit conversions keep each step rounded, so no fused ops change the result
		mB := float64(sumB) / float64(wB)
		mF := float64(sumAll-sumB) / float64(wF)
		d := float64(mB - mF)
		v := float64(float64(wB)*float64(wF)) * float64(d*d)
		if v > best {
			best, thresh = v, uint8(t)
		}
	}
	return thresh
}

// Binarize maps pixels strictly above t to 255 and the rest to 0.
func Binarize(src *image.Gray, t uint8) *image.Gray {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		in := src.Pix[y*src.Stride : y*src.Stride+w]
		dst := out.Pix[y*out.Stride : y*out.Stride+w]
		for x, p := range in {
			if p > t {
				dst[x] = 255
			}
		}
	}
	return out
}
