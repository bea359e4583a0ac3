package image

import (
	goimage "image"
	"image/draw"
	"slices"

	"github.com/disintegration/imaging"
)

const (
	medianSize         = 5
	adaptiveBlockSigma = 2.0 // Gaussian sigma of an 11x11 block
	adaptiveOffset     = 2
)

func toGray(img goimage.Image) *goimage.Gray {
	if g, ok := img.(*goimage.Gray); ok && g.Rect.Min == (goimage.Point{}) {
		return g
	}
	b := img.Bounds()
	gray := goimage.NewGray(goimage.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(gray, gray.Bounds(), img, b.Min, draw.Src)
	return gray
}

// otsu binarizes with the threshold that maximizes between-class variance.
func otsu(src *goimage.Gray) *goimage.Gray {
	var hist [256]int
	for _, p := range src.Pix {
		hist[p]++
	}
	total := len(src.Pix)
	var sum float64
	for i, n := range hist {
		sum += float64(i * n)
	}

	var sumB float64
	var weightB int
	var best float64
	threshold := 0
	for t := 0; t < 256; t++ {
		weightB += hist[t]
		if weightB == 0 {
			continue
		}
		weightF := total - weightB
		if weightF == 0 {
			break
		}
		sumB += float64(t * hist[t])
		meanB := sumB / float64(weightB)
		meanF := (sum - sumB) / float64(weightF)
		between := float64(weightB) * float64(weightF) * (meanB - meanF) * (meanB - meanF)
		if between > best {
			best = between
			threshold = t
		}
	}
	return thresholdAt(src, uint8(threshold))
}

func thresholdAt(src *goimage.Gray, t uint8) *goimage.Gray {
	dst := goimage.NewGray(src.Rect)
	for i, p := range src.Pix {
		if p > t {
			dst.Pix[i] = 255
		}
	}
	return dst
}

// median replaces each pixel by the median of its size x size neighbourhood,
// replicating edge pixels.
func median(src *goimage.Gray, size int) *goimage.Gray {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	dst := goimage.NewGray(src.Rect)
	r := size / 2
	window := make([]uint8, 0, size*size)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			window = window[:0]
			for dy := -r; dy <= r; dy++ {
				for dx := -r; dx <= r; dx++ {
					window = append(window, grayAt(src, clampInt(x+dx, w), clampInt(y+dy, h)))
				}
			}
			slices.Sort(window)
			dst.Pix[y*dst.Stride+x] = window[len(window)/2]
		}
	}
	return dst
}

// adaptiveThreshold keeps a pixel white when it is brighter than the
// Gaussian-weighted mean of its neighbourhood minus offset.
func adaptiveThreshold(src *goimage.Gray, sigma float64, offset int) *goimage.Gray {
	mean := toGray(imaging.Blur(src, sigma))
	dst := goimage.NewGray(src.Rect)
	w, h := src.Rect.Dx(), src.Rect.Dy()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if int(grayAt(src, x, y)) > int(grayAt(mean, x, y))-offset {
				dst.Pix[y*dst.Stride+x] = 255
			}
		}
	}
	return dst
}

// open is erosion followed by dilation with a size x size square. Sizes
// below 2 leave the image unchanged.
func open(src *goimage.Gray, size int) *goimage.Gray {
	if size < 2 {
		return src
	}
	return morph(morph(src, size, false), size, true)
}

func morph(src *goimage.Gray, size int, dilate bool) *goimage.Gray {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	dst := goimage.NewGray(src.Rect)
	lo := -(size - 1) / 2
	hi := size / 2
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := grayAt(src, x, y)
			for dy := lo; dy <= hi; dy++ {
				for dx := lo; dx <= hi; dx++ {
					n := grayAt(src, clampInt(x+dx, w), clampInt(y+dy, h))
					if dilate && n > v || !dilate && n < v {
						v = n
					}
				}
			}
			dst.Pix[y*dst.Stride+x] = v
		}
	}
	return dst
}

// printVariant is the denoise-then-binarize chain used for screenshot-like
// text.
func printVariant(gray *goimage.Gray, openingKernel int) *goimage.Gray {
	denoised := median(gray, medianSize)
	binary := adaptiveThreshold(denoised, adaptiveBlockSigma, adaptiveOffset)
	return open(binary, openingKernel)
}

func grayAt(g *goimage.Gray, x, y int) uint8 {
	return g.Pix[y*g.Stride+x]
}

func clampInt(v, n int) int {
	if v < 0 {
		return 0
	}
	if v >= n {
		return n - 1
	}
	return v
}
