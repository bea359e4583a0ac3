package image

import (
	goimage "image"
)

// DefaultBlurThreshold is the empirical Laplacian variance below which an
// image is treated as blurry.
const DefaultBlurThreshold = 50.0

// Clarity is the result of the blur pre-filter.
type Clarity struct {
	Variance float64
	Clear    bool
}

// LaplacianVariance returns the variance of the 4-neighbour Laplacian
// response, reflecting at the borders.
func LaplacianVariance(g *goimage.Gray) float64 {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	n := float64(w * h)
	if n == 0 {
		return 0
	}
	var sum, sumSq float64
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := float64(grayAt(g, x, y))
			l := float64(grayAt(g, reflect101(x-1, w), y)) +
				float64(grayAt(g, reflect101(x+1, w), y)) +
				float64(grayAt(g, x, reflect101(y-1, h))) +
				float64(grayAt(g, x, reflect101(y+1, h))) -
				4*c
			sum += l
			sumSq += l * l
		}
	}
	mean := sum / n
	return sumSq/n - mean*mean
}

func reflect101(i, n int) int {
	if n == 1 {
		return 0
	}
	if i < 0 {
		return -i
	}
	if i >= n {
		return 2*n - 2 - i
	}
	return i
}
