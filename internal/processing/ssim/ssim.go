// Package ssim computes per-pixel structural similarity between two
// equally sized grayscale grids.
package ssim

import (
	"fmt"
	"math"

	"visualdiff/internal/models"
)

// Params controls the SSIM window and stabilising constants.
type Params struct {
	WindowSize       int     `json:"window_size" yaml:"window_size"`
	K1               float64 `json:"k1" yaml:"k1"`
	K2               float64 `json:"k2" yaml:"k2"`
	DynamicRange     float64 `json:"dynamic_range" yaml:"dynamic_range"`
	Gaussian         bool    `json:"gaussian" yaml:"gaussian"`
	Sigma            float64 `json:"sigma" yaml:"sigma"`
	SampleCovariance bool    `json:"sample_covariance" yaml:"sample_covariance"`
}

// DefaultParams returns a 7x7 uniform window with K1=0.01, K2=0.03 over an
// 8-bit range and sample covariance.
func DefaultParams() Params {
	return Params{
		WindowSize:       7,
		K1:               0.01,
		K2:               0.03,
		DynamicRange:     255,
		Gaussian:         false,
		Sigma:            1.5,
		SampleCovariance: true,
	}
}

// Validate rejects parameter sets that cannot produce a meaningful map.
func (p Params) Validate() error {
	if p.WindowSize < 3 || p.WindowSize%2 == 0 {
		return models.NewError(models.ErrConfig, "", fmt.Errorf("window size must be odd and >= 3, got %d", p.WindowSize))
	}
	if p.K1 <= 0 || p.K2 <= 0 {
		return models.NewError(models.ErrConfig, "", fmt.Errorf("stabilisers must be positive, got K1=%g K2=%g", p.K1, p.K2))
	}
	if p.DynamicRange <= 0 {
		return models.NewError(models.ErrConfig, "", fmt.Errorf("dynamic range must be positive, got %g", p.DynamicRange))
	}
	if p.Gaussian && p.Sigma <= 0 {
		return models.NewError(models.ErrConfig, "", fmt.Errorf("gaussian sigma must be positive, got %g", p.Sigma))
	}
	return nil
}

// Grid is a row-major single-channel image.
type Grid struct {
	Width  int
	Height int
	Pix    []float64
}

func (g Grid) validate(name string) error {
	if g.Width <= 0 || g.Height <= 0 {
		return models.NewError(models.ErrDimension, name, fmt.Errorf("grid has invalid dimensions %dx%d", g.Width, g.Height))
	}
	if len(g.Pix) != g.Width*g.Height {
		return models.NewError(models.ErrDimension, name, fmt.Errorf("grid holds %d samples, want %d", len(g.Pix), g.Width*g.Height))
	}
	return nil
}

// EffectiveWindow clamps size to the largest odd value that fits both
// dimensions, never below 1.
func EffectiveWindow(size, width, height int) int {
	limit := width
	if height < limit {
		limit = height
	}
	if size > limit {
		size = limit
		if size%2 == 0 {
			size--
		}
	}
	if size < 1 {
		size = 1
	}
	return size
}

// Compute returns the similarity map of a and b together with its mean.
func Compute(a, b Grid, p Params) (*models.SimilarityMap, float64, error) {
	if err := p.Validate(); err != nil {
		return nil, 0, err
	}
	if err := a.validate("first"); err != nil {
		return nil, 0, err
	}
	if err := b.validate("second"); err != nil {
		return nil, 0, err
	}
	if a.Width != b.Width || a.Height != b.Height {
		return nil, 0, models.NewError(models.ErrDimension, "",
			fmt.Errorf("grid sizes differ: %dx%d vs %dx%d", a.Width, a.Height, b.Width, b.Height))
	}

	win := EffectiveWindow(p.WindowSize, a.Width, a.Height)

	var st *moments
	if p.Gaussian {
		st = gaussianMoments(a, b, win, p.Sigma)
	} else {
		st = uniformMoments(a, b, win)
	}

	n := float64(win * win)
	covNorm := 1.0
	if p.SampleCovariance && n > 1 {
		covNorm = n / (n - 1)
	}

	c1 := (p.K1 * p.DynamicRange) * (p.K1 * p.DynamicRange)
	c2 := (p.K2 * p.DynamicRange) * (p.K2 * p.DynamicRange)

	values := make([]float64, len(a.Pix))
	sum := 0.0
	for i := range values {
		ma, mb := st.meanA[i], st.meanB[i]
		va := covNorm * (st.meanAA[i] - ma*ma)
		vb := covNorm * (st.meanBB[i] - mb*mb)
		cov := covNorm * (st.meanAB[i] - ma*mb)

		num := (2*ma*mb + c1) * (2*cov + c2)
		den := (ma*ma + mb*mb + c1) * (va + vb + c2)

		values[i] = num / den
		sum += values[i]
	}

	return &models.SimilarityMap{Width: a.Width, Height: a.Height, Values: values},
		sum / float64(len(values)), nil
}

// moments holds windowed first and second order statistics per pixel.
type moments struct {
	meanA, meanB, meanAA, meanBB, meanAB []float64
}

// reflect maps an out-of-range index onto [0, n) mirroring about the edges
// with the edge sample repeated (dcba|abcd|dcba).
func reflect(i, n int) int {
	if n == 1 {
		return 0
	}
	period := 2 * n
	i %= period
	if i < 0 {
		i += period
	}
	if i >= n {
		i = period - i - 1
	}
	return i
}

// uniformMoments averages every statistic over a win x win box using
// summed-area tables over the reflected image.
func uniformMoments(a, b Grid, win int) *moments {
	r := win / 2
	w, h := a.Width, a.Height
	pw, ph := w+2*r, h+2*r
	stride := pw + 1

	sa := make([]float64, stride*(ph+1))
	sb := make([]float64, stride*(ph+1))
	saa := make([]float64, stride*(ph+1))
	sbb := make([]float64, stride*(ph+1))
	sab := make([]float64, stride*(ph+1))

	for y := 0; y < ph; y++ {
		sy := reflect(y-r, h)
		var ra, rb, raa, rbb, rab float64
		for x := 0; x < pw; x++ {
			idx := sy*w + reflect(x-r, w)
			va, vb := a.Pix[idx], b.Pix[idx]
			ra += va
			rb += vb
			raa += va * va
			rbb += vb * vb
			rab += va * vb

			o := (y+1)*stride + x + 1
			above := y*stride + x + 1
			sa[o] = sa[above] + ra
			sb[o] = sb[above] + rb
			saa[o] = saa[above] + raa
			sbb[o] = sbb[above] + rbb
			sab[o] = sab[above] + rab
		}
	}

	n := float64(win * win)
	st := newMoments(w * h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			// Box [x, x+win) x [y, y+win) in padded coordinates.
			tl := y*stride + x
			tr := y*stride + x + win
			bl := (y+win)*stride + x
			br := (y+win)*stride + x + win
			i := y*w + x
			st.meanA[i] = (sa[br] - sa[tr] - sa[bl] + sa[tl]) / n
			st.meanB[i] = (sb[br] - sb[tr] - sb[bl] + sb[tl]) / n
			st.meanAA[i] = (saa[br] - saa[tr] - saa[bl] + saa[tl]) / n
			st.meanBB[i] = (sbb[br] - sbb[tr] - sbb[bl] + sbb[tl]) / n
			st.meanAB[i] = (sab[br] - sab[tr] - sab[bl] + sab[tl]) / n
		}
	}
	return st
}

// gaussianMoments weights every statistic with a separable normalised
// Gaussian kernel of the given width.
func gaussianMoments(a, b Grid, win int, sigma float64) *moments {
	kernel := gaussianKernel(win, sigma)
	size := len(a.Pix)

	aa := make([]float64, size)
	bb := make([]float64, size)
	ab := make([]float64, size)
	for i := range a.Pix {
		aa[i] = a.Pix[i] * a.Pix[i]
		bb[i] = b.Pix[i] * b.Pix[i]
		ab[i] = a.Pix[i] * b.Pix[i]
	}

	scratch := make([]float64, size)
	st := newMoments(size)
	filterSeparable(a.Pix, st.meanA, scratch, a.Width, a.Height, kernel)
	filterSeparable(b.Pix, st.meanB, scratch, a.Width, a.Height, kernel)
	filterSeparable(aa, st.meanAA, scratch, a.Width, a.Height, kernel)
	filterSeparable(bb, st.meanBB, scratch, a.Width, a.Height, kernel)
	filterSeparable(ab, st.meanAB, scratch, a.Width, a.Height, kernel)
	return st
}

func gaussianKernel(win int, sigma float64) []float64 {
	r := win / 2
	kernel := make([]float64, win)
	total := 0.0
	for i := range kernel {
		d := float64(i - r)
		kernel[i] = math.Exp(-(d * d) / (2 * sigma * sigma))
		total += kernel[i]
	}
	for i := range kernel {
		kernel[i] /= total
	}
	return kernel
}

// filterSeparable convolves src horizontally into scratch and vertically into
// dst with reflected borders.
func filterSeparable(src, dst, scratch []float64, w, h int, kernel []float64) {
	r := len(kernel) / 2
	for y := 0; y < h; y++ {
		row := y * w
		for x := 0; x < w; x++ {
			acc := 0.0
			for k, weight := range kernel {
				acc += weight * src[row+reflect(x+k-r, w)]
			}
			scratch[row+x] = acc
		}
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			acc := 0.0
			for k, weight := range kernel {
				acc += weight * scratch[reflect(y+k-r, h)*w+x]
			}
			dst[y*w+x] = acc
		}
	}
}

func newMoments(size int) *moments {
	return &moments{
		meanA:  make([]float64, size),
		meanB:  make([]float64, size),
		meanAA: make([]float64, size),
		meanBB: make([]float64, size),
		meanAB: make([]float64, size),
	}
}
