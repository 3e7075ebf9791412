package threshold

import (
	"math"

	"visualdiff/internal/models"
	"visualdiff/internal/processing/histogram"
)

const (
	Foreground uint8 = 255
	Background uint8 = 0
)

// Rescale maps similarity values in [-1, 1] onto 8-bit levels by truncating
// v*255. Negative values and NaN become 0.
func Rescale(values []float64) []uint8 {
	out := make([]uint8, len(values))
	for i, v := range values {
		scaled := v * 255
		switch {
		case math.IsNaN(scaled) || scaled <= 0:
			out[i] = 0
		case scaled >= 255:
			out[i] = 255
		default:
			out[i] = uint8(scaled)
		}
	}
	return out
}

// Otsu returns the level maximising between-class variance. The first
// maximum wins and a histogram with fewer than two occupied levels yields 0,
// matching OpenCV's THRESH_OTSU.
func Otsu(hist histogram.Histogram) uint8 {
	total := hist.Total()
	if total == 0 {
		return 0
	}

	sum := 0.0
	for i, count := range hist {
		sum += float64(i) * float64(count)
	}

	sumB := 0.0
	wB := 0
	maxVariance := 0.0
	best := 0

	for i := 0; i < histogram.Bins; i++ {
		wB += hist[i]
		if wB == 0 {
			continue
		}

		wF := total - wB
		if wF == 0 {
			break
		}

		sumB += float64(i) * float64(hist[i])
		mB := sumB / float64(wB)
		mF := (sum - sumB) / float64(wF)

		varBetween := float64(wB) * float64(wF) * (mB - mF) * (mB - mF)

		if varBetween > maxVariance {
			maxVariance = varBetween
			best = i
		}
	}

	return uint8(best)
}

// BinarizeInverted maps v > t to Background and everything else to
// Foreground, so low similarity becomes foreground.
func BinarizeInverted(pix []uint8, t uint8) []uint8 {
	out := make([]uint8, len(pix))
	for i, v := range pix {
		if v > t {
			out[i] = Background
		} else {
			out[i] = Foreground
		}
	}
	return out
}

// DifferenceMask runs rescale, Otsu selection and inverted binarization over
// a similarity map.
func DifferenceMask(m *models.SimilarityMap) (*models.BinaryMask, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	levels := Rescale(m.Values)
	t := Otsu(histogram.Build(levels))

	return &models.BinaryMask{
		Width:     m.Width,
		Height:    m.Height,
		Pix:       BinarizeInverted(levels, t),
		Threshold: t,
	}, nil
}
