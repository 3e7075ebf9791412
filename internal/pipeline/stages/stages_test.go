package stages

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"visualdiff/internal/logger"
	"visualdiff/internal/models"
	"visualdiff/internal/opencv/safe"
	"visualdiff/internal/testutil"

	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

// loadPair normalizes two synthetic images through the real loader.
func loadPair(t *testing.T, first, second image.Image) *models.NormalizedPair {
	t.Helper()
	pair, err := NewLoader(logger.NewNop()).Load(testutil.PNG(t, first), testutil.PNG(t, second), gocv.InterpolationLinear)
	require.NoError(t, err)
	t.Cleanup(pair.Close)
	return pair
}

// maskWith returns a w x h mask with every rect set to foreground.
func maskWith(w, h int, rects ...image.Rectangle) *models.BinaryMask {
	mask := &models.BinaryMask{Width: w, Height: h, Pix: make([]uint8, w*h)}
	for _, r := range rects {
		for y := r.Min.Y; y < r.Max.Y; y++ {
			for x := r.Min.X; x < r.Max.X; x++ {
				mask.Pix[y*w+x] = 255
			}
		}
	}
	return mask
}

// pixel reads one channel of m at (row, col).
func pixel(m *safe.Mat, row, col, channel int) uint8 {
	mat := m.GetMat()
	if m.Channels() == 1 {
		return mat.GetUCharAt(row, col)
	}
	return mat.GetUCharAt3(row, col, channel)
}

type failingStore struct{}

func (failingStore) Save(string, []byte) (string, error) {
	return "", errors.New("disk full")
}

var (
	white = testutil.Gray(255)
	black = testutil.Gray(0)
	green = color.RGBA{G: 255, A: 255}
)
