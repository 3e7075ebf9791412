package stages

import (
	"image"
	"testing"

	"visualdiff/internal/logger"
	"visualdiff/internal/processing/ssim"
	"visualdiff/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapper_IdenticalPair(t *testing.T) {
	img := testutil.Fill(testutil.Solid(40, 40, testutil.Gray(30)), image.Rect(10, 10, 20, 30), testutil.Gray(220))
	pair := loadPair(t, img, img)

	simMap, score, err := NewMapper(logger.NewNop()).Map(pair, ssim.DefaultParams())
	require.NoError(t, err)

	assert.Equal(t, 1.0, score)
	assert.Equal(t, 40, simMap.Width)
	assert.Equal(t, 40, simMap.Height)
	assert.Len(t, simMap.Values, 1600)
}

func TestMapper_MapMatchesNormalizedSize(t *testing.T) {
	pair := loadPair(t, testutil.Solid(50, 50, white), testutil.Solid(100, 100, white))

	simMap, _, err := NewMapper(logger.NewNop()).Map(pair, ssim.DefaultParams())
	require.NoError(t, err)

	assert.Equal(t, 100, simMap.Width)
	assert.Equal(t, 100, simMap.Height)
}
