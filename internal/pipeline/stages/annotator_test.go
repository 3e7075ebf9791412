package stages

import (
	"errors"
	"image"
	"testing"

	"visualdiff/internal/logger"
	"visualdiff/internal/models"
	"visualdiff/internal/opencv/safe"
	"visualdiff/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultAnnotateOptions() AnnotateOptions {
	return AnnotateOptions{
		BoxThickness: DefaultBoxThickness,
		FirstColor:   DefaultFirstColor,
		SecondColor:  DefaultSecondColor,
	}
}

func TestAnnotator_ClassifiesByMeanIntensity(t *testing.T) {
	block := image.Rect(10, 10, 30, 30)
	first := testutil.Fill(testutil.Solid(60, 60, black), block, white)
	second := testutil.Solid(60, 60, black)
	pair := loadPair(t, first, second)

	regions := []models.Region{
		{Bounds: block, Area: 400},
		{Bounds: image.Rect(40, 40, 50, 50), Area: 100},
	}

	annotated, err := NewAnnotator(logger.NewNop()).Annotate(pair, regions, defaultAnnotateOptions())
	require.NoError(t, err)
	defer annotated.Close()

	require.Len(t, annotated.Verdicts, 2)
	assert.Equal(t, models.FirstDominant, annotated.Verdicts[0].Dominance)
	assert.Equal(t, DefaultFirstColor, annotated.Verdicts[0].Color)
	assert.InDelta(t, 255, annotated.Verdicts[0].FirstMean, 0.5)
	assert.InDelta(t, 0, annotated.Verdicts[0].SecondMean, 0.5)

	// Both crops are black: a tie goes to the second image.
	assert.Equal(t, models.SecondDominant, annotated.Verdicts[1].Dominance)
	assert.Equal(t, DefaultSecondColor, annotated.Verdicts[1].Color)
}

func TestAnnotator_TieIsAlwaysSecondDominant(t *testing.T) {
	img := testutil.Solid(20, 20, testutil.Gray(127))
	pair := loadPair(t, img, img)
	regions := []models.Region{{Bounds: image.Rect(0, 0, 20, 20), Area: 400}}

	for i := 0; i < 5; i++ {
		annotated, err := NewAnnotator(logger.NewNop()).Annotate(pair, regions, defaultAnnotateOptions())
		require.NoError(t, err)
		require.Equal(t, models.SecondDominant, annotated.Verdicts[0].Dominance)
		annotated.Close()
	}
}

func TestAnnotator_DrawsOnClonesOnly(t *testing.T) {
	img := testutil.Solid(40, 40, black)
	pair := loadPair(t, img, img)
	contour := []image.Point{{10, 10}, {10, 20}, {20, 20}, {20, 10}}
	regions := []models.Region{{Bounds: image.Rect(10, 10, 21, 21), Area: 121, Contour: contour}}

	annotated, err := NewAnnotator(logger.NewNop()).Annotate(pair, regions, defaultAnnotateOptions())
	require.NoError(t, err)
	defer annotated.Close()

	// Box drawn on both annotated panels in the verdict color (second, red).
	assert.Equal(t, uint8(255), pixel(annotated.First, 10, 10, 2))
	assert.Equal(t, uint8(255), pixel(annotated.Second, 10, 10, 2))

	// Overlay filled inside the contour.
	assert.Equal(t, uint8(255), pixel(annotated.Overlay, 15, 15, 2))

	// Inputs untouched.
	for _, m := range []*safe.Mat{pair.FirstColor, pair.SecondColor} {
		assert.Zero(t, pixel(m, 10, 10, 2))
	}
}

func TestAnnotator_BoxReachesFarEdge(t *testing.T) {
	img := testutil.Solid(40, 40, black)
	pair := loadPair(t, img, img)
	opts := defaultAnnotateOptions()
	opts.BoxThickness = 1
	regions := []models.Region{{Bounds: image.Rect(10, 10, 21, 21), Area: 121}}

	annotated, err := NewAnnotator(logger.NewNop()).Annotate(pair, regions, opts)
	require.NoError(t, err)
	defer annotated.Close()

	for _, m := range []*safe.Mat{annotated.First, annotated.Second} {
		assert.Equal(t, uint8(255), pixel(m, 15, 10, 2), "left edge")
		assert.Equal(t, uint8(255), pixel(m, 15, 21, 2), "right edge at x+w")
		assert.Equal(t, uint8(255), pixel(m, 21, 15, 2), "bottom edge at y+h")
		assert.Zero(t, pixel(m, 15, 22, 2))
		assert.Zero(t, pixel(m, 15, 20, 2))
	}
}

func TestOutline_ClipsToFrame(t *testing.T) {
	frame := image.Rect(0, 0, 40, 30)

	assert.Equal(t, image.Rect(10, 10, 22, 22), outline(image.Rect(10, 10, 21, 21), frame))
	assert.Equal(t, image.Rect(30, 20, 40, 30), outline(image.Rect(30, 20, 40, 30), frame))
}

func TestAnnotator_CustomColors(t *testing.T) {
	img := testutil.Solid(20, 20, black)
	pair := loadPair(t, img, img)
	opts := defaultAnnotateOptions()
	opts.SecondColor = green

	annotated, err := NewAnnotator(logger.NewNop()).Annotate(pair, []models.Region{{Bounds: image.Rect(2, 2, 8, 8)}}, opts)
	require.NoError(t, err)
	defer annotated.Close()

	assert.Equal(t, green, annotated.Verdicts[0].Color)
	assert.Equal(t, uint8(255), pixel(annotated.Overlay, 5, 5, 1))
}

func TestAnnotator_RejectsMismatchedPair(t *testing.T) {
	a := loadPair(t, testutil.Solid(10, 10, black), testutil.Solid(10, 10, black))
	b := loadPair(t, testutil.Solid(12, 12, black), testutil.Solid(12, 12, black))
	mixed := &models.NormalizedPair{
		FirstColor: a.FirstColor, SecondColor: b.SecondColor,
		FirstGray: a.FirstGray, SecondGray: b.SecondGray,
		Width: 10, Height: 10,
	}

	_, err := NewAnnotator(logger.NewNop()).Annotate(mixed, nil, defaultAnnotateOptions())
	assert.True(t, errors.Is(err, models.ErrDimension))
}
