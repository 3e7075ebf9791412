package models

import (
	"errors"
	"fmt"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		first  float64
		second float64
		want   Dominance
	}{
		{"first brighter", 200, 10, FirstDominant},
		{"second brighter", 10, 200, SecondDominant},
		{"tie goes to second", 127.5, 127.5, SecondDominant},
		{"tiny margin", 100.0000001, 100, FirstDominant},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.first, tt.second))
		})
	}
}

func TestClassify_TieIsStable(t *testing.T) {
	for i := 0; i < 100; i++ {
		require.Equal(t, SecondDominant, Classify(42, 42))
	}
}

func TestSortRegions(t *testing.T) {
	regions := []Region{
		{Bounds: image.Rect(50, 10, 60, 20)},
		{Bounds: image.Rect(5, 30, 15, 40)},
		{Bounds: image.Rect(10, 10, 20, 20)},
	}

	SortRegions(regions)

	assert.Equal(t, image.Pt(10, 10), regions[0].Bounds.Min)
	assert.Equal(t, image.Pt(50, 10), regions[1].Bounds.Min)
	assert.Equal(t, image.Pt(5, 30), regions[2].Bounds.Min)
}

func TestFormatSimilarity(t *testing.T) {
	assert.Equal(t, "100.00", FormatSimilarity(1))
	assert.Equal(t, "87.35", FormatSimilarity(0.87349))
	assert.Equal(t, "0.01", FormatSimilarity(0.0001))
	assert.Equal(t, "-3.50", FormatSimilarity(-0.035))
}

func TestNewComparisonResult(t *testing.T) {
	res := NewComparisonResult(0.5, "single_comparisons/abc/comparison.jpg", nil)

	assert.Equal(t, "50.00", res.Similarity)
	assert.Equal(t, "The images are 50.00% similar based on structural similarity.", res.Message)
	assert.Equal(t, "single_comparisons/abc/comparison.jpg", res.ComparisonImage)
	assert.NotNil(t, res.Regions)
	assert.Empty(t, res.Regions)
}

func TestError_IsAndAs(t *testing.T) {
	cause := errors.New("not an image")
	err := fmt.Errorf("loading: %w", NewError(ErrDecode, "first", cause))

	assert.True(t, errors.Is(err, ErrDecode))
	assert.False(t, errors.Is(err, ErrEncode))
	assert.True(t, errors.Is(err, cause))

	var typed *Error
	require.True(t, errors.As(err, &typed))
	assert.Equal(t, KindDecode, typed.Kind)
	assert.Equal(t, "first", typed.Input)
	assert.Equal(t, "DecodeError: first image: not an image", typed.Error())

	kind, ok := KindOf(err)
	assert.True(t, ok)
	assert.Equal(t, KindDecode, kind)

	_, ok = KindOf(cause)
	assert.False(t, ok)
}

func TestSimilarityMap_Validate(t *testing.T) {
	good := &SimilarityMap{Width: 2, Height: 2, Values: make([]float64, 4)}
	assert.NoError(t, good.Validate())

	short := &SimilarityMap{Width: 2, Height: 2, Values: make([]float64, 3)}
	assert.True(t, errors.Is(short.Validate(), ErrDimension))

	empty := &SimilarityMap{}
	assert.True(t, errors.Is(empty.Validate(), ErrDimension))
}

func TestBinaryMask_Foreground(t *testing.T) {
	mask := &BinaryMask{Width: 3, Height: 1, Pix: []uint8{0, 255, 255}}
	assert.Equal(t, 2, mask.Foreground())
	assert.Equal(t, uint8(255), mask.At(1, 0))
}
