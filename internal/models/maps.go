package models

import "fmt"

// SimilarityMap is a row-major grid of structural similarity values in
// [-1, 1], one per pixel.
type SimilarityMap struct {
	Width  int
	Height int
	Values []float64
}

func (m *SimilarityMap) At(x, y int) float64 {
	return m.Values[y*m.Width+x]
}

// Validate checks the buffer length against the declared dimensions.
func (m *SimilarityMap) Validate() error {
	if m.Width <= 0 || m.Height <= 0 {
		return NewError(ErrDimension, "", fmt.Errorf("similarity map has invalid dimensions %dx%d", m.Width, m.Height))
	}
	if len(m.Values) != m.Width*m.Height {
		return NewError(ErrDimension, "", fmt.Errorf("similarity map holds %d values, want %d", len(m.Values), m.Width*m.Height))
	}
	return nil
}

// BinaryMask is a row-major {0,255} grid. Foreground (255) marks pixels that
// differ between the two inputs.
type BinaryMask struct {
	Width     int
	Height    int
	Pix       []uint8
	Threshold uint8
}

func (m *BinaryMask) At(x, y int) uint8 {
	return m.Pix[y*m.Width+x]
}

// Foreground counts the pixels set to 255.
func (m *BinaryMask) Foreground() int {
	count := 0
	for _, v := range m.Pix {
		if v != 0 {
			count++
		}
	}
	return count
}
