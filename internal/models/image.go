package models

import (
	"image"

	"visualdiff/internal/opencv/safe"
)

// ImageData is one decoded input together with what was learned while
// decoding it.
type ImageData struct {
	Mat          *safe.Mat
	Width        int
	Height       int
	Channels     int
	Format       string
	OriginalSize image.Point
}

// Close releases the underlying Mat. Safe to call on a nil receiver.
func (d *ImageData) Close() {
	if d == nil || d.Mat == nil {
		return
	}
	d.Mat.Close()
}

// NormalizedPair holds both inputs after normalization. All four Mats share
// the same Width and Height, which are the second input's dimensions.
type NormalizedPair struct {
	FirstColor  *safe.Mat
	SecondColor *safe.Mat
	FirstGray   *safe.Mat
	SecondGray  *safe.Mat

	Width  int
	Height int

	FirstFormat       string
	SecondFormat      string
	FirstOriginalSize image.Point
}

// Close releases every Mat held by the pair.
func (p *NormalizedPair) Close() {
	if p == nil {
		return
	}
	for _, m := range []*safe.Mat{p.FirstColor, p.SecondColor, p.FirstGray, p.SecondGray} {
		if m != nil {
			m.Close()
		}
	}
}

// Resized reports whether the first input had to be resampled.
func (p *NormalizedPair) Resized() bool {
	return p.FirstOriginalSize.X != p.Width || p.FirstOriginalSize.Y != p.Height
}
