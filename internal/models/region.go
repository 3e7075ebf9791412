package models

import (
	"image"
	"image/color"
	"sort"
)

// Region is one connected difference blob.
type Region struct {
	Bounds  image.Rectangle `json:"bounds" yaml:"bounds"`
	Area    int             `json:"area" yaml:"area"`
	Contour []image.Point   `json:"-" yaml:"-"`
}

// Dominance names the input whose grayscale mean is higher inside a region.
type Dominance string

const (
	FirstDominant  Dominance = "first-image-dominant"
	SecondDominant Dominance = "second-image-dominant"
)

// Classify compares the mean intensities of both crops. Ties go to the second
// image.
func Classify(firstMean, secondMean float64) Dominance {
	if firstMean > secondMean {
		return FirstDominant
	}
	return SecondDominant
}

// RegionVerdict is a classified region and the color it was drawn with.
type RegionVerdict struct {
	Region     `yaml:",inline"`
	Dominance  Dominance  `json:"dominance" yaml:"dominance"`
	Color      color.RGBA `json:"-" yaml:"-"`
	FirstMean  float64    `json:"first_mean" yaml:"first_mean"`
	SecondMean float64    `json:"second_mean" yaml:"second_mean"`
}

// SortRegions orders regions by the origin of their bounding box, top to
// bottom then left to right. Extraction order itself carries no meaning.
func SortRegions(regions []Region) {
	sort.SliceStable(regions, func(i, j int) bool {
		a, b := regions[i].Bounds.Min, regions[j].Bounds.Min
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		return a.X < b.X
	})
}
