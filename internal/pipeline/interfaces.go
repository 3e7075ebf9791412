package pipeline

import (
	"visualdiff/internal/models"
	"visualdiff/internal/pipeline/stages"
	"visualdiff/internal/processing/ssim"

	"gocv.io/x/gocv"
)

// ImageLoader decodes and normalizes an input pair.
type ImageLoader interface {
	Load(first, second []byte, interpolation gocv.InterpolationFlags) (*models.NormalizedPair, error)
}

// SimilarityMapper computes the per-pixel similarity map and its mean.
type SimilarityMapper interface {
	Map(pair *models.NormalizedPair, params ssim.Params) (*models.SimilarityMap, float64, error)
}

// RegionExtractor finds difference regions in a similarity map.
type RegionExtractor interface {
	Extract(simMap *models.SimilarityMap, minArea int) (*stages.Extraction, error)
}

// RegionAnnotator classifies regions and draws them onto owned copies.
type RegionAnnotator interface {
	Annotate(pair *models.NormalizedPair, regions []models.Region, opts stages.AnnotateOptions) (*stages.Annotated, error)
}

// CompositeRenderer encodes and stores the three-panel composite.
type CompositeRenderer interface {
	Render(a *stages.Annotated, opts stages.RenderOptions) (*stages.Rendered, error)
}
