package stages

import (
	"fmt"
	"image/color"

	"visualdiff/internal/logger"
	"visualdiff/internal/models"
	"visualdiff/internal/opencv/safe"
	"visualdiff/internal/processing/threshold"

	"gocv.io/x/gocv"
)

// DefaultMinRegionArea is the smallest filled area, in pixels, reported as a
// difference.
const DefaultMinRegionArea = 40

// Extraction is the output of the region extractor.
type Extraction struct {
	Mask      *models.BinaryMask
	Regions   []models.Region
	Discarded int
}

// Extractor turns a similarity map into connected difference regions.
type Extractor struct {
	logger logger.Logger
}

func NewExtractor(log logger.Logger) *Extractor {
	return &Extractor{logger: log}
}

func (e *Extractor) Extract(simMap *models.SimilarityMap, minArea int) (*Extraction, error) {
	mask, err := threshold.DifferenceMask(simMap)
	if err != nil {
		return nil, err
	}

	extraction := &Extraction{Mask: mask, Regions: []models.Region{}}

	foreground := mask.Foreground()
	if foreground == 0 {
		e.logger.Debug("Extractor", "no dissimilar pixels", map[string]interface{}{
			"threshold": mask.Threshold,
		})
		return extraction, nil
	}

	all, err := Contours(mask)
	if err != nil {
		return nil, err
	}

	extraction.Regions = FilterRegions(all, minArea)
	extraction.Discarded = len(all) - len(extraction.Regions)

	e.logger.Debug("Extractor", "regions extracted", map[string]interface{}{
		"threshold":  mask.Threshold,
		"foreground": foreground,
		"contours":   len(all),
		"kept":       len(extraction.Regions),
		"min_area":   minArea,
	})

	return extraction, nil
}

// Contours finds the outer boundary of every 8-connected foreground component
// of mask. Area is the pixel count of the filled boundary, holes included.
func Contours(mask *models.BinaryMask) ([]models.Region, error) {
	if mask.Width <= 0 || mask.Height <= 0 || len(mask.Pix) != mask.Width*mask.Height {
		return nil, models.NewError(models.ErrDimension, "",
			fmt.Errorf("mask of %d bytes does not match %dx%d", len(mask.Pix), mask.Width, mask.Height))
	}

	src, err := safe.NewMatFromBytes(mask.Height, mask.Width, gocv.MatTypeCV8UC1, mask.Pix, "difference_mask")
	if err != nil {
		return nil, models.NewError(models.ErrDimension, "", err)
	}
	defer src.Close()

	fill, err := safe.NewZeros(mask.Height, mask.Width, gocv.MatTypeCV8UC1, "contour_fill")
	if err != nil {
		return nil, models.NewError(models.ErrDimension, "", err)
	}
	defer fill.Close()

	contours := gocv.FindContours(src.GetMat(), gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	on := color.RGBA{R: 255, G: 255, B: 255, A: 0}
	off := color.RGBA{}

	regions := make([]models.Region, 0, contours.Size())
	for i := 0; i < contours.Size(); i++ {
		contour := contours.At(i)
		bounds := gocv.BoundingRect(contour)

		gocv.DrawContours(fill.Ptr(), contours, i, on, -1)
		fillMat := fill.GetMat()
		roi := fillMat.Region(bounds)
		area := gocv.CountNonZero(roi)
		roi.Close()
		gocv.DrawContours(fill.Ptr(), contours, i, off, -1)

		regions = append(regions, models.Region{
			Bounds:  bounds,
			Area:    area,
			Contour: contour.ToPoints(),
		})
	}

	return regions, nil
}

// FilterRegions keeps regions whose area is at least minArea, preserving
// order.
func FilterRegions(regions []models.Region, minArea int) []models.Region {
	kept := make([]models.Region, 0, len(regions))
	for _, r := range regions {
		if r.Area >= minArea {
			kept = append(kept, r)
		}
	}
	return kept
}
