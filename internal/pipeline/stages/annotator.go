package stages

import (
	"fmt"
	"image"
	"image/color"

	"visualdiff/internal/logger"
	"visualdiff/internal/models"
	"visualdiff/internal/opencv/conversion"
	"visualdiff/internal/opencv/safe"

	"gocv.io/x/gocv"
)

var (
	DefaultFirstColor  = color.RGBA{R: 0, G: 255, B: 0, A: 255}
	DefaultSecondColor = color.RGBA{R: 255, G: 0, B: 0, A: 255}
)

const DefaultBoxThickness = 2

// AnnotateOptions selects how verdicts are drawn.
type AnnotateOptions struct {
	BoxThickness int
	FirstColor   color.RGBA
	SecondColor  color.RGBA
}

// Annotated holds the three owned panels of the composite and the verdict
// for every region drawn on them.
type Annotated struct {
	First    *safe.Mat
	Second   *safe.Mat
	Overlay  *safe.Mat
	Verdicts []models.RegionVerdict
}

func (a *Annotated) Close() {
	if a == nil {
		return
	}
	safe.CloseAll(a.First, a.Second, a.Overlay)
}

// Annotator classifies regions and draws them onto copies of the inputs.
type Annotator struct {
	logger logger.Logger
}

func NewAnnotator(log logger.Logger) *Annotator {
	return &Annotator{logger: log}
}

// Annotate never draws on the pair itself; the returned panels are clones
// owned by the caller.
func (a *Annotator) Annotate(pair *models.NormalizedPair, regions []models.Region, opts AnnotateOptions) (*Annotated, error) {
	if err := safe.ValidateSameSize("annotation", pair.FirstColor, pair.SecondColor, pair.FirstGray, pair.SecondGray); err != nil {
		return nil, models.NewError(models.ErrDimension, "", err)
	}

	out := &Annotated{Verdicts: make([]models.RegionVerdict, 0, len(regions))}
	var err error

	if out.First, err = pair.FirstColor.CloneWithTag("first_annotated"); err != nil {
		return nil, models.NewError(models.ErrEncode, "first", err)
	}
	if out.Second, err = pair.SecondColor.CloneWithTag("second_annotated"); err != nil {
		out.Close()
		return nil, models.NewError(models.ErrEncode, "second", err)
	}
	if out.Overlay, err = pair.FirstColor.CloneWithTag("overlay"); err != nil {
		out.Close()
		return nil, models.NewError(models.ErrEncode, "first", err)
	}

	frame := image.Rect(0, 0, pair.Width, pair.Height)

	for _, region := range regions {
		bounds := region.Bounds.Intersect(frame)
		if bounds.Empty() {
			continue
		}

		verdict, err := a.classify(pair, region, bounds, opts)
		if err != nil {
			out.Close()
			return nil, err
		}

		box := outline(bounds, frame)
		gocv.Rectangle(out.First.Ptr(), box, verdict.Color, opts.BoxThickness)
		gocv.Rectangle(out.Second.Ptr(), box, verdict.Color, opts.BoxThickness)

		if len(region.Contour) > 0 {
			contours := gocv.NewPointsVectorFromPoints([][]image.Point{region.Contour})
			gocv.DrawContours(out.Overlay.Ptr(), contours, 0, verdict.Color, -1)
			contours.Close()
		} else {
			gocv.Rectangle(out.Overlay.Ptr(), bounds, verdict.Color, -1)
		}

		out.Verdicts = append(out.Verdicts, verdict)
	}

	a.logger.Debug("Annotator", "regions classified", map[string]interface{}{
		"regions":         len(out.Verdicts),
		"first_dominant":  countDominance(out.Verdicts, models.FirstDominant),
		"second_dominant": countDominance(out.Verdicts, models.SecondDominant),
	})

	return out, nil
}

// outline widens b by one pixel on the right and bottom so the box passes
// through (x+w, y+h). gocv.Rectangle stops at Max-1.
func outline(b, frame image.Rectangle) image.Rectangle {
	return image.Rect(b.Min.X, b.Min.Y, b.Max.X+1, b.Max.Y+1).Intersect(frame)
}

func (a *Annotator) classify(pair *models.NormalizedPair, region models.Region, bounds image.Rectangle, opts AnnotateOptions) (models.RegionVerdict, error) {
	firstMean, err := conversion.MeanInRect(pair.FirstGray, bounds)
	if err != nil {
		return models.RegionVerdict{}, models.NewError(models.ErrDimension, "first", fmt.Errorf("region mean: %w", err))
	}
	secondMean, err := conversion.MeanInRect(pair.SecondGray, bounds)
	if err != nil {
		return models.RegionVerdict{}, models.NewError(models.ErrDimension, "second", fmt.Errorf("region mean: %w", err))
	}

	verdict := models.RegionVerdict{
		Region:     region,
		Dominance:  models.Classify(firstMean, secondMean),
		FirstMean:  firstMean,
		SecondMean: secondMean,
	}
	if verdict.Dominance == models.FirstDominant {
		verdict.Color = opts.FirstColor
	} else {
		verdict.Color = opts.SecondColor
	}

	return verdict, nil
}

func countDominance(verdicts []models.RegionVerdict, d models.Dominance) int {
	n := 0
	for _, v := range verdicts {
		if v.Dominance == d {
			n++
		}
	}
	return n
}
