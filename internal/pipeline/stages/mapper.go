package stages

import (
	"fmt"

	"visualdiff/internal/logger"
	"visualdiff/internal/models"
	"visualdiff/internal/opencv/conversion"
	"visualdiff/internal/opencv/safe"
	"visualdiff/internal/processing/ssim"
)

// Mapper produces the per-pixel structural similarity map of a normalized
// pair.
type Mapper struct {
	logger logger.Logger
}

func NewMapper(log logger.Logger) *Mapper {
	return &Mapper{logger: log}
}

func (m *Mapper) Map(pair *models.NormalizedPair, params ssim.Params) (*models.SimilarityMap, float64, error) {
	if err := safe.ValidateSameSize("similarity mapping", pair.FirstGray, pair.SecondGray); err != nil {
		return nil, 0, models.NewError(models.ErrDimension, "", err)
	}

	a, err := grid(pair.FirstGray)
	if err != nil {
		return nil, 0, models.NewError(models.ErrDimension, "first", err)
	}
	b, err := grid(pair.SecondGray)
	if err != nil {
		return nil, 0, models.NewError(models.ErrDimension, "second", err)
	}

	simMap, score, err := ssim.Compute(a, b, params)
	if err != nil {
		return nil, 0, fmt.Errorf("structural similarity failed: %w", err)
	}

	m.logger.Debug("Mapper", "similarity map computed", map[string]interface{}{
		"width":  simMap.Width,
		"height": simMap.Height,
		"window": ssim.EffectiveWindow(params.WindowSize, simMap.Width, simMap.Height),
		"score":  score,
	})

	return simMap, score, nil
}

func grid(gray *safe.Mat) (ssim.Grid, error) {
	pix, err := conversion.MatToGrid(gray)
	if err != nil {
		return ssim.Grid{}, err
	}
	return ssim.Grid{Width: gray.Cols(), Height: gray.Rows(), Pix: pix}, nil
}
