package pipeline

import (
	"fmt"
	"image/color"

	"visualdiff/internal/models"
	"visualdiff/internal/opencv/conversion"
	"visualdiff/internal/pipeline/stages"
	"visualdiff/internal/processing/ssim"
)

// Options tunes a single comparison. The zero value is not usable; start
// from DefaultOptions.
type Options struct {
	MinRegionArea  int
	SSIM           ssim.Params
	Interpolation  string
	ArtifactFormat string
	JPEGQuality    int
	BoxThickness   int
	FirstColor     color.RGBA
	SecondColor    color.RGBA
}

func DefaultOptions() Options {
	return Options{
		MinRegionArea:  stages.DefaultMinRegionArea,
		SSIM:           ssim.DefaultParams(),
		Interpolation:  "linear",
		ArtifactFormat: "jpg",
		JPEGQuality:    stages.DefaultJPEGQuality,
		BoxThickness:   stages.DefaultBoxThickness,
		FirstColor:     stages.DefaultFirstColor,
		SecondColor:    stages.DefaultSecondColor,
	}
}

// Validate reports the first unusable setting as a ConfigError.
func (o Options) Validate() error {
	if o.MinRegionArea < 0 {
		return configError("min region area must not be negative, got %d", o.MinRegionArea)
	}
	if err := o.SSIM.Validate(); err != nil {
		return err
	}
	if _, err := conversion.ParseInterpolation(o.Interpolation); err != nil {
		return models.NewError(models.ErrConfig, "", err)
	}
	if _, err := stages.FileExt(o.ArtifactFormat); err != nil {
		return models.NewError(models.ErrConfig, "", err)
	}
	if o.JPEGQuality < 1 || o.JPEGQuality > 100 {
		return configError("jpeg quality must be within 1..100, got %d", o.JPEGQuality)
	}
	if o.BoxThickness < 1 || o.BoxThickness > 50 {
		return configError("box thickness must be within 1..50, got %d", o.BoxThickness)
	}
	return nil
}

func configError(format string, args ...interface{}) error {
	return models.NewError(models.ErrConfig, "", fmt.Errorf(format, args...))
}
