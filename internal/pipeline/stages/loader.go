package stages

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"visualdiff/internal/logger"
	"visualdiff/internal/models"
	"visualdiff/internal/opencv/conversion"
	"visualdiff/internal/opencv/safe"

	"gocv.io/x/gocv"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Loader decodes both inputs and brings them to a common size and depth.
type Loader struct {
	logger logger.Logger
}

func NewLoader(log logger.Logger) *Loader {
	return &Loader{logger: log}
}

// Load decodes first and second, resizes first to second's dimensions and
// derives grayscale copies of both.
func (l *Loader) Load(first, second []byte, interpolation gocv.InterpolationFlags) (*models.NormalizedPair, error) {
	firstData, err := l.decode(first, "first")
	if err != nil {
		return nil, err
	}

	secondData, err := l.decode(second, "second")
	if err != nil {
		firstData.Close()
		return nil, err
	}

	pair := &models.NormalizedPair{
		SecondColor:       secondData.Mat,
		Width:             secondData.Width,
		Height:            secondData.Height,
		FirstFormat:       firstData.Format,
		SecondFormat:      secondData.Format,
		FirstOriginalSize: firstData.OriginalSize,
	}

	if firstData.Width == secondData.Width && firstData.Height == secondData.Height {
		pair.FirstColor = firstData.Mat
	} else {
		resized, err := conversion.ResizeMat(firstData.Mat, secondData.Width, secondData.Height, interpolation)
		firstData.Close()
		if err != nil {
			pair.Close()
			return nil, models.NewError(models.ErrDimension, "first", fmt.Errorf("resize to %dx%d failed: %w",
				secondData.Width, secondData.Height, err))
		}
		pair.FirstColor = resized

		l.logger.Debug("Loader", "first image resized", map[string]interface{}{
			"from": fmt.Sprintf("%dx%d", firstData.Width, firstData.Height),
			"to":   fmt.Sprintf("%dx%d", pair.Width, pair.Height),
		})
	}

	if pair.FirstGray, err = conversion.ConvertToGrayscale(pair.FirstColor); err != nil {
		pair.Close()
		return nil, models.NewError(models.ErrDecode, "first", fmt.Errorf("grayscale conversion failed: %w", err))
	}

	if pair.SecondGray, err = conversion.ConvertToGrayscale(pair.SecondColor); err != nil {
		pair.Close()
		return nil, models.NewError(models.ErrDecode, "second", fmt.Errorf("grayscale conversion failed: %w", err))
	}

	return pair, nil
}

// decode sniffs the header with the registered Go decoders, then decodes the
// pixels with OpenCV into a 3-channel BGR Mat. A sniffed format OpenCV cannot
// read is decoded by the Go decoder instead.
func (l *Loader) decode(data []byte, input string) (*models.ImageData, error) {
	if len(data) == 0 {
		return nil, models.NewError(models.ErrDecode, input, fmt.Errorf("empty payload"))
	}

	format := "unknown"
	cfg, sniffed, err := image.DecodeConfig(bytes.NewReader(data))
	if err == nil {
		format = sniffed
		if cfg.Width <= 0 || cfg.Height <= 0 {
			return nil, models.NewError(models.ErrDimension, input,
				fmt.Errorf("header reports %dx%d", cfg.Width, cfg.Height))
		}
	} else {
		l.logger.Debug("Loader", "header not recognised, deferring to OpenCV", map[string]interface{}{
			"input": input,
			"error": err.Error(),
		})
	}

	safeMat, cvErr := decodeWithOpenCV(data, input)
	if cvErr != nil {
		if format == "unknown" {
			return nil, models.NewError(models.ErrDecode, input, cvErr)
		}

		// OpenCV builds may lack a codec the Go decoders registered above have.
		var goErr error
		if safeMat, goErr = decodeWithGo(data, input); goErr != nil {
			return nil, models.NewError(models.ErrDecode, input, fmt.Errorf("%v; %s decoder: %w", cvErr, format, goErr))
		}

		l.logger.Debug("Loader", "decoded with Go fallback", map[string]interface{}{
			"input":  input,
			"format": format,
			"cause":  cvErr.Error(),
		})
	}

	if err := safe.ValidateDimensions(safeMat.Cols(), safeMat.Rows(), "decode "+input); err != nil {
		safeMat.Close()
		return nil, models.NewError(models.ErrDimension, input, err)
	}

	imageData := &models.ImageData{
		Mat:          safeMat,
		Width:        safeMat.Cols(),
		Height:       safeMat.Rows(),
		Channels:     safeMat.Channels(),
		Format:       format,
		OriginalSize: safeMat.Size(),
	}

	l.logger.Debug("Loader", "image decoded", map[string]interface{}{
		"input":    input,
		"width":    imageData.Width,
		"height":   imageData.Height,
		"channels": imageData.Channels,
		"format":   format,
		"bytes":    len(data),
	})

	return imageData, nil
}

func decodeWithOpenCV(data []byte, input string) (*safe.Mat, error) {
	mat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("OpenCV decode failed: %w", err)
	}
	if mat.Empty() {
		mat.Close()
		return nil, fmt.Errorf("OpenCV could not decode %d bytes", len(data))
	}
	return safe.Adopt(mat, input+"_color")
}

// decodeWithGo decodes with the registered Go decoders and copies the pixels
// into a BGR Mat.
func decodeWithGo(data []byte, input string) (*safe.Mat, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return conversion.ImageToMat(img, input+"_color")
}
