package safe

import (
	"fmt"

	"gocv.io/x/gocv"
)

// MaxDimension bounds either side of any image the pipeline accepts.
const MaxDimension = 32768

func ValidateMatForOperation(mat *Mat, operation string) error {
	if mat == nil {
		return fmt.Errorf("Mat is nil for operation: %s", operation)
	}

	if !mat.IsValid() {
		return fmt.Errorf("Mat is invalid for operation: %s", operation)
	}

	if mat.Empty() {
		return fmt.Errorf("Mat is empty for operation: %s", operation)
	}

	if mat.Rows() <= 0 || mat.Cols() <= 0 {
		return fmt.Errorf("Mat has invalid dimensions %dx%d for operation: %s",
			mat.Cols(), mat.Rows(), operation)
	}

	return nil
}

func ValidateColorConversion(src *Mat, code gocv.ColorConversionCode) error {
	if err := ValidateMatForOperation(src, "CvtColor"); err != nil {
		return err
	}

	channels := src.Channels()

	switch code {
	case gocv.ColorBGRToGray, gocv.ColorRGBToGray:
		if channels != 3 {
			return fmt.Errorf("BGR/RGB to Gray conversion requires 3 channels, got %d", channels)
		}
	case gocv.ColorGrayToBGR: // == gocv.ColorGrayToRGB
		if channels != 1 {
			return fmt.Errorf("Gray to BGR/RGB conversion requires 1 channel, got %d", channels)
		}
	case gocv.ColorBGRAToBGR: // == gocv.ColorRGBAToRGB
		if channels != 4 {
			return fmt.Errorf("BGRA/RGBA to BGR/RGB conversion requires 4 channels, got %d", channels)
		}
	}

	return nil
}

func ValidateDimensions(width, height int, operation string) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid dimensions %dx%d for operation: %s", width, height, operation)
	}

	if width > MaxDimension || height > MaxDimension {
		return fmt.Errorf("dimensions %dx%d exceed maximum size for operation: %s", width, height, operation)
	}

	return nil
}

// ValidateSameSize checks that every Mat matches the first one's size.
func ValidateSameSize(operation string, mats ...*Mat) error {
	if len(mats) == 0 {
		return nil
	}

	for _, m := range mats {
		if err := ValidateMatForOperation(m, operation); err != nil {
			return err
		}
	}

	want := mats[0].Size()
	for _, m := range mats[1:] {
		if got := m.Size(); got != want {
			return fmt.Errorf("size mismatch for operation %s: %dx%d vs %dx%d",
				operation, want.X, want.Y, got.X, got.Y)
		}
	}

	return nil
}

func ValidateChannels(mat *Mat, channels int, operation string) error {
	if got := mat.Channels(); got != channels {
		return fmt.Errorf("operation %s requires %d channels, got %d", operation, channels, got)
	}
	return nil
}
