package conversion

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	"visualdiff/internal/opencv/safe"

	"gocv.io/x/gocv"
)

// ConvertToGrayscale converts multi-channel images to single-channel grayscale
// using OpenCV's BT.601 luminance weights.
func ConvertToGrayscale(src *safe.Mat) (*safe.Mat, error) {
	if err := safe.ValidateMatForOperation(src, "grayscale conversion"); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	if src.Channels() == 1 {
		return src.CloneWithTag(src.Tag() + "_gray")
	}

	code := gocv.ColorBGRToGray
	if src.Channels() == 4 {
		code = gocv.ColorBGRAToBGR
	}
	if err := safe.ValidateColorConversion(src, code); err != nil {
		return nil, err
	}

	dst, err := safe.NewMatWithTag(src.Rows(), src.Cols(), gocv.MatTypeCV8UC1, src.Tag()+"_gray")
	if err != nil {
		return nil, fmt.Errorf("destination Mat creation failed: %w", err)
	}

	srcMat := src.GetMat()

	switch src.Channels() {
	case 3:
		gocv.CvtColor(srcMat, dst.Ptr(), gocv.ColorBGRToGray)
	case 4:
		temp := gocv.NewMat()
		defer temp.Close()
		gocv.CvtColor(srcMat, &temp, gocv.ColorBGRAToBGR)
		gocv.CvtColor(temp, dst.Ptr(), gocv.ColorBGRToGray)
	default:
		dst.Close()
		return nil, fmt.Errorf("unsupported channel count: %d", src.Channels())
	}

	return dst, nil
}

// ResizeMat resizes Mat to new dimensions using specified interpolation
func ResizeMat(src *safe.Mat, newWidth, newHeight int, interpolation gocv.InterpolationFlags) (*safe.Mat, error) {
	if err := safe.ValidateMatForOperation(src, "Mat resizing"); err != nil {
		return nil, err
	}

	if err := safe.ValidateDimensions(newWidth, newHeight, "Mat resizing"); err != nil {
		return nil, err
	}

	dst, err := safe.NewMatWithTag(newHeight, newWidth, src.Type(), src.Tag()+"_resized")
	if err != nil {
		return nil, err
	}

	gocv.Resize(src.GetMat(), dst.Ptr(), image.Point{X: newWidth, Y: newHeight}, 0, 0, interpolation)

	if dst.Cols() != newWidth || dst.Rows() != newHeight {
		got := dst.Size()
		dst.Close()
		return nil, fmt.Errorf("resize produced %dx%d, want %dx%d", got.X, got.Y, newWidth, newHeight)
	}

	return dst, nil
}

// ParseInterpolation maps a config name to an OpenCV interpolation flag.
func ParseInterpolation(name string) (gocv.InterpolationFlags, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "linear", "bilinear":
		return gocv.InterpolationLinear, nil
	case "area":
		return gocv.InterpolationArea, nil
	case "cubic", "bicubic":
		return gocv.InterpolationCubic, nil
	case "nearest":
		return gocv.InterpolationNearestNeighbor, nil
	default:
		return gocv.InterpolationLinear, fmt.Errorf("unknown interpolation %q", name)
	}
}

// MeanInRect returns the mean of the first channel inside rect.
func MeanInRect(src *safe.Mat, rect image.Rectangle) (float64, error) {
	if err := safe.ValidateMatForOperation(src, "region mean"); err != nil {
		return 0, err
	}

	bounds := image.Rect(0, 0, src.Cols(), src.Rows())
	if rect.Empty() || !rect.In(bounds) {
		return 0, fmt.Errorf("region %v outside Mat bounds %v", rect, bounds)
	}

	srcMat := src.GetMat()
	region := srcMat.Region(rect)
	defer region.Close()

	return region.Mean().Val1, nil
}

// MatToGrid copies a single-channel 8-bit Mat into a row-major float64 grid.
func MatToGrid(src *safe.Mat) ([]float64, error) {
	if err := safe.ValidateMatForOperation(src, "grid extraction"); err != nil {
		return nil, err
	}
	if err := safe.ValidateChannels(src, 1, "grid extraction"); err != nil {
		return nil, err
	}

	data, err := src.Bytes()
	if err != nil {
		return nil, fmt.Errorf("pixel buffer access failed: %w", err)
	}

	grid := make([]float64, len(data))
	for i, v := range data {
		grid[i] = float64(v)
	}

	return grid, nil
}

// ImageToMat copies a Go image into a new BGR Mat tagged tag.
func ImageToMat(img image.Image, tag string) (*safe.Mat, error) {
	if img == nil {
		return nil, fmt.Errorf("input image is nil")
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	if err := safe.ValidateDimensions(width, height, "image to Mat conversion"); err != nil {
		return nil, err
	}

	buf := make([]byte, 0, width*height*3)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := color.RGBAModel.Convert(img.At(x, y)).(color.RGBA)
			buf = append(buf, c.B, c.G, c.R)
		}
	}

	return safe.NewMatFromBytes(height, width, gocv.MatTypeCV8UC3, buf, tag)
}
