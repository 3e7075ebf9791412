package stages

import (
	"fmt"
	"strings"
	"time"

	"visualdiff/internal/logger"
	"visualdiff/internal/models"
	"visualdiff/internal/opencv/safe"

	"github.com/google/uuid"
	"gocv.io/x/gocv"
)

const DefaultJPEGQuality = 95

// ArtifactStore persists an encoded composite and returns a reference to it.
type ArtifactStore interface {
	Save(name string, data []byte) (string, error)
}

// RenderOptions selects the artifact encoding.
type RenderOptions struct {
	Format      string
	JPEGQuality int
}

// Rendered describes a stored composite.
type Rendered struct {
	Ref    string
	Name   string
	Width  int
	Height int
	Bytes  int
}

// Renderer joins the three panels side by side, encodes the result and hands
// it to the store.
type Renderer struct {
	logger logger.Logger
	store  ArtifactStore
	now    func() time.Time
}

func NewRenderer(log logger.Logger, store ArtifactStore) *Renderer {
	return &Renderer{logger: log, store: store, now: time.Now}
}

func (r *Renderer) Render(a *Annotated, opts RenderOptions) (*Rendered, error) {
	if err := safe.ValidateSameSize("composite", a.First, a.Second, a.Overlay); err != nil {
		return nil, models.NewError(models.ErrEncode, "", err)
	}

	ext, err := FileExt(opts.Format)
	if err != nil {
		return nil, models.NewError(models.ErrEncode, "", err)
	}

	composite, err := Concat(a.First, a.Second, a.Overlay)
	if err != nil {
		return nil, models.NewError(models.ErrEncode, "", err)
	}
	defer composite.Close()

	data, err := Encode(composite, ext, opts.JPEGQuality)
	if err != nil {
		return nil, models.NewError(models.ErrEncode, "", err)
	}

	name := ArtifactName(r.now(), ext)
	ref, err := r.store.Save(name, data)
	if err != nil {
		return nil, models.NewError(models.ErrEncode, "", fmt.Errorf("artifact %s could not be stored: %w", name, err))
	}

	rendered := &Rendered{
		Ref:    ref,
		Name:   name,
		Width:  composite.Cols(),
		Height: composite.Rows(),
		Bytes:  len(data),
	}

	r.logger.Debug("Renderer", "composite stored", map[string]interface{}{
		"ref":    ref,
		"width":  rendered.Width,
		"height": rendered.Height,
		"bytes":  rendered.Bytes,
	})

	return rendered, nil
}

// Concat joins panels left to right.
func Concat(panels ...*safe.Mat) (*safe.Mat, error) {
	if len(panels) == 0 {
		return nil, fmt.Errorf("no panels to concatenate")
	}
	if err := safe.ValidateSameSize("concatenation", panels...); err != nil {
		return nil, err
	}

	first := panels[0].GetMat()
	acc := first.Clone()
	for _, p := range panels[1:] {
		next := gocv.NewMat()
		gocv.Hconcat(acc, p.GetMat(), &next)
		acc.Close()
		acc = next
	}

	return safe.Adopt(acc, "composite")
}

// Encode serialises m with OpenCV's encoder for ext.
func Encode(m *safe.Mat, ext gocv.FileExt, quality int) ([]byte, error) {
	var (
		buf *gocv.NativeByteBuffer
		err error
	)
	if ext == gocv.JPEGFileExt {
		if quality <= 0 {
			quality = DefaultJPEGQuality
		}
		buf, err = gocv.IMEncodeWithParams(ext, m.GetMat(), []int{int(gocv.IMWriteJpegQuality), quality})
	} else {
		buf, err = gocv.IMEncode(ext, m.GetMat())
	}
	if err != nil {
		return nil, fmt.Errorf("encode %s failed: %w", ext, err)
	}
	defer buf.Close()

	data := buf.GetBytes()
	if len(data) == 0 {
		return nil, fmt.Errorf("encode %s produced no data", ext)
	}

	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// FileExt maps an artifact format name to an OpenCV encoder extension.
func FileExt(format string) (gocv.FileExt, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(format), ".")) {
	case "", "jpg", "jpeg":
		return gocv.JPEGFileExt, nil
	case "png":
		return gocv.PNGFileExt, nil
	default:
		return "", fmt.Errorf("unsupported artifact format %q", format)
	}
}

// ArtifactName builds comparison_<YYYYmmdd_HHMMSS>_<id>.<ext>.
func ArtifactName(at time.Time, ext gocv.FileExt) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("comparison_%s_%s%s", at.Format("20060102_150405"), id, ext)
}
