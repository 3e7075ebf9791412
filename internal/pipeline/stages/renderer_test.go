package stages

import (
	"errors"
	"regexp"
	"testing"
	"time"

	"visualdiff/internal/logger"
	"visualdiff/internal/models"
	"visualdiff/internal/storage"
	"visualdiff/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func annotatedPanels(t *testing.T, w, h int) *Annotated {
	t.Helper()
	pair := loadPair(t, testutil.Solid(w, h, white), testutil.Solid(w, h, black))
	annotated, err := NewAnnotator(logger.NewNop()).Annotate(pair, nil, defaultAnnotateOptions())
	require.NoError(t, err)
	t.Cleanup(annotated.Close)
	return annotated
}

func TestRenderer_StoresThreePanelComposite(t *testing.T) {
	store := storage.NewMemoryStore("single_comparisons", "s")
	renderer := NewRenderer(logger.NewNop(), store)
	renderer.now = func() time.Time { return time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC) }

	rendered, err := renderer.Render(annotatedPanels(t, 40, 30), RenderOptions{Format: "png"})
	require.NoError(t, err)

	assert.Equal(t, 120, rendered.Width)
	assert.Equal(t, 30, rendered.Height)
	assert.Regexp(t, `^single_comparisons/s/comparison_20240501_093000_[0-9a-f]{8}\.png$`, rendered.Ref)

	data, ok := store.Get(rendered.Ref)
	require.True(t, ok)
	img := testutil.Decode(t, data)
	assert.Equal(t, 120, img.Bounds().Dx())
	assert.Equal(t, 30, img.Bounds().Dy())
	assert.Equal(t, white, testutil.RGBAt(img, 5, 5))
	assert.Equal(t, black, testutil.RGBAt(img, 45, 5))
	assert.Equal(t, white, testutil.RGBAt(img, 85, 5))
}

func TestRenderer_DefaultsToJPEG(t *testing.T) {
	store := storage.NewMemoryStore()
	rendered, err := NewRenderer(logger.NewNop(), store).Render(annotatedPanels(t, 16, 16), RenderOptions{})
	require.NoError(t, err)

	assert.Regexp(t, `\.jpg$`, rendered.Ref)
	data, _ := store.Get(rendered.Ref)
	assert.Equal(t, []byte{0xFF, 0xD8}, data[:2])
}

func TestRenderer_StoreFailureIsEncodeError(t *testing.T) {
	_, err := NewRenderer(logger.NewNop(), failingStore{}).Render(annotatedPanels(t, 8, 8), RenderOptions{Format: "png"})

	assert.True(t, errors.Is(err, models.ErrEncode))
	assert.Contains(t, err.Error(), "disk full")
}

func TestRenderer_UnknownFormat(t *testing.T) {
	store := storage.NewMemoryStore()
	_, err := NewRenderer(logger.NewNop(), store).Render(annotatedPanels(t, 8, 8), RenderOptions{Format: "gif"})

	assert.True(t, errors.Is(err, models.ErrEncode))
	assert.Zero(t, store.Len())
}

func TestFileExt(t *testing.T) {
	for in, want := range map[string]gocv.FileExt{
		"": gocv.JPEGFileExt, "jpg": gocv.JPEGFileExt, "JPEG": gocv.JPEGFileExt,
		".png": gocv.PNGFileExt, "png": gocv.PNGFileExt,
	} {
		got, err := FileExt(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := FileExt("bmp")
	assert.Error(t, err)
}

func TestArtifactName_IsUnique(t *testing.T) {
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	pattern := regexp.MustCompile(`^comparison_20240102_030405_[0-9a-f]{8}\.jpg$`)

	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		name := ArtifactName(at, gocv.JPEGFileExt)
		require.Regexp(t, pattern, name)
		require.False(t, seen[name])
		seen[name] = true
	}
}
