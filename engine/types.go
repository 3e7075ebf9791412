package engine

import (
	"visualdiff/internal/logger"
	"visualdiff/internal/models"
	"visualdiff/internal/pipeline"
	"visualdiff/internal/pipeline/stages"
	"visualdiff/internal/processing/ssim"
	"visualdiff/internal/storage"
)

type (
	// Options tunes one comparison. Start from DefaultOptions.
	Options = pipeline.Options
	// SSIMParams controls the similarity window and constants.
	SSIMParams = ssim.Params

	ComparisonResult = models.ComparisonResult
	RegionVerdict    = models.RegionVerdict
	Region           = models.Region
	Dominance        = models.Dominance

	// Logger receives component-tagged events.
	Logger = logger.Logger

	// ArtifactStore persists an encoded composite and returns a reference.
	ArtifactStore = stages.ArtifactStore
	// MemoryStore keeps every composite until the caller drops the store.
	MemoryStore = storage.MemoryStore
	// DiscardStore keeps nothing. It is the default store.
	DiscardStore = storage.DiscardStore

	// Error is the typed failure returned by CompareWith.
	Error     = models.Error
	ErrorKind = models.ErrorKind
)

const (
	FirstDominant  = models.FirstDominant
	SecondDominant = models.SecondDominant

	KindDecode    = models.KindDecode
	KindDimension = models.KindDimension
	KindEncode    = models.KindEncode
	KindConfig    = models.KindConfig
)

var (
	ErrDecode    = models.ErrDecode
	ErrDimension = models.ErrDimension
	ErrEncode    = models.ErrEncode
	ErrConfig    = models.ErrConfig
)

// DefaultOptions: 40 px minimum region area, 7x7 uniform SSIM window,
// bilinear resize, JPEG at quality 95, 2 px boxes, green and red verdicts.
func DefaultOptions() Options {
	return pipeline.DefaultOptions()
}

func DefaultSSIMParams() SSIMParams {
	return ssim.DefaultParams()
}

// NewDirStore writes composites below root and returns references relative to
// root.
func NewDirStore(root string, folders ...string) (ArtifactStore, error) {
	store, err := storage.NewDirStore(root, folders...)
	if err != nil {
		return nil, err
	}
	return store, nil
}

// NewMemoryStore keeps composites in memory, for tests and short-lived
// engines.
func NewMemoryStore() *MemoryStore {
	return storage.NewMemoryStore()
}
