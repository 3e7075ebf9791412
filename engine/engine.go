// Package engine compares two raster images and reports their structural
// similarity together with an annotated three-panel composite.
//
// An Engine holds only immutable collaborators and is safe for concurrent
// use. Every call decodes, analyses and renders independently.
package engine

import (
	"errors"
	"fmt"

	"visualdiff/internal/logger"
	"visualdiff/internal/models"
	"visualdiff/internal/pipeline"
	"visualdiff/internal/storage"
)

// Engine runs comparisons.
type Engine struct {
	logger      logger.Logger
	store       ArtifactStore
	options     Options
	coordinator *pipeline.Coordinator
}

// Option configures an Engine.
type Option func(*Engine) error

// WithStore sets where composites are persisted. The default discards them
// and only reports the name they would have been stored under.
func WithStore(store ArtifactStore) Option {
	return func(e *Engine) error {
		if store == nil {
			return models.NewError(models.ErrConfig, "", errors.New("artifact store is nil"))
		}
		e.store = store
		return nil
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(log Logger) Option {
	return func(e *Engine) error {
		if log == nil {
			return models.NewError(models.ErrConfig, "", errors.New("logger is nil"))
		}
		e.logger = log
		return nil
	}
}

// WithOptions replaces the options used by Compare.
func WithOptions(o Options) Option {
	return func(e *Engine) error {
		if err := o.Validate(); err != nil {
			return err
		}
		e.options = o
		return nil
	}
}

func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		logger:  logger.NewNop(),
		options: DefaultOptions(),
	}

	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}

	if e.store == nil {
		e.store = storage.DiscardStore{}
	}

	e.coordinator = pipeline.NewCoordinator(e.logger, e.store)
	return e, nil
}

// Compare runs CompareWith using the engine's options.
func (e *Engine) Compare(first, second []byte) (*ComparisonResult, error) {
	return e.CompareWith(first, second, e.options)
}

// CompareWith decodes first and second, resizes first to second's size and
// returns the similarity result. Errors carry a Kind and match ErrDecode,
// ErrDimension, ErrEncode or ErrConfig with errors.Is.
func (e *Engine) CompareWith(first, second []byte, o Options) (*ComparisonResult, error) {
	result, err := e.coordinator.Run(first, second, o)
	if err != nil {
		kind, ok := models.KindOf(err)
		if !ok {
			err = models.NewError(models.ErrEncode, "", err)
			kind = models.KindEncode
		}
		e.logger.Error("Engine", err, map[string]interface{}{
			"kind": string(kind),
		})
		return nil, err
	}

	e.logger.Info("Engine", result.Message, map[string]interface{}{
		"similarity": result.Similarity,
		"regions":    len(result.Regions),
		"artifact":   result.ComparisonImage,
	})

	return result, nil
}

// Options returns a copy of the engine's default per-call options.
func (e *Engine) Options() Options {
	return e.options
}

// Store returns the artifact store composites are written to.
func (e *Engine) Store() ArtifactStore {
	return e.store
}

func (e *Engine) String() string {
	return fmt.Sprintf("engine(min_area=%d window=%d format=%s)",
		e.options.MinRegionArea, e.options.SSIM.WindowSize, e.options.ArtifactFormat)
}
