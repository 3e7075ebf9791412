package pipeline

import (
	"fmt"
	"time"

	"visualdiff/internal/debug/timing"
	"visualdiff/internal/logger"
	"visualdiff/internal/models"
	"visualdiff/internal/opencv/conversion"
	"visualdiff/internal/pipeline/stages"
)

// Coordinator runs the stages in order for one comparison at a time per
// call. It holds no per-comparison state and may be shared.
type Coordinator struct {
	logger    logger.Logger
	loader    ImageLoader
	mapper    SimilarityMapper
	extractor RegionExtractor
	annotator RegionAnnotator
	renderer  CompositeRenderer
}

func NewCoordinator(log logger.Logger, store stages.ArtifactStore) *Coordinator {
	return &Coordinator{
		logger:    log,
		loader:    stages.NewLoader(log),
		mapper:    stages.NewMapper(log),
		extractor: stages.NewExtractor(log),
		annotator: stages.NewAnnotator(log),
		renderer:  stages.NewRenderer(log, store),
	}
}

// Run compares first against second. Every Mat allocated along the way is
// released before Run returns, and nothing is stored unless every stage
// succeeded.
func (c *Coordinator) Run(first, second []byte, opts Options) (*models.ComparisonResult, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	interpolation, _ := conversion.ParseInterpolation(opts.Interpolation)
	tracker := timing.NewTracker(c.logger)

	var pair *models.NormalizedPair
	err := tracker.Time("load", func() (err error) {
		pair, err = c.loader.Load(first, second, interpolation)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("loading images failed: %w", err)
	}
	defer pair.Close()

	var (
		simMap *models.SimilarityMap
		score  float64
	)
	err = tracker.Time("similarity", func() (err error) {
		simMap, score, err = c.mapper.Map(pair, opts.SSIM)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("similarity mapping failed: %w", err)
	}

	var extraction *stages.Extraction
	err = tracker.Time("extract", func() (err error) {
		extraction, err = c.extractor.Extract(simMap, opts.MinRegionArea)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("region extraction failed: %w", err)
	}

	var annotated *stages.Annotated
	err = tracker.Time("annotate", func() (err error) {
		annotated, err = c.annotator.Annotate(pair, extraction.Regions, stages.AnnotateOptions{
			BoxThickness: opts.BoxThickness,
			FirstColor:   opts.FirstColor,
			SecondColor:  opts.SecondColor,
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("annotation failed: %w", err)
	}
	defer annotated.Close()

	var rendered *stages.Rendered
	err = tracker.Time("render", func() (err error) {
		rendered, err = c.renderer.Render(annotated, stages.RenderOptions{
			Format:      opts.ArtifactFormat,
			JPEGQuality: opts.JPEGQuality,
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("rendering failed: %w", err)
	}

	result := models.NewComparisonResult(score, rendered.Ref, annotated.Verdicts)
	result.Width = pair.Width
	result.Height = pair.Height
	result.Threshold = extraction.Mask.Threshold

	stageMillis := make(map[string]float64)
	for _, op := range tracker.Operations() {
		stageMillis[op] = millis(tracker.GetAverageTime(op))
	}
	slowest, _ := tracker.Slowest()

	c.logger.Debug("Coordinator", "comparison completed", map[string]interface{}{
		"similarity":    result.Similarity,
		"regions":       len(result.Regions),
		"discarded":     extraction.Discarded,
		"resized":       pair.Resized(),
		"formats":       pair.FirstFormat + "/" + pair.SecondFormat,
		"stages_ms":     stageMillis,
		"slowest_stage": slowest,
		"total_ms":      millis(tracker.Total()),
	})

	return result, nil
}

func millis(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
