package batch

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"visualdiff/engine"
	"visualdiff/internal/logger"
	"visualdiff/internal/models"
	"visualdiff/internal/storage"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"
)

// ScreenResult is the outcome of one screen. Exactly one of the embedded
// result and Error is set.
type ScreenResult struct {
	ScreenName string `json:"screen_name"`
	*models.ComparisonResult
	Error string `json:"error,omitempty"`

	Err      error         `json:"-"`
	Duration time.Duration `json:"-"`
}

// Report collects a whole run in manifest order.
type Report struct {
	Dir     string         `json:"dir"`
	Results []ScreenResult `json:"results"`
	Failed  int            `json:"failed"`
}

// Runner compares every screen of a manifest with bounded parallelism. It
// drives one run at a time.
type Runner struct {
	logger        logger.Logger
	options       engine.Options
	workers       int
	maxInputBytes int64
	now           func() time.Time

	mu      sync.Mutex
	stopped bool
	cancel  context.CancelFunc
	running chan struct{}
}

func NewRunner(log logger.Logger, options engine.Options, workers int, maxInputBytes int64) *Runner {
	if workers < 1 {
		workers = 1
	}
	return &Runner{
		logger:        log,
		options:       options,
		workers:       workers,
		maxInputBytes: maxInputBytes,
		now:           time.Now,
	}
}

// Run writes inputs and composites to root/bulk_comparisons/<timestamp>.
// A failing screen does not stop the others; all failures are returned
// together. Cancelling ctx skips screens that have not started yet.
func (r *Runner) Run(ctx context.Context, m *Manifest, root string) (*Report, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan struct{})
	defer close(done)

	r.mu.Lock()
	if r.stopped {
		cancel()
	}
	r.cancel = cancel
	r.running = done
	r.mu.Unlock()

	store, err := storage.NewRunStore(root, r.now())
	if err != nil {
		return nil, err
	}

	eng, err := engine.New(engine.WithStore(store), engine.WithLogger(r.logger), engine.WithOptions(r.options))
	if err != nil {
		return nil, err
	}

	report := &Report{Dir: store.Dir(), Results: make([]ScreenResult, len(m.Screens))}

	var (
		mu   sync.Mutex
		errs *multierror.Error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)

	for i, screen := range m.Screens {
		g.Go(func() error {
			start := time.Now()
			res, err := r.compareScreen(gctx, eng, store, m, screen)

			out := ScreenResult{ScreenName: screen.Name, ComparisonResult: res, Duration: time.Since(start)}
			if err != nil {
				out.Err = fmt.Errorf("screen %s: %w", screen.Name, err)
				out.Error = err.Error()

				mu.Lock()
				errs = multierror.Append(errs, out.Err)
				mu.Unlock()

				r.logger.Warning("Batch", "screen failed", map[string]interface{}{
					"screen": screen.Name,
					"error":  err.Error(),
				})
			}
			report.Results[i] = out
			return nil
		})
	}

	// Workers never return errors; failures are collected above.
	_ = g.Wait()

	for _, res := range report.Results {
		if res.Err != nil {
			report.Failed++
		}
	}

	r.logger.Info("Batch", "run completed", map[string]interface{}{
		"screens": len(report.Results),
		"failed":  report.Failed,
		"dir":     report.Dir,
	})

	return report, errs.ErrorOrNil()
}

func (r *Runner) compareScreen(ctx context.Context, eng *engine.Engine, store storage.ArtifactStore, m *Manifest, s Screen) (*models.ComparisonResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	first, err := r.readAndKeep(store, m.Resolve(s.First), s.Name, "first")
	if err != nil {
		return nil, fmt.Errorf("first image: %w", err)
	}
	second, err := r.readAndKeep(store, m.Resolve(s.Second), s.Name, "second")
	if err != nil {
		return nil, fmt.Errorf("second image: %w", err)
	}

	return eng.Compare(first, second)
}

// readAndKeep reads an input and stores a copy next to the composites as
// <screen>_<role><ext>.
func (r *Runner) readAndKeep(store storage.ArtifactStore, path, screen, role string) ([]byte, error) {
	data, err := ReadInput(path, r.maxInputBytes)
	if err != nil {
		return nil, err
	}

	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		ext = ".png"
	}
	if _, err := store.Save(storage.SanitizeName(fmt.Sprintf("%s_%s%s", screen, role, ext)), data); err != nil {
		return nil, fmt.Errorf("failed to keep input copy: %w", err)
	}
	return data, nil
}

// Shutdown cancels the current run and waits until the comparisons already
// in flight have finished. Runs started afterwards skip every screen.
func (r *Runner) Shutdown() {
	r.mu.Lock()
	r.stopped = true
	cancel, running := r.cancel, r.running
	r.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-running

	r.logger.Info("Batch", "run stopped", nil)
}
