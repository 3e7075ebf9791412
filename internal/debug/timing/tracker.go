package timing

import (
	"context"
	"sort"
	"sync"
	"time"

	"visualdiff/internal/logger"
)

type timingKey struct{}

type TimingInfo struct {
	Operation string
	StartTime time.Time
}

// Tracker records how long each named operation took. One Tracker belongs to
// one comparison; it is not meant to outlive it.
type Tracker struct {
	timings map[string][]time.Duration
	order   []string
	mu      sync.RWMutex
	logger  logger.Logger
	now     func() time.Time
}

func NewTracker(log logger.Logger) *Tracker {
	return &Tracker{
		timings: make(map[string][]time.Duration),
		logger:  log,
		now:     time.Now,
	}
}

func (tt *Tracker) StartTiming(operation string) context.Context {
	return context.WithValue(context.Background(), timingKey{}, TimingInfo{
		Operation: operation,
		StartTime: tt.now(),
	})
}

func (tt *Tracker) EndTiming(ctx context.Context) {
	timingInfo, ok := ctx.Value(timingKey{}).(TimingInfo)
	if !ok {
		return
	}

	duration := tt.now().Sub(timingInfo.StartTime)

	tt.mu.Lock()
	if _, seen := tt.timings[timingInfo.Operation]; !seen {
		tt.order = append(tt.order, timingInfo.Operation)
	}
	tt.timings[timingInfo.Operation] = append(tt.timings[timingInfo.Operation], duration)
	tt.mu.Unlock()

	if tt.logger != nil {
		tt.logger.Debug("Timing", "operation completed", map[string]interface{}{
			"operation":   timingInfo.Operation,
			"duration_ms": float64(duration.Microseconds()) / 1000,
		})
	}
}

// Time runs fn as the named operation.
func (tt *Tracker) Time(operation string, fn func() error) error {
	ctx := tt.StartTiming(operation)
	defer tt.EndTiming(ctx)
	return fn()
}

func (tt *Tracker) GetTimings(operation string) []time.Duration {
	tt.mu.RLock()
	defer tt.mu.RUnlock()

	timings := tt.timings[operation]
	if timings == nil {
		return nil
	}

	result := make([]time.Duration, len(timings))
	copy(result, timings)
	return result
}

// Operations lists recorded operations in the order they first completed.
func (tt *Tracker) Operations() []string {
	tt.mu.RLock()
	defer tt.mu.RUnlock()

	result := make([]string, len(tt.order))
	copy(result, tt.order)
	return result
}

func (tt *Tracker) GetAverageTime(operation string) time.Duration {
	timings := tt.GetTimings(operation)
	if len(timings) == 0 {
		return 0
	}

	var total time.Duration
	for _, duration := range timings {
		total += duration
	}

	return total / time.Duration(len(timings))
}

// Total sums every recorded duration.
func (tt *Tracker) Total() time.Duration {
	tt.mu.RLock()
	defer tt.mu.RUnlock()

	var total time.Duration
	for _, timings := range tt.timings {
		for _, d := range timings {
			total += d
		}
	}
	return total
}

// Slowest returns the operation with the largest accumulated time.
func (tt *Tracker) Slowest() (string, time.Duration) {
	tt.mu.RLock()
	defer tt.mu.RUnlock()

	names := make([]string, 0, len(tt.timings))
	sums := make(map[string]time.Duration, len(tt.timings))
	for name, timings := range tt.timings {
		names = append(names, name)
		for _, d := range timings {
			sums[name] += d
		}
	}
	if len(names) == 0 {
		return "", 0
	}

	sort.Slice(names, func(i, j int) bool {
		if sums[names[i]] != sums[names[j]] {
			return sums[names[i]] > sums[names[j]]
		}
		return names[i] < names[j]
	})
	return names[0], sums[names[0]]
}
