// Package memtracker accounts for native Mat memory so runs can be checked
// for Mats that were never closed.
package memtracker

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"visualdiff/internal/logger"

	"github.com/dustin/go-humanize"
)

type AllocationInfo struct {
	ID          uint64
	Size        int64
	Tag         string
	AllocatedAt time.Time
}

type MemoryStats struct {
	TotalAllocated   int64
	TotalDeallocated int64
	CurrentlyActive  int64
	AllocationCount  int64
	FinalizedCount   int64
}

// Tracker implements safe.Observer.
type Tracker struct {
	allocations  map[uint64]AllocationInfo
	mu           sync.RWMutex
	logger       logger.Logger
	totalAlloc   int64
	totalDealloc int64
	allocCount   int64
	finalized    int64
	now          func() time.Time
}

func NewTracker(log logger.Logger) *Tracker {
	return &Tracker{
		allocations: make(map[uint64]AllocationInfo),
		logger:      log,
		now:         time.Now,
	}
}

func (mt *Tracker) Allocated(id uint64, tag string, size int64) {
	atomic.AddInt64(&mt.totalAlloc, size)
	atomic.AddInt64(&mt.allocCount, 1)

	mt.mu.Lock()
	mt.allocations[id] = AllocationInfo{ID: id, Size: size, Tag: tag, AllocatedAt: mt.now()}
	mt.mu.Unlock()
}

func (mt *Tracker) Released(id uint64, finalized bool) {
	mt.mu.Lock()
	info, exists := mt.allocations[id]
	if exists {
		delete(mt.allocations, id)
	}
	mt.mu.Unlock()

	if !exists {
		return
	}
	atomic.AddInt64(&mt.totalDealloc, info.Size)

	if finalized {
		atomic.AddInt64(&mt.finalized, 1)
		if mt.logger != nil {
			mt.logger.Warning("MemoryTracker", "Mat released by finalizer", map[string]interface{}{
				"tag":  info.Tag,
				"size": humanize.Bytes(uint64(info.Size)),
			})
		}
	}
}

func (mt *Tracker) GetStats() MemoryStats {
	mt.mu.RLock()
	currentlyActive := int64(len(mt.allocations))
	mt.mu.RUnlock()

	return MemoryStats{
		TotalAllocated:   atomic.LoadInt64(&mt.totalAlloc),
		TotalDeallocated: atomic.LoadInt64(&mt.totalDealloc),
		CurrentlyActive:  currentlyActive,
		AllocationCount:  atomic.LoadInt64(&mt.allocCount),
		FinalizedCount:   atomic.LoadInt64(&mt.finalized),
	}
}

// Active lists live allocations, oldest first.
func (mt *Tracker) Active() []AllocationInfo {
	mt.mu.RLock()
	result := make([]AllocationInfo, 0, len(mt.allocations))
	for _, info := range mt.allocations {
		result = append(result, info)
	}
	mt.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// DetectLeaks returns live allocations older than olderThan.
func (mt *Tracker) DetectLeaks(olderThan time.Duration) []AllocationInfo {
	threshold := mt.now().Add(-olderThan)

	var leaks []AllocationInfo
	for _, info := range mt.Active() {
		if !info.AllocatedAt.After(threshold) {
			leaks = append(leaks, info)
		}
	}
	return leaks
}

// Report logs a summary and one warning per live Mat.
func (mt *Tracker) Report() {
	if mt.logger == nil {
		return
	}

	stats := mt.GetStats()
	mt.logger.Debug("MemoryTracker", "native memory summary", map[string]interface{}{
		"allocations": stats.AllocationCount,
		"allocated":   humanize.Bytes(uint64(stats.TotalAllocated)),
		"released":    humanize.Bytes(uint64(stats.TotalDeallocated)),
		"active":      stats.CurrentlyActive,
		"finalized":   stats.FinalizedCount,
	})

	for _, info := range mt.DetectLeaks(0) {
		mt.logger.Warning("MemoryTracker", "Mat still open", map[string]interface{}{
			"tag":  info.Tag,
			"size": humanize.Bytes(uint64(info.Size)),
			"age":  mt.now().Sub(info.AllocatedAt).String(),
		})
	}
}
