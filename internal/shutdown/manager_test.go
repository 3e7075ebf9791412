package shutdown

import (
	"context"
	"sync"
	"testing"
	"time"

	"visualdiff/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_ShutdownRunsComponentsInReverse(t *testing.T) {
	m := NewManager(context.Background(), logger.NewNop())

	var (
		mu    sync.Mutex
		order []string
	)
	record := func(name string) Shutdownable {
		return Func(func() {
			mu.Lock()
			defer mu.Unlock()
			order = append(order, name)
		})
	}
	m.Register(record("store"))
	m.Register(record("runner"))

	m.Shutdown()
	m.Shutdown()

	assert.Equal(t, []string{"runner", "store"}, order)
	assert.ErrorIs(t, m.Context().Err(), context.Canceled)
	select {
	case <-m.Done():
	default:
		t.Fatal("done channel not closed")
	}
}

func TestManager_SlowComponentTimesOut(t *testing.T) {
	m := NewManager(context.Background(), logger.NewNop())
	m.timeout = 10 * time.Millisecond
	release := make(chan struct{})
	defer close(release)
	m.Register(Func(func() { <-release }))

	start := time.Now()
	m.Shutdown()

	assert.Less(t, time.Since(start), time.Second)
}

func TestManager_StopCancelsWithoutComponents(t *testing.T) {
	m := NewManager(context.Background(), logger.NewNop())
	called := false
	m.Register(Func(func() { called = true }))

	m.Listen()
	m.Listen()
	m.Stop()

	require.ErrorIs(t, m.Context().Err(), context.Canceled)
	assert.False(t, called)

	m.Shutdown()
	assert.False(t, called)
}
