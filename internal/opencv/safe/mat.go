package safe

import (
	"fmt"
	"image"
	"runtime"
	"sync"
	"sync/atomic"

	"gocv.io/x/gocv"
)

// Mat wraps a gocv.Mat with idempotent Close and validity checks. A Mat is
// owned by exactly one pipeline stage at a time.
type Mat struct {
	mat     gocv.Mat
	isValid int32
	mu      sync.RWMutex
	tag     string
	id      uint64
	bytes   int64
}

// Observer is told about every Mat this package creates and releases.
// Finalized is true when the garbage collector released a Mat that was
// never closed.
type Observer interface {
	Allocated(id uint64, tag string, bytes int64)
	Released(id uint64, finalized bool)
}

var (
	nextID     uint64
	observerMu sync.RWMutex
	observer   Observer
)

// SetObserver installs o for all Mats created afterwards and returns a
// function restoring the previous observer. A nil o disables observation.
func SetObserver(o Observer) (restore func()) {
	observerMu.Lock()
	prev := observer
	observer = o
	observerMu.Unlock()

	return func() {
		observerMu.Lock()
		observer = prev
		observerMu.Unlock()
	}
}

func currentObserver() Observer {
	observerMu.RLock()
	defer observerMu.RUnlock()
	return observer
}

func NewMat(rows, cols int, matType gocv.MatType) (*Mat, error) {
	return NewMatWithTag(rows, cols, matType, "")
}

func NewMatWithTag(rows, cols int, matType gocv.MatType, tag string) (*Mat, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("invalid dimensions: %dx%d", cols, rows)
	}

	mat := gocv.NewMatWithSize(rows, cols, matType)
	if mat.Empty() {
		mat.Close()
		return nil, fmt.Errorf("failed to create Mat with size %dx%d", cols, rows)
	}

	return wrap(mat, tag), nil
}

// NewZeros allocates a Mat filled with zeros.
func NewZeros(rows, cols int, matType gocv.MatType, tag string) (*Mat, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("invalid dimensions: %dx%d", cols, rows)
	}
	return wrap(gocv.Zeros(rows, cols, matType), tag), nil
}

// NewMatFromBytes copies a row-major buffer into a new Mat.
func NewMatFromBytes(rows, cols int, matType gocv.MatType, data []byte, tag string) (*Mat, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("invalid dimensions: %dx%d", cols, rows)
	}

	mat, err := gocv.NewMatFromBytes(rows, cols, matType, data)
	if err != nil {
		return nil, fmt.Errorf("failed to create Mat from %d bytes: %w", len(data), err)
	}
	// NewMatFromBytes borrows data; clone so the Mat owns its pixels.
	owned := mat.Clone()
	mat.Close()
	if owned.Empty() {
		owned.Close()
		return nil, fmt.Errorf("failed to copy %dx%d buffer into Mat", cols, rows)
	}

	return wrap(owned, tag), nil
}

// NewMatFromMatWithTag clones srcMat; the caller keeps ownership of srcMat.
func NewMatFromMatWithTag(srcMat gocv.Mat, tag string) (*Mat, error) {
	if srcMat.Empty() {
		return nil, fmt.Errorf("source Mat is empty")
	}

	if srcMat.Rows() <= 0 || srcMat.Cols() <= 0 {
		return nil, fmt.Errorf("source Mat has invalid dimensions: %dx%d", srcMat.Cols(), srcMat.Rows())
	}

	clonedMat := srcMat.Clone()
	if clonedMat.Empty() {
		clonedMat.Close()
		return nil, fmt.Errorf("failed to clone Mat")
	}

	return wrap(clonedMat, tag), nil
}

// Adopt takes ownership of m without copying. m must not be closed by the
// caller afterwards.
func Adopt(m gocv.Mat, tag string) (*Mat, error) {
	if m.Empty() {
		m.Close()
		return nil, fmt.Errorf("cannot adopt empty Mat (%s)", tag)
	}
	return wrap(m, tag), nil
}

func wrap(mat gocv.Mat, tag string) *Mat {
	safeMat := &Mat{
		mat:     mat,
		isValid: 1,
		tag:     tag,
		id:      atomic.AddUint64(&nextID, 1),
		bytes:   int64(mat.Total()) * int64(mat.ElemSize()),
	}

	if o := currentObserver(); o != nil {
		o.Allocated(safeMat.id, tag, safeMat.bytes)
	}

	// Set finalizer for cleanup if Close() is not called
	runtime.SetFinalizer(safeMat, (*Mat).finalize)

	return safeMat
}

func (sm *Mat) IsValid() bool {
	return atomic.LoadInt32(&sm.isValid) == 1
}

func (sm *Mat) Tag() string {
	return sm.tag
}

func (sm *Mat) Empty() bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.IsValid() {
		return true
	}

	return sm.mat.Empty()
}

func (sm *Mat) Rows() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.IsValid() {
		return 0
	}

	return sm.mat.Rows()
}

func (sm *Mat) Cols() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.IsValid() {
		return 0
	}

	return sm.mat.Cols()
}

// Size returns (cols, rows).
func (sm *Mat) Size() image.Point {
	return image.Pt(sm.Cols(), sm.Rows())
}

func (sm *Mat) Channels() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.IsValid() {
		return 0
	}

	return sm.mat.Channels()
}

func (sm *Mat) Type() gocv.MatType {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.IsValid() {
		return gocv.MatTypeCV8UC1
	}

	return sm.mat.Type()
}

func (sm *Mat) Clone() (*Mat, error) {
	return sm.CloneWithTag(sm.tag + "_clone")
}

func (sm *Mat) CloneWithTag(tag string) (*Mat, error) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.IsValid() {
		return nil, fmt.Errorf("cannot clone invalid Mat")
	}

	if sm.mat.Empty() {
		return nil, fmt.Errorf("cannot clone empty Mat")
	}

	return NewMatFromMatWithTag(sm.mat, tag)
}

// Bytes returns a copy of the Mat's pixel buffer.
func (sm *Mat) Bytes() ([]byte, error) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.IsValid() {
		return nil, fmt.Errorf("Mat is invalid")
	}

	if !sm.mat.IsContinuous() {
		return nil, fmt.Errorf("Mat %q is not continuous", sm.tag)
	}

	return sm.mat.ToBytes(), nil
}

// GetMat exposes the wrapped gocv.Mat. The returned value shares memory with
// sm and must not be closed by the caller.
func (sm *Mat) GetMat() gocv.Mat {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	return sm.mat
}

// Ptr exposes the wrapped Mat for gocv drawing calls that take a *gocv.Mat.
func (sm *Mat) Ptr() *gocv.Mat {
	return &sm.mat
}

func (sm *Mat) Close() {
	sm.release(false)
}

func (sm *Mat) release(finalized bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if atomic.CompareAndSwapInt32(&sm.isValid, 1, 0) {
		sm.mat.Close()
		runtime.SetFinalizer(sm, nil)

		if o := currentObserver(); o != nil {
			o.Released(sm.id, finalized)
		}
	}
}

// finalize is the garbage collector's last resort for Mats never closed.
func (sm *Mat) finalize() {
	if atomic.LoadInt32(&sm.isValid) == 1 {
		sm.release(true)
	}
}

// CloseAll closes every non-nil Mat.
func CloseAll(mats ...*Mat) {
	for _, m := range mats {
		if m != nil {
			m.Close()
		}
	}
}
