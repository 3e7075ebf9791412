package safe

import (
	"image"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func TestNewMat_RejectsInvalidDimensions(t *testing.T) {
	_, err := NewMat(0, 10, gocv.MatTypeCV8UC1)
	assert.Error(t, err)

	_, err = NewZeros(10, -1, gocv.MatTypeCV8UC1, "zeros")
	assert.Error(t, err)
}

func TestNewMatFromBytes_OwnsCopy(t *testing.T) {
	data := []byte{1, 2, 3, 4, 5, 6}
	m, err := NewMatFromBytes(2, 3, gocv.MatTypeCV8UC1, data, "bytes")
	require.NoError(t, err)
	defer m.Close()

	data[0] = 99

	mMat := m.GetMat()
	assert.Equal(t, uint8(1), mMat.GetUCharAt(0, 0))
	assert.Equal(t, image.Pt(3, 2), m.Size())
	assert.Equal(t, "bytes", m.Tag())

	out, err := m.Bytes()
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6}, out)
}

func TestMat_CloseIsIdempotent(t *testing.T) {
	m, err := NewZeros(4, 4, gocv.MatTypeCV8UC3, "zeros")
	require.NoError(t, err)

	m.Close()
	m.Close()

	assert.False(t, m.IsValid())
	assert.True(t, m.Empty())
	assert.Equal(t, 0, m.Rows())
	_, err = m.Bytes()
	assert.Error(t, err)
	_, err = m.Clone()
	assert.Error(t, err)
}

func TestMat_CloneIsIndependent(t *testing.T) {
	src, err := NewZeros(2, 2, gocv.MatTypeCV8UC1, "src")
	require.NoError(t, err)
	defer src.Close()

	clone, err := src.Clone()
	require.NoError(t, err)
	defer clone.Close()

	clone.Ptr().SetUCharAt(0, 0, 200)

	srcMat := src.GetMat()
	assert.Equal(t, uint8(0), srcMat.GetUCharAt(0, 0))
	assert.Equal(t, "src_clone", clone.Tag())
}

func TestValidateSameSize(t *testing.T) {
	a, err := NewZeros(3, 4, gocv.MatTypeCV8UC1, "a")
	require.NoError(t, err)
	defer a.Close()
	b, err := NewZeros(3, 4, gocv.MatTypeCV8UC3, "b")
	require.NoError(t, err)
	defer b.Close()
	c, err := NewZeros(4, 4, gocv.MatTypeCV8UC1, "c")
	require.NoError(t, err)
	defer c.Close()

	assert.NoError(t, ValidateSameSize("test", a, b))
	assert.Error(t, ValidateSameSize("test", a, c))
	assert.Error(t, ValidateSameSize("test", a, nil))
}

func TestValidateDimensions(t *testing.T) {
	assert.NoError(t, ValidateDimensions(10, 10, "test"))
	assert.Error(t, ValidateDimensions(0, 10, "test"))
	assert.Error(t, ValidateDimensions(MaxDimension+1, 10, "test"))
}

func TestValidateColorConversion(t *testing.T) {
	gray, err := NewZeros(2, 2, gocv.MatTypeCV8UC1, "gray")
	require.NoError(t, err)
	defer gray.Close()

	assert.Error(t, ValidateColorConversion(gray, gocv.ColorBGRToGray))
	assert.NoError(t, ValidateColorConversion(gray, gocv.ColorGrayToBGR))
}

type recordingObserver struct {
	mu        sync.Mutex
	allocated map[uint64]int64
	tags      map[uint64]string
	released  []uint64
}

func (r *recordingObserver) Allocated(id uint64, tag string, bytes int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.allocated[id] = bytes
	r.tags[id] = tag
}

func (r *recordingObserver) Released(id uint64, finalized bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.released = append(r.released, id)
}

func TestSetObserver_SeesAllocationAndSingleRelease(t *testing.T) {
	obs := &recordingObserver{allocated: map[uint64]int64{}, tags: map[uint64]string{}}
	restore := SetObserver(obs)

	m, err := NewZeros(4, 5, gocv.MatTypeCV8UC3, "observed")
	require.NoError(t, err)
	m.Close()
	m.Close()
	restore()

	obs.mu.Lock()
	defer obs.mu.Unlock()
	require.Len(t, obs.allocated, 1)
	for id, size := range obs.allocated {
		assert.EqualValues(t, 4*5*3, size)
		assert.Equal(t, "observed", obs.tags[id])
		count := 0
		for _, r := range obs.released {
			if r == id {
				count++
			}
		}
		assert.Equal(t, 1, count)
	}

	after, err := NewZeros(2, 2, gocv.MatTypeCV8UC1, "unobserved")
	require.NoError(t, err)
	after.Close()
	assert.Len(t, obs.allocated, 1)
}
