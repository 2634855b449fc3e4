package calseg_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"code.hybscloud.com/xcp/calseg"
)

func TestLockUnlockReturnsWorkingPage(t *testing.T) {
	m := calseg.NewManager()
	idx := m.AddSegment("params", 8, 2, nil)

	require.NoError(t, m.Write(idx, 0, []byte{1, 2, 3}))

	buf, err := m.Lock(idx)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 0, 0, 0, 0, 0}, buf)
	require.NoError(t, m.Unlock(idx))
}

func TestSetGetCalPage(t *testing.T) {
	m := calseg.NewManager()
	idx := m.AddSegment("params", 4, 2, nil)

	page, err := m.GetCalPage(idx)
	require.NoError(t, err)
	assert.Equal(t, 0, page)

	require.NoError(t, m.SetCalPage(idx, 1))
	page, err = m.GetCalPage(idx)
	require.NoError(t, err)
	assert.Equal(t, 1, page)

	require.NoError(t, m.SetCalPage(idx, 0))
	page, err = m.GetCalPage(idx)
	require.NoError(t, err)
	assert.Equal(t, 0, page)

	assert.ErrorIs(t, m.SetCalPage(idx, 7), calseg.ErrPageNotValid)
}

func TestSetCalPageDeferredWhileLocked(t *testing.T) {
	m := calseg.NewManager()
	idx := m.AddSegment("params", 4, 2, nil)
	require.NoError(t, m.Write(idx, 0, []byte{9, 9, 9, 9}))

	buf, err := m.Lock(idx)
	require.NoError(t, err)
	assert.Equal(t, []byte{9, 9, 9, 9}, buf)

	// The client requests page 1 (FLASH, all zero defaults) while the
	// ECU still holds its lock; the already-returned slice must not
	// change out from under it.
	require.NoError(t, m.SetCalPage(idx, 1))
	assert.Equal(t, []byte{9, 9, 9, 9}, buf, "in-flight Lock view must not mutate")

	require.NoError(t, m.Unlock(idx))

	page, err := m.GetCalPage(idx)
	require.NoError(t, err)
	assert.Equal(t, 1, page, "swap applies once the critical section ends")
}

func TestCopyCalPageFlashToRam(t *testing.T) {
	m := calseg.NewManager()
	idx := m.AddSegment("params", 4, 2, nil)
	require.NoError(t, m.Write(idx, 0, []byte{1, 1, 1, 1}))

	require.NoError(t, m.CopyCalPage(idx, 1, 0))

	buf, err := m.Read(idx, 0, 4)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0, 0}, buf, "reference defaults to zero, copy should reset working page")

	assert.ErrorIs(t, m.CopyCalPage(idx, 0, 1), calseg.ErrAccessDenied)
}

func TestRepeatedCopyCalPageRecyclesScratchBuffers(t *testing.T) {
	m := calseg.NewManager()
	idx := m.AddSegment("params", 4, 2, nil)

	// Far more republish cycles than the pool holds buffers: each cycle
	// must reclaim the generation retired in the cycle before it.
	for i := 0; i < 10; i++ {
		require.NoError(t, m.Write(idx, 0, []byte{byte(i + 1)}))
		require.NoError(t, m.CopyCalPage(idx, 1, 0))
		buf, err := m.Read(idx, 0, 1)
		require.NoError(t, err)
		assert.Equal(t, byte(0), buf[0])
	}
}

func TestAtomicTransactionInvariant(t *testing.T) {
	m := calseg.NewManager()
	idx := m.AddSegment("params", 2, 2, nil)
	require.NoError(t, m.Write(idx, 0, []byte{0, 0}))

	require.NoError(t, m.BeginTransaction())
	require.NoError(t, m.Write(idx, 0, []byte{5}))
	require.NoError(t, m.Write(idx, 1, []byte{0xFB})) // -5 as a signed byte

	// Concurrent Lock/Unlock cycles during the transaction must always
	// observe the invariant test_byte1 == -test_byte2: either the old
	// pair (0, 0) or the new pair (5, -5), never a torn mix.
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			buf, err := m.Lock(idx)
			if err == nil {
				b1, b2 := int8(buf[0]), int8(buf[1])
				if b1 != -b2 {
					t.Errorf("torn transaction observed: test_byte1=%d test_byte2=%d", b1, b2)
				}
			}
			_ = m.Unlock(idx)
		}
	}()

	require.NoError(t, m.EndTransaction())
	close(stop)
	wg.Wait()

	buf, err := m.Read(idx, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, []byte{5, 0xFB}, buf)
}

func TestEndTransactionWithoutBeginFails(t *testing.T) {
	m := calseg.NewManager()
	assert.ErrorIs(t, m.EndTransaction(), calseg.ErrNoTransaction)
}

func TestBuildChecksumADD44(t *testing.T) {
	m := calseg.NewManager()
	idx := m.AddSegment("params", 8, 2, nil)
	require.NoError(t, m.Write(idx, 0, []byte{1, 0, 0, 0, 2, 0, 0, 0}))

	sum, err := m.BuildChecksum(idx, 0, 8)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), sum)
}

func TestBuildChecksumPartialTrailingWord(t *testing.T) {
	m := calseg.NewManager()
	idx := m.AddSegment("params", 6, 2, nil)
	require.NoError(t, m.Write(idx, 0, []byte{1, 0, 0, 0, 7, 0}))

	sum, err := m.BuildChecksum(idx, 0, 6)
	require.NoError(t, err)
	assert.Equal(t, uint32(1+7), sum)
}

func TestFreezeCalPageInvokesCallback(t *testing.T) {
	m := calseg.NewManager()
	var got []byte
	var name string
	idx := m.AddSegment("params", 4, 2, func(segment string, page []byte) error {
		name = segment
		got = append([]byte(nil), page...)
		return nil
	})
	require.NoError(t, m.Write(idx, 0, []byte{4, 5, 6, 7}))
	require.NoError(t, m.FreezeCalPage(idx))
	assert.Equal(t, "params", name)
	assert.Equal(t, []byte{4, 5, 6, 7}, got)
}

func TestUnknownSegmentIndex(t *testing.T) {
	m := calseg.NewManager()
	_, err := m.Lock(5)
	assert.ErrorIs(t, err, calseg.ErrSegmentNotValid)
}
