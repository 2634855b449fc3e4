package addr_test

import (
	"errors"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"code.hybscloud.com/xcp/addr"
	"code.hybscloud.com/xcp/calseg"
)

type fakeApp struct {
	store map[uint32][]byte
}

func (f *fakeApp) ReadApp(a uint32, n int) ([]byte, error) {
	buf, ok := f.store[a]
	if !ok || len(buf) < n {
		return nil, errors.New("fakeApp: no data")
	}
	return buf[:n], nil
}

func (f *fakeApp) WriteApp(a uint32, data []byte) error {
	cp := make([]byte, len(data))
	copy(cp, data)
	f.store[a] = cp
	return nil
}

type fakeA2L struct {
	blob []byte
}

func (f *fakeA2L) ReadA2L(offset, n int) ([]byte, error) {
	if offset < 0 || offset+n > len(f.blob) {
		return nil, errors.New("fakeA2L: out of range")
	}
	return f.blob[offset : offset+n], nil
}

type fakeEvents struct {
	bases map[uint16]uint32
}

func (f *fakeEvents) EventBase(id uint16) (uint32, bool) {
	b, ok := f.bases[id]
	return b, ok
}

func TestDisabledExtensionDenied(t *testing.T) {
	cs := calseg.NewManager()
	r := addr.NewResolver(0, cs, &fakeApp{store: map[uint32][]byte{}}, &fakeA2L{}, &fakeEvents{})
	_, err := r.Read(addr.ABS, 0, 4, 0)
	assert.ErrorIs(t, err, addr.ErrAccessDenied)
}

func TestSEGEncodeDecodeRoundTrip(t *testing.T) {
	a := addr.EncodeSEG(3, 0x1234)
	segIdx, off, ok := addr.DecodeSEG(a)
	require.True(t, ok)
	assert.Equal(t, 3, segIdx)
	assert.Equal(t, uint16(0x1234), off)
}

func TestSEGDecodeRejectsNonSegAddress(t *testing.T) {
	_, _, ok := addr.DecodeSEG(0x00010000)
	assert.False(t, ok)
}

func TestSEGReadWriteDelegatesToCalSeg(t *testing.T) {
	cs := calseg.NewManager()
	idx := cs.AddSegment("params", 16, 2, nil)
	r := addr.NewResolver(0, cs, nil, nil, nil, addr.SEG)

	a := addr.EncodeSEG(idx, 4)
	err := r.Write(addr.SEG, a, []byte{0xAA, 0xBB}, 0)
	require.NoError(t, err)

	got, err := r.Read(addr.SEG, a, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xAA, 0xBB}, got)
}

func TestSEGUnknownSegmentDenied(t *testing.T) {
	cs := calseg.NewManager()
	r := addr.NewResolver(0, cs, nil, nil, nil, addr.SEG)
	a := addr.EncodeSEG(9, 0)
	_, err := r.Read(addr.SEG, a, 1, 0)
	assert.Error(t, err)
}

func TestABSReadWriteRoundTrip(t *testing.T) {
	var scratch [8]byte
	cs := calseg.NewManager()
	r := addr.NewResolver(0, cs, nil, nil, nil, addr.ABS)

	base := uint32(uintptr(unsafe.Pointer(&scratch[0])))
	err := r.Write(addr.ABS, base, []byte{1, 2, 3, 4}, 0)
	require.NoError(t, err)
	assert.Equal(t, [4]byte{1, 2, 3, 4}, [4]byte(scratch[:4]))

	got, err := r.Read(addr.ABS, base, 4, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, got)
}

func TestRELUsesEventBaseOffset(t *testing.T) {
	var scratch [8]byte
	cs := calseg.NewManager()
	r := addr.NewResolver(0, cs, nil, nil, nil, addr.REL)

	base := uint32(uintptr(unsafe.Pointer(&scratch[0])))
	require.NoError(t, r.Write(addr.REL, 0xFFFFFFFE /* -2 */, []byte{9, 9}, base+2))

	assert.Equal(t, byte(9), scratch[0])
	assert.Equal(t, byte(9), scratch[1])
}

func TestDYNResolvesThroughEventBaser(t *testing.T) {
	var scratch [8]byte
	cs := calseg.NewManager()
	base := uint32(uintptr(unsafe.Pointer(&scratch[0])))
	events := &fakeEvents{bases: map[uint16]uint32{7: base}}
	r := addr.NewResolver(0, cs, nil, nil, events, addr.DYN)

	dynAddr := uint32(7)<<16 | uint32(1)
	require.NoError(t, r.Write(addr.DYN, dynAddr, []byte{0x42}, 0))
	assert.Equal(t, byte(0x42), scratch[1])
}

func TestDYNUnknownEventDenied(t *testing.T) {
	cs := calseg.NewManager()
	events := &fakeEvents{bases: map[uint16]uint32{}}
	r := addr.NewResolver(0, cs, nil, nil, events, addr.DYN)
	_, err := r.Read(addr.DYN, uint32(99)<<16, 1, 0)
	assert.ErrorIs(t, err, addr.ErrAccessDenied)
}

func TestAPPDelegatesToCallback(t *testing.T) {
	cs := calseg.NewManager()
	app := &fakeApp{store: map[uint32][]byte{}}
	r := addr.NewResolver(0, cs, app, nil, nil, addr.APP)

	require.NoError(t, r.Write(addr.APP, 0x100, []byte{5, 6, 7}, 0))
	got, err := r.Read(addr.APP, 0x100, 3, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte{5, 6, 7}, got)
}

func TestA2LIsReadOnly(t *testing.T) {
	cs := calseg.NewManager()
	a2l := &fakeA2L{blob: []byte("description file bytes")}
	r := addr.NewResolver(0, cs, nil, a2l, nil, addr.A2L)

	got, err := r.Read(addr.A2L, 4, 5, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("ripti"), got)

	err = r.Write(addr.A2L, 0, []byte{1}, 0)
	assert.ErrorIs(t, err, addr.ErrAccessDenied)
}
