package a2l

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	name, filename, epk string
	contents            []byte
}

func (f *fakeSource) Name() string     { return f.name }
func (f *fakeSource) Filename() string { return f.filename }
func (f *fakeSource) EPK() string      { return f.epk }
func (f *fakeSource) OpenA2L() (io.ReaderAt, int64, error) {
	return bytes.NewReader(f.contents), int64(len(f.contents)), nil
}

func TestIdentKinds(t *testing.T) {
	src := &fakeSource{name: "demo", filename: "demo.a2l", epk: "EPK_1.0", contents: bytes.Repeat([]byte{0x42}, 300)}
	data, _, up, err := Ident(src, KindASCIIName)
	require.NoError(t, err)
	require.False(t, up)
	require.Equal(t, "demo", string(data))

	_, length, up, err := identHelper(t, src)
	require.NoError(t, err)
	require.True(t, up)
	require.EqualValues(t, 300, length)
}

func identHelper(t *testing.T, src Source) ([]byte, int64, bool, error) {
	t.Helper()
	return Ident(src, KindA2LContents)
}

func TestUploadCursorReconstructsBytes(t *testing.T) {
	content := bytes.Repeat([]byte("abcdefgh"), 40) // 320 bytes
	cur := NewUploadCursor(bytes.NewReader(content))

	var got []byte
	const chunk = 7 // MAX_CTO-1 style small chunk
	for len(got) < len(content) {
		b, err := cur.Read(chunk)
		require.NoError(t, err)
		if len(b) == 0 {
			break
		}
		got = append(got, b...)
	}
	require.Equal(t, content, got)
}
