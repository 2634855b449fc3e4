package a2l

import "io"

// Kind is one of the four supported GET_ID identification types:
// ASCII name, A2L filename, A2L contents, EPK version string.
type Kind uint8

const (
	KindASCIIName Kind = iota
	KindA2LFilename
	KindA2LContents
	KindEPK
)

// Source supplies the four identification strings/blobs GET_ID can
// request. Filename/EPK/Name are returned whole; A2L contents is large
// and streamed via UploadCursor instead.
type Source interface {
	Name() string
	Filename() string
	EPK() string
	// OpenA2L returns the full A2L file content and its length, for
	// sequential upload.
	OpenA2L() (io.ReaderAt, int64, error)
}

// Ident resolves a GET_ID request against a Source, returning the
// bytes to report as the identification value and, for KindA2LContents,
// the length the client should expect before issuing SHORT_UPLOADs.
func Ident(src Source, kind Kind) (data []byte, length int64, uploadable bool, err error) {
	switch kind {
	case KindASCIIName:
		return []byte(src.Name()), int64(len(src.Name())), false, nil
	case KindA2LFilename:
		return []byte(src.Filename()), int64(len(src.Filename())), false, nil
	case KindEPK:
		return []byte(src.EPK()), int64(len(src.EPK())), false, nil
	case KindA2LContents:
		_, n, err := src.OpenA2L()
		if err != nil {
			return nil, 0, false, err
		}
		return nil, n, true, nil
	default:
		return nil, 0, false, ErrUnknownKind
	}
}

// UploadCursor reconstructs the A2L file byte-identically across
// repeated SHORT_UPLOAD calls: SET_MTA selects the A2L upload region,
// then each SHORT_UPLOAD advances by up to MAX_CTO-1 bytes.
type UploadCursor struct {
	r      io.ReaderAt
	offset int64
}

// NewUploadCursor starts a cursor at the beginning of r.
func NewUploadCursor(r io.ReaderAt) *UploadCursor {
	return &UploadCursor{r: r}
}

// Seek repositions the cursor (SET_MTA into the A2L region).
func (c *UploadCursor) Seek(offset int64) { c.offset = offset }

// Read returns up to n bytes starting at the cursor and advances it,
// exactly the semantics SHORT_UPLOAD needs.
func (c *UploadCursor) Read(n int) ([]byte, error) {
	buf := make([]byte, n)
	got, err := c.r.ReadAt(buf, c.offset)
	c.offset += int64(got)
	if err == io.EOF && got > 0 {
		err = nil
	}
	return buf[:got], err
}
