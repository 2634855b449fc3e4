package a2l

import "errors"

// ErrUnknownKind is returned for a GET_ID kind byte outside the four
// supported identification types.
var ErrUnknownKind = errors.New("a2l: unknown GET_ID kind")
