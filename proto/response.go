package proto

import "github.com/cloudwego/gopkg/cache/mempool"

// buildResponse assembles a full XCP response (0xFF + body for success,
// 0xFE + code for an error) in a pooled scratch buffer, avoiding a
// fresh make([]byte, ...) on every dispatched command; grounded on
// cloudwego-gopkg's cache/mempool, built for exactly this "size-class
// pooled buffer, explicit Free" shape.
func buildResponse(body []byte, err error) (resp []byte, release func()) {
	if err != nil {
		buf := mempool.Malloc(2)
		buf[0] = 0xFE
		buf[1] = byte(codeOf(err))
		return buf, func() { mempool.Free(buf) }
	}
	buf := mempool.Malloc(1 + len(body))
	buf[0] = 0xFF
	copy(buf[1:], body)
	return buf, func() { mempool.Free(buf) }
}

func le16(b []byte) uint16 { return uint16(b[0]) | uint16(b[1])<<8 }
func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func putLE16(dst []byte, v uint16) { dst[0] = byte(v); dst[1] = byte(v >> 8) }
func putLE32(dst []byte, v uint32) {
	dst[0] = byte(v)
	dst[1] = byte(v >> 8)
	dst[2] = byte(v >> 16)
	dst[3] = byte(v >> 24)
}
