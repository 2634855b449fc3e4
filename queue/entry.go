package queue

import (
	"code.hybscloud.com/iox"

	"code.hybscloud.com/xcp/platform"
)

// ErrWouldBlock is returned by Acquire when the queue has no free slot.
//
// It is a control flow signal, not a failure: the producer drops the
// sample (the overrun counter records it for the client) or retries
// later. Queue-full is exactly the "non-failure, caller should drop or
// retry" signal iox exists for, so its sentinel is reused rather than
// minting a local one.
var ErrWouldBlock = iox.ErrWouldBlock

// IsWouldBlock reports whether err indicates the operation would block.
// Delegates to iox.IsWouldBlock for wrapped error support.
func IsWouldBlock(err error) bool {
	return iox.IsWouldBlock(err)
}

// headerSize is the XCP-on-Ethernet transport header: 2-byte
// little-endian DLC (length) + 2-byte little-endian CTR (counter).
const headerSize = 4

// slot states. Two extra bits ride alongside the round number in each
// slot's word so the consumer can tell RESERVED (payload not yet
// published) from COMMITTED (safe to read). An entry moves RESERVED →
// COMMITTED exactly once; the consumer never reads a RESERVED entry.
const (
	stateFree uint64 = iota
	stateReserved
	stateCommitted
)

const stateBits = 2
const stateMask = (uint64(1) << stateBits) - 1

// slot is one physical ring position. data is a fixed-capacity
// sub-slice of the queue's arena; only the first `length` bytes are
// valid payload for the entry currently occupying the slot.
type slot struct {
	word   platform.Uint64 // round<<stateBits | state, atomic
	length uint32          // valid only once word observes stateCommitted
	flush  bool            // valid only once word observes stateCommitted
	round  uint64          // producer-private scratch between Acquire and Commit
	data   []byte          // fixed-capacity backing bytes for this slot
}

// packHeader writes the wire transport header (length + counter) into
// dst[0:4], little-endian.
func packHeader(dst []byte, length, counter uint16) {
	dst[0] = byte(length)
	dst[1] = byte(length >> 8)
	dst[2] = byte(counter)
	dst[3] = byte(counter >> 8)
}

// roundToPow2 rounds n up to the next power of 2, the same
// capacity-rounding convention as lfq.
func roundToPow2(n int) int {
	if n < 2 {
		return 2
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	return n + 1
}

// pad is cache-line padding to prevent false sharing between the
// producer-owned tail and the consumer-owned head.
type pad [64]byte
