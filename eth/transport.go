package eth

import (
	"net"
	"time"
)

// Transport is the contract the server's receive/transmit tasks drive:
// a blocking, timeout-bounded command read and a best-effort segment
// send, both over whichever socket kind was bound.
type Transport interface {
	// RecvCommand blocks up to timeout and returns one or more
	// concatenated, fully-framed command messages (transport header
	// included per message), and the
	// peer that sent them. Callers split the result into individual
	// command payloads with SplitCommands. A timeout returns (nil, nil,
	// os.ErrDeadlineExceeded) (or the net package's equivalent) so the
	// receive task can loop without treating it as fatal.
	RecvCommand(timeout time.Duration) (framed []byte, from net.Addr, err error)
	// SendSegment writes one fully framed transport segment (as
	// produced by queue.Queue.Peek, header included) to the connected
	// peer.
	SendSegment(seg []byte) error
	// Close unblocks any in-flight RecvCommand and releases the socket.
	Close() error
}
