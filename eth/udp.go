package eth

import (
	"net"
	"sync"
	"time"
)

// udpTransport is the default XCP-on-Ethernet binding: one datagram
// carries one or more commands, one datagram per segment. The peer address is learned from
// the first received datagram and used for every subsequent send;
// with a single connected client there is never more than one peer to
// track.
type udpTransport struct {
	conn *net.UDPConn

	mu   sync.Mutex
	peer *net.UDPAddr

	buf []byte
}

// ListenUDP binds addr (e.g. ":5555") for XCP-on-Ethernet over UDP.
// maxDatagram bounds the largest datagram read in one RecvCommand,
// sized to the server's configured MTU.
func ListenUDP(addr string, maxDatagram int) (Transport, error) {
	laddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return nil, err
	}
	return &udpTransport{conn: conn, buf: make([]byte, maxDatagram)}, nil
}

func (t *udpTransport) RecvCommand(timeout time.Duration) ([]byte, net.Addr, error) {
	if err := t.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return nil, nil, err
	}
	n, from, err := t.conn.ReadFromUDP(t.buf)
	if err != nil {
		return nil, nil, err
	}
	t.mu.Lock()
	t.peer = from
	t.mu.Unlock()

	_, _, herr := DecodeHeader(t.buf[:n])
	if herr != nil {
		return nil, from, herr
	}
	// A UDP datagram may concatenate several commands; the whole
	// datagram, headers included, is returned and the caller splits it
	// with SplitCommands.
	out := make([]byte, n)
	copy(out, t.buf[:n])
	return out, from, nil
}

func (t *udpTransport) SendSegment(seg []byte) error {
	t.mu.Lock()
	peer := t.peer
	t.mu.Unlock()
	if peer == nil {
		return net.ErrClosed
	}
	_, err := t.conn.WriteToUDP(seg, peer)
	return err
}

func (t *udpTransport) Close() error { return t.conn.Close() }

// LocalAddr reports the bound socket address, so a caller binding ":0"
// can discover the chosen port.
func (t *udpTransport) LocalAddr() net.Addr { return t.conn.LocalAddr() }
