package eth

import (
	"net"
	"time"
)

// Multicast answers GET_DAQ_CLOCK_MULTICAST on a cluster-defined IPv4
// group.
type Multicast struct {
	conn *net.UDPConn
}

// JoinMulticast joins group (e.g. "239.0.0.1:5557") on every multicast-
// capable interface.
func JoinMulticast(group string) (*Multicast, error) {
	gaddr, err := net.ResolveUDPAddr("udp", group)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenMulticastUDP("udp", nil, gaddr)
	if err != nil {
		return nil, err
	}
	return &Multicast{conn: conn}, nil
}

// RecvRequest blocks up to timeout for one GET_DAQ_CLOCK_MULTICAST
// request datagram.
func (m *Multicast) RecvRequest(timeout time.Duration, buf []byte) (n int, from net.Addr, err error) {
	if err := m.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return 0, nil, err
	}
	return m.conn.ReadFromUDP(buf)
}

// Respond unicasts the GET_DAQ_CLOCK_MULTICAST reply back to the
// requester.
func (m *Multicast) Respond(seg []byte, to net.Addr) error {
	_, err := m.conn.WriteTo(seg, to)
	return err
}

func (m *Multicast) Close() error { return m.conn.Close() }
