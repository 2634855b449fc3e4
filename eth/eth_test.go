package eth

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHeaderRoundTrip(t *testing.T) {
	var buf [HeaderSize]byte
	EncodeHeader(buf[:], 0x1234, 0xABCD)
	dlc, ctr, err := DecodeHeader(buf[:])
	require.NoError(t, err)
	require.Equal(t, uint16(0x1234), dlc)
	require.Equal(t, uint16(0xABCD), ctr)
}

func TestSplitCommandsConcatenated(t *testing.T) {
	var a, b [HeaderSize + 2]byte
	EncodeHeader(a[:], 2, 0)
	a[HeaderSize], a[HeaderSize+1] = 0xAA, 0xBB
	EncodeHeader(b[:], 2, 1)
	b[HeaderSize], b[HeaderSize+1] = 0xCC, 0xDD

	buf := append(append([]byte{}, a[:]...), b[:]...)
	msgs, err := SplitCommands(buf)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.Equal(t, []byte{0xAA, 0xBB}, msgs[0])
	require.Equal(t, []byte{0xCC, 0xDD}, msgs[1])
}

func TestUDPTransportRoundTrip(t *testing.T) {
	server, err := ListenUDP("127.0.0.1:0", 2048)
	require.NoError(t, err)
	defer server.Close()

	addr := server.(*udpTransport).conn.LocalAddr().String()

	var hdr [HeaderSize + 1]byte
	EncodeHeader(hdr[:], 1, 0)
	hdr[HeaderSize] = 0xFF

	conn, err := net.Dial("udp", addr)
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Write(hdr[:])
	require.NoError(t, err)

	payload, from, err := server.RecvCommand(time.Second)
	require.NoError(t, err)
	require.NotNil(t, from)
	require.Equal(t, hdr[:], payload)

	seg := []byte{0, 0, 0, 0}
	require.NoError(t, server.SendSegment(seg))
	reply := make([]byte, 16)
	conn.SetReadDeadline(time.Now().Add(time.Second))
	n, err := conn.Read(reply)
	require.NoError(t, err)
	require.Equal(t, seg, reply[:n])
}
