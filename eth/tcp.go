package eth

import (
	"net"
	"time"

	"github.com/cloudwego/gopkg/bufiox"
)

// tcpTransport frames a back-to-back TCP byte stream on DLC. Reads are
// buffered with bufiox.DefaultReader, consuming the fixed 4-byte
// header before the frame body.
type tcpTransport struct {
	ln   net.Listener
	conn net.Conn
	r    *bufiox.DefaultReader
}

// ListenTCP binds addr and accepts exactly one client connection.
func ListenTCP(addr string) (Transport, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	conn, err := ln.Accept()
	if err != nil {
		ln.Close()
		return nil, err
	}
	return &tcpTransport{ln: ln, conn: conn, r: bufiox.NewDefaultReader(conn)}, nil
}

func (t *tcpTransport) RecvCommand(timeout time.Duration) ([]byte, net.Addr, error) {
	if err := t.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return nil, nil, err
	}
	hdr, err := t.r.Next(HeaderSize)
	if err != nil {
		return nil, nil, err
	}
	dlc, _, err := DecodeHeader(hdr)
	if err != nil {
		return nil, nil, err
	}
	body, err := t.r.Next(int(dlc))
	if err != nil {
		return nil, nil, err
	}
	out := make([]byte, HeaderSize+len(body))
	copy(out, hdr)
	copy(out[HeaderSize:], body)
	if err := t.r.Release(nil); err != nil {
		return nil, nil, err
	}
	return out, t.conn.RemoteAddr(), nil
}

func (t *tcpTransport) SendSegment(seg []byte) error {
	_, err := t.conn.Write(seg)
	return err
}

// LocalAddr reports the listener's bound address.
func (t *tcpTransport) LocalAddr() net.Addr { return t.ln.Addr() }

func (t *tcpTransport) Close() error {
	err := t.conn.Close()
	if lerr := t.ln.Close(); err == nil {
		err = lerr
	}
	return err
}
