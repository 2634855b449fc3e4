// Package eth implements the XCP-on-Ethernet transport: UDP and TCP
// binding, command receive, segment send, and the 2-byte length +
// 2-byte counter wire framing shared by both. Each Transport serves
// exactly one connected client at a time.
//
// UDP framing needs nothing beyond net.PacketConn; a datagram carries
// a single message, or multiple concatenated messages up to MTU, and
// UDP already delivers datagram boundaries.
//
// TCP framing buffers with github.com/cloudwego/gopkg/bufiox, peeking
// the fixed 4-byte DLC+CTR header before consuming the frame body.
package eth
