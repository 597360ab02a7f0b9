// Package tchannel2 implements the core of a bidirectional, framed,
// multiplexed RPC transport historically called "TChannel v2".
//
// A node is symmetric: the same Channel both accepts inbound Connections
// and dials outbound ones. On each Connection many in-flight request/
// response Operations are multiplexed by a per-connection frame id.
// Request and response payloads are opaque byte triples (arg1, arg2,
// arg3), conventionally (endpoint-name, application-headers, body).
//
// The pieces, leaf to root:
//
//	parseBuffer   append-and-consume byte queue (C1)
//	Frame/header  16-byte frame header + typed body (C2)
//	chunkReader   byte-stream -> Frame FSM (C3)
//	Checksummer   pluggable payload integrity (C4)
//	Connection    per-link handshake, op tables, sweeper (C5)
//	Channel       peer table, endpoint registry, dispatch (C6)
//	errors.go     typed error kinds + $jsError wire envelope (C7)
//	*Body types   Init/Call/Error body encode/decode (C8)
//
// Socket I/O is abstracted behind io.ReadWriteCloser so the core never
// opens sockets itself; cmd/tchand supplies a real net.Conn.
package tchannel2
