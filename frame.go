package tchannel2

import (
	"encoding/binary"
	"fmt"
)

// frameType identifies the wire payload that follows a frame header.
type frameType uint8

const (
	typeInitRequest  frameType = 0x01
	typeInitResponse frameType = 0x02
	typeCallRequest  frameType = 0x03
	typeCallResponse frameType = 0x04
	typeError        frameType = 0xFF
)

func (t frameType) String() string {
	switch t {
	case typeInitRequest:
		return "InitRequest"
	case typeInitResponse:
		return "InitResponse"
	case typeCallRequest:
		return "CallRequest"
	case typeCallResponse:
		return "CallResponse"
	case typeError:
		return "Error"
	default:
		return fmt.Sprintf("frameType(0x%02x)", uint8(t))
	}
}

// FlagFragment marks a frame as one chunk of a larger fragmented message.
// Defined for wire compatibility (Open Question (c)); this core never sets
// it and never interprets it on a received frame.
const FlagFragment uint8 = 0x01

const frameHeaderSize = 16

// frame is a fully decoded wire frame: header fields plus the raw,
// not-yet-body-decoded payload bytes.
type frame struct {
	size  uint32
	id    uint32
	typ   frameType
	flags uint8
	body  []byte // size-16 bytes, the encoded body
}

// encodeFrameHeader writes the 16-byte header for a frame whose body is
// bodyLen bytes long.
func encodeFrameHeader(id uint32, typ frameType, flags uint8, bodyLen int) []byte {
	hdr := make([]byte, frameHeaderSize)
	binary.BigEndian.PutUint32(hdr[0:4], uint32(frameHeaderSize+bodyLen))
	binary.BigEndian.PutUint32(hdr[4:8], id)
	hdr[8] = uint8(typ)
	hdr[9] = flags
	// hdr[10:16] reserved, left zero
	return hdr
}

// encodeFrame builds the full wire bytes (header + body) for one frame.
func encodeFrame(id uint32, typ frameType, flags uint8, body []byte) []byte {
	out := encodeFrameHeader(id, typ, flags, len(body))
	return append(out, body...)
}

// decodeFrameHeader parses the 16-byte header from buf, which must be
// exactly 16 bytes (size ignored here -- the chunk reader already used it
// to determine how many bytes to shift off the stream).
func decodeFrameHeader(buf []byte) (id uint32, typ frameType, flags uint8, err error) {
	if len(buf) != frameHeaderSize {
		return 0, 0, 0, fmt.Errorf("%w: header must be %d bytes, got %d", ErrBrokenReaderState, frameHeaderSize, len(buf))
	}
	id = binary.BigEndian.Uint32(buf[4:8])
	typ = frameType(buf[8])
	flags = buf[9]
	return id, typ, flags, nil
}

// decodeFrame splits a complete, size-delimited wire slice (as produced by
// the chunk reader) into its header fields and body bytes, validating the
// type is one we know.
func decodeFrame(raw []byte) (*frame, error) {
	if len(raw) < frameHeaderSize {
		return nil, fmt.Errorf("%w: frame shorter than header", ErrBrokenReaderState)
	}
	size := binary.BigEndian.Uint32(raw[0:4])
	if int(size) != len(raw) {
		return nil, fmt.Errorf("%w: declared size %d != actual %d", ErrBrokenReaderState, size, len(raw))
	}
	id, typ, flags, err := decodeFrameHeader(raw[0:frameHeaderSize])
	if err != nil {
		return nil, err
	}
	switch typ {
	case typeInitRequest, typeInitResponse, typeCallRequest, typeCallResponse, typeError:
	default:
		return nil, &protocolError{kind: errInvalidFrameType, msg: fmt.Sprintf("unknown frame type 0x%02x", uint8(typ))}
	}
	return &frame{
		size:  size,
		id:    id,
		typ:   typ,
		flags: flags,
		body:  raw[frameHeaderSize:],
	}, nil
}

// writeU16Prefixed appends a 2-byte big-endian length prefix then p.
func writeU16Prefixed(dst []byte, p []byte) []byte {
	var lb [2]byte
	binary.BigEndian.PutUint16(lb[:], uint16(len(p)))
	dst = append(dst, lb[:]...)
	dst = append(dst, p...)
	return dst
}

// readU16Prefixed reads a 2-byte length-prefixed byte string starting at
// buf[0], returning the string and the number of bytes consumed.
func readU16Prefixed(buf []byte) (p []byte, consumed int, err error) {
	if len(buf) < 2 {
		return nil, 0, fmt.Errorf("%w: short ~2 length prefix", ErrShortChunkRead)
	}
	n := int(binary.BigEndian.Uint16(buf[0:2]))
	if len(buf) < 2+n {
		return nil, 0, fmt.Errorf("%w: short ~2 payload, want %d have %d", ErrShortChunkRead, n, len(buf)-2)
	}
	return buf[2 : 2+n], 2 + n, nil
}

// writeU8Prefixed appends a 1-byte big-endian length prefix then p.
func writeU8Prefixed(dst []byte, p []byte) []byte {
	dst = append(dst, uint8(len(p)))
	dst = append(dst, p...)
	return dst
}

// readU8Prefixed reads a 1-byte length-prefixed byte string starting at
// buf[0], returning the string and the number of bytes consumed.
func readU8Prefixed(buf []byte) (p []byte, consumed int, err error) {
	if len(buf) < 1 {
		return nil, 0, fmt.Errorf("%w: short ~1 length prefix", ErrShortChunkRead)
	}
	n := int(buf[0])
	if len(buf) < 1+n {
		return nil, 0, fmt.Errorf("%w: short ~1 payload, want %d have %d", ErrShortChunkRead, n, len(buf)-1)
	}
	return buf[1 : 1+n], 1 + n, nil
}
