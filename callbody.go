package tchannel2

import (
	"encoding/binary"
	"fmt"
)

const tracingSize = 24

// ResponseCode is the u8 code carried in a CallResponse body (§6).
type ResponseCode uint8

const (
	CodeOK                   ResponseCode = 0x00
	CodeTimeout              ResponseCode = 0x01
	CodeCancelled            ResponseCode = 0x02
	CodeBusy                 ResponseCode = 0x03
	CodeSocketErrorNoRetries ResponseCode = 0x04
	CodeSocketError          ResponseCode = 0x05
	CodeAppException         ResponseCode = 0x06
)

// Header is one ordered key/value pair of a Call body's application
// headers (§3: "ordered, duplicates permitted by wire... implementation
// may reject duplicates" -- we reject, matching §3's CallRequest body
// invariant discipline applied consistently everywhere else in this core).
// Exported so callers outside this package can build CallOptions.Headers.
type Header struct {
	Key   []byte
	Value []byte
}

// callRequestBody is the payload of a CallRequest frame (§3, §6).
type callRequestBody struct {
	ttl      uint32
	tracing  [tracingSize]byte
	service  []byte
	headers  []Header
	arg1     []byte
	arg2     []byte
	arg3     []byte
	csumType ChecksumType
	csum     []byte // 4 bytes, absent iff csumType == ChecksumNone
}

// callResponseBody is the payload of a CallResponse frame (§3, §6). It
// shares the header/arg/csum grammar with callRequestBody but carries a
// response code instead of ttl/tracing/service.
type callResponseBody struct {
	code     ResponseCode
	headers  []Header
	arg1     []byte
	arg2     []byte
	arg3     []byte
	csumType ChecksumType
	csum     []byte
}

func encodeHeaders(dst []byte, hdrs []Header) []byte {
	dst = append(dst, uint8(len(hdrs)))
	for _, h := range hdrs {
		dst = writeU8Prefixed(dst, h.Key)
		dst = writeU8Prefixed(dst, h.Value)
	}
	return dst
}

func decodeHeaders(buf []byte) (hdrs []Header, consumed int, err error) {
	if len(buf) < 1 {
		return nil, 0, fmt.Errorf("%w: missing nh byte", ErrShortChunkRead)
	}
	nh := int(buf[0])
	off := 1
	seen := make(map[string]bool, nh)
	for i := 0; i < nh; i++ {
		k, n, err := readU8Prefixed(buf[off:])
		if err != nil {
			return nil, 0, fmt.Errorf("header key %d: %w", i, err)
		}
		off += n
		v, n2, err := readU8Prefixed(buf[off:])
		if err != nil {
			return nil, 0, fmt.Errorf("header value %d: %w", i, err)
		}
		off += n2
		if seen[string(k)] {
			return nil, 0, newProtoErr(errInvalidInitHeader, "duplicate call header "+string(k))
		}
		seen[string(k)] = true
		hdrs = append(hdrs, Header{Key: k, Value: v})
	}
	return hdrs, off, nil
}

// encode renders a CallRequest body per §6's grammar:
// ttl · tracing:24 · service~2 · headers · arg1~2 · arg2~2 · arg3~2 · csumtype · csum?
func (b *callRequestBody) encode() ([]byte, error) {
	cs, err := newChecksummer(b.csumType)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, 64+len(b.service)+len(b.arg1)+len(b.arg2)+len(b.arg3))
	var ttlb [4]byte
	binary.BigEndian.PutUint32(ttlb[:], b.ttl)
	out = append(out, ttlb[:]...)
	out = append(out, b.tracing[:]...)
	out = writeU16Prefixed(out, b.service)
	out = encodeHeaders(out, b.headers)
	out = writeU16Prefixed(out, b.arg1)
	out = writeU16Prefixed(out, b.arg2)
	out = writeU16Prefixed(out, b.arg3)
	out = writeChecksum(out, cs, b.arg1, b.arg2, b.arg3)
	return out, nil
}

func decodeCallRequestBody(buf []byte) (*callRequestBody, error) {
	if len(buf) < 4+tracingSize+2 {
		return nil, fmt.Errorf("%w: call request body too short", ErrShortChunkRead)
	}
	b := &callRequestBody{}
	b.ttl = binary.BigEndian.Uint32(buf[0:4])
	off := 4
	copy(b.tracing[:], buf[off:off+tracingSize])
	off += tracingSize

	svc, n, err := readU16Prefixed(buf[off:])
	if err != nil {
		return nil, fmt.Errorf("service: %w", err)
	}
	b.service = svc
	off += n

	hdrs, n, err := decodeHeaders(buf[off:])
	if err != nil {
		return nil, err
	}
	b.headers = hdrs
	off += n

	arg1, n, err := readU16Prefixed(buf[off:])
	if err != nil {
		return nil, fmt.Errorf("arg1: %w", err)
	}
	b.arg1 = arg1
	off += n

	arg2, n, err := readU16Prefixed(buf[off:])
	if err != nil {
		return nil, fmt.Errorf("arg2: %w", err)
	}
	b.arg2 = arg2
	off += n

	arg3, n, err := readU16Prefixed(buf[off:])
	if err != nil {
		return nil, fmt.Errorf("arg3: %w", err)
	}
	b.arg3 = arg3
	off += n

	csumType, csum, n, err := decodeChecksumTail(buf[off:])
	if err != nil {
		return nil, err
	}
	b.csumType = csumType
	b.csum = csum
	off += n

	if off != len(buf) {
		return nil, &protocolError{
			kind:  errExtraFrameData,
			msg:   "call request body has trailing bytes",
			extra: map[string]any{"trailing": len(buf) - off},
		}
	}
	if err := verifyChecksum(csumType, csum, arg1, arg2, arg3); err != nil {
		return nil, err
	}
	return b, nil
}

// encode renders a CallResponse body: code · headers · arg1~2 · arg2~2 ·
// arg3~2 · csumtype · csum? (§3, §6).
func (b *callResponseBody) encode() ([]byte, error) {
	cs, err := newChecksummer(b.csumType)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, 16+len(b.arg1)+len(b.arg2)+len(b.arg3))
	out = append(out, uint8(b.code))
	out = encodeHeaders(out, b.headers)
	out = writeU16Prefixed(out, b.arg1)
	out = writeU16Prefixed(out, b.arg2)
	out = writeU16Prefixed(out, b.arg3)
	out = writeChecksum(out, cs, b.arg1, b.arg2, b.arg3)
	return out, nil
}

func decodeCallResponseBody(buf []byte) (*callResponseBody, error) {
	if len(buf) < 1 {
		return nil, fmt.Errorf("%w: call response body too short", ErrShortChunkRead)
	}
	b := &callResponseBody{code: ResponseCode(buf[0])}
	off := 1

	hdrs, n, err := decodeHeaders(buf[off:])
	if err != nil {
		return nil, err
	}
	b.headers = hdrs
	off += n

	arg1, n, err := readU16Prefixed(buf[off:])
	if err != nil {
		return nil, fmt.Errorf("arg1: %w", err)
	}
	b.arg1 = arg1
	off += n

	arg2, n, err := readU16Prefixed(buf[off:])
	if err != nil {
		return nil, fmt.Errorf("arg2: %w", err)
	}
	b.arg2 = arg2
	off += n

	arg3, n, err := readU16Prefixed(buf[off:])
	if err != nil {
		return nil, fmt.Errorf("arg3: %w", err)
	}
	b.arg3 = arg3
	off += n

	csumType, csum, n, err := decodeChecksumTail(buf[off:])
	if err != nil {
		return nil, err
	}
	b.csumType = csumType
	b.csum = csum
	off += n

	if off != len(buf) {
		return nil, &protocolError{
			kind:  errExtraFrameData,
			msg:   "call response body has trailing bytes",
			extra: map[string]any{"trailing": len(buf) - off},
		}
	}
	if err := verifyChecksum(csumType, csum, arg1, arg2, arg3); err != nil {
		return nil, err
	}
	return b, nil
}

func decodeChecksumTail(buf []byte) (t ChecksumType, csum []byte, consumed int, err error) {
	if len(buf) < 1 {
		return 0, nil, 0, fmt.Errorf("%w: missing csumtype", ErrShortChunkRead)
	}
	t = ChecksumType(buf[0])
	if !t.valid() {
		return 0, nil, 0, newProtoErr(errInvalidChecksumType, fmt.Sprintf("csumtype %d", buf[0]))
	}
	if t == ChecksumNone {
		return t, nil, 1, nil
	}
	if len(buf) < 5 {
		return 0, nil, 0, fmt.Errorf("%w: missing csum bytes", ErrShortChunkRead)
	}
	return t, buf[1:5], 5, nil
}

func verifyChecksum(t ChecksumType, csum, arg1, arg2, arg3 []byte) error {
	cs, err := newChecksummer(t)
	if err != nil {
		return err
	}
	if t == ChecksumNone {
		return nil
	}
	return cs.verify(arg1, arg2, arg3, csum)
}
