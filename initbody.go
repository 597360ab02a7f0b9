package tchannel2

import (
	"encoding/binary"
	"fmt"
)

const protocolVersion uint16 = 2

const (
	initKeyHostPort    = "host_port"
	initKeyProcessName = "process_name"
)

// initBody is the payload of InitRequest and InitResponse frames: a
// version number plus a small required key/value map (§3, §6).
type initBody struct {
	version     uint16
	hostPort    string
	processName string
}

// encode writes version:u16be then nh:u16be (hk~2 hv~2){nh}, per §6's
// general nh-prefixed map form. We always write exactly the two required
// keys, host_port then process_name.
func (b *initBody) encode() []byte {
	out := make([]byte, 0, 2+2+4+len(b.hostPort)+len(initKeyHostPort)+4+len(b.processName)+len(initKeyProcessName))
	var vb [2]byte
	binary.BigEndian.PutUint16(vb[:], b.version)
	out = append(out, vb[:]...)

	var nhb [2]byte
	binary.BigEndian.PutUint16(nhb[:], 2)
	out = append(out, nhb[:]...)

	out = writeU16Prefixed(out, []byte(initKeyHostPort))
	out = writeU16Prefixed(out, []byte(b.hostPort))
	out = writeU16Prefixed(out, []byte(initKeyProcessName))
	out = writeU16Prefixed(out, []byte(b.processName))
	return out
}

// decodeInitBody parses an InitRequest/InitResponse body, rejecting
// missing required keys, duplicate keys, and unknown keys (§3 invariants).
func decodeInitBody(buf []byte) (*initBody, error) {
	if len(buf) < 4 {
		return nil, newProtoErr(errMissingInitHeader, "body too short for version+nh")
	}
	version := binary.BigEndian.Uint16(buf[0:2])
	nh := int(binary.BigEndian.Uint16(buf[2:4]))
	off := 4

	seen := make(map[string][]byte, nh)
	order := make([]string, 0, nh)
	for i := 0; i < nh; i++ {
		k, n, err := readU16Prefixed(buf[off:])
		if err != nil {
			return nil, fmt.Errorf("%w: init header key %d: %v", ErrShortChunkRead, i, err)
		}
		off += n
		v, n2, err := readU16Prefixed(buf[off:])
		if err != nil {
			return nil, fmt.Errorf("%w: init header value %d: %v", ErrShortChunkRead, i, err)
		}
		off += n2

		key := string(k)
		if _, dup := seen[key]; dup {
			return nil, newProtoErr(errDuplicateInitHeader, key)
		}
		seen[key] = v
		order = append(order, key)
	}
	for _, key := range order {
		if key != initKeyHostPort && key != initKeyProcessName {
			return nil, newProtoErr(errInvalidInitHeader, "unknown key "+key)
		}
	}
	hp, ok := seen[initKeyHostPort]
	if !ok {
		return nil, newProtoErr(errMissingInitHeader, initKeyHostPort)
	}
	pn, ok := seen[initKeyProcessName]
	if !ok {
		return nil, newProtoErr(errMissingInitHeader, initKeyProcessName)
	}
	if off != len(buf) {
		return nil, &protocolError{
			kind: errExtraFrameData,
			msg:  "init body has trailing bytes",
			extra: map[string]any{
				"trailing": len(buf) - off,
			},
		}
	}
	return &initBody{version: version, hostPort: string(hp), processName: string(pn)}, nil
}
