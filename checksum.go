package tchannel2

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/glycerine/blake3"
)

// ChecksumType is the on-wire algorithm id carried in a Call body's
// csumtype byte.
type ChecksumType uint8

const (
	ChecksumNone  ChecksumType = 0
	ChecksumCRC32 ChecksumType = 1
	// ChecksumBlake3 occupies the wire slot the reference calls
	// "farmhash32". Byte-compatibility with a real farmhash32 peer is not
	// achievable without vendoring farmhash (not present anywhere in the
	// dependency lineage this module draws from); this implementation
	// instead computes a 32-bit BLAKE3 digest in that slot. Interop with a
	// strict farmhash32 peer requires swapping this one algorithm.
	ChecksumBlake3 ChecksumType = 2
)

func (t ChecksumType) valid() bool {
	switch t {
	case ChecksumNone, ChecksumCRC32, ChecksumBlake3:
		return true
	default:
		return false
	}
}

// Checksummer computes and verifies payload integrity over a CallRequest
// or CallResponse's three args, per a pluggable algorithm id (§4.3). The
// codec never hard-wires a specific algorithm; it asks a Checksummer.
type Checksummer interface {
	Type() ChecksumType
	// update computes the checksum over the concatenation of arg1, arg2,
	// arg3 and returns the 4-byte big-endian digest to place on the wire
	// (nil if Type() is ChecksumNone).
	update(arg1, arg2, arg3 []byte) []byte
	// verify recomputes over arg1/arg2/arg3 and compares against the
	// wire-supplied digest, returning a checksum-mismatch error on
	// disagreement.
	verify(arg1, arg2, arg3, wireDigest []byte) error
}

func newChecksummer(t ChecksumType) (Checksummer, error) {
	switch t {
	case ChecksumNone:
		return noneChecksummer{}, nil
	case ChecksumCRC32:
		return crc32Checksummer{}, nil
	case ChecksumBlake3:
		return blake3Checksummer{}, nil
	default:
		return nil, newProtoErr(errInvalidChecksumType, "unrecognized csumtype")
	}
}

// writeChecksum emits the csumtype byte, followed by the 4-byte digest iff
// the algorithm is not ChecksumNone, per §4.3's write() operation.
func writeChecksum(dst []byte, cs Checksummer, arg1, arg2, arg3 []byte) []byte {
	dst = append(dst, uint8(cs.Type()))
	if cs.Type() == ChecksumNone {
		return dst
	}
	digest := cs.update(arg1, arg2, arg3)
	return append(dst, digest...)
}

type noneChecksummer struct{}

func (noneChecksummer) Type() ChecksumType                    { return ChecksumNone }
func (noneChecksummer) update(arg1, arg2, arg3 []byte) []byte { return nil }
func (noneChecksummer) verify(arg1, arg2, arg3, wireDigest []byte) error {
	return nil
}

type crc32Checksummer struct{}

func (crc32Checksummer) Type() ChecksumType { return ChecksumCRC32 }

func (crc32Checksummer) update(arg1, arg2, arg3 []byte) []byte {
	h := crc32.NewIEEE()
	h.Write(arg1)
	h.Write(arg2)
	h.Write(arg3)
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], h.Sum32())
	return b[:]
}

func (c crc32Checksummer) verify(arg1, arg2, arg3, wireDigest []byte) error {
	got := c.update(arg1, arg2, arg3)
	if len(wireDigest) != 4 || string(got) != string(wireDigest) {
		return newProtoErr(errChecksumMismatch, "crc32 mismatch")
	}
	return nil
}

type blake3Checksummer struct{}

func (blake3Checksummer) Type() ChecksumType { return ChecksumBlake3 }

func (blake3Checksummer) update(arg1, arg2, arg3 []byte) []byte {
	h := blake3.New(32, nil)
	h.Write(arg1)
	h.Write(arg2)
	h.Write(arg3)
	sum := h.Sum(nil)
	// fold the 32-byte digest down to the wire's 4-byte slot.
	var b [4]byte
	for i, v := range sum {
		b[i%4] ^= v
	}
	return b[:]
}

func (c blake3Checksummer) verify(arg1, arg2, arg3, wireDigest []byte) error {
	got := c.update(arg1, arg2, arg3)
	if len(wireDigest) != 4 || string(got) != string(wireDigest) {
		return newProtoErr(errChecksumMismatch, "blake3-32 mismatch")
	}
	return nil
}
