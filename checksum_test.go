package tchannel2

import "testing"

func TestChecksumNoneWritesOnlyType(t *testing.T) {
	cs, err := newChecksummer(ChecksumNone)
	if err != nil {
		t.Fatal(err)
	}
	out := writeChecksum(nil, cs, []byte("a"), []byte("b"), []byte("c"))
	if len(out) != 1 || out[0] != 0 {
		t.Fatalf("expected single zero byte for none, got %v", out)
	}
}

func TestChecksumCRC32RoundTrip(t *testing.T) {
	cs, err := newChecksummer(ChecksumCRC32)
	if err != nil {
		t.Fatal(err)
	}
	arg1, arg2, arg3 := []byte("ep"), []byte("h"), []byte("body")
	out := writeChecksum(nil, cs, arg1, arg2, arg3)
	if len(out) != 5 {
		t.Fatalf("expected csumtype+4 bytes, got %d", len(out))
	}
	if err := cs.verify(arg1, arg2, arg3, out[1:]); err != nil {
		t.Fatalf("expected verify to succeed: %v", err)
	}
	if err := cs.verify(arg1, arg2, []byte("tampered"), out[1:]); err == nil {
		t.Fatalf("expected verify to fail against tampered payload")
	}
}

func TestChecksumBlake3RoundTrip(t *testing.T) {
	cs, err := newChecksummer(ChecksumBlake3)
	if err != nil {
		t.Fatal(err)
	}
	arg1, arg2, arg3 := []byte("ep"), []byte("h"), []byte("body")
	digest := cs.update(arg1, arg2, arg3)
	if len(digest) != 4 {
		t.Fatalf("expected 4-byte digest, got %d", len(digest))
	}
	if err := cs.verify(arg1, arg2, arg3, digest); err != nil {
		t.Fatalf("expected verify to succeed: %v", err)
	}
}

func TestChecksumInvalidTypeRejected(t *testing.T) {
	_, err := newChecksummer(ChecksumType(0x42))
	if err == nil {
		t.Fatalf("expected invalid checksum type to be rejected")
	}
	kind, ok := kindOf(err)
	if !ok || kind != errInvalidChecksumType {
		t.Fatalf("expected errInvalidChecksumType, got %v", err)
	}
}
