package tchannel2

import (
	"errors"
	"testing"
)

func TestEncodeAppErrorStringPassesThrough(t *testing.T) {
	payload := encodeAppError(stringError("plain message"))
	decoded := decodeAppError(payload)
	se, ok := decoded.(stringError)
	if !ok {
		t.Fatalf("expected stringError, got %T", decoded)
	}
	if string(se) != "plain message" {
		t.Fatalf("expected round trip of plain message, got %q", se)
	}
}

func TestEncodeAppErrorWrapsInJsErrorEnvelope(t *testing.T) {
	payload := encodeAppError(errors.New("no such operation"))
	decoded := decodeAppError(payload)
	re, ok := decoded.(*remoteError)
	if !ok {
		t.Fatalf("expected *remoteError, got %T", decoded)
	}
	if re.Message != "no such operation" {
		t.Fatalf("expected message 'no such operation', got %q", re.Message)
	}
}

func TestDecodeAppErrorFromProtocolError(t *testing.T) {
	original := newProtoErr(errNoSuchEndpoint, "no such operation")
	payload := encodeAppError(original)
	decoded := decodeAppError(payload)
	re, ok := decoded.(*remoteError)
	if !ok {
		t.Fatalf("expected *remoteError, got %T", decoded)
	}
	if re.Name != errNoSuchEndpoint.String() {
		t.Fatalf("expected name %q, got %q", errNoSuchEndpoint.String(), re.Name)
	}
}

func TestEncodeAppErrorCarriesExtraProperties(t *testing.T) {
	original := &protocolError{kind: errNoSuchEndpoint, extra: map[string]any{"op": "missing"}}
	payload := encodeAppError(original)
	decoded := decodeAppError(payload)
	re, ok := decoded.(*remoteError)
	if !ok {
		t.Fatalf("expected *remoteError, got %T", decoded)
	}
	if re.Extra["op"] != "missing" {
		t.Fatalf("expected extra property 'op'='missing' to survive the wire round trip, got %v", re.Extra)
	}
}
