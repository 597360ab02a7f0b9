package tchannel2

import (
	"errors"
	"fmt"

	gojson "github.com/goccy/go-json"
)

// errorKind names the error taxonomy from the framing/protocol/operation/
// transport layers, independent of the Go error value carrying it, so
// callers (notably the sweeper and Connection itself) can branch on kind
// rather than on string matching.
type errorKind int

const (
	errZeroLengthFrame errorKind = iota
	errBrokenReaderState
	errTruncatedRead
	errShortChunkRead
	errExtraFrameData
	errInvalidFrameType
	errMissingInitHeader
	errDuplicateInitHeader
	errInvalidInitHeader
	errDuplicateInit
	errCallBeforeInit
	errChecksumMismatch
	errInvalidChecksumType
	errInvalidTTL
	errTimeout
	errNoSuchService
	errNoSuchEndpoint
	errEndpointAlreadyDefined
	errAppException
	errSocketError
	errSocketClosed
)

func (k errorKind) String() string {
	switch k {
	case errZeroLengthFrame:
		return "zero-length frame"
	case errBrokenReaderState:
		return "broken reader state"
	case errTruncatedRead:
		return "truncated read"
	case errShortChunkRead:
		return "short chunk read"
	case errExtraFrameData:
		return "extra frame data"
	case errInvalidFrameType:
		return "invalid frame type"
	case errMissingInitHeader:
		return "missing init header"
	case errDuplicateInitHeader:
		return "duplicate init header"
	case errInvalidInitHeader:
		return "invalid init header"
	case errDuplicateInit:
		return "duplicate init"
	case errCallBeforeInit:
		return "call before init"
	case errChecksumMismatch:
		return "checksum mismatch"
	case errInvalidChecksumType:
		return "invalid checksum type"
	case errInvalidTTL:
		return "invalid ttl"
	case errTimeout:
		return "timeout"
	case errNoSuchService:
		return "no such service"
	case errNoSuchEndpoint:
		return "no such operation"
	case errEndpointAlreadyDefined:
		return "endpoint already defined"
	case errAppException:
		return "application exception"
	case errSocketError:
		return "socket error"
	case errSocketClosed:
		return "socket closed"
	default:
		return "unknown error"
	}
}

// protocolError is the concrete error type for every taxonomy entry above.
// It satisfies error and additionally exposes Kind() so callers can branch
// on taxonomy without parsing Error() strings.
type protocolError struct {
	kind errorKind
	msg  string
	// extra carries scenario-specific detail: residual byte counts for
	// truncated/extra-data errors, the offending endpoint name, etc.
	extra map[string]any
}

func (e *protocolError) Error() string {
	if e.msg == "" {
		return e.kind.String()
	}
	return fmt.Sprintf("%s: %s", e.kind.String(), e.msg)
}

func (e *protocolError) Kind() errorKind { return e.kind }

func newProtoErr(kind errorKind, msg string) *protocolError {
	return &protocolError{kind: kind, msg: msg}
}

// sentinel errors usable with errors.Is/errors.As and with fmt.Errorf's %w.
// frame.go and the body codecs wrap ErrBrokenReaderState and
// ErrShortChunkRead via fmt.Errorf rather than building a protocolError
// (the low-level decode helpers have no frame/connection context to
// attach). ErrTruncatedRead and ErrZeroLengthFrame are not wrapped anywhere
// in this package; chunkReader builds its own protocolError values for
// those kinds.
var (
	ErrBrokenReaderState = newProtoErr(errBrokenReaderState, "")
	ErrShortChunkRead    = newProtoErr(errShortChunkRead, "")
	ErrTruncatedRead     = newProtoErr(errTruncatedRead, "")
	ErrZeroLengthFrame   = newProtoErr(errZeroLengthFrame, "")
)

// kindOf extracts the errorKind from err if it (or something it wraps) is
// a *protocolError, and false otherwise.
func kindOf(err error) (errorKind, bool) {
	var pe *protocolError
	if errors.As(err, &pe) {
		return pe.kind, true
	}
	return 0, false
}

// jsError is the on-wire envelope for application errors per §4.6: a JSON
// object with a single key "$jsError" wrapping name/message and any other
// own-properties of the original error. This shape is a wire contract with
// other TChannel v2 implementations and must be preserved bit-exact.
type jsError struct {
	Name    string
	Message string
	Stack   string
	Extra   map[string]any
}

// MarshalJSON flattens Extra's keys alongside name/message/stack as
// sibling own-properties, per §4.6's "any additional own-properties"
// wire contract -- a plain struct tag can't express that, since Extra's
// keys aren't known ahead of time.
func (e jsError) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(e.Extra)+3)
	for k, v := range e.Extra {
		m[k] = v
	}
	m["name"] = e.Name
	m["message"] = e.Message
	if e.Stack != "" {
		m["stack"] = e.Stack
	}
	return gojson.Marshal(m)
}

type jsErrorEnvelope struct {
	JSError jsError `json:"$jsError"`
}

// encodeAppError renders err as the arg1 payload of an AppException
// response: a bare string passes through unchanged, anything else becomes
// a {"$jsError": {...}} envelope.
func encodeAppError(err error) []byte {
	if err == nil {
		return nil
	}
	if se, ok := err.(stringError); ok {
		b, encErr := gojson.Marshal(string(se))
		panicOn(encErr)
		return b
	}
	name := "Error"
	var extra map[string]any
	if pe, ok := err.(*protocolError); ok {
		name = pe.kind.String()
		extra = pe.extra
	}
	env := jsErrorEnvelope{JSError: jsError{Name: name, Message: err.Error(), Extra: extra}}
	b, encErr := gojson.Marshal(env)
	panicOn(encErr)
	return b
}

// decodeAppError parses an arg1 payload produced by encodeAppError (our
// own, or an interoperating peer's) back into a Go error. A bare JSON
// string decodes to a stringError; a {"$jsError": {...}} object decodes to
// a *remoteError preserving name, message, and any additional properties.
func decodeAppError(payload []byte) error {
	var asString string
	if err := gojson.Unmarshal(payload, &asString); err == nil {
		return stringError(asString)
	}
	var raw map[string]any
	if err := gojson.Unmarshal(payload, &raw); err != nil {
		return &remoteError{Name: "Error", Message: string(payload)}
	}
	inner, ok := raw["$jsError"]
	if !ok {
		return &remoteError{Name: "Error", Message: string(payload)}
	}
	innerMap, ok := inner.(map[string]any)
	if !ok {
		return &remoteError{Name: "Error", Message: string(payload)}
	}
	re := &remoteError{Extra: map[string]any{}}
	for k, v := range innerMap {
		switch k {
		case "name":
			re.Name, _ = v.(string)
		case "message":
			re.Message, _ = v.(string)
		default:
			re.Extra[k] = v
		}
	}
	return re
}

// stringError is a bare-string application error: encodes to a JSON string
// literal rather than a $jsError envelope, per §4.6.
type stringError string

func (s stringError) Error() string { return string(s) }

// remoteError is an application error received from a peer, decoded from a
// $jsError envelope. Name/Message/Extra mirror whatever the peer sent.
type remoteError struct {
	Name    string
	Message string
	Extra   map[string]any
}

func (e *remoteError) Error() string {
	if e.Name == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Name, e.Message)
}
