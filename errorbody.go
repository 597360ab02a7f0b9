package tchannel2

import "fmt"

// errorBody is the payload of an Error frame (§3, §6): a response code
// plus a UTF-8 message, used for connection/protocol-level failures that
// are not tied to a specific application exception (those travel instead
// as a CallResponse with code=AppException carrying a $jsError arg1).
type errorBody struct {
	code    ResponseCode
	message string
}

func (b *errorBody) encode() []byte {
	out := make([]byte, 0, 3+len(b.message))
	out = append(out, uint8(b.code))
	out = writeU16Prefixed(out, []byte(b.message))
	return out
}

func decodeErrorBody(buf []byte) (*errorBody, error) {
	if len(buf) < 1 {
		return nil, fmt.Errorf("%w: error body too short", ErrShortChunkRead)
	}
	code := ResponseCode(buf[0])
	msg, n, err := readU16Prefixed(buf[1:])
	if err != nil {
		return nil, fmt.Errorf("error message: %w", err)
	}
	off := 1 + n
	if off != len(buf) {
		return nil, &protocolError{
			kind:  errExtraFrameData,
			msg:   "error body has trailing bytes",
			extra: map[string]any{"trailing": len(buf) - off},
		}
	}
	return &errorBody{code: code, message: string(msg)}, nil
}
