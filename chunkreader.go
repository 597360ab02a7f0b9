package tchannel2

import "encoding/binary"

// readerState names the two states of the chunk reader FSM (§4.2).
type readerState int

const (
	statePendingLength readerState = iota
	stateSeeking
)

// lengthPrefixWidth is the byte width of the frame-size field. TChannel v2
// always uses 4, but the FSM is written generally (§4.2 note) so a future
// wire variant with a narrower prefix needs only a different reader.
type lengthPrefixWidth int

const (
	prefixWidth1 lengthPrefixWidth = 1
	prefixWidth2 lengthPrefixWidth = 2
	prefixWidth4 lengthPrefixWidth = 4
)

// chunkReader turns an arbitrarily-chunked byte stream into discrete,
// length-delimited frame slices. Feed it bytes via feed(); it calls back
// into onFrame for every complete frame it can assemble, and onFrameError
// for recoverable framing errors (zero-length frames) it resynchronizes
// past on its own.
type chunkReader struct {
	width     lengthPrefixWidth
	state     readerState
	expecting int
	buf       *parseBuffer

	onFrame      func(raw []byte) error
	onFrameError func(err error)
}

func newChunkReader(width lengthPrefixWidth, onFrame func([]byte) error, onFrameError func(error)) *chunkReader {
	return &chunkReader{
		width:        width,
		state:        statePendingLength,
		expecting:    int(width),
		buf:          newParseBuffer(4096),
		onFrame:      onFrame,
		onFrameError: onFrameError,
	}
}

// feed appends p to the internal buffer and drives the FSM until no more
// frames can be assembled from what's buffered. onFrame is invoked
// synchronously for each complete frame, in wire order. A non-nil error
// from onFrame is returned immediately, without processing further frames
// in this call -- the caller (Connection) treats any such error as fatal
// and resets.
func (cr *chunkReader) feed(p []byte) error {
	cr.buf.append(p)
	for {
		switch cr.state {
		case statePendingLength:
			if cr.buf.len() < int(cr.width) {
				return nil
			}
			lenBytes, ok := cr.buf.peek(0, int(cr.width))
			if !ok {
				return nil
			}
			size := cr.readLen(lenBytes)
			if size == 0 {
				cr.buf.shift(int(cr.width))
				cr.onFrameError(newProtoErr(errZeroLengthFrame, "zero-length frame"))
				// remain in PendingLength, already reset via shift
				continue
			}
			if size < frameHeaderSize {
				return newProtoErr(errBrokenReaderState, "declared size below minimum header size")
			}
			cr.expecting = size
			cr.state = stateSeeking
		case stateSeeking:
			if cr.buf.len() < cr.expecting {
				return nil
			}
			raw := cr.buf.shift(cr.expecting)
			// raw includes the length prefix itself re-derivable; we hand
			// the chunk reader's caller the whole size-prefixed region so
			// decodeFrame can re-validate size against len(raw).
			cr.expecting = int(cr.width)
			cr.state = statePendingLength
			if err := cr.onFrame(raw); err != nil {
				return err
			}
		}
	}
}

// pending reports whether bytes remain buffered but insufficient to form
// a complete frame -- used at end-of-stream to detect a truncated read.
func (cr *chunkReader) pending() (residual int, state readerState) {
	return cr.buf.len(), cr.state
}

// endOfStream should be called once the underlying socket reports EOF. A
// nonzero residual with bytes still buffered is a truncated-read error
// per §4.2; a clean EOF exactly on a frame boundary is not an error.
func (cr *chunkReader) endOfStream() error {
	residual, state := cr.pending()
	if residual == 0 {
		return nil
	}
	return &protocolError{
		kind: errTruncatedRead,
		msg:  "end of stream with buffered bytes",
		extra: map[string]any{
			"residual": residual,
			"state":    int(state),
		},
	}
}

func (cr *chunkReader) readLen(b []byte) int {
	switch cr.width {
	case prefixWidth1:
		return int(b[0])
	case prefixWidth2:
		return int(binary.BigEndian.Uint16(b))
	default:
		return int(binary.BigEndian.Uint32(b))
	}
}
