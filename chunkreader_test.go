package tchannel2

import (
	"math/rand"
	"testing"
)

// feedInChunks drives a chunk reader by splitting the stream into the
// given partition sizes and checks that the resulting frame sequence is
// identical no matter how the bytes are chunked (§8 "Framing
// partition-invariance").
func feedInChunks(t *testing.T, stream []byte, chunkSizes []int) [][]byte {
	t.Helper()
	var got [][]byte
	cr := newChunkReader(prefixWidth4, func(raw []byte) error {
		cp := make([]byte, len(raw))
		copy(cp, raw)
		got = append(got, cp)
		return nil
	}, func(err error) {})

	off := 0
	for _, n := range chunkSizes {
		if off >= len(stream) {
			break
		}
		end := off + n
		if end > len(stream) {
			end = len(stream)
		}
		if err := cr.feed(stream[off:end]); err != nil {
			t.Fatalf("unexpected feed error: %v", err)
		}
		off = end
	}
	if off < len(stream) {
		if err := cr.feed(stream[off:]); err != nil {
			t.Fatalf("unexpected feed error: %v", err)
		}
	}
	return got
}

func buildTwoFrameStream() []byte {
	var out []byte
	out = append(out, encodeFrame(1, typeInitRequest, 0, []byte("aaa"))...)
	out = append(out, encodeFrame(2, typeCallRequest, 0, []byte("bbbbbbbbbb"))...)
	return out
}

func Test101_chunkreader_partition_invariance(t *testing.T) {
	stream := buildTwoFrameStream()

	allAtOnce := feedInChunks(t, stream, []int{len(stream)})
	oneByteAtATime := feedInChunks(t, stream, ones(len(stream)))

	rng := rand.New(rand.NewSource(42))
	var randomSizes []int
	remaining := len(stream)
	for remaining > 0 {
		n := 1 + rng.Intn(5)
		if n > remaining {
			n = remaining
		}
		randomSizes = append(randomSizes, n)
		remaining -= n
	}
	randomChunks := feedInChunks(t, stream, randomSizes)

	if len(allAtOnce) != 2 || len(oneByteAtATime) != 2 || len(randomChunks) != 2 {
		t.Fatalf("expected 2 frames from each partition, got %d/%d/%d", len(allAtOnce), len(oneByteAtATime), len(randomChunks))
	}
	for i := range allAtOnce {
		if string(allAtOnce[i]) != string(oneByteAtATime[i]) || string(allAtOnce[i]) != string(randomChunks[i]) {
			t.Fatalf("frame %d differs across partitions", i)
		}
	}
}

func ones(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = 1
	}
	return out
}

func Test102_chunkreader_zero_length_frame_resyncs(t *testing.T) {
	var errs []error
	var frames [][]byte
	cr := newChunkReader(prefixWidth4, func(raw []byte) error {
		frames = append(frames, raw)
		return nil
	}, func(err error) {
		errs = append(errs, err)
	})

	stream := append([]byte{0, 0, 0, 0}, encodeFrame(1, typeInitRequest, 0, []byte("x"))...)
	if err := cr.feed(stream); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(errs) != 1 {
		t.Fatalf("expected exactly one zero-length-frame error, got %d", len(errs))
	}
	if kind, ok := kindOf(errs[0]); !ok || kind != errZeroLengthFrame {
		t.Fatalf("expected errZeroLengthFrame, got %v", errs[0])
	}
	if len(frames) != 1 {
		t.Fatalf("expected the reader to resume and decode the following frame, got %d frames", len(frames))
	}
}

func Test103_chunkreader_truncated_read_detected(t *testing.T) {
	stream := buildTwoFrameStream()
	cr := newChunkReader(prefixWidth4, func(raw []byte) error { return nil }, func(err error) {})

	// feed everything but the last 3 bytes of the second frame.
	if err := cr.feed(stream[:len(stream)-3]); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := cr.endOfStream()
	if err == nil {
		t.Fatalf("expected a truncated-read error")
	}
	kind, ok := kindOf(err)
	if !ok || kind != errTruncatedRead {
		t.Fatalf("expected errTruncatedRead, got %v", err)
	}
}

// Test105 reproduces a buffer-aliasing regression: a large frame followed
// by a smaller one in the same Read used to corrupt the already-decoded
// large frame, because parseBuffer.shift returned a slice aliasing the
// backing array and then compacted over it before the caller (and the
// frame it had just "returned") was done with the bytes.
func Test105_chunkreader_large_frame_then_small_frame_in_one_read(t *testing.T) {
	frame1Body := make([]byte, 3000-frameHeaderSize)
	for i := range frame1Body {
		frame1Body[i] = byte(i)
	}
	frame2Body := []byte("tiny-second-frame-payload")

	var stream []byte
	stream = append(stream, encodeFrame(1, typeCallRequest, 0, frame1Body)...)
	stream = append(stream, encodeFrame(2, typeCallRequest, 0, frame2Body)...)

	var frames [][]byte
	cr := newChunkReader(prefixWidth4, func(raw []byte) error {
		cp := make([]byte, len(raw))
		copy(cp, raw)
		frames = append(frames, cp)
		return nil
	}, func(err error) {})

	if err := cr.feed(stream); err != nil {
		t.Fatalf("unexpected feed error: %v", err)
	}
	if len(frames) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(frames))
	}

	fr1, err := decodeFrame(frames[0])
	if err != nil {
		t.Fatalf("frame 1 failed to decode: %v", err)
	}
	if string(fr1.body) != string(frame1Body) {
		t.Fatalf("frame 1 body corrupted by subsequent compaction")
	}

	fr2, err := decodeFrame(frames[1])
	if err != nil {
		t.Fatalf("frame 2 failed to decode: %v", err)
	}
	if string(fr2.body) != string(frame2Body) {
		t.Fatalf("frame 2 body mismatch, got %q", fr2.body)
	}
}

func Test104_chunkreader_size_below_header_minimum_rejected(t *testing.T) {
	cr := newChunkReader(prefixWidth4, func(raw []byte) error { return nil }, func(err error) {})
	var lenBuf [4]byte
	lenBuf[3] = 10 // declares size=10, below the 16-byte header minimum
	err := cr.feed(lenBuf[:])
	if err == nil {
		t.Fatalf("expected size-below-minimum to be rejected")
	}
}
