package tchannel2

import (
	"fmt"
	"io"
	"math/rand"
	"sync"
	"time"

	cristalbase64 "github.com/cristalhq/base64"
	"github.com/glycerine/idem"
)

// direction names which side of a Connection dialed the other, per §3's
// Connection state.
type direction int

const (
	directionOut direction = iota
	directionIn
)

func (d direction) String() string {
	if d == directionOut {
		return "out"
	}
	return "in"
}

// Connection is one live duplex link between two peers (§4.4). It owns the
// handshake, the per-connection operation tables, the frame id allocator,
// and the timeout sweeper. All of inOps/outOps/lastFrameID/closing/
// remoteName are touched only while holding mut, matching §5's
// requirement that a thread-parallel implementation serialize per-
// connection state (the teacher's single-threaded-event-loop assumption
// does not hold in Go).
type Connection struct {
	ch         *Channel
	conn       io.ReadWriteCloser
	dir        direction
	remoteAddr string

	mut                sync.Mutex
	remoteName         string
	closing            bool
	lastFrameID        uint32
	lastTimeoutWitness time.Time

	inOps  *omap[uint32, *inOp]
	outOps *omap[uint32, *outOp]
	sweep  *pq

	writeCh chan []byte
	halt    *idem.Halter

	cfg *Config
	log Logger
}

func newConnection(ch *Channel, conn io.ReadWriteCloser, dir direction, remoteAddr string) *Connection {
	c := &Connection{
		ch:         ch,
		conn:       conn,
		dir:        dir,
		remoteAddr: remoteAddr,
		inOps:      newOmap[uint32, *inOp](),
		outOps:     newOmap[uint32, *outOp](),
		sweep:      newPQ(),
		writeCh:    make(chan []byte, 64),
		halt:       idem.NewHalterNamed(fmt.Sprintf("Connection(%s %s)", dir, remoteAddr)),
		cfg:        ch.cfg,
		log:        ch.cfg.Logger,
	}
	go c.runReadLoop()
	go c.runWriteLoop()
	go c.runSweeper()

	if dir == directionOut {
		c.sendInitRequest()
	}
	return c
}

// sendInitRequest emits the connection-opening InitRequest at frame id 1,
// per §4.4's construction rule for outbound connections.
func (c *Connection) sendInitRequest() {
	body := &initBody{
		version:     protocolVersion,
		hostPort:    c.ch.selfAddr,
		processName: c.ch.processName,
	}
	c.mut.Lock()
	c.lastFrameID = 1
	c.mut.Unlock()
	c.writeFrame(1, typeInitRequest, 0, body.encode())
}

// writeFrame hands an encoded frame to the single writer goroutine, which
// serializes all socket writes for this connection (§5 "single-producer
// per connection").
func (c *Connection) writeFrame(id uint32, typ frameType, flags uint8, body []byte) {
	raw := encodeFrame(id, typ, flags, body)
	select {
	case c.writeCh <- raw:
	case <-c.halt.ReqStop.Chan:
	}
}

func (c *Connection) runWriteLoop() {
	for {
		select {
		case <-c.halt.ReqStop.Chan:
			return
		case raw := <-c.writeCh:
			if _, err := c.conn.Write(raw); err != nil {
				c.resetAll(fmt.Errorf("%w: %v", newProtoErr(errSocketError, "write failed"), err))
				return
			}
		}
	}
}

func (c *Connection) runReadLoop() {
	defer c.halt.Done.Close()

	var readErr error
	cr := newChunkReader(prefixWidth4, c.onFrame, func(err error) {
		c.log.Warnf("connection %s: %v", c.remoteAddr, err)
	})

	buf := make([]byte, 64*1024)
	for {
		select {
		case <-c.halt.ReqStop.Chan:
			return
		default:
		}
		n, err := c.conn.Read(buf)
		if n > 0 {
			if feedErr := cr.feed(buf[:n]); feedErr != nil {
				c.resetAll(feedErr)
				return
			}
		}
		if err != nil {
			if err == io.EOF {
				readErr = cr.endOfStream()
			} else {
				readErr = fmt.Errorf("%w: %v", newProtoErr(errSocketError, "read failed"), err)
			}
			if readErr != nil {
				c.resetAll(readErr)
			} else {
				c.resetAll(newProtoErr(errSocketClosed, "peer closed"))
			}
			return
		}
	}
}

// onFrame is the chunk reader's callback: decode the header+body and
// dispatch per §4.4's inbound frame rules. Any returned error is treated
// as fatal by the chunk reader's caller (runReadLoop), which resets.
func (c *Connection) onFrame(raw []byte) error {
	fr, err := decodeFrame(raw)
	if err != nil {
		return err
	}

	c.mut.Lock()
	closing := c.closing
	c.lastTimeoutWitness = time.Time{}
	c.mut.Unlock()
	if closing {
		return nil
	}

	switch fr.typ {
	case typeInitRequest:
		return c.handleInitRequest(fr)
	case typeInitResponse:
		return c.handleInitResponse(fr)
	case typeCallRequest:
		return c.handleCallRequest(fr)
	case typeCallResponse:
		return c.handleCallResponse(fr)
	case typeError:
		return c.handleError(fr)
	default:
		c.log.Warnf("connection %s: dropping unknown frame type 0x%02x", c.remoteAddr, uint8(fr.typ))
		return nil
	}
}

func (c *Connection) handleInitRequest(fr *frame) error {
	body, err := decodeInitBody(fr.body)
	if err != nil {
		return err
	}
	c.mut.Lock()
	if c.remoteName != "" {
		c.mut.Unlock()
		return newProtoErr(errDuplicateInit, "duplicate init request")
	}
	c.remoteName = body.hostPort
	c.mut.Unlock()

	c.ch.registerIdentified(body.hostPort, c)

	resp := &initBody{
		version:     protocolVersion,
		hostPort:    c.ch.selfAddr,
		processName: c.ch.processName,
	}
	c.writeFrame(fr.id, typeInitResponse, 0, resp.encode())
	return nil
}

func (c *Connection) handleInitResponse(fr *frame) error {
	body, err := decodeInitBody(fr.body)
	if err != nil {
		return err
	}
	c.mut.Lock()
	if c.remoteName != "" {
		c.mut.Unlock()
		return newProtoErr(errDuplicateInit, "duplicate init response")
	}
	c.remoteName = body.hostPort
	c.mut.Unlock()

	c.ch.registerIdentified(body.hostPort, c)
	return nil
}

func (c *Connection) handleCallRequest(fr *frame) error {
	c.mut.Lock()
	identified := c.remoteName != ""
	c.mut.Unlock()
	if !identified {
		return newProtoErr(errCallBeforeInit, "call request before init")
	}

	body, err := decodeCallRequestBody(fr.body)
	if err != nil {
		return err
	}
	if body.ttl == 0 {
		return newProtoErr(errInvalidTTL, "call request ttl is zero")
	}

	op := &inOp{
		frameID:  fr.id,
		endpoint: body.arg1,
		start:    time.Now(),
		timeout:  time.Duration(body.ttl) * time.Millisecond,
		csumType: body.csumType,
	}
	c.mut.Lock()
	c.inOps.set(fr.id, op)
	c.mut.Unlock()

	c.log.Debugf("connection %s: call request frame=%d endpoint=%q tracing=%s",
		c.remoteAddr, fr.id, body.arg1, cristalbase64.URLEncoding.EncodeToString(body.tracing[:]))

	handler, ok := c.ch.lookupEndpoint(body.arg1)
	if !ok {
		handler = notFoundHandler(string(body.arg1))
	}

	respond := c.respondFunc(fr.id, body.arg1, body.csumType, op)
	go handler(body.arg2, body.arg3, c.remoteNameSnapshot(), respond)
	return nil
}

// respondFunc builds the idempotent RespondFunc for one inbound operation
// (§4.4 "Handler sink idempotence"): the first call builds and writes a
// CallResponse frame; any further call is a no-op with a warning, and a
// response for an operation already evicted by the sweeper is discarded.
func (c *Connection) respondFunc(frameID uint32, reqArg1 []byte, csumType ChecksumType, op *inOp) RespondFunc {
	return func(err error, res2, res3 []byte) {
		c.mut.Lock()
		if op.responseSent {
			c.mut.Unlock()
			c.log.Warnf("connection %s: duplicate respond() for frame %d ignored", c.remoteAddr, frameID)
			return
		}
		op.responseSent = true
		_, stillLive := c.inOps.get2(frameID)
		c.inOps.delkey(frameID)
		c.mut.Unlock()

		if !stillLive {
			// already pruned by the sweeper; discard the late response.
			return
		}

		resp := &callResponseBody{csumType: csumType}
		if err != nil {
			resp.code = CodeAppException
			resp.arg1 = encodeAppError(err)
		} else {
			resp.code = CodeOK
			resp.arg1 = reqArg1
		}
		resp.arg2 = res2
		resp.arg3 = res3

		encoded, encErr := resp.encode()
		if encErr != nil {
			c.log.Errorf("connection %s: failed to encode response for frame %d: %v", c.remoteAddr, frameID, encErr)
			return
		}
		c.writeFrame(frameID, typeCallResponse, 0, encoded)
	}
}

func notFoundHandler(endpoint string) Handler {
	return func(arg2, arg3 []byte, remoteName string, respond RespondFunc) {
		respond(&protocolError{
			kind:  errNoSuchEndpoint,
			extra: map[string]any{"op": endpoint},
		}, nil, nil)
	}
}

func (c *Connection) handleCallResponse(fr *frame) error {
	c.mut.Lock()
	identified := c.remoteName != ""
	c.mut.Unlock()
	if !identified {
		return newProtoErr(errCallBeforeInit, "call response before init")
	}

	body, err := decodeCallResponseBody(fr.body)
	if err != nil {
		return err
	}

	op, ok := c.takeOutOp(fr.id)
	if !ok {
		// late response for a cancelled/timed-out/unknown id: dropped.
		return nil
	}

	if body.code == CodeAppException {
		op.complete(decodeAppError(body.arg1), body.arg2, body.arg3)
		return nil
	}
	if body.code != CodeOK {
		op.complete(responseCodeError(body.code), body.arg2, body.arg3)
		return nil
	}
	op.complete(nil, body.arg2, body.arg3)
	return nil
}

func (c *Connection) handleError(fr *frame) error {
	body, err := decodeErrorBody(fr.body)
	if err != nil {
		return err
	}
	op, ok := c.takeOutOp(fr.id)
	if !ok {
		return nil
	}
	op.complete(responseCodeError(body.code), nil, nil)
	return nil
}

func responseCodeError(code ResponseCode) error {
	switch code {
	case CodeTimeout:
		return newProtoErr(errTimeout, "remote reported timeout")
	case CodeCancelled:
		return fmt.Errorf("remote cancelled operation")
	case CodeBusy:
		return fmt.Errorf("remote busy")
	default:
		return newProtoErr(errSocketError, fmt.Sprintf("remote error code %d", code))
	}
}

func (c *Connection) takeOutOp(id uint32) (*outOp, bool) {
	c.mut.Lock()
	defer c.mut.Unlock()
	op, ok := c.outOps.get2(id)
	if !ok {
		return nil, false
	}
	c.outOps.delkey(id)
	if op.pqItem != nil {
		c.sweep.delOneItem(op.pqItem)
	}
	return op, true
}

func (c *Connection) remoteNameSnapshot() string {
	c.mut.Lock()
	defer c.mut.Unlock()
	return c.remoteName
}

// isIdentified reports whether this connection has completed the init
// handshake (either side).
func (c *Connection) isIdentified() bool {
	c.mut.Lock()
	defer c.mut.Unlock()
	return c.remoteName != ""
}

// nextFrameID allocates the next outbound frame id, wrapping at 2^32 per
// §4.4's allocator rule. The first id an out-direction connection issues
// (frame id 1) is reserved for the InitRequest.
func (c *Connection) nextFrameID() uint32 {
	c.mut.Lock()
	defer c.mut.Unlock()
	c.lastFrameID++
	return c.lastFrameID
}

// send allocates a frame id, enrols an outOp, encodes and writes the
// CallRequest frame (§4.4 "Outbound send").
func (c *Connection) send(body *callRequestBody, sink CompletionSink) error {
	c.mut.Lock()
	if c.closing {
		c.mut.Unlock()
		return newProtoErr(errSocketClosed, "connection is closing")
	}
	id := c.nextFrameIDLocked()
	op := &outOp{
		frameID: id,
		reqBody: body,
		start:   time.Now(),
		timeout: time.Duration(body.ttl) * time.Millisecond,
		sink:    sink,
	}
	c.outOps.set(id, op)
	c.mut.Unlock()

	op.pqItem = c.sweep.add(op)

	c.log.Debugf("connection %s: sending call frame=%d service=%q tracing=%s",
		c.remoteAddr, id, body.service, cristalbase64.URLEncoding.EncodeToString(body.tracing[:]))

	encoded, err := body.encode()
	if err != nil {
		c.takeOutOp(id)
		return err
	}
	c.writeFrame(id, typeCallRequest, 0, encoded)
	return nil
}

func (c *Connection) nextFrameIDLocked() uint32 {
	c.lastFrameID++
	return c.lastFrameID
}

// runSweeper implements §4.4's timeout sweeper: a recurring, fuzzed timer
// that times out stale outOps, prunes stale inOps, and escalates a
// persistently stuck link to a full reset.
func (c *Connection) runSweeper() {
	for {
		interval := c.cfg.TimeoutCheckInterval
		fuzz := c.cfg.TimeoutFuzz
		if fuzz > 0 {
			delta := time.Duration(rand.Int63n(int64(fuzz))) - fuzz/2
			interval += delta
		}
		t := time.NewTimer(interval)
		select {
		case <-c.halt.ReqStop.Chan:
			t.Stop()
			return
		case <-t.C:
		}

		c.mut.Lock()
		if c.closing {
			c.mut.Unlock()
			return
		}
		escalate := !c.lastTimeoutWitness.IsZero()
		c.mut.Unlock()

		if escalate {
			c.resetAll(newProtoErr(errSocketError, "link persistently timing out, escalating to reset"))
			return
		}

		now := time.Now()
		due := c.sweep.expired(now)
		if len(due) > 0 {
			c.mut.Lock()
			for _, op := range due {
				c.outOps.delkey(op.frameID)
			}
			c.lastTimeoutWitness = now
			c.mut.Unlock()
			for _, op := range due {
				op.complete(newProtoErr(errTimeout, "operation timed out"), nil, nil)
			}
		}

		c.pruneInOps(now)
	}
}

// pruneInOps drops inbound operations older than the channel's server-side
// timeout default, without invoking any sink -- the handler is expected to
// complete (or time out) on its own; pruning only bounds memory (§4.4
// step 4).
func (c *Connection) pruneInOps(now time.Time) {
	horizon := c.cfg.ServerOpTimeout
	c.mut.Lock()
	defer c.mut.Unlock()
	var stale []uint32
	for id, op := range c.inOps.all() {
		if now.Sub(op.start) > horizon {
			stale = append(stale, id)
		}
	}
	for _, id := range stale {
		c.inOps.delkey(id)
	}
}

// resetAll is the terminal cleanup of §4.4: idempotent, it marks the
// connection closing, stops the sweeper/writer/reader, fails every
// pending outOp, drops every inOp, and notifies the channel.
func (c *Connection) resetAll(err error) {
	c.mut.Lock()
	if c.closing {
		c.mut.Unlock()
		return
	}
	c.closing = true
	remoteName := c.remoteName

	var outOpsToFail []*outOp
	for _, op := range c.outOps.all() {
		outOpsToFail = append(outOpsToFail, op)
	}
	c.outOps.deleteAll()
	c.inOps.deleteAll()
	c.mut.Unlock()

	c.log.Warnf("connection %s reset: %v", c.remoteAddr, err)

	for _, op := range outOpsToFail {
		op.complete(err, nil, nil)
	}

	c.conn.Close()
	c.halt.ReqStop.Close()

	if remoteName != "" {
		c.ch.removePeerConnection(remoteName, c)
	}
	c.ch.onSocketClose(c, err)
}
