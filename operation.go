package tchannel2

import "time"

// CompletionSink receives the eventual outcome of an outbound call: err is
// non-nil for a timeout, an application exception, or a connection reset;
// res2/res3 are arg2/arg3 of the CallResponse on success.
type CompletionSink func(err error, res2, res3 []byte)

// outOp is the outbound operation record of §3: created on send, removed
// on matching response, explicit completion, timeout, or connection reset.
type outOp struct {
	frameID  uint32
	reqBody  *callRequestBody
	start    time.Time
	timeout  time.Duration
	sink     CompletionSink
	timedOut bool
	pqItem   *pqTimeItem // this op's slot in the connection's sweeper queue
}

func (op *outOp) when() time.Time { return op.start.Add(op.timeout) }

// complete invokes the sink exactly once; subsequent calls are no-ops, so
// a late timeout sweep racing a just-arrived response cannot double-fire.
func (op *outOp) complete(err error, res2, res3 []byte) {
	if op.sink == nil {
		return
	}
	sink := op.sink
	op.sink = nil
	sink(err, res2, res3)
}

// Handler serves one inbound CallRequest. arg2/arg3 are the request's
// application headers payload and body; remoteName is the caller's
// identified host:port. Calling respond completes the operation -- a
// second call is a no-op with a warning (§4.4 "Handler sink idempotence").
type Handler func(arg2, arg3 []byte, remoteName string, respond RespondFunc)

// RespondFunc completes an inbound operation. err != nil produces an
// AppException response carrying the serialized error in arg1; err == nil
// produces an OK response echoing the request's endpoint name as arg1.
type RespondFunc func(err error, res2, res3 []byte)

// inOp is the inbound operation record of §3: created on CallRequest
// receipt, destroyed when the handler's sink fires or on timeout/reset.
type inOp struct {
	frameID      uint32
	endpoint     []byte
	start        time.Time
	timeout      time.Duration
	csumType     ChecksumType
	responseSent bool
}
