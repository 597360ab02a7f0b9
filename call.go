package tchannel2

import (
	"context"

	"github.com/glycerine/loquet"
)

// callResult carries the outcome of a blocking Call through the one-shot
// completion channel below.
type callResult struct {
	arg2, arg3 []byte
	err        error
}

// Call wraps Channel.Send with a blocking completion, for callers that
// don't want to write their own sink callback (§4.11), mirroring the
// teacher's higher-level synchronous call sitting atop a lower-level async
// send. It returns early with ctx.Err() if ctx is cancelled before the
// underlying operation completes; the operation itself is not cancelled
// in-band (§5 "Cancellation" -- there is none), it simply continues
// running to its own timeout or response.
func (ch *Channel) Call(ctx context.Context, opts CallOptions, arg1, arg2, arg3 []byte) (res2, res3 []byte, err error) {
	done := loquet.NewChan[bool](nil)
	var result callResult

	sendErr := ch.Send(opts, arg1, arg2, arg3, func(err error, res2, res3 []byte) {
		result = callResult{arg2: res2, arg3: res3, err: err}
		done.Close()
	})
	if sendErr != nil {
		return nil, nil, sendErr
	}

	select {
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	case <-done.WhenClosed():
		return result.arg2, result.arg3, result.err
	}
}
