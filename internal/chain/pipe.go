package chain

import "context"

// Pipe is the per-task channel back to the scheduler's coordinator
// (SPEC_FULL §4.1/§5): a task pushes its batch and current marker value,
// then blocks on the receipt before continuing — backpressure that
// guarantees the coordinator never sees two uncommitted batches from the
// same task racing each other.
type Pipe struct {
	out     chan<- PipeMessage
	receipt <-chan struct{}
	abort   <-chan struct{}
}

// PipeMessage is one push: a task's identity, its marker value at the time
// of the push, and the records it produced since the last push.
type PipeMessage struct {
	TaskKey     string
	MarkerValue interface{}
	Batch       Batch
}

// NewPipe builds a Pipe over the given channels, owned by the coordinator.
func NewPipe(out chan<- PipeMessage, receipt <-chan struct{}, abort <-chan struct{}) *Pipe {
	return &Pipe{out: out, receipt: receipt, abort: abort}
}

// Push sends a message and waits for the coordinator's receipt or an
// abort signal, whichever comes first. It reports whether the caller
// should stop (aborted).
func (p *Pipe) Push(ctx context.Context, msg PipeMessage) (aborted bool, err error) {
	select {
	case p.out <- msg:
	case <-p.abort:
		return true, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}

	select {
	case <-p.receipt:
		return false, nil
	case <-p.abort:
		return true, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// Aborted reports whether the abort signal has already fired, without
// blocking; used at loop-top checks between pushes.
func (p *Pipe) Aborted() bool {
	select {
	case <-p.abort:
		return true
	default:
		return false
	}
}
