package plugin

import (
	"context"
	"sync"
)

// RunState is the lifecycle state of an engine's worker goroutine.
type RunState int

const (
	Idle RunState = iota
	Running
	Stopping
)

func (s RunState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Worker runs at most one goroutine for an engine and tracks its state.
// Engines embed it and route start, stop and get-state through Dispatch.
//
// Idle -> Running on Start, Running -> Stopping on Stop, and back to Idle
// when the goroutine returns, whether it was stopped or finished.
type Worker struct {
	mu     sync.Mutex
	state  RunState
	cancel context.CancelFunc
	done   chan struct{}
}

// Start runs fn on a new goroutine if the worker is idle. Starting a
// running worker is a no-op that reports success; starting while the
// previous goroutine is still stopping fails.
func (w *Worker) Start(fn func(ctx context.Context)) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch w.state {
	case Running:
		return true
	case Stopping:
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	w.state = Running
	w.cancel = cancel
	w.done = done

	go func() {
		defer func() {
			cancel()
			w.mu.Lock()
			w.state = Idle
			w.cancel = nil
			w.mu.Unlock()
			close(done)
		}()
		fn(ctx)
	}()
	return true
}

// Stop asks the goroutine to finish. It does not wait; callers observe
// completion through Running or Done.
func (w *Worker) Stop() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch w.state {
	case Idle:
		return false
	case Running:
		w.state = Stopping
		if w.cancel != nil {
			w.cancel()
		}
	}
	return true
}

// Running reports true while running or stopping.
func (w *Worker) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state != Idle
}

func (w *Worker) RunState() RunState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Done returns a channel closed when the current goroutine exits. For an
// idle worker the channel is already closed.
func (w *Worker) Done() <-chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == Idle || w.done == nil {
		c := make(chan struct{})
		close(c)
		return c
	}
	return w.done
}

// Dispatch handles CtrlStart, CtrlStop and CtrlGetState. Other codes
// return false so the engine can handle them itself.
func (w *Worker) Dispatch(code CtrlCode, data any, run func(ctx context.Context)) bool {
	switch code {
	case CtrlStart:
		return w.Start(run)
	case CtrlStop:
		return w.Stop()
	case CtrlGetState:
		state, ok := data.(*bool)
		if !ok || state == nil {
			return false
		}
		*state = w.Running()
		return true
	}
	return false
}
