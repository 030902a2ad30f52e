package execution

import (
	"context"

	"github.com/pipewright/pipewright/internal/events"
)

// Stream is the consumer's view of a running pipeline. Events arrive in
// causal order and the channel is closed after the terminal pipeline event.
// Delivery applies backpressure: a slow consumer slows the run rather than
// losing events.
type Stream struct {
	runID  string
	events chan events.ExecutionEvent
	done   chan struct{}
	err    error
}

func newStream(runID string) *Stream {
	return &Stream{
		runID:  runID,
		events: make(chan events.ExecutionEvent, 16),
		done:   make(chan struct{}),
	}
}

// RunID identifies the run this stream reports on.
func (s *Stream) RunID() string { return s.runID }

// Events returns the event channel. Range over it until it closes.
func (s *Stream) Events() <-chan events.ExecutionEvent { return s.events }

// Err blocks until the run has settled and returns its terminal error, nil
// for completed, paused, and cancelled runs.
func (s *Stream) Err() error {
	<-s.done
	return s.err
}

// emit delivers one event, giving up if the run context ends first.
func (s *Stream) emit(ctx context.Context, event events.ExecutionEvent) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

// finish seals the stream. Called exactly once by the orchestrator.
func (s *Stream) finish(err error) {
	s.err = err
	close(s.events)
	close(s.done)
}
