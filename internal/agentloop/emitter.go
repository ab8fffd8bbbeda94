package agentloop

import (
	"strings"
	"sync"

	"github.com/Nohyunjin/omni-secretary/internal/redaction"
)

// StreamEmitter carries events from the agent loop to one consumer in order.
// Every stream ends with exactly one terminal event; anything emitted after
// that is dropped. All outgoing text passes through the redactor.
type StreamEmitter struct {
	ch       chan Event
	redactor *redaction.Redactor

	mu   sync.Mutex
	done bool
}

func NewStreamEmitter(buffer int, redactor *redaction.Redactor) *StreamEmitter {
	if buffer <= 0 {
		buffer = 64
	}
	return &StreamEmitter{
		ch:       make(chan Event, buffer),
		redactor: redactor,
	}
}

// Events is the consumer side. The channel closes after the terminal event.
func (e *StreamEmitter) Events() <-chan Event { return e.ch }

// Content emits one chunk. Empty chunks are suppressed so consumers cannot
// mistake them for the stop terminator.
func (e *StreamEmitter) Content(text string) {
	if text == "" {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.done {
		return
	}
	e.ch <- ContentEvent(e.redactor.Redact(text))
}

// Stop ends the stream successfully.
func (e *StreamEmitter) Stop() {
	e.terminate(StopEvent())
}

// Fail ends the stream with an error.
func (e *StreamEmitter) Fail(message string) {
	e.terminate(ErrorEvent(e.redactor.Redact(message)))
}

func (e *StreamEmitter) terminate(ev Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.done {
		return
	}
	e.done = true
	e.ch <- ev
	close(e.ch)
}

// Collect drains a stream into the concatenated content, the error message if
// the stream failed, and whether it failed. Intended for non-streaming
// callers.
func Collect(events <-chan Event) (content string, errMsg string, failed bool) {
	var sb strings.Builder
	for ev := range events {
		switch {
		case ev.IsError():
			return sb.String(), ev.ErrorMessage(), true
		case ev.Terminal():
			return sb.String(), "", false
		default:
			sb.WriteString(ev.Content())
		}
	}
	return sb.String(), "", false
}
