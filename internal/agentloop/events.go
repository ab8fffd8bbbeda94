package agentloop

import "encoding/json"

type eventKind int

const (
	kindContent eventKind = iota
	kindStop
	kindError
)

// Event is one item of an agent response stream. Exactly three payload
// shapes exist on the wire: a content chunk, the stop terminator, and an
// error terminator.
type Event struct {
	kind eventKind
	text string
}

func ContentEvent(text string) Event { return Event{kind: kindContent, text: text} }
func StopEvent() Event               { return Event{kind: kindStop} }
func ErrorEvent(message string) Event {
	return Event{kind: kindError, text: message}
}

// Terminal reports whether the event ends the stream.
func (e Event) Terminal() bool { return e.kind != kindContent }

// IsError reports whether the event is the error terminator.
func (e Event) IsError() bool { return e.kind == kindError }

// Content returns the chunk text for content events.
func (e Event) Content() string {
	if e.kind == kindContent {
		return e.text
	}
	return ""
}

// ErrorMessage returns the message for error events.
func (e Event) ErrorMessage() string {
	if e.kind == kindError {
		return e.text
	}
	return ""
}

// MarshalJSON renders the wire payload for the event's shape.
func (e Event) MarshalJSON() ([]byte, error) {
	switch e.kind {
	case kindStop:
		return json.Marshal(map[string]string{"content": "", "finish_reason": "stop"})
	case kindError:
		return json.Marshal(map[string]string{"error": e.text})
	default:
		return json.Marshal(map[string]string{"content": e.text})
	}
}
