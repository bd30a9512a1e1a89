// Package notice models the relay-to-client advisory messages: plain
// NOTICE text and per-event OK results.
package notice

import "encoding/json"

// Notice is either a free-text Message or a per-event Result.
type Notice struct {
	message *string
	result  *EventResult
}

// EventResult is the payload of an OK response.
type EventResult struct {
	ID  string
	OK  bool
	Msg string
}

// Message builds a plain NOTICE.
func Message(text string) Notice {
	return Notice{message: &text}
}

// Result builds an OK response.
func Result(id string, ok bool, msg string) Notice {
	return Notice{result: &EventResult{ID: id, OK: ok, Msg: msg}}
}

// Invalid is shorthand for an OK(false, msg) response to a rejected event.
func Invalid(id string, msg string) Notice {
	return Result(id, false, msg)
}

// Stored is shorthand for the successful-persist OK response.
func Stored(id string) Notice {
	return Result(id, true, "stored")
}

// Duplicate is shorthand for the duplicate-write OK response.
func Duplicate(id string) Notice {
	return Result(id, true, "duplicate: already have this event")
}

// Frame serializes the notice to the wire array form:
// ["NOTICE", msg] or ["OK", id, ok, msg].
func (n Notice) Frame() ([]byte, error) {
	if n.result != nil {
		return json.Marshal([]any{"OK", n.result.ID, n.result.OK, n.result.Msg})
	}
	text := ""
	if n.message != nil {
		text = *n.message
	}
	return json.Marshal([]any{"NOTICE", text})
}
