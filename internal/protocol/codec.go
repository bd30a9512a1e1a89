// Package protocol decodes client WebSocket text frames into typed
// Nostr commands: EVENT, REQ, CLOSE.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kofj/nostr-rs-relay/internal/nostrcore"
)

// ErrProtoParse is returned for any frame that is not a recognized,
// well-formed Nostr command.
var ErrProtoParse = errors.New("could not parse command")

// EventMaxLengthError is returned when an EVENT frame exceeds the
// configured maximum raw byte length.
type EventMaxLengthError struct {
	Size int
}

func (e *EventMaxLengthError) Error() string {
	return fmt.Sprintf("event exceeded max size (%d bytes)", e.Size)
}

// Command is implemented by EventCmd, ReqCmd and CloseCmd.
type Command interface {
	isCommand()
}

// EventCmd carries a client-submitted event.
type EventCmd struct {
	Event nostrcore.Event
}

func (EventCmd) isCommand() {}

// ReqCmd requests a subscription.
type ReqCmd struct {
	Sub nostrcore.Subscription
}

func (ReqCmd) isCommand() {}

// CloseCmd cancels a subscription.
type CloseCmd struct {
	SubID string
}

func (CloseCmd) isCommand() {}

// Parse decodes a single text frame. maxEventBytes <= 0 disables the
// EVENT size check.
func Parse(raw []byte, maxEventBytes int) (Command, error) {
	var arr []json.RawMessage
	if err := json.Unmarshal(raw, &arr); err != nil {
		return nil, ErrProtoParse
	}
	if len(arr) < 2 {
		return nil, ErrProtoParse
	}

	var tag string
	if err := json.Unmarshal(arr[0], &tag); err != nil {
		return nil, ErrProtoParse
	}

	switch tag {
	case "EVENT":
		if maxEventBytes > 0 && len(raw) > maxEventBytes {
			return nil, &EventMaxLengthError{Size: len(raw)}
		}
		var e nostrcore.Event
		if err := json.Unmarshal(arr[1], &e); err != nil {
			return nil, ErrProtoParse
		}
		return EventCmd{Event: e}, nil

	case "REQ":
		if len(arr) < 3 {
			return nil, ErrProtoParse
		}
		var subID string
		if err := json.Unmarshal(arr[1], &subID); err != nil {
			return nil, ErrProtoParse
		}
		filters := make([]nostrcore.Filter, 0, len(arr)-2)
		for _, raw := range arr[2:] {
			var f nostrcore.Filter
			if err := json.Unmarshal(raw, &f); err != nil {
				return nil, ErrProtoParse
			}
			filters = append(filters, f)
		}
		return ReqCmd{Sub: nostrcore.Subscription{ID: sanitizeSubID(subID), Filters: filters}}, nil

	case "CLOSE":
		var subID string
		if err := json.Unmarshal(arr[1], &subID); err != nil {
			return nil, ErrProtoParse
		}
		return CloseCmd{SubID: sanitizeSubID(subID)}, nil

	default:
		return nil, ErrProtoParse
	}
}

// sanitizeSubID strips embedded quotes, matching the relay's echo
// behavior for subscription ids on the wire (spec §6).
func sanitizeSubID(id string) string {
	out := make([]byte, 0, len(id))
	for i := 0; i < len(id); i++ {
		if id[i] != '"' {
			out = append(out, id[i])
		}
	}
	return string(out)
}
