package engine

import (
	"encoding/json"

	"github.com/kofj/nostr-rs-relay/internal/nostrcore"
)

// eventFrame encodes a matched event as ["EVENT", sub_id, event].
func eventFrame(subID string, e *nostrcore.Event) ([]byte, error) {
	return json.Marshal([]any{"EVENT", subID, e})
}

// eoseFrame encodes the end-of-stored-events sentinel as
// ["EOSE", sub_id].
func eoseFrame(subID string) ([]byte, error) {
	return json.Marshal([]any{"EOSE", subID})
}
