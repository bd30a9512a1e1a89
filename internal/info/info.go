// Package info builds the NIP-11 relay information document served
// at GET / when the client sends Accept: application/nostr+json
// (spec §6).
package info

import "encoding/json"

// Document describes the relay per NIP-11.
type Document struct {
	Name          string   `json:"name"`
	Description   string   `json:"description,omitempty"`
	Pubkey        string   `json:"pubkey,omitempty"`
	Contact       string   `json:"contact,omitempty"`
	SupportedNIPs []int    `json:"supported_nips"`
	Software      string   `json:"software,omitempty"`
	Version       string   `json:"version,omitempty"`
}

// defaultNIPs lists the NIPs this relay core implements at the
// protocol level (NIP-01 events/filters, NIP-05 identifiers, NIP-11
// relay information, NIP-15 EOSE).
var defaultNIPs = []int{1, 5, 11, 15}

// New builds a Document with name/description/pubkey/contact from
// configuration and the relay's fixed set of supported NIPs.
func New(name, description, pubkey, contact, version string) Document {
	return Document{
		Name:          name,
		Description:   description,
		Pubkey:        pubkey,
		Contact:       contact,
		SupportedNIPs: defaultNIPs,
		Software:      "https://github.com/kofj/nostr-rs-relay",
		Version:       version,
	}
}

// Marshal encodes the document as JSON for the HTTP response body.
func (d Document) Marshal() ([]byte, error) {
	return json.Marshal(d)
}
