package nostrcore

import "encoding/json"

// filterWire mirrors the NIP-01 wire shape, where tag filters appear as
// "#e", "#p", etc. alongside the named fields.
type filterWire struct {
	IDs     []string `json:"ids,omitempty"`
	Authors []string `json:"authors,omitempty"`
	Kinds   []int    `json:"kinds,omitempty"`
	Since   *int64   `json:"since,omitempty"`
	Until   *int64   `json:"until,omitempty"`
	Limit   *int     `json:"limit,omitempty"`
}

// UnmarshalJSON accepts the standard NIP-01 filter object, lifting any
// "#x" keys into Tags["x"].
func (f *Filter) UnmarshalJSON(data []byte) error {
	var wire filterWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	tags := make(map[string][]string)
	for key, val := range raw {
		if len(key) < 2 || key[0] != '#' {
			continue
		}
		var values []string
		if err := json.Unmarshal(val, &values); err != nil {
			return err
		}
		tags[key[1:]] = values
	}

	f.IDs = wire.IDs
	f.Authors = wire.Authors
	f.Kinds = wire.Kinds
	f.Since = wire.Since
	f.Until = wire.Until
	f.Limit = wire.Limit
	if len(tags) > 0 {
		f.Tags = tags
	}
	return nil
}

// MarshalJSON re-expands Tags back into "#x" wire keys.
func (f Filter) MarshalJSON() ([]byte, error) {
	m := map[string]any{}
	if len(f.IDs) > 0 {
		m["ids"] = f.IDs
	}
	if len(f.Authors) > 0 {
		m["authors"] = f.Authors
	}
	if len(f.Kinds) > 0 {
		m["kinds"] = f.Kinds
	}
	if f.Since != nil {
		m["since"] = *f.Since
	}
	if f.Until != nil {
		m["until"] = *f.Until
	}
	if f.Limit != nil {
		m["limit"] = *f.Limit
	}
	for name, values := range f.Tags {
		m["#"+name] = values
	}
	return json.Marshal(m)
}
