package nostrcore

// Filter is a single Nostr filter clause. A Subscription is a list of
// filters OR'd together: an event matches the subscription if it
// matches any one filter.
type Filter struct {
	IDs     []string            `json:"ids,omitempty"`
	Authors []string            `json:"authors,omitempty"`
	Kinds   []int               `json:"kinds,omitempty"`
	Tags    map[string][]string `json:"-"`
	Since   *int64              `json:"since,omitempty"`
	Until   *int64              `json:"until,omitempty"`
	Limit   *int                `json:"limit,omitempty"`
}

// Matches reports whether the event satisfies every constraint present
// on the filter. An absent (nil/empty) constraint always matches.
func (f Filter) Matches(e Event) bool {
	if len(f.IDs) > 0 && !containsPrefixMatch(f.IDs, e.ID) {
		return false
	}
	if len(f.Authors) > 0 && !containsPrefixMatch(f.Authors, e.PubKey) {
		return false
	}
	if len(f.Kinds) > 0 && !containsInt(f.Kinds, e.Kind) {
		return false
	}
	if f.Since != nil && e.CreatedAt < *f.Since {
		return false
	}
	if f.Until != nil && e.CreatedAt > *f.Until {
		return false
	}
	for tagName, wanted := range f.Tags {
		if len(wanted) == 0 {
			continue
		}
		have := e.TagValues(tagName)
		if !anyOverlap(wanted, have) {
			return false
		}
	}
	return true
}

// hasExplicitUpperBound reports whether Until names a point strictly in
// the past relative to now — used by Subscription.NeedsHistory.
func (f Filter) hasExplicitUpperBound(nowUnix int64) bool {
	return f.Until != nil && *f.Until < nowUnix
}

func containsInt(haystack []int, v int) bool {
	for _, x := range haystack {
		if x == v {
			return true
		}
	}
	return false
}

func containsPrefixMatch(prefixes []string, v string) bool {
	for _, p := range prefixes {
		if len(p) <= len(v) && v[:len(p)] == p {
			return true
		}
	}
	return false
}

func anyOverlap(a, b []string) bool {
	set := make(map[string]struct{}, len(a))
	for _, x := range a {
		set[x] = struct{}{}
	}
	for _, x := range b {
		if _, ok := set[x]; ok {
			return true
		}
	}
	return false
}
