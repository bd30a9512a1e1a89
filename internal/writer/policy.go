// Policy admission checks for the writer pipeline (spec §4.5 step 1).
// Structured the way go-server/internal/auth/jwt.go builds a small,
// explicitly-constructed manager type around a narrow set of checks:
// a Policy is built once at startup from configuration and consulted
// per event with no hidden state mutation.
package writer

import (
	"strings"

	"github.com/kofj/nostr-rs-relay/internal/nostrcore"
)

// reasonAntispam is the exact rejection string the keyword filter
// returns; the writer matches on it to drive the spam counter.
const reasonAntispam = "content rejected by antispam filter"

// Policy holds the writer's admission rules. A zero-value Policy
// admits everything.
type Policy struct {
	// PubkeyWhitelist, if non-empty, is the exhaustive set of author
	// pubkeys allowed to publish.
	PubkeyWhitelist map[string]bool

	// AllowedDomains and DeniedDomains gate NIP-05 identifier domains
	// found in a kind-0 event's content; empty means unrestricted.
	AllowedDomains map[string]bool
	DeniedDomains  map[string]bool

	// RequireVerified rejects events from authors that have not passed
	// NIP-05 verification (tracked by the caller via VerifiedAuthors).
	RequireVerified  bool
	VerifiedAuthors  map[string]bool

	// BannedKeywords rejects events whose content contains any of
	// these substrings, case-insensitive.
	BannedKeywords []string
}

// Check runs every configured rule against e, returning a rejection
// reason, or "" if e is admitted.
func (p *Policy) Check(e nostrcore.Event) string {
	if p == nil {
		return ""
	}
	if len(p.PubkeyWhitelist) > 0 && !p.PubkeyWhitelist[e.PubKey] {
		return "pubkey not whitelisted"
	}
	if reason := p.checkDomains(e); reason != "" {
		return reason
	}
	if p.RequireVerified && !p.VerifiedAuthors[e.PubKey] {
		return "author not NIP-05 verified"
	}
	if reason := p.checkKeywords(e); reason != "" {
		return reason
	}
	return ""
}

func (p *Policy) checkDomains(e nostrcore.Event) string {
	if len(p.AllowedDomains) == 0 && len(p.DeniedDomains) == 0 {
		return ""
	}
	domain := domainFromNIP05(e.Content)
	if domain == "" {
		return ""
	}
	if len(p.DeniedDomains) > 0 && p.DeniedDomains[domain] {
		return "domain denied: " + domain
	}
	if len(p.AllowedDomains) > 0 && !p.AllowedDomains[domain] {
		return "domain not allowed: " + domain
	}
	return ""
}

func (p *Policy) checkKeywords(e nostrcore.Event) string {
	if len(p.BannedKeywords) == 0 {
		return ""
	}
	lower := strings.ToLower(e.Content)
	for _, kw := range p.BannedKeywords {
		if kw == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(kw)) {
			return reasonAntispam
		}
	}
	return ""
}

// domainFromNIP05 extracts the domain portion of a NIP-05 identifier
// embedded in a kind-0 event's content field, e.g.
// {"nip05":"alice@example.com"} -> "example.com". Returns "" if no
// identifier is present; this is a best-effort heuristic, not a full
// JSON parse, since malformed metadata content must not abort policy
// evaluation.
func domainFromNIP05(content string) string {
	const marker = `"nip05":"`
	idx := strings.Index(content, marker)
	if idx == -1 {
		return ""
	}
	rest := content[idx+len(marker):]
	end := strings.IndexByte(rest, '"')
	if end == -1 {
		return ""
	}
	identifier := rest[:end]
	at := strings.IndexByte(identifier, '@')
	if at == -1 || at == len(identifier)-1 {
		return ""
	}
	return identifier[at+1:]
}
