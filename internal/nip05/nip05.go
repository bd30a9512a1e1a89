// Package nip05 implements identifier verification (NIP-05) as the
// external Verifier collaborator described in spec §6: it consumes
// metadata events from the metadata bus and republishes the ones that
// pass verification onto the main broadcast bus.
package nip05

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/kofj/nostr-rs-relay/internal/broadcast"
	"github.com/kofj/nostr-rs-relay/internal/metadatabus"
	"github.com/kofj/nostr-rs-relay/internal/nostrcore"
)

// Verifier checks whether pubkey owns identifier (a "name@domain"
// NIP-05 string).
type Verifier interface {
	Verify(ctx context.Context, pubkey, identifier string) (bool, error)
}

// HTTPVerifier implements Verifier against the live NIP-05 well-known
// endpoint of each identifier's domain.
type HTTPVerifier struct {
	client *http.Client
}

// NewHTTPVerifier builds a Verifier using an http.Client with timeout.
func NewHTTPVerifier(timeout time.Duration) *HTTPVerifier {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPVerifier{client: &http.Client{Timeout: timeout}}
}

type wellKnownResponse struct {
	Names map[string]string `json:"names"`
}

// Verify fetches https://<domain>/.well-known/nostr.json?name=<name>
// and checks that it maps name to pubkey.
func (v *HTTPVerifier) Verify(ctx context.Context, pubkey, identifier string) (bool, error) {
	name, domain, ok := splitIdentifier(identifier)
	if !ok {
		return false, fmt.Errorf("malformed nip-05 identifier %q", identifier)
	}

	url := fmt.Sprintf("https://%s/.well-known/nostr.json?name=%s", domain, name)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, err
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("fetch nip-05 document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("nip-05 document returned status %d", resp.StatusCode)
	}

	var doc wellKnownResponse
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return false, fmt.Errorf("decode nip-05 document: %w", err)
	}

	return doc.Names[name] == pubkey, nil
}

func splitIdentifier(identifier string) (name, domain string, ok bool) {
	at := strings.IndexByte(identifier, '@')
	if at == -1 || at == 0 || at == len(identifier)-1 {
		return "", "", false
	}
	return identifier[:at], identifier[at+1:], true
}

// Service drains a metadata bus, verifies each event's embedded NIP-05
// identifier, and republishes verified events onto the broadcast bus.
type Service struct {
	metaBus  metadatabus.Bus
	bus      *broadcast.Bus
	verifier Verifier
	log      zerolog.Logger
}

// NewService wires a verification pipeline between metaBus and bus.
func NewService(metaBus metadatabus.Bus, bus *broadcast.Bus, verifier Verifier, log zerolog.Logger) *Service {
	return &Service{metaBus: metaBus, bus: bus, verifier: verifier, log: log}
}

// Run consumes metadata events until ctx is cancelled.
func (s *Service) Run(ctx context.Context) {
	events, unsubscribe := s.metaBus.Subscribe()
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case e := <-events:
			s.handle(ctx, e)
		}
	}
}

func (s *Service) handle(ctx context.Context, e nostrcore.Event) {
	identifier := extractNIP05(e.Content)
	if identifier == "" {
		return
	}

	ok, err := s.verifier.Verify(ctx, e.PubKey, identifier)
	if err != nil {
		s.log.Warn().Err(err).Str("event", e.IDPrefix()).Msg("nip-05 verification failed")
		return
	}
	if !ok {
		s.log.Debug().Str("event", e.IDPrefix()).Msg("nip-05 identifier did not verify")
		return
	}
	s.bus.Publish(e)
}

// extractNIP05 pulls the "nip05" field out of a kind-0 metadata
// event's JSON content without requiring a full schema; malformed
// content simply yields no identifier.
func extractNIP05(content string) string {
	var m map[string]any
	if err := json.Unmarshal([]byte(content), &m); err != nil {
		return ""
	}
	v, _ := m["nip05"].(string)
	return v
}
