// Package adminauth optionally gates the /metrics endpoint behind a
// JWT bearer token. This is a supplement beyond the core spec (see
// DESIGN.md); it is off by default. Adapted from
// go-server/internal/auth/jwt.go's JWTManager, narrowed to the single
// verify-and-allow use case metrics scraping needs — no claims, no
// token issuance, just "is this a token signed with our secret".
package adminauth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Gate verifies bearer tokens against a shared secret. A Gate with an
// empty secret is disabled and Authorize always succeeds.
type Gate struct {
	secret []byte
}

// New builds a Gate. An empty secret disables authentication.
func New(secret string) *Gate {
	return &Gate{secret: []byte(secret)}
}

// Enabled reports whether this gate enforces authentication.
func (g *Gate) Enabled() bool {
	return len(g.secret) > 0
}

// Authorize checks the request's Authorization header. Disabled gates
// always authorize.
func (g *Gate) Authorize(r *http.Request) error {
	if !g.Enabled() {
		return nil
	}
	token, err := extractBearer(r)
	if err != nil {
		return err
	}
	_, err = jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return g.secret, nil
	})
	if err != nil {
		return fmt.Errorf("invalid token: %w", err)
	}
	return nil
}

func extractBearer(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", errors.New("authorization header missing or malformed")
	}
	return strings.TrimPrefix(header, prefix), nil
}
