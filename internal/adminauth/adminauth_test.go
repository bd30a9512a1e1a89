package adminauth

import (
	"net/http"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestDisabledGateAlwaysAuthorizes(t *testing.T) {
	g := New("")
	req, _ := http.NewRequest(http.MethodGet, "/metrics", nil)
	require.NoError(t, g.Authorize(req))
}

func TestEnabledGateRejectsMissingHeader(t *testing.T) {
	g := New("secret")
	req, _ := http.NewRequest(http.MethodGet, "/metrics", nil)
	require.Error(t, g.Authorize(req))
}

func TestEnabledGateAcceptsValidToken(t *testing.T) {
	g := New("secret")
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "scraper"})
	signed, err := token.SignedString([]byte("secret"))
	require.NoError(t, err)

	req, _ := http.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	require.NoError(t, g.Authorize(req))
}

func TestEnabledGateRejectsWrongSecret(t *testing.T) {
	g := New("secret")
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "scraper"})
	signed, err := token.SignedString([]byte("wrong"))
	require.NoError(t, err)

	req, _ := http.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	require.Error(t, g.Authorize(req))
}
