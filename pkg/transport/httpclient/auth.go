package httpclient

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AuthConfig mints short-lived bearer tokens for outgoing requests. It is
// the client-side inverse of a server-side JWT-minting middleware:
// that middleware verifies a token an upstream already minted, while this
// one mints the token this client presents to some other verifier.
type AuthConfig struct {
	// SecretKey signs the token with HS256. Required.
	SecretKey []byte

	// Claims are merged into every minted token. "exp" and "iat" are
	// always set by Token and override any caller-supplied value.
	Claims map[string]interface{}

	// TokenTTL is how long each minted token is valid for. Defaults to
	// 5 minutes if zero.
	TokenTTL time.Duration
}

// tokenMinter mints bearer tokens on demand, caching the most recent one
// until it's within its own TTL's final quarter, so a provider issuing many
// requests in quick succession doesn't mint a fresh token per call.
type tokenMinter struct {
	config AuthConfig

	cached    string
	expiresAt time.Time
}

func newTokenMinter(config AuthConfig) *tokenMinter {
	if config.TokenTTL <= 0 {
		config.TokenTTL = 5 * time.Minute
	}
	return &tokenMinter{config: config}
}

// Token returns a bearer token valid for at least the next quarter of its
// TTL, minting a new one if the cached token has aged past that point.
func (m *tokenMinter) Token() (string, error) {
	if m.cached != "" && time.Now().Before(m.expiresAt) {
		return m.cached, nil
	}

	now := time.Now()
	claims := jwt.MapClaims{}
	for k, v := range m.config.Claims {
		claims[k] = v
	}
	claims["iat"] = now.Unix()
	claims["exp"] = now.Add(m.config.TokenTTL).Unix()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.config.SecretKey)
	if err != nil {
		return "", fmt.Errorf("httpclient: mint bearer token: %w", err)
	}

	m.cached = signed
	m.expiresAt = now.Add(m.config.TokenTTL * 3 / 4)
	return signed, nil
}
