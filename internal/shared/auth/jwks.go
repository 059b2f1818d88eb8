package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	"docchat-backend/internal/shared/telemetry"
)

// JWKSVerifier validates tokens signed by an external identity provider.
// Keys are fetched from the JWKS endpoint and refreshed by keyfunc.
type JWKSVerifier struct {
	jwks keyfunc.Keyfunc
}

// NewJWKSVerifier fetches the key set at jwksURL.
func NewJWKSVerifier(ctx context.Context, jwksURL string) (*JWKSVerifier, error) {
	if jwksURL == "" {
		return nil, errors.New("jwks url is required")
	}
	jwks, err := keyfunc.NewDefaultCtx(ctx, []string{jwksURL})
	if err != nil {
		return nil, fmt.Errorf("create jwks client: %w", err)
	}
	telemetry.Info("auth.jwks_ready", map[string]any{"jwks_url": jwksURL})
	return &JWKSVerifier{jwks: jwks}, nil
}

// NewJWKSVerifierFromJSON builds a verifier from a static key set document.
func NewJWKSVerifierFromJSON(raw json.RawMessage) (*JWKSVerifier, error) {
	jwks, err := keyfunc.NewJWKSetJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("parse jwks: %w", err)
	}
	return &JWKSVerifier{jwks: jwks}, nil
}

// Verify accepts RS256 and ES256 tokens only.
func (v *JWKSVerifier) Verify(token string) (Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &sessionClaims{}, v.jwks.Keyfunc,
		jwt.WithValidMethods([]string{"RS256", "ES256"}))
	if err != nil || !parsed.Valid {
		return Claims{}, ErrInvalidToken
	}
	sc, ok := parsed.Claims.(*sessionClaims)
	if !ok || sc.Subject == "" {
		return Claims{}, ErrInvalidToken
	}
	return toClaims(sc), nil
}
