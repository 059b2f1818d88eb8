package auth

import (
	"context"
	"strings"
	"time"

	sharedauth "docchat-backend/internal/shared/auth"
	"docchat-backend/internal/shared/telemetry"
	"docchat-backend/internal/users"
)

const defaultExternalTimeout = 5 * time.Second

// ExternalVerifier accepts tokens from an external identity provider and
// swaps the provider's subject for the local account with the same email.
// Tokens without an email claim are rejected.
type ExternalVerifier struct {
	Verifier sharedauth.Verifier
	Accounts AccountLinker
	Provider string
	Timeout  time.Duration
}

func (v ExternalVerifier) Verify(token string) (sharedauth.Claims, error) {
	claims, err := v.Verifier.Verify(token)
	if err != nil {
		return sharedauth.Claims{}, err
	}
	if strings.TrimSpace(claims.Email) == "" {
		return sharedauth.Claims{}, sharedauth.ErrInvalidToken
	}

	timeout := v.Timeout
	if timeout <= 0 {
		timeout = defaultExternalTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	user, err := v.Accounts.UpsertOAuth(ctx, users.Profile{
		Provider: v.Provider,
		Email:    claims.Email,
		Name:     claims.Name,
		Image:    claims.Picture,
	})
	if err != nil {
		telemetry.Warn("auth.external_account_failed", map[string]any{
			"provider":     v.Provider,
			"external_sub": claims.Sub,
			"error":        err,
		})
		return sharedauth.Claims{}, sharedauth.ErrInvalidToken
	}
	claims.Sub = user.ID
	claims.Email = user.Email
	return claims, nil
}
