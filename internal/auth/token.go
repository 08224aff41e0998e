// ABOUTME: JWT minting and verification for gateway-to-skill traffic.
// ABOUTME: Uses HS256 signing with a shared secret; audience binds a token to one app identity.

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token errors
var (
	ErrInvalidToken  = errors.New("invalid token")
	ErrExpiredToken  = errors.New("token expired")
	ErrMissingClaim  = errors.New("missing required claim")
	ErrWrongAudience = errors.New("token audience mismatch")
)

// tokenLifetime bounds how long a minted skill token stays valid. Skill calls
// are single HTTP round trips, so the window is short.
const tokenLifetime = 5 * time.Minute

// TokenVerifier validates inbound bearer tokens and extracts the caller's
// app identity.
type TokenVerifier interface {
	Verify(tokenString, expectedAudience string) (appID string, err error)
}

// JWTProvider mints and verifies HS256 signed JWTs with a shared secret.
// It serves both directions: the forwarder mints tokens for outbound skill
// calls, and the callback surface verifies tokens skills present.
type JWTProvider struct {
	secret []byte
}

// NewJWTProvider creates a provider with the given signing secret.
func NewJWTProvider(secret []byte) *JWTProvider {
	return &JWTProvider{secret: secret}
}

// Token mints a bearer token identifying fromAppID, bound to the audience
// app identity. Satisfies the forwarder's TokenProvider interface.
func (p *JWTProvider) Token(fromAppID, audienceAppID string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": fromAppID,
		"aud": audienceAppID,
		"iat": now.Unix(),
		"exp": now.Add(tokenLifetime).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(p.secret)
}

// Verify validates the token, checks it was minted for expectedAudience, and
// returns the caller's app identity from the "sub" claim.
func (p *JWTProvider) Verify(tokenString, expectedAudience string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		// Validate the signing method is HS256
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return p.secret, nil
	}, jwt.WithAudience(expectedAudience))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrExpiredToken
		}
		if errors.Is(err, jwt.ErrTokenInvalidAudience) {
			return "", ErrWrongAudience
		}
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if !token.Valid {
		return "", ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidToken
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", fmt.Errorf("%w: sub", ErrMissingClaim)
	}

	return sub, nil
}
