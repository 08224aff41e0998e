// Package auth provides JWT-based service authentication for skill traffic.
//
// # Token Model
//
// Every hop between the gateway and a skill carries a bearer JWT signed with
// HS256 using the shared jwt_secret:
//
//   - Outbound: the gateway mints a token with its own app id as subject and
//     the target skill's app id as audience.
//   - Inbound: skills mint tokens with their app id as subject and the
//     gateway's app id as audience. The callback endpoint verifies the
//     audience before touching any conversation state.
//
// Audience binding is the point: a token minted for one party is useless
// against any other.
//
// # Usage
//
//	provider := auth.NewJWTProvider(secret)
//	token, err := provider.Token("app-root", "app-echo")
//	appID, err := provider.Verify(token, "app-root")
//
// Verification failures map to sentinel errors (ErrInvalidToken,
// ErrExpiredToken, ErrWrongAudience, ErrMissingClaim) so callers can
// distinguish rejection causes without string matching.
package auth
