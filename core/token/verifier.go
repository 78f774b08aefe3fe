package token

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

// Verifier checks a capability token's signature and claims. Verify
// returns the claim set iff the signature, expiry, and audience all pass;
// it never consults the one-shot record, which stays the caller's job.
type Verifier interface {
	Verify(tokenString string) (*Claims, error)
}

// rs256Only rejects any signing method other than RS256, closing the
// algorithm substitution hole where an attacker re-signs the token with
// HS256 using the public key as the HMAC secret.
var rs256Only = jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()})

// KeyVerifier verifies tokens against a locally configured RSA public key.
// Used when the gateway shares the public key by config instead of
// fetching the controller's JWKS.
type KeyVerifier struct {
	key *rsa.PublicKey
}

// NewVerifier creates a verifier over a local public key.
func NewVerifier(key *rsa.PublicKey) *KeyVerifier {
	return &KeyVerifier{key: key}
}

func (v *KeyVerifier) Verify(tokenString string) (*Claims, error) {
	return parseAndValidate(tokenString, func(*jwt.Token) (any, error) {
		return v.key, nil
	})
}

// JWKSVerifier verifies tokens against a remote JWKS endpoint with
// background refresh and caching, so the gateway never needs the
// controller on its hot path.
type JWKSVerifier struct {
	jwks keyfunc.Keyfunc
}

// NewJWKSVerifier creates a verifier fetching keys from the controller's
// published JWKS URL. The initial fetch happens under ctx; refresh
// continues in the background for the process lifetime.
func NewJWKSVerifier(ctx context.Context, jwksURL string) (*JWKSVerifier, error) {
	k, err := keyfunc.NewDefaultCtx(ctx, []string{jwksURL})
	if err != nil {
		return nil, fmt.Errorf("create JWKS keyfunc for %s: %w", jwksURL, err)
	}
	return &JWKSVerifier{jwks: k}, nil
}

func (v *JWKSVerifier) Verify(tokenString string) (*Claims, error) {
	return parseAndValidate(tokenString, v.jwks.Keyfunc)
}

func parseAndValidate(tokenString string, keyFn jwt.Keyfunc) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, keyFn,
		rs256Only, jwt.WithAudience(Audience), jwt.WithExpirationRequired())
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, errors.Join(ErrTokenExpired, err)
		case errors.Is(err, jwt.ErrTokenInvalidAudience):
			return nil, errors.Join(ErrInvalidAudience, err)
		default:
			return nil, errors.Join(ErrInvalidToken, err)
		}
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.SessionID == "" {
		return nil, fmt.Errorf("%w: missing sid claim", ErrInvalidToken)
	}
	if claims.ID == "" {
		return nil, fmt.Errorf("%w: missing jti claim", ErrInvalidToken)
	}
	return claims, nil
}
