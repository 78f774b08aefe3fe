package token_test

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arakoodev/cliscale/core/token"
)

func TestKeyVerifier_Verify(t *testing.T) {
	t.Parallel()

	key := testKey(t)
	signer, err := token.NewSigner(key)
	require.NoError(t, err)
	verifier := token.NewVerifier(signer.PublicKey())

	t.Run("expired token is rejected", func(t *testing.T) {
		t.Parallel()

		tok, _, _, err := signer.Issue("sess-1", "owner-1", time.Millisecond)
		require.NoError(t, err)

		time.Sleep(10 * time.Millisecond)

		_, err = verifier.Verify(tok)
		assert.ErrorIs(t, err, token.ErrTokenExpired)
	})

	t.Run("token signed by a different key is rejected", func(t *testing.T) {
		t.Parallel()

		other, err := token.NewSigner(testKey(t))
		require.NoError(t, err)
		tok, _, _, err := other.Issue("sess-1", "owner-1", time.Minute)
		require.NoError(t, err)

		_, err = verifier.Verify(tok)
		assert.ErrorIs(t, err, token.ErrInvalidToken)
	})

	t.Run("wrong audience is rejected", func(t *testing.T) {
		t.Parallel()

		claims := token.Claims{
			SessionID: "sess-1",
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "owner-1",
				Audience:  jwt.ClaimStrings{"api"},
				ID:        "jti-1",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
			},
		}
		tok, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
		require.NoError(t, err)

		_, err = verifier.Verify(tok)
		assert.ErrorIs(t, err, token.ErrInvalidAudience)
	})

	t.Run("hmac-signed token is rejected", func(t *testing.T) {
		t.Parallel()

		// Algorithm substitution: HS256 keyed with public key material
		// must never verify.
		claims := token.Claims{
			SessionID: "sess-1",
			RegisteredClaims: jwt.RegisteredClaims{
				Audience:  jwt.ClaimStrings{token.Audience},
				ID:        "jti-1",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
			},
		}
		tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
		require.NoError(t, err)

		_, err = verifier.Verify(tok)
		assert.ErrorIs(t, err, token.ErrInvalidToken)
	})

	t.Run("missing sid claim is rejected", func(t *testing.T) {
		t.Parallel()

		claims := jwt.RegisteredClaims{
			Subject:   "owner-1",
			Audience:  jwt.ClaimStrings{token.Audience},
			ID:        "jti-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		}
		tok, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
		require.NoError(t, err)

		_, err = verifier.Verify(tok)
		assert.ErrorIs(t, err, token.ErrInvalidToken)
	})

	t.Run("garbage token is rejected", func(t *testing.T) {
		t.Parallel()

		_, err := verifier.Verify("not.a.token")
		assert.ErrorIs(t, err, token.ErrInvalidToken)
	})
}

func TestJWKSVerifier_Verify(t *testing.T) {
	t.Parallel()

	signer, err := token.NewSigner(testKey(t))
	require.NoError(t, err)

	srv := httptest.NewServer(token.JWKSHandler(signer))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)

	verifier, err := token.NewJWKSVerifier(ctx, srv.URL)
	require.NoError(t, err)

	t.Run("verifies against the published key set", func(t *testing.T) {
		t.Parallel()

		tok, jti, _, err := signer.Issue("sess-1", "owner-1", time.Minute)
		require.NoError(t, err)

		claims, err := verifier.Verify(tok)
		require.NoError(t, err)
		assert.Equal(t, "sess-1", claims.SessionID)
		assert.Equal(t, jti, claims.ID)
	})

	t.Run("rejects tokens from an unpublished key", func(t *testing.T) {
		t.Parallel()

		other, err := token.NewSigner(testKey(t))
		require.NoError(t, err)
		tok, _, _, err := other.Issue("sess-1", "owner-1", time.Minute)
		require.NoError(t, err)

		_, err = verifier.Verify(tok)
		assert.ErrorIs(t, err, token.ErrInvalidToken)
	})
}
