package token

import (
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Signer holds the process-lifetime RSA private key and mints RS256
// capability tokens. The key is loaded once at startup and never
// serialized afterwards; the kid is derived from the public half and stays
// stable for the process lifetime.
type Signer struct {
	key *rsa.PrivateKey
	kid string
}

// NewSigner creates a signer from an already-parsed RSA private key.
func NewSigner(key *rsa.PrivateKey) (*Signer, error) {
	if key == nil {
		return nil, fmt.Errorf("%w: private key is required", ErrInvalidSigningKey)
	}
	if err := key.Validate(); err != nil {
		return nil, errors.Join(ErrInvalidSigningKey, err)
	}

	kid, err := KeyID(&key.PublicKey)
	if err != nil {
		return nil, err
	}
	return &Signer{key: key, kid: kid}, nil
}

// NewSignerFromPEM creates a signer from PEM-encoded private key material,
// accepting both PKCS#1 and PKCS#8 encodings.
func NewSignerFromPEM(pemBytes []byte) (*Signer, error) {
	key, err := ParsePrivateKeyPEM(pemBytes)
	if err != nil {
		return nil, err
	}
	return NewSigner(key)
}

// Issue mints a capability token bound to one session with a fresh jti.
// The caller must persist the returned token ID before handing the token
// out; an unrecorded jti can never be consumed and the token is useless.
func (s *Signer) Issue(sessionID, ownerID string, ttl time.Duration) (token, tokenID string, expiresAt time.Time, err error) {
	if sessionID == "" {
		return "", "", time.Time{}, fmt.Errorf("token issue: session id is required")
	}
	if ttl <= 0 {
		return "", "", time.Time{}, fmt.Errorf("token issue: ttl must be positive, got %s", ttl)
	}

	now := time.Now().UTC()
	expiresAt = now.Add(ttl)
	tokenID = uuid.NewString()

	claims := Claims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   ownerID,
			Audience:  jwt.ClaimStrings{Audience},
			ID:        tokenID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	t := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	t.Header["kid"] = s.kid

	token, err = t.SignedString(s.key)
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return token, tokenID, expiresAt, nil
}

// PublicKey returns the public half of the signing key.
func (s *Signer) PublicKey() *rsa.PublicKey {
	return &s.key.PublicKey
}

// KeyID returns the signer's stable kid.
func (s *Signer) KeyID() string {
	return s.kid
}

// KeyID derives a stable key identifier from the public key: the
// base64url-encoded truncated SHA-256 of its DER encoding.
func KeyID(pub *rsa.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", errors.Join(ErrInvalidSigningKey, err)
	}
	sum := sha256.Sum256(der)
	return base64.RawURLEncoding.EncodeToString(sum[:16]), nil
}

// ParsePrivateKeyPEM parses a PEM-encoded RSA private key in PKCS#1 or
// PKCS#8 form.
func ParsePrivateKeyPEM(pemBytes []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("%w: no PEM block found", ErrInvalidSigningKey)
	}

	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, errors.Join(ErrInvalidSigningKey, err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: expected RSA private key, got %T", ErrInvalidSigningKey, parsed)
	}
	return key, nil
}
