package token

import "errors"

var (
	// ErrInvalidToken is returned when a token fails signature, format, or
	// claim checks. The wrapped detail stays server-side.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenExpired is returned when the token's exp claim has passed.
	ErrTokenExpired = errors.New("token expired")
	// ErrInvalidAudience is returned when the aud claim does not include
	// the websocket audience.
	ErrInvalidAudience = errors.New("invalid token audience")
	// ErrInvalidSigningKey is returned when the provided key material
	// cannot be parsed or is not an RSA key.
	ErrInvalidSigningKey = errors.New("invalid signing key")
)
