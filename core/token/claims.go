package token

import "github.com/golang-jwt/jwt/v5"

// Audience is the aud claim every capability token carries. Tokens minted
// for any other purpose never pass gateway verification.
const Audience = "ws"

// Claims is the capability token claim set: standard registered claims
// plus the session binding. The jti registered claim doubles as the key of
// the durable one-shot record.
type Claims struct {
	// SessionID binds the token to exactly one session.
	SessionID string `json:"sid"`

	jwt.RegisteredClaims
}
