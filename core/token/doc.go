// Package token mints and verifies the single-use capability tokens that
// authorize terminal attaches.
//
// The controller holds the RSA private key and issues RS256-signed tokens
// carrying the session binding in the sid claim and a fresh jti for the
// durable one-shot record. The matching public key is published as a JWKS
// document; the gateway verifies either against a locally configured
// public key or by fetching the controller's JWKS endpoint.
//
// Signature verification alone never authorizes an attach: the jti must
// still be consumed atomically in the store. The signature prevents
// forgery, the one-shot record prevents replay, and both checks are
// required.
//
// Usage:
//
//	signer, err := token.NewSigner(privateKey)
//	tok, jti, exp, err := signer.Issue(sessionID, ownerID, 5*time.Minute)
//
//	verifier := token.NewVerifier(&privateKey.PublicKey)
//	claims, err := verifier.Verify(tok)
package token
