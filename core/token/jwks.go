package token

import (
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"

	"github.com/arakoodev/cliscale/core/response"
)

// JWK is the public half of the signing key in JSON Web Key form.
type JWK struct {
	Kty string `json:"kty"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	Kid string `json:"kid"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// JWKS is the published key set document. A single active key; rotation is
// out of scope, so the set always has exactly one entry.
type JWKS struct {
	Keys []JWK `json:"keys"`
}

// JWKSDocument builds the key set document for the signer's public key.
func JWKSDocument(s *Signer) JWKS {
	pub := s.PublicKey()
	return JWKS{
		Keys: []JWK{{
			Kty: "RSA",
			Use: "sig",
			Alg: "RS256",
			Kid: s.KeyID(),
			N:   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
			E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
		}},
	}
}

// JWKSHandler serves the key set document. The document is marshaled once
// at handler construction since the key never changes, and responses are
// cacheable for five minutes.
func JWKSHandler(s *Signer) http.HandlerFunc {
	doc, err := json.Marshal(JWKSDocument(s))
	return func(w http.ResponseWriter, r *http.Request) {
		if err != nil {
			_ = response.Error(w, response.ErrInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Header().Set("Cache-Control", "public, max-age=300")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(doc)
	}
}
