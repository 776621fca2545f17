package tokenizer

import "github.com/golang-jwt/jwt/v5"

// sessionClaims combines the registered claims with the token-kind tag.
// The "type" key matches what clients already hold, so tokens minted
// before a deploy keep verifying after it.
type sessionClaims struct {
	jwt.RegisteredClaims
	Kind string `json:"type"`
}
