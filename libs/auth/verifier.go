package auth

import (
	"context"
	"strings"
)

// Verifier checks bearer tokens signed either with the shared HS256 secret or
// with an RS256 key published over JWKS.
type Verifier struct {
	secret string
	jwks   *JWKSClient
}

// NewVerifier accepts an empty secret or a nil jwks client to disable that
// algorithm.
func NewVerifier(secret string, jwks *JWKSClient) *Verifier {
	return &Verifier{secret: strings.TrimSpace(secret), jwks: jwks}
}

func (v *Verifier) Enabled() bool {
	return v != nil && (v.secret != "" || v.jwks != nil)
}

func (v *Verifier) Verify(ctx context.Context, token string) (*Claims, error) {
	if !v.Enabled() {
		return nil, ErrInvalidToken
	}
	header, err := ParseHeader(token)
	if err != nil {
		return nil, err
	}
	switch header.Alg {
	case "RS256":
		if v.jwks == nil || header.Kid == "" {
			return nil, ErrInvalidToken
		}
		pub, err := v.jwks.Get(ctx, header.Kid)
		if err != nil {
			return nil, ErrInvalidToken
		}
		return VerifyRS256(token, pub)
	case "HS256":
		if v.secret == "" {
			return nil, ErrInvalidToken
		}
		return ParseAndVerifyHS256(token, v.secret)
	default:
		return nil, ErrInvalidToken
	}
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(authorization string) string {
	const prefix = "Bearer "
	if !strings.HasPrefix(authorization, prefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(authorization, prefix))
}
