// File: internal/infra/security/token.go
package security

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"journal-ai-coach/internal/domain"
)

// JWTVerifier validates HS256 tokens signed with a shared secret.
// The same primitive backs both user auth tokens and queue callback
// signatures; callers interpret the claims.
type JWTVerifier struct {
	secret []byte
}

func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

// Verify parses and validates token and returns its claims.
// Returns domain.ErrBadSignature on any validation failure.
func (v *JWTVerifier) Verify(token string) (jwt.MapClaims, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return v.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrBadSignature, err)
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return nil, domain.ErrBadSignature
	}
	return claims, nil
}

// Subject verifies token and returns its "sub" claim.
func (v *JWTVerifier) Subject(token string) (string, error) {
	claims, err := v.Verify(token)
	if err != nil {
		return "", err
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return "", fmt.Errorf("%w: missing subject", domain.ErrBadSignature)
	}
	return sub, nil
}

// Sign issues an HS256 token with the given subject and lifetime.
// Used by tests and by local tooling; production tokens come from the
// main application's auth service.
func (v *JWTVerifier) Sign(subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": subject,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	})
	return tok.SignedString(v.secret)
}
