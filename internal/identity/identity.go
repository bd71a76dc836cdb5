// Package identity is the boundary to the external identity collaborator.
// The messaging core never inspects credentials beyond verifying the signed
// token it is handed.
package identity

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// ErrInvalidToken is returned for missing, malformed, expired or forged
// tokens. REST maps it to 401; the gateway closes the connection.
var ErrInvalidToken = errors.New("identity: invalid token")

// Verifier resolves an identity token to a user id.
type Verifier interface {
	Verify(token string) (uint, error)
}

// JWTVerifier verifies HMAC-signed JWTs whose subject claim carries the
// user id, matching the tokens the identity service issues.
type JWTVerifier struct {
	secret []byte
}

// NewJWTVerifier creates a verifier for tokens signed with secret.
func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

// Verify parses and validates token and returns the user id from its subject.
func (v *JWTVerifier) Verify(token string) (uint, error) {
	if token == "" {
		return 0, ErrInvalidToken
	}
	var claims jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !parsed.Valid {
		return 0, ErrInvalidToken
	}
	userID, err := strconv.ParseUint(claims.Subject, 10, 32)
	if err != nil || userID == 0 {
		return 0, ErrInvalidToken
	}
	return uint(userID), nil
}

// Issue signs a short-lived token for userID. Token issuance belongs to the
// identity service; this exists for local development and tests.
func (v *JWTVerifier) Issue(userID uint, ttl time.Duration) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatUint(uint64(userID), 10),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("identity: sign token: %w", err)
	}
	return signed, nil
}
