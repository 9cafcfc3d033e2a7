package jwt

import (
	"errors"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// Claims identifies the principal that owns uploaded documents.
type Claims struct {
	OwnerID string `json:"owner_id,omitempty"`
	jwtlib.RegisteredClaims
}

// Owner returns the owner id, falling back to the standard subject claim.
func (c *Claims) Owner() string {
	if id := strings.TrimSpace(c.OwnerID); id != "" {
		return id
	}
	return strings.TrimSpace(c.Subject)
}

func GenerateToken(ownerID string, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		OwnerID: ownerID,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   ownerID,
			ExpiresAt: jwtlib.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwtlib.NewNumericDate(now),
		},
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

func ParseToken(tokenString string, secret []byte) (*Claims, error) {
	token, err := jwtlib.ParseWithClaims(tokenString, &Claims{}, func(token *jwtlib.Token) (interface{}, error) {
		if token.Method.Alg() != jwtlib.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Owner() == "" {
		return nil, errors.New("token has no owner")
	}
	return claims, nil
}
