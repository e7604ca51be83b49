package util

import (
	"errors"
	"fmt"

	"github.com/dgrijalva/jwt-go"
)

// Claims carries the token payload we care about. The subject is the
// resolved user ID.
type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.StandardClaims
}

// ValidateJWT verifies an HS256 bearer token and returns its claims.
func ValidateJWT(tokenString string, jwtSecret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(jwtSecret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("parsing token: %w", err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Subject == "" {
		return nil, errors.New("token missing subject")
	}
	return claims, nil
}
