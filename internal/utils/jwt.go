package utils

import (
	"errors"
	"time"

	"github.com/dgrijalva/jwt-go"
)

// AdminClaims represents the JWT claims for the admin surface
type AdminClaims struct {
	Username string `json:"username"`
	IsAdmin  bool   `json:"is_admin"`
	jwt.StandardClaims
}

// GenerateAdminToken creates a signed token for the admin surface
func GenerateAdminToken(username, secret string, expiration time.Duration) (string, error) {
	claims := AdminClaims{
		Username: username,
		IsAdmin:  true,
		StandardClaims: jwt.StandardClaims{
			IssuedAt:  time.Now().Unix(),
			ExpiresAt: time.Now().Add(expiration).Unix(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ValidateAdminToken parses and validates a token, returning its claims
func ValidateAdminToken(tokenString, secret string) (*AdminClaims, error) {
	claims := &AdminClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	return claims, nil
}
