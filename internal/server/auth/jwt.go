// Package auth validates the access tokens issued by the external identity
// service. Token issuance itself lives outside this codebase; only HS256
// validation and claim extraction happen here.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mvasilkovs/astrobatch/internal/common"
)

// Claims carries the registered claims plus the user identity this service
// cares about.
type Claims struct {
	jwt.RegisteredClaims
	UserID   int64  `json:"userId"`
	Username string `json:"username"`
	IsAdmin  bool   `json:"isAdmin"`
}

// GenerateToken signs a token for the given user. Used by tests and local
// tooling; production tokens come from the identity service.
func GenerateToken(userID int64, username string, isAdmin bool, secretKey []byte, validityDuration time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validityDuration)),
		},
		UserID:   userID,
		Username: username,
		IsAdmin:  isAdmin,
	})

	return token.SignedString(secretKey)
}

// ParseToken validates the signature and expiry and returns the claims.
func ParseToken(tokenString string, secretKey []byte) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	})
	if err != nil {
		return nil, common.ErrInvalidToken
	}

	if !token.Valid {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}
