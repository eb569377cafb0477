package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims represents the JWT claims issued by the account subsystem.
type Claims struct {
	UserID      uuid.UUID `json:"user_id"`
	DisplayName string    `json:"display_name"`
	jwt.RegisteredClaims
}

// TokenVerifier validates bearer credentials issued by the external account
// subsystem. The messaging core consumes tokens; it never issues them to
// clients (GenerateToken exists for the seeder and tests only).
type TokenVerifier struct {
	secret []byte
	expiry time.Duration
}

// NewTokenVerifier creates a verifier sharing the account subsystem's secret.
func NewTokenVerifier(secret string, expiry time.Duration) *TokenVerifier {
	return &TokenVerifier{
		secret: []byte(secret),
		expiry: expiry,
	}
}

// GenerateToken creates a signed token for a user.
func (v *TokenVerifier) GenerateToken(userID uuid.UUID, displayName string) (string, error) {
	claims := &Claims{
		UserID:      userID,
		DisplayName: displayName,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(v.expiry)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "whispr",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}

// VerifyToken parses and validates a bearer token, returning its claims.
func (v *TokenVerifier) VerifyToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return v.secret, nil
	})

	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}

	return claims, nil
}
