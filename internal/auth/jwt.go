package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const AccessTokenDuration = 15 * time.Minute

// clockSkew tolerates small clock differences with the identity provider that issued a token.
const clockSkew = 30 * time.Second

type Claims struct {
	UserID    string `json:"userId"`
	TokenType string `json:"type"`
	jwt.RegisteredClaims
}

// isAccess rejects refresh and other special-purpose tokens. Tokens from identity
// providers that set no type are access tokens.
func (c *Claims) isAccess() bool {
	return c.TokenType == "" || c.TokenType == "access"
}

func GenerateAccessToken(secret string, userID string) (string, error) {
	return GenerateAccessTokenTTL(secret, userID, AccessTokenDuration)
}

// GenerateAccessTokenTTL mints an access token that expires after ttl.
func GenerateAccessTokenTTL(secret string, userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID:    userID,
		TokenType: "access",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ValidateToken checks an HMAC-signed token and returns its claims. Tokens that only
// carry the standard subject claim are accepted with the subject as user id.
func ValidateToken(secret string, tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithLeeway(clockSkew))
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if claims.UserID == "" {
		claims.UserID = claims.Subject
	}
	if claims.UserID == "" {
		return nil, fmt.Errorf("token has no user")
	}
	return claims, nil
}
