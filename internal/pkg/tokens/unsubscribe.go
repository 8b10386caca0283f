// Package tokens issues and validates the signed tokens embedded in
// unsubscribe links.
package tokens

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken covers malformed, tampered, or expired tokens.
var ErrInvalidToken = errors.New("invalid unsubscribe token")

// Unsubscribe links stay valid long enough to outlive inbox lag.
const tokenTTL = 30 * 24 * time.Hour

// UnsubscribeClaims binds a token to one recipient of one message.
type UnsubscribeClaims struct {
	Email     string `json:"email"`
	MessageID string `json:"message_id"`
	jwt.RegisteredClaims
}

// Issuer signs and validates unsubscribe tokens with an HMAC secret.
type Issuer struct {
	secret []byte
}

// NewIssuer creates an Issuer for the given shared secret.
func NewIssuer(secret string) *Issuer {
	return &Issuer{secret: []byte(secret)}
}

// Generate signs a token for the recipient of a message.
func (i *Issuer) Generate(email, messageID string) (string, error) {
	now := time.Now()
	claims := UnsubscribeClaims{
		Email:     email,
		MessageID: messageID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "ses-gateway",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.secret)
}

// Validate parses a token and returns its claims. Any signature, format, or
// expiry problem maps to ErrInvalidToken.
func (i *Issuer) Validate(tokenString string) (*UnsubscribeClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &UnsubscribeClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return i.secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*UnsubscribeClaims)
	if !ok || !token.Valid || claims.Email == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
