package citadelcbt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTokenTTL is how long an API token stays valid
const DefaultTokenTTL = 24 * time.Hour

// TokenIssuer signs and checks the bearer tokens used by the JSON API
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer creates an HS256 issuer. A zero ttl uses DefaultTokenTTL.
func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue signs a token for a signed-in student
func (ti *TokenIssuer) Issue(identity Identity) (string, error) {
	now := ti.now()
	claims := jwt.MapClaims{
		"sub":  identity.Email,
		"name": identity.DisplayName,
		"exp":  now.Add(ti.ttl).Unix(),
		"iat":  now.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(ti.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Parse verifies a token and returns the identity it was issued for
func (ti *TokenIssuer) Parse(tokenString string) (*Identity, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return ti.secret, nil
	}, jwt.WithTimeFunc(ti.now))
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	email, _ := claims["sub"].(string)
	if email == "" {
		return nil, ErrInvalidToken
	}
	name, _ := claims["name"].(string)
	return &Identity{DisplayName: name, Email: email}, nil
}
