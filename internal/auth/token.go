package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/2beens/blogapi/pkg"
)

const DefaultTTL = 24 * time.Hour

var ErrInvalidToken = pkg.NewError(pkg.ErrUnauthorized, "Not authorized, token failed")

// TokenIssuer signs and verifies HS256 access tokens. The subject is the
// user id, the token id (jti) is what logout revokes.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	// ability to inject the clock (for unit and dev testing)
	NowFunc func() time.Time
}

func NewTokenIssuer(secret []byte, ttl time.Duration) *TokenIssuer {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &TokenIssuer{
		secret:  secret,
		ttl:     ttl,
		NowFunc: time.Now,
	}
}

func (ti *TokenIssuer) Issue(userID string) (string, *jwt.RegisteredClaims, error) {
	now := ti.NowFunc()
	claims := &jwt.RegisteredClaims{
		Subject:   userID,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ti.ttl)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ti.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}
	return signed, claims, nil
}

// Parse verifies signature and expiry. Every failure is ErrInvalidToken,
// the underlying reason is only kept for logging.
func (ti *TokenIssuer) Parse(token string) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(
		token,
		claims,
		func(*jwt.Token) (any, error) {
			return ti.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(ti.NowFunc),
	)
	if err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}
	if claims.Subject == "" || claims.ID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
