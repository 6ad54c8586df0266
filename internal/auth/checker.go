package auth

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
)

const revokedTokenKeyPrefix = "blogapi-revoked-token||"

var _ Checker = (*LoginChecker)(nil)

//go:generate mockgen -source=$GOFILE -destination=../middleware/auth_mocks_test.go -package=middleware_test

type Checker interface {
	// CheckToken returns the id of the user the token was issued to.
	CheckToken(ctx context.Context, token string) (string, error)
}

// LoginChecker accepts tokens that are correctly signed, not expired and
// not revoked by a logout.
type LoginChecker struct {
	issuer      *TokenIssuer
	redisClient *redis.Client
}

func NewLoginChecker(issuer *TokenIssuer, redisClient *redis.Client) *LoginChecker {
	return &LoginChecker{
		issuer:      issuer,
		redisClient: redisClient,
	}
}

func (lc *LoginChecker) CheckToken(ctx context.Context, token string) (string, error) {
	claims, err := lc.issuer.Parse(token)
	if err != nil {
		return "", err
	}

	revoked, err := lc.redisClient.Exists(ctx, revokedTokenKeyPrefix+claims.ID).Result()
	if err != nil {
		return "", fmt.Errorf("check token revocation: %w", err)
	}
	if revoked > 0 {
		return "", ErrInvalidToken
	}

	return claims.Subject, nil
}
