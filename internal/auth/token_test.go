package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2beens/blogapi/pkg"
)

func TestTokenIssuer_IssueAndParse(t *testing.T) {
	issuer := newTestIssuer()

	token, claims, err := issuer.Issue("user-1")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.Equal(t, "user-1", claims.Subject)
	assert.NotEmpty(t, claims.ID)
	assert.Equal(t, testNow.Add(time.Hour).Unix(), claims.ExpiresAt.Unix())

	parsed, err := issuer.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", parsed.Subject)
	assert.Equal(t, claims.ID, parsed.ID)

	_, claims2, err := issuer.Issue("user-1")
	require.NoError(t, err)
	assert.NotEqual(t, claims.ID, claims2.ID)
}

func TestTokenIssuer_DefaultTTL(t *testing.T) {
	issuer := NewTokenIssuer(testSecret, 0)
	assert.Equal(t, DefaultTTL, issuer.ttl)
}

func TestTokenIssuer_ParseInvalid(t *testing.T) {
	issuer := newTestIssuer()
	token, _, err := issuer.Issue("user-1")
	require.NoError(t, err)

	t.Run("expired", func(t *testing.T) {
		later := newTestIssuer()
		later.NowFunc = func() time.Time { return testNow.Add(2 * time.Hour) }
		_, err := later.Parse(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
		assert.ErrorIs(t, err, pkg.ErrUnauthorized)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := NewTokenIssuer([]byte("other-secret"), time.Hour)
		other.NowFunc = issuer.NowFunc
		_, err := other.Parse(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := issuer.Parse("not.a.token")
		assert.ErrorIs(t, err, ErrInvalidToken)
		_, err = issuer.Parse("")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("tampered", func(t *testing.T) {
		_, err := issuer.Parse(token + "x")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("none alg", func(t *testing.T) {
		unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
			Subject:   "user-1",
			ID:        "jti",
			ExpiresAt: jwt.NewNumericDate(testNow.Add(time.Hour)),
		}).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = issuer.Parse(unsigned)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("no expiry", func(t *testing.T) {
		noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
			Subject: "user-1",
			ID:      "jti",
		}).SignedString(testSecret)
		require.NoError(t, err)
		_, err = issuer.Parse(noExp)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("no subject", func(t *testing.T) {
		noSub, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
			ID:        "jti",
			ExpiresAt: jwt.NewNumericDate(testNow.Add(time.Hour)),
		}).SignedString(testSecret)
		require.NoError(t, err)
		_, err = issuer.Parse(noSub)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}
