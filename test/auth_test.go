//go:build integration_test || all_tests

package test

import (
	"context"
	"net/http"
	"strings"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (s *IntegrationTestSuite) TestAuth_RegisterLoginLogout() {
	ctx := context.Background()
	u := newFakeUser()
	s.register(ctx, u)
	require.NotEmpty(s.T(), u.ID)

	// emails are compared case-insensitively
	resp, _ := s.do(ctx, http.MethodPost, "/api/auth/register", map[string]string{
		"name":     "Someone Else",
		"email":    strings.ToUpper(u.Email),
		"password": "secret123",
	}, "")
	assert.Equal(s.T(), http.StatusConflict, resp.StatusCode)

	resp, authResp := s.login(ctx, u.Email, "wrong-password")
	assert.Equal(s.T(), http.StatusUnauthorized, resp.StatusCode)
	assert.Nil(s.T(), authResp)

	resp, authResp = s.login(ctx, "nobody@example.com", u.Password)
	assert.Equal(s.T(), http.StatusUnauthorized, resp.StatusCode)
	assert.Nil(s.T(), authResp)

	resp, authResp = s.login(ctx, u.Email, u.Password)
	require.Equal(s.T(), http.StatusOK, resp.StatusCode)
	require.NotNil(s.T(), authResp)
	assert.Equal(s.T(), u.ID, authResp.User.ID)
	token := authResp.Token

	resp, respBytes := s.do(ctx, http.MethodPost, "/api/blogs", map[string]string{
		"title":   "Before logout",
		"content": "Still allowed",
	}, token)
	assert.Equal(s.T(), http.StatusCreated, resp.StatusCode, string(respBytes))

	resp, respBytes = s.do(ctx, http.MethodPost, "/api/auth/logout", nil, token)
	require.Equal(s.T(), http.StatusOK, resp.StatusCode)
	assert.JSONEq(s.T(), `{"message":"Logged out"}`, string(respBytes))

	resp, respBytes = s.do(ctx, http.MethodPost, "/api/blogs", map[string]string{
		"title":   "After logout",
		"content": "Rejected",
	}, token)
	assert.Equal(s.T(), http.StatusUnauthorized, resp.StatusCode)
	assert.JSONEq(s.T(), `{"message":"Not authorized, token failed"}`, string(respBytes))
}

func (s *IntegrationTestSuite) TestAuth_RegisterValidation() {
	ctx := context.Background()

	resp, respBytes := s.do(ctx, http.MethodPost, "/api/auth/register", map[string]string{
		"name":     "Shorty",
		"email":    "shorty@example.com",
		"password": "123",
	}, "")
	assert.Equal(s.T(), http.StatusBadRequest, resp.StatusCode)
	assert.JSONEq(s.T(), `{"message":"password must be at least 6 characters"}`, string(respBytes))

	resp, _ = s.do(ctx, http.MethodPost, "/api/auth/register", map[string]string{
		"name":     "No Email",
		"email":    "not-an-email",
		"password": "secret123",
	}, "")
	assert.Equal(s.T(), http.StatusBadRequest, resp.StatusCode)
}

func (s *IntegrationTestSuite) TestAuth_ProtectedRoutesNeedToken() {
	ctx := context.Background()

	resp, respBytes := s.do(ctx, http.MethodDelete, "/api/blogs/whatever", nil, "")
	assert.Equal(s.T(), http.StatusUnauthorized, resp.StatusCode)
	assert.JSONEq(s.T(), `{"message":"Not authorized, no token"}`, string(respBytes))

	resp, _ = s.do(ctx, http.MethodPost, "/api/auth/logout", nil, "not.a.jwt")
	assert.Equal(s.T(), http.StatusUnauthorized, resp.StatusCode)
}
