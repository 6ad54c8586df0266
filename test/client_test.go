//go:build integration_test || all_tests

package test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/require"

	"github.com/2beens/blogapi/internal/auth"
)

type testUser struct {
	Name     string
	Email    string
	Password string
	ID       string
	Token    string
}

func newFakeUser() *testUser {
	return &testUser{
		Name:     gofakeit.Name(),
		Email:    gofakeit.Email(),
		Password: gofakeit.Password(true, true, true, false, false, 12),
	}
}

// do sends a request to the running server and returns the response with
// its body already read.
func (s *IntegrationTestSuite) do(
	ctx context.Context,
	method, path string,
	body any,
	token string,
) (*http.Response, []byte) {
	var reqBody io.Reader
	if body != nil {
		bodyJson, err := json.Marshal(body)
		require.NoError(s.T(), err)
		reqBody = bytes.NewReader(bodyJson)
	}

	req, err := http.NewRequestWithContext(ctx, method, serverEndpoint+path, reqBody)
	require.NoError(s.T(), err)
	req.Header.Set("User-Agent", "test-agent")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.httpClient.Do(req)
	require.NoError(s.T(), err)
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	require.NoError(s.T(), err)
	return resp, respBytes
}

func (s *IntegrationTestSuite) register(ctx context.Context, u *testUser) {
	resp, respBytes := s.do(ctx, http.MethodPost, "/api/auth/register", map[string]string{
		"name":     u.Name,
		"email":    u.Email,
		"password": u.Password,
	}, "")
	require.Equal(s.T(), http.StatusCreated, resp.StatusCode, string(respBytes))

	var authResp auth.AuthResponse
	require.NoError(s.T(), json.Unmarshal(respBytes, &authResp))
	require.NotEmpty(s.T(), authResp.Token)
	u.ID = authResp.User.ID
	u.Token = authResp.Token
}

func (s *IntegrationTestSuite) login(ctx context.Context, email, password string) (*http.Response, *auth.AuthResponse) {
	resp, respBytes := s.do(ctx, http.MethodPost, "/api/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, "")
	if resp.StatusCode != http.StatusOK {
		return resp, nil
	}

	var authResp auth.AuthResponse
	require.NoError(s.T(), json.Unmarshal(respBytes, &authResp))
	return resp, &authResp
}
