//go:build integration_test || all_tests

package test

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2beens/blogapi/internal/blog"
)

func (s *IntegrationTestSuite) decodeBlog(respBytes []byte) *blog.Blog {
	var b blog.Blog
	require.NoError(s.T(), json.Unmarshal(respBytes, &b), string(respBytes))
	return &b
}

func (s *IntegrationTestSuite) TestBlog_Scenario() {
	ctx := context.Background()
	author := newFakeUser()
	reader := newFakeUser()
	s.register(ctx, author)
	s.register(ctx, reader)

	resp, respBytes := s.do(ctx, http.MethodPost, "/api/blogs", map[string]string{
		"title":   "Hello",
		"content": "First post",
	}, author.Token)
	require.Equal(s.T(), http.StatusCreated, resp.StatusCode, string(respBytes))
	created := s.decodeBlog(respBytes)
	assert.Equal(s.T(), author.ID, created.Author.ID)
	assert.Empty(s.T(), created.Likes)
	assert.Empty(s.T(), created.Comments)

	resp, respBytes = s.do(ctx, http.MethodGet, "/api/blogs", nil, "")
	require.Equal(s.T(), http.StatusOK, resp.StatusCode)
	var all []*blog.Blog
	require.NoError(s.T(), json.Unmarshal(respBytes, &all))
	require.NotEmpty(s.T(), all)
	assert.Equal(s.T(), created.ID, all[0].ID, "newest blog comes first")

	// only the author edits
	resp, respBytes = s.do(ctx, http.MethodPut, "/api/blogs/"+created.ID, map[string]string{
		"title": "Stolen",
	}, reader.Token)
	assert.Equal(s.T(), http.StatusForbidden, resp.StatusCode)
	assert.JSONEq(s.T(), `{"message":"You can only edit your own blogs."}`, string(respBytes))

	resp, respBytes = s.do(ctx, http.MethodPut, "/api/blogs/"+created.ID, map[string]string{
		"title": "Hello again",
	}, author.Token)
	require.Equal(s.T(), http.StatusOK, resp.StatusCode, string(respBytes))
	updated := s.decodeBlog(respBytes)
	assert.Equal(s.T(), "Hello again", updated.Title)
	assert.Equal(s.T(), "First post", updated.Content)
	assert.False(s.T(), updated.UpdatedAt.Before(created.UpdatedAt))

	// like, then unlike
	resp, respBytes = s.do(ctx, http.MethodPost, "/api/blogs/"+created.ID+"/like", nil, reader.Token)
	require.Equal(s.T(), http.StatusOK, resp.StatusCode, string(respBytes))
	assert.Equal(s.T(), []string{reader.ID}, s.decodeBlog(respBytes).Likes)

	resp, respBytes = s.do(ctx, http.MethodPost, "/api/blogs/"+created.ID+"/like", nil, reader.Token)
	require.Equal(s.T(), http.StatusOK, resp.StatusCode, string(respBytes))
	assert.Empty(s.T(), s.decodeBlog(respBytes).Likes)

	resp, respBytes = s.do(ctx, http.MethodPost, "/api/blogs/"+created.ID+"/comment", map[string]string{
		"text": "   ",
	}, reader.Token)
	assert.Equal(s.T(), http.StatusBadRequest, resp.StatusCode)
	assert.JSONEq(s.T(), `{"message":"Comment cannot be empty"}`, string(respBytes))

	resp, respBytes = s.do(ctx, http.MethodPost, "/api/blogs/"+created.ID+"/comment", map[string]string{
		"text": "Nice one",
	}, reader.Token)
	require.Equal(s.T(), http.StatusOK, resp.StatusCode, string(respBytes))
	commented := s.decodeBlog(respBytes)
	require.Len(s.T(), commented.Comments, 1)
	assert.Equal(s.T(), "Nice one", commented.Comments[0].Text)
	assert.Equal(s.T(), reader.ID, commented.Comments[0].User.ID)
	assert.Equal(s.T(), reader.Name, commented.Comments[0].User.Name)

	resp, _ = s.do(ctx, http.MethodDelete, "/api/blogs/"+created.ID, nil, reader.Token)
	assert.Equal(s.T(), http.StatusForbidden, resp.StatusCode)

	resp, respBytes = s.do(ctx, http.MethodDelete, "/api/blogs/"+created.ID, nil, author.Token)
	require.Equal(s.T(), http.StatusOK, resp.StatusCode, string(respBytes))
	assert.JSONEq(s.T(), `{"message":"Blog deleted successfully"}`, string(respBytes))

	resp, respBytes = s.do(ctx, http.MethodGet, "/api/blogs/"+created.ID, nil, "")
	assert.Equal(s.T(), http.StatusNotFound, resp.StatusCode)
	assert.JSONEq(s.T(), `{"message":"Blog not found"}`, string(respBytes))
}

func (s *IntegrationTestSuite) TestBlog_NotFound() {
	ctx := context.Background()
	u := newFakeUser()
	s.register(ctx, u)

	missingID := "00000000-0000-0000-0000-000000000000"
	resp, _ := s.do(ctx, http.MethodGet, "/api/blogs/"+missingID, nil, "")
	assert.Equal(s.T(), http.StatusNotFound, resp.StatusCode)

	resp, _ = s.do(ctx, http.MethodGet, "/api/blogs/not-a-uuid", nil, "")
	assert.Equal(s.T(), http.StatusNotFound, resp.StatusCode)

	resp, _ = s.do(ctx, http.MethodPost, "/api/blogs/"+missingID+"/like", nil, u.Token)
	assert.Equal(s.T(), http.StatusNotFound, resp.StatusCode)

	resp, _ = s.do(ctx, http.MethodPost, "/api/blogs/"+missingID+"/comment", map[string]string{
		"text": "hello?",
	}, u.Token)
	assert.Equal(s.T(), http.StatusNotFound, resp.StatusCode)
}

func (s *IntegrationTestSuite) TestServer_CorsAndHeaders() {
	ctx := context.Background()

	req, err := http.NewRequestWithContext(ctx, http.MethodOptions, serverEndpoint+"/api/blogs", nil)
	require.NoError(s.T(), err)
	req.Header.Set("Origin", "http://localhost:3000")
	resp, err := s.httpClient.Do(req)
	require.NoError(s.T(), err)
	defer resp.Body.Close()
	assert.Equal(s.T(), http.StatusOK, resp.StatusCode)
	assert.Equal(s.T(), "http://localhost:3000", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(s.T(), resp.Header.Get("X-Request-Id"))

	req, err = http.NewRequestWithContext(ctx, http.MethodGet, serverEndpoint+"/api/blogs", nil)
	require.NoError(s.T(), err)
	req.Header.Set("Origin", "http://evil.example.com")
	resp2, err := s.httpClient.Do(req)
	require.NoError(s.T(), err)
	defer resp2.Body.Close()
	assert.Equal(s.T(), http.StatusForbidden, resp2.StatusCode)

	metricsResp, err := s.httpClient.Get("http://127.0.0.1:9002/metrics")
	require.NoError(s.T(), err)
	defer metricsResp.Body.Close()
	assert.Equal(s.T(), http.StatusOK, metricsResp.StatusCode)
}
