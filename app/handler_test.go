package main

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthCheckHandler(t *testing.T) {
	app, _ := newTestApplication(t)
	ts := newTestServer(t, app.routes())

	status, _, body := ts.get(t, "/v1/healthcheck", nil)

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "available", body["status"])
}

func TestUserRegistrationFlow(t *testing.T) {
	app, _ := newTestApplication(t)
	ts := newTestServer(t, app.routes())

	// Register.
	status, _, body := ts.post(t, "/v1/users/register", nil, map[string]any{
		"name":     "alice",
		"email":    "alice@example.com",
		"password": "Test_1234!",
	})
	require.Equal(t, http.StatusCreated, status)
	activationToken, ok := body["token"].(string)
	require.True(t, ok)

	// Activate.
	status, _, _ = ts.put(t, "/v1/users/activate", nil, map[string]any{"token": activationToken})
	require.Equal(t, http.StatusOK, status)

	// Login.
	status, _, body = ts.post(t, "/v1/users/login", nil, map[string]any{
		"email":    "alice@example.com",
		"password": "Test_1234!",
	})
	require.Equal(t, http.StatusOK, status)

	token := body["token"].(map[string]any)
	accessToken := token["access_token"].(string)

	// Authenticated request.
	status, _, body = ts.get(t, "/v1/users/me", &accessToken)
	require.Equal(t, http.StatusOK, status)
	user := body["user"].(map[string]any)
	assert.Equal(t, "alice", user["name"])
}

func TestRegisterUserValidation(t *testing.T) {
	app, _ := newTestApplication(t)
	ts := newTestServer(t, app.routes())

	status, _, body := ts.post(t, "/v1/users/register", nil, map[string]any{
		"name":     "alice",
		"email":    "not-an-email",
		"password": "short",
	})

	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, false, body["success"])

	errs, ok := body["message"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, errs, "email")
	assert.Contains(t, errs, "password")
}

func TestRegisterDuplicateEmail(t *testing.T) {
	app, db := newTestApplication(t)
	ts := newTestServer(t, app.routes())

	registerTestUser(t, app, db, "alice", false)

	status, _, body := ts.post(t, "/v1/users/register", nil, map[string]any{
		"name":     "alice2",
		"email":    "alice@example.com",
		"password": "Test_1234!",
	})

	assert.Equal(t, http.StatusBadRequest, status)
	errs := body["message"].(map[string]any)
	assert.Contains(t, errs, "email")
}

func TestBlogLifecycleOverHTTP(t *testing.T) {
	app, db := newTestApplication(t)
	ts := newTestServer(t, app.routes())

	_, adminToken := registerTestUser(t, app, db, "admin", true)
	_, userToken := registerTestUser(t, app, db, "bob", false)

	// Only admins may create blogs.
	payload := map[string]any{
		"title":    "A",
		"category": "tech",
		"tags":     []string{"x"},
		"content":  "hello world",
	}

	status, _, _ := ts.post(t, "/v1/blogs", &userToken, payload)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _, body := ts.post(t, "/v1/blogs", &adminToken, payload)
	require.Equal(t, http.StatusCreated, status)

	blog := body["blog"].(map[string]any)
	blogID := blog["id"].(string)

	// Comment as a regular user.
	status, _, body = ts.post(t, fmt.Sprintf("/v1/blogs/%s/comments", blogID), &userToken, map[string]any{"content": "hi"})
	require.Equal(t, http.StatusCreated, status)
	comment := body["comment"].(map[string]any)
	commentID := comment["id"].(string)

	app.blogService.Wait()

	// The view shows the comment inline.
	status, _, body = ts.get(t, fmt.Sprintf("/v1/blogs/%s", blogID), nil)
	require.Equal(t, http.StatusOK, status)

	view := body["blog"].(map[string]any)
	comments := view["comments"].([]any)
	require.Len(t, comments, 1)
	assert.Equal(t, "hi", comments[0].(map[string]any)["content"])

	// Delete the comment and the view follows.
	status, _, _ = ts.delete(t, fmt.Sprintf("/v1/blogs/%s/comments/%s", blogID, commentID), &userToken)
	require.Equal(t, http.StatusOK, status)

	app.blogService.Wait()

	status, _, body = ts.get(t, fmt.Sprintf("/v1/blogs/%s", blogID), nil)
	require.Equal(t, http.StatusOK, status)
	view = body["blog"].(map[string]any)
	assert.Len(t, view["comments"].([]any), 0)

	// Delete the blog.
	status, _, _ = ts.delete(t, fmt.Sprintf("/v1/blogs/%s", blogID), &adminToken)
	require.Equal(t, http.StatusOK, status)

	app.blogService.Wait()

	status, _, _ = ts.get(t, fmt.Sprintf("/v1/blogs/%s", blogID), nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestListBlogsOverHTTP(t *testing.T) {
	app, db := newTestApplication(t)
	ts := newTestServer(t, app.routes())

	_, adminToken := registerTestUser(t, app, db, "admin", true)

	for _, title := range []string{"Alpha", "Beta", "Gamma"} {
		status, _, _ := ts.post(t, "/v1/blogs", &adminToken, map[string]any{
			"title":    title,
			"category": "tech",
			"content":  "content of " + title,
		})
		require.Equal(t, http.StatusCreated, status)
	}
	app.blogService.Wait()

	status, _, body := ts.get(t, "/v1/blogs?sort=title&limit=2", nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 3, body["total"])

	blogs := body["blogs"].([]any)
	require.Len(t, blogs, 2)
	assert.Equal(t, "Alpha", blogs[0].(map[string]any)["title"])
	assert.Equal(t, "Beta", blogs[1].(map[string]any)["title"])

	app.blogService.Wait()

	// Same page from the warmed listing cache.
	status, _, body = ts.get(t, "/v1/blogs?sort=title&limit=2&offset=2", nil)
	require.Equal(t, http.StatusOK, status)
	blogs = body["blogs"].([]any)
	require.Len(t, blogs, 1)
	assert.Equal(t, "Gamma", blogs[0].(map[string]any)["title"])

	status, _, _ = ts.get(t, "/v1/blogs?sort=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestLikeBlogOverHTTP(t *testing.T) {
	app, db := newTestApplication(t)
	ts := newTestServer(t, app.routes())

	_, adminToken := registerTestUser(t, app, db, "admin", true)
	_, userToken := registerTestUser(t, app, db, "bob", false)

	status, _, body := ts.post(t, "/v1/blogs", &adminToken, map[string]any{
		"title":    "Likeable",
		"category": "tech",
		"content":  "like me",
	})
	require.Equal(t, http.StatusCreated, status)
	blogID := body["blog"].(map[string]any)["id"].(string)

	// Anonymous likes are rejected.
	status, _, _ = ts.put(t, fmt.Sprintf("/v1/blogs/%s/like", blogID), nil, nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _, _ = ts.put(t, fmt.Sprintf("/v1/blogs/%s/like", blogID), &userToken, nil)
	require.Equal(t, http.StatusOK, status)
	status, _, _ = ts.put(t, fmt.Sprintf("/v1/blogs/%s/like", blogID), &userToken, nil)
	require.Equal(t, http.StatusOK, status)

	app.blogService.Wait()

	status, _, body = ts.get(t, fmt.Sprintf("/v1/blogs/%s", blogID), nil)
	require.Equal(t, http.StatusOK, status)
	view := body["blog"].(map[string]any)
	assert.Len(t, view["likes"].([]any), 1)
}
