package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/almuhsiny/blogapi/internal/userservice"
)

func strptr(s string) *string {
	return &s
}

func TestRecoverPanic(t *testing.T) {
	app, _ := newTestApplication(t)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("something went wrong")
	})

	middleware := app.recoverPanic(handler)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	res := httptest.NewRecorder()

	middleware.ServeHTTP(res, req)

	assert.Equal(t, http.StatusInternalServerError, res.Code)
	assert.Equal(t, "close", res.Header().Get("Connection"))
}

func TestAuthenticate(t *testing.T) {
	app, db := newTestApplication(t)

	_, accessToken := registerTestUser(t, app, db, "alice", false)

	tests := []struct {
		name           string
		token          *string
		expectedStatus int
	}{
		{
			name:           "No Authentication Header",
			token:          nil,
			expectedStatus: http.StatusOK,
		},
		{
			name:           "Invalid Authentication Token",
			token:          strptr("QWERTYUIOPASDFGHJKLZXCVBNM"),
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Malformed Authentication Token",
			token:          strptr("invalid-token"),
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Valid Authentication Token",
			token:          &accessToken,
			expectedStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			})

			middleware := app.authenticate(handler)

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.token != nil {
				req.Header.Set("Authorization", "Bearer "+*tt.token)
			}

			res := httptest.NewRecorder()
			middleware.ServeHTTP(res, req)

			assert.Equal(t, tt.expectedStatus, res.Code)
		})
	}
}

func TestRequireAdminUser(t *testing.T) {
	app, db := newTestApplication(t)

	user, _ := registerTestUser(t, app, db, "bob", false)
	admin, _ := registerTestUser(t, app, db, "alice", true)

	handler := app.requireAdminUser(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, app.createUserContext(req, user))
	assert.Equal(t, http.StatusUnauthorized, res.Code)

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, app.createUserContext(req, admin))
	assert.Equal(t, http.StatusOK, res.Code)
}

func TestRequireActivatedUser(t *testing.T) {
	app, db := newTestApplication(t)

	activated, _ := registerTestUser(t, app, db, "carol", false)

	handler := app.requireActivatedUser(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, app.createUserContext(req, &userservice.User{Name: "dave"}))
	assert.Equal(t, http.StatusUnauthorized, res.Code)

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, app.createUserContext(req, activated))
	assert.Equal(t, http.StatusOK, res.Code)
}

func TestRateLimit(t *testing.T) {
	app, _ := newTestApplication(t)
	app.config.RateLimitEnabled = true
	app.config.RateLimitRPS = 2
	app.config.RateLimitBurst = 4

	handler := app.rateLimit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	var lastCode int
	for i := 0; i < 10; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:4000"

		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req)
		lastCode = res.Code
	}

	assert.Equal(t, http.StatusTooManyRequests, lastCode)

	// A different client has its own bucket.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.2:4000"

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	assert.Equal(t, http.StatusOK, res.Code)
}
