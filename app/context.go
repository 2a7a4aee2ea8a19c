package main

import (
	"context"
	"net/http"

	"github.com/almuhsiny/blogapi/internal/userservice"
)

type contextKey string

const userContextKey = contextKey("user")

// createUserContext attaches the authenticated (or anonymous) user to the
// request for downstream handlers.
func (app *application) createUserContext(r *http.Request, user *userservice.User) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), userContextKey, user))
}

// getUserContext returns the user set by the authenticate middleware, or nil
// when the request never passed through it.
func (app *application) getUserContext(r *http.Request) *userservice.User {
	user, ok := r.Context().Value(userContextKey).(*userservice.User)
	if !ok {
		return nil
	}
	return user
}
