package main

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
)

func (app *application) routes() http.Handler {
	router := httprouter.New()

	router.NotFound = http.HandlerFunc(app.notFoundErrorResponse)
	router.MethodNotAllowed = http.HandlerFunc(app.methodNotAllowedErrorResponse)

	router.HandlerFunc(http.MethodGet, "/v1/healthcheck", app.healthCheckHandler)

	// user service
	router.HandlerFunc(http.MethodPost, "/v1/users/register", app.registerUserHandler)
	router.HandlerFunc(http.MethodPut, "/v1/users/activate", app.activateUserHandler)
	router.HandlerFunc(http.MethodPost, "/v1/users/login", app.loginUserHandler)
	router.HandlerFunc(http.MethodPost, "/v1/users/logout", app.requireAuthUser(app.logoutUserHandler))
	router.HandlerFunc(http.MethodGet, "/v1/users/me", app.requireAuthUser(app.getCurrentUserHandler))
	router.HandlerFunc(http.MethodPatch, "/v1/users/me", app.requireActivatedUser(app.updateProfileHandler))
	router.HandlerFunc(http.MethodPost, "/v1/users/email", app.requireActivatedUser(app.requestEmailChangeHandler))
	router.HandlerFunc(http.MethodPut, "/v1/users/email", app.requireActivatedUser(app.activateNewEmailHandler))
	router.HandlerFunc(http.MethodPut, "/v1/users/password", app.requireAuthUser(app.changePasswordHandler))
	router.HandlerFunc(http.MethodPost, "/v1/users/password/reset", app.requestPasswordResetHandler)
	router.HandlerFunc(http.MethodPut, "/v1/users/password/reset", app.resetPasswordHandler)
	router.HandlerFunc(http.MethodDelete, "/v1/users/me", app.requireAuthUser(app.deleteAccountHandler))

	// blog service
	router.HandlerFunc(http.MethodGet, "/v1/blogs", app.listBlogsHandler)
	router.HandlerFunc(http.MethodPost, "/v1/blogs", app.requireAdminUser(app.createBlogHandler))
	router.HandlerFunc(http.MethodGet, "/v1/blogs/:id", app.getBlogHandler)
	router.HandlerFunc(http.MethodPut, "/v1/blogs/:id", app.requireAdminUser(app.updateBlogHandler))
	router.HandlerFunc(http.MethodDelete, "/v1/blogs/:id", app.requireAdminUser(app.deleteBlogHandler))
	router.HandlerFunc(http.MethodPut, "/v1/blogs/:id/like", app.requireActivatedUser(app.likeBlogHandler))

	// comments and replies
	router.HandlerFunc(http.MethodPost, "/v1/blogs/:id/comments", app.requireActivatedUser(app.createCommentHandler))
	router.HandlerFunc(http.MethodDelete, "/v1/blogs/:id/comments/:commentId", app.requireActivatedUser(app.deleteCommentHandler))
	router.HandlerFunc(http.MethodGet, "/v1/comments/:id", app.getCommentHandler)
	router.HandlerFunc(http.MethodPut, "/v1/comments/:id/like", app.requireActivatedUser(app.likeCommentHandler))
	router.HandlerFunc(http.MethodPost, "/v1/comments/:id/replies", app.requireActivatedUser(app.createReplyHandler))
	router.HandlerFunc(http.MethodDelete, "/v1/comments/:id/replies/:replyId", app.requireActivatedUser(app.deleteReplyHandler))
	router.HandlerFunc(http.MethodPut, "/v1/replies/:id/like", app.requireActivatedUser(app.likeReplyHandler))

	return app.recoverPanic(app.rateLimit(app.logRequest(app.authenticate(router))))
}
