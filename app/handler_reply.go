package main

import (
	"errors"
	"net/http"

	"github.com/almuhsiny/blogapi/internal/blogservice"
	"github.com/almuhsiny/blogapi/internal/common"
)

type createReplyRequest struct {
	Content string `json:"content"`
}

func (app *application) createReplyHandler(w http.ResponseWriter, r *http.Request) {
	commentID, err := app.readIDParam(r, "id")
	if err != nil {
		app.badRequestErrorResponse(w, r, err)
		return
	}

	var input createReplyRequest

	err = app.parseJSON(w, r, &input)
	if err != nil {
		app.badRequestErrorResponse(w, r, err)
		return
	}

	user := app.getUserContext(r)

	reply, err := app.blogService.CreateReply(r.Context(), commentID, user.ID, input.Content)
	if err != nil {
		switch {
		case errors.Is(err, blogservice.ErrRecordNotFound):
			app.notFoundErrorResponse(w, r)
		case errors.As(err, &common.ValidationError{}):
			validationErr := err.(common.ValidationError)
			app.failedValidationErrorResponse(w, r, validationErr.Errors)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	err = app.writeJSON(w, http.StatusCreated, envelope{"success": true, "reply": reply}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *application) deleteReplyHandler(w http.ResponseWriter, r *http.Request) {
	commentID, err := app.readIDParam(r, "id")
	if err != nil {
		app.badRequestErrorResponse(w, r, err)
		return
	}

	replyID, err := app.readIDParam(r, "replyId")
	if err != nil {
		app.badRequestErrorResponse(w, r, err)
		return
	}

	user := app.getUserContext(r)

	err = app.blogService.DeleteReply(r.Context(), commentID, replyID, user.ID, user.IsAdmin())
	if err != nil {
		switch {
		case errors.Is(err, blogservice.ErrRecordNotFound):
			app.notFoundErrorResponse(w, r)
		case errors.Is(err, blogservice.ErrNotPermitted):
			app.unAuthorizedErrorResponse(w, r)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"success": true, "message": "reply deleted"}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *application) likeReplyHandler(w http.ResponseWriter, r *http.Request) {
	id, err := app.readIDParam(r, "id")
	if err != nil {
		app.badRequestErrorResponse(w, r, err)
		return
	}

	user := app.getUserContext(r)

	err = app.blogService.LikeReply(r.Context(), id, user.ID)
	if err != nil {
		switch {
		case errors.Is(err, blogservice.ErrRecordNotFound):
			app.notFoundErrorResponse(w, r)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"success": true, "message": "reply liked"}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}
