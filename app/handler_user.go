package main

import (
	"errors"
	"net/http"

	"github.com/almuhsiny/blogapi/internal/common"
	"github.com/almuhsiny/blogapi/internal/userservice"
)

type registerUserRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (app *application) registerUserHandler(w http.ResponseWriter, r *http.Request) {
	var input registerUserRequest

	err := app.parseJSON(w, r, &input)
	if err != nil {
		app.badRequestErrorResponse(w, r, err)
		return
	}

	token, err := app.userService.RegisterUser(r.Context(), input.Name, input.Email, input.Password)
	if err != nil {
		switch {
		case errors.Is(err, userservice.ErrDuplicateEmail):
			app.failedValidationErrorResponse(w, r, map[string]string{"email": "a user with this email address already exists"})
		case errors.As(err, &common.ValidationError{}):
			validationErr := err.(common.ValidationError)
			app.failedValidationErrorResponse(w, r, validationErr.Errors)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	err = app.writeJSON(w, http.StatusCreated, envelope{"success": true, "token": token}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

type activateUserRequest struct {
	Token string `json:"token"`
}

func (app *application) activateUserHandler(w http.ResponseWriter, r *http.Request) {
	var input activateUserRequest

	err := app.parseJSON(w, r, &input)
	if err != nil {
		app.badRequestErrorResponse(w, r, err)
		return
	}

	err = app.userService.ActivateUser(r.Context(), input.Token)
	if err != nil {
		switch {
		case errors.Is(err, userservice.ErrNotFound):
			app.notFoundErrorResponse(w, r)
		case errors.As(err, &common.ValidationError{}):
			validationErr := err.(common.ValidationError)
			app.failedValidationErrorResponse(w, r, validationErr.Errors)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"success": true, "message": "user account activated"}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

type loginUserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (app *application) loginUserHandler(w http.ResponseWriter, r *http.Request) {
	var input loginUserRequest

	err := app.parseJSON(w, r, &input)
	if err != nil {
		app.badRequestErrorResponse(w, r, err)
		return
	}

	token, err := app.userService.LoginUser(r.Context(), input.Email, input.Password)
	if err != nil {
		switch {
		case errors.Is(err, userservice.ErrNotFound), errors.Is(err, userservice.ErrAuthenticationFailure):
			app.invalidCredentialsErrorResponse(w, r)
		case errors.As(err, &common.ValidationError{}):
			validationErr := err.(common.ValidationError)
			app.failedValidationErrorResponse(w, r, validationErr.Errors)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"success": true, "token": token}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *application) logoutUserHandler(w http.ResponseWriter, r *http.Request) {
	user := app.getUserContext(r)

	err := app.userService.LogoutUser(r.Context(), user.ID)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"success": true, "message": "user logged out"}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *application) getCurrentUserHandler(w http.ResponseWriter, r *http.Request) {
	user := app.getUserContext(r)

	err := app.writeJSON(w, http.StatusOK, envelope{"success": true, "user": user}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *application) updateProfileHandler(w http.ResponseWriter, r *http.Request) {
	var input userservice.UpdateProfileRequest

	err := app.parseJSON(w, r, &input)
	if err != nil {
		app.badRequestErrorResponse(w, r, err)
		return
	}

	user := app.getUserContext(r)

	updated, err := app.userService.UpdateProfile(r.Context(), user.ID, &input)
	if err != nil {
		switch {
		case errors.Is(err, userservice.ErrNotFound):
			app.notFoundErrorResponse(w, r)
		case errors.As(err, &common.ValidationError{}):
			validationErr := err.(common.ValidationError)
			app.failedValidationErrorResponse(w, r, validationErr.Errors)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"success": true, "user": updated}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

type emailChangeRequest struct {
	Email string `json:"email"`
}

func (app *application) requestEmailChangeHandler(w http.ResponseWriter, r *http.Request) {
	var input emailChangeRequest

	err := app.parseJSON(w, r, &input)
	if err != nil {
		app.badRequestErrorResponse(w, r, err)
		return
	}

	user := app.getUserContext(r)

	token, err := app.userService.RequestEmailChange(r.Context(), user.ID, input.Email)
	if err != nil {
		switch {
		case errors.Is(err, userservice.ErrDuplicateEmail):
			app.failedValidationErrorResponse(w, r, map[string]string{"email": "a user with this email address already exists"})
		case errors.As(err, &common.ValidationError{}):
			validationErr := err.(common.ValidationError)
			app.failedValidationErrorResponse(w, r, validationErr.Errors)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"success": true, "token": token}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

type activateNewEmailRequest struct {
	Token string `json:"token"`
}

func (app *application) activateNewEmailHandler(w http.ResponseWriter, r *http.Request) {
	var input activateNewEmailRequest

	err := app.parseJSON(w, r, &input)
	if err != nil {
		app.badRequestErrorResponse(w, r, err)
		return
	}

	user := app.getUserContext(r)

	updated, err := app.userService.ActivateNewEmail(r.Context(), user.ID, input.Token)
	if err != nil {
		switch {
		case errors.Is(err, userservice.ErrNotFound):
			app.notFoundErrorResponse(w, r)
		case errors.As(err, &common.ValidationError{}):
			validationErr := err.(common.ValidationError)
			app.failedValidationErrorResponse(w, r, validationErr.Errors)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"success": true, "user": updated}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

func (app *application) changePasswordHandler(w http.ResponseWriter, r *http.Request) {
	var input changePasswordRequest

	err := app.parseJSON(w, r, &input)
	if err != nil {
		app.badRequestErrorResponse(w, r, err)
		return
	}

	user := app.getUserContext(r)

	err = app.userService.ChangePassword(r.Context(), user.ID, input.OldPassword, input.NewPassword)
	if err != nil {
		switch {
		case errors.Is(err, userservice.ErrAuthenticationFailure):
			app.invalidCredentialsErrorResponse(w, r)
		case errors.As(err, &common.ValidationError{}):
			validationErr := err.(common.ValidationError)
			app.failedValidationErrorResponse(w, r, validationErr.Errors)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"success": true, "message": "password updated"}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

type requestPasswordResetRequest struct {
	Email string `json:"email"`
}

func (app *application) requestPasswordResetHandler(w http.ResponseWriter, r *http.Request) {
	var input requestPasswordResetRequest

	err := app.parseJSON(w, r, &input)
	if err != nil {
		app.badRequestErrorResponse(w, r, err)
		return
	}

	_, err = app.userService.RequestPasswordReset(r.Context(), input.Email)
	if err != nil {
		switch {
		case errors.Is(err, userservice.ErrNotFound):
			app.notFoundErrorResponse(w, r)
		case errors.As(err, &common.ValidationError{}):
			validationErr := err.(common.ValidationError)
			app.failedValidationErrorResponse(w, r, validationErr.Errors)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"success": true, "message": "password reset requested, check your email"}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

func (app *application) resetPasswordHandler(w http.ResponseWriter, r *http.Request) {
	var input resetPasswordRequest

	err := app.parseJSON(w, r, &input)
	if err != nil {
		app.badRequestErrorResponse(w, r, err)
		return
	}

	err = app.userService.ResetPassword(r.Context(), input.Token, input.NewPassword)
	if err != nil {
		switch {
		case errors.Is(err, userservice.ErrNotFound):
			app.notFoundErrorResponse(w, r)
		case errors.As(err, &common.ValidationError{}):
			validationErr := err.(common.ValidationError)
			app.failedValidationErrorResponse(w, r, validationErr.Errors)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"success": true, "message": "password updated"}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *application) deleteAccountHandler(w http.ResponseWriter, r *http.Request) {
	user := app.getUserContext(r)

	err := app.userService.DeleteAccount(r.Context(), user.ID)
	if err != nil {
		switch {
		case errors.Is(err, userservice.ErrNotFound):
			app.notFoundErrorResponse(w, r)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"success": true, "message": "account deleted"}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}
