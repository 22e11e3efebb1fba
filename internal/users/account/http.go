// Copyright (c) 2026 NoteHub. All rights reserved.

package account

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/notehub/notehub/internal/platform/middleware"
	requestutil "github.com/notehub/notehub/internal/platform/request"
	"github.com/notehub/notehub/internal/platform/respond"
	"github.com/notehub/notehub/internal/platform/validate"
	"github.com/notehub/notehub/internal/users/auth"
)

// Handler implements the account self-management HTTP endpoints.
type Handler struct {
	accountService *Service
}

// NewHandler constructs a new [Handler] with its service dependency.
func NewHandler(service *Service) *Handler {
	return &Handler{accountService: service}
}

// Routes returns a [chi.Router] for the /account subtree. Every endpoint
// requires authentication.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()
	router.Use(middleware.RequireAuth)

	router.Get("/", handler.get)
	router.Patch("/", handler.update)
	router.Post("/password", handler.changePassword)
	router.Post("/2fa/setup", handler.setupSecondFactor)
	router.Post("/2fa", handler.enableSecondFactor)
	router.Delete("/2fa", handler.disableSecondFactor)

	return router
}

// # Request Payloads

type updateRequest struct {
	Email *string `json:"email"`
	Theme *string `json:"theme"`
	Bio   *string `json:"bio"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type enableSecondFactorRequest struct {
	Secret string `json:"secret"`
	Code   string `json:"code"`
}

type disableSecondFactorRequest struct {
	Code string `json:"code"`
}

/*
Get returns the authenticated user's profile.

GET /api/v1/account

Response:
  - 200: User profile
  - 401: Authentication required
*/
func (handler *Handler) get(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	user, err := handler.accountService.Get(request.Context(), userID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, user)
}

/*
Update applies partial changes to the profile.

PATCH /api/v1/account

Request:
  - Body: updateRequest (Email?, Theme?, Bio?); absent fields are untouched

Response:
  - 200: Updated profile
  - 400: VALIDATION_ERROR
  - 409: DUPLICATE_IDENTITY on email conflicts
*/
func (handler *Handler) update(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input updateRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	v := &validate.Validator{}
	if input.Email != nil && *input.Email != "" {
		v.Email(auth.FieldEmail, *input.Email)
	}
	if input.Theme != nil {
		v.OneOf("theme", *input.Theme, "light", "dark")
	}
	if input.Bio != nil {
		v.MaxLen("bio", *input.Bio, 500)
	}

	if err := v.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	user, err := handler.accountService.Update(request.Context(), userID, UpdateInput{
		Email: input.Email,
		Theme: input.Theme,
		Bio:   input.Bio,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, user)
}

/*
ChangePassword rotates the authenticated user's password.

POST /api/v1/account/password

Request:
  - Body: changePasswordRequest (CurrentPassword, NewPassword)

Response:
  - 200: Success message
  - 400: VALIDATION_ERROR on policy violations
  - 401: INVALID_CREDENTIALS on a wrong current password
*/
func (handler *Handler) changePassword(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input changePasswordRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	v := &validate.Validator{}
	v.Required("current_password", input.CurrentPassword).
		Required("new_password", input.NewPassword)

	if err := v.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	err = handler.accountService.ChangePassword(request.Context(), userID, input.CurrentPassword, input.NewPassword)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]string{
		auth.FieldMessage: "Password changed successfully",
	})
}

/*
SetupSecondFactor generates second-factor enrollment material.

POST /api/v1/account/2fa/setup

Description: Returns a fresh secret and provisioning URI. Nothing is persisted
until the client proves possession via POST /account/2fa.

Response:
  - 200: Enrollment (secret, provisioning_uri)
*/
func (handler *Handler) setupSecondFactor(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	enrollment, err := handler.accountService.SetupSecondFactor(request.Context(), userID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, enrollment)
}

/*
EnableSecondFactor persists the second factor after proof of possession.

POST /api/v1/account/2fa

Request:
  - Body: enableSecondFactorRequest (Secret, Code)

Response:
  - 200: Success message
  - 401: INVALID_SECOND_FACTOR when the code does not verify
*/
func (handler *Handler) enableSecondFactor(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input enableSecondFactorRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	v := &validate.Validator{}
	v.Required("secret", input.Secret).
		Required(auth.FieldCode, input.Code)

	if err := v.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.accountService.EnableSecondFactor(request.Context(), userID, input.Secret, input.Code); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]string{
		auth.FieldMessage: "Second factor enabled",
	})
}

/*
DisableSecondFactor removes the second factor after a final code check.

DELETE /api/v1/account/2fa

Request:
  - Body: disableSecondFactorRequest (Code)

Response:
  - 200: Success message
  - 400: VALIDATION_ERROR when not enrolled
  - 401: INVALID_SECOND_FACTOR when the code does not verify
*/
func (handler *Handler) disableSecondFactor(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input disableSecondFactorRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	if input.Code == "" {
		respond.Error(writer, request, validate.RequiredError(auth.FieldCode, "This field is required"))
		return
	}

	if err := handler.accountService.DisableSecondFactor(request.Context(), userID, input.Code); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]string{
		auth.FieldMessage: "Second factor disabled",
	})
}
