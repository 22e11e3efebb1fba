// Copyright (c) 2026 NoteHub. All rights reserved.

package notes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/notehub/notehub/internal/platform/middleware"
	requestutil "github.com/notehub/notehub/internal/platform/request"
	"github.com/notehub/notehub/internal/platform/respond"
	"github.com/notehub/notehub/internal/platform/validate"
)

// Handler implements the notes HTTP endpoints.
type Handler struct {
	noteService *Service
}

// NewHandler constructs a new [Handler] with its service dependency.
func NewHandler(service *Service) *Handler {
	return &Handler{noteService: service}
}

// Routes returns a [chi.Router] for the /notes subtree. Every endpoint
// requires authentication.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()
	router.Use(middleware.RequireAuth)

	router.Post("/", handler.create)
	router.Get("/{id}", handler.get)
	router.Patch("/{id}", handler.update)
	router.Delete("/{id}", handler.delete)
	router.Put("/{id}/flags", handler.setFlags)
	router.Post("/{id}/shares", handler.share)
	router.Delete("/{id}/shares/{username}", handler.unshare)

	return router
}

// # Request Payloads

type createRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type updateRequest struct {
	Title   *string `json:"title"`
	Content *string `json:"content"`
}

type flagsRequest struct {
	Pinned   bool `json:"pinned"`
	Favorite bool `json:"favorite"`
	Archived bool `json:"archived"`
}

type shareRequest struct {
	Username string `json:"username"`
	CanEdit  bool   `json:"can_edit"`
}

/*
Create persists a new note owned by the caller.

POST /api/v1/notes

Request:
  - Body: createRequest (Title, Content)

Response:
  - 201: The created note
  - 400: VALIDATION_ERROR
*/
func (handler *Handler) create(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input createRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	v := &validate.Validator{}
	v.Required(FieldTitle, input.Title).
		MaxLen(FieldTitle, input.Title, 200).
		MaxLen(FieldContent, input.Content, 50000)

	if err := v.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	note, err := handler.noteService.Create(request.Context(), userID, CreateInput{
		Title:   input.Title,
		Content: input.Content,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Created(writer, note)
}

/*
Get returns a note the caller may read.

GET /api/v1/notes/{id}

Response:
  - 200: The note
  - 404: Missing note, or no access (indistinguishable)
*/
func (handler *Handler) get(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	note, err := handler.noteService.Get(request.Context(), requestutil.Param(request, "id"), userID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, note)
}

/*
Update changes a note's title or content. Requires edit access.

PATCH /api/v1/notes/{id}

Request:
  - Body: updateRequest (Title?, Content?); absent fields are untouched

Response:
  - 200: The updated note
  - 403: FORBIDDEN for read-only grantees
  - 404: Missing note or no access
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
	if input.Title != nil {
		v.Required(FieldTitle, *input.Title).
			MaxLen(FieldTitle, *input.Title, 200)
	}
	if input.Content != nil {
		v.MaxLen(FieldContent, *input.Content, 50000)
	}

	if err := v.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	note, err := handler.noteService.Update(request.Context(), requestutil.Param(request, "id"), userID, UpdateInput{
		Title:   input.Title,
		Content: input.Content,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, note)
}

/*
Delete removes a note. Owner only.

DELETE /api/v1/notes/{id}

Response:
  - 204: Deleted
  - 403: FORBIDDEN for grantees
  - 404: Missing note or no access
*/
func (handler *Handler) delete(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.noteService.Delete(request.Context(), requestutil.Param(request, "id"), userID); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}

/*
SetFlags replaces the note's display flags. Owner only.

PUT /api/v1/notes/{id}/flags

Request:
  - Body: flagsRequest (Pinned, Favorite, Archived); replaced as a unit

Response:
  - 200: The updated note
  - 403: FORBIDDEN for grantees
  - 404: Missing note or no access
*/
func (handler *Handler) setFlags(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input flagsRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	note, err := handler.noteService.SetFlags(request.Context(), requestutil.Param(request, "id"), userID, FlagsInput{
		Pinned:   input.Pinned,
		Favorite: input.Favorite,
		Archived: input.Archived,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, note)
}

/*
Share grants another user access to the note. Owner only.

POST /api/v1/notes/{id}/shares

Request:
  - Body: shareRequest (Username, CanEdit)

Response:
  - 201: The grant
  - 400: VALIDATION_ERROR (self-share, missing username)
  - 403: FORBIDDEN for grantees
  - 404: Missing note, no access, or unknown grantee
*/
func (handler *Handler) share(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input shareRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	if input.Username == "" {
		respond.Error(writer, request, validate.RequiredError(FieldUsername, "This field is required"))
		return
	}

	grant, err := handler.noteService.Share(request.Context(), requestutil.Param(request, "id"), userID, input.Username, input.CanEdit)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Created(writer, grant)
}

/*
Unshare revokes a user's access to the note. Owner only.

DELETE /api/v1/notes/{id}/shares/{username}

Response:
  - 204: Revoked
  - 403: FORBIDDEN for grantees
  - 404: Missing note, no access, unknown user, or no grant
*/
func (handler *Handler) unshare(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	noteID := requestutil.Param(request, "id")
	username := requestutil.Param(request, "username")

	if err := handler.noteService.Unshare(request.Context(), noteID, userID, username); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}
