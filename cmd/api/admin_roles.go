package main

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"gamereviews/internal/rbac"
	"gamereviews/internal/store"

	"github.com/go-chi/chi/v5"
)

type changeRolePayload struct {
	Role string `json:"role" validate:"required"`
}

// changeUserRoleHandler godoc
//
//	@Summary		Change a user's role
//	@Description	Admin-only. The first-registered account's role can never be changed, not even by another admin.
//	@Tags			admin
//	@Accept			json
//	@Produce		json
//	@Param			userID	path		int					true	"User ID"
//	@Param			payload	body		changeRolePayload	true	"New role"
//	@Success		200		{object}	map[string]string
//	@Failure		400		{object}	error	"Unknown role"
//	@Failure		403		{object}	error	"Not admin, or target is the first account"
//	@Failure		404		{object}	error	"User not found"
//	@Security		ApiKeyAuth
//	@Router			/admin/users/{userID}/role [put]
func (app *application) changeUserRoleHandler(w http.ResponseWriter, r *http.Request) {
	userIDStr := chi.URLParam(r, "userID")
	userID, err := strconv.ParseInt(userIDStr, 10, 64)
	if err != nil || userID <= 0 {
		app.badRequestResponse(w, r, fmt.Errorf("invalid userID"))
		return
	}

	var payload changeRolePayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if !rbac.Valid(payload.Role) {
		app.badRequestResponse(w, r, fmt.Errorf("unknown role: %s", payload.Role))
		return
	}

	if err := app.store.Users.UpdateRole(r.Context(), userID, payload.Role); err != nil {
		switch {
		case errors.Is(err, store.ErrFirstAccountRole):
			// Distinct from a plain role-gate denial but still terminal.
			app.forbiddenResponse(w, r)
		case errors.Is(err, store.ErrNotFound):
			app.notFoundResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, map[string]string{"message": "role updated"}); err != nil {
		app.internalServerError(w, r, err)
	}
}
