package main

import (
	"errors"
	"net/http"

	"gamereviews/internal/rbac"
	"gamereviews/internal/store"
)

// getCurrentUserHandler godoc
//
//	@Summary		Current account details
//	@Tags			users
//	@Produce		json
//	@Success		200	{object}	store.User
//	@Security		ApiKeyAuth
//	@Router			/users/me [get]
func (app *application) getCurrentUserHandler(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)

	if err := app.jsonResponse(w, http.StatusOK, user); err != nil {
		app.internalServerError(w, r, err)
	}
}

type UpdateUserPayload struct {
	Username    *string `json:"username" validate:"omitempty,min=3,max=50"`
	Description *string `json:"description" validate:"omitempty,max=1000"`
	Publication *string `json:"publication" validate:"omitempty,max=255"`
}

// updateUserHandler godoc
//
//	@Summary		Update own profile
//	@Description	Patches profile fields. Description and publication are the critic byline fields; the role itself can only change through the admin endpoint.
//	@Tags			users
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		UpdateUserPayload	true	"Fields to update"
//	@Success		200		{object}	store.User
//	@Failure		400		{object}	error
//	@Security		ApiKeyAuth
//	@Router			/users/me [patch]
func (app *application) updateUserHandler(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)

	var payload UpdateUserPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	updates := map[string]interface{}{}
	if payload.Username != nil {
		updates["username"] = *payload.Username
	}
	if payload.Description != nil {
		updates["description"] = *payload.Description
	}
	if payload.Publication != nil {
		updates["publication"] = *payload.Publication
	}
	if len(updates) == 0 {
		app.badRequestResponse(w, r, errors.New("no fields to update"))
		return
	}

	if err := app.store.Users.UpdateProfile(r.Context(), user.ID, updates); err != nil {
		switch {
		case errors.Is(err, store.ErrDuplicateUsername):
			app.conflictResponse(w, r, err)
		case errors.Is(err, store.ErrNotFound):
			app.notFoundResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	updated, err := app.store.Users.GetByID(r.Context(), user.ID)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, updated); err != nil {
		app.internalServerError(w, r, err)
	}
}

// uploadProfilePictureHandler godoc
//
//	@Summary		Upload profile picture
//	@Description	Uploads a profile image and stores its public URL on the account
//	@Tags			users
//	@Accept			mpfd
//	@Produce		json
//	@Param			profile_picture	formData	file	true	"Image file, 2MB limit"
//	@Success		200				{object}	map[string]string
//	@Failure		400				{object}	error	"Bad form data or disallowed extension"
//	@Failure		502				{object}	error	"Upload failed"
//	@Security		ApiKeyAuth
//	@Router			/users/profile-picture [post]
func (app *application) uploadProfilePictureHandler(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)

	if err := r.ParseMultipartForm(2 << 20); err != nil {
		app.badRequestResponse(w, r, errors.New("unable to parse form, file size limit is 2MB"))
		return
	}

	file, fileHeader, err := r.FormFile("profile_picture")
	if err != nil {
		app.badRequestResponse(w, r, errors.New("unable to retrieve file"))
		return
	}
	defer file.Close()

	url, err := app.storeMedia(r.Context(), file, fileHeader.Filename, "profile_pictures", mediaPublicID("user", user.ID))
	if err != nil {
		if errors.Is(err, ErrUnsupportedMediaType) {
			app.badRequestResponse(w, r, err)
			return
		}
		app.uploadFailedResponse(w, r, err)
		return
	}

	if err := app.store.Users.SetProfilePicture(r.Context(), url, user.ID); err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, map[string]string{"image_url": url}); err != nil {
		app.internalServerError(w, r, err)
	}
}

// deleteCriticAccountHandler godoc
//
//	@Summary		Delete own critic account
//	@Description	Critic self-deletion. Reviews cascade with the account.
//	@Tags			users
//	@Produce		json
//	@Success		200	{object}	map[string]string
//	@Failure		403	{object}	error	"Not a critic"
//	@Security		ApiKeyAuth
//	@Router			/users/me [delete]
func (app *application) deleteCriticAccountHandler(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)

	// Only critics get the self-deletion path; the route-level gate does
	// not cover this handler because /users/me is shared.
	if !rbac.Allowed(rbac.Role(user.Role), rbac.ActionManageCriticProfile) {
		app.forbiddenResponse(w, r)
		return
	}

	if err := app.store.Users.Delete(r.Context(), user.ID); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			app.notFoundResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, map[string]string{"message": "account deleted"}); err != nil {
		app.internalServerError(w, r, err)
	}
}

// criticDashboardHandler godoc
//
//	@Summary		Critic dashboard
//	@Description	The calling critic's own reviews, newest first
//	@Tags			critic
//	@Produce		json
//	@Success		200	{array}	store.Review
//	@Failure		403	{object}	error
//	@Security		ApiKeyAuth
//	@Router			/critic/reviews [get]
func (app *application) criticDashboardHandler(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)

	reviews, err := app.store.Reviews.ListByUser(r.Context(), user.ID)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, reviews); err != nil {
		app.internalServerError(w, r, err)
	}
}
