package main

import (
	"errors"
	"net/http"
	"strconv"

	"gamereviews/internal/store"

	"github.com/go-chi/chi/v5"
)

type CreateCommentPayload struct {
	Body     string `json:"body" validate:"required,max=2000"`
	ParentID *int64 `json:"parent_id" validate:"omitempty,gt=0"`
}

// createCommentHandler godoc
//
//	@Summary		Post a comment
//	@Description	Posts a top-level comment on a game, or a reply when parent_id is set. A reply must target a comment on the same game.
//	@Tags			comments
//	@Accept			json
//	@Produce		json
//	@Param			gameID	path		int						true	"Game ID"
//	@Param			payload	body		CreateCommentPayload	true	"Comment body and optional parent"
//	@Success		201		{object}	store.Comment
//	@Failure		400		{object}	error	"Cross-game reply"
//	@Failure		404		{object}	error	"Game or parent comment not found"
//	@Security		ApiKeyAuth
//	@Router			/games/{gameID}/comments [post]
func (app *application) createCommentHandler(w http.ResponseWriter, r *http.Request) {
	gameID, err := strconv.ParseInt(chi.URLParam(r, "gameID"), 10, 64)
	if err != nil || gameID <= 0 {
		app.badRequestResponse(w, r, errors.New("invalid game ID"))
		return
	}

	user := getUserFromContext(r)

	var payload CreateCommentPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	comment := &store.Comment{
		GameID:   gameID,
		UserID:   user.ID,
		ParentID: payload.ParentID,
		Body:     payload.Body,
	}

	if err := app.store.Comments.Create(r.Context(), comment); err != nil {
		switch {
		case errors.Is(err, store.ErrCrossGameReply):
			app.badRequestResponse(w, r, err)
		case errors.Is(err, store.ErrNotFound):
			app.notFoundResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	comment.Username = user.Username

	if err := app.jsonResponse(w, http.StatusCreated, comment); err != nil {
		app.internalServerError(w, r, err)
	}
}

// listGameCommentsHandler godoc
//
//	@Summary		List a game's comments
//	@Description	Top-level comments only, newest first, with like counts. Replies load per thread.
//	@Tags			comments
//	@Produce		json
//	@Param			gameID	path	int	true	"Game ID"
//	@Success		200		{array}	store.Comment
//	@Router			/games/{gameID}/comments [get]
func (app *application) listGameCommentsHandler(w http.ResponseWriter, r *http.Request) {
	gameID, err := strconv.ParseInt(chi.URLParam(r, "gameID"), 10, 64)
	if err != nil || gameID <= 0 {
		app.badRequestResponse(w, r, errors.New("invalid game ID"))
		return
	}

	comments, err := app.store.Comments.ListTopLevel(r.Context(), gameID)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, comments); err != nil {
		app.internalServerError(w, r, err)
	}
}

// listRepliesHandler godoc
//
//	@Summary		List replies to a comment
//	@Description	Direct replies in posting order, oldest first
//	@Tags			comments
//	@Produce		json
//	@Param			commentID	path	int	true	"Comment ID"
//	@Success		200			{array}	store.Comment
//	@Failure		404			{object}	error
//	@Router			/comments/{commentID}/replies [get]
func (app *application) listRepliesHandler(w http.ResponseWriter, r *http.Request) {
	commentID, err := strconv.ParseInt(chi.URLParam(r, "commentID"), 10, 64)
	if err != nil || commentID <= 0 {
		app.badRequestResponse(w, r, errors.New("invalid comment ID"))
		return
	}

	if _, err := app.store.Comments.GetByID(r.Context(), commentID); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			app.notFoundResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	replies, err := app.store.Comments.GetReplies(r.Context(), commentID)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, replies); err != nil {
		app.internalServerError(w, r, err)
	}
}

type UpdateCommentPayload struct {
	Body string `json:"body" validate:"required,max=2000"`
}

// editCommentHandler godoc
//
//	@Summary		Edit own comment
//	@Description	Replaces the body and marks the comment edited. Only the author can edit; editing someone else's comment reads as not found.
//	@Tags			comments
//	@Accept			json
//	@Produce		json
//	@Param			commentID	path		int						true	"Comment ID"
//	@Param			payload		body		UpdateCommentPayload	true	"New body"
//	@Success		200			{object}	store.Comment
//	@Failure		404			{object}	error
//	@Security		ApiKeyAuth
//	@Router			/comments/{commentID} [patch]
func (app *application) editCommentHandler(w http.ResponseWriter, r *http.Request) {
	commentID, err := strconv.ParseInt(chi.URLParam(r, "commentID"), 10, 64)
	if err != nil || commentID <= 0 {
		app.badRequestResponse(w, r, errors.New("invalid comment ID"))
		return
	}

	user := getUserFromContext(r)

	var payload UpdateCommentPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := app.store.Comments.UpdateBody(r.Context(), commentID, user.ID, payload.Body); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			app.notFoundResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	comment, err := app.store.Comments.GetByID(r.Context(), commentID)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, comment); err != nil {
		app.internalServerError(w, r, err)
	}
}

// deleteCommentHandler godoc
//
//	@Summary		Delete a comment
//	@Description	Moderation-only. Removes the comment along with every reply beneath it and their likes.
//	@Tags			comments
//	@Produce		json
//	@Param			commentID	path		int	true	"Comment ID"
//	@Success		200			{object}	map[string]string
//	@Failure		403			{object}	error
//	@Failure		404			{object}	error
//	@Security		ApiKeyAuth
//	@Router			/comments/{commentID} [delete]
func (app *application) deleteCommentHandler(w http.ResponseWriter, r *http.Request) {
	commentID, err := strconv.ParseInt(chi.URLParam(r, "commentID"), 10, 64)
	if err != nil || commentID <= 0 {
		app.badRequestResponse(w, r, errors.New("invalid comment ID"))
		return
	}

	if err := app.store.Comments.Delete(r.Context(), commentID); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			app.notFoundResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, map[string]string{"message": "comment deleted"}); err != nil {
		app.internalServerError(w, r, err)
	}
}

// likeCommentHandler godoc
//
//	@Summary		Like a comment
//	@Description	One like per user per comment. A second like answers with a conflict.
//	@Tags			comments
//	@Produce		json
//	@Param			commentID	path		int	true	"Comment ID"
//	@Success		200			{object}	map[string]int
//	@Failure		404			{object}	error
//	@Failure		409			{object}	error	"Already liked"
//	@Security		ApiKeyAuth
//	@Router			/comments/{commentID}/like [post]
func (app *application) likeCommentHandler(w http.ResponseWriter, r *http.Request) {
	commentID, err := strconv.ParseInt(chi.URLParam(r, "commentID"), 10, 64)
	if err != nil || commentID <= 0 {
		app.badRequestResponse(w, r, errors.New("invalid comment ID"))
		return
	}

	user := getUserFromContext(r)

	if err := app.store.Likes.Like(r.Context(), user.ID, commentID); err != nil {
		switch {
		case errors.Is(err, store.ErrAlreadyLiked):
			app.conflictResponse(w, r, err)
		case errors.Is(err, store.ErrNotFound):
			app.notFoundResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	count, err := app.store.Likes.CountForComment(r.Context(), commentID)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, map[string]int{"like_count": count}); err != nil {
		app.internalServerError(w, r, err)
	}
}

// unlikeCommentHandler godoc
//
//	@Summary		Remove own like
//	@Tags			comments
//	@Produce		json
//	@Param			commentID	path		int	true	"Comment ID"
//	@Success		200			{object}	map[string]int
//	@Failure		404			{object}	error	"No like to remove"
//	@Security		ApiKeyAuth
//	@Router			/comments/{commentID}/like [delete]
func (app *application) unlikeCommentHandler(w http.ResponseWriter, r *http.Request) {
	commentID, err := strconv.ParseInt(chi.URLParam(r, "commentID"), 10, 64)
	if err != nil || commentID <= 0 {
		app.badRequestResponse(w, r, errors.New("invalid comment ID"))
		return
	}

	user := getUserFromContext(r)

	if err := app.store.Likes.Unlike(r.Context(), user.ID, commentID); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			app.notFoundResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	count, err := app.store.Likes.CountForComment(r.Context(), commentID)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, map[string]int{"like_count": count}); err != nil {
		app.internalServerError(w, r, err)
	}
}
