package main

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"

	"gamereviews/internal/store"

	"github.com/go-chi/chi/v5"
)

type CreateReviewPayload struct {
	Rating int    `json:"rating" validate:"required,min=1,max=5"`
	Title  string `json:"title" validate:"required,max=255"`
	Body   string `json:"body" validate:"required"`
}

// createReviewHandler godoc
//
//	@Summary		Publish a review
//	@Description	Critic-only. One review per critic per game; a second attempt answers with a conflict and changes nothing.
//	@Tags			reviews
//	@Accept			json
//	@Produce		json
//	@Param			gameID	path		int					true	"Game ID"
//	@Param			payload	body		CreateReviewPayload	true	"Rating 1-5, title and body"
//	@Success		201		{object}	store.Review
//	@Failure		400		{object}	error	"Rating out of range"
//	@Failure		403		{object}	error
//	@Failure		404		{object}	error
//	@Failure		409		{object}	error	"Already reviewed"
//	@Security		ApiKeyAuth
//	@Router			/games/{gameID}/reviews [post]
func (app *application) createReviewHandler(w http.ResponseWriter, r *http.Request) {
	gameID, err := strconv.ParseInt(chi.URLParam(r, "gameID"), 10, 64)
	if err != nil || gameID <= 0 {
		app.badRequestResponse(w, r, errors.New("invalid game ID"))
		return
	}

	user := getUserFromContext(r)

	var payload CreateReviewPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	review := &store.Review{
		GameID: gameID,
		UserID: user.ID,
		Rating: payload.Rating,
		Title:  payload.Title,
		Body:   payload.Body,
	}

	if err := app.store.Reviews.Create(r.Context(), review); err != nil {
		switch {
		case errors.Is(err, store.ErrDuplicateReview):
			app.conflictResponse(w, r, err)
		case errors.Is(err, store.ErrNotFound):
			app.notFoundResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	review.Username = user.Username
	review.Publication = user.Publication

	if err := app.jsonResponse(w, http.StatusCreated, review); err != nil {
		app.internalServerError(w, r, err)
	}
}

// GameReviewsResponse pairs the review list with the aggregate numbers
// computed from the same rows.
type GameReviewsResponse struct {
	Reviews       []store.Review `json:"reviews"`
	TotalReviews  int            `json:"total_reviews"`
	AverageRating float64        `json:"average_rating"`
}

// listGameReviewsHandler godoc
//
//	@Summary		List a game's reviews
//	@Description	Newest first, with reviewer byline, plus the count and average recomputed from current rows.
//	@Tags			reviews
//	@Produce		json
//	@Param			gameID	path		int	true	"Game ID"
//	@Success		200		{object}	GameReviewsResponse
//	@Router			/games/{gameID}/reviews [get]
func (app *application) listGameReviewsHandler(w http.ResponseWriter, r *http.Request) {
	gameID, err := strconv.ParseInt(chi.URLParam(r, "gameID"), 10, 64)
	if err != nil || gameID <= 0 {
		app.badRequestResponse(w, r, errors.New("invalid game ID"))
		return
	}

	reviews, err := app.store.Reviews.ListByGame(r.Context(), gameID)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	total, average, err := app.store.Reviews.Stats(r.Context(), gameID)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	resp := GameReviewsResponse{
		Reviews:       reviews,
		TotalReviews:  total,
		AverageRating: math.Round(average*10) / 10,
	}

	if err := app.jsonResponse(w, http.StatusOK, resp); err != nil {
		app.internalServerError(w, r, err)
	}
}

// markReviewHelpfulHandler godoc
//
//	@Summary		Mark a review helpful
//	@Tags			reviews
//	@Produce		json
//	@Param			reviewID	path		int	true	"Review ID"
//	@Success		200			{object}	map[string]string
//	@Failure		404			{object}	error
//	@Security		ApiKeyAuth
//	@Router			/reviews/{reviewID}/helpful [post]
func (app *application) markReviewHelpfulHandler(w http.ResponseWriter, r *http.Request) {
	app.bumpReviewCounter(w, r, app.store.Reviews.IncrementHelpful, "marked helpful")
}

// reportReviewHandler godoc
//
//	@Summary		Report a review
//	@Tags			reviews
//	@Produce		json
//	@Param			reviewID	path		int	true	"Review ID"
//	@Success		200			{object}	map[string]string
//	@Failure		404			{object}	error
//	@Security		ApiKeyAuth
//	@Router			/reviews/{reviewID}/report [post]
func (app *application) reportReviewHandler(w http.ResponseWriter, r *http.Request) {
	app.bumpReviewCounter(w, r, app.store.Reviews.IncrementReport, "reported")
}

func (app *application) bumpReviewCounter(w http.ResponseWriter, r *http.Request, bump func(ctx context.Context, reviewID int64) error, message string) {
	reviewID, err := strconv.ParseInt(chi.URLParam(r, "reviewID"), 10, 64)
	if err != nil || reviewID <= 0 {
		app.badRequestResponse(w, r, errors.New("invalid review ID"))
		return
	}

	if err := bump(r.Context(), reviewID); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			app.notFoundResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, map[string]string{"message": message}); err != nil {
		app.internalServerError(w, r, err)
	}
}
