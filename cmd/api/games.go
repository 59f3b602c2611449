package main

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"gamereviews/internal/store"

	"github.com/go-chi/chi/v5"
)

const releaseDateLayout = "2006-01-02"

type CreateGamePayload struct {
	Title       string   `json:"title" validate:"required,max=255"`
	Description string   `json:"description" validate:"required"`
	ReleaseDate string   `json:"release_date" validate:"required"`
	Developer   string   `json:"developer" validate:"required,max=255"`
	Publisher   string   `json:"publisher" validate:"max=255"`
	Genre       string   `json:"genre" validate:"required,max=100"`
	SteamAppID  *int64   `json:"steam_app_id" validate:"omitempty,gt=0"`
	ParentID    *int64   `json:"parent_id" validate:"omitempty,gt=0"`
	Tags        []string `json:"tags" validate:"dive,max=50"`
	Categories  []string `json:"categories" validate:"dive,max=50"`
	Platforms   []string `json:"platforms" validate:"dive,max=50"`
}

// createGameHandler godoc
//
//	@Summary		Create a catalog entry
//	@Description	Admin-only. A parent_id links a DLC to its base game; the base game must itself be parentless.
//	@Tags			games
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		CreateGamePayload	true	"Game fields"
//	@Success		201		{object}	store.Game
//	@Failure		400		{object}	error
//	@Failure		403		{object}	error
//	@Security		ApiKeyAuth
//	@Router			/games [post]
func (app *application) createGameHandler(w http.ResponseWriter, r *http.Request) {
	var payload CreateGamePayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	releaseDate, err := time.Parse(releaseDateLayout, payload.ReleaseDate)
	if err != nil {
		app.badRequestResponse(w, r, fmt.Errorf("release_date must be YYYY-MM-DD"))
		return
	}

	game := &store.Game{
		Title:       payload.Title,
		Description: payload.Description,
		ReleaseDate: releaseDate,
		Developer:   payload.Developer,
		Publisher:   payload.Publisher,
		Genre:       payload.Genre,
		SteamAppID:  payload.SteamAppID,
		ParentID:    payload.ParentID,
	}

	taxonomies := map[string][]string{
		store.TaxonomyTags:       payload.Tags,
		store.TaxonomyCategories: payload.Categories,
		store.TaxonomyPlatforms:  payload.Platforms,
	}

	if err := app.store.Games.Create(r.Context(), game, taxonomies); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			app.badRequestResponse(w, r, errors.New("parent game does not exist"))
		case errors.Is(err, store.ErrNestedDLC):
			app.badRequestResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	if err := app.jsonResponse(w, http.StatusCreated, game); err != nil {
		app.internalServerError(w, r, err)
	}
}

// listGamesHandler godoc
//
//	@Summary		List games
//	@Description	Newest first. The default page doubles as the home feed.
//	@Tags			games
//	@Produce		json
//	@Param			limit	query		int	false	"Page size (default 10, max 50)"
//	@Param			offset	query		int	false	"Offset"
//	@Success		200		{array}		store.Game
//	@Router			/games [get]
func (app *application) listGamesHandler(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 || parsed > 50 {
			app.badRequestResponse(w, r, errors.New("limit must be between 1 and 50"))
			return
		}
		limit = parsed
	}

	offset := 0
	if v := r.URL.Query().Get("offset"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			app.badRequestResponse(w, r, errors.New("offset must be non-negative"))
			return
		}
		offset = parsed
	}

	games, err := app.store.Games.List(r.Context(), limit, offset)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, games); err != nil {
		app.internalServerError(w, r, err)
	}
}

// GameDetailResponse is the full game page payload. SteamStats is nil and
// SteamStatsAvailable false when the aggregator is degraded; the page
// still renders. HasReviewed and OwnReview personalize the page when the
// request carries a valid bearer token.
type GameDetailResponse struct {
	Game                *store.Game    `json:"game"`
	Children            []store.Game   `json:"children,omitempty"`
	Tags                []string       `json:"tags,omitempty"`
	Categories          []string       `json:"categories,omitempty"`
	Platforms           []string       `json:"platforms,omitempty"`
	AverageRating       float64        `json:"average_rating"`
	TotalReviews        int            `json:"total_reviews"`
	LatestReviews       []store.Review `json:"latest_reviews,omitempty"`
	HasReviewed         bool           `json:"has_reviewed"`
	OwnReview           *store.Review  `json:"own_review,omitempty"`
	SteamStats          any            `json:"steam_stats,omitempty"`
	SteamStatsAvailable bool           `json:"steam_stats_available"`
}

// getGameHandler godoc
//
//	@Summary		Game detail
//	@Description	Game with DLC children, taxonomies, freshly computed rating average, the two latest reviews and third-party review stats when the aggregator answers. With a valid bearer token the caller's own review is surfaced alongside.
//	@Tags			games
//	@Produce		json
//	@Param			gameID	path		int	true	"Game ID"
//	@Success		200		{object}	GameDetailResponse
//	@Failure		404		{object}	error
//	@Router			/games/{gameID} [get]
func (app *application) getGameHandler(w http.ResponseWriter, r *http.Request) {
	gameID, err := strconv.ParseInt(chi.URLParam(r, "gameID"), 10, 64)
	if err != nil || gameID <= 0 {
		app.badRequestResponse(w, r, errors.New("invalid game ID"))
		return
	}

	game, err := app.store.Games.GetByID(r.Context(), gameID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			app.notFoundResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	app.renderGameDetail(w, r, game)
}

// getGameByCodeHandler godoc
//
//	@Summary		Game detail by share code
//	@Tags			games
//	@Produce		json
//	@Param			code	path		string	true	"Short share code"
//	@Success		200		{object}	GameDetailResponse
//	@Failure		404		{object}	error
//	@Router			/g/{code} [get]
func (app *application) getGameByCodeHandler(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	game, err := app.store.Games.GetByCode(r.Context(), code)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			app.notFoundResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	app.renderGameDetail(w, r, game)
}

func (app *application) renderGameDetail(w http.ResponseWriter, r *http.Request, game *store.Game) {
	ctx := r.Context()

	resp := GameDetailResponse{Game: game}

	children, err := app.store.Games.GetChildren(ctx, game.ID)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}
	resp.Children = children

	for kind, dst := range map[string]*[]string{
		store.TaxonomyTags:       &resp.Tags,
		store.TaxonomyCategories: &resp.Categories,
		store.TaxonomyPlatforms:  &resp.Platforms,
	} {
		values, err := app.store.Games.GetTaxonomy(ctx, game.ID, kind)
		if err != nil {
			app.internalServerError(w, r, err)
			return
		}
		*dst = values
	}

	total, average, err := app.store.Reviews.Stats(ctx, game.ID)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}
	resp.TotalReviews = total
	resp.AverageRating = math.Round(average*10) / 10

	latest, err := app.store.Reviews.Latest(ctx, game.ID, 2)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}
	resp.LatestReviews = latest

	// The detail routes are public, but a logged-in caller gets their own
	// review surfaced so the page can offer "write" vs "edit".
	if caller := app.maybeUserFromRequest(r); caller != nil {
		own, err := app.store.Reviews.GetByUserAndGame(ctx, caller.ID, game.ID)
		switch {
		case err == nil:
			resp.HasReviewed = true
			resp.OwnReview = own
		case errors.Is(err, store.ErrNotFound):
		default:
			app.internalServerError(w, r, err)
			return
		}
	}

	if game.SteamAppID != nil {
		stats, err := app.steamspy.FetchReviewStats(ctx, *game.SteamAppID)
		if err == nil {
			resp.SteamStats = stats
			resp.SteamStatsAvailable = true
		}
		// Degraded aggregator never fails the page.
	}

	if err := app.jsonResponse(w, http.StatusOK, resp); err != nil {
		app.internalServerError(w, r, err)
	}
}

type UpdateGamePayload struct {
	Title       *string  `json:"title" validate:"omitempty,max=255"`
	Description *string  `json:"description"`
	ReleaseDate *string  `json:"release_date"`
	Developer   *string  `json:"developer" validate:"omitempty,max=255"`
	Publisher   *string  `json:"publisher" validate:"omitempty,max=255"`
	Genre       *string  `json:"genre" validate:"omitempty,max=100"`
	SteamAppID  *int64   `json:"steam_app_id" validate:"omitempty,gt=0"`
	Tags        []string `json:"tags" validate:"dive,max=50"`
	Categories  []string `json:"categories" validate:"dive,max=50"`
	Platforms   []string `json:"platforms" validate:"dive,max=50"`
}

// updateGameHandler godoc
//
//	@Summary		Edit a catalog entry
//	@Description	Admin or moderator. Patches the provided fields; taxonomy lists replace the existing set when present.
//	@Tags			games
//	@Accept			json
//	@Produce		json
//	@Param			gameID	path		int					true	"Game ID"
//	@Param			payload	body		UpdateGamePayload	true	"Fields to update"
//	@Success		200		{object}	store.Game
//	@Failure		400		{object}	error
//	@Failure		403		{object}	error
//	@Failure		404		{object}	error
//	@Security		ApiKeyAuth
//	@Router			/games/{gameID} [patch]
func (app *application) updateGameHandler(w http.ResponseWriter, r *http.Request) {
	gameID, err := strconv.ParseInt(chi.URLParam(r, "gameID"), 10, 64)
	if err != nil || gameID <= 0 {
		app.badRequestResponse(w, r, errors.New("invalid game ID"))
		return
	}

	var payload UpdateGamePayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	updates := map[string]interface{}{}
	if payload.Title != nil {
		updates["title"] = *payload.Title
	}
	if payload.Description != nil {
		updates["description"] = *payload.Description
	}
	if payload.ReleaseDate != nil {
		releaseDate, err := time.Parse(releaseDateLayout, *payload.ReleaseDate)
		if err != nil {
			app.badRequestResponse(w, r, fmt.Errorf("release_date must be YYYY-MM-DD"))
			return
		}
		updates["release_date"] = releaseDate
	}
	if payload.Developer != nil {
		updates["developer"] = *payload.Developer
	}
	if payload.Publisher != nil {
		updates["publisher"] = *payload.Publisher
	}
	if payload.Genre != nil {
		updates["genre"] = *payload.Genre
	}
	if payload.SteamAppID != nil {
		updates["steam_app_id"] = *payload.SteamAppID
	}

	if len(updates) > 0 {
		if err := app.store.Games.Update(r.Context(), gameID, updates); err != nil {
			switch {
			case errors.Is(err, store.ErrNotFound):
				app.notFoundResponse(w, r, err)
			default:
				app.internalServerError(w, r, err)
			}
			return
		}
	}

	for kind, values := range map[string][]string{
		store.TaxonomyTags:       payload.Tags,
		store.TaxonomyCategories: payload.Categories,
		store.TaxonomyPlatforms:  payload.Platforms,
	} {
		if values == nil {
			continue
		}
		if err := app.store.Games.ReplaceTaxonomy(r.Context(), gameID, kind, values); err != nil {
			app.internalServerError(w, r, err)
			return
		}
	}

	game, err := app.store.Games.GetByID(r.Context(), gameID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			app.notFoundResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, game); err != nil {
		app.internalServerError(w, r, err)
	}
}

// deleteGameHandler godoc
//
//	@Summary		Delete a catalog entry
//	@Description	Admin-only. Comments, reviews, likes and taxonomy rows cascade.
//	@Tags			games
//	@Produce		json
//	@Param			gameID	path		int	true	"Game ID"
//	@Success		200		{object}	map[string]string
//	@Failure		403		{object}	error
//	@Failure		404		{object}	error
//	@Security		ApiKeyAuth
//	@Router			/games/{gameID} [delete]
func (app *application) deleteGameHandler(w http.ResponseWriter, r *http.Request) {
	gameID, err := strconv.ParseInt(chi.URLParam(r, "gameID"), 10, 64)
	if err != nil || gameID <= 0 {
		app.badRequestResponse(w, r, errors.New("invalid game ID"))
		return
	}

	if err := app.store.Games.Delete(r.Context(), gameID); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			app.notFoundResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, map[string]string{"message": "game deleted"}); err != nil {
		app.internalServerError(w, r, err)
	}
}

// uploadGameMediaHandler godoc
//
//	@Summary		Upload game media
//	@Description	Streams an image to object storage and records its public URL on the game. Extension is checked against the allow-list before any upload happens; a failed upload records nothing.
//	@Tags			games
//	@Accept			mpfd
//	@Produce		json
//	@Param			gameID	path		int		true	"Game ID"
//	@Param			media	formData	file	true	"Image file, 10MB limit"
//	@Success		200		{object}	map[string]string
//	@Failure		400		{object}	error	"Disallowed extension"
//	@Failure		404		{object}	error
//	@Failure		502		{object}	error	"Upload failed"
//	@Security		ApiKeyAuth
//	@Router			/games/{gameID}/media [post]
func (app *application) uploadGameMediaHandler(w http.ResponseWriter, r *http.Request) {
	gameID, err := strconv.ParseInt(chi.URLParam(r, "gameID"), 10, 64)
	if err != nil || gameID <= 0 {
		app.badRequestResponse(w, r, errors.New("invalid game ID"))
		return
	}

	// The game must exist before we touch object storage, so a failed
	// upload can never leave a URL pointing at nothing and vice versa.
	if _, err := app.store.Games.GetByID(r.Context(), gameID); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			app.notFoundResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	if err := r.ParseMultipartForm(10 << 20); err != nil {
		app.badRequestResponse(w, r, errors.New("unable to parse form, file size limit is 10MB"))
		return
	}

	file, fileHeader, err := r.FormFile("media")
	if err != nil {
		app.badRequestResponse(w, r, errors.New("unable to retrieve file"))
		return
	}
	defer file.Close()

	url, err := app.storeMedia(r.Context(), file, fileHeader.Filename, "games", mediaPublicID("game", gameID))
	if err != nil {
		if errors.Is(err, ErrUnsupportedMediaType) {
			app.badRequestResponse(w, r, err)
			return
		}
		app.uploadFailedResponse(w, r, err)
		return
	}

	if err := app.store.Games.AddMediaURL(r.Context(), gameID, "image_url", url); err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, map[string]string{"image_url": url}); err != nil {
		app.internalServerError(w, r, err)
	}
}
