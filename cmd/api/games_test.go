package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gamereviews/internal/steamspy"

	"github.com/stretchr/testify/require"
)

func TestCreateGame_PlainUserIsForbidden(t *testing.T) {
	app, _ := newTestApplication(t)
	mux := app.mount()

	registerUser(t, app, mux, "alice", "alice@example.com")
	bob := registerUser(t, app, mux, "bob", "bob@example.com")

	req := jsonRequest(t, http.MethodPost, "/v1/games", CreateGamePayload{
		Title:       "Elden Circle",
		Description: "an rpg",
		ReleaseDate: "2024-03-01",
		Developer:   "studio",
		Genre:       "rpg",
	})
	rr := executeRequest(authorize(t, app, req, bob), mux)
	require.Equal(t, http.StatusForbidden, rr.Code)
}

func TestCreateGame_AdminSucceeds(t *testing.T) {
	app, _ := newTestApplication(t)
	mux := app.mount()

	admin := registerUser(t, app, mux, "alice", "alice@example.com")
	game := createGame(t, app, mux, admin, "Elden Circle")

	require.NotZero(t, game.ID)
	require.NotEmpty(t, game.Code)
}

func TestCreateGame_DLCUnderDLCIsRejected(t *testing.T) {
	app, _ := newTestApplication(t)
	mux := app.mount()

	admin := registerUser(t, app, mux, "alice", "alice@example.com")
	base := createGame(t, app, mux, admin, "Base Game")

	req := jsonRequest(t, http.MethodPost, "/v1/games", CreateGamePayload{
		Title:       "First DLC",
		Description: "expansion",
		ReleaseDate: "2024-06-01",
		Developer:   "studio",
		Genre:       "rpg",
		ParentID:    &base.ID,
	})
	rr := executeRequest(authorize(t, app, req, admin), mux)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var envelope struct {
		Data struct {
			ID int64 `json:"id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &envelope))

	req = jsonRequest(t, http.MethodPost, "/v1/games", CreateGamePayload{
		Title:       "DLC of a DLC",
		Description: "too deep",
		ReleaseDate: "2024-09-01",
		Developer:   "studio",
		Genre:       "rpg",
		ParentID:    &envelope.Data.ID,
	})
	rr = executeRequest(authorize(t, app, req, admin), mux)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCreateGame_MissingParentIsRejected(t *testing.T) {
	app, _ := newTestApplication(t)
	mux := app.mount()

	admin := registerUser(t, app, mux, "alice", "alice@example.com")

	missing := int64(424242)
	req := jsonRequest(t, http.MethodPost, "/v1/games", CreateGamePayload{
		Title:       "Orphan DLC",
		Description: "expansion",
		ReleaseDate: "2024-06-01",
		Developer:   "studio",
		Genre:       "rpg",
		ParentID:    &missing,
	})
	rr := executeRequest(authorize(t, app, req, admin), mux)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestGameDetail_ByShareCode(t *testing.T) {
	app, _ := newTestApplication(t)
	mux := app.mount()

	admin := registerUser(t, app, mux, "alice", "alice@example.com")
	game := createGame(t, app, mux, admin, "Elden Circle")

	req := jsonRequest(t, http.MethodGet, "/v1/g/"+game.Code, nil)
	rr := executeRequest(req, mux)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var envelope struct {
		Data GameDetailResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &envelope))
	require.Equal(t, game.ID, envelope.Data.Game.ID)
}

func TestGameDetail_SteamStatsPresentWhenUpstreamAnswers(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"positive": 300, "negative": 100}`)
	}))
	defer upstream.Close()

	app, db := newTestApplication(t)
	app.steamspy = steamspy.NewClientWithBaseURL(time.Second, upstream.URL)
	mux := app.mount()

	admin := registerUser(t, app, mux, "alice", "alice@example.com")
	game := createGame(t, app, mux, admin, "Elden Circle")

	appID := int64(12345)
	db.mu.Lock()
	db.games[game.ID].SteamAppID = &appID
	db.mu.Unlock()

	req := jsonRequest(t, http.MethodGet, fmt.Sprintf("/v1/games/%d", game.ID), nil)
	rr := executeRequest(req, mux)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var envelope struct {
		Data GameDetailResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &envelope))
	require.True(t, envelope.Data.SteamStatsAvailable)
	require.NotNil(t, envelope.Data.SteamStats)
}

// A degraded aggregator omits the stats block but never fails the page.
func TestGameDetail_SteamStatsDegradedStillRenders(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer upstream.Close()

	app, db := newTestApplication(t)
	app.steamspy = steamspy.NewClientWithBaseURL(time.Second, upstream.URL)
	mux := app.mount()

	admin := registerUser(t, app, mux, "alice", "alice@example.com")
	game := createGame(t, app, mux, admin, "Elden Circle")

	appID := int64(12345)
	db.mu.Lock()
	db.games[game.ID].SteamAppID = &appID
	db.mu.Unlock()

	req := jsonRequest(t, http.MethodGet, fmt.Sprintf("/v1/games/%d", game.ID), nil)
	rr := executeRequest(req, mux)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var envelope struct {
		Data GameDetailResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &envelope))
	require.False(t, envelope.Data.SteamStatsAvailable)
	require.Nil(t, envelope.Data.SteamStats)
}

// A logged-in critic sees their own review on the detail page; the same
// page stays anonymous without a token.
func TestGameDetail_OwnReviewSurfacedForCritic(t *testing.T) {
	app, _ := newTestApplication(t)
	mux := app.mount()

	admin := registerUser(t, app, mux, "alice", "alice@example.com")
	bob := registerUser(t, app, mux, "bob", "bob@example.com")
	bob = promote(t, app, mux, admin, bob, "critic")
	game := createGame(t, app, mux, admin, "Elden Circle")

	rr := postReview(t, app, mux, bob, game.ID, 4)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	req := jsonRequest(t, http.MethodGet, fmt.Sprintf("/v1/games/%d", game.ID), nil)
	rr = executeRequest(authorize(t, app, req, bob), mux)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var envelope struct {
		Data GameDetailResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &envelope))
	require.True(t, envelope.Data.HasReviewed)
	require.NotNil(t, envelope.Data.OwnReview)
	require.Equal(t, bob.ID, envelope.Data.OwnReview.UserID)

	req = jsonRequest(t, http.MethodGet, fmt.Sprintf("/v1/games/%d", game.ID), nil)
	rr = executeRequest(req, mux)
	require.Equal(t, http.StatusOK, rr.Code)

	envelope.Data = GameDetailResponse{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &envelope))
	require.False(t, envelope.Data.HasReviewed)
	require.Nil(t, envelope.Data.OwnReview)
}

func TestGameDetail_NoReviewYetForLoggedInCritic(t *testing.T) {
	app, _ := newTestApplication(t)
	mux := app.mount()

	admin := registerUser(t, app, mux, "alice", "alice@example.com")
	bob := registerUser(t, app, mux, "bob", "bob@example.com")
	bob = promote(t, app, mux, admin, bob, "critic")
	game := createGame(t, app, mux, admin, "Elden Circle")

	req := jsonRequest(t, http.MethodGet, fmt.Sprintf("/v1/games/%d", game.ID), nil)
	rr := executeRequest(authorize(t, app, req, bob), mux)
	require.Equal(t, http.StatusOK, rr.Code)

	var envelope struct {
		Data GameDetailResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &envelope))
	require.False(t, envelope.Data.HasReviewed)
	require.Nil(t, envelope.Data.OwnReview)
}

// Taxonomy rows are written by the same store call that creates the game,
// so a created game always carries its full tag set.
func TestCreateGame_TaxonomyStoredWithGame(t *testing.T) {
	app, db := newTestApplication(t)
	mux := app.mount()

	admin := registerUser(t, app, mux, "alice", "alice@example.com")

	req := jsonRequest(t, http.MethodPost, "/v1/games", CreateGamePayload{
		Title:       "Elden Circle",
		Description: "an rpg",
		ReleaseDate: "2024-03-01",
		Developer:   "studio",
		Genre:       "rpg",
		Tags:        []string{"open-world", "soulslike"},
		Platforms:   []string{"pc"},
	})
	rr := executeRequest(authorize(t, app, req, admin), mux)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var envelope struct {
		Data struct {
			ID int64 `json:"id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &envelope))

	db.mu.Lock()
	defer db.mu.Unlock()
	require.ElementsMatch(t, []string{"open-world", "soulslike"}, db.taxonomy[envelope.Data.ID]["tags"])
	require.ElementsMatch(t, []string{"pc"}, db.taxonomy[envelope.Data.ID]["platforms"])
}

func TestGameDetail_MissingGameIs404(t *testing.T) {
	app, _ := newTestApplication(t)
	mux := app.mount()

	req := jsonRequest(t, http.MethodGet, "/v1/games/9999", nil)
	rr := executeRequest(req, mux)
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestListGames_RejectsOversizedLimit(t *testing.T) {
	app, _ := newTestApplication(t)
	mux := app.mount()

	req := jsonRequest(t, http.MethodGet, "/v1/games?limit=500", nil)
	rr := executeRequest(req, mux)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestUploadGameMedia_DisallowedExtensionRejectedBeforeUpload(t *testing.T) {
	app, db := newTestApplication(t)
	mux := app.mount()

	admin := registerUser(t, app, mux, "alice", "alice@example.com")
	game := createGame(t, app, mux, admin, "Elden Circle")

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("media", "payload.exe")
	require.NoError(t, err)
	_, err = part.Write([]byte("MZ fake binary"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/v1/games/%d/media", game.ID), &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := executeRequest(authorize(t, app, req, admin), mux)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	db.mu.Lock()
	defer db.mu.Unlock()
	require.Nil(t, db.games[game.ID].ImageURL)
}
