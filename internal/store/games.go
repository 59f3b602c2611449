package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/speps/go-hashids/v2"
)

var (
	// ErrNestedDLC rejects a parent that is itself a DLC; the hierarchy is
	// two levels deep: base game -> DLC.
	ErrNestedDLC = errors.New("parent game is itself a DLC")
)

// Taxonomy kinds map one-to-one onto the three join tables.
const (
	TaxonomyTags       = "tags"
	TaxonomyCategories = "categories"
	TaxonomyPlatforms  = "platforms"
)

type Game struct {
	ID          int64     `json:"id"`
	Code        string    `json:"code"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	ReleaseDate time.Time `json:"release_date"`
	Developer   string    `json:"developer"`
	Publisher   string    `json:"publisher"`
	Genre       string    `json:"genre"`
	SteamAppID  *int64    `json:"steam_app_id,omitempty"`
	ParentID    *int64    `json:"parent_id,omitempty"`
	ImageURL    *string   `json:"image_url,omitempty"`
	VideoURL    *string   `json:"video_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type GamesStore struct {
	db    *pgxpool.Pool
	codes *hashids.HashID
}

func newGameCodec(salt string) *hashids.HashID {
	hd := hashids.NewData()
	hd.Salt = salt
	hd.MinLength = 6
	hd.Alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	h, err := hashids.NewWithData(hd)
	if err != nil {
		// NewWithData only fails on a bad alphabet, which is fixed above.
		panic(fmt.Sprintf("game codec: %v", err))
	}
	return h
}

// Create inserts the game, stamps it with a short share code derived from
// its id and writes any taxonomy rows, all in one transaction: a failure
// anywhere leaves no half-created game. When a parent is given the parent
// must exist and must be a base game.
func (s *GamesStore) Create(ctx context.Context, game *Game, taxonomies map[string][]string) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		if game.ParentID != nil {
			var parentOfParent *int64
			err := tx.QueryRow(ctx, `SELECT parent_id FROM games WHERE id = $1`, *game.ParentID).Scan(&parentOfParent)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return ErrNotFound
				}
				return err
			}
			if parentOfParent != nil {
				return ErrNestedDLC
			}
		}

		query := `
			INSERT INTO games (title, description, release_date, developer, publisher, genre, steam_app_id, parent_id, image_url, video_url)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING id, created_at, updated_at
		`
		err := tx.QueryRow(ctx, query,
			game.Title,
			game.Description,
			game.ReleaseDate,
			game.Developer,
			game.Publisher,
			game.Genre,
			game.SteamAppID,
			game.ParentID,
			game.ImageURL,
			game.VideoURL,
		).Scan(&game.ID, &game.CreatedAt, &game.UpdatedAt)
		if err != nil {
			return err
		}

		code, err := s.codes.EncodeInt64([]int64{game.ID})
		if err != nil {
			return fmt.Errorf("encode game code: %w", err)
		}
		game.Code = code

		if _, err = tx.Exec(ctx, `UPDATE games SET code = $1 WHERE id = $2`, code, game.ID); err != nil {
			return err
		}

		for kind, values := range taxonomies {
			if len(values) == 0 {
				continue
			}
			if err := s.replaceTaxonomyTx(ctx, tx, game.ID, kind, values); err != nil {
				return err
			}
		}
		return nil
	})
}

const gameColumns = `id, code, title, description, release_date, developer, publisher, genre, steam_app_id, parent_id, image_url, video_url, created_at, updated_at`

func scanGame(row pgx.Row, game *Game) error {
	return row.Scan(
		&game.ID,
		&game.Code,
		&game.Title,
		&game.Description,
		&game.ReleaseDate,
		&game.Developer,
		&game.Publisher,
		&game.Genre,
		&game.SteamAppID,
		&game.ParentID,
		&game.ImageURL,
		&game.VideoURL,
		&game.CreatedAt,
		&game.UpdatedAt,
	)
}

func (s *GamesStore) GetByID(ctx context.Context, gameID int64) (*Game, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	var game Game
	err := scanGame(s.db.QueryRow(ctx, `SELECT `+gameColumns+` FROM games WHERE id = $1`, gameID), &game)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &game, nil
}

func (s *GamesStore) GetByCode(ctx context.Context, code string) (*Game, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	var game Game
	err := scanGame(s.db.QueryRow(ctx, `SELECT `+gameColumns+` FROM games WHERE code = $1`, code), &game)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &game, nil
}

// List returns games newest first, the ordering the home feed shows.
func (s *GamesStore) List(ctx context.Context, limit, offset int) ([]Game, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	rows, err := s.db.Query(ctx, `SELECT `+gameColumns+` FROM games ORDER BY id DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var games []Game
	for rows.Next() {
		var game Game
		if err := scanGame(rows, &game); err != nil {
			return nil, err
		}
		games = append(games, game)
	}
	return games, rows.Err()
}

var validGameFields = map[string]bool{
	"title":        true,
	"description":  true,
	"release_date": true,
	"developer":    true,
	"publisher":    true,
	"genre":        true,
	"steam_app_id": true,
	"image_url":    true,
	"video_url":    true,
}

func (s *GamesStore) Update(ctx context.Context, gameID int64, updates map[string]interface{}) error {
	query, args, err := buildUpdate("games", validGameFields, updates, gameID)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	tag, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the game; comments, reviews, likes, DLC links and join
// rows go with it via the schema's ON DELETE CASCADE.
func (s *GamesStore) Delete(ctx context.Context, gameID int64) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	tag, err := s.db.Exec(ctx, `DELETE FROM games WHERE id = $1`, gameID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GamesStore) GetChildren(ctx context.Context, gameID int64) ([]Game, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	rows, err := s.db.Query(ctx, `SELECT `+gameColumns+` FROM games WHERE parent_id = $1 ORDER BY release_date ASC`, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var games []Game
	for rows.Next() {
		var game Game
		if err := scanGame(rows, &game); err != nil {
			return nil, err
		}
		games = append(games, game)
	}
	return games, rows.Err()
}

func taxonomyTable(kind string) (table, column string, err error) {
	switch kind {
	case TaxonomyTags:
		return "game_tags", "tag", nil
	case TaxonomyCategories:
		return "game_categories", "category", nil
	case TaxonomyPlatforms:
		return "game_platforms", "platform", nil
	default:
		return "", "", fmt.Errorf("unknown taxonomy kind: %s", kind)
	}
}

// ReplaceTaxonomy swaps the full set of tag/category/platform rows for a
// game in one transaction.
func (s *GamesStore) ReplaceTaxonomy(ctx context.Context, gameID int64, kind string, values []string) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		return s.replaceTaxonomyTx(ctx, tx, gameID, kind, values)
	})
}

func (s *GamesStore) replaceTaxonomyTx(ctx context.Context, tx pgx.Tx, gameID int64, kind string, values []string) error {
	table, column, err := taxonomyTable(kind)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE game_id = $1`, table), gameID); err != nil {
		return err
	}
	for _, v := range values {
		_, err := tx.Exec(ctx,
			fmt.Sprintf(`INSERT INTO %s (game_id, %s) VALUES ($1, $2) ON CONFLICT DO NOTHING`, table, column),
			gameID, v)
		if err != nil {
			if isForeignKeyViolation(err) {
				return ErrNotFound
			}
			return err
		}
	}
	return nil
}

func (s *GamesStore) GetTaxonomy(ctx context.Context, gameID int64, kind string) ([]string, error) {
	table, column, err := taxonomyTable(kind)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	rows, err := s.db.Query(ctx,
		fmt.Sprintf(`SELECT %s FROM %s WHERE game_id = $1 ORDER BY %s`, column, table, column), gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

// AddMediaURL records an uploaded asset's public URL on the game row.
func (s *GamesStore) AddMediaURL(ctx context.Context, gameID int64, field, url string) error {
	if field != "image_url" && field != "video_url" {
		return fmt.Errorf("invalid media field: %s", field)
	}

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	tag, err := s.db.Exec(ctx,
		fmt.Sprintf(`UPDATE games SET %s = $1, updated_at = NOW() WHERE id = $2`, field), url, gameID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
