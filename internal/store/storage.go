package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound          = errors.New("resource not found")
	ErrConflict          = errors.New("resource already exists")
	QueryTimeoutDuration = time.Second * 5
)

type Storage struct {
	Users interface {
		Create(context.Context, *User) error
		GetByID(context.Context, int64) (*User, error)
		GetByEmail(context.Context, string) (*User, error)
		UpdateProfile(context.Context, int64, map[string]interface{}) error
		SetProfilePicture(ctx context.Context, url string, userID int64) error
		UpdateRole(ctx context.Context, userID int64, role string) error
		Delete(context.Context, int64) error
	}
	Games interface {
		Create(ctx context.Context, game *Game, taxonomies map[string][]string) error
		GetByID(context.Context, int64) (*Game, error)
		GetByCode(context.Context, string) (*Game, error)
		List(ctx context.Context, limit, offset int) ([]Game, error)
		Update(context.Context, int64, map[string]interface{}) error
		Delete(context.Context, int64) error
		GetChildren(context.Context, int64) ([]Game, error)
		ReplaceTaxonomy(ctx context.Context, gameID int64, kind string, values []string) error
		GetTaxonomy(ctx context.Context, gameID int64, kind string) ([]string, error)
		AddMediaURL(ctx context.Context, gameID int64, field, url string) error
	}
	Comments interface {
		Create(context.Context, *Comment) error
		GetByID(context.Context, int64) (*Comment, error)
		ListTopLevel(ctx context.Context, gameID int64) ([]Comment, error)
		GetReplies(ctx context.Context, commentID int64) ([]Comment, error)
		UpdateBody(ctx context.Context, commentID, userID int64, body string) error
		Delete(context.Context, int64) error
	}
	Reviews interface {
		Create(context.Context, *Review) error
		GetByUserAndGame(ctx context.Context, userID, gameID int64) (*Review, error)
		ListByGame(ctx context.Context, gameID int64) ([]Review, error)
		Latest(ctx context.Context, gameID int64, n int) ([]Review, error)
		ListByUser(ctx context.Context, userID int64) ([]Review, error)
		Stats(ctx context.Context, gameID int64) (int, float64, error)
		IncrementHelpful(ctx context.Context, reviewID int64) error
		IncrementReport(ctx context.Context, reviewID int64) error
	}
	Likes interface {
		Like(ctx context.Context, userID, commentID int64) error
		Unlike(ctx context.Context, userID, commentID int64) error
		CountForComment(ctx context.Context, commentID int64) (int, error)
	}
}

func NewStorage(db *pgxpool.Pool, codeSalt string) Storage {
	return Storage{
		Users:    &UsersStore{db},
		Games:    &GamesStore{db: db, codes: newGameCodec(codeSalt)},
		Comments: &CommentsStore{db},
		Reviews:  &ReviewsStore{db},
		Likes:    &LikesStore{db},
	}
}

// buildUpdate assembles a dynamic UPDATE from a field map, rejecting any
// column not on the whitelist. The row id is always the last argument.
func buildUpdate(table string, validFields map[string]bool, updates map[string]interface{}, id int64) (string, []interface{}, error) {
	if len(updates) == 0 {
		return "", nil, errors.New("no fields to update")
	}

	setClauses := []string{}
	args := []interface{}{}
	argCounter := 1

	for field, value := range updates {
		if !validFields[field] {
			return "", nil, fmt.Errorf("invalid field name: %s", field)
		}
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", field, argCounter))
		args = append(args, value)
		argCounter++
	}
	args = append(args, id)

	query := fmt.Sprintf("UPDATE %s SET %s, updated_at = NOW() WHERE id = $%d",
		table, strings.Join(setClauses, ", "), argCounter)
	return query, args, nil
}

// isUniqueViolation reports whether err is a postgres unique-constraint
// violation, optionally on one specific constraint.
func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

// isForeignKeyViolation reports whether err is a postgres FK violation,
// which surfaces when a referenced row was deleted mid-request.
func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
