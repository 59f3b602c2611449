package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrDuplicateReview is the storage-level answer to a second review by the
// same critic on the same game. The UNIQUE(user_id, game_id) constraint is
// the source of truth; no check-then-insert race can slip past it.
var ErrDuplicateReview = errors.New("this user has already reviewed this game")

type Review struct {
	ID           int64     `json:"id"`
	GameID       int64     `json:"game_id"`
	UserID       int64     `json:"user_id"`
	Rating       int       `json:"rating"` // 1-5
	Title        string    `json:"title"`
	Body         string    `json:"body"`
	HelpfulCount int       `json:"helpful_count"`
	ReportCount  int       `json:"report_count"`
	CreatedAt    time.Time `json:"created_at"`

	// Joined fields
	Username    string  `json:"username,omitempty"`
	Publication *string `json:"publication,omitempty"`
}

type ReviewsStore struct {
	db *pgxpool.Pool
}

func (s *ReviewsStore) Create(ctx context.Context, review *Review) error {
	query := `
		INSERT INTO reviews (game_id, user_id, rating, title, body)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, helpful_count, report_count, created_at
	`

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	err := s.db.QueryRow(ctx, query,
		review.GameID,
		review.UserID,
		review.Rating,
		review.Title,
		review.Body,
	).Scan(&review.ID, &review.HelpfulCount, &review.ReportCount, &review.CreatedAt)
	if err != nil {
		switch {
		case isUniqueViolation(err, "reviews_user_id_game_id_key"):
			return ErrDuplicateReview
		case isForeignKeyViolation(err):
			return ErrNotFound
		default:
			return err
		}
	}
	return nil
}

func (s *ReviewsStore) GetByUserAndGame(ctx context.Context, userID, gameID int64) (*Review, error) {
	query := `
		SELECT id, game_id, user_id, rating, title, body, helpful_count, report_count, created_at
		FROM reviews
		WHERE user_id = $1 AND game_id = $2
	`

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	var r Review
	err := s.db.QueryRow(ctx, query, userID, gameID).Scan(
		&r.ID, &r.GameID, &r.UserID, &r.Rating, &r.Title, &r.Body,
		&r.HelpfulCount, &r.ReportCount, &r.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &r, nil
}

const reviewListQuery = `
	SELECT r.id, r.game_id, r.user_id, r.rating, r.title, r.body,
	       r.helpful_count, r.report_count, r.created_at, u.username, u.publication
	FROM reviews r
	JOIN users u ON u.id = r.user_id
`

func (s *ReviewsStore) ListByGame(ctx context.Context, gameID int64) ([]Review, error) {
	return s.queryReviews(ctx, reviewListQuery+` WHERE r.game_id = $1 ORDER BY r.created_at DESC`, gameID)
}

// Latest returns the n most recent reviews for the game detail page.
func (s *ReviewsStore) Latest(ctx context.Context, gameID int64, n int) ([]Review, error) {
	return s.queryReviews(ctx, reviewListQuery+` WHERE r.game_id = $1 ORDER BY r.created_at DESC LIMIT $2`, gameID, n)
}

func (s *ReviewsStore) ListByUser(ctx context.Context, userID int64) ([]Review, error) {
	return s.queryReviews(ctx, reviewListQuery+` WHERE r.user_id = $1 ORDER BY r.created_at DESC`, userID)
}

func (s *ReviewsStore) queryReviews(ctx context.Context, query string, args ...any) ([]Review, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reviews []Review
	for rows.Next() {
		var r Review
		err := rows.Scan(
			&r.ID, &r.GameID, &r.UserID, &r.Rating, &r.Title, &r.Body,
			&r.HelpfulCount, &r.ReportCount, &r.CreatedAt, &r.Username, &r.Publication,
		)
		if err != nil {
			return nil, err
		}
		reviews = append(reviews, r)
	}
	return reviews, rows.Err()
}

// Stats recomputes the review count and mean rating on every call; the
// aggregate is never cached.
func (s *ReviewsStore) Stats(ctx context.Context, gameID int64) (total int, average float64, err error) {
	query := `
		SELECT COUNT(id), COALESCE(AVG(rating), 0)
		FROM reviews
		WHERE game_id = $1
	`

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	err = s.db.QueryRow(ctx, query, gameID).Scan(&total, &average)
	return total, average, err
}

func (s *ReviewsStore) IncrementHelpful(ctx context.Context, reviewID int64) error {
	return s.increment(ctx, "helpful_count", reviewID)
}

func (s *ReviewsStore) IncrementReport(ctx context.Context, reviewID int64) error {
	return s.increment(ctx, "report_count", reviewID)
}

func (s *ReviewsStore) increment(ctx context.Context, column string, reviewID int64) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	query := `UPDATE reviews SET ` + column + ` = ` + column + ` + 1 WHERE id = $1`
	tag, err := s.db.Exec(ctx, query, reviewID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
