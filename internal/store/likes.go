package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrAlreadyLiked means the (user, comment) pair already has a like row.
// UNIQUE(user_id, comment_id) enforces one like per user per comment.
var ErrAlreadyLiked = errors.New("comment already liked by this user")

type LikesStore struct {
	db *pgxpool.Pool
}

func (s *LikesStore) Like(ctx context.Context, userID, commentID int64) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	_, err := s.db.Exec(ctx,
		`INSERT INTO likes (user_id, comment_id) VALUES ($1, $2)`,
		userID, commentID)
	if err != nil {
		switch {
		case isUniqueViolation(err, "likes_user_id_comment_id_key"):
			return ErrAlreadyLiked
		case isForeignKeyViolation(err):
			return ErrNotFound
		default:
			return err
		}
	}
	return nil
}

func (s *LikesStore) Unlike(ctx context.Context, userID, commentID int64) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	tag, err := s.db.Exec(ctx,
		`DELETE FROM likes WHERE user_id = $1 AND comment_id = $2`,
		userID, commentID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *LikesStore) CountForComment(ctx context.Context, commentID int64) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	var count int
	err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM likes WHERE comment_id = $1`, commentID).Scan(&count)
	return count, err
}
