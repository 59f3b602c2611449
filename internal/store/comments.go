package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrCrossGameReply rejects a reply whose parent comment hangs off a
// different game.
var ErrCrossGameReply = errors.New("parent comment belongs to a different game")

type Comment struct {
	ID        int64     `json:"id"`
	GameID    int64     `json:"game_id"`
	UserID    int64     `json:"user_id"`
	ParentID  *int64    `json:"parent_id,omitempty"`
	Body      string    `json:"body"`
	Edited    bool      `json:"edited"`
	CreatedAt time.Time `json:"created_at"`

	// Joined fields
	Username  string `json:"username,omitempty"`
	LikeCount int    `json:"like_count"`
}

type CommentsStore struct {
	db *pgxpool.Pool
}

// Create inserts a comment. A reply's parent must exist and belong to the
// same game; the check and the insert share a transaction so a failed
// validation persists nothing.
func (s *CommentsStore) Create(ctx context.Context, comment *Comment) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		if comment.ParentID != nil {
			var parentGameID int64
			err := tx.QueryRow(ctx, `SELECT game_id FROM comments WHERE id = $1`, *comment.ParentID).Scan(&parentGameID)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return ErrNotFound
				}
				return err
			}
			if parentGameID != comment.GameID {
				return ErrCrossGameReply
			}
		}

		query := `
			INSERT INTO comments (game_id, user_id, parent_id, body)
			VALUES ($1, $2, $3, $4)
			RETURNING id, created_at
		`
		err := tx.QueryRow(ctx, query,
			comment.GameID,
			comment.UserID,
			comment.ParentID,
			comment.Body,
		).Scan(&comment.ID, &comment.CreatedAt)
		if err != nil {
			if isForeignKeyViolation(err) {
				return ErrNotFound
			}
			return err
		}
		return nil
	})
}

func (s *CommentsStore) GetByID(ctx context.Context, commentID int64) (*Comment, error) {
	query := `
		SELECT c.id, c.game_id, c.user_id, c.parent_id, c.body, c.edited, c.created_at, u.username
		FROM comments c
		JOIN users u ON u.id = c.user_id
		WHERE c.id = $1
	`

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	var c Comment
	err := s.db.QueryRow(ctx, query, commentID).Scan(
		&c.ID, &c.GameID, &c.UserID, &c.ParentID, &c.Body, &c.Edited, &c.CreatedAt, &c.Username,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// ListTopLevel returns a game's parentless comments, newest first.
func (s *CommentsStore) ListTopLevel(ctx context.Context, gameID int64) ([]Comment, error) {
	query := `
		SELECT c.id, c.game_id, c.user_id, c.parent_id, c.body, c.edited, c.created_at, u.username,
		       (SELECT COUNT(*) FROM likes l WHERE l.comment_id = c.id) AS like_count
		FROM comments c
		JOIN users u ON u.id = c.user_id
		WHERE c.game_id = $1 AND c.parent_id IS NULL
		ORDER BY c.created_at DESC
	`
	return s.queryComments(ctx, query, gameID)
}

// GetReplies returns a comment's direct replies, oldest first. Walk it
// recursively for deeper levels; the data model has no depth cap.
func (s *CommentsStore) GetReplies(ctx context.Context, commentID int64) ([]Comment, error) {
	query := `
		SELECT c.id, c.game_id, c.user_id, c.parent_id, c.body, c.edited, c.created_at, u.username,
		       (SELECT COUNT(*) FROM likes l WHERE l.comment_id = c.id) AS like_count
		FROM comments c
		JOIN users u ON u.id = c.user_id
		WHERE c.parent_id = $1
		ORDER BY c.created_at ASC
	`
	return s.queryComments(ctx, query, commentID)
}

func (s *CommentsStore) queryComments(ctx context.Context, query string, arg any) ([]Comment, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	rows, err := s.db.Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var comments []Comment
	for rows.Next() {
		var c Comment
		err := rows.Scan(
			&c.ID, &c.GameID, &c.UserID, &c.ParentID, &c.Body, &c.Edited, &c.CreatedAt, &c.Username, &c.LikeCount,
		)
		if err != nil {
			return nil, err
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

// UpdateBody replaces the body and flips the edited flag. Scoped to the
// owning user; editing someone else's comment reads as not found.
func (s *CommentsStore) UpdateBody(ctx context.Context, commentID, userID int64, body string) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	tag, err := s.db.Exec(ctx,
		`UPDATE comments SET body = $1, edited = TRUE WHERE id = $2 AND user_id = $3`,
		body, commentID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a comment. Replies cascade with it: the parent_id FK is
// ON DELETE CASCADE, so the whole subtree goes in one statement.
func (s *CommentsStore) Delete(ctx context.Context, commentID int64) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	tag, err := s.db.Exec(ctx, `DELETE FROM comments WHERE id = $1`, commentID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
