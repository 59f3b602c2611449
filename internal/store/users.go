package store

import (
	"context"
	"errors"

	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrDuplicateEmail    = errors.New("a user with that email already exists")
	ErrDuplicateUsername = errors.New("a user with that username already exists")
	// ErrFirstAccountRole guards the platform's founding account: its role
	// can never be changed, not even by another admin.
	ErrFirstAccountRole = errors.New("the first account's role is immutable")
)

type User struct {
	ID          int64     `json:"id"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	Password    password  `json:"-"`
	Role        string    `json:"role"`
	ImageURL    *string   `json:"image_url,omitempty"`
	Description *string   `json:"description,omitempty"`
	Publication *string   `json:"publication,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// password keeps the hash alongside the plaintext it was derived from so
// validation can happen before hashing. Neither field serializes.
type password struct {
	text *string `json:"-"`
	hash []byte  `json:"-"`
}

func (p *password) Set(text string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(text), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	p.text = &text
	p.hash = hash

	return nil
}

func (p *password) Compare(text string) error {
	return bcrypt.CompareHashAndPassword(p.hash, []byte(text))
}

type UsersStore struct {
	db *pgxpool.Pool
}

// Create registers a user. The first account ever created becomes admin;
// everyone after that starts as a plain user. The count and the insert
// share a transaction so the role decision and the write land together;
// at read-committed two racing first registrations could still both read
// a zero count.
func (s *UsersStore) Create(ctx context.Context, user *User) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		var count int64
		if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
			return err
		}

		role := "user"
		if count == 0 {
			role = "admin"
		}

		query := `
			INSERT INTO users (username, email, password, role)
			VALUES ($1, $2, $3, $4)
			RETURNING id, role, created_at, updated_at
		`
		err := tx.QueryRow(ctx, query, user.Username, user.Email, user.Password.hash, role).
			Scan(&user.ID, &user.Role, &user.CreatedAt, &user.UpdatedAt)
		if err != nil {
			switch {
			case isUniqueViolation(err, "users_email_key"):
				return ErrDuplicateEmail
			case isUniqueViolation(err, "users_username_key"):
				return ErrDuplicateUsername
			default:
				return err
			}
		}
		return nil
	})
}

func (s *UsersStore) GetByID(ctx context.Context, userID int64) (*User, error) {
	query := `
		SELECT id, username, email, password, role, image_url, description, publication, created_at, updated_at
		FROM users
		WHERE id = $1
	`

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	var user User
	err := s.db.QueryRow(ctx, query, userID).Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.Password.hash,
		&user.Role,
		&user.ImageURL,
		&user.Description,
		&user.Publication,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *UsersStore) GetByEmail(ctx context.Context, email string) (*User, error) {
	query := `
		SELECT id, username, email, password, role, image_url, description, publication, created_at, updated_at
		FROM users
		WHERE email = $1
	`

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	var user User
	err := s.db.QueryRow(ctx, query, email).Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.Password.hash,
		&user.Role,
		&user.ImageURL,
		&user.Description,
		&user.Publication,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

var validUserFields = map[string]bool{
	"username":    true,
	"image_url":   true,
	"description": true,
	"publication": true,
}

// UpdateProfile patches whitelisted profile columns only. Role changes go
// through UpdateRole, never through here.
func (s *UsersStore) UpdateProfile(ctx context.Context, userID int64, updates map[string]interface{}) error {
	query, args, err := buildUpdate("users", validUserFields, updates, userID)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	tag, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err, "users_username_key") {
			return ErrDuplicateUsername
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *UsersStore) SetProfilePicture(ctx context.Context, url string, userID int64) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	tag, err := s.db.Exec(ctx, `UPDATE users SET image_url = $1, updated_at = NOW() WHERE id = $2`, url, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateRole changes a user's role. The first-registered account is
// re-checked here on every call rather than assumed from registration-time
// state, so the invariant holds no matter who the caller is.
func (s *UsersStore) UpdateRole(ctx context.Context, userID int64, role string) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		var firstID int64
		if err := tx.QueryRow(ctx, `SELECT MIN(id) FROM users`).Scan(&firstID); err != nil {
			return err
		}
		if userID == firstID {
			return ErrFirstAccountRole
		}

		tag, err := tx.Exec(ctx, `UPDATE users SET role = $1, updated_at = NOW() WHERE id = $2`, role, userID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (s *UsersStore) Delete(ctx context.Context, userID int64) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	tag, err := s.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
