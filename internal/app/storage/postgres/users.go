package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/pulsewire/pulse/internal/domain/user"
	"github.com/pulsewire/pulse/internal/pulseerr"
)

func (s *Store) CreateUser(ctx context.Context, u user.User) (user.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`, u.ID, u.Email, u.PasswordHash, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return user.User{}, pulseerr.Conflict("email already registered")
		}
		return user.User{}, pulseerr.Internal("create user", err)
	}
	return u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	var u user.User
	err := s.db.GetContext(ctx, &u, `
		SELECT id, email, password_hash, created_at, updated_at
		FROM users WHERE email = $1
	`, email)
	if errors.Is(err, sql.ErrNoRows) {
		return user.User{}, pulseerr.NotFound("user", email)
	}
	if err != nil {
		return user.User{}, pulseerr.Internal("get user by email", err)
	}
	return u, nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (user.User, error) {
	var u user.User
	err := s.db.GetContext(ctx, &u, `
		SELECT id, email, password_hash, created_at, updated_at
		FROM users WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return user.User{}, pulseerr.NotFound("user", id)
	}
	if err != nil {
		return user.User{}, pulseerr.Internal("get user by id", err)
	}
	return u, nil
}
