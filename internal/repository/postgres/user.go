package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/medidesk/practice-api/internal/model"
	"github.com/medidesk/practice-api/internal/repository"
)

const userColumns = `
	id, email, password_hash, first_name, last_name, phone, role, status,
	failed_login_attempts, locked_until, last_login_at,
	created_at, updated_at, deleted_at`

type userRepository struct {
	BaseRepository
}

func NewUserRepository(base BaseRepository) repository.UserRepository {
	return &userRepository{base}
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	query := `
		INSERT INTO users (
			id, email, password_hash, first_name, last_name,
			phone, role, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if user.Status == "" {
		user.Status = model.UserStatusActive
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt

	_, err := r.conn(ctx).ExecContext(ctx, query,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.FirstName,
		user.LastName,
		user.Phone,
		user.Role,
		user.Status,
		user.CreatedAt,
		user.UpdatedAt,
	)
	return mapError(err, "create user")
}

func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 AND deleted_at IS NULL`

	var user model.User
	if err := sqlx.GetContext(ctx, r.conn(ctx), &user, query, id); err != nil {
		return nil, mapError(err, "get user")
	}
	return &user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1 AND deleted_at IS NULL`

	var user model.User
	if err := sqlx.GetContext(ctx, r.conn(ctx), &user, query, email); err != nil {
		return nil, mapError(err, "get user by email")
	}
	return &user, nil
}

func (r *userRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*model.User, error) {
	if len(ids) == 0 {
		return []*model.User{}, nil
	}
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ANY($1::uuid[])`

	users := []*model.User{}
	if err := sqlx.SelectContext(ctx, r.conn(ctx), &users, query, uuidArray(ids)); err != nil {
		return nil, mapError(err, "get users")
	}
	return users, nil
}

func (r *userRepository) Update(ctx context.Context, user *model.User) error {
	query := `
		UPDATE users
		SET first_name = $1, last_name = $2, phone = $3, status = $4, updated_at = $5
		WHERE id = $6 AND deleted_at IS NULL
	`
	user.UpdatedAt = time.Now()

	result, err := r.conn(ctx).ExecContext(ctx, query,
		user.FirstName,
		user.LastName,
		user.Phone,
		user.Status,
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		return mapError(err, "update user")
	}
	return requireAffected(result)
}

func (r *userRepository) UpdatePassword(ctx context.Context, id uuid.UUID, hash string) error {
	query := `UPDATE users SET password_hash = $1, updated_at = NOW() WHERE id = $2 AND deleted_at IS NULL`

	result, err := r.conn(ctx).ExecContext(ctx, query, hash, id)
	if err != nil {
		return mapError(err, "update password")
	}
	return requireAffected(result)
}

func (r *userRepository) RecordLoginFailure(ctx context.Context, id uuid.UUID, maxAttempts int, lockUntil time.Time) (bool, error) {
	query := `
		UPDATE users
		SET failed_login_attempts = CASE
				WHEN failed_login_attempts + 1 >= $2 THEN 0
				ELSE failed_login_attempts + 1
			END,
			locked_until = CASE
				WHEN failed_login_attempts + 1 >= $2 THEN $3
				ELSE locked_until
			END,
			updated_at = NOW()
		WHERE id = $1
		RETURNING failed_login_attempts = 0
	`

	var locked bool
	if err := sqlx.GetContext(ctx, r.conn(ctx), &locked, query, id, maxAttempts, lockUntil); err != nil {
		return false, mapError(err, "record login failure")
	}
	return locked, nil
}

func (r *userRepository) RecordLoginSuccess(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `
		UPDATE users
		SET failed_login_attempts = 0, locked_until = NULL, last_login_at = $2, updated_at = NOW()
		WHERE id = $1
	`
	_, err := r.conn(ctx).ExecContext(ctx, query, id, at)
	return mapError(err, "record login success")
}

func (r *userRepository) List(ctx context.Context, f model.UserFilter) ([]*model.User, int, error) {
	var w filter
	w.raw("deleted_at IS NULL")
	if f.Role != "" {
		w.add("role = $%d", f.Role)
	}
	if f.Status != "" {
		w.add("status = $%d", f.Status)
	}
	if f.Search != "" {
		w.add("(first_name ILIKE $%[1]d OR last_name ILIKE $%[1]d OR email ILIKE $%[1]d)", likePattern(f.Search))
	}

	var total int
	if err := sqlx.GetContext(ctx, r.conn(ctx), &total, `SELECT COUNT(*) FROM users`+w.where(), w.args...); err != nil {
		return nil, 0, mapError(err, "count users")
	}

	limit, args := w.page(f.Limit(), f.Offset())
	query := `SELECT ` + userColumns + ` FROM users` + w.where() + ` ORDER BY created_at DESC` + limit

	users := []*model.User{}
	if err := sqlx.SelectContext(ctx, r.conn(ctx), &users, query, args...); err != nil {
		return nil, 0, mapError(err, "list users")
	}
	return users, total, nil
}
