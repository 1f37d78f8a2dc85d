package rms

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"docrequests-backend/internal/shared/storage/db"
)

type PGRepo struct {
	DB *sql.DB
}

const selectUser = `
SELECT u.id, u.username, u.email, u.password_hash, u.is_superuser, COALESCE(rm.name, ''), u.created_at
FROM users u
LEFT JOIN relationship_managers rm ON rm.user_id = u.id
`

func (r *PGRepo) Create(ctx context.Context, user User) (User, error) {
	err := db.WithTx(ctx, r.DB, func(tx *sql.Tx) error {
		const insertUser = `
INSERT INTO users (username, email, password_hash, is_superuser)
VALUES ($1, $2, $3, $4)
RETURNING id, created_at`
		if err := tx.QueryRowContext(ctx, insertUser,
			user.Username,
			user.Email,
			user.PasswordHash,
			user.IsSuperuser,
		).Scan(&user.ID, &user.CreatedAt); err != nil {
			return err
		}
		if user.Name == "" {
			return nil
		}
		const insertRM = `INSERT INTO relationship_managers (user_id, name) VALUES ($1, $2)`
		_, err := tx.ExecContext(ctx, insertRM, user.ID, user.Name)
		return err
	})
	if err != nil {
		if isUniqueViolation(err) {
			return User{}, ErrDuplicate
		}
		return User{}, err
	}
	return user, nil
}

func (r *PGRepo) GetByID(ctx context.Context, id int64) (User, error) {
	return r.getOne(ctx, selectUser+"WHERE u.id = $1", id)
}

func (r *PGRepo) GetByUsername(ctx context.Context, username string) (User, error) {
	return r.getOne(ctx, selectUser+"WHERE u.username = $1", username)
}

func (r *PGRepo) GetByEmail(ctx context.Context, email string) (User, error) {
	if email == "" {
		return User{}, ErrNotFound
	}
	return r.getOne(ctx, selectUser+"WHERE lower(u.email) = lower($1)", email)
}

func (r *PGRepo) getOne(ctx context.Context, query string, arg any) (User, error) {
	var user User
	err := r.DB.QueryRowContext(ctx, query, arg).Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.IsSuperuser,
		&user.Name,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	return user, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
