package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/geocoder89/bienesraices/internal/domain/user"
	"github.com/geocoder89/bienesraices/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userColumns = `id, nombre, email, password_hash, confirmado, token, token_issued_at, created_at, updated_at`

type UsersRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewUsersRepo(pool *pgxpool.Pool, prom *observability.Prom) *UsersRepo {
	return &UsersRepo{pool: pool, prom: prom}
}

func (r *UsersRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

func (r *UsersRepo) Create(ctx context.Context, u user.User) (user.User, error) {
	u.Email = user.NormalizeEmail(u.Email)

	err := r.observe("users.create", func() error {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO usuarios (`+userColumns+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			u.ID, u.Name, u.Email, u.PasswordHash, u.Confirmed, u.Token, u.TokenIssuedAt, u.CreatedAt, u.UpdatedAt,
		)
		return err
	})

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return user.User{}, user.ErrEmailAlreadyUsed
		}
		return user.User{}, err
	}

	return u, nil
}

func (r *UsersRepo) GetByID(ctx context.Context, id string) (user.User, error) {
	return r.getOne(ctx, "users.get_by_id", `SELECT `+userColumns+` FROM usuarios WHERE id = $1`, id)
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	return r.getOne(ctx, "users.get_by_email", `SELECT `+userColumns+` FROM usuarios WHERE email = $1`, user.NormalizeEmail(email))
}

func (r *UsersRepo) GetByToken(ctx context.Context, token string) (user.User, error) {
	return r.getOne(ctx, "users.get_by_token", `SELECT `+userColumns+` FROM usuarios WHERE token = $1`, token)
}

func (r *UsersRepo) SetToken(ctx context.Context, id, token string, issuedAt time.Time) error {
	return r.exec(ctx, "users.set_token", `
		UPDATE usuarios
		SET token = $2, token_issued_at = $3, updated_at = NOW()
		WHERE id = $1
	`, id, token, issuedAt)
}

// Confirm only applies while the row still holds token, so two racing
// confirmations cannot both succeed.
func (r *UsersRepo) Confirm(ctx context.Context, id, token string) error {
	return r.exec(ctx, "users.confirm", `
		UPDATE usuarios
		SET confirmado = TRUE, token = NULL, token_issued_at = NULL, updated_at = NOW()
		WHERE id = $1 AND token = $2
	`, id, token)
}

func (r *UsersRepo) UpdatePassword(ctx context.Context, id, token, passwordHash string) error {
	return r.exec(ctx, "users.update_password", `
		UPDATE usuarios
		SET password_hash = $3, confirmado = TRUE, token = NULL, token_issued_at = NULL, updated_at = NOW()
		WHERE id = $1 AND token = $2
	`, id, token, passwordHash)
}

func (r *UsersRepo) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *UsersRepo) getOne(ctx context.Context, op, query string, arg any) (user.User, error) {
	var u user.User

	err := r.observe(op, func() error {
		return r.pool.QueryRow(ctx, query, arg).Scan(
			&u.ID,
			&u.Name,
			&u.Email,
			&u.PasswordHash,
			&u.Confirmed,
			&u.Token,
			&u.TokenIssuedAt,
			&u.CreatedAt,
			&u.UpdatedAt,
		)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}

		return user.User{}, err
	}
	return u, nil
}

func (r *UsersRepo) exec(ctx context.Context, op, query string, args ...any) error {
	var tag pgconn.CommandTag

	err := r.observe(op, func() error {
		var err error
		tag, err = r.pool.Exec(ctx, query, args...)
		return err
	})

	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return user.ErrNotFound
	}

	return nil
}
