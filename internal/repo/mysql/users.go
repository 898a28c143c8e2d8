// Package mysql stores users in MySQL through database/sql, matching the
// schema the site originally ran on.
package mysql

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/geocoder89/bienesraices/internal/domain/user"
	"github.com/geocoder89/bienesraices/internal/observability"
	driver "github.com/go-sql-driver/mysql"
)

const userColumns = `id, nombre, email, password_hash, confirmado, token, token_issued_at, created_at, updated_at`

// duplicate entry on a unique index
const errDupEntry = 1062

type UsersRepo struct {
	db   *sql.DB
	prom *observability.Prom
}

func NewUsersRepo(db *sql.DB, prom *observability.Prom) *UsersRepo {
	return &UsersRepo{db: db, prom: prom}
}

func (r *UsersRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

// Create inserts a new user. A taken email maps to user.ErrEmailAlreadyUsed.
func (r *UsersRepo) Create(ctx context.Context, u user.User) (user.User, error) {
	u.Email = user.NormalizeEmail(u.Email)

	err := r.observe("users.create", func() error {
		_, err := r.db.ExecContext(ctx,
			`INSERT INTO usuarios (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			u.ID, u.Name, u.Email, u.PasswordHash, u.Confirmed, u.Token, u.TokenIssuedAt, u.CreatedAt, u.UpdatedAt,
		)
		return err
	})

	if err != nil {
		if isDuplicateEntry(err) {
			return user.User{}, user.ErrEmailAlreadyUsed
		}
		return user.User{}, err
	}

	return u, nil
}

func (r *UsersRepo) GetByID(ctx context.Context, id string) (user.User, error) {
	return r.getOne(ctx, "users.get_by_id", `SELECT `+userColumns+` FROM usuarios WHERE id = ?`, id)
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	return r.getOne(ctx, "users.get_by_email", `SELECT `+userColumns+` FROM usuarios WHERE email = ?`, user.NormalizeEmail(email))
}

func (r *UsersRepo) GetByToken(ctx context.Context, token string) (user.User, error) {
	return r.getOne(ctx, "users.get_by_token", `SELECT `+userColumns+` FROM usuarios WHERE token = ?`, token)
}

func (r *UsersRepo) SetToken(ctx context.Context, id, token string, issuedAt time.Time) error {
	return r.exec(ctx, "users.set_token",
		`UPDATE usuarios SET token = ?, token_issued_at = ?, updated_at = UTC_TIMESTAMP() WHERE id = ?`,
		token, issuedAt, id)
}

func (r *UsersRepo) Confirm(ctx context.Context, id, token string) error {
	return r.exec(ctx, "users.confirm",
		`UPDATE usuarios SET confirmado = TRUE, token = NULL, token_issued_at = NULL, updated_at = UTC_TIMESTAMP()
		WHERE id = ? AND token = ?`,
		id, token)
}

func (r *UsersRepo) UpdatePassword(ctx context.Context, id, token, passwordHash string) error {
	return r.exec(ctx, "users.update_password",
		`UPDATE usuarios SET password_hash = ?, confirmado = TRUE, token = NULL, token_issued_at = NULL, updated_at = UTC_TIMESTAMP()
		WHERE id = ? AND token = ?`,
		passwordHash, id, token)
}

func (r *UsersRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *UsersRepo) getOne(ctx context.Context, op, query string, arg any) (user.User, error) {
	u := user.User{}

	err := r.observe(op, func() error {
		return r.db.QueryRowContext(ctx, query, arg).Scan(
			&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Confirmed,
			&u.Token, &u.TokenIssuedAt, &u.CreatedAt, &u.UpdatedAt,
		)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, err
	}

	return u, nil
}

func (r *UsersRepo) exec(ctx context.Context, op, query string, args ...any) error {
	var affected int64

	err := r.observe(op, func() error {
		res, err := r.db.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return err
	}

	if affected == 0 {
		return user.ErrNotFound
	}

	return nil
}

// isDuplicateEntry checks for MySQL error 1062.
func isDuplicateEntry(err error) bool {
	var myErr *driver.MySQLError
	return errors.As(err, &myErr) && myErr.Number == errDupEntry
}
