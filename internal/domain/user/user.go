package user

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	ErrNotFound         = errors.New("user not found")
	ErrEmailAlreadyUsed = errors.New("email already in use")
)

type User struct {
	ID            string     `json:"id"`
	Name          string     `json:"nombre"`
	Email         string     `json:"email"`
	PasswordHash  string     `json:"-"` // never expose hash in JSON
	Confirmed     bool       `json:"confirmado"`
	Token         *string    `json:"-"`
	TokenIssuedAt *time.Time `json:"-"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// PendingAction reports whether the account waits on a confirmation or a
// password reset, which is exactly when it holds a token.
func (u User) PendingAction() bool {
	return u.Token != nil && *u.Token != ""
}

// NormalizeEmail is the canonical form stored and compared by every store.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Repository is the credential store. Token writes that clear the token
// (Confirm, UpdatePassword) only apply while the row still holds that token
// and return ErrNotFound otherwise. UpdatePassword also marks the account
// confirmed.
type Repository interface {
	Create(ctx context.Context, u User) (User, error)
	GetByID(ctx context.Context, id string) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	GetByToken(ctx context.Context, token string) (User, error)
	SetToken(ctx context.Context, id, token string, issuedAt time.Time) error
	Confirm(ctx context.Context, id, token string) error
	UpdatePassword(ctx context.Context, id, token, passwordHash string) error
	Ping(ctx context.Context) error
}
