// Package tokens owns the one-shot token rules for account confirmation and
// password reset. A user holds a token only while an action is pending;
// clearing it is the only way out of that state.
package tokens

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/geocoder89/bienesraices/internal/domain/user"
	"github.com/geocoder89/bienesraices/internal/security"
	"github.com/google/uuid"
)

// ErrTokenNotFound covers unknown, already used and expired tokens alike.
var ErrTokenNotFound = errors.New("token not found or expired")

type Store interface {
	Create(ctx context.Context, u user.User) (user.User, error)
	GetByToken(ctx context.Context, token string) (user.User, error)
	SetToken(ctx context.Context, id, token string, issuedAt time.Time) error
	Confirm(ctx context.Context, id, token string) error
	UpdatePassword(ctx context.Context, id, token, passwordHash string) error
}

// Observer is told about every completed transition. The zero Manager uses none.
type Observer interface {
	TokenTransition(transition string)
}

const (
	TransitionIssued    = "issued"
	TransitionConfirmed = "confirmed"
	TransitionReset     = "password_reset"
	TransitionRejected  = "rejected"
)

type Manager struct {
	store    Store
	ttl      time.Duration
	now      func() time.Time
	newToken func() (string, error)
	observer Observer
}

type Option func(*Manager)

// WithTTL makes Consume reject tokens older than ttl. Zero disables expiry.
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) { m.ttl = ttl }
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func WithObserver(o Observer) Option {
	return func(m *Manager) { m.observer = o }
}

func NewManager(store Store, opts ...Option) *Manager {
	m := &Manager{
		store:    store,
		now:      func() time.Time { return time.Now().UTC() },
		newToken: security.NewToken,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Register stores a new unconfirmed account that already carries its
// confirmation token, in one write.
func (m *Manager) Register(ctx context.Context, name, email, password string) (user.User, error) {
	hash, err := security.HashPassword(password)
	if err != nil {
		return user.User{}, fmt.Errorf("hash password: %w", err)
	}

	token, err := m.newToken()
	if err != nil {
		return user.User{}, err
	}

	now := m.now()

	created, err := m.store.Create(ctx, user.User{
		ID:            uuid.NewString(),
		Name:          name,
		Email:         user.NormalizeEmail(email),
		PasswordHash:  hash,
		Confirmed:     false,
		Token:         &token,
		TokenIssuedAt: &now,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		return user.User{}, err
	}

	m.notify(TransitionIssued)

	return created, nil
}

// Issue assigns a fresh token to u and persists it. u is updated in place.
func (m *Manager) Issue(ctx context.Context, u *user.User) error {
	token, err := m.newToken()
	if err != nil {
		return err
	}

	now := m.now()

	if err := m.store.SetToken(ctx, u.ID, token, now); err != nil {
		return fmt.Errorf("store token: %w", err)
	}

	u.Token = &token
	u.TokenIssuedAt = &now

	m.notify(TransitionIssued)

	return nil
}

// Consume returns the single user holding token. It does not clear the
// token; ConfirmAccount and ResetPassword do.
func (m *Manager) Consume(ctx context.Context, token string) (user.User, error) {
	if token == "" {
		m.notify(TransitionRejected)
		return user.User{}, ErrTokenNotFound
	}

	u, err := m.store.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			m.notify(TransitionRejected)
			return user.User{}, ErrTokenNotFound
		}
		return user.User{}, fmt.Errorf("lookup token: %w", err)
	}

	if m.expired(u) {
		m.notify(TransitionRejected)
		return user.User{}, ErrTokenNotFound
	}

	return u, nil
}

func (m *Manager) ConfirmAccount(ctx context.Context, u user.User) error {
	if !u.PendingAction() {
		return ErrTokenNotFound
	}

	if err := m.store.Confirm(ctx, u.ID, *u.Token); err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return ErrTokenNotFound
		}
		return fmt.Errorf("confirm account: %w", err)
	}

	m.notify(TransitionConfirmed)

	return nil
}

func (m *Manager) ResetPassword(ctx context.Context, u user.User, password string) error {
	if !u.PendingAction() {
		return ErrTokenNotFound
	}

	hash, err := security.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := m.store.UpdatePassword(ctx, u.ID, *u.Token, hash); err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return ErrTokenNotFound
		}
		return fmt.Errorf("update password: %w", err)
	}

	m.notify(TransitionReset)

	return nil
}

func (m *Manager) expired(u user.User) bool {
	if m.ttl <= 0 || u.TokenIssuedAt == nil {
		return false
	}

	return m.now().After(u.TokenIssuedAt.Add(m.ttl))
}

func (m *Manager) notify(transition string) {
	if m.observer != nil {
		m.observer.TokenTransition(transition)
	}
}
