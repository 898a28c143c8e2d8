package memory

import (
	"context"
	"sync"
	"time"

	"github.com/geocoder89/bienesraices/internal/domain/user"
)

// UsersRepo keeps users in process memory. It enforces the same unique email
// and conditional token rules as the SQL stores.
type UsersRepo struct {
	mu    sync.RWMutex
	items map[string]user.User // {"id": user}
}

func NewUsersRepo() *UsersRepo {
	return &UsersRepo{
		items: make(map[string]user.User),
	}
}

func (r *UsersRepo) Create(_ context.Context, u user.User) (user.User, error) {
	u.Email = user.NormalizeEmail(u.Email)

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.items {
		if existing.Email == u.Email {
			return user.User{}, user.ErrEmailAlreadyUsed
		}
	}

	r.items[u.ID] = clone(u)

	return clone(u), nil
}

func (r *UsersRepo) GetByID(_ context.Context, id string) (user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.items[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}

	return clone(u), nil
}

func (r *UsersRepo) GetByEmail(_ context.Context, email string) (user.User, error) {
	email = user.NormalizeEmail(email)

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.items {
		if u.Email == email {
			return clone(u), nil
		}
	}

	return user.User{}, user.ErrNotFound
}

func (r *UsersRepo) GetByToken(_ context.Context, token string) (user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.items {
		if u.Token != nil && *u.Token == token {
			return clone(u), nil
		}
	}

	return user.User{}, user.ErrNotFound
}

func (r *UsersRepo) SetToken(_ context.Context, id, token string, issuedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.items[id]
	if !ok {
		return user.ErrNotFound
	}

	u.Token = &token
	u.TokenIssuedAt = &issuedAt
	u.UpdatedAt = time.Now().UTC()
	r.items[id] = u

	return nil
}

func (r *UsersRepo) Confirm(_ context.Context, id, token string) error {
	return r.clearToken(id, token, func(u *user.User) {
		u.Confirmed = true
	})
}

func (r *UsersRepo) UpdatePassword(_ context.Context, id, token, passwordHash string) error {
	return r.clearToken(id, token, func(u *user.User) {
		u.PasswordHash = passwordHash
		u.Confirmed = true
	})
}

func (r *UsersRepo) Ping(context.Context) error {
	return nil
}

// Len reports how many users are stored.
func (r *UsersRepo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.items)
}

func (r *UsersRepo) clearToken(id, token string, apply func(*user.User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.items[id]
	if !ok || u.Token == nil || *u.Token != token {
		return user.ErrNotFound
	}

	apply(&u)
	u.Token = nil
	u.TokenIssuedAt = nil
	u.UpdatedAt = time.Now().UTC()
	r.items[id] = u

	return nil
}

func clone(u user.User) user.User {
	if u.Token != nil {
		t := *u.Token
		u.Token = &t
	}
	if u.TokenIssuedAt != nil {
		ts := *u.TokenIssuedAt
		u.TokenIssuedAt = &ts
	}
	return u
}
