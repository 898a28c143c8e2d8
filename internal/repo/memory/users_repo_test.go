package memory

import (
	"context"
	"testing"
	"time"

	"github.com/geocoder89/bienesraices/internal/domain/user"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T, r *UsersRepo, id, email, token string) user.User {
	t.Helper()

	now := time.Now().UTC()
	u := user.User{ID: id, Name: "Ana", Email: email, PasswordHash: "hash", CreatedAt: now, UpdatedAt: now}
	if token != "" {
		u.Token = &token
		u.TokenIssuedAt = &now
	}

	created, err := r.Create(context.Background(), u)
	require.NoError(t, err)
	return created
}

func TestUsersRepo_EmailIsUniqueIgnoringCase(t *testing.T) {
	r := NewUsersRepo()
	seed(t, r, "u1", "ana@x.com", "")

	_, err := r.Create(context.Background(), user.User{ID: "u2", Email: " ANA@X.com "})
	assert.ErrorIs(t, err, user.ErrEmailAlreadyUsed)
	assert.Equal(t, 1, r.Len())

	got, err := r.GetByEmail(context.Background(), "Ana@X.COM")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.ID)
}

func TestUsersRepo_ConfirmClearsTokenOnce(t *testing.T) {
	r := NewUsersRepo()
	seed(t, r, "u1", "ana@x.com", "tok")
	ctx := context.Background()

	require.NoError(t, r.Confirm(ctx, "u1", "tok"))

	got, err := r.GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, got.Confirmed)
	assert.Nil(t, got.Token)
	assert.Nil(t, got.TokenIssuedAt)

	assert.ErrorIs(t, r.Confirm(ctx, "u1", "tok"), user.ErrNotFound)

	_, err = r.GetByToken(ctx, "tok")
	assert.ErrorIs(t, err, user.ErrNotFound)
}

func TestUsersRepo_UpdatePasswordRequiresMatchingToken(t *testing.T) {
	r := NewUsersRepo()
	seed(t, r, "u1", "ana@x.com", "tok")
	ctx := context.Background()

	assert.ErrorIs(t, r.UpdatePassword(ctx, "u1", "other", "new-hash"), user.ErrNotFound)

	require.NoError(t, r.UpdatePassword(ctx, "u1", "tok", "new-hash"))

	got, err := r.GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "new-hash", got.PasswordHash)
	assert.False(t, got.PendingAction())
	assert.True(t, got.Confirmed)
}

func TestUsersRepo_ReturnsCopies(t *testing.T) {
	r := NewUsersRepo()
	seed(t, r, "u1", "ana@x.com", "tok")

	got, err := r.GetByID(context.Background(), "u1")
	require.NoError(t, err)
	*got.Token = "mutated"

	again, err := r.GetByToken(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, "tok", *again.Token)
}
