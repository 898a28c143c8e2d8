package tokens_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/geocoder89/bienesraices/internal/domain/user"
	"github.com/geocoder89/bienesraices/internal/repo/memory"
	"github.com/geocoder89/bienesraices/internal/security"
	"github.com/geocoder89/bienesraices/internal/tokens"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingObserver struct {
	mu     sync.Mutex
	counts map[string]int
}

func (o *countingObserver) TokenTransition(transition string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.counts == nil {
		o.counts = map[string]int{}
	}
	o.counts[transition]++
}

func (o *countingObserver) get(transition string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.counts[transition]
}

func TestRegister_CreatesUnconfirmedUserWithToken(t *testing.T) {
	repo := memory.NewUsersRepo()
	obs := &countingObserver{}
	m := tokens.NewManager(repo, tokens.WithObserver(obs))

	u, err := m.Register(context.Background(), "Ana", "Ana@X.com", "secret1")
	require.NoError(t, err)

	assert.Equal(t, "ana@x.com", u.Email)
	assert.False(t, u.Confirmed)
	assert.True(t, u.PendingAction())
	assert.NotNil(t, u.TokenIssuedAt)
	assert.NoError(t, security.CheckPassword(u.PasswordHash, "secret1"))
	assert.Equal(t, 1, repo.Len())
	assert.Equal(t, 1, obs.get(tokens.TransitionIssued))
}

func TestRegister_DuplicateEmail(t *testing.T) {
	repo := memory.NewUsersRepo()
	m := tokens.NewManager(repo)

	_, err := m.Register(context.Background(), "Ana", "ana@x.com", "secret1")
	require.NoError(t, err)

	_, err = m.Register(context.Background(), "Ana 2", "ANA@x.com", "secret2")
	assert.ErrorIs(t, err, user.ErrEmailAlreadyUsed)
	assert.Equal(t, 1, repo.Len())
}

func TestConsume_UnknownAndEmpty(t *testing.T) {
	m := tokens.NewManager(memory.NewUsersRepo())

	_, err := m.Consume(context.Background(), "")
	assert.ErrorIs(t, err, tokens.ErrTokenNotFound)

	_, err = m.Consume(context.Background(), "does-not-exist")
	assert.ErrorIs(t, err, tokens.ErrTokenNotFound)
}

func TestConfirmAccount_SecondConsumeFails(t *testing.T) {
	ctx := context.Background()
	m := tokens.NewManager(memory.NewUsersRepo())

	u, err := m.Register(ctx, "Ana", "ana@x.com", "secret1")
	require.NoError(t, err)
	token := *u.Token

	found, err := m.Consume(ctx, token)
	require.NoError(t, err)
	require.NoError(t, m.ConfirmAccount(ctx, found))

	_, err = m.Consume(ctx, token)
	assert.ErrorIs(t, err, tokens.ErrTokenNotFound)
}

func TestConfirmAccount_LosingRacerGetsNotFound(t *testing.T) {
	ctx := context.Background()
	m := tokens.NewManager(memory.NewUsersRepo())

	u, err := m.Register(ctx, "Ana", "ana@x.com", "secret1")
	require.NoError(t, err)

	// both requests pass the lookup before either clears the token
	first, err := m.Consume(ctx, *u.Token)
	require.NoError(t, err)
	second, err := m.Consume(ctx, *u.Token)
	require.NoError(t, err)

	require.NoError(t, m.ConfirmAccount(ctx, first))
	assert.ErrorIs(t, m.ConfirmAccount(ctx, second), tokens.ErrTokenNotFound)
}

func TestResetPassword_OldFailsNewSucceeds(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewUsersRepo()
	m := tokens.NewManager(repo)

	u, err := m.Register(ctx, "Ana", "ana@x.com", "secret1")
	require.NoError(t, err)
	found, err := m.Consume(ctx, *u.Token)
	require.NoError(t, err)
	require.NoError(t, m.ConfirmAccount(ctx, found))

	confirmed, err := repo.GetByEmail(ctx, "ana@x.com")
	require.NoError(t, err)
	require.NoError(t, m.Issue(ctx, &confirmed))
	require.True(t, confirmed.PendingAction())

	pending, err := m.Consume(ctx, *confirmed.Token)
	require.NoError(t, err)
	require.NoError(t, m.ResetPassword(ctx, pending, "brand-new"))

	after, err := repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, after.Confirmed)
	assert.False(t, after.PendingAction())
	assert.Error(t, security.CheckPassword(after.PasswordHash, "secret1"))
	assert.NoError(t, security.CheckPassword(after.PasswordHash, "brand-new"))

	_, err = m.Consume(ctx, *confirmed.Token)
	assert.ErrorIs(t, err, tokens.ErrTokenNotFound)
}

func TestIssue_ReplacesPreviousToken(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewUsersRepo()
	m := tokens.NewManager(repo)

	u, err := m.Register(ctx, "Ana", "ana@x.com", "secret1")
	require.NoError(t, err)
	old := *u.Token

	require.NoError(t, m.Issue(ctx, &u))
	assert.NotEqual(t, old, *u.Token)

	_, err = m.Consume(ctx, old)
	assert.ErrorIs(t, err, tokens.ErrTokenNotFound)
	_, err = m.Consume(ctx, *u.Token)
	assert.NoError(t, err)
}

func TestConsume_TTL(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	m := tokens.NewManager(memory.NewUsersRepo(), tokens.WithTTL(time.Hour), tokens.WithClock(clock))

	u, err := m.Register(ctx, "Ana", "ana@x.com", "secret1")
	require.NoError(t, err)

	now = now.Add(59 * time.Minute)
	_, err = m.Consume(ctx, *u.Token)
	assert.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = m.Consume(ctx, *u.Token)
	assert.ErrorIs(t, err, tokens.ErrTokenNotFound)
}

func TestConsume_NoTTLNeverExpires(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	m := tokens.NewManager(memory.NewUsersRepo(), tokens.WithClock(clock))

	u, err := m.Register(ctx, "Ana", "ana@x.com", "secret1")
	require.NoError(t, err)

	now = now.AddDate(5, 0, 0)
	_, err = m.Consume(ctx, *u.Token)
	assert.NoError(t, err)
}

type failingStore struct {
	tokens.Store
	err error
}

func (f failingStore) GetByToken(context.Context, string) (user.User, error) {
	return user.User{}, f.err
}

func TestConsume_StoreFailureIsNotNotFound(t *testing.T) {
	boom := errors.New("connection refused")
	m := tokens.NewManager(failingStore{err: boom})

	_, err := m.Consume(context.Background(), "abc")
	assert.ErrorIs(t, err, boom)
	assert.False(t, errors.Is(err, tokens.ErrTokenNotFound))
}

func TestConfirmAccount_WithoutTokenIsRejected(t *testing.T) {
	m := tokens.NewManager(memory.NewUsersRepo())

	err := m.ConfirmAccount(context.Background(), user.User{ID: "u1"})
	assert.ErrorIs(t, err, tokens.ErrTokenNotFound)
}

func TestResetPassword_ConfirmsPendingSignup(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewUsersRepo()
	m := tokens.NewManager(repo)

	u, err := m.Register(ctx, "Ana", "ana@x.com", "secret1")
	require.NoError(t, err)
	confirmToken := *u.Token

	require.NoError(t, m.Issue(ctx, &u))
	pending, err := m.Consume(ctx, *u.Token)
	require.NoError(t, err)
	require.NoError(t, m.ResetPassword(ctx, pending, "brand-new"))

	after, err := repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, after.Confirmed)
	assert.False(t, after.PendingAction())

	_, err = m.Consume(ctx, confirmToken)
	assert.ErrorIs(t, err, tokens.ErrTokenNotFound)
}
