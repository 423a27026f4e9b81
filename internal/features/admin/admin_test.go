package admin

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/streak-bot/internal/bot/tg"
	"serotonyl.ru/streak-bot/internal/common"
	"serotonyl.ru/streak-bot/internal/features/community"
)

const (
	ownerID    int64 = 1001
	strangerID int64 = 2002
	groupID    int64 = -100777
)

type fixture struct {
	service  *Service
	handler  *Handler
	api      *tg.FakeAPI
	registry *community.Registry
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	hash, err := HashPassword("s3cret")
	require.NoError(t, err)

	reg := community.NewRegistry(community.NewMemoryRepository(), community.Defaults{MessageCountRequired: 5})
	f := &fixture{api: tg.NewFakeAPI(), registry: reg, now: time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)}
	clock := func() time.Time { return f.now }

	premium := community.NewService(reg, nil).WithClock(clock)
	f.service = NewService(NewMemoryStore(), premium, []int64{ownerID}, hash).WithClock(clock)
	f.handler = NewHandler(f.service, f.api, time.UTC)
	return f
}

func dm(user int64, name string, args ...string) tg.Command {
	return tg.Command{ChatID: user, UserID: user, Private: true, Name: name, Args: args}
}

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("пароль")
	require.NoError(t, err)
	assert.True(t, VerifyPassword("пароль", hash))
	assert.False(t, VerifyPassword("Пароль", hash))
	assert.False(t, VerifyPassword("пароль", "not-a-hash"))
	assert.False(t, VerifyPassword("пароль", "$argon2id$v=19$m=x$salt$hash"))

	other, err := HashPassword("пароль")
	require.NoError(t, err)
	assert.NotEqual(t, hash, other, "соль случайная")
}

func TestLogin_LockoutAfterThreeFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.ErrorIs(t, f.service.Login(ctx, strangerID, "s3cret"), common.ErrNotBotOwner)

	for i := 0; i < MaxFailedAttempts; i++ {
		assert.ErrorIs(t, f.service.Login(ctx, ownerID, "wrong"), common.ErrWrongPassword)
	}
	assert.ErrorIs(t, f.service.Login(ctx, ownerID, "s3cret"), common.ErrTooManyAttempts)

	f.now = f.now.Add(AttemptWindow + time.Second)
	require.NoError(t, f.service.Login(ctx, ownerID, "s3cret"))
	require.NoError(t, f.service.Authorize(ctx, ownerID))
}

func TestSession_ExpiresAndLogout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.ErrorIs(t, f.service.Authorize(ctx, ownerID), common.ErrSessionExpired)
	require.NoError(t, f.service.Login(ctx, ownerID, "s3cret"))
	require.NoError(t, f.service.Authorize(ctx, ownerID))

	f.now = f.now.Add(SessionTTL)
	assert.ErrorIs(t, f.service.Authorize(ctx, ownerID), common.ErrSessionExpired)

	require.NoError(t, f.service.Login(ctx, ownerID, "s3cret"))
	require.NoError(t, f.service.Logout(ctx, ownerID))
	assert.ErrorIs(t, f.service.Authorize(ctx, ownerID), common.ErrSessionExpired)
}

func TestHandlers_PasswordPromptAndPremium(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.handler.HandlePremium(ctx, dm(ownerID, "premium", "-100777", "30"))
	assert.Equal(t, "❌ "+common.ErrSessionExpired.Error(), f.api.LastText())

	f.handler.HandleLogin(ctx, dm(ownerID, "login"))
	assert.Contains(t, f.api.LastText(), "Введите пароль")
	assert.True(t, f.handler.HandlePrivateText(ctx, dm(ownerID, ""), "s3cret"))
	assert.Contains(t, f.api.LastText(), "Аутентификация успешна")
	assert.False(t, f.handler.HandlePrivateText(ctx, dm(ownerID, ""), "просто текст"))

	f.handler.HandlePremium(ctx, dm(ownerID, "premium", "-100777", "30"))
	assert.Contains(t, f.api.LastText(), "01.05.2026 10:00")

	snap, err := f.registry.Snapshot(ctx, groupID)
	require.NoError(t, err)
	assert.True(t, snap.Config.Premium.Enabled)

	f.handler.HandlePremium(ctx, dm(ownerID, "premium", "-100777", "0"))
	assert.Equal(t, "❌ "+common.ErrInvalidDays.Error(), f.api.LastText())

	f.handler.HandleUnpremium(ctx, dm(ownerID, "unpremium", "-100777"))
	assert.Contains(t, f.api.LastText(), "отозван")
	snap, _ = f.registry.Snapshot(ctx, groupID)
	assert.False(t, snap.Config.Premium.Enabled)

	f.handler.HandleLogin(ctx, dm(strangerID, "login", "s3cret"))
	assert.Equal(t, "❌ "+common.ErrNotBotOwner.Error(), f.api.LastText())
}

func TestPasswordPromptExpires(t *testing.T) {
	f := newFixture(t)
	f.service.AwaitPassword(ownerID)
	f.now = f.now.Add(PasswordPromptTTL)
	assert.False(t, f.service.TakePasswordPrompt(ownerID))
	assert.False(t, f.service.TakePasswordPrompt(ownerID))
}
