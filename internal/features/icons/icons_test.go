package icons

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/streak-bot/internal/common"
	"serotonyl.ru/streak-bot/internal/features/community"
	"serotonyl.ru/streak-bot/internal/features/ranks"
)

const (
	chatID int64 = -500
	owner  int64 = 10
	other  int64 = 11
)

func TestMemoryCooldowns(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	cd := NewMemoryCooldowns(5 * time.Minute).WithClock(func() time.Time { return now })

	left, err := cd.Remaining(ctx, owner)
	require.NoError(t, err)
	assert.Zero(t, left)

	require.NoError(t, cd.Start(ctx, owner))
	now = now.Add(50 * time.Second)
	left, _ = cd.Remaining(ctx, owner)
	assert.Equal(t, 4*time.Minute+10*time.Second, left)

	left, _ = cd.Remaining(ctx, other)
	assert.Zero(t, left, "cooldowns are per user")

	now = now.Add(5 * time.Minute)
	left, _ = cd.Remaining(ctx, owner)
	assert.Zero(t, left)
}

func TestRedisCooldowns(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cd := NewRedisCooldowns(client, 5*time.Minute)

	left, err := cd.Remaining(ctx, owner)
	require.NoError(t, err)
	assert.Zero(t, left)

	require.NoError(t, cd.Start(ctx, owner))
	assert.True(t, mr.Exists(PrefixCooldown+"10"))

	left, err = cd.Remaining(ctx, owner)
	require.NoError(t, err)
	assert.Greater(t, left, 4*time.Minute)
	assert.LessOrEqual(t, left, 5*time.Minute)

	mr.FastForward(5*time.Minute + time.Second)
	left, err = cd.Remaining(ctx, owner)
	require.NoError(t, err)
	assert.Zero(t, left)
}

func TestRedisCooldowns_ConnectionError(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	_, err := NewRedisCooldowns(client, time.Minute).Remaining(context.Background(), owner)
	assert.Error(t, err)
}

type fixture struct {
	registry  *community.Registry
	service   *Service
	cooldowns *MemoryCooldowns
	now       time.Time
}

func newFixture(t *testing.T, streak int, premium bool) *fixture {
	t.Helper()
	ctx := context.Background()
	reg := community.NewRegistry(community.NewMemoryRepository(), community.Defaults{MessageCountRequired: 5})
	f := &fixture{registry: reg, now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	f.cooldowns = NewMemoryCooldowns(DefaultCooldown).WithClock(func() time.Time { return f.now })
	f.service = NewService(reg, f.cooldowns)

	require.NoError(t, reg.Update(ctx, chatID, func(st *community.State) error {
		st.Record(owner).Streak = streak
		return nil
	}))
	if premium {
		_, err := community.NewService(reg, nil).ActivatePremium(ctx, chatID, 30)
		require.NoError(t, err)
	}
	return f
}

func (f *fixture) selected(t *testing.T) string {
	t.Helper()
	snap, err := f.registry.Snapshot(context.Background(), chatID)
	require.NoError(t, err)
	return snap.Peek(owner).SelectedIcon
}

func TestSelect_Success(t *testing.T) {
	f := newFixture(t, 25, true)
	silver, _ := ranks.Lookup("silver")
	star := silver.Icons[1].Emoji

	info, err := f.service.Select(context.Background(), chatID, owner, owner, star)
	require.NoError(t, err)
	assert.Equal(t, "silver", info.Key)
	assert.Equal(t, star, info.Icon)
	assert.Equal(t, star, f.selected(t))

	// пауза началась
	_, err = f.service.Select(context.Background(), chatID, owner, owner, silver.Icons[0].Emoji)
	var cd *CooldownError
	require.True(t, errors.As(err, &cd))
	assert.Equal(t, DefaultCooldown, cd.Remaining)
	assert.Contains(t, cd.Error(), "5 минут")
	assert.Equal(t, star, f.selected(t))

	f.now = f.now.Add(DefaultCooldown)
	_, err = f.service.Select(context.Background(), chatID, owner, owner, silver.Icons[0].Emoji)
	require.NoError(t, err)
	assert.Equal(t, silver.Icons[0].Emoji, f.selected(t))
}

func TestSelect_Rejections(t *testing.T) {
	ctx := context.Background()
	silver, _ := ranks.Lookup("silver")
	gold, _ := ranks.Lookup("gold")

	f := newFixture(t, 25, true)
	_, err := f.service.Select(ctx, chatID, other, owner, silver.Icons[0].Emoji)
	assert.ErrorIs(t, err, common.ErrNotOwner)

	_, err = f.service.Select(ctx, chatID, owner, owner, gold.Icons[0].Emoji)
	assert.ErrorIs(t, err, common.ErrUnknownIcon, "icons of another rank are not selectable")

	locked := newFixture(t, 9, true)
	_, err = locked.service.Select(ctx, chatID, owner, owner, "🌱")
	assert.ErrorIs(t, err, common.ErrIconLocked)

	free := newFixture(t, 25, false)
	_, err = free.service.Select(ctx, chatID, owner, owner, silver.Icons[0].Emoji)
	assert.ErrorIs(t, err, common.ErrPremiumRequired)
	assert.Empty(t, free.selected(t))
}

func TestSelect_CustomIcon(t *testing.T) {
	f := newFixture(t, 12, true)
	ctx := context.Background()
	_, err := community.NewService(f.registry, nil).AddCustomIcon(ctx, chatID, "bronze", "🦊", "лиса")
	require.NoError(t, err)

	p, err := f.service.Open(ctx, chatID, owner)
	require.NoError(t, err)
	assert.Equal(t, "bronze", p.Rank.Key)
	require.NotEmpty(t, p.Icons)
	assert.Equal(t, "🦊", p.Icons[len(p.Icons)-1].Emoji, "custom icons come after built-in ones")

	_, err = f.service.Select(ctx, chatID, owner, owner, "🦊")
	require.NoError(t, err)
	assert.Equal(t, "🦊", f.selected(t))

	_, err = f.service.Open(ctx, chatID, owner)
	var cd *CooldownError
	assert.True(t, errors.As(err, &cd))
}

func TestOpen_Gates(t *testing.T) {
	ctx := context.Background()

	_, err := newFixture(t, 30, false).service.Open(ctx, chatID, owner)
	assert.ErrorIs(t, err, common.ErrPremiumRequired)

	_, err = newFixture(t, 3, true).service.Open(ctx, chatID, owner)
	assert.ErrorIs(t, err, common.ErrIconLocked)
}

func TestSelectionStatus(t *testing.T) {
	assert.Equal(t, "success", selectionStatus(nil))
	assert.Equal(t, "cooldown", selectionStatus(&CooldownError{Remaining: time.Second}))
	assert.Equal(t, "not_owner", selectionStatus(common.ErrNotOwner))
	assert.Equal(t, "error", selectionStatus(errors.New("boom")))
}
