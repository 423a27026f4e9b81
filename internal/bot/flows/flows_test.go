package flows

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/streak-bot/internal/common"
)

func newTestTracker(now *time.Time) *Tracker {
	return NewTracker(map[Kind]time.Duration{
		KindIcons:     60 * time.Second,
		KindBlocklist: 30 * time.Second,
		KindResetAll:  15 * time.Second,
	}).WithClock(func() time.Time { return *now })
}

func TestTracker_Lifetime(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tr := newTestTracker(&now)

	f := tr.Open(KindBlocklist, -1, 5)
	tr.Bind(f.ID, 777)

	got, err := tr.Get(f.ID, KindBlocklist, 5)
	require.NoError(t, err)
	assert.Equal(t, 777, got.MessageID)

	now = now.Add(29 * time.Second)
	_, err = tr.Get(f.ID, KindBlocklist, 5)
	require.NoError(t, err)

	now = now.Add(time.Second)
	_, err = tr.Get(f.ID, KindBlocklist, 5)
	assert.ErrorIs(t, err, common.ErrFlowExpired)
	assert.Equal(t, 0, tr.Len())
}

func TestTracker_OwnerAndKind(t *testing.T) {
	now := time.Now()
	tr := newTestTracker(&now)

	f := tr.Open(KindIcons, -1, 5)
	_, err := tr.Get(f.ID, KindIcons, 6)
	assert.ErrorIs(t, err, common.ErrNotOwner)

	_, err = tr.Get(f.ID, KindTop, 5)
	assert.ErrorIs(t, err, common.ErrFlowExpired)

	public := tr.Open(KindTop, -1, 0)
	_, err = tr.Get(public.ID, KindTop, 12345)
	assert.NoError(t, err, "top pages can be flipped by anyone")

	tr.Close(f.ID)
	_, err = tr.Get(f.ID, KindIcons, 5)
	assert.ErrorIs(t, err, common.ErrFlowExpired)

	_, err = tr.Get("unknown", KindIcons, 5)
	assert.ErrorIs(t, err, common.ErrFlowExpired)
}

func TestTracker_Expired(t *testing.T) {
	now := time.Now()
	tr := newTestTracker(&now)

	short := tr.Open(KindResetAll, -1, 1)
	tr.Open(KindIcons, -1, 2)

	now = now.Add(20 * time.Second)
	expired := tr.Expired()
	require.Len(t, expired, 1)
	assert.Equal(t, short.ID, expired[0].ID)
	assert.Equal(t, 1, tr.Len())
}

func TestTracker_DefaultTTL(t *testing.T) {
	now := time.Now()
	tr := newTestTracker(&now)
	f := tr.Open(KindTop, -1, 0)
	assert.Equal(t, now.Add(time.Minute), f.ExpiresAt)
}

func TestTracker_Options(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tr := newTestTracker(&now)

	f := tr.Open(KindIcons, -1, 5)
	opts := []string{"🔥", "⭐"}
	tr.Attach(f.ID, opts)
	opts[0] = "x"

	got, err := tr.Get(f.ID, KindIcons, 5)
	require.NoError(t, err)
	v, ok := got.Option(0)
	assert.True(t, ok)
	assert.Equal(t, "🔥", v)
	_, ok = got.Option(2)
	assert.False(t, ok)
	_, ok = got.Option(-1)
	assert.False(t, ok)
}
