package community

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/streak-bot/internal/bot/tg"
	"serotonyl.ru/streak-bot/internal/common"
)

func newTestHandler(t *testing.T) (*Handler, *Service, *tg.FakeAPI) {
	t.Helper()
	reg, _ := newTestRegistry(t)
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	svc := NewService(reg, nil).WithClock(func() time.Time { return now })
	api := tg.NewFakeAPI()
	return NewHandler(svc, api, time.UTC), svc, api
}

func cmdIn(thread int, name string, args ...string) tg.Command {
	return tg.Command{ChatID: chatID, ThreadID: thread, UserID: 1, Name: name, Args: args}
}

func TestHandlers_Settings(t *testing.T) {
	h, svc, api := newTestHandler(t)
	ctx := context.Background()

	h.HandleSetChannel(ctx, cmdIn(42, "setchannel"))
	assert.Contains(t, api.LastText(), "тема #42")
	h.HandleSetCount(ctx, cmdIn(42, "setcount", "3"))
	assert.Contains(t, api.LastText(), "3 сообщения")
	h.HandleSetCount(ctx, cmdIn(42, "setcount", "0"))
	assert.Equal(t, "❌ "+common.ErrInvalidMessageCount.Error(), api.LastText())
	h.HandleTimeLimit(ctx, cmdIn(42, "timelimit", "on"))
	h.HandleAddCommandThread(ctx, cmdIn(7, "addcmdthread"))
	h.HandleAddCommandThread(ctx, cmdIn(7, "addcmdthread"))
	assert.Equal(t, "❌ "+common.ErrThreadAlreadyAdded.Error(), api.LastText())
	h.HandleAddRole(ctx, cmdIn(7, "addrole", "Старый", "друг"))
	h.HandleSetLogs(ctx, cmdIn(7, "setlogs", "-555"))

	c, err := svc.Settings(ctx, chatID)
	require.NoError(t, err)
	require.NotNil(t, c.ActivityThreadID)
	assert.Equal(t, 42, *c.ActivityThreadID)
	assert.Equal(t, 3, c.MessageCountRequired)
	assert.True(t, c.TimeLimit)
	assert.Equal(t, []int{7}, c.CommandThreadIDs)
	assert.Equal(t, []string{"member", "Старый друг"}, c.StreakRoles)
	require.NotNil(t, c.LogsChatID)
	assert.Equal(t, int64(-555), *c.LogsChatID)

	h.HandleSettings(ctx, cmdIn(7, "settings"))
	text := api.LastText()
	assert.Contains(t, text, "тема #42")
	assert.Contains(t, text, "тема #7")
	assert.Contains(t, text, "Старый друг")
	assert.Contains(t, text, "-555")
	assert.Contains(t, text, "Премиум: нет")

	h.HandleSetChannel(ctx, cmdIn(7, "setchannel", "off"))
	h.HandleRemoveCommandThread(ctx, cmdIn(7, "removecmdthread"))
	h.HandleRemoveRole(ctx, cmdIn(7, "removerole", "member"))
	h.HandleSetLogs(ctx, cmdIn(7, "setlogs", "off"))
	c, _ = svc.Settings(ctx, chatID)
	assert.Nil(t, c.ActivityThreadID)
	assert.Empty(t, c.CommandThreadIDs)
	assert.Equal(t, []string{"Старый друг"}, c.StreakRoles)
	assert.Nil(t, c.LogsChatID)
}

func TestHandlers_Premium(t *testing.T) {
	h, svc, api := newTestHandler(t)
	ctx := context.Background()

	h.HandleAddIcon(ctx, cmdIn(0, "addicon", "gold", "🐉", "дракон"))
	assert.Equal(t, "❌ "+common.ErrPremiumRequired.Error(), api.LastText())

	_, err := svc.ActivatePremium(ctx, chatID, 10)
	require.NoError(t, err)

	h.HandleAddIcon(ctx, cmdIn(0, "addicon", "Gold", "🐉", "дракон"))
	assert.Contains(t, api.LastText(), "Золото")
	h.HandleAddIcon(ctx, cmdIn(0, "addicon", "novice", "🐉"))
	assert.Equal(t, "❌ "+common.ErrUnknownRank.Error(), api.LastText())

	h.HandleBounds(ctx, cmdIn(0, "bounds", "gold", "30", "60"))
	assert.Contains(t, api.LastText(), "30–60")
	h.HandleBounds(ctx, cmdIn(0, "bounds", "gold", "30", "10"))
	assert.Equal(t, "❌ "+common.ErrInvalidBounds.Error(), api.LastText())

	h.HandleIcons(ctx, cmdIn(0, "icons", "gold"))
	text := api.LastText()
	assert.Contains(t, text, "🐉 дракон (свой)")
	assert.Contains(t, text, "стрик 30–60")
	assert.NotContains(t, text, "Серебро")

	h.HandleSettings(ctx, cmdIn(0, "settings"))
	assert.Contains(t, api.LastText(), "Премиум: до 11.05.2026 12:00")

	h.HandleDeleteIcon(ctx, cmdIn(0, "delicon", "gold", "дракон"))
	assert.Contains(t, api.LastText(), "удалён")
	h.HandleClearBounds(ctx, cmdIn(0, "clearbounds", "gold"))
	assert.Contains(t, api.LastText(), "сброшены")

	c, _ := svc.Settings(ctx, chatID)
	assert.Empty(t, c.Premium.CustomIcons)
	assert.Empty(t, c.Premium.LevelBounds)
}
