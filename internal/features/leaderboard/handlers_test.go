package leaderboard

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/mymmrac/telego"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/streak-bot/internal/bot/flows"
	"serotonyl.ru/streak-bot/internal/bot/tg"
	"serotonyl.ru/streak-bot/internal/common"
	"serotonyl.ru/streak-bot/internal/features/community"
)

const testChat int64 = -42

type idNames struct{}

func (idNames) Names(_ context.Context, ids []int64) map[int64]string {
	out := make(map[int64]string, len(ids))
	for _, id := range ids {
		out[id] = "user" + strconv.FormatInt(id, 10)
	}
	return out
}

type handlerFixture struct {
	handler  *Handler
	api      *tg.FakeAPI
	registry *community.Registry
	tracker  *flows.Tracker
	now      time.Time
}

// newHandlerFixture: сообщество с users участниками, стрик участника i равен i.
func newHandlerFixture(t *testing.T, users int) *handlerFixture {
	t.Helper()
	reg := community.NewRegistry(community.NewMemoryRepository(), community.Defaults{MessageCountRequired: 5})
	require.NoError(t, reg.Update(context.Background(), testChat, func(st *community.State) error {
		for i := 1; i <= users; i++ {
			st.Record(int64(i)).Streak = i
		}
		return nil
	}))

	f := &handlerFixture{api: tg.NewFakeAPI(), registry: reg, now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	f.tracker = flows.NewTracker(map[flows.Kind]time.Duration{
		flows.KindTop:       time.Minute,
		flows.KindBlocklist: 30 * time.Second,
	}).WithClock(func() time.Time { return f.now })
	f.handler = NewHandler(reg, f.api, idNames{}, f.tracker, time.UTC)
	return f
}

func topCmd(args ...string) tg.Command {
	return tg.Command{ChatID: testChat, UserID: 1, Name: "top", Args: args}
}

func buttonData(t *testing.T, markup *telego.InlineKeyboardMarkup) []string {
	t.Helper()
	require.NotNil(t, markup)
	var out []string
	for _, row := range markup.InlineKeyboard {
		for _, b := range row {
			out = append(out, b.CallbackData)
		}
	}
	return out
}

func TestHandleTop_Pages(t *testing.T) {
	f := newHandlerFixture(t, 25)
	ctx := context.Background()

	f.handler.HandleTop(ctx, topCmd())
	require.Len(t, f.api.Sent, 1)
	first := f.api.Sent[0]
	assert.Contains(t, first.Text, "страница 1/3")
	assert.Contains(t, first.Text, "🥇")
	assert.Contains(t, first.Text, "user25")
	assert.NotContains(t, first.Text, "user15")

	data := buttonData(t, first.ReplyMarkup.(*telego.InlineKeyboardMarkup))
	require.Len(t, data, 1, "на первой странице только «вперёд»")
	kind, id, payload, ok := tg.ParseCallbackData(data[0])
	require.True(t, ok)
	assert.Equal(t, "2", payload)

	f.handler.HandleTopPage(ctx, tg.Callback{ChatID: testChat, MessageID: 1, UserID: 1, Kind: kind, FlowID: id, Payload: payload})
	require.Len(t, f.api.Edits, 1)
	assert.Contains(t, f.api.Edits[0].Text, "страница 2/3")
	assert.Contains(t, f.api.Edits[0].Text, "11. ")
	assert.Len(t, buttonData(t, f.api.Edits[0].ReplyMarkup), 2)

	// номер за пределами зажимается
	f.handler.HandleTopPage(ctx, tg.Callback{ChatID: testChat, MessageID: 1, UserID: 1, FlowID: id, Payload: "99"})
	assert.Contains(t, f.api.Edits[1].Text, "страница 3/3")

	// чужое нажатие
	f.handler.HandleTopPage(ctx, tg.Callback{ChatID: testChat, MessageID: 1, UserID: 2, FlowID: id, Payload: "1"})
	assert.Equal(t, "❌ "+common.ErrNotOwner.Error(), f.api.LastAnswer())

	f.now = f.now.Add(time.Minute)
	f.handler.HandleTopPage(ctx, tg.Callback{ChatID: testChat, MessageID: 1, UserID: 1, FlowID: id, Payload: "1"})
	assert.Equal(t, "❌ "+common.ErrFlowExpired.Error(), f.api.LastAnswer())
}

func TestHandleTop_Refusals(t *testing.T) {
	f := newHandlerFixture(t, 25)
	ctx := context.Background()

	f.handler.HandleTop(ctx, topCmd("4"))
	assert.Equal(t, "❌ Такой страницы нет. Последняя страница: 3", f.api.LastText())

	f.handler.HandleTop(ctx, topCmd("0"))
	assert.Contains(t, f.api.LastText(), "положительным")

	f.handler.HandleTop(ctx, topCmd("abc"))
	assert.Contains(t, f.api.LastText(), "положительным")

	empty := newHandlerFixture(t, 0)
	empty.handler.HandleTop(ctx, topCmd())
	assert.Contains(t, empty.api.LastText(), "ни у кого")
}

func TestHandleTop_SinglePageHasNoButtons(t *testing.T) {
	f := newHandlerFixture(t, 3)
	f.handler.HandleTop(context.Background(), topCmd())
	require.Len(t, f.api.Sent, 1)
	assert.Nil(t, f.api.Sent[0].ReplyMarkup)
	assert.Equal(t, 0, f.tracker.Len())
}

func TestHandleBlocklist(t *testing.T) {
	f := newHandlerFixture(t, 0)
	ctx := context.Background()
	cmd := tg.Command{ChatID: testChat, UserID: 1, Name: "blocklist"}

	f.handler.HandleBlocklist(ctx, cmd)
	assert.Contains(t, f.api.LastText(), "пуст")

	blockedAt := time.Date(2026, 2, 3, 4, 5, 0, 0, time.UTC)
	require.NoError(t, f.registry.Update(ctx, testChat, func(st *community.State) error {
		for i := int64(100); i < 112; i++ {
			st.Block(i, blockedAt)
		}
		return nil
	}))

	f.handler.HandleBlocklist(ctx, cmd)
	text := f.api.LastText()
	assert.Contains(t, text, "страница 1/2, всего 12")
	assert.Contains(t, text, "1. ")
	assert.Contains(t, text, "user100")
	assert.Contains(t, text, "03.02.2026 04:05")
	assert.NotContains(t, text, "user110")

	f.handler.HandleBlocklist(ctx, tg.Command{ChatID: testChat, UserID: 1, Name: "blocklist", Args: []string{"3"}})
	assert.Contains(t, f.api.LastText(), "Последняя страница: 2")
}
