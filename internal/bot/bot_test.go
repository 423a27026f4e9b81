package bot

import (
	"context"
	"testing"
	"time"

	"github.com/mymmrac/telego"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/streak-bot/internal/bot/filters"
	"serotonyl.ru/streak-bot/internal/bot/flows"
	"serotonyl.ru/streak-bot/internal/bot/tg"
	"serotonyl.ru/streak-bot/internal/features/admin"
	"serotonyl.ru/streak-bot/internal/features/community"
	"serotonyl.ru/streak-bot/internal/features/icons"
	"serotonyl.ru/streak-bot/internal/features/leaderboard"
	"serotonyl.ru/streak-bot/internal/features/members"
	"serotonyl.ru/streak-bot/internal/features/streak"
)

const (
	groupID  int64 = -100500
	memberID int64 = 11
	adminID  int64 = 22
)

type noMembers struct{}

func (noMembers) Upsert(context.Context, *members.Member) error { return nil }
func (noMembers) GetByUserID(context.Context, int64) (*members.Member, error) {
	return nil, members.ErrNotFound
}
func (noMembers) GetByUsername(context.Context, string) (*members.Member, error) {
	return nil, members.ErrNotFound
}
func (noMembers) GetMany(context.Context, []int64) (map[int64]*members.Member, error) {
	return map[int64]*members.Member{}, nil
}

type chatEvents struct{ added, removed []int64 }

func (e *chatEvents) BotAdded(_ context.Context, chat telego.Chat, _ int64) {
	e.added = append(e.added, chat.ID)
}
func (e *chatEvents) BotRemoved(_ context.Context, chat telego.Chat, _ int64) {
	e.removed = append(e.removed, chat.ID)
}

type botFixture struct {
	bot      *Bot
	api      *tg.FakeAPI
	registry *community.Registry
	settings *community.Service
	tracker  *flows.Tracker
	events   *chatEvents
	now      time.Time
}

func newBotFixture(t *testing.T) *botFixture {
	t.Helper()
	f := &botFixture{
		api:    tg.NewFakeAPI(),
		events: &chatEvents{},
		now:    time.Date(2026, 5, 5, 12, 0, 0, 0, time.UTC),
	}
	f.api.Statuses[adminID] = &telego.ChatMemberAdministrator{Status: telego.MemberStatusAdministrator}

	f.registry = community.NewRegistry(community.NewMemoryRepository(), community.Defaults{MessageCountRequired: 1})
	require.NoError(t, f.registry.Load(context.Background()))
	f.settings = community.NewService(f.registry, nil)
	perms := filters.NewPermissions(f.api, time.Minute)
	f.tracker = flows.NewTracker(nil).WithClock(func() time.Time { return f.now })

	streaks := streak.NewService(f.registry, perms, nil, streak.Options{Location: time.UTC, BlackoutMinutes: 5}).
		WithClock(func() time.Time { return f.now })
	memberService := members.NewService(noMembers{})

	handlers := Handlers{
		Members:     members.NewHandler(memberService),
		Streak:      streak.NewHandler(streaks, f.api, perms, memberService, memberService, f.tracker),
		Icons:       icons.NewHandler(icons.NewService(f.registry, icons.NewMemoryCooldowns(time.Minute)), f.api, f.tracker, time.Minute),
		Leaderboard: leaderboard.NewHandler(f.registry, f.api, memberService, f.tracker, time.UTC),
		Community:   community.NewHandler(f.settings, f.api, time.UTC),
		Admin:       admin.NewHandler(admin.NewService(admin.NewMemoryStore(), f.settings, nil, ""), f.api, time.UTC),
	}
	f.bot = New(f.api, handlers, streaks, f.settings, perms, f.tracker, f.events, Options{BotUsername: "streak_bot"})
	return f
}

func (f *botFixture) message(from int64, text string, thread int) telego.Update {
	msg := &telego.Message{
		MessageID: 1,
		Date:      f.now.Unix(),
		Chat:      telego.Chat{ID: groupID, Type: telego.ChatTypeSupergroup},
		From:      &telego.User{ID: from, FirstName: "Тест"},
		Text:      text,
	}
	if thread != 0 {
		msg.IsTopicMessage = true
		msg.MessageThreadID = thread
	}
	return telego.Update{Message: msg}
}

func (f *botFixture) configure(t *testing.T, p community.Patch) {
	t.Helper()
	_, err := f.settings.Configure(context.Background(), groupID, p)
	require.NoError(t, err)
}

func TestHandleUpdate_CountsActivityInThread(t *testing.T) {
	f := newBotFixture(t)
	ctx := context.Background()
	thread := 7
	f.configure(t, community.Patch{ActivityThreadID: &thread})

	f.bot.HandleUpdate(ctx, f.message(memberID, "привет", 7))
	f.bot.HandleUpdate(ctx, f.message(memberID, "ещё раз", 7))
	f.bot.HandleUpdate(ctx, f.message(memberID, "не та тема", 3))

	st, err := f.registry.Snapshot(ctx, groupID)
	require.NoError(t, err)
	rec := st.Peek(memberID)
	assert.Equal(t, 1, rec.Streak)
	assert.Equal(t, 2, rec.DailyMessages)
	assert.Empty(t, f.api.Sent)
}

func TestHandleUpdate_CommandsNotCounted(t *testing.T) {
	f := newBotFixture(t)
	ctx := context.Background()
	thread := 7
	f.configure(t, community.Patch{ActivityThreadID: &thread})

	f.bot.HandleUpdate(ctx, f.message(memberID, "/streak", 7))

	st, _ := f.registry.Snapshot(ctx, groupID)
	assert.Equal(t, 0, st.Peek(memberID).DailyMessages)
	require.Len(t, f.api.Sent, 1)
	assert.Contains(t, f.api.LastText(), "Серия")
}

func TestHandleUpdate_CommandThreads(t *testing.T) {
	f := newBotFixture(t)
	ctx := context.Background()
	cmdThread := 5
	f.configure(t, community.Patch{AddCommandThread: &cmdThread})

	f.bot.HandleUpdate(ctx, f.message(memberID, "/top", 3))
	assert.Empty(t, f.api.Sent, "вне тем для команд участник молчит")

	f.bot.HandleUpdate(ctx, f.message(memberID, "/top", 5))
	assert.Len(t, f.api.Sent, 1)

	f.bot.HandleUpdate(ctx, f.message(adminID, "/settings", 3))
	assert.Len(t, f.api.Sent, 2, "администраторские команды работают в любой теме")
}

func TestHandleUpdate_AdminOnly(t *testing.T) {
	f := newBotFixture(t)
	ctx := context.Background()

	f.bot.HandleUpdate(ctx, f.message(memberID, "/setcount 3", 0))
	assert.Equal(t, "❌ у вас нет прав администратора", f.api.LastText())

	f.bot.HandleUpdate(ctx, f.message(adminID, "/setcount@streak_bot 3", 0))
	cfg, err := f.settings.Settings(ctx, groupID)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.MessageCountRequired)
}

func TestHandleUpdate_Scopes(t *testing.T) {
	f := newBotFixture(t)
	ctx := context.Background()

	f.bot.HandleUpdate(ctx, f.message(adminID, "/premium -100 30", 0))
	assert.Empty(t, f.api.Sent, "команды владельца в группе игнорируются")

	dm := f.message(memberID, "/streak", 0)
	dm.Message.Chat = telego.Chat{ID: memberID, Type: telego.ChatTypePrivate}
	f.bot.HandleUpdate(ctx, dm)
	assert.Equal(t, "Эта команда работает только в группе", f.api.LastText())
}

func TestHandleUpdate_IgnoresBotsAndChannels(t *testing.T) {
	f := newBotFixture(t)
	ctx := context.Background()

	upd := f.message(memberID, "/top", 0)
	upd.Message.From.IsBot = true
	f.bot.HandleUpdate(ctx, upd)

	upd = f.message(memberID, "/top", 0)
	upd.Message.Chat.Type = telego.ChatTypeChannel
	f.bot.HandleUpdate(ctx, upd)

	assert.Empty(t, f.api.Sent)
}

func TestHandleUpdate_StaleCallback(t *testing.T) {
	f := newBotFixture(t)
	ctx := context.Background()

	f.bot.HandleUpdate(ctx, telego.Update{CallbackQuery: &telego.CallbackQuery{
		ID:      "q1",
		From:    telego.User{ID: memberID},
		Message: &telego.Message{MessageID: 9, Chat: telego.Chat{ID: groupID}},
		Data:    "unknown:abc:1",
	}})
	require.Len(t, f.api.Answers, 1)
	assert.Equal(t, "Кнопка устарела", f.api.LastAnswer())
}

func TestHandleUpdate_BotAddedAndRemoved(t *testing.T) {
	f := newBotFixture(t)
	ctx := context.Background()
	chat := telego.Chat{ID: groupID, Type: telego.ChatTypeSupergroup}

	f.bot.HandleUpdate(ctx, telego.Update{MyChatMember: &telego.ChatMemberUpdated{
		Chat:          chat,
		From:          telego.User{ID: adminID},
		OldChatMember: &telego.ChatMemberLeft{Status: telego.MemberStatusLeft},
		NewChatMember: &telego.ChatMemberMember{Status: telego.MemberStatusMember},
	}})
	f.bot.HandleUpdate(ctx, telego.Update{MyChatMember: &telego.ChatMemberUpdated{
		Chat:          chat,
		From:          telego.User{ID: adminID},
		OldChatMember: &telego.ChatMemberMember{Status: telego.MemberStatusMember},
		NewChatMember: &telego.ChatMemberAdministrator{Status: telego.MemberStatusAdministrator},
	}})
	f.bot.HandleUpdate(ctx, telego.Update{MyChatMember: &telego.ChatMemberUpdated{
		Chat:          chat,
		From:          telego.User{ID: adminID},
		OldChatMember: &telego.ChatMemberAdministrator{Status: telego.MemberStatusAdministrator},
		NewChatMember: &telego.ChatMemberBanned{Status: telego.MemberStatusBanned},
	}})

	assert.Equal(t, []int64{groupID}, f.events.added)
	assert.Equal(t, []int64{groupID}, f.events.removed)
}

func TestDropExpired(t *testing.T) {
	f := newBotFixture(t)
	fl := f.tracker.Open(flows.KindTop, groupID, memberID)
	f.tracker.Bind(fl.ID, 42)
	f.tracker.Open(flows.KindTop, groupID, memberID) // без сообщения

	f.now = f.now.Add(2 * time.Minute)
	f.bot.dropExpired(context.Background())

	require.Len(t, f.api.Drops, 1)
	assert.Equal(t, 42, f.api.Drops[0].MessageID)
	assert.Zero(t, f.tracker.Len())
}
