package filters

import (
	"context"
	"testing"
	"time"

	"github.com/mymmrac/telego"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/streak-bot/internal/bot/tg"
)

func TestAccept(t *testing.T) {
	human := &telego.User{ID: 1}
	bot := &telego.User{ID: 2, IsBot: true}

	assert.False(t, Accept(nil))
	assert.False(t, Accept(&telego.Message{Chat: telego.Chat{Type: telego.ChatTypeGroup}}))
	assert.False(t, Accept(&telego.Message{From: bot, Chat: telego.Chat{Type: telego.ChatTypeGroup}}))
	assert.False(t, Accept(&telego.Message{From: human, Chat: telego.Chat{Type: telego.ChatTypeChannel}}))
	assert.True(t, Accept(&telego.Message{From: human, Chat: telego.Chat{Type: telego.ChatTypeSupergroup}}))
	assert.True(t, Accept(&telego.Message{From: human, Chat: telego.Chat{Type: telego.ChatTypePrivate}}))
}

func TestPermissions(t *testing.T) {
	api := tg.NewFakeAPI()
	api.Statuses[1] = &telego.ChatMemberOwner{Status: telego.MemberStatusCreator, CustomTitle: "Босс"}
	api.Statuses[2] = &telego.ChatMemberAdministrator{Status: telego.MemberStatusAdministrator, CustomTitle: "Стример"}

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	p := NewPermissions(api, time.Minute).WithClock(func() time.Time { return now })
	ctx := context.Background()

	ok, err := p.IsAdmin(ctx, -100, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = p.IsAdmin(ctx, -100, 3)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = p.HasAnyRole(ctx, -100, 2, []string{"стример"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = p.HasAnyRole(ctx, -100, 3, []string{"Member"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = p.HasAnyRole(ctx, -100, 3, []string{"Стример"})
	require.NoError(t, err)
	assert.False(t, ok)

	// кэш: смена статуса видна только после ttl или Forget
	api.Statuses[3] = &telego.ChatMemberAdministrator{Status: telego.MemberStatusAdministrator}
	ok, _ = p.IsAdmin(ctx, -100, 3)
	assert.False(t, ok)

	now = now.Add(time.Minute)
	ok, _ = p.IsAdmin(ctx, -100, 3)
	assert.True(t, ok)

	api.Statuses[3] = &telego.ChatMemberMember{Status: telego.MemberStatusMember}
	p.Forget(-100, 3)
	ok, _ = p.IsAdmin(ctx, -100, 3)
	assert.False(t, ok)
}
