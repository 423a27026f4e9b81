// Package filters проверяет доступ перед обработкой: какие сообщения
// вообще смотреть, кто администратор чата, у кого есть нужная роль.
package filters

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mymmrac/telego"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/streak-bot/internal/bot/tg"
)

// Accept решает, смотреть ли сообщение: есть автор-человек, чат личный или групповой.
func Accept(msg *telego.Message) bool {
	if msg == nil || msg.From == nil {
		return false
	}
	if msg.From.IsBot {
		return false
	}
	switch msg.Chat.Type {
	case telego.ChatTypePrivate, telego.ChatTypeGroup, telego.ChatTypeSupergroup:
		return true
	default:
		log.WithFields(log.Fields{
			"component": "filters",
			"chat_id":   msg.Chat.ID,
			"chat_type": msg.Chat.Type,
		}).Debug("deny: unsupported chat type")
		return false
	}
}

type memberKey struct {
	chatID int64
	userID int64
}

type cachedMember struct {
	status  string
	title   string
	expires time.Time
}

// Permissions проверяет статус участника через getChatMember.
// Ответы кэшируются на ttl: сообщения в теме активности идут потоком.
type Permissions struct {
	api tg.API
	ttl time.Duration
	now func() time.Time

	mu    sync.Mutex
	cache map[memberKey]cachedMember
}

// NewPermissions создаёт проверку прав.
func NewPermissions(api tg.API, ttl time.Duration) *Permissions {
	return &Permissions{
		api:   api,
		ttl:   ttl,
		now:   time.Now,
		cache: make(map[memberKey]cachedMember),
	}
}

// WithClock подменяет часы (для тестов).
func (p *Permissions) WithClock(now func() time.Time) *Permissions {
	p.now = now
	return p
}

func (p *Permissions) lookup(ctx context.Context, chatID, userID int64) (cachedMember, error) {
	key := memberKey{chatID, userID}
	now := p.now()

	p.mu.Lock()
	c, ok := p.cache[key]
	p.mu.Unlock()
	if ok && now.Before(c.expires) {
		return c, nil
	}

	m, err := p.api.GetChatMember(ctx, &telego.GetChatMemberParams{
		ChatID: telego.ChatID{ID: chatID},
		UserID: userID,
	})
	if err != nil {
		return cachedMember{}, fmt.Errorf("getChatMember chat=%d user=%d: %w", chatID, userID, err)
	}

	c = cachedMember{status: m.MemberStatus(), expires: now.Add(p.ttl)}
	switch v := m.(type) {
	case *telego.ChatMemberOwner:
		c.title = v.CustomTitle
	case *telego.ChatMemberAdministrator:
		c.title = v.CustomTitle
	}

	p.mu.Lock()
	p.cache[key] = c
	p.mu.Unlock()
	return c, nil
}

// Forget сбрасывает кэш участника (после смены прав).
func (p *Permissions) Forget(chatID, userID int64) {
	p.mu.Lock()
	delete(p.cache, memberKey{chatID, userID})
	p.mu.Unlock()
}

// IsAdmin: создатель или администратор чата.
func (p *Permissions) IsAdmin(ctx context.Context, chatID, userID int64) (bool, error) {
	c, err := p.lookup(ctx, chatID, userID)
	if err != nil {
		return false, err
	}
	return c.status == telego.MemberStatusCreator || c.status == telego.MemberStatusAdministrator, nil
}

// HasAnyRole сравнивает роли со статусом участника (creator, administrator,
// member, restricted) и с его званием. Регистр не важен.
func (p *Permissions) HasAnyRole(ctx context.Context, chatID, userID int64, roles []string) (bool, error) {
	if len(roles) == 0 {
		return true, nil
	}
	c, err := p.lookup(ctx, chatID, userID)
	if err != nil {
		return false, err
	}
	for _, role := range roles {
		if strings.EqualFold(role, c.status) || (c.title != "" && strings.EqualFold(role, c.title)) {
			return true, nil
		}
	}
	return false, nil
}
