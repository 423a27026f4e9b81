// Package notify доставляет события стриков в Telegram: личные сообщения
// участникам, записи в журнал сообщества и в общий журнал бота.
// Доставка не гарантируется: ошибки логируются и считаются в метриках,
// но никогда не откатывают уже сохранённое изменение.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/streak-bot/internal/common"
	"serotonyl.ru/streak-bot/internal/features/members"
	"serotonyl.ru/streak-bot/internal/features/streak"
	"serotonyl.ru/streak-bot/internal/metrics"
)

// Sender: часть Telegram API, нужная для отправки сообщений.
type Sender interface {
	SendMessage(ctx context.Context, params *telego.SendMessageParams) (*telego.Message, error)
	GetChatAdministrators(ctx context.Context, params *telego.GetChatAdministratorsParams) ([]telego.ChatMember, error)
}

// Names возвращает отображаемое имя пользователя.
type Names interface {
	Name(ctx context.Context, userID int64) string
}

// Notifier реализует streak.Notifier и community.ExpiryNotifier.
type Notifier struct {
	sender Sender
	names  Names
	// Общий журнал бота (добавление/удаление из чатов). 0: не ведётся.
	botLogChatID int64
	loc          *time.Location
}

// New создаёт Notifier.
func New(sender Sender, names Names, botLogChatID int64, loc *time.Location) *Notifier {
	if loc == nil {
		loc = time.UTC
	}
	return &Notifier{sender: sender, names: names, botLogChatID: botLogChatID, loc: loc}
}

var _ streak.Notifier = (*Notifier)(nil)

func (n *Notifier) mention(ctx context.Context, userID int64) string {
	name := ""
	if n.names != nil {
		name = n.names.Name(ctx, userID)
	}
	return members.Mention(userID, name)
}

// send отправляет HTML-сообщение. kind: метка для метрик и логов.
func (n *Notifier) send(ctx context.Context, kind string, chatID int64, text string) {
	_ = n.deliver(ctx, kind, chatID, text)
}

// deliver как send, но сообщает, дошло ли сообщение.
func (n *Notifier) deliver(ctx context.Context, kind string, chatID int64, text string) bool {
	if chatID == 0 {
		return false
	}
	params := tu.Message(tu.ID(chatID), text).WithParseMode(telego.ModeHTML)
	if _, err := n.sender.SendMessage(ctx, params); err != nil {
		metrics.RecordNotificationFailed(kind)
		log.WithError(err).WithFields(log.Fields{
			"kind":    kind,
			"chat_id": chatID,
		}).Warn("Не удалось доставить уведомление")
		return false
	}
	return true
}

func (n *Notifier) audit(ctx context.Context, logs *int64, text string) {
	if logs == nil {
		return
	}
	n.send(ctx, "audit", *logs, text)
}

// StreakIncremented пишет в журнал сообщества, а при смене ранга
// поздравляет участника в личных сообщениях.
func (n *Notifier) StreakIncremented(ctx context.Context, e streak.Increment) {
	who := n.mention(ctx, e.UserID)
	n.audit(ctx, e.LogsChatID, fmt.Sprintf("%s %s: стрик %d → %d",
		e.Rank.Badge, who, e.OldStreak, e.Streak))

	if e.Rank.Key == e.OldRank.Key {
		return
	}
	n.send(ctx, "rank_up", e.UserID, fmt.Sprintf(
		"%s Новый ранг: <b>%s</b>!\nВаш стрик: %s.",
		e.Rank.Icon, e.Rank.Title, days(e.Streak)))
}

// StreakBroken сообщает участнику об обрыве и пишет в журнал.
func (n *Notifier) StreakBroken(ctx context.Context, e streak.Break) {
	n.send(ctx, "break", e.UserID, fmt.Sprintf(
		"💔 Ваш стрик прервался. Потеряно: %s.\nНапишите сегодня, чтобы начать заново.",
		days(e.Lost)))
	n.audit(ctx, e.LogsChatID, fmt.Sprintf("💔 %s потерял стрик (%s)",
		n.mention(ctx, e.UserID), days(e.Lost)))
}

// Moderated пишет действие администратора в журнал сообщества.
func (n *Notifier) Moderated(ctx context.Context, e streak.Moderation) {
	if e.LogsChatID == nil {
		return
	}
	actor := n.mention(ctx, e.ActorID)

	var text string
	switch e.Action {
	case streak.ActionBlock:
		text = fmt.Sprintf("🚫 %s заблокировал %s (стрик был %d)", actor, n.mention(ctx, e.TargetID), e.Before)
	case streak.ActionUnblock:
		text = fmt.Sprintf("✅ %s разблокировал %s", actor, n.mention(ctx, e.TargetID))
	case streak.ActionAdd:
		text = fmt.Sprintf("➕ %s добавил %s к стрику %s: %d → %d",
			actor, days(e.Amount), n.mention(ctx, e.TargetID), e.Before, e.After)
	case streak.ActionRemove:
		text = fmt.Sprintf("➖ %s снял %s со стрика %s: %d → %d",
			actor, days(e.Amount), n.mention(ctx, e.TargetID), e.Before, e.After)
	case streak.ActionReset:
		text = fmt.Sprintf("♻️ %s сбросил стрик %s (был %d)", actor, n.mention(ctx, e.TargetID), e.Before)
	case streak.ActionResetAll:
		text = fmt.Sprintf("⚠️ %s сбросил все стрики сообщества (записей: %d)", actor, e.Amount)
	default:
		text = fmt.Sprintf("%s: %s", actor, e.Action)
	}
	n.audit(ctx, e.LogsChatID, text)
}

// PremiumExpired пишет владельцу сообщества в личку об окончании премиума.
// Если владельца не найти или он закрыл личку, сообщение уходит в сам чат.
func (n *Notifier) PremiumExpired(ctx context.Context, chatID int64, expiredAt time.Time) {
	text := fmt.Sprintf(
		"⌛ Премиум закончился %s. Свои значки и границы рангов отключены.",
		common.FormatDateTime(expiredAt, n.loc))

	if owner := n.owner(ctx, chatID); owner != 0 {
		if n.deliver(ctx, "premium_expired", owner, text) {
			return
		}
	}
	n.send(ctx, "premium_expired", chatID, text)
}

// owner возвращает создателя чата, 0 если его не удалось узнать.
func (n *Notifier) owner(ctx context.Context, chatID int64) int64 {
	admins, err := n.sender.GetChatAdministrators(ctx, &telego.GetChatAdministratorsParams{ChatID: tu.ID(chatID)})
	if err != nil {
		log.WithError(err).WithField("chat_id", chatID).Warn("Не удалось получить список администраторов")
		return 0
	}
	for _, m := range admins {
		if m.MemberStatus() == telego.MemberStatusCreator {
			return m.MemberUser().ID
		}
	}
	return 0
}

// BotAdded пишет в общий журнал, что бота добавили в чат.
func (n *Notifier) BotAdded(ctx context.Context, chat telego.Chat, by int64) {
	n.send(ctx, "bot_log", n.botLogChatID, fmt.Sprintf(
		"➕ Бот добавлен в чат <b>%s</b> (<code>%d</code>), добавил %s",
		escape(chat.Title), chat.ID, n.mention(ctx, by)))
}

// BotRemoved пишет в общий журнал, что бота удалили из чата.
func (n *Notifier) BotRemoved(ctx context.Context, chat telego.Chat, by int64) {
	n.send(ctx, "bot_log", n.botLogChatID, fmt.Sprintf(
		"➖ Бот удалён из чата <b>%s</b> (<code>%d</code>), удалил %s",
		escape(chat.Title), chat.ID, n.mention(ctx, by)))
}

var htmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func escape(s string) string { return htmlEscaper.Replace(s) }

func days(n int) string { return common.FormatCount(n, common.PluralizeDays) }
