// Package streak (handlers.go) обрабатывает команды стриков: карточку
// участника и ручные действия администраторов.
package streak

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/mymmrac/telego"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/streak-bot/internal/bot/flows"
	"serotonyl.ru/streak-bot/internal/bot/tg"
	"serotonyl.ru/streak-bot/internal/common"
	"serotonyl.ru/streak-bot/internal/features/members"
	"serotonyl.ru/streak-bot/internal/features/ranks"
)

// Names: справочник отображаемых имён.
type Names interface {
	Name(ctx context.Context, userID int64) string
}

// Targets определяет цель команды администратора.
type Targets interface {
	ResolveTarget(ctx context.Context, replyTo int64, args []string) (int64, []string, error)
}

// Handler обрабатывает команды стрик-системы.
type Handler struct {
	service *Service
	api     tg.API
	roles   RoleChecker
	names   Names
	targets Targets
	flows   *flows.Tracker
}

// NewHandler создаёт новый обработчик стрик-команд.
func NewHandler(service *Service, api tg.API, roles RoleChecker, names Names, targets Targets, tracker *flows.Tracker) *Handler {
	return &Handler{
		service: service,
		api:     api,
		roles:   roles,
		names:   names,
		targets: targets,
		flows:   tracker,
	}
}

func (h *Handler) fail(ctx context.Context, cmd tg.Command, err error) {
	tg.Reply(ctx, h.api, cmd, tg.ErrorText(err, log.Fields{
		"chat_id": cmd.ChatID,
		"user_id": cmd.UserID,
		"command": cmd.Name,
	}), nil)
}

// HandleCard показывает карточку стрика.
//
// Формат ответа:
//
//	🔥 Стрик @anna
//	Ранг: 🥇 Золото
//	Серия: 12 дней
//	📊 Сегодня: 3/5
//
// Кнопка «Сменить значок» появляется со стрика 10.
func (h *Handler) HandleCard(ctx context.Context, cmd tg.Command) {
	card, err := h.service.Card(ctx, cmd.ChatID, cmd.UserID)
	if err != nil {
		h.fail(ctx, cmd, err)
		return
	}
	if card.Blocked {
		tg.Reply(ctx, h.api, cmd, "🚫 Вы в блок-листе и не участвуете в стриках", nil)
		return
	}
	if len(card.Roles) > 0 && h.roles != nil {
		ok, err := h.roles.HasAnyRole(ctx, cmd.ChatID, cmd.UserID, card.Roles)
		if err != nil {
			h.fail(ctx, cmd, err)
			return
		}
		if !ok {
			tg.Reply(ctx, h.api, cmd, "❌ Стрики доступны только участникам с ролями: "+strings.Join(card.Roles, ", "), nil)
			return
		}
	}

	text := RenderCard(h.names.Name(ctx, cmd.UserID), cmd.UserID, card, h.service.today())

	var markup *telego.InlineKeyboardMarkup
	if card.Record.Streak >= ranks.MinIconStreak {
		markup = tg.Keyboard([]telego.InlineKeyboardButton{
			tg.Button("🎨 Сменить значок", tg.CallbackData(tg.KindPicker, strconv.FormatInt(cmd.UserID, 10), "")),
		}, 1)
	}
	tg.Reply(ctx, h.api, cmd, text, markup)
}

// RenderCard: текст карточки. Прогресс за сегодня показывается, только
// если последняя активность была сегодня, и не больше нормы.
func RenderCard(name string, userID int64, card Card, today string) string {
	var b strings.Builder
	r := card.Record

	fmt.Fprintf(&b, "%s <b>Стрик</b> %s\n\n", card.Rank.Icon, members.Mention(userID, name))
	if card.Rank.Key == ranks.UnrankedKey {
		fmt.Fprintf(&b, "Ранг: %s\n", card.Rank.Title)
	} else {
		fmt.Fprintf(&b, "Ранг: %s %s\n", card.Rank.Badge, card.Rank.Title)
	}
	fmt.Fprintf(&b, "Серия: %s\n", common.FormatCount(r.Streak, common.PluralizeDays))

	done := 0
	if r.LastActiveDate == today {
		done = r.DailyMessages
		if done > card.Required {
			done = card.Required
		}
	}
	fmt.Fprintf(&b, "📊 Сегодня: %d/%d", done, card.Required)
	if r.LastActiveDate == today && r.StreakEarned {
		b.WriteString("\n✅ Норма выполнена!")
	}
	return b.String()
}

// today: сегодняшняя дата в поясе сервиса.
func (s *Service) today() string {
	return common.LocalDate(s.now(), s.loc)
}

func (h *Handler) target(ctx context.Context, cmd tg.Command) (int64, []string, bool) {
	id, rest, err := h.targets.ResolveTarget(ctx, cmd.ReplyToUserID, cmd.Args)
	if err != nil {
		h.fail(ctx, cmd, err)
		return 0, nil, false
	}
	return id, rest, true
}

func (h *Handler) mention(ctx context.Context, userID int64) string {
	return members.Mention(userID, h.names.Name(ctx, userID))
}

// HandleBlock: !block (ответом или @username / ID).
func (h *Handler) HandleBlock(ctx context.Context, cmd tg.Command) {
	target, _, ok := h.target(ctx, cmd)
	if !ok {
		return
	}
	if err := h.service.Block(ctx, cmd.ChatID, cmd.UserID, target); err != nil {
		h.fail(ctx, cmd, err)
		return
	}
	tg.Reply(ctx, h.api, cmd, fmt.Sprintf("🚫 %s заблокирован, его стрик удалён", h.mention(ctx, target)), nil)
}

// HandleUnblock: !unblock.
func (h *Handler) HandleUnblock(ctx context.Context, cmd tg.Command) {
	target, _, ok := h.target(ctx, cmd)
	if !ok {
		return
	}
	if err := h.service.Unblock(ctx, cmd.ChatID, cmd.UserID, target); err != nil {
		h.fail(ctx, cmd, err)
		return
	}
	tg.Reply(ctx, h.api, cmd, fmt.Sprintf("✅ %s разблокирован, стрик начнётся заново", h.mention(ctx, target)), nil)
}

func parseAmount(args []string) (int, error) {
	if len(args) == 0 {
		return 0, common.ErrInvalidAmount
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 {
		return 0, common.ErrInvalidAmount
	}
	return n, nil
}

// HandleAddStreak: !addstreak <N>.
func (h *Handler) HandleAddStreak(ctx context.Context, cmd tg.Command) {
	target, rest, ok := h.target(ctx, cmd)
	if !ok {
		return
	}
	amount, err := parseAmount(rest)
	if err != nil {
		h.fail(ctx, cmd, err)
		return
	}
	ch, err := h.service.AddStreak(ctx, cmd.ChatID, cmd.UserID, target, amount)
	if err != nil {
		h.fail(ctx, cmd, err)
		return
	}
	tg.Reply(ctx, h.api, cmd, fmt.Sprintf("➕ Стрик %s: %d → %d",
		h.mention(ctx, target), ch.Before, ch.After), nil)
}

// HandleRemoveStreak: !removestreak <N>.
func (h *Handler) HandleRemoveStreak(ctx context.Context, cmd tg.Command) {
	target, rest, ok := h.target(ctx, cmd)
	if !ok {
		return
	}
	amount, err := parseAmount(rest)
	if err != nil {
		h.fail(ctx, cmd, err)
		return
	}
	ch, err := h.service.RemoveStreak(ctx, cmd.ChatID, cmd.UserID, target, amount)
	if err != nil {
		h.fail(ctx, cmd, err)
		return
	}
	tg.Reply(ctx, h.api, cmd, fmt.Sprintf("➖ Стрик %s: %d → %d",
		h.mention(ctx, target), ch.Before, ch.After), nil)
}

// HandleResetStreak: !resetstreak.
func (h *Handler) HandleResetStreak(ctx context.Context, cmd tg.Command) {
	target, _, ok := h.target(ctx, cmd)
	if !ok {
		return
	}
	before, err := h.service.ResetUser(ctx, cmd.ChatID, cmd.UserID, target)
	if err != nil {
		h.fail(ctx, cmd, err)
		return
	}
	tg.Reply(ctx, h.api, cmd, fmt.Sprintf("♻️ Стрик %s сброшен (был %s)",
		h.mention(ctx, target), common.FormatCount(before, common.PluralizeDays)), nil)
}

// HandleResetAll обрабатывает !resetall и просит подтверждение кнопками.
func (h *Handler) HandleResetAll(ctx context.Context, cmd tg.Command) {
	f := h.flows.Open(flows.KindResetAll, cmd.ChatID, cmd.UserID)
	kind := string(flows.KindResetAll)
	markup := tg.Keyboard([]telego.InlineKeyboardButton{
		tg.Button("✅ Сбросить всё", tg.CallbackData(kind, f.ID, "yes")),
		tg.Button("✖️ Отмена", tg.CallbackData(kind, f.ID, "no")),
	}, 2)

	msg := tg.Reply(ctx, h.api, cmd, "⚠️ Сбросить стрики <b>всех</b> участников и очистить блок-лист? Это нельзя отменить.", markup)
	if msg == nil {
		h.flows.Close(f.ID)
		return
	}
	h.flows.Bind(f.ID, msg.MessageID)
}

// HandleResetAllConfirm обрабатывает кнопки подтверждения сброса.
func (h *Handler) HandleResetAllConfirm(ctx context.Context, cb tg.Callback) {
	f, err := h.flows.Get(cb.FlowID, flows.KindResetAll, cb.UserID)
	if err != nil {
		tg.Answer(ctx, h.api, cb, tg.ErrorText(err, nil), true)
		return
	}
	h.flows.Close(f.ID)

	if cb.Payload != "yes" {
		tg.Answer(ctx, h.api, cb, "Отменено", false)
		tg.Edit(ctx, h.api, cb.ChatID, cb.MessageID, "✖️ Сброс отменён", nil)
		return
	}

	removed, err := h.service.ResetAll(ctx, f.ChatID, cb.UserID)
	if err != nil {
		text := tg.ErrorText(err, log.Fields{"chat_id": f.ChatID, "user_id": cb.UserID})
		tg.Answer(ctx, h.api, cb, text, true)
		tg.Edit(ctx, h.api, cb.ChatID, cb.MessageID, text, nil)
		return
	}
	tg.Answer(ctx, h.api, cb, "Готово", false)
	tg.Edit(ctx, h.api, cb.ChatID, cb.MessageID, fmt.Sprintf(
		"♻️ Все стрики сброшены (записей: %d), блок-лист очищен", removed), nil)
}
