// Package community (handlers.go) обрабатывает команды настройки сообщества
// и премиум-команды (свои значки, границы рангов).
package community

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/streak-bot/internal/bot/tg"
	"serotonyl.ru/streak-bot/internal/common"
	"serotonyl.ru/streak-bot/internal/features/ranks"
)

// Handler обрабатывает команды администраторов сообщества.
type Handler struct {
	service *Service
	api     tg.API
	loc     *time.Location
}

// NewHandler создаёт обработчик настроек.
func NewHandler(service *Service, api tg.API, loc *time.Location) *Handler {
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{service: service, api: api, loc: loc}
}

func (h *Handler) fail(ctx context.Context, cmd tg.Command, err error) {
	tg.Reply(ctx, h.api, cmd, tg.ErrorText(err, log.Fields{
		"chat_id": cmd.ChatID,
		"user_id": cmd.UserID,
		"command": cmd.Name,
	}), nil)
}

func (h *Handler) apply(ctx context.Context, cmd tg.Command, p Patch, done string) {
	if _, err := h.service.Configure(ctx, cmd.ChatID, p); err != nil {
		h.fail(ctx, cmd, err)
		return
	}
	log.WithFields(log.Fields{
		"chat_id": cmd.ChatID,
		"user_id": cmd.UserID,
		"command": cmd.Name,
	}).Info("Настройки сообщества изменены")
	tg.Reply(ctx, h.api, cmd, done, nil)
}

func isOff(arg string) bool {
	switch strings.ToLower(arg) {
	case "off", "выкл", "нет":
		return true
	}
	return false
}

func threadName(id int) string {
	if id == 0 {
		return "общий чат"
	}
	return "тема #" + strconv.Itoa(id)
}

// HandleSetChannel обрабатывает !setchannel, сообщения считаются в текущей теме.
// «!setchannel off» выключает подсчёт.
func (h *Handler) HandleSetChannel(ctx context.Context, cmd tg.Command) {
	if isOff(cmd.Arg(0)) {
		h.apply(ctx, cmd, Patch{ClearActivityThread: true}, "⏸ Подсчёт стриков выключен")
		return
	}
	thread := cmd.ThreadID
	h.apply(ctx, cmd, Patch{ActivityThreadID: &thread},
		fmt.Sprintf("✅ Стрики считаются здесь: %s", threadName(thread)))
}

// HandleSetCount: !setcount <N>.
func (h *Handler) HandleSetCount(ctx context.Context, cmd tg.Command) {
	n, err := strconv.Atoi(cmd.Arg(0))
	if err != nil {
		h.fail(ctx, cmd, common.ErrInvalidMessageCount)
		return
	}
	h.apply(ctx, cmd, Patch{MessageCountRequired: &n},
		fmt.Sprintf("✅ Норма: %s в день", common.FormatCount(n, common.PluralizeMessages)))
}

// HandleTimeLimit: !timelimit on|off.
func (h *Handler) HandleTimeLimit(ctx context.Context, cmd tg.Command) {
	var on bool
	switch strings.ToLower(cmd.Arg(0)) {
	case "on", "вкл", "да":
		on = true
	case "off", "выкл", "нет":
		on = false
	default:
		tg.Reply(ctx, h.api, cmd, "Использование: !timelimit on|off", nil)
		return
	}
	text := "✅ Сообщения сразу после полуночи снова считаются"
	if on {
		text = "✅ Сообщения сразу после полуночи не считаются"
	}
	h.apply(ctx, cmd, Patch{TimeLimit: &on}, text)
}

// HandleAddCommandThread обрабатывает !addcmdthread и разрешить команды в текущей теме.
func (h *Handler) HandleAddCommandThread(ctx context.Context, cmd tg.Command) {
	thread := cmd.ThreadID
	h.apply(ctx, cmd, Patch{AddCommandThread: &thread},
		fmt.Sprintf("✅ Команды разрешены: %s", threadName(thread)))
}

// HandleRemoveCommandThread: !removecmdthread.
func (h *Handler) HandleRemoveCommandThread(ctx context.Context, cmd tg.Command) {
	thread := cmd.ThreadID
	h.apply(ctx, cmd, Patch{RemoveCommandThread: &thread},
		fmt.Sprintf("✅ Команды больше не разрешены: %s", threadName(thread)))
}

// HandleAddRole обрабатывает !addrole <роль>. Роль задаётся как статус (member, administrator)
// или звание участника.
func (h *Handler) HandleAddRole(ctx context.Context, cmd tg.Command) {
	role := strings.Join(cmd.Args, " ")
	if role == "" {
		tg.Reply(ctx, h.api, cmd, "Использование: !addrole <роль или звание>", nil)
		return
	}
	h.apply(ctx, cmd, Patch{AddStreakRole: &role}, "✅ Роль добавлена: "+role)
}

// HandleRemoveRole: !removerole <роль>.
func (h *Handler) HandleRemoveRole(ctx context.Context, cmd tg.Command) {
	role := strings.Join(cmd.Args, " ")
	if role == "" {
		tg.Reply(ctx, h.api, cmd, "Использование: !removerole <роль или звание>", nil)
		return
	}
	h.apply(ctx, cmd, Patch{RemoveStreakRole: &role}, "✅ Роль убрана: "+role)
}

// HandleSetLogs: !setlogs [chat_id|off]. Без аргумента журнал пишется в текущий чат.
func (h *Handler) HandleSetLogs(ctx context.Context, cmd tg.Command) {
	arg := cmd.Arg(0)
	if isOff(arg) {
		h.apply(ctx, cmd, Patch{ClearLogsChat: true}, "✅ Журнал выключен")
		return
	}
	id := cmd.ChatID
	if arg != "" {
		v, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			tg.Reply(ctx, h.api, cmd, "Использование: !setlogs [chat_id|off]", nil)
			return
		}
		id = v
	}
	h.apply(ctx, cmd, Patch{LogsChatID: &id}, fmt.Sprintf("✅ Журнал: <code>%d</code>", id))
}

// HandleSettings: !settings.
func (h *Handler) HandleSettings(ctx context.Context, cmd tg.Command) {
	c, err := h.service.Settings(ctx, cmd.ChatID)
	if err != nil {
		h.fail(ctx, cmd, err)
		return
	}
	tg.Reply(ctx, h.api, cmd, RenderSettings(c, h.service.now(), h.loc), nil)
}

// RenderSettings: текст !settings.
func RenderSettings(c Configuration, now time.Time, loc *time.Location) string {
	var b strings.Builder
	b.WriteString("⚙️ <b>Настройки</b>\n\n")

	if c.ActivityThreadID != nil {
		fmt.Fprintf(&b, "Стрики считаются: %s\n", threadName(*c.ActivityThreadID))
	} else {
		b.WriteString("Стрики считаются: нигде (!setchannel)\n")
	}
	fmt.Fprintf(&b, "Норма: %s в день\n", common.FormatCount(c.MessageCountRequired, common.PluralizeMessages))
	if c.TimeLimit {
		b.WriteString("Окно после полуночи: сообщения не считаются\n")
	} else {
		b.WriteString("Окно после полуночи: выключено\n")
	}

	if len(c.CommandThreadIDs) == 0 {
		b.WriteString("Команды: везде\n")
	} else {
		names := make([]string, len(c.CommandThreadIDs))
		for i, id := range c.CommandThreadIDs {
			names[i] = threadName(id)
		}
		fmt.Fprintf(&b, "Команды: %s\n", strings.Join(names, ", "))
	}

	if len(c.StreakRoles) == 0 {
		b.WriteString("Роли: все участники\n")
	} else {
		fmt.Fprintf(&b, "Роли: %s\n", strings.Join(c.StreakRoles, ", "))
	}

	if c.LogsChatID != nil {
		fmt.Fprintf(&b, "Журнал: <code>%d</code>\n", *c.LogsChatID)
	} else {
		b.WriteString("Журнал: выключен\n")
	}

	p := c.Premium
	switch {
	case p.Active(now) && p.ExpiresAt != nil:
		fmt.Fprintf(&b, "Премиум: до %s", common.FormatDateTime(*p.ExpiresAt, loc))
	case p.Active(now):
		b.WriteString("Премиум: бессрочно")
	case p.Enabled:
		b.WriteString("Премиум: истёк")
	default:
		b.WriteString("Премиум: нет")
	}
	return b.String()
}

func rankTitle(key string) string {
	if r, ok := ranks.Lookup(key); ok {
		return r.Title
	}
	return key
}

// HandleAddIcon: !addicon <ранг> <значок> [имя].
func (h *Handler) HandleAddIcon(ctx context.Context, cmd tg.Command) {
	if len(cmd.Args) < 2 {
		tg.Reply(ctx, h.api, cmd, "Использование: !addicon <ранг> <значок> [имя]\nРанги: "+strings.Join(ranks.CustomizableKeys(), ", "), nil)
		return
	}
	rankKey := strings.ToLower(cmd.Args[0])
	name := strings.Join(cmd.Args[2:], " ")

	icon, err := h.service.AddCustomIcon(ctx, cmd.ChatID, rankKey, cmd.Args[1], name)
	if err != nil {
		h.fail(ctx, cmd, err)
		return
	}
	tg.Reply(ctx, h.api, cmd, fmt.Sprintf("✅ Значок %s (%s) добавлен к рангу %s",
		icon.Emoji, icon.Name, rankTitle(rankKey)), nil)
}

// HandleDeleteIcon: !delicon <ранг> <имя>.
func (h *Handler) HandleDeleteIcon(ctx context.Context, cmd tg.Command) {
	if len(cmd.Args) < 2 {
		tg.Reply(ctx, h.api, cmd, "Использование: !delicon <ранг> <имя>", nil)
		return
	}
	rankKey := strings.ToLower(cmd.Args[0])
	name := strings.Join(cmd.Args[1:], " ")
	if err := h.service.DeleteCustomIcon(ctx, cmd.ChatID, rankKey, name); err != nil {
		h.fail(ctx, cmd, err)
		return
	}
	tg.Reply(ctx, h.api, cmd, fmt.Sprintf("🗑 Значок «%s» удалён из ранга %s", name, rankTitle(rankKey)), nil)
}

// HandleIcons обрабатывает !icons [ранг] и показывает значки и границы рангов сообщества.
func (h *Handler) HandleIcons(ctx context.Context, cmd tg.Command) {
	c, err := h.service.Settings(ctx, cmd.ChatID)
	if err != nil {
		h.fail(ctx, cmd, err)
		return
	}
	keys := ranks.CustomizableKeys()
	if arg := strings.ToLower(cmd.Arg(0)); arg != "" {
		if !ranks.Customizable(arg) {
			h.fail(ctx, cmd, common.ErrUnknownRank)
			return
		}
		keys = []string{arg}
	}
	tg.Reply(ctx, h.api, cmd, RenderIcons(c.Premium, keys), nil)
}

// RenderIcons: значки и границы для рангов keys.
func RenderIcons(p Premium, keys []string) string {
	o := p.Overrides()
	var b strings.Builder
	b.WriteString("🎨 <b>Значки рангов</b>\n")
	for _, key := range keys {
		fmt.Fprintf(&b, "\n<b>%s</b>", rankTitle(key))
		if bound, ok := p.LevelBounds[key]; ok {
			if bound.Max != nil {
				fmt.Fprintf(&b, " (стрик %d–%d)", bound.Min, *bound.Max)
			} else {
				fmt.Fprintf(&b, " (стрик от %d)", bound.Min)
			}
		}
		b.WriteString("\n")
		for _, icon := range ranks.Candidates(key, o) {
			if icon.Category == "" {
				fmt.Fprintf(&b, "%s %s (свой)\n", icon.Emoji, icon.Name)
			} else {
				fmt.Fprintf(&b, "%s %s\n", icon.Emoji, icon.Name)
			}
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// HandleBounds: !bounds <ранг> <min> [max].
func (h *Handler) HandleBounds(ctx context.Context, cmd tg.Command) {
	if len(cmd.Args) < 2 {
		tg.Reply(ctx, h.api, cmd, "Использование: !bounds <ранг> <min> [max]", nil)
		return
	}
	rankKey := strings.ToLower(cmd.Args[0])
	minStreak, err := strconv.Atoi(cmd.Args[1])
	if err != nil {
		h.fail(ctx, cmd, common.ErrInvalidBounds)
		return
	}
	var maxStreak *int
	if len(cmd.Args) > 2 {
		v, err := strconv.Atoi(cmd.Args[2])
		if err != nil {
			h.fail(ctx, cmd, common.ErrInvalidBounds)
			return
		}
		maxStreak = &v
	}

	if err := h.service.SetLevelBounds(ctx, cmd.ChatID, rankKey, minStreak, maxStreak); err != nil {
		h.fail(ctx, cmd, err)
		return
	}
	text := fmt.Sprintf("✅ %s: стрик от %d", rankTitle(rankKey), minStreak)
	if maxStreak != nil {
		text = fmt.Sprintf("✅ %s: стрик %d–%d", rankTitle(rankKey), minStreak, *maxStreak)
	}
	tg.Reply(ctx, h.api, cmd, text, nil)
}

// HandleClearBounds: !clearbounds <ранг>.
func (h *Handler) HandleClearBounds(ctx context.Context, cmd tg.Command) {
	rankKey := strings.ToLower(cmd.Arg(0))
	if err := h.service.ClearLevelBounds(ctx, cmd.ChatID, rankKey); err != nil {
		h.fail(ctx, cmd, err)
		return
	}
	tg.Reply(ctx, h.api, cmd, fmt.Sprintf("✅ Границы ранга %s сброшены", rankTitle(rankKey)), nil)
}
