// Package leaderboard (handlers.go) показывает таблицу лидеров и блок-лист
// постранично, с кнопками листания.
package leaderboard

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mymmrac/telego"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/streak-bot/internal/bot/flows"
	"serotonyl.ru/streak-bot/internal/bot/tg"
	"serotonyl.ru/streak-bot/internal/common"
	"serotonyl.ru/streak-bot/internal/features/community"
	"serotonyl.ru/streak-bot/internal/features/members"
)

// Names: отображаемые имена пачкой.
type Names interface {
	Names(ctx context.Context, userIDs []int64) map[int64]string
}

// Handler обрабатывает !top и !blocklist.
type Handler struct {
	registry *community.Registry
	api      tg.API
	names    Names
	flows    *flows.Tracker
	loc      *time.Location
}

// NewHandler создаёт обработчик таблиц.
func NewHandler(registry *community.Registry, api tg.API, names Names, tracker *flows.Tracker, loc *time.Location) *Handler {
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{registry: registry, api: api, names: names, flows: tracker, loc: loc}
}

// requestedPage разбирает номер страницы из аргументов. Без аргумента: 1.
func requestedPage(cmd tg.Command) (int, bool) {
	arg := cmd.Arg(0)
	if arg == "" {
		return 1, true
	}
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// pageButtons собирает кнопки листания. Без соседних страниц кнопок нет.
func pageButtons(kind flows.Kind, flowID string, p Page) *telego.InlineKeyboardMarkup {
	var buttons []telego.InlineKeyboardButton
	if p.HasPrev() {
		buttons = append(buttons, tg.Button("◀️", tg.CallbackData(string(kind), flowID, strconv.Itoa(p.Number-1))))
	}
	if p.HasNext() {
		buttons = append(buttons, tg.Button("▶️", tg.CallbackData(string(kind), flowID, strconv.Itoa(p.Number+1))))
	}
	return tg.Keyboard(buttons, 2)
}

// show отправляет первую страницу и открывает меню листания, если страниц больше одной.
func (h *Handler) show(ctx context.Context, cmd tg.Command, kind flows.Kind, count, page int, render func(Page) string) {
	total := TotalPages(count, PageSize)
	if page > total {
		tg.Reply(ctx, h.api, cmd, fmt.Sprintf("❌ Такой страницы нет. Последняя страница: %d", total), nil)
		return
	}
	p := Paginate(count, page, PageSize)

	if p.Total == 1 {
		tg.Reply(ctx, h.api, cmd, render(p), nil)
		return
	}

	f := h.flows.Open(kind, cmd.ChatID, cmd.UserID)
	msg := tg.Reply(ctx, h.api, cmd, render(p), pageButtons(kind, f.ID, p))
	if msg == nil {
		h.flows.Close(f.ID)
		return
	}
	h.flows.Bind(f.ID, msg.MessageID)
}

// turn листает открытое меню. Номер страницы зажимается: список мог измениться.
func (h *Handler) turn(ctx context.Context, cb tg.Callback, kind flows.Kind, count func(*community.State) int, render func(*community.State, Page) string) {
	f, err := h.flows.Get(cb.FlowID, kind, cb.UserID)
	if err != nil {
		tg.Answer(ctx, h.api, cb, tg.ErrorText(err, nil), true)
		return
	}
	page, _ := cb.PayloadInt()

	st, err := h.registry.Snapshot(ctx, f.ChatID)
	if err != nil {
		tg.Answer(ctx, h.api, cb, tg.ErrorText(err, log.Fields{"chat_id": f.ChatID}), true)
		return
	}
	p := Paginate(count(st), page, PageSize)

	tg.Answer(ctx, h.api, cb, "", false)
	tg.Edit(ctx, h.api, cb.ChatID, cb.MessageID, render(st, p), pageButtons(kind, f.ID, p))
}

// HandleTop: !top [страница].
func (h *Handler) HandleTop(ctx context.Context, cmd tg.Command) {
	page, ok := requestedPage(cmd)
	if !ok {
		tg.Reply(ctx, h.api, cmd, "❌ Номер страницы должен быть положительным числом", nil)
		return
	}
	st, err := h.registry.Snapshot(ctx, cmd.ChatID)
	if err != nil {
		tg.Reply(ctx, h.api, cmd, tg.ErrorText(err, log.Fields{"chat_id": cmd.ChatID}), nil)
		return
	}
	entries := Rank(st)
	if len(entries) == 0 {
		tg.Reply(ctx, h.api, cmd, "🏆 Пока ни у кого нет стрика", nil)
		return
	}
	h.show(ctx, cmd, flows.KindTop, len(entries), page, func(p Page) string {
		return h.renderTop(ctx, entries, p)
	})
}

// HandleTopPage: кнопки листания топа.
func (h *Handler) HandleTopPage(ctx context.Context, cb tg.Callback) {
	h.turn(ctx, cb, flows.KindTop,
		func(st *community.State) int { return len(Rank(st)) },
		func(st *community.State, p Page) string { return h.renderTop(ctx, Rank(st), p) })
}

func (h *Handler) renderTop(ctx context.Context, entries []Entry, p Page) string {
	rows := Slice(entries, p)
	ids := make([]int64, len(rows))
	for i, e := range rows {
		ids[i] = e.UserID
	}
	names := h.names.Names(ctx, ids)

	var b strings.Builder
	fmt.Fprintf(&b, "🏆 <b>Топ стриков</b> (страница %d/%d)\n\n", p.Number, p.Total)
	for _, e := range rows {
		fmt.Fprintf(&b, "%s %s %s %s\n",
			position(e.Position), e.Rank.Icon,
			members.Mention(e.UserID, names[e.UserID]),
			common.FormatCount(e.Record.Streak, common.PluralizeDays))
	}
	return strings.TrimRight(b.String(), "\n")
}

func position(n int) string {
	switch n {
	case 1:
		return "🥇"
	case 2:
		return "🥈"
	case 3:
		return "🥉"
	default:
		return strconv.Itoa(n) + "."
	}
}

// HandleBlocklist: !blocklist [страница], только для администраторов.
func (h *Handler) HandleBlocklist(ctx context.Context, cmd tg.Command) {
	page, ok := requestedPage(cmd)
	if !ok {
		tg.Reply(ctx, h.api, cmd, "❌ Номер страницы должен быть положительным числом", nil)
		return
	}
	st, err := h.registry.Snapshot(ctx, cmd.ChatID)
	if err != nil {
		tg.Reply(ctx, h.api, cmd, tg.ErrorText(err, log.Fields{"chat_id": cmd.ChatID}), nil)
		return
	}
	if len(st.Blocked) == 0 {
		tg.Reply(ctx, h.api, cmd, "✅ Блок-лист пуст", nil)
		return
	}
	h.show(ctx, cmd, flows.KindBlocklist, len(st.Blocked), page, func(p Page) string {
		return h.renderBlocklist(ctx, st, p)
	})
}

// HandleBlocklistPage: кнопки листания блок-листа.
func (h *Handler) HandleBlocklistPage(ctx context.Context, cb tg.Callback) {
	h.turn(ctx, cb, flows.KindBlocklist,
		func(st *community.State) int { return len(st.Blocked) },
		func(st *community.State, p Page) string { return h.renderBlocklist(ctx, st, p) })
}

func (h *Handler) renderBlocklist(ctx context.Context, st *community.State, p Page) string {
	ids := Slice(st.BlockedIDs(), p)
	names := h.names.Names(ctx, ids)

	var b strings.Builder
	fmt.Fprintf(&b, "🚫 <b>Блок-лист</b> (страница %d/%d, всего %d)\n\n", p.Number, p.Total, p.Count)
	if len(ids) == 0 {
		b.WriteString("Пусто")
	}
	for i, id := range ids {
		fmt.Fprintf(&b, "%d. %s (с %s)\n", p.Start+i+1,
			members.Mention(id, names[id]), common.FormatDateTime(st.Blocked[id], h.loc))
	}
	return strings.TrimRight(b.String(), "\n")
}
