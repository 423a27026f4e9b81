// Package bot принимает апдейты Telegram, фильтрует их и раздаёт
// обработчикам: команды, нажатия кнопок, сообщения для стриков.
package bot

import (
	"context"
	"time"

	"github.com/mymmrac/telego"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/streak-bot/internal/bot/filters"
	"serotonyl.ru/streak-bot/internal/bot/flows"
	"serotonyl.ru/streak-bot/internal/bot/middleware"
	"serotonyl.ru/streak-bot/internal/bot/tg"
	"serotonyl.ru/streak-bot/internal/common"
	"serotonyl.ru/streak-bot/internal/features/admin"
	"serotonyl.ru/streak-bot/internal/features/community"
	"serotonyl.ru/streak-bot/internal/features/icons"
	"serotonyl.ru/streak-bot/internal/features/leaderboard"
	"serotonyl.ru/streak-bot/internal/features/members"
	"serotonyl.ru/streak-bot/internal/features/streak"
	"serotonyl.ru/streak-bot/internal/metrics"
)

// ChatEvents получает события добавления бота в группу и удаления из неё.
type ChatEvents interface {
	BotAdded(ctx context.Context, chat telego.Chat, by int64)
	BotRemoved(ctx context.Context, chat telego.Chat, by int64)
}

// Handlers: обработчики фич.
type Handlers struct {
	Members     *members.Handler
	Streak      *streak.Handler
	Icons       *icons.Handler
	Leaderboard *leaderboard.Handler
	Community   *community.Handler
	Admin       *admin.Handler
}

// Options: параметры цикла обработки.
type Options struct {
	BotUsername string
	MaxInflight int
	RateLimit   *middleware.RateLimiter
}

// scope: где команда доступна.
type scope int

const (
	inGroup scope = iota
	inPrivate
	anywhere
)

type route struct {
	handle    func(ctx context.Context, cmd tg.Command)
	scope     scope
	adminOnly bool
}

// Bot: главная структура бота, объединяющая все компоненты.
type Bot struct {
	api         tg.API
	handlers    Handlers
	streaks     *streak.Service
	settings    *community.Service
	permissions *filters.Permissions
	tracker     *flows.Tracker
	events      ChatEvents
	rateLimiter *middleware.RateLimiter
	parser      *CommandParser
	routes      map[string]route

	// ограничитель параллелизма обработки апдейтов
	inflight chan struct{}
}

// New собирает бота.
func New(
	api tg.API,
	handlers Handlers,
	streaks *streak.Service,
	settings *community.Service,
	permissions *filters.Permissions,
	tracker *flows.Tracker,
	events ChatEvents,
	opts Options,
) *Bot {
	maxInFlight := opts.MaxInflight
	if maxInFlight <= 0 {
		maxInFlight = 64
	}

	b := &Bot{
		api:         api,
		handlers:    handlers,
		streaks:     streaks,
		settings:    settings,
		permissions: permissions,
		tracker:     tracker,
		events:      events,
		rateLimiter: opts.RateLimit,
		parser:      NewCommandParser(opts.BotUsername),
		inflight:    make(chan struct{}, maxInFlight),
	}
	b.routes = b.buildRoutes()
	return b
}

func (b *Bot) buildRoutes() map[string]route {
	h := b.handlers
	card := route{handle: h.Streak.HandleCard}
	top := route{handle: h.Leaderboard.HandleTop}
	adminOnly := func(fn func(context.Context, tg.Command)) route {
		return route{handle: fn, adminOnly: true}
	}
	owner := func(fn func(context.Context, tg.Command)) route {
		return route{handle: fn, scope: inPrivate}
	}

	return map[string]route{
		"start": {handle: b.handleHelp, scope: anywhere},
		"help":  {handle: b.handleHelp, scope: anywhere},

		"streak": card, "s": card, "огонек": card, "огонёк": card, "стрик": card,
		"top": top, "топ": top,
		"blocklist": adminOnly(h.Leaderboard.HandleBlocklist),

		"block":        adminOnly(h.Streak.HandleBlock),
		"unblock":      adminOnly(h.Streak.HandleUnblock),
		"addstreak":    adminOnly(h.Streak.HandleAddStreak),
		"removestreak": adminOnly(h.Streak.HandleRemoveStreak),
		"resetstreak":  adminOnly(h.Streak.HandleResetStreak),
		"resetall":     adminOnly(h.Streak.HandleResetAll),

		"setchannel":      adminOnly(h.Community.HandleSetChannel),
		"setcount":        adminOnly(h.Community.HandleSetCount),
		"timelimit":       adminOnly(h.Community.HandleTimeLimit),
		"addcmdthread":    adminOnly(h.Community.HandleAddCommandThread),
		"removecmdthread": adminOnly(h.Community.HandleRemoveCommandThread),
		"addrole":         adminOnly(h.Community.HandleAddRole),
		"removerole":      adminOnly(h.Community.HandleRemoveRole),
		"setlogs":         adminOnly(h.Community.HandleSetLogs),
		"settings":        adminOnly(h.Community.HandleSettings),

		"addicon":     adminOnly(h.Community.HandleAddIcon),
		"delicon":     adminOnly(h.Community.HandleDeleteIcon),
		"icons":       adminOnly(h.Community.HandleIcons),
		"bounds":      adminOnly(h.Community.HandleBounds),
		"clearbounds": adminOnly(h.Community.HandleClearBounds),

		"login":     owner(h.Admin.HandleLogin),
		"logout":    owner(h.Admin.HandleLogout),
		"premium":   owner(h.Admin.HandlePremium),
		"unpremium": owner(h.Admin.HandleUnpremium),
	}
}

// AllowedUpdates: типы апдейтов, которые нужны боту.
var AllowedUpdates = []string{"message", "callback_query", "my_chat_member", "chat_member"}

// Start обрабатывает апдейты, пока не закроется канал или ctx.
func (b *Bot) Start(ctx context.Context, updates <-chan telego.Update) {
	if b.rateLimiter != nil {
		b.rateLimiter.Start()
		defer b.rateLimiter.Close()
	}
	go b.expireFlows(ctx, 5*time.Second)

	log.WithField("max_inflight", cap(b.inflight)).Info("Бот запущен и ожидает сообщения...")

	for {
		select {
		case <-ctx.Done():
			log.Info("Бот останавливается (ctx done)...")
			return

		case update, ok := <-updates:
			if !ok {
				log.Info("Канал updates закрыт, бот остановлен")
				return
			}

			// лимит параллелизма
			b.inflight <- struct{}{}
			go func(upd telego.Update) {
				defer func() { <-b.inflight }()
				b.HandleUpdate(ctx, upd)
			}(update)
		}
	}
}

// Wait ждёт завершения уже запущенных обработчиков.
func (b *Bot) Wait(ctx context.Context) {
	for i := 0; i < cap(b.inflight); i++ {
		select {
		case b.inflight <- struct{}{}:
		case <-ctx.Done():
			log.Warn("Не дождались завершения обработчиков")
			return
		}
	}
}

// HandleUpdate обрабатывает одно обновление от Telegram.
func (b *Bot) HandleUpdate(ctx context.Context, update telego.Update) {
	defer middleware.RecoverFromPanic("update")

	switch {
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.MyChatMember != nil:
		b.handleMyChatMember(ctx, update.MyChatMember)
	case update.ChatMember != nil:
		// статус сменился: роль или права надо перечитать
		u := update.ChatMember.NewChatMember.MemberUser()
		b.permissions.Forget(update.ChatMember.Chat.ID, u.ID)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *telego.Message) {
	if !filters.Accept(msg) {
		return
	}
	middleware.LogMessage(msg)

	b.handlers.Members.HandleUser(ctx, msg.From)
	if len(msg.NewChatMembers) > 0 {
		b.handlers.Members.HandleNewChatMembers(ctx, msg.NewChatMembers)
		return
	}

	private := msg.Chat.Type == telego.ChatTypePrivate

	if name, args, ok := b.parser.ParseCommand(msg.Text); ok {
		b.routeCommand(ctx, commandFrom(msg, name, args))
		return
	}

	if private {
		b.handlers.Admin.HandlePrivateText(ctx, commandFrom(msg, "", nil), msg.Text)
		return
	}

	// Не команда в группе: считаем для стрика
	_, err := b.streaks.RecordActivity(ctx, streak.Activity{
		ChatID:   msg.Chat.ID,
		UserID:   msg.From.ID,
		ThreadID: threadID(msg),
		At:       time.Unix(msg.Date, 0),
	})
	if err != nil {
		log.WithError(err).WithFields(log.Fields{
			"chat_id": msg.Chat.ID,
			"user_id": msg.From.ID,
		}).Error("Не удалось учесть сообщение")
	}
}

// routeCommand маршрутизирует команду к нужному обработчику.
func (b *Bot) routeCommand(ctx context.Context, cmd tg.Command) {
	r, ok := b.routes[cmd.Name]
	if !ok {
		return
	}

	switch {
	case r.scope == inPrivate && !cmd.Private:
		return
	case r.scope == inGroup && cmd.Private:
		tg.Reply(ctx, b.api, cmd, "Эта команда работает только в группе", nil)
		return
	}

	if b.rateLimiter != nil && !b.rateLimiter.Allow(cmd.UserID) {
		log.WithField("user_id", cmd.UserID).Debug("rate limited")
		metrics.RecordCommand(cmd.Name, "limited")
		return
	}

	if !cmd.Private {
		allowed, err := b.commandsAllowed(ctx, cmd)
		if err != nil {
			log.WithError(err).WithField("chat_id", cmd.ChatID).Error("Не удалось прочитать настройки")
			return
		}
		if !allowed && !r.adminOnly {
			metrics.RecordCommand(cmd.Name, "wrong_thread")
			return
		}
	}

	if r.adminOnly {
		isAdmin, err := b.permissions.IsAdmin(ctx, cmd.ChatID, cmd.UserID)
		if err != nil || !isAdmin {
			if err == nil {
				err = common.ErrNotAdmin
			}
			metrics.RecordCommand(cmd.Name, "denied")
			tg.Reply(ctx, b.api, cmd, tg.ErrorText(err, log.Fields{
				"chat_id": cmd.ChatID,
				"user_id": cmd.UserID,
			}), nil)
			return
		}
	}

	log.WithFields(log.Fields{
		"cmd":  cmd.Name,
		"args": cmd.Args,
	}).Debug("routing command")
	metrics.RecordCommand(cmd.Name, "ok")
	r.handle(ctx, cmd)
}

// commandsAllowed: разрешены ли команды в теме. Администраторские
// команды работают в любой теме, иначе нельзя поправить сам список.
func (b *Bot) commandsAllowed(ctx context.Context, cmd tg.Command) (bool, error) {
	cfg, err := b.settings.Settings(ctx, cmd.ChatID)
	if err != nil {
		return false, err
	}
	return cfg.CommandsAllowed(cmd.ThreadID), nil
}

func (b *Bot) handleCallback(ctx context.Context, q *telego.CallbackQuery) {
	middleware.LogCallback(q)

	cb := tg.Callback{QueryID: q.ID, UserID: q.From.ID}
	if q.Message != nil {
		cb.ChatID = q.Message.GetChat().ID
		cb.MessageID = q.Message.GetMessageID()
	}

	kind, flowID, payload, ok := tg.ParseCallbackData(q.Data)
	if !ok || cb.MessageID == 0 {
		tg.Answer(ctx, b.api, cb, "Кнопка устарела", false)
		return
	}
	cb.Kind, cb.FlowID, cb.Payload = kind, flowID, payload

	switch kind {
	case tg.KindPicker:
		b.handlers.Icons.HandleOpen(ctx, cb)
	case string(flows.KindIcons):
		b.handlers.Icons.HandleSelect(ctx, cb)
	case string(flows.KindTop):
		b.handlers.Leaderboard.HandleTopPage(ctx, cb)
	case string(flows.KindBlocklist):
		b.handlers.Leaderboard.HandleBlocklistPage(ctx, cb)
	case string(flows.KindResetAll):
		b.handlers.Streak.HandleResetAllConfirm(ctx, cb)
	default:
		tg.Answer(ctx, b.api, cb, "Кнопка устарела", false)
	}
}

func (b *Bot) handleMyChatMember(ctx context.Context, u *telego.ChatMemberUpdated) {
	if u.Chat.Type != telego.ChatTypeGroup && u.Chat.Type != telego.ChatTypeSupergroup {
		return
	}
	was := present(u.OldChatMember.MemberStatus())
	is := present(u.NewChatMember.MemberStatus())

	switch {
	case !was && is:
		log.WithField("chat_id", u.Chat.ID).Info("Бот добавлен в группу")
		if b.events != nil {
			b.events.BotAdded(ctx, u.Chat, u.From.ID)
		}
	case was && !is:
		log.WithField("chat_id", u.Chat.ID).Info("Бот удалён из группы")
		if b.events != nil {
			b.events.BotRemoved(ctx, u.Chat, u.From.ID)
		}
	}
}

func present(status string) bool {
	switch status {
	case telego.MemberStatusCreator, telego.MemberStatusAdministrator, telego.MemberStatusMember, telego.MemberStatusRestricted:
		return true
	default:
		return false
	}
}

// expireFlows снимает кнопки с устаревших меню.
func (b *Bot) expireFlows(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.dropExpired(ctx)
		}
	}
}

func (b *Bot) dropExpired(ctx context.Context) {
	for _, f := range b.tracker.Expired() {
		if f.MessageID == 0 {
			continue
		}
		tg.DropKeyboard(ctx, b.api, f.ChatID, f.MessageID)
	}
}

func (b *Bot) handleHelp(ctx context.Context, cmd tg.Command) {
	text := "🔥 <b>Бот стриков</b>\n\n" +
		"Пишите в теме активности каждый день, чтобы стрик рос.\n\n" +
		"/streak — ваша карточка стрика\n" +
		"/top [страница] — таблица лидеров\n\n" +
		"Администраторам: /settings, /setchannel, /setcount, /timelimit, " +
		"/addcmdthread, /removecmdthread, /addrole, /removerole, /setlogs, " +
		"/block, /unblock, /blocklist, /addstreak, /removestreak, /resetstreak, /resetall\n" +
		"Премиум: /addicon, /delicon, /icons, /bounds, /clearbounds"
	if cmd.Private {
		text += "\n\nВладельцу бота: /login"
	}
	tg.Reply(ctx, b.api, cmd, text, nil)
}
