// Package admin (handlers.go) обрабатывает команды владельца в личных сообщениях.
// Поток: /login → пароль → сессия на 24 часа → /premium, /unpremium.
package admin

import (
	"context"
	"fmt"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/streak-bot/internal/bot/tg"
	"serotonyl.ru/streak-bot/internal/common"
)

// Handler обрабатывает команды панели владельца.
type Handler struct {
	service *Service
	api     tg.API
	loc     *time.Location
}

// NewHandler создаёт обработчик панели владельца.
func NewHandler(service *Service, api tg.API, loc *time.Location) *Handler {
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{service: service, api: api, loc: loc}
}

func (h *Handler) fail(ctx context.Context, cmd tg.Command, err error) {
	tg.Reply(ctx, h.api, cmd, tg.ErrorText(err, log.Fields{
		"user_id": cmd.UserID,
		"command": cmd.Name,
	}), nil)
}

// HandleLogin: /login [пароль]. Без пароля бот ждёт его следующим сообщением.
func (h *Handler) HandleLogin(ctx context.Context, cmd tg.Command) {
	if !h.service.IsOwner(cmd.UserID) {
		h.fail(ctx, cmd, common.ErrNotBotOwner)
		return
	}
	if len(cmd.Args) == 0 {
		h.service.AwaitPassword(cmd.UserID)
		tg.Reply(ctx, h.api, cmd, "🔐 Введите пароль для доступа к панели владельца:", nil)
		return
	}
	h.login(ctx, cmd, cmd.Args[0])
}

// HandlePrivateText: обычный текст в личке. true, если это был ожидаемый пароль.
func (h *Handler) HandlePrivateText(ctx context.Context, cmd tg.Command, text string) bool {
	if !h.service.TakePasswordPrompt(cmd.UserID) {
		return false
	}
	h.login(ctx, cmd, text)
	return true
}

func (h *Handler) login(ctx context.Context, cmd tg.Command, password string) {
	if err := h.service.Login(ctx, cmd.UserID, password); err != nil {
		h.fail(ctx, cmd, err)
		return
	}
	tg.Reply(ctx, h.api, cmd, "✅ Аутентификация успешна! Сессия действует 24 часа.\n\n"+
		"/premium &lt;chat_id&gt; &lt;дней&gt; — выдать премиум\n"+
		"/unpremium &lt;chat_id&gt; — отозвать премиум\n"+
		"/logout — выйти", nil)
}

// HandleLogout: /logout.
func (h *Handler) HandleLogout(ctx context.Context, cmd tg.Command) {
	if err := h.service.Logout(ctx, cmd.UserID); err != nil {
		h.fail(ctx, cmd, err)
		return
	}
	tg.Reply(ctx, h.api, cmd, "👋 Сессия закрыта", nil)
}

// HandlePremium: /premium <chat_id> <дней>.
func (h *Handler) HandlePremium(ctx context.Context, cmd tg.Command) {
	chatID, err1 := strconv.ParseInt(cmd.Arg(0), 10, 64)
	days, err2 := strconv.Atoi(cmd.Arg(1))
	if err1 != nil || err2 != nil {
		tg.Reply(ctx, h.api, cmd, "Использование: /premium &lt;chat_id&gt; &lt;дней&gt;", nil)
		return
	}

	expiresAt, err := h.service.GrantPremium(ctx, cmd.UserID, chatID, days)
	if err != nil {
		h.fail(ctx, cmd, err)
		return
	}
	tg.Reply(ctx, h.api, cmd, fmt.Sprintf("💎 Премиум для <code>%d</code> активен до %s",
		chatID, common.FormatDateTime(expiresAt, h.loc)), nil)
}

// HandleUnpremium: /unpremium <chat_id>.
func (h *Handler) HandleUnpremium(ctx context.Context, cmd tg.Command) {
	chatID, err := strconv.ParseInt(cmd.Arg(0), 10, 64)
	if err != nil {
		tg.Reply(ctx, h.api, cmd, "Использование: /unpremium &lt;chat_id&gt;", nil)
		return
	}
	if err := h.service.RevokePremium(ctx, cmd.UserID, chatID); err != nil {
		h.fail(ctx, cmd, err)
		return
	}
	tg.Reply(ctx, h.api, cmd, fmt.Sprintf("Премиум для <code>%d</code> отозван, свои значки и границы удалены", chatID), nil)
}
