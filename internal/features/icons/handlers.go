package icons

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mymmrac/telego"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/streak-bot/internal/bot/flows"
	"serotonyl.ru/streak-bot/internal/bot/tg"
	"serotonyl.ru/streak-bot/internal/common"
)

// iconsPerRow: кнопок значков в ряду.
const iconsPerRow = 5

// Handler: меню выбора значка из карточки стрика.
type Handler struct {
	service *Service
	api     tg.API
	flows   *flows.Tracker
	// Для подсказки в меню; саму паузу отсчитывает Cooldowns
	cooldown time.Duration
}

// NewHandler создаёт обработчик меню значков.
func NewHandler(service *Service, api tg.API, tracker *flows.Tracker, cooldown time.Duration) *Handler {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Handler{service: service, api: api, flows: tracker, cooldown: cooldown}
}

func (h *Handler) refuse(ctx context.Context, cb tg.Callback, err error) {
	var cd *CooldownError
	if errors.As(err, &cd) {
		tg.Answer(ctx, h.api, cb, "⏳ "+cd.Error(), true)
		return
	}
	tg.Answer(ctx, h.api, cb, tg.ErrorText(err, log.Fields{
		"chat_id": cb.ChatID,
		"user_id": cb.UserID,
	}), true)
}

// HandleOpen обрабатывает нажатие «Сменить значок»: карточка превращается в меню.
func (h *Handler) HandleOpen(ctx context.Context, cb tg.Callback) {
	ownerID, err := strconv.ParseInt(cb.FlowID, 10, 64)
	if err != nil || ownerID != cb.UserID {
		h.refuse(ctx, cb, common.ErrNotOwner)
		return
	}

	p, err := h.service.Open(ctx, cb.ChatID, ownerID)
	if err != nil {
		h.refuse(ctx, cb, err)
		return
	}

	f := h.flows.Open(flows.KindIcons, cb.ChatID, ownerID)
	options := make([]string, 0, len(p.Icons))
	buttons := make([]telego.InlineKeyboardButton, 0, len(p.Icons))
	for i, icon := range p.Icons {
		options = append(options, icon.Emoji)
		label := icon.Emoji
		if icon.Emoji == p.Selected {
			label = "✅ " + label
		}
		buttons = append(buttons, tg.Button(label, tg.CallbackData(string(flows.KindIcons), f.ID, strconv.Itoa(i))))
	}
	h.flows.Attach(f.ID, options)
	h.flows.Bind(f.ID, cb.MessageID)

	tg.Answer(ctx, h.api, cb, "", false)
	tg.Edit(ctx, h.api, cb.ChatID, cb.MessageID, RenderPicker(p, h.cooldown), tg.Keyboard(buttons, iconsPerRow))
}

// RenderPicker: текст меню выбора.
func RenderPicker(p Picker, cooldown time.Duration) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🎨 <b>Значок для ранга %s</b>\n\n", p.Rank.Title)
	for _, icon := range p.Icons {
		fmt.Fprintf(&b, "%s %s\n", icon.Emoji, icon.Name)
	}
	fmt.Fprintf(&b, "\nПосле выбора сменить значок можно через %s.", common.FormatRemaining(cooldown))
	return b.String()
}

// HandleSelect: нажатие на значок в меню.
func (h *Handler) HandleSelect(ctx context.Context, cb tg.Callback) {
	f, err := h.flows.Get(cb.FlowID, flows.KindIcons, cb.UserID)
	if err != nil {
		h.refuse(ctx, cb, err)
		return
	}
	idx, ok := cb.PayloadInt()
	if !ok {
		h.refuse(ctx, cb, common.ErrUnknownIcon)
		return
	}
	emoji, ok := f.Option(idx)
	if !ok {
		h.refuse(ctx, cb, common.ErrUnknownIcon)
		return
	}

	info, err := h.service.Select(ctx, f.ChatID, cb.UserID, f.OwnerID, emoji)
	if err != nil {
		h.refuse(ctx, cb, err)
		return
	}
	h.flows.Close(f.ID)

	tg.Answer(ctx, h.api, cb, "Значок изменён", false)
	tg.Edit(ctx, h.api, cb.ChatID, cb.MessageID, fmt.Sprintf(
		"%s Значок изменён. Ранг: <b>%s</b>", info.Icon, info.Title), nil)
}
