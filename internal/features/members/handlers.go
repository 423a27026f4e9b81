// Package members (handlers.go) обрабатывает Telegram-события, связанные с участниками.
package members

import (
	"context"

	"github.com/mymmrac/telego"
	log "github.com/sirupsen/logrus"
)

// Handler обрабатывает события участников.
type Handler struct {
	service *Service
}

// NewHandler создаёт новый обработчик событий участников.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// HandleUser запоминает автора сообщения или нажатия кнопки.
func (h *Handler) HandleUser(ctx context.Context, u *telego.User) {
	if u == nil || u.IsBot {
		return
	}
	if err := h.service.Remember(ctx, u.ID, u.Username, u.FirstName, u.LastName); err != nil {
		log.WithError(err).WithField("user_id", u.ID).Warn("Не удалось обновить справочник участников")
	}
}

// HandleNewChatMembers регистрирует вступивших пользователей.
func (h *Handler) HandleNewChatMembers(ctx context.Context, newMembers []telego.User) {
	for i := range newMembers {
		h.HandleUser(ctx, &newMembers[i])
	}
}
