// Package tg содержит общие для обработчиков типы и утилиты поверх telego:
// разобранная команда, нажатие кнопки, отправка и правка сообщений.
package tg

import (
	"context"
	"strconv"
	"strings"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/streak-bot/internal/common"
)

// API: методы Telegram Bot API, которыми пользуются обработчики.
// *telego.Bot удовлетворяет этому интерфейсу.
type API interface {
	SendMessage(ctx context.Context, params *telego.SendMessageParams) (*telego.Message, error)
	EditMessageText(ctx context.Context, params *telego.EditMessageTextParams) (*telego.Message, error)
	EditMessageReplyMarkup(ctx context.Context, params *telego.EditMessageReplyMarkupParams) (*telego.Message, error)
	AnswerCallbackQuery(ctx context.Context, params *telego.AnswerCallbackQueryParams) error
	GetChatMember(ctx context.Context, params *telego.GetChatMemberParams) (telego.ChatMember, error)
}

// Command: разобранная команда из сообщения.
type Command struct {
	ChatID    int64
	ThreadID  int // 0: вне темы
	MessageID int
	UserID    int64
	Private   bool
	Name      string
	Args      []string
	// Автор сообщения, на которое ответили командой (0: не ответ)
	ReplyToUserID int64
}

// Arg возвращает аргумент i или пустую строку.
func (c Command) Arg(i int) string {
	if i < 0 || i >= len(c.Args) {
		return ""
	}
	return c.Args[i]
}

// Callback: нажатие inline-кнопки.
type Callback struct {
	QueryID   string
	ChatID    int64
	MessageID int
	UserID    int64
	Kind      string
	FlowID    string
	Payload   string
}

// CallbackData собирает данные кнопки: kind:flowID:payload (до 64 байт).
func CallbackData(kind, flowID, payload string) string {
	return kind + ":" + flowID + ":" + payload
}

// ParseCallbackData разбирает данные кнопки.
func ParseCallbackData(data string) (kind, flowID, payload string, ok bool) {
	parts := strings.SplitN(data, ":", 3)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" {
		return "", "", "", false
	}
	return parts[0], parts[1], parts[2], true
}

// PayloadInt: числовой payload кнопки.
func (c Callback) PayloadInt() (int, bool) {
	n, err := strconv.Atoi(c.Payload)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Reply отправляет HTML-ответ в чат и тему команды.
func Reply(ctx context.Context, api API, cmd Command, text string, markup *telego.InlineKeyboardMarkup) *telego.Message {
	params := tu.Message(tu.ID(cmd.ChatID), text).WithParseMode(telego.ModeHTML)
	if cmd.ThreadID != 0 {
		params = params.WithMessageThreadID(cmd.ThreadID)
	}
	if cmd.MessageID != 0 {
		params = params.WithReplyParameters(&telego.ReplyParameters{
			MessageID:                cmd.MessageID,
			AllowSendingWithoutReply: true,
		})
	}
	if markup != nil {
		params = params.WithReplyMarkup(markup)
	}

	msg, err := api.SendMessage(ctx, params)
	if err != nil {
		log.WithError(err).WithFields(log.Fields{
			"chat_id": cmd.ChatID,
			"command": cmd.Name,
		}).Error("Ошибка отправки сообщения")
		return nil
	}
	return msg
}

// Edit заменяет текст и кнопки сообщения. markup == nil убирает кнопки.
func Edit(ctx context.Context, api API, chatID int64, messageID int, text string, markup *telego.InlineKeyboardMarkup) {
	params := &telego.EditMessageTextParams{
		ChatID:      tu.ID(chatID),
		MessageID:   messageID,
		Text:        text,
		ParseMode:   telego.ModeHTML,
		ReplyMarkup: markup,
	}
	if _, err := api.EditMessageText(ctx, params); err != nil && !notModified(err) {
		log.WithError(err).WithFields(log.Fields{
			"chat_id":    chatID,
			"message_id": messageID,
		}).Warn("Не удалось изменить сообщение")
	}
}

// DropKeyboard убирает кнопки у сообщения.
func DropKeyboard(ctx context.Context, api API, chatID int64, messageID int) {
	params := &telego.EditMessageReplyMarkupParams{
		ChatID:    tu.ID(chatID),
		MessageID: messageID,
	}
	if _, err := api.EditMessageReplyMarkup(ctx, params); err != nil && !notModified(err) {
		log.WithError(err).WithFields(log.Fields{
			"chat_id":    chatID,
			"message_id": messageID,
		}).Debug("Не удалось убрать кнопки")
	}
}

// Answer отвечает на нажатие кнопки. alert: показать окном, а не всплывашкой.
func Answer(ctx context.Context, api API, cb Callback, text string, alert bool) {
	params := tu.CallbackQuery(cb.QueryID).WithText(text)
	if alert {
		params = params.WithShowAlert()
	}
	if err := api.AnswerCallbackQuery(ctx, params); err != nil {
		log.WithError(err).WithField("user_id", cb.UserID).Debug("Не удалось ответить на нажатие")
	}
}

func notModified(err error) bool {
	return strings.Contains(err.Error(), "message is not modified")
}

// Button: кнопка с данными для callback.
func Button(text, data string) telego.InlineKeyboardButton {
	return tu.InlineKeyboardButton(text).WithCallbackData(data)
}

// Keyboard раскладывает кнопки по рядам не длиннее perRow.
func Keyboard(buttons []telego.InlineKeyboardButton, perRow int) *telego.InlineKeyboardMarkup {
	if len(buttons) == 0 {
		return nil
	}
	if perRow < 1 {
		perRow = len(buttons)
	}
	var rows [][]telego.InlineKeyboardButton
	for start := 0; start < len(buttons); start += perRow {
		end := start + perRow
		if end > len(buttons) {
			end = len(buttons)
		}
		rows = append(rows, tu.InlineKeyboardRow(buttons[start:end]...))
	}
	return tu.InlineKeyboard(rows...)
}

// ErrorText: текст отказа для пользователя. Внутренние ошибки не
// показываются, а логируются.
func ErrorText(err error, fields log.Fields) string {
	if msg, ok := common.PublicMessage(err); ok {
		return "❌ " + msg
	}
	log.WithError(err).WithFields(fields).Error("Ошибка обработки команды")
	return "⚠️ Не удалось выполнить команду, попробуйте позже"
}

// KindPicker: кнопка «Сменить значок» в карточке стрика. Вместо ID меню
// в данных кнопки стоит ID владельца карточки.
const KindPicker = "pick"
