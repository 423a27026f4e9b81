package bot

import (
	"strings"

	"github.com/mymmrac/telego"

	"serotonyl.ru/streak-bot/internal/bot/tg"
)

// CommandParser парсит команды с префиксами ! . и /
type CommandParser struct {
	validPrefixes []string
	botUsername   string
}

// NewCommandParser создаёт парсер команд. botUsername нужен, чтобы
// разбирать /top@my_bot и не реагировать на /top@other_bot.
func NewCommandParser(botUsername string) *CommandParser {
	return &CommandParser{
		validPrefixes: []string{"!", ".", "/"},
		botUsername:   strings.ToLower(strings.TrimPrefix(botUsername, "@")),
	}
}

// ParseCommand разбирает текст на команду и аргументы.
func (p *CommandParser) ParseCommand(text string) (string, []string, bool) {
	text = strings.TrimSpace(text)

	hasPrefix := false
	for _, prefix := range p.validPrefixes {
		if strings.HasPrefix(text, prefix) {
			text = strings.TrimPrefix(text, prefix)
			hasPrefix = true
			break
		}
	}

	if !hasPrefix {
		return "", nil, false
	}

	parts := strings.Fields(text)
	if len(parts) == 0 {
		return "", nil, false
	}

	command := strings.ToLower(parts[0])
	if name, addressee, found := strings.Cut(command, "@"); found {
		if addressee != p.botUsername {
			return "", nil, false
		}
		command = name
	}
	if command == "" {
		return "", nil, false
	}

	var args []string
	if len(parts) > 1 {
		args = parts[1:]
	}

	return command, args, true
}

// commandFrom собирает tg.Command из сообщения.
func commandFrom(msg *telego.Message, name string, args []string) tg.Command {
	cmd := tg.Command{
		ChatID:    msg.Chat.ID,
		ThreadID:  threadID(msg),
		MessageID: msg.MessageID,
		UserID:    msg.From.ID,
		Private:   msg.Chat.Type == telego.ChatTypePrivate,
		Name:      name,
		Args:      args,
	}
	// В форумах сообщение темы формально отвечает на служебное
	// «тема создана», это не ответ участнику
	if r := msg.ReplyToMessage; r != nil && r.From != nil && r.ForumTopicCreated == nil && !r.From.IsBot {
		cmd.ReplyToUserID = r.From.ID
	}
	return cmd
}

// threadID: тема форума или 0 для общей темы и обычных групп.
func threadID(msg *telego.Message) int {
	if msg.IsTopicMessage {
		return msg.MessageThreadID
	}
	return 0
}
