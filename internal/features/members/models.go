// Package members ведёт справочник пользователей, которых видел бот: имя и
// @username для таблицы лидеров, журналов и поиска цели команд по @username.
package members

import (
	"html"
	"strconv"
	"time"
)

// Member: пользователь Telegram, которого видел бот.
type Member struct {
	UserID    int64     `db:"user_id"`    // Telegram user ID
	Username  string    `db:"username"`   // @username без @ (может быть пустым)
	FirstName string    `db:"first_name"` // Имя
	LastName  string    `db:"last_name"`  // Фамилия (может быть пустой)
	UpdatedAt time.Time `db:"updated_at"`
}

// sameInfo: совпадают ли имя и username.
func (m *Member) sameInfo(o *Member) bool {
	return m.Username == o.Username && m.FirstName == o.FirstName && m.LastName == o.LastName
}

// DisplayName возвращает отображаемое имя пользователя.
// Если есть @username, возвращает его, иначе имя и фамилию.
func (m *Member) DisplayName() string {
	if m.Username != "" {
		return "@" + m.Username
	}
	name := m.FirstName
	if m.LastName != "" {
		name += " " + m.LastName
	}
	if name == "" {
		return "id" + strconv.FormatInt(m.UserID, 10)
	}
	return name
}

// Mention: HTML-ссылка на пользователя для сообщений с ParseMode HTML.
func Mention(userID int64, name string) string {
	if name == "" {
		name = "id" + strconv.FormatInt(userID, 10)
	}
	return `<a href="tg://user?id=` + strconv.FormatInt(userID, 10) + `">` + html.EscapeString(name) + `</a>`
}
