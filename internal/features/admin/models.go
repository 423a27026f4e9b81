// Package admin реализует панель владельца бота: вход по паролю (Argon2id),
// сессии и выдача премиума сообществам.
// models.go описывает структуры сессий и попыток входа.
package admin

import "time"

const (
	// MaxFailedAttempts: сколько неудачных входов подряд допускается за AttemptWindow
	MaxFailedAttempts = 3
	// AttemptWindow: окно подсчёта неудачных попыток
	AttemptWindow = time.Hour
	// SessionTTL: время жизни сессии владельца
	SessionTTL = 24 * time.Hour
	// PasswordPromptTTL: сколько ждём пароль после /login без аргумента
	PasswordPromptTTL = 5 * time.Minute
)

// OwnerSession: активная сессия владельца.
type OwnerSession struct {
	UserID          int64     `db:"user_id"`
	SessionToken    string    `db:"session_token"`
	AuthenticatedAt time.Time `db:"authenticated_at"`
	ExpiresAt       time.Time `db:"expires_at"`
}

// LoginAttempt: попытка входа (для защиты от перебора).
type LoginAttempt struct {
	UserID      int64     `db:"user_id"`
	AttemptTime time.Time `db:"attempt_time"`
	Success     bool      `db:"success"`
}
