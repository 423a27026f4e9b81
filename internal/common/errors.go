// Package common (errors.go) определяет пользовательские ошибки,
// которые используются во всех модулях бота.
// Эти ошибки позволяют обработчикам различать типы проблем
// и отправлять пользователю понятные сообщения.
package common

import "errors"

// Ошибки стриков и модерации
var (
	// ErrNoStreak: у пользователя нет стрика, снимать или сбрасывать нечего
	ErrNoStreak = errors.New("у пользователя нет стрика")
	// ErrInvalidAmount: количество должно быть положительным
	ErrInvalidAmount = errors.New("количество должно быть положительным")
	// ErrUserBlocked: пользователь в блок-листе сообщества
	ErrUserBlocked = errors.New("пользователь в блок-листе")
	// ErrAlreadyBlocked: пользователь уже заблокирован
	ErrAlreadyBlocked = errors.New("пользователь уже в блок-листе")
	// ErrNotBlocked: пользователя нет в блок-листе
	ErrNotBlocked = errors.New("пользователя нет в блок-листе")
	// ErrUserNotFound: не удалось определить пользователя
	ErrUserNotFound = errors.New("пользователь не найден")
)

// Ошибки настроек сообщества
var (
	// ErrInvalidMessageCount: норма сообщений должна быть не меньше 1
	ErrInvalidMessageCount = errors.New("норма сообщений должна быть не меньше 1")
	// ErrThreadAlreadyAdded: тема уже в списке
	ErrThreadAlreadyAdded = errors.New("эта тема уже в списке")
	// ErrThreadNotListed: темы нет в списке
	ErrThreadNotListed = errors.New("этой темы нет в списке")
	// ErrRoleAlreadyAdded: роль уже в списке
	ErrRoleAlreadyAdded = errors.New("эта роль уже в списке")
	// ErrRoleNotListed: роли нет в списке
	ErrRoleNotListed = errors.New("этой роли нет в списке")
	// ErrRoleTooLong: роль длиннее 64 символов
	ErrRoleTooLong = errors.New("роль слишком длинная (максимум 64 символа)")
)

// Ошибки значков
var (
	// ErrIconLocked: выбор значка открывается со стрика 10
	ErrIconLocked = errors.New("значки открываются со стрика 10")
	// ErrNotOwner: чужое меню выбора
	ErrNotOwner = errors.New("это меню открыто не для вас")
	// ErrUnknownIcon: значка нет среди доступных для ранга
	ErrUnknownIcon = errors.New("этот значок недоступен для вашего ранга")
	// ErrIconExists: такой значок уже добавлен
	ErrIconExists = errors.New("такой значок уже добавлен")
	// ErrIconNotFound: значок с таким именем не найден
	ErrIconNotFound = errors.New("значок не найден")
	// ErrFlowExpired: меню устарело
	ErrFlowExpired = errors.New("время ожидания истекло, откройте меню заново")
)

// Ошибки премиума
var (
	// ErrPremiumRequired: функция доступна только с премиумом
	ErrPremiumRequired = errors.New("функция доступна только с премиумом")
	// ErrPremiumExpired: срок премиума истёк
	ErrPremiumExpired = errors.New("срок премиума истёк")
	// ErrUnknownRank: такого ранга нет или для него нельзя менять настройки
	ErrUnknownRank = errors.New("неизвестный ранг")
	// ErrInvalidBounds: некорректные границы ранга
	ErrInvalidBounds = errors.New("некорректные границы: min ≥ 1, max ≥ min")
	// ErrInvalidDays: срок премиума в днях должен быть положительным
	ErrInvalidDays = errors.New("количество дней должно быть не меньше 1")
)

// Ошибки админки
var (
	// ErrNotAdmin: пользователь не является администратором чата
	ErrNotAdmin = errors.New("у вас нет прав администратора")
	// ErrNotBotOwner: команда только для владельца бота
	ErrNotBotOwner = errors.New("команда доступна только владельцу бота")
	// ErrWrongPassword: неверный пароль
	ErrWrongPassword = errors.New("неверный пароль")
	// ErrTooManyAttempts: слишком много неудачных попыток входа
	ErrTooManyAttempts = errors.New("слишком много попыток, подождите 1 час")
	// ErrSessionExpired: сессия истекла
	ErrSessionExpired = errors.New("сессия истекла, авторизуйтесь заново")
)

// public: ошибки, текст которых можно показать пользователю как есть.
var public = []error{
	ErrNoStreak, ErrInvalidAmount, ErrUserBlocked, ErrAlreadyBlocked, ErrNotBlocked, ErrUserNotFound,
	ErrInvalidMessageCount, ErrThreadAlreadyAdded, ErrThreadNotListed, ErrRoleAlreadyAdded,
	ErrRoleNotListed, ErrRoleTooLong,
	ErrIconLocked, ErrNotOwner, ErrUnknownIcon, ErrIconExists, ErrIconNotFound, ErrFlowExpired,
	ErrPremiumRequired, ErrPremiumExpired, ErrUnknownRank, ErrInvalidBounds, ErrInvalidDays,
	ErrNotAdmin, ErrNotBotOwner, ErrWrongPassword, ErrTooManyAttempts, ErrSessionExpired,
}

// PublicMessage возвращает текст ошибки из списка выше, если err её содержит.
func PublicMessage(err error) (string, bool) {
	for _, e := range public {
		if errors.Is(err, e) {
			return e.Error(), true
		}
	}
	return "", false
}
