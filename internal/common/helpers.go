// Package common содержит общие утилиты, используемые во всём проекте.
// Сюда входят: русская плюрализация, форматирование чисел, работа с временем.
package common

import (
	"math"
	"time"

	log "github.com/sirupsen/logrus"
)

// DateLayout: формат календарной даты в записях стриков.
const DateLayout = "2006-01-02"

// pluralize выбирает форму слова по правилам русского языка.
//
//   - n%10==1 И n%100!=11 → one (1, 21, 31, 101, ...)
//   - n%10 в [2,3,4] И n%100 НЕ в [12,13,14] → few (2, 3, 4, 22, 23, ...)
//   - Остальные случаи → many (0, 5-20, 25-30, 100, ...)
func pluralize(n int, one, few, many string) string {
	absN := int(math.Abs(float64(n)))
	lastDigit := absN % 10
	lastTwoDigits := absN % 100

	if lastDigit == 1 && lastTwoDigits != 11 {
		return one
	}
	if lastDigit >= 2 && lastDigit <= 4 && (lastTwoDigits < 12 || lastTwoDigits > 14) {
		return few
	}
	return many
}

// PluralizeDays возвращает правильную форму слова «день» для числа n.
//
// Правила:
//   - 1, 21, 31 → "день"
//   - 2-4, 22-24 → "дня"
//   - 5-20, 25-30 → "дней"
func PluralizeDays(n int) string {
	return pluralize(n, "день", "дня", "дней")
}

// PluralizeMessages возвращает правильную форму слова «сообщение».
func PluralizeMessages(n int) string {
	return pluralize(n, "сообщение", "сообщения", "сообщений")
}

// PluralizeMinutes возвращает правильную форму слова «минута».
func PluralizeMinutes(n int) string {
	return pluralize(n, "минута", "минуты", "минут")
}

// PluralizeSeconds возвращает правильную форму слова «секунда».
func PluralizeSeconds(n int) string {
	return pluralize(n, "секунда", "секунды", "секунд")
}

// LoadLocation загружает часовой пояс по имени.
// Если tzdata недоступна: откатываемся на UTC+3 (Europe/Moscow и Asia/Riyadh
// оба живут в UTC+3 без перехода на летнее время).
func LoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		log.WithError(err).WithField("tz", name).Warn("Не удалось загрузить часовой пояс, используем UTC+3")
		return time.FixedZone("UTC+3", 3*60*60)
	}
	return loc
}

// LocalDate возвращает календарную дату момента t в поясе loc.
// Формат: 2006-01-02
func LocalDate(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(DateLayout)
}

// FormatDateTime форматирует время в формат "02.01.2006 15:04" (день.месяц.год часы:минуты).
func FormatDateTime(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("02.01.2006 15:04")
}

// FormatRemaining форматирует остаток времени: "4 минуты 10 секунд".
func FormatRemaining(d time.Duration) string {
	if d < time.Second {
		d = time.Second
	}
	total := int(d.Round(time.Second).Seconds())
	minutes, seconds := total/60, total%60

	switch {
	case minutes == 0:
		return FormatCount(seconds, PluralizeSeconds)
	case seconds == 0:
		return FormatCount(minutes, PluralizeMinutes)
	default:
		return FormatCount(minutes, PluralizeMinutes) + " " + FormatCount(seconds, PluralizeSeconds)
	}
}
