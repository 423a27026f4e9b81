// Package common (pluralize.go) содержит вспомогательные функции
// для правильного склонения русских числительных.
// Основная логика плюрализации реализована в helpers.go,
// этот файл экспортирует дополнительные утилиты.
package common

import "fmt"

// FormatCount создаёт строку вида "5 дней" по функции склонения.
//
// Примеры:
//
//	FormatCount(1, PluralizeDays)      → "1 день"
//	FormatCount(3, PluralizeMessages)  → "3 сообщения"
func FormatCount(n int, plural func(int) string) string {
	return fmt.Sprintf("%s %s", FormatNumber(int64(n)), plural(n))
}

// FormatDelta создаёт строку вида "+3 дня" или "-2 дня".
// Знак «+» или «-» добавляется автоматически.
func FormatDelta(n int, plural func(int) string) string {
	if n >= 0 {
		return "+" + FormatCount(n, plural)
	}
	return FormatCount(n, plural)
}

// FormatNumber форматирует число с разделителями тысяч (пробелами).
// Пример: FormatNumber(2350) → "2 350"
func FormatNumber(n int64) string {
	if n < 0 {
		return "-" + FormatNumber(-n)
	}
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}

	// Рекурсивно добавляем разделители
	rest := n / 1000
	last := n % 1000
	return fmt.Sprintf("%s %03d", FormatNumber(rest), last)
}
