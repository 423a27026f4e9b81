package common

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPluralizeDays(t *testing.T) {
	cases := map[int]string{
		0: "дней", 1: "день", 2: "дня", 4: "дня", 5: "дней",
		11: "дней", 12: "дней", 14: "дней", 21: "день", 22: "дня",
		101: "день", 111: "дней", -1: "день",
	}
	for n, want := range cases {
		assert.Equal(t, want, PluralizeDays(n), "n=%d", n)
	}
}

func TestFormatCount(t *testing.T) {
	assert.Equal(t, "1 день", FormatCount(1, PluralizeDays))
	assert.Equal(t, "3 сообщения", FormatCount(3, PluralizeMessages))
	assert.Equal(t, "2 350 дней", FormatCount(2350, PluralizeDays))
	assert.Equal(t, "+5 дней", FormatDelta(5, PluralizeDays))
	assert.Equal(t, "-2 дня", FormatDelta(-2, PluralizeDays))
}

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "0", FormatNumber(0))
	assert.Equal(t, "999", FormatNumber(999))
	assert.Equal(t, "1 000", FormatNumber(1000))
	assert.Equal(t, "1 234 567", FormatNumber(1234567))
	assert.Equal(t, "-2 350", FormatNumber(-2350))
}

func TestLocalDate(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	// 22:30 UTC: уже следующие сутки в UTC+3
	moment := time.Date(2026, 3, 1, 22, 30, 0, 0, time.UTC)
	assert.Equal(t, "2026-03-02", LocalDate(moment, loc))
	assert.Equal(t, "02.03.2026 01:30", FormatDateTime(moment, loc))
}

func TestFormatRemaining(t *testing.T) {
	assert.Equal(t, "4 минуты 10 секунд", FormatRemaining(4*time.Minute+10*time.Second))
	assert.Equal(t, "5 минут", FormatRemaining(5*time.Minute))
	assert.Equal(t, "1 секунда", FormatRemaining(200*time.Millisecond))
	assert.Equal(t, "21 секунда", FormatRemaining(21*time.Second))
}

func TestPublicMessage(t *testing.T) {
	msg, ok := PublicMessage(fmt.Errorf("сообщество 5: %w", ErrUserBlocked))
	assert.True(t, ok)
	assert.Equal(t, ErrUserBlocked.Error(), msg)

	_, ok = PublicMessage(errors.New("connection refused"))
	assert.False(t, ok)
}
