// Package streak (engine.go) содержит автомат стрика: как одно засчитанное
// сообщение меняет запись участника.
package streak

import (
	"time"

	"serotonyl.ru/streak-bot/internal/features/community"
	"serotonyl.ru/streak-bot/internal/features/ranks"
)

// Transition: что произошло с записью после сообщения.
type Transition int

const (
	// Seeded означает первое сообщение за всё время, запись заведена, стрик 0.
	Seeded Transition = iota + 1
	// Counted: сообщение засчитано, стрик не изменился.
	Counted
	// Earned: норма дня выполнена, стрик увеличен на 1.
	Earned
	// NewDay: первое сообщение нового дня, счётчик начат заново.
	NewDay
	// Stale: сообщение за день раньше последней активности, запись не тронута.
	Stale
)

func (t Transition) String() string {
	switch t {
	case Seeded:
		return "seeded"
	case Counted:
		return "counted"
	case Earned:
		return "earned"
	case NewDay:
		return "new_day"
	case Stale:
		return "stale"
	default:
		return "unknown"
	}
}

// Result: итог Advance.
type Result struct {
	Transition Transition
	OldStreak  int
	Streak     int
	// Заполняются только для Earned
	OldRank     ranks.RankInfo
	Rank        ranks.RankInfo
	RankChanged bool
}

// Advance применяет одно засчитанное сообщение к записи.
//
//  1. Активности ещё не было: дата = today, сообщений 1, стрик 0.
//  2. Та же дата: сообщений +1. Если норма набрана и стрик за день ещё
//     не начислен, стрик +1 (не чаще раза в день).
//  3. Новая дата: сообщений 1, флаг дня снят. Обрыв стрика здесь не
//     проверяется, этим занимается ночная проверка.
//  4. Дата раньше последней активности (запоздавший апдейт): ничего не
//     меняется. Даты в формате YYYY-MM-DD сравниваются как строки.
func Advance(r *community.Record, now time.Time, today string, required int, o ranks.Overrides) Result {
	if r.LastActiveDate != "" && today < r.LastActiveDate {
		return Result{Transition: Stale, OldStreak: r.Streak, Streak: r.Streak}
	}

	stamp := now
	r.LastMessageAt = &stamp

	res := Result{OldStreak: r.Streak}

	switch {
	case r.LastActiveDate == "":
		r.LastActiveDate = today
		r.DailyMessages = 1
		r.Streak = 0
		res.Transition = Seeded

	case r.LastActiveDate == today:
		r.DailyMessages++
		res.Transition = Counted

		if r.DailyMessages >= required && !r.StreakEarned {
			res.OldRank = ranks.ResolveDisplayIcon(r.Streak, r.SelectedIcon, o)

			r.Streak++
			r.StreakEarned = true
			r.StreakEarnedAt = &stamp

			res.RankChanged, _ = followRank(r, res.OldRank.Key, o)
			res.Rank = ranks.ResolveDisplayIcon(r.Streak, r.SelectedIcon, o)
			res.Transition = Earned
		}

	default:
		r.LastActiveDate = today
		r.DailyMessages = 1
		r.StreakEarned = false
		res.Transition = NewDay
	}

	res.Streak = r.Streak
	return res
}

// followRank переносит выбранный значок, если стрик сменил ранг.
// migrated=false при смене ранга значит, что подходящего значка не нашлось
// и выбор остался прежним.
func followRank(r *community.Record, oldKey string, o ranks.Overrides) (rankChanged, migrated bool) {
	newKey := ranks.Resolve(r.Streak, o).Key
	if newKey == oldKey {
		return false, false
	}
	if r.SelectedIcon == "" {
		return true, false
	}
	icon, ok := ranks.MigrateIcon(r.SelectedIcon, newKey)
	if !ok {
		return true, false
	}
	r.SelectedIcon = icon
	return true, true
}

// InBlackout проверяет окно сразу после полуночи: 00:00 .. 00:minutes включительно.
func InBlackout(t time.Time, loc *time.Location, minutes int) bool {
	local := t.In(loc)
	return local.Hour() == 0 && local.Minute() <= minutes
}
