// Package leaderboard строит таблицу лидеров сообщества и режет её на страницы.
package leaderboard

import (
	"sort"
	"time"

	"serotonyl.ru/streak-bot/internal/features/community"
	"serotonyl.ru/streak-bot/internal/features/ranks"
)

// PageSize: строк на странице таблицы лидеров и блок-листа.
const PageSize = 10

// Entry: строка таблицы лидеров.
type Entry struct {
	Position int // с 1
	UserID   int64
	Record   community.Record
	Rank     ranks.RankInfo
}

// Rank возвращает участников сообщества в порядке таблицы лидеров.
//
// Заблокированные исключаются. Порядок: стрик по убыванию, при равенстве
// раньше тот, кто получил последний стрик раньше (запись без отметки
// считается самой ранней), затем по ID. Порядок полный и не зависит от
// обхода map.
func Rank(st *community.State) []Entry {
	o := st.Config.Premium.Overrides()

	out := make([]Entry, 0, len(st.Users))
	for id, r := range st.Users {
		if st.IsBlocked(id) {
			continue
		}
		out = append(out, Entry{UserID: id, Record: *r})
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Record, out[j].Record
		if a.Streak != b.Streak {
			return a.Streak > b.Streak
		}
		ta, tb := earnedAt(a), earnedAt(b)
		if !ta.Equal(tb) {
			return ta.Before(tb)
		}
		return out[i].UserID < out[j].UserID
	})

	for i := range out {
		out[i].Position = i + 1
		out[i].Rank = ranks.ResolveDisplayIcon(out[i].Record.Streak, out[i].Record.SelectedIcon, o)
	}
	return out
}

func earnedAt(r community.Record) time.Time {
	if r.StreakEarnedAt == nil {
		return time.Time{}
	}
	return *r.StreakEarnedAt
}

// Page: окно [Start, End) над упорядоченным списком.
type Page struct {
	Number int // 1..Total
	Total  int // страниц, не меньше 1
	Start  int
	End    int
	Count  int // всего элементов
}

// HasPrev: есть ли предыдущая страница.
func (p Page) HasPrev() bool { return p.Number > 1 }

// HasNext: есть ли следующая страница.
func (p Page) HasNext() bool { return p.Number < p.Total }

// Paginate считает страницу page для count элементов по size на странице.
// Номер зажимается в [1, ceil(count/size)]; пустой список: одна пустая страница.
func Paginate(count, page, size int) Page {
	if size < 1 {
		size = PageSize
	}
	total := (count + size - 1) / size
	if total < 1 {
		total = 1
	}
	if page < 1 {
		page = 1
	}
	if page > total {
		page = total
	}

	start := (page - 1) * size
	end := start + size
	if end > count {
		end = count
	}
	if start > end {
		start = end
	}
	return Page{Number: page, Total: total, Start: start, End: end, Count: count}
}

// TotalPages: сколько страниц даст count элементов.
func TotalPages(count, size int) int {
	return Paginate(count, 1, size).Total
}

// Slice возвращает элементы страницы.
func Slice[T any](items []T, p Page) []T {
	return items[p.Start:p.End]
}
