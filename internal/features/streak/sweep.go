package streak

import (
	"context"
	"sort"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/streak-bot/internal/features/community"
	"serotonyl.ru/streak-bot/internal/metrics"
)

// Sweeper выполняет ночные проходы по всем сообществам.
//
// BreakCheck запускается в 00:00 и должен видеть вчерашние флаги
// StreakEarned, поэтому DailyReset, который их снимает, идёт отдельно
// в 00:05. Ошибка одного сообщества не останавливает проход.
type Sweeper struct {
	registry *community.Registry
	notifier Notifier
}

// NewSweeper создаёт исполнителя ночных проходов.
func NewSweeper(registry *community.Registry, notifier Notifier) *Sweeper {
	return &Sweeper{registry: registry, notifier: notifier}
}

// BreakCheck обрывает стрики тех, кто вчера не выполнил норму:
// streak > 0 и StreakEarned == false. Возвращает число оборванных стриков.
func (s *Sweeper) BreakCheck(ctx context.Context) (int, error) {
	total := 0
	var firstErr error

	for _, chatID := range s.registry.IDs() {
		var (
			broken []Break
			logs   *int64
		)
		err := s.registry.Update(ctx, chatID, func(st *community.State) error {
			broken = broken[:0]
			for userID, r := range st.Users {
				if st.IsBlocked(userID) || r.Streak == 0 || r.StreakEarned {
					continue
				}
				broken = append(broken, Break{ChatID: chatID, UserID: userID, Lost: r.Streak})
				r.Reset()
			}
			if len(broken) == 0 {
				return community.ErrNoChange
			}
			logs = st.Config.LogsChatID
			return nil
		})
		if err != nil {
			log.WithError(err).WithField("chat_id", chatID).Error("Ночная проверка: не удалось сохранить сообщество")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if len(broken) == 0 {
			continue
		}

		sort.Slice(broken, func(i, j int) bool { return broken[i].UserID < broken[j].UserID })
		total += len(broken)
		log.WithFields(log.Fields{"chat_id": chatID, "broken": len(broken)}).Info("Стрики оборваны")

		if s.notifier != nil {
			for _, b := range broken {
				b.LogsChatID = logs
				s.notifier.StreakBroken(ctx, b)
			}
		}
	}

	metrics.RecordBreaks(total)
	log.WithField("broken", total).Info("Ночная проверка стриков завершена")
	return total, firstErr
}

// DailyReset снимает дневной флаг и обнуляет счётчик сообщений у всех.
// Возвращает число изменённых записей.
func (s *Sweeper) DailyReset(ctx context.Context) (int, error) {
	total := 0
	var firstErr error

	for _, chatID := range s.registry.IDs() {
		changed := 0
		err := s.registry.Update(ctx, chatID, func(st *community.State) error {
			changed = 0
			for _, r := range st.Users {
				if !r.StreakEarned && r.DailyMessages == 0 {
					continue
				}
				r.StreakEarned = false
				r.DailyMessages = 0
				changed++
			}
			if changed == 0 {
				return community.ErrNoChange
			}
			return nil
		})
		if err != nil {
			log.WithError(err).WithField("chat_id", chatID).Error("Дневной сброс: не удалось сохранить сообщество")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		total += changed
	}

	log.WithField("reset", total).Info("Дневной сброс завершён")
	return total, firstErr
}
