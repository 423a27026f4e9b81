// Package community (service.go) содержит операции над настройками
// сообщества и премиумом: изменение настроек, свои значки и границы рангов,
// выдача и истечение премиума.
package community

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/streak-bot/internal/common"
	"serotonyl.ru/streak-bot/internal/features/ranks"
)

// ExpiryNotifier получает уведомление об истечении премиума.
type ExpiryNotifier interface {
	PremiumExpired(ctx context.Context, chatID int64, expiredAt time.Time)
}

// Service управляет настройками сообществ.
type Service struct {
	registry *Registry
	notifier ExpiryNotifier
	now      func() time.Time
}

// NewService создаёт сервис настроек.
func NewService(registry *Registry, notifier ExpiryNotifier) *Service {
	return &Service{registry: registry, notifier: notifier, now: time.Now}
}

// WithClock подменяет часы (для тестов).
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Settings возвращает копию настроек сообщества.
func (s *Service) Settings(ctx context.Context, chatID int64) (Configuration, error) {
	var out Configuration
	err := s.registry.View(ctx, chatID, func(st *State) { out = st.Config.clone() })
	return out, err
}

// Configure применяет изменение настроек.
func (s *Service) Configure(ctx context.Context, chatID int64, p Patch) (Configuration, error) {
	var out Configuration
	err := s.registry.Update(ctx, chatID, func(st *State) error {
		if err := p.Apply(&st.Config); err != nil {
			return err
		}
		out = st.Config.clone()
		return nil
	})
	return out, err
}

// ActivatePremium включает премиум на days дней от текущего момента.
// Свои значки и границы, если были, сохраняются.
func (s *Service) ActivatePremium(ctx context.Context, chatID int64, days int) (time.Time, error) {
	if days < 1 {
		return time.Time{}, common.ErrInvalidDays
	}
	expiresAt := s.now().Add(time.Duration(days) * 24 * time.Hour)

	err := s.registry.Update(ctx, chatID, func(st *State) error {
		st.Config.Premium.Enabled = true
		st.Config.Premium.ExpiresAt = &expiresAt
		return nil
	})
	if err != nil {
		return time.Time{}, err
	}

	log.WithFields(log.Fields{
		"chat_id":    chatID,
		"days":       days,
		"expires_at": expiresAt,
	}).Info("Премиум активирован")
	return expiresAt, nil
}

// DeactivatePremium выключает премиум и удаляет свои значки и границы.
func (s *Service) DeactivatePremium(ctx context.Context, chatID int64) error {
	return s.registry.Update(ctx, chatID, func(st *State) error {
		st.Config.Premium = Premium{
			CustomIcons: make(map[string][]ranks.Icon),
			LevelBounds: make(map[string]ranks.Bound),
		}
		return nil
	})
}

// requireActive проверяет премиум перед премиум-операциями.
func (s *Service) requireActive(p Premium) error {
	if !p.Enabled {
		return common.ErrPremiumRequired
	}
	if !p.Active(s.now()) {
		return common.ErrPremiumExpired
	}
	return nil
}

// SetLevelBounds задаёт границы ранга. maxStreak == nil: без верхней границы.
// Пересечения с другими границами не проверяются: при определении ранга
// выигрывает граница с большим min.
func (s *Service) SetLevelBounds(ctx context.Context, chatID int64, rankKey string, minStreak int, maxStreak *int) error {
	if !ranks.Customizable(rankKey) {
		return common.ErrUnknownRank
	}
	if minStreak < 1 || (maxStreak != nil && *maxStreak < minStreak) {
		return common.ErrInvalidBounds
	}

	return s.registry.Update(ctx, chatID, func(st *State) error {
		if err := s.requireActive(st.Config.Premium); err != nil {
			return err
		}
		b := ranks.Bound{Min: minStreak}
		if maxStreak != nil {
			v := *maxStreak
			b.Max = &v
		}
		st.Config.Premium.LevelBounds[rankKey] = b
		return nil
	})
}

// ClearLevelBounds убирает границы ранга.
func (s *Service) ClearLevelBounds(ctx context.Context, chatID int64, rankKey string) error {
	if !ranks.Customizable(rankKey) {
		return common.ErrUnknownRank
	}
	return s.registry.Update(ctx, chatID, func(st *State) error {
		if err := s.requireActive(st.Config.Premium); err != nil {
			return err
		}
		delete(st.Config.Premium.LevelBounds, rankKey)
		return nil
	})
}

// AddCustomIcon добавляет свой значок к рангу. Пустое имя заменяется на custom_<unix ms>.
func (s *Service) AddCustomIcon(ctx context.Context, chatID int64, rankKey, emoji, name string) (ranks.Icon, error) {
	if !ranks.Customizable(rankKey) {
		return ranks.Icon{}, common.ErrUnknownRank
	}
	if name == "" {
		name = fmt.Sprintf("custom_%d", s.now().UnixMilli())
	}
	icon := ranks.Icon{Name: name, Emoji: emoji}

	err := s.registry.Update(ctx, chatID, func(st *State) error {
		if err := s.requireActive(st.Config.Premium); err != nil {
			return err
		}
		for _, existing := range ranks.Candidates(rankKey, st.Config.Premium.Overrides()) {
			if existing.Emoji == emoji || existing.Name == name {
				return common.ErrIconExists
			}
		}
		st.Config.Premium.CustomIcons[rankKey] = append(st.Config.Premium.CustomIcons[rankKey], icon)
		return nil
	})
	if err != nil {
		return ranks.Icon{}, err
	}
	return icon, nil
}

// DeleteCustomIcon удаляет свой значок по имени.
func (s *Service) DeleteCustomIcon(ctx context.Context, chatID int64, rankKey, name string) error {
	return s.registry.Update(ctx, chatID, func(st *State) error {
		if err := s.requireActive(st.Config.Premium); err != nil {
			return err
		}
		icons := st.Config.Premium.CustomIcons[rankKey]
		for i, icon := range icons {
			if icon.Name == name {
				icons = append(icons[:i], icons[i+1:]...)
				if len(icons) == 0 {
					delete(st.Config.Premium.CustomIcons, rankKey)
				} else {
					st.Config.Premium.CustomIcons[rankKey] = icons
				}
				return nil
			}
		}
		return common.ErrIconNotFound
	})
}

// ExpirePremium выключает просроченные премиумы во всех сообществах.
// Ошибка одного сообщества не мешает остальным: следующий запуск повторит.
func (s *Service) ExpirePremium(ctx context.Context) (int, error) {
	now := s.now()
	expired := 0
	var firstErr error

	for _, chatID := range s.registry.IDs() {
		var expiredAt time.Time
		lapsed := false

		err := s.registry.Update(ctx, chatID, func(st *State) error {
			if !st.Config.Premium.Lapsed(now) {
				return ErrNoChange
			}
			expiredAt = *st.Config.Premium.ExpiresAt
			lapsed = true
			st.Config.Premium = Premium{
				CustomIcons: make(map[string][]ranks.Icon),
				LevelBounds: make(map[string]ranks.Bound),
			}
			return nil
		})
		if err != nil {
			log.WithError(err).WithField("chat_id", chatID).Error("Не удалось выключить просроченный премиум")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if lapsed {
			expired++
			log.WithField("chat_id", chatID).Info("Премиум истёк и выключен")
			if s.notifier != nil {
				s.notifier.PremiumExpired(ctx, chatID, expiredAt)
			}
		}
	}
	return expired, firstErr
}
