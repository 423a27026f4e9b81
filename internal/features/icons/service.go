package icons

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/streak-bot/internal/common"
	"serotonyl.ru/streak-bot/internal/features/community"
	"serotonyl.ru/streak-bot/internal/features/ranks"
	"serotonyl.ru/streak-bot/internal/metrics"
)

// CooldownError: смена значка ещё на паузе.
type CooldownError struct {
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("значок можно сменить через %s", common.FormatRemaining(e.Remaining))
}

// Picker: что показать в меню выбора значка.
type Picker struct {
	Rank     ranks.RankInfo
	Icons    []ranks.Icon // встроенные, затем свои
	Selected string
}

// Service управляет выбором значков.
type Service struct {
	registry  *community.Registry
	cooldowns Cooldowns
}

// NewService создаёт сервис значков.
func NewService(registry *community.Registry, cooldowns Cooldowns) *Service {
	return &Service{registry: registry, cooldowns: cooldowns}
}

// Open готовит меню выбора для участника userID.
// Меню доступно с премиумом, со стрика 10 и вне паузы.
func (s *Service) Open(ctx context.Context, chatID, userID int64) (Picker, error) {
	var (
		p      Picker
		premOn bool
		streak int
	)
	err := s.registry.View(ctx, chatID, func(st *community.State) {
		r := st.Peek(userID)
		o := st.Config.Premium.Overrides()
		premOn = o.Enabled
		streak = r.Streak
		p.Selected = r.SelectedIcon
		p.Rank = ranks.Resolve(r.Streak, o)
		p.Icons = ranks.Candidates(p.Rank.Key, o)
	})
	if err != nil {
		return Picker{}, err
	}

	if !premOn {
		return Picker{}, common.ErrPremiumRequired
	}
	if streak < ranks.MinIconStreak {
		return Picker{}, common.ErrIconLocked
	}
	if err := s.checkCooldown(ctx, userID); err != nil {
		return Picker{}, err
	}
	if len(p.Icons) == 0 {
		return Picker{}, common.ErrUnknownIcon
	}
	return p, nil
}

// Select записывает выбранный значок и запускает паузу.
//
// actorID нажал кнопку, ownerID владеет меню.
// Проверки: владелец меню, стрик не меньше 10, пауза, значок есть среди
// доступных для текущего ранга.
func (s *Service) Select(ctx context.Context, chatID, actorID, ownerID int64, emoji string) (ranks.RankInfo, error) {
	info, err := s.selectIcon(ctx, chatID, actorID, ownerID, emoji)
	metrics.RecordIconSelection(selectionStatus(err))
	return info, err
}

func (s *Service) selectIcon(ctx context.Context, chatID, actorID, ownerID int64, emoji string) (ranks.RankInfo, error) {
	if actorID != ownerID {
		return ranks.RankInfo{}, common.ErrNotOwner
	}
	if err := s.checkCooldown(ctx, ownerID); err != nil {
		return ranks.RankInfo{}, err
	}

	var info ranks.RankInfo
	err := s.registry.Update(ctx, chatID, func(st *community.State) error {
		o := st.Config.Premium.Overrides()
		if !o.Enabled {
			return common.ErrPremiumRequired
		}
		r := st.Peek(ownerID)
		if r.Streak < ranks.MinIconStreak {
			return common.ErrIconLocked
		}

		base := ranks.Resolve(r.Streak, o)
		found := false
		for _, icon := range ranks.Candidates(base.Key, o) {
			if icon.Emoji == emoji {
				found = true
				break
			}
		}
		if !found {
			return common.ErrUnknownIcon
		}

		rec := st.Record(ownerID)
		if rec.SelectedIcon == emoji {
			info = ranks.ResolveDisplayIcon(rec.Streak, emoji, o)
			return community.ErrNoChange
		}
		rec.SelectedIcon = emoji
		info = ranks.ResolveDisplayIcon(rec.Streak, emoji, o)
		return nil
	})
	if err != nil {
		return ranks.RankInfo{}, err
	}

	if err := s.cooldowns.Start(ctx, ownerID); err != nil {
		// значок уже сохранён, ошибку паузы только логируем
		log.WithError(err).WithField("user_id", ownerID).Warn("Не удалось запустить кулдаун значка")
	}
	log.WithFields(log.Fields{"chat_id": chatID, "user_id": ownerID, "icon": emoji}).Debug("Значок выбран")
	return info, nil
}

func (s *Service) checkCooldown(ctx context.Context, userID int64) error {
	left, err := s.cooldowns.Remaining(ctx, userID)
	if err != nil {
		return err
	}
	if left > 0 {
		return &CooldownError{Remaining: left}
	}
	return nil
}

func selectionStatus(err error) string {
	var cd *CooldownError
	switch {
	case err == nil:
		return "success"
	case errors.As(err, &cd):
		return "cooldown"
	case errors.Is(err, common.ErrNotOwner):
		return "not_owner"
	case errors.Is(err, common.ErrIconLocked):
		return "locked"
	case errors.Is(err, common.ErrUnknownIcon):
		return "unknown_icon"
	case errors.Is(err, common.ErrPremiumRequired):
		return "no_premium"
	default:
		return "error"
	}
}
