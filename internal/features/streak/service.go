// Package streak (service.go) содержит бизнес-логику стриков: подсчёт
// сообщений в теме активности и ручные действия администраторов.
// Все изменения идут через community.Registry и сохраняются сразу.
package streak

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/streak-bot/internal/common"
	"serotonyl.ru/streak-bot/internal/features/community"
	"serotonyl.ru/streak-bot/internal/features/ranks"
	"serotonyl.ru/streak-bot/internal/metrics"
)

// Activity: сообщение участника в групповом чате.
type Activity struct {
	ChatID   int64
	UserID   int64
	ThreadID int // 0: общая тема или чат без тем
	At       time.Time
}

// RoleChecker проверяет, есть ли у участника одна из ролей.
type RoleChecker interface {
	HasAnyRole(ctx context.Context, chatID, userID int64, roles []string) (bool, error)
}

// Increment: стрик участника увеличен.
type Increment struct {
	ChatID     int64
	UserID     int64
	OldStreak  int
	Streak     int
	OldRank    ranks.RankInfo
	Rank       ranks.RankInfo
	LogsChatID *int64
}

// Break: стрик оборван ночной проверкой.
type Break struct {
	ChatID     int64
	UserID     int64
	Lost       int
	LogsChatID *int64
}

// Action: ручное действие администратора.
type Action string

const (
	ActionBlock    Action = "block"
	ActionUnblock  Action = "unblock"
	ActionAdd      Action = "add"
	ActionRemove   Action = "remove"
	ActionReset    Action = "reset"
	ActionResetAll Action = "reset_all"
)

// Moderation: запись журнала о действии администратора.
type Moderation struct {
	ChatID     int64
	LogsChatID *int64
	Action     Action
	ActorID    int64
	TargetID   int64 // 0 для ResetAll
	Amount     int
	Before     int
	After      int
}

// Notifier доставляет события стриков. Доставка не гарантируется и
// не влияет на уже сохранённое изменение.
type Notifier interface {
	StreakIncremented(ctx context.Context, e Increment)
	StreakBroken(ctx context.Context, e Break)
	Moderated(ctx context.Context, e Moderation)
}

// Options: параметры сервиса стриков.
type Options struct {
	// Часовой пояс, в котором считается «сегодня»
	Location *time.Location
	// Окно после полуночи (минуты), когда сообщения не считаются при TimeLimit
	BlackoutMinutes int
}

// Service управляет стриками.
type Service struct {
	registry *community.Registry
	roles    RoleChecker
	notifier Notifier
	loc      *time.Location
	blackout int
	now      func() time.Time
}

// NewService создаёт сервис стриков. roles и notifier могут быть nil.
func NewService(registry *community.Registry, roles RoleChecker, notifier Notifier, opts Options) *Service {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		registry: registry,
		roles:    roles,
		notifier: notifier,
		loc:      loc,
		blackout: opts.BlackoutMinutes,
		now:      time.Now,
	}
}

// WithClock подменяет часы (для тестов).
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Location: часовой пояс сервиса.
func (s *Service) Location() *time.Location { return s.loc }

// RecordActivity обрабатывает одно сообщение. Возвращает исход
// (metrics.Outcome*): засчитано, начислен стрик или причина пропуска.
//
// Фильтры по порядку: тема активности задана и совпадает, роль участника
// (если роли заданы), блок-лист, окно после полуночи (если включено).
func (s *Service) RecordActivity(ctx context.Context, a Activity) (string, error) {
	at := a.At
	if at.IsZero() {
		at = s.now()
	}

	var (
		thread  *int
		roles   []string
		limit   bool
		blocked bool
	)
	err := s.registry.View(ctx, a.ChatID, func(st *community.State) {
		if st.Config.ActivityThreadID != nil {
			v := *st.Config.ActivityThreadID
			thread = &v
		}
		roles = append(roles, st.Config.StreakRoles...)
		limit = st.Config.TimeLimit
		blocked = st.IsBlocked(a.UserID)
	})
	if err != nil {
		metrics.RecordActivity(metrics.OutcomeError)
		return metrics.OutcomeError, err
	}

	if thread == nil || *thread != a.ThreadID {
		return s.skip(metrics.OutcomeWrongThread), nil
	}
	if len(roles) > 0 && s.roles != nil {
		ok, err := s.roles.HasAnyRole(ctx, a.ChatID, a.UserID, roles)
		if err != nil {
			metrics.RecordActivity(metrics.OutcomeError)
			return metrics.OutcomeError, err
		}
		if !ok {
			return s.skip(metrics.OutcomeNoRole), nil
		}
	}
	if blocked {
		return s.skip(metrics.OutcomeBlocked), nil
	}
	if limit && InBlackout(at, s.loc, s.blackout) {
		return s.skip(metrics.OutcomeBlackout), nil
	}

	today := common.LocalDate(at, s.loc)
	var (
		res  Result
		logs *int64
	)
	err = s.registry.Update(ctx, a.ChatID, func(st *community.State) error {
		// за время проверки роли участника могли заблокировать
		if st.IsBlocked(a.UserID) {
			blocked = true
			return community.ErrNoChange
		}
		res = Advance(st.Record(a.UserID), at, today, st.Config.MessageCountRequired, st.Config.Premium.Overrides())
		if res.Transition == Stale {
			return community.ErrNoChange
		}
		logs = st.Config.LogsChatID
		return nil
	})
	if err != nil {
		metrics.RecordActivity(metrics.OutcomeError)
		return metrics.OutcomeError, err
	}
	if blocked {
		return s.skip(metrics.OutcomeBlocked), nil
	}
	if res.Transition == Stale {
		return s.skip(metrics.OutcomeStale), nil
	}

	if res.Transition != Earned {
		metrics.RecordActivity(metrics.OutcomeCounted)
		return metrics.OutcomeCounted, nil
	}

	metrics.RecordActivity(metrics.OutcomeEarned)
	metrics.RecordIncrement(res.Rank.Key)
	log.WithFields(log.Fields{
		"chat_id": a.ChatID,
		"user_id": a.UserID,
		"streak":  res.Streak,
		"rank":    res.Rank.Key,
	}).Debug("Стрик увеличен")

	if s.notifier != nil {
		s.notifier.StreakIncremented(ctx, Increment{
			ChatID:     a.ChatID,
			UserID:     a.UserID,
			OldStreak:  res.OldStreak,
			Streak:     res.Streak,
			OldRank:    res.OldRank,
			Rank:       res.Rank,
			LogsChatID: logs,
		})
	}
	return metrics.OutcomeEarned, nil
}

func (s *Service) skip(outcome string) string {
	metrics.RecordActivity(outcome)
	return outcome
}

// Card: данные для карточки стрика.
type Card struct {
	Record   community.Record
	Rank     ranks.RankInfo
	Required int
	Blocked  bool
	// Роли, которым засчитываются сообщения (пусто: всем)
	Roles []string
}

// Card возвращает карточку участника. Записи нет: нулевой стрик.
func (s *Service) Card(ctx context.Context, chatID, userID int64) (Card, error) {
	var out Card
	err := s.registry.View(ctx, chatID, func(st *community.State) {
		out.Record = st.Peek(userID)
		out.Required = st.Config.MessageCountRequired
		out.Blocked = st.IsBlocked(userID)
		out.Roles = append(out.Roles, st.Config.StreakRoles...)
		out.Rank = ranks.ResolveDisplayIcon(out.Record.Streak, out.Record.SelectedIcon, st.Config.Premium.Overrides())
	})
	return out, err
}

// Change: результат ручного изменения стрика.
type Change struct {
	Before int
	After  int
}

// AddStreak прибавляет amount к стрику. Заблокированным нельзя.
func (s *Service) AddStreak(ctx context.Context, chatID, actorID, userID int64, amount int) (Change, error) {
	if amount < 1 {
		return Change{}, common.ErrInvalidAmount
	}

	var (
		ch   Change
		logs *int64
	)
	err := s.registry.Update(ctx, chatID, func(st *community.State) error {
		if st.IsBlocked(userID) {
			return common.ErrUserBlocked
		}
		o := st.Config.Premium.Overrides()
		r := st.Record(userID)
		oldKey := ranks.Resolve(r.Streak, o).Key

		ch.Before = r.Streak
		r.Streak += amount
		ch.After = r.Streak
		followRank(r, oldKey, o)

		logs = st.Config.LogsChatID
		return nil
	})
	if err != nil {
		return Change{}, err
	}

	s.moderated(ctx, Moderation{
		ChatID: chatID, LogsChatID: logs, Action: ActionAdd,
		ActorID: actorID, TargetID: userID, Amount: amount, Before: ch.Before, After: ch.After,
	})
	return ch, nil
}

// RemoveStreak вычитает amount из стрика (не ниже нуля).
// Если значок не удалось перенести в новый ранг и стрик стал меньше 10,
// выбор значка сбрасывается.
func (s *Service) RemoveStreak(ctx context.Context, chatID, actorID, userID int64, amount int) (Change, error) {
	if amount < 1 {
		return Change{}, common.ErrInvalidAmount
	}

	var (
		ch   Change
		logs *int64
	)
	err := s.registry.Update(ctx, chatID, func(st *community.State) error {
		r, ok := st.Users[userID]
		if !ok || r.Streak == 0 {
			return common.ErrNoStreak
		}
		o := st.Config.Premium.Overrides()
		oldKey := ranks.Resolve(r.Streak, o).Key

		ch.Before = r.Streak
		r.Streak -= amount
		if r.Streak < 0 {
			r.Streak = 0
		}
		ch.After = r.Streak

		changed, migrated := followRank(r, oldKey, o)
		if changed && !migrated && r.Streak < ranks.MinIconStreak {
			r.SelectedIcon = ""
		}

		logs = st.Config.LogsChatID
		return nil
	})
	if err != nil {
		return Change{}, err
	}

	s.moderated(ctx, Moderation{
		ChatID: chatID, LogsChatID: logs, Action: ActionRemove,
		ActorID: actorID, TargetID: userID, Amount: amount, Before: ch.Before, After: ch.After,
	})
	return ch, nil
}

// ResetUser обнуляет запись участника. Возвращает прежний стрик.
func (s *Service) ResetUser(ctx context.Context, chatID, actorID, userID int64) (int, error) {
	var (
		before int
		logs   *int64
	)
	err := s.registry.Update(ctx, chatID, func(st *community.State) error {
		r, ok := st.Users[userID]
		if !ok || r.Streak == 0 {
			return common.ErrNoStreak
		}
		before = r.Streak
		r.Reset()
		r.StreakEarnedAt = nil
		logs = st.Config.LogsChatID
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.moderated(ctx, Moderation{
		ChatID: chatID, LogsChatID: logs, Action: ActionReset,
		ActorID: actorID, TargetID: userID, Before: before,
	})
	return before, nil
}

// ResetAll удаляет все записи и очищает блок-лист сообщества.
// Возвращает число удалённых записей.
func (s *Service) ResetAll(ctx context.Context, chatID, actorID int64) (int, error) {
	var (
		removed int
		logs    *int64
	)
	err := s.registry.Update(ctx, chatID, func(st *community.State) error {
		removed = len(st.Users)
		st.Users = make(map[int64]*community.Record)
		st.Blocked = make(map[int64]time.Time)
		logs = st.Config.LogsChatID
		return nil
	})
	if err != nil {
		return 0, err
	}

	log.WithFields(log.Fields{"chat_id": chatID, "actor_id": actorID, "removed": removed}).Warn("Все стрики сообщества сброшены")
	s.moderated(ctx, Moderation{
		ChatID: chatID, LogsChatID: logs, Action: ActionResetAll,
		ActorID: actorID, Amount: removed,
	})
	return removed, nil
}

// Block добавляет участника в блок-лист и удаляет его запись.
func (s *Service) Block(ctx context.Context, chatID, actorID, userID int64) error {
	var (
		before int
		logs   *int64
	)
	err := s.registry.Update(ctx, chatID, func(st *community.State) error {
		before = st.Peek(userID).Streak
		if !st.Block(userID, s.now()) {
			return common.ErrAlreadyBlocked
		}
		logs = st.Config.LogsChatID
		return nil
	})
	if err != nil {
		return err
	}

	s.moderated(ctx, Moderation{
		ChatID: chatID, LogsChatID: logs, Action: ActionBlock,
		ActorID: actorID, TargetID: userID, Before: before,
	})
	return nil
}

// Unblock убирает участника из блок-листа. Стрик не восстанавливается.
func (s *Service) Unblock(ctx context.Context, chatID, actorID, userID int64) error {
	var logs *int64
	err := s.registry.Update(ctx, chatID, func(st *community.State) error {
		if !st.Unblock(userID) {
			return common.ErrNotBlocked
		}
		logs = st.Config.LogsChatID
		return nil
	})
	if err != nil {
		return err
	}

	s.moderated(ctx, Moderation{
		ChatID: chatID, LogsChatID: logs, Action: ActionUnblock,
		ActorID: actorID, TargetID: userID,
	})
	return nil
}

func (s *Service) moderated(ctx context.Context, e Moderation) {
	metrics.RecordModeration(string(e.Action))
	log.WithFields(log.Fields{
		"chat_id":   e.ChatID,
		"action":    e.Action,
		"actor_id":  e.ActorID,
		"target_id": e.TargetID,
		"before":    e.Before,
		"after":     e.After,
	}).Info("Действие администратора")

	if s.notifier != nil {
		s.notifier.Moderated(ctx, e)
	}
}
