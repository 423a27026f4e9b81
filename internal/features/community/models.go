// Package community хранит состояние сообществ (групповых чатов): настройки,
// записи стриков участников и блок-лист. Всё состояние одного сообщества
// сериализуется целиком и сохраняется при каждом изменении.
package community

import (
	"sort"
	"time"

	"serotonyl.ru/streak-bot/internal/features/ranks"
)

// Premium: премиум-подписка сообщества.
type Premium struct {
	Enabled     bool                    `json:"enabled"`
	ExpiresAt   *time.Time              `json:"expires_at"`
	CustomIcons map[string][]ranks.Icon `json:"custom_icons"`
	LevelBounds map[string]ranks.Bound  `json:"level_bounds"`
}

// Active: премиум включён и не истёк на момент now.
func (p Premium) Active(now time.Time) bool {
	if !p.Enabled {
		return false
	}
	return p.ExpiresAt == nil || now.Before(*p.ExpiresAt)
}

// Lapsed: премиум включён, но срок уже вышел (проверка планировщика).
func (p Premium) Lapsed(now time.Time) bool {
	return p.Enabled && p.ExpiresAt != nil && !p.ExpiresAt.After(now)
}

// Overrides: премиум-настройки в виде, понятном пакету ranks.
func (p Premium) Overrides() ranks.Overrides {
	return ranks.Overrides{
		Enabled:     p.Enabled,
		Bounds:      p.LevelBounds,
		CustomIcons: p.CustomIcons,
	}
}

// Configuration: настройки сообщества.
type Configuration struct {
	// Тема форума, в которой считаются сообщения. nil: стрики не считаются.
	ActivityThreadID *int `json:"activity_thread_id"`
	// Темы, где разрешены команды. Пусто: везде.
	CommandThreadIDs []int `json:"command_thread_ids"`
	// Роли (статусы или звания участников), которым засчитываются сообщения. Пусто: всем.
	StreakRoles []string `json:"streak_roles"`
	// Чат для журнала действий. nil: журнал не ведётся.
	LogsChatID *int64 `json:"logs_chat_id"`
	// Норма сообщений в день
	MessageCountRequired int `json:"message_count_required"`
	// Игнорировать сообщения в окне сразу после полуночи
	TimeLimit bool    `json:"time_limit"`
	Premium   Premium `json:"premium"`
}

// CommandsAllowed проверяет, можно ли выполнять команды в теме threadID.
func (c *Configuration) CommandsAllowed(threadID int) bool {
	if len(c.CommandThreadIDs) == 0 {
		return true
	}
	for _, id := range c.CommandThreadIDs {
		if id == threadID {
			return true
		}
	}
	return false
}

// Record: запись стрика участника в сообществе.
type Record struct {
	Streak int `json:"streak"`
	// Календарная дата последней активности (YYYY-MM-DD), пусто: активности не было
	LastActiveDate string     `json:"last_active_date,omitempty"`
	DailyMessages  int        `json:"daily_messages"`
	StreakEarned   bool       `json:"streak_earned"`
	StreakEarnedAt *time.Time `json:"streak_earned_at,omitempty"`
	SelectedIcon   string     `json:"selected_icon,omitempty"`
	LastMessageAt  *time.Time `json:"last_message_at,omitempty"`
}

// Reset возвращает запись к исходному состоянию после обрыва стрика.
func (r *Record) Reset() {
	r.Streak = 0
	r.DailyMessages = 0
	r.LastActiveDate = ""
	r.StreakEarned = false
	r.SelectedIcon = ""
}

// Defaults: значения по умолчанию для новых сообществ.
type Defaults struct {
	MessageCountRequired int
	StreakRoles          []string
}

// State: полное состояние одного сообщества.
type State struct {
	ChatID  int64               `json:"chat_id"`
	Config  Configuration       `json:"config"`
	Users   map[int64]*Record   `json:"users"`
	Blocked map[int64]time.Time `json:"blocked"` // когда заблокирован
}

// NewState создаёт состояние с настройками по умолчанию.
func NewState(chatID int64, d Defaults) *State {
	s := &State{ChatID: chatID}
	s.Config.MessageCountRequired = d.MessageCountRequired
	s.Config.StreakRoles = append([]string(nil), d.StreakRoles...)
	s.normalize(d)
	return s
}

// normalize заполняет отсутствующие поля после загрузки из хранилища.
func (s *State) normalize(d Defaults) {
	if s.Users == nil {
		s.Users = make(map[int64]*Record)
	}
	if s.Blocked == nil {
		s.Blocked = make(map[int64]time.Time)
	}
	if s.Config.MessageCountRequired < 1 {
		s.Config.MessageCountRequired = d.MessageCountRequired
		if s.Config.MessageCountRequired < 1 {
			s.Config.MessageCountRequired = 1
		}
	}
	if s.Config.Premium.CustomIcons == nil {
		s.Config.Premium.CustomIcons = make(map[string][]ranks.Icon)
	}
	if s.Config.Premium.LevelBounds == nil {
		s.Config.Premium.LevelBounds = make(map[string]ranks.Bound)
	}
}

// Record возвращает запись участника, создавая её при первом обращении.
func (s *State) Record(userID int64) *Record {
	r, ok := s.Users[userID]
	if !ok {
		r = &Record{}
		s.Users[userID] = r
	}
	return r
}

// Peek возвращает копию записи без создания. У отсутствующей записи: нули.
func (s *State) Peek(userID int64) Record {
	if r, ok := s.Users[userID]; ok {
		return *r
	}
	return Record{}
}

// IsBlocked проверяет блок-лист.
func (s *State) IsBlocked(userID int64) bool {
	_, ok := s.Blocked[userID]
	return ok
}

// Block добавляет в блок-лист и удаляет запись стрика.
func (s *State) Block(userID int64, at time.Time) bool {
	if s.IsBlocked(userID) {
		return false
	}
	s.Blocked[userID] = at
	delete(s.Users, userID)
	return true
}

// Unblock убирает из блок-листа. Запись не восстанавливается.
func (s *State) Unblock(userID int64) bool {
	if !s.IsBlocked(userID) {
		return false
	}
	delete(s.Blocked, userID)
	return true
}

// BlockedIDs: блок-лист, отсортированный по ID.
func (s *State) BlockedIDs() []int64 {
	ids := make([]int64, 0, len(s.Blocked))
	for id := range s.Blocked {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Clone делает глубокую копию состояния.
func (s *State) Clone() *State {
	out := &State{
		ChatID:  s.ChatID,
		Config:  s.Config.clone(),
		Users:   make(map[int64]*Record, len(s.Users)),
		Blocked: make(map[int64]time.Time, len(s.Blocked)),
	}
	for id, r := range s.Users {
		cp := *r
		out.Users[id] = &cp
	}
	for id, at := range s.Blocked {
		out.Blocked[id] = at
	}
	return out
}

func (c Configuration) clone() Configuration {
	out := c
	out.CommandThreadIDs = append([]int(nil), c.CommandThreadIDs...)
	out.StreakRoles = append([]string(nil), c.StreakRoles...)
	if c.ActivityThreadID != nil {
		v := *c.ActivityThreadID
		out.ActivityThreadID = &v
	}
	if c.LogsChatID != nil {
		v := *c.LogsChatID
		out.LogsChatID = &v
	}

	out.Premium.CustomIcons = make(map[string][]ranks.Icon, len(c.Premium.CustomIcons))
	for k, icons := range c.Premium.CustomIcons {
		out.Premium.CustomIcons[k] = append([]ranks.Icon(nil), icons...)
	}
	out.Premium.LevelBounds = make(map[string]ranks.Bound, len(c.Premium.LevelBounds))
	for k, b := range c.Premium.LevelBounds {
		if b.Max != nil {
			v := *b.Max
			b.Max = &v
		}
		out.Premium.LevelBounds[k] = b
	}
	return out
}
