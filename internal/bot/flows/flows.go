// Package flows отслеживает интерактивные сообщения с кнопками (меню значков,
// страницы топа и блок-листа, подтверждение сброса). У каждого меню
// ограниченное время жизни: нажатия после него отклоняются.
package flows

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"serotonyl.ru/streak-bot/internal/common"
)

// Kind: тип меню.
type Kind string

const (
	KindIcons     Kind = "icons"
	KindTop       Kind = "top"
	KindBlocklist Kind = "blocklist"
	KindResetAll  Kind = "reset_all"
)

// Flow: открытое меню.
type Flow struct {
	ID        string
	Kind      Kind
	ChatID    int64
	OwnerID   int64 // кто открыл; 0: нажимать может любой
	MessageID int
	ExpiresAt time.Time
	// Варианты выбора; кнопка передаёт индекс, а не сам вариант
	Options []string
}

// Tracker хранит открытые меню.
type Tracker struct {
	mu    sync.Mutex
	ttl   map[Kind]time.Duration
	flows map[string]*Flow
	now   func() time.Time
}

// NewTracker создаёт трекер с временем жизни для каждого типа меню.
func NewTracker(ttl map[Kind]time.Duration) *Tracker {
	return &Tracker{
		ttl:   ttl,
		flows: make(map[string]*Flow),
		now:   time.Now,
	}
}

// WithClock подменяет часы (для тестов).
func (t *Tracker) WithClock(now func() time.Time) *Tracker {
	t.now = now
	return t
}

// Open регистрирует новое меню и возвращает его.
func (t *Tracker) Open(kind Kind, chatID, ownerID int64) Flow {
	t.mu.Lock()
	defer t.mu.Unlock()

	ttl := t.ttl[kind]
	if ttl <= 0 {
		ttl = time.Minute
	}
	f := &Flow{
		ID:        uuid.NewString(),
		Kind:      kind,
		ChatID:    chatID,
		OwnerID:   ownerID,
		ExpiresAt: t.now().Add(ttl),
	}
	t.flows[f.ID] = f
	return *f
}

// Bind запоминает сообщение, к которому привязано меню.
func (t *Tracker) Bind(id string, messageID int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if f, ok := t.flows[id]; ok {
		f.MessageID = messageID
	}
}

// Attach сохраняет варианты выбора меню.
func (t *Tracker) Attach(id string, options []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if f, ok := t.flows[id]; ok {
		f.Options = append([]string(nil), options...)
	}
}

// Option возвращает вариант по индексу из кнопки.
func (f Flow) Option(i int) (string, bool) {
	if i < 0 || i >= len(f.Options) {
		return "", false
	}
	return f.Options[i], true
}

// Get возвращает живое меню. Просроченное удаляется и даёт ErrFlowExpired.
// actorID проверяется против владельца, чужое нажатие даёт ErrNotOwner.
func (t *Tracker) Get(id string, kind Kind, actorID int64) (Flow, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	f, ok := t.flows[id]
	if !ok || f.Kind != kind {
		return Flow{}, common.ErrFlowExpired
	}
	if !t.now().Before(f.ExpiresAt) {
		delete(t.flows, id)
		return Flow{}, common.ErrFlowExpired
	}
	if f.OwnerID != 0 && f.OwnerID != actorID {
		return Flow{}, common.ErrNotOwner
	}
	return *f, nil
}

// Close завершает меню (после выбора или отмены).
func (t *Tracker) Close(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.flows, id)
}

// Expired удаляет и возвращает просроченные меню, чтобы снять с них кнопки.
func (t *Tracker) Expired() []Flow {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	var out []Flow
	for id, f := range t.flows {
		if !now.Before(f.ExpiresAt) {
			out = append(out, *f)
			delete(t.flows, id)
		}
	}
	return out
}

// Len: сколько меню открыто.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.flows)
}
