// Package community (registry.go) держит состояния всех сообществ в памяти
// и сериализует изменения: на каждое сообщество свой мьютекс, изменение
// сохраняется в хранилище до снятия блокировки.
package community

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	log "github.com/sirupsen/logrus"
)

// ErrNoChange возвращается из fn в Update, когда менять нечего:
// сохранение пропускается, Update возвращает nil.
var ErrNoChange = errors.New("community: нет изменений")

type entry struct {
	mu    sync.Mutex
	state *State
	saved bool // состояние есть в хранилище
}

// Registry: состояния сообществ, загруженные при старте.
type Registry struct {
	repo     Repository
	defaults Defaults

	mu      sync.Mutex // защищает entries
	entries map[int64]*entry
}

// NewRegistry создаёт реестр поверх хранилища.
func NewRegistry(repo Repository, defaults Defaults) *Registry {
	return &Registry{
		repo:     repo,
		defaults: defaults,
		entries:  make(map[int64]*entry),
	}
}

// Load читает все сообщества из хранилища. Вызывается один раз при старте.
func (r *Registry) Load(ctx context.Context) error {
	states, err := r.repo.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("ошибка загрузки сообществ: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range states {
		s.normalize(r.defaults)
		r.entries[s.ChatID] = &entry{state: s, saved: true}
	}

	log.WithField("communities", len(states)).Info("Состояния сообществ загружены")
	return nil
}

// IDs: все известные сообщества по возрастанию ID.
func (r *Registry) IDs() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]int64, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (r *Registry) entry(chatID int64) *entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[chatID]
	if !ok {
		e = &entry{state: NewState(chatID, r.defaults)}
		r.entries[chatID] = e
	}
	return e
}

// ensureSaved сохраняет лениво созданное сообщество. Вызывать под e.mu.
func (r *Registry) ensureSaved(ctx context.Context, e *entry) error {
	if e.saved {
		return nil
	}
	if err := r.repo.Save(ctx, e.state); err != nil {
		return err
	}
	e.saved = true
	return nil
}

// Update выполняет fn над копией состояния под блокировкой сообщества.
// Если fn вернула ошибку или сохранение не удалось, состояние не меняется.
// Лениво созданное сообщество сохраняется в любом случае.
func (r *Registry) Update(ctx context.Context, chatID int64, fn func(s *State) error) error {
	e := r.entry(chatID)
	e.mu.Lock()
	defer e.mu.Unlock()

	next := e.state.Clone()
	if err := fn(next); err != nil {
		if errors.Is(err, ErrNoChange) {
			err = nil
		}
		if saveErr := r.ensureSaved(ctx, e); saveErr != nil {
			log.WithError(saveErr).WithField("chat_id", chatID).Warn("Не удалось сохранить новое сообщество")
		}
		return err
	}

	if err := r.repo.Save(ctx, next); err != nil {
		return fmt.Errorf("сообщество %d: %w", chatID, err)
	}
	e.state = next
	e.saved = true
	return nil
}

// View даёт fn доступ к состоянию на чтение под блокировкой сообщества.
// fn не должна менять состояние и сохранять ссылки на него.
func (r *Registry) View(ctx context.Context, chatID int64, fn func(s *State)) error {
	e := r.entry(chatID)
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := r.ensureSaved(ctx, e); err != nil {
		return fmt.Errorf("сообщество %d: %w", chatID, err)
	}
	fn(e.state)
	return nil
}

// Snapshot возвращает копию состояния.
func (r *Registry) Snapshot(ctx context.Context, chatID int64) (*State, error) {
	var out *State
	err := r.View(ctx, chatID, func(s *State) { out = s.Clone() })
	return out, err
}
