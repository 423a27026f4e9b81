package community

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// MemoryRepository хранит сообщества в памяти в том же JSON, что и Postgres.
// Используется в тестах и для локального запуска без БД.
type MemoryRepository struct {
	mu    sync.Mutex
	data  map[int64][]byte
	saves int
	// FailSave: если задано, Save возвращает эту ошибку
	FailSave error
}

// NewMemoryRepository создаёт пустое хранилище.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{data: make(map[int64][]byte)}
}

// LoadAll читает все сообщества.
func (m *MemoryRepository) LoadAll(_ context.Context) ([]*State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]int64, 0, len(m.data))
	for id := range m.data {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]*State, 0, len(ids))
	for _, id := range ids {
		out = append(out, decodeState(id, m.data[id]))
	}
	return out, nil
}

// Save сохраняет копию состояния.
func (m *MemoryRepository) Save(_ context.Context, s *State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailSave != nil {
		return m.FailSave
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("ошибка сериализации сообщества %d: %w", s.ChatID, err)
	}
	m.data[s.ChatID] = raw
	m.saves++
	return nil
}

// Put кладёт сырые данные (для проверки загрузки повреждённых записей).
func (m *MemoryRepository) Put(chatID int64, raw []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[chatID] = raw
}

// Saves: сколько раз вызывался успешный Save.
func (m *MemoryRepository) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// Stored возвращает сохранённое состояние или nil.
func (m *MemoryRepository) Stored(chatID int64) *State {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.data[chatID]
	if !ok {
		return nil
	}
	return decodeState(chatID, raw)
}
