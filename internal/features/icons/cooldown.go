// Package icons отвечает за выбор значка участником. Здесь кулдаун между сменами и проверка
// доступности значка для текущего ранга.
package icons

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultCooldown: пауза между сменами значка.
const DefaultCooldown = 5 * time.Minute

// Cooldowns хранит паузы между сменами значка по пользователю.
type Cooldowns interface {
	// Remaining возвращает, сколько осталось ждать. 0 значит можно менять.
	Remaining(ctx context.Context, userID int64) (time.Duration, error)
	// Start запускает паузу для пользователя.
	Start(ctx context.Context, userID int64) error
}

// MemoryCooldowns: паузы в памяти процесса. Перезапуск их сбрасывает.
type MemoryCooldowns struct {
	mu    sync.Mutex
	ttl   time.Duration
	until map[int64]time.Time
	now   func() time.Time
}

// NewMemoryCooldowns создаёт хранилище пауз длиной ttl.
func NewMemoryCooldowns(ttl time.Duration) *MemoryCooldowns {
	if ttl <= 0 {
		ttl = DefaultCooldown
	}
	return &MemoryCooldowns{ttl: ttl, until: make(map[int64]time.Time), now: time.Now}
}

// WithClock подменяет часы (для тестов).
func (m *MemoryCooldowns) WithClock(now func() time.Time) *MemoryCooldowns {
	m.now = now
	return m
}

// Remaining реализует Cooldowns.
func (m *MemoryCooldowns) Remaining(_ context.Context, userID int64) (time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	until, ok := m.until[userID]
	if !ok {
		return 0, nil
	}
	left := until.Sub(m.now())
	if left <= 0 {
		delete(m.until, userID)
		return 0, nil
	}
	return left, nil
}

// Start реализует Cooldowns.
func (m *MemoryCooldowns) Start(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.until[userID] = m.now().Add(m.ttl)
	return nil
}

// PrefixCooldown: префикс ключей пауз в Redis.
const PrefixCooldown = "streak:icon_cooldown:"

// RedisCooldowns: паузы в Redis, общие для нескольких экземпляров бота.
type RedisCooldowns struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCooldowns создаёт хранилище пауз поверх клиента Redis.
func NewRedisCooldowns(client *redis.Client, ttl time.Duration) *RedisCooldowns {
	if ttl <= 0 {
		ttl = DefaultCooldown
	}
	return &RedisCooldowns{client: client, ttl: ttl}
}

func cooldownKey(userID int64) string {
	return PrefixCooldown + strconv.FormatInt(userID, 10)
}

// Remaining реализует Cooldowns.
func (r *RedisCooldowns) Remaining(ctx context.Context, userID int64) (time.Duration, error) {
	left, err := r.client.PTTL(ctx, cooldownKey(userID)).Result()
	if err != nil {
		return 0, fmt.Errorf("redis: ошибка чтения кулдауна: %w", err)
	}
	// -2 значит ключа нет, -1 значит ключ без TTL (не бывает, но паузы нет)
	if left <= 0 {
		return 0, nil
	}
	return left, nil
}

// Start реализует Cooldowns.
func (r *RedisCooldowns) Start(ctx context.Context, userID int64) error {
	if err := r.client.Set(ctx, cooldownKey(userID), "1", r.ttl).Err(); err != nil {
		return fmt.Errorf("redis: ошибка записи кулдауна: %w", err)
	}
	return nil
}
