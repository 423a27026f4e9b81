package middleware

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_BurstThenRefill(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(1, 3)
	rl.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow(42), "команда %d", i+1)
	}
	assert.False(t, rl.Allow(42))
	assert.True(t, rl.Allow(43), "другой пользователь не затронут")

	now = now.Add(time.Second)
	assert.True(t, rl.Allow(42))
	assert.False(t, rl.Allow(42))
}

func TestRateLimiter_Sweep(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(1, 5)
	rl.now = func() time.Time { return now }

	rl.Allow(1)
	now = now.Add(2 * time.Minute)
	rl.Allow(2)
	now = now.Add(2 * time.Minute)

	assert.Equal(t, 1, rl.Sweep())
	assert.Len(t, rl.visitors, 1)
	assert.Contains(t, rl.visitors, int64(2))
}
