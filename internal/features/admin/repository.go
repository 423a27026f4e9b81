// Package admin (repository.go) работает с таблицами owner_sessions и owner_login_attempts.
package admin

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNoSession: активной сессии нет.
var ErrNoSession = errors.New("активная сессия не найдена")

// Store: хранилище сессий и попыток входа.
type Store interface {
	CreateSession(ctx context.Context, s *OwnerSession) error
	ActiveSession(ctx context.Context, userID int64, now time.Time) (*OwnerSession, error)
	DeactivateSessions(ctx context.Context, userID int64) error
	LogAttempt(ctx context.Context, a LoginAttempt) error
	FailedAttemptsSince(ctx context.Context, userID int64, since time.Time) (int, error)
}

// Repository работает с таблицами владельца в PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт репозиторий.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// CreateSession создаёт новую сессию владельца.
func (r *Repository) CreateSession(ctx context.Context, s *OwnerSession) error {
	query := `
		INSERT INTO owner_sessions (user_id, session_token, authenticated_at, expires_at, is_active)
		VALUES ($1, $2, $3, $4, TRUE)
	`
	_, err := r.db.Exec(ctx, query, s.UserID, s.SessionToken, s.AuthenticatedAt, s.ExpiresAt)
	if err != nil {
		return fmt.Errorf("ошибка создания сессии: %w", err)
	}
	return nil
}

// ActiveSession возвращает действующую на момент now сессию или ErrNoSession.
func (r *Repository) ActiveSession(ctx context.Context, userID int64, now time.Time) (*OwnerSession, error) {
	query := `
		SELECT user_id, session_token, authenticated_at, expires_at
		FROM owner_sessions
		WHERE user_id = $1 AND is_active = TRUE AND expires_at > $2
		ORDER BY authenticated_at DESC
		LIMIT 1
	`
	var s OwnerSession
	err := r.db.QueryRow(ctx, query, userID, now).Scan(&s.UserID, &s.SessionToken, &s.AuthenticatedAt, &s.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("ошибка чтения сессии: %w", err)
	}
	return &s, nil
}

// DeactivateSessions закрывает все сессии пользователя.
func (r *Repository) DeactivateSessions(ctx context.Context, userID int64) error {
	query := `UPDATE owner_sessions SET is_active = FALSE WHERE user_id = $1 AND is_active = TRUE`
	if _, err := r.db.Exec(ctx, query, userID); err != nil {
		return fmt.Errorf("ошибка закрытия сессий: %w", err)
	}
	return nil
}

// LogAttempt записывает попытку входа.
func (r *Repository) LogAttempt(ctx context.Context, a LoginAttempt) error {
	query := `INSERT INTO owner_login_attempts (user_id, attempt_time, success) VALUES ($1, $2, $3)`
	if _, err := r.db.Exec(ctx, query, a.UserID, a.AttemptTime, a.Success); err != nil {
		return fmt.Errorf("ошибка записи попытки входа: %w", err)
	}
	return nil
}

// FailedAttemptsSince возвращает количество неудачных попыток начиная с since.
func (r *Repository) FailedAttemptsSince(ctx context.Context, userID int64, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM owner_login_attempts
		WHERE user_id = $1 AND success = FALSE AND attempt_time >= $2
	`
	var count int
	if err := r.db.QueryRow(ctx, query, userID, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта попыток: %w", err)
	}
	return count, nil
}

// MemoryStore: Store в памяти процесса (для тестов и запуска без БД).
type MemoryStore struct {
	mu       sync.Mutex
	sessions []OwnerSession
	active   map[string]bool // по токену
	attempts []LoginAttempt
}

// NewMemoryStore создаёт пустое хранилище.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{active: make(map[string]bool)}
}

func (m *MemoryStore) CreateSession(_ context.Context, s *OwnerSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions = append(m.sessions, *s)
	m.active[s.SessionToken] = true
	return nil
}

func (m *MemoryStore) ActiveSession(_ context.Context, userID int64, now time.Time) (*OwnerSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.sessions) - 1; i >= 0; i-- {
		s := m.sessions[i]
		if s.UserID == userID && m.active[s.SessionToken] && s.ExpiresAt.After(now) {
			return &s, nil
		}
	}
	return nil, ErrNoSession
}

func (m *MemoryStore) DeactivateSessions(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.UserID == userID {
			m.active[s.SessionToken] = false
		}
	}
	return nil
}

func (m *MemoryStore) LogAttempt(_ context.Context, a LoginAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts = append(m.attempts, a)
	return nil
}

func (m *MemoryStore) FailedAttemptsSince(_ context.Context, userID int64, since time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, a := range m.attempts {
		if a.UserID == userID && !a.Success && !a.AttemptTime.Before(since) {
			n++
		}
	}
	return n, nil
}
