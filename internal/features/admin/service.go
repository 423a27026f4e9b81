// Package admin (service.go) содержит логику аутентификации владельца,
// управление сессиями и выдачу премиума.
package admin

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/argon2"

	"serotonyl.ru/streak-bot/internal/common"
)

// Premium: операции над премиумом сообществ.
type Premium interface {
	ActivatePremium(ctx context.Context, chatID int64, days int) (time.Time, error)
	DeactivatePremium(ctx context.Context, chatID int64) error
}

// Service управляет панелью владельца.
type Service struct {
	store        Store
	premium      Premium
	owners       map[int64]bool
	passwordHash string
	now          func() time.Time

	// кто ввёл /login без пароля и ждёт следующего сообщения
	pendingMu sync.Mutex
	pending   map[int64]time.Time
}

// NewService создаёт сервис панели владельца.
func NewService(store Store, premium Premium, ownerIDs []int64, passwordHash string) *Service {
	owners := make(map[int64]bool, len(ownerIDs))
	for _, id := range ownerIDs {
		owners[id] = true
	}
	return &Service{
		store:        store,
		premium:      premium,
		owners:       owners,
		passwordHash: passwordHash,
		now:          time.Now,
		pending:      make(map[int64]time.Time),
	}
}

// WithClock подменяет часы (для тестов).
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// IsOwner: пользователь в списке OWNER_IDS.
func (s *Service) IsOwner(userID int64) bool {
	return s.owners[userID]
}

// Login проверяет пароль владельца с использованием Argon2id.
// Включает защиту от перебора: 3 неудачные попытки за час = блокировка.
func (s *Service) Login(ctx context.Context, userID int64, password string) error {
	if !s.IsOwner(userID) {
		return common.ErrNotBotOwner
	}
	now := s.now()

	attempts, err := s.store.FailedAttemptsSince(ctx, userID, now.Add(-AttemptWindow))
	if err != nil {
		return err
	}
	if attempts >= MaxFailedAttempts {
		return common.ErrTooManyAttempts
	}

	match := VerifyPassword(password, s.passwordHash)
	if err := s.store.LogAttempt(ctx, LoginAttempt{UserID: userID, AttemptTime: now, Success: match}); err != nil {
		log.WithError(err).WithField("user_id", userID).Warn("Не удалось записать попытку входа")
	}
	if !match {
		log.WithField("user_id", userID).Warn("Неверный пароль владельца")
		return common.ErrWrongPassword
	}

	session := &OwnerSession{
		UserID:          userID,
		SessionToken:    uuid.NewString(),
		AuthenticatedAt: now,
		ExpiresAt:       now.Add(SessionTTL),
	}
	if err := s.store.CreateSession(ctx, session); err != nil {
		return err
	}
	log.WithField("user_id", userID).Info("Владелец вошёл в панель")
	return nil
}

// Logout закрывает сессии владельца.
func (s *Service) Logout(ctx context.Context, userID int64) error {
	return s.store.DeactivateSessions(ctx, userID)
}

// Authorize проверяет, что userID: владелец с действующей сессией.
func (s *Service) Authorize(ctx context.Context, userID int64) error {
	if !s.IsOwner(userID) {
		return common.ErrNotBotOwner
	}
	_, err := s.store.ActiveSession(ctx, userID, s.now())
	if errors.Is(err, ErrNoSession) {
		return common.ErrSessionExpired
	}
	return err
}

// GrantPremium включает премиум сообществу на days дней.
func (s *Service) GrantPremium(ctx context.Context, ownerID, chatID int64, days int) (time.Time, error) {
	if err := s.Authorize(ctx, ownerID); err != nil {
		return time.Time{}, err
	}
	expiresAt, err := s.premium.ActivatePremium(ctx, chatID, days)
	if err != nil {
		return time.Time{}, err
	}
	log.WithFields(log.Fields{"owner_id": ownerID, "chat_id": chatID, "days": days}).Info("Премиум выдан владельцем")
	return expiresAt, nil
}

// RevokePremium выключает премиум сообщества.
func (s *Service) RevokePremium(ctx context.Context, ownerID, chatID int64) error {
	if err := s.Authorize(ctx, ownerID); err != nil {
		return err
	}
	if err := s.premium.DeactivatePremium(ctx, chatID); err != nil {
		return err
	}
	log.WithFields(log.Fields{"owner_id": ownerID, "chat_id": chatID}).Info("Премиум отозван владельцем")
	return nil
}

// AwaitPassword запоминает, что следующее сообщение владельца: пароль.
func (s *Service) AwaitPassword(userID int64) {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	s.pending[userID] = s.now().Add(PasswordPromptTTL)
}

// TakePasswordPrompt: ждали ли пароль от userID. Ожидание снимается.
func (s *Service) TakePasswordPrompt(userID int64) bool {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	until, ok := s.pending[userID]
	if !ok {
		return false
	}
	delete(s.pending, userID)
	return s.now().Before(until)
}

// --- Криптографические утилиты ---

// Параметры Argon2id для новых хешей
const (
	argonMemory      = 64 * 1024
	argonIterations  = 3
	argonParallelism = 2
	argonSaltLen     = 16
	argonKeyLen      = 32
)

// HashPassword создаёт хеш пароля в формате
// $argon2id$v=19$m=65536,t=3,p=2$<salt_base64>$<hash_base64>
func HashPassword(password string) (string, error) {
	salt := make([]byte, argonSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("ошибка генерации соли: %w", err)
	}
	hash := argon2.IDKey([]byte(password), salt, argonIterations, argonMemory, argonParallelism, argonKeyLen)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, argonMemory, argonIterations, argonParallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

// VerifyPassword проверяет пароль по хешу Argon2id.
func VerifyPassword(password, encodedHash string) bool {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		log.Error("Некорректный формат хеша Argon2id")
		return false
	}

	var memory, iterations uint32
	var parallelism uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &parallelism); err != nil {
		log.WithError(err).Error("Ошибка парсинга параметров Argon2id")
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		log.WithError(err).Error("Ошибка декодирования соли")
		return false
	}
	expectedHash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		log.WithError(err).Error("Ошибка декодирования хеша")
		return false
	}

	computedHash := argon2.IDKey([]byte(password), salt, iterations, memory, parallelism, uint32(len(expectedHash)))

	// Сравниваем в постоянном времени
	return subtle.ConstantTimeCompare(computedHash, expectedHash) == 1
}
