// Package members (service.go) держит справочник в памяти поверх репозитория,
// чтобы не писать в БД на каждое сообщение.
package members

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/streak-bot/internal/common"
)

// Service: справочник пользователей.
type Service struct {
	repo Repository

	mu    sync.RWMutex
	cache map[int64]*Member
}

// NewService создаёт сервис справочника.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, cache: make(map[int64]*Member)}
}

// Remember сохраняет пользователя, если он новый или сменил имя/username.
func (s *Service) Remember(ctx context.Context, userID int64, username, firstName, lastName string) error {
	m := &Member{UserID: userID, Username: username, FirstName: firstName, LastName: lastName}

	s.mu.RLock()
	cached, ok := s.cache[userID]
	s.mu.RUnlock()
	if ok && cached.sameInfo(m) {
		return nil
	}

	if err := s.repo.Upsert(ctx, m); err != nil {
		return fmt.Errorf("ошибка сохранения участника %d: %w", userID, err)
	}

	s.mu.Lock()
	s.cache[userID] = m
	s.mu.Unlock()

	if !ok {
		log.WithFields(log.Fields{"user_id": userID, "username": username}).Debug("Участник добавлен в справочник")
	}
	return nil
}

// Get возвращает пользователя. Не найден: ErrNotFound.
func (s *Service) Get(ctx context.Context, userID int64) (*Member, error) {
	s.mu.RLock()
	cached, ok := s.cache[userID]
	s.mu.RUnlock()
	if ok {
		cp := *cached
		return &cp, nil
	}

	m, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.cache[userID] = m
	s.mu.Unlock()
	cp := *m
	return &cp, nil
}

// FindByUsername ищет по @username (с @ или без).
func (s *Service) FindByUsername(ctx context.Context, username string) (*Member, error) {
	username = strings.TrimPrefix(strings.TrimSpace(username), "@")
	if username == "" {
		return nil, ErrNotFound
	}
	return s.repo.GetByUsername(ctx, username)
}

// Name: отображаемое имя; неизвестный пользователь получает "id<число>".
func (s *Service) Name(ctx context.Context, userID int64) string {
	m, err := s.Get(ctx, userID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			log.WithError(err).WithField("user_id", userID).Debug("Не удалось прочитать участника")
		}
		return (&Member{UserID: userID}).DisplayName()
	}
	return m.DisplayName()
}

// Names: отображаемые имена для списка пользователей (для таблицы лидеров).
func (s *Service) Names(ctx context.Context, userIDs []int64) map[int64]string {
	out := make(map[int64]string, len(userIDs))
	var missing []int64

	s.mu.RLock()
	for _, id := range userIDs {
		if m, ok := s.cache[id]; ok {
			out[id] = m.DisplayName()
		} else {
			missing = append(missing, id)
		}
	}
	s.mu.RUnlock()

	if len(missing) == 0 {
		return out
	}

	found, err := s.repo.GetMany(ctx, missing)
	if err != nil {
		log.WithError(err).Warn("Не удалось прочитать имена участников")
		found = nil
	}

	s.mu.Lock()
	for _, id := range missing {
		if m, ok := found[id]; ok {
			s.cache[id] = m
			out[id] = m.DisplayName()
		} else {
			out[id] = (&Member{UserID: id}).DisplayName()
		}
	}
	s.mu.Unlock()
	return out
}

// ResolveTarget определяет цель команды администратора: автор сообщения,
// на которое ответили (replyTo), иначе первый аргумент (ID или @username).
// Возвращает ID цели и оставшиеся аргументы.
func (s *Service) ResolveTarget(ctx context.Context, replyTo int64, args []string) (int64, []string, error) {
	if replyTo != 0 {
		return replyTo, args, nil
	}
	if len(args) == 0 {
		return 0, nil, common.ErrUserNotFound
	}

	first := args[0]
	if id, err := strconv.ParseInt(first, 10, 64); err == nil && id > 0 {
		return id, args[1:], nil
	}
	if !strings.HasPrefix(first, "@") {
		return 0, nil, common.ErrUserNotFound
	}
	m, err := s.FindByUsername(ctx, first)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return 0, nil, common.ErrUserNotFound
		}
		return 0, nil, err
	}
	return m.UserID, args[1:], nil
}
