// Package community (repository.go) хранит состояние сообществ в таблице
// communities: одна строка JSONB на сообщество, перезаписывается целиком.
package community

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
)

// Repository: долговременное хранилище состояний сообществ.
type Repository interface {
	// LoadAll читает все сообщества. Повреждённые записи пропускаются
	// с предупреждением в лог и считаются пустыми.
	LoadAll(ctx context.Context) ([]*State, error)
	// Save перезаписывает состояние сообщества целиком.
	Save(ctx context.Context, s *State) error
}

// PostgresRepository работает с таблицей communities.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт репозиторий сообществ.
func NewRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// LoadAll читает все сообщества.
func (r *PostgresRepository) LoadAll(ctx context.Context) ([]*State, error) {
	rows, err := r.db.Query(ctx, `SELECT chat_id, state FROM communities ORDER BY chat_id`)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения сообществ: %w", err)
	}
	defer rows.Close()

	var out []*State
	for rows.Next() {
		var (
			chatID int64
			raw    []byte
		)
		if err := rows.Scan(&chatID, &raw); err != nil {
			return nil, fmt.Errorf("ошибка сканирования строки: %w", err)
		}
		out = append(out, decodeState(chatID, raw))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка чтения строк: %w", err)
	}
	return out, nil
}

// Save перезаписывает состояние сообщества.
func (r *PostgresRepository) Save(ctx context.Context, s *State) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("ошибка сериализации сообщества %d: %w", s.ChatID, err)
	}

	query := `
		INSERT INTO communities (chat_id, state, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (chat_id) DO UPDATE
		SET state = EXCLUDED.state, updated_at = NOW()
	`
	if _, err := r.db.Exec(ctx, query, s.ChatID, raw); err != nil {
		return fmt.Errorf("ошибка сохранения сообщества %d: %w", s.ChatID, err)
	}
	return nil
}

// decodeState разбирает JSON. Битая запись превращается в пустое состояние.
func decodeState(chatID int64, raw []byte) *State {
	var s State
	if err := json.Unmarshal(raw, &s); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Warn("Повреждённое состояние сообщества, начинаем с пустого")
		return &State{ChatID: chatID}
	}
	s.ChatID = chatID
	return &s
}
