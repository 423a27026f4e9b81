// Package members (repository.go) отвечает за таблицу members в БД.
package members

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound: пользователя нет в справочнике.
var ErrNotFound = errors.New("участник не найден")

// Repository: хранилище справочника.
type Repository interface {
	Upsert(ctx context.Context, m *Member) error
	GetByUserID(ctx context.Context, userID int64) (*Member, error)
	GetByUsername(ctx context.Context, username string) (*Member, error)
	GetMany(ctx context.Context, userIDs []int64) (map[int64]*Member, error)
}

// PostgresRepository работает с таблицей members.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт репозиторий справочника.
func NewRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Upsert добавляет пользователя или обновляет имя/username.
func (r *PostgresRepository) Upsert(ctx context.Context, m *Member) error {
	query := `
		INSERT INTO members (user_id, username, first_name, last_name)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE
		SET username = EXCLUDED.username,
		    first_name = EXCLUDED.first_name,
		    last_name = EXCLUDED.last_name,
		    updated_at = NOW()
	`
	if _, err := r.db.Exec(ctx, query, m.UserID, m.Username, m.FirstName, m.LastName); err != nil {
		return fmt.Errorf("ошибка создания/обновления участника: %w", err)
	}
	return nil
}

// GetByUserID возвращает ErrNotFound, если участника нет.
func (r *PostgresRepository) GetByUserID(ctx context.Context, userID int64) (*Member, error) {
	query := `
		SELECT user_id, username, first_name, last_name, updated_at
		FROM members
		WHERE user_id = $1
	`
	return r.scanOne(r.db.QueryRow(ctx, query, userID), fmt.Sprintf("user_id=%d", userID))
}

// GetByUsername ищет по @username без учёта регистра. Не найден: ErrNotFound.
func (r *PostgresRepository) GetByUsername(ctx context.Context, username string) (*Member, error) {
	query := `
		SELECT user_id, username, first_name, last_name, updated_at
		FROM members
		WHERE LOWER(username) = LOWER($1)
		ORDER BY updated_at DESC
		LIMIT 1
	`
	return r.scanOne(r.db.QueryRow(ctx, query, username), "username="+username)
}

func (r *PostgresRepository) scanOne(row pgx.Row, key string) (*Member, error) {
	var m Member
	err := row.Scan(&m.UserID, &m.Username, &m.FirstName, &m.LastName, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w (%s)", ErrNotFound, key)
		}
		return nil, fmt.Errorf("ошибка чтения участника (%s): %w", key, err)
	}
	return &m, nil
}

// GetMany возвращает известных пользователей из списка. Неизвестные пропускаются.
func (r *PostgresRepository) GetMany(ctx context.Context, userIDs []int64) (map[int64]*Member, error) {
	out := make(map[int64]*Member, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}

	query := `
		SELECT user_id, username, first_name, last_name, updated_at
		FROM members
		WHERE user_id = ANY($1)
	`
	rows, err := r.db.Query(ctx, query, userIDs)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса участников: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.UserID, &m.Username, &m.FirstName, &m.LastName, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования строки: %w", err)
		}
		out[m.UserID] = &m
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка чтения строк: %w", err)
	}
	return out, nil
}
