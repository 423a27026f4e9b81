// Package config загружает конфигурацию бота из переменных окружения.
// Используется envconfig для маппинга переменных окружения на поля структуры.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config содержит ВСЕ настройки приложения.
type Config struct {
	// --- Telegram ---
	TelegramBotToken string `envconfig:"TELEGRAM_BOT_TOKEN" required:"true"`
	// Чат, куда пишутся события «бота добавили/удалили» (0: никуда)
	LogChatID int64 `envconfig:"LOG_CHAT_ID" default:"0"`

	// --- Owner ---
	OwnerIDsRaw       string  `envconfig:"OWNER_IDS" required:"true"`
	OwnerIDs          []int64 `envconfig:"-"` // заполним вручную
	OwnerPasswordHash string  `envconfig:"OWNER_PASSWORD_HASH" required:"true"`

	// --- Database ---
	// В Docker внутри контейнера "localhost" почти всегда неправильно.
	// Дефолт ставим "postgres" (имя сервиса в docker-compose), а для локалки переопределяй DB_HOST=localhost.
	DBHost     string `envconfig:"DB_HOST" default:"postgres"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"botuser"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" default:"streak_bot"`
	DBSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	DBMaxConns int32  `envconfig:"DB_MAX_CONNS" default:"25"`
	DBMinConns int32  `envconfig:"DB_MIN_CONNS" default:"5"`

	// --- Application ---
	AppEnv      string `envconfig:"APP_ENV" default:"development"`
	AppLogLevel string `envconfig:"APP_LOG_LEVEL" default:"debug"`
	// Часовой пояс, в котором считаются дни стрика и работают ночные проходы
	AppTimezone string `envconfig:"APP_TIMEZONE" default:"Asia/Riyadh"`

	// --- Bot runtime ---
	// Сколько апдейтов обрабатываем параллельно. Иначе "go на каждый апдейт" = утечка памяти при флуде.
	BotMaxInflight int `envconfig:"BOT_MAX_INFLIGHT" default:"64"`
	// Таймаут long polling (секунды)
	BotUpdateTimeoutSeconds int `envconfig:"BOT_UPDATE_TIMEOUT_SECONDS" default:"60"`

	// --- Rate Limiting (только команды) ---
	RateLimitRPS   float64 `envconfig:"RATE_LIMIT_RPS" default:"0.5"`
	RateLimitBurst int     `envconfig:"RATE_LIMIT_BURST" default:"5"`

	// --- Streak ---
	StreakDefaultMessages int      `envconfig:"STREAK_DEFAULT_MESSAGES" default:"5"`
	StreakDefaultRoles    []string `envconfig:"STREAK_DEFAULT_ROLES"`
	StreakBlackoutMinutes int      `envconfig:"STREAK_BLACKOUT_MINUTES" default:"5"`

	// --- Menus ---
	IconCooldown        time.Duration `envconfig:"ICON_COOLDOWN" default:"5m"`
	IconPickerTTL       time.Duration `envconfig:"ICON_PICKER_TTL" default:"60s"`
	TopPageTTL          time.Duration `envconfig:"TOP_PAGE_TTL" default:"60s"`
	BlocklistTTL        time.Duration `envconfig:"BLOCKLIST_TTL" default:"30s"`
	ResetConfirmTTL     time.Duration `envconfig:"RESET_CONFIRM_TTL" default:"15s"`
	PermissionsCacheTTL time.Duration `envconfig:"PERMISSIONS_CACHE_TTL" default:"1m"`

	// --- Redis (общие кулдауны значков) ---
	RedisEnabled  bool   `envconfig:"REDIS_ENABLED" default:"false"`
	RedisAddr     string `envconfig:"REDIS_ADDR" default:"redis:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	// --- Metrics ---
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"`
	MetricsAddr    string `envconfig:"METRICS_ADDR" default:":9090"`
}

// DatabaseDSN возвращает строку подключения к PostgreSQL в формате DSN.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

// Location возвращает часовой пояс APP_TIMEZONE.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.AppTimezone)
	if err != nil {
		return nil, fmt.Errorf("APP_TIMEZONE %q: %w", c.AppTimezone, err)
	}
	return loc, nil
}

func (c *Config) Validate() error {
	if len(c.OwnerIDs) == 0 {
		return fmt.Errorf("OWNER_IDS не задан")
	}
	if c.BotMaxInflight <= 0 {
		return fmt.Errorf("BOT_MAX_INFLIGHT должен быть > 0")
	}
	if c.BotUpdateTimeoutSeconds <= 0 {
		return fmt.Errorf("BOT_UPDATE_TIMEOUT_SECONDS должен быть > 0")
	}
	if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("некорректные DB_MIN_CONNS/DB_MAX_CONNS")
	}
	if c.StreakDefaultMessages < 1 {
		return fmt.Errorf("STREAK_DEFAULT_MESSAGES должен быть >= 1")
	}
	if c.StreakBlackoutMinutes < 0 || c.StreakBlackoutMinutes > 59 {
		return fmt.Errorf("STREAK_BLACKOUT_MINUTES должен быть в диапазоне 0..59")
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS и RATE_LIMIT_BURST должны быть > 0")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Load читает переменные окружения и заполняет структуру Config.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("не удалось загрузить конфигурацию: %w", err)
	}

	ids, err := parseInt64CSV(cfg.OwnerIDsRaw)
	if err != nil {
		return nil, fmt.Errorf("OWNER_IDS parse: %w", err)
	}
	cfg.OwnerIDs = ids

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func parseInt64CSV(s string) ([]int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad int64 %q: %w", p, err)
		}
		out = append(out, v)
	}
	return out, nil
}
