// Package app инициализирует все компоненты приложения.
// app.go является точкой сборки: создаёт БД-пул, репозитории, сервисы, обработчики,
// фильтры и собирает всё в один объект Bot.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mymmrac/telego"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/streak-bot/internal/bot"
	"serotonyl.ru/streak-bot/internal/bot/filters"
	"serotonyl.ru/streak-bot/internal/bot/flows"
	"serotonyl.ru/streak-bot/internal/bot/middleware"
	"serotonyl.ru/streak-bot/internal/config"
	"serotonyl.ru/streak-bot/internal/db/postgres"
	"serotonyl.ru/streak-bot/internal/features/admin"
	"serotonyl.ru/streak-bot/internal/features/community"
	"serotonyl.ru/streak-bot/internal/features/icons"
	"serotonyl.ru/streak-bot/internal/features/leaderboard"
	"serotonyl.ru/streak-bot/internal/features/members"
	"serotonyl.ru/streak-bot/internal/features/streak"
	"serotonyl.ru/streak-bot/internal/jobs"
	"serotonyl.ru/streak-bot/internal/metrics"
	"serotonyl.ru/streak-bot/internal/notify"
)

// App содержит все компоненты приложения.
type App struct {
	Bot       *bot.Bot
	Scheduler *jobs.Scheduler
	Metrics   *metrics.Server // nil, если METRICS_ENABLED=false
	DB        *pgxpool.Pool
	Redis     *redis.Client // nil, если REDIS_ENABLED=false
	BotAPI    *telego.Bot

	timeout int
}

// New создаёт и инициализирует приложение.
// Порядок инициализации важен: компоненты зависят друг от друга.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	// === 1. База данных ===
	pool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к БД: %w", err)
	}
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ошибка миграций: %w", err)
	}

	// === 2. Telegram Bot API ===
	var botOpts []telego.BotOption
	if cfg.AppEnv == "development" {
		botOpts = append(botOpts, telego.WithDefaultDebugLogger())
	}
	botAPI, err := telego.NewBot(cfg.TelegramBotToken, botOpts...)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("ошибка создания Telegram API: %w", err)
	}
	me, err := botAPI.GetMe(ctx)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("ошибка авторизации в Telegram: %w", err)
	}
	log.Infof("Авторизован как @%s", me.Username)

	// === 3. Кулдауны значков ===
	cooldowns, redisClient, err := newCooldowns(ctx, cfg)
	if err != nil {
		pool.Close()
		return nil, err
	}

	// === 4. Сообщества: загружаем всё в память ===
	registry := community.NewRegistry(community.NewRepository(pool), community.Defaults{
		MessageCountRequired: cfg.StreakDefaultMessages,
		StreakRoles:          cfg.StreakDefaultRoles,
	})
	if err := registry.Load(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ошибка загрузки сообществ: %w", err)
	}

	// === 5. Сервисы ===
	memberService := members.NewService(members.NewRepository(pool))
	notifier := notify.New(botAPI, memberService, cfg.LogChatID, loc)
	permissions := filters.NewPermissions(botAPI, cfg.PermissionsCacheTTL)

	communityService := community.NewService(registry, notifier)
	streakService := streak.NewService(registry, permissions, notifier, streak.Options{
		Location:        loc,
		BlackoutMinutes: cfg.StreakBlackoutMinutes,
	})
	sweeper := streak.NewSweeper(registry, notifier)
	iconService := icons.NewService(registry, cooldowns)
	adminService := admin.NewService(admin.NewRepository(pool), communityService, cfg.OwnerIDs, cfg.OwnerPasswordHash)

	// === 6. Обработчики ===
	tracker := flows.NewTracker(map[flows.Kind]time.Duration{
		flows.KindIcons:     cfg.IconPickerTTL,
		flows.KindTop:       cfg.TopPageTTL,
		flows.KindBlocklist: cfg.BlocklistTTL,
		flows.KindResetAll:  cfg.ResetConfirmTTL,
	})
	handlers := bot.Handlers{
		Members:     members.NewHandler(memberService),
		Streak:      streak.NewHandler(streakService, botAPI, permissions, memberService, memberService, tracker),
		Icons:       icons.NewHandler(iconService, botAPI, tracker, cfg.IconCooldown),
		Leaderboard: leaderboard.NewHandler(registry, botAPI, memberService, tracker, loc),
		Community:   community.NewHandler(communityService, botAPI, loc),
		Admin:       admin.NewHandler(adminService, botAPI, loc),
	}

	// === 7. Собираем бота ===
	b := bot.New(botAPI, handlers, streakService, communityService, permissions, tracker, notifier, bot.Options{
		BotUsername: me.Username,
		MaxInflight: cfg.BotMaxInflight,
		RateLimit:   middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
	})

	// === 8. Планировщик задач ===
	scheduler := jobs.NewScheduler(loc, sweeper, communityService)

	// === 9. Метрики ===
	var metricsServer *metrics.Server
	if cfg.MetricsEnabled {
		metricsServer = metrics.NewServer(cfg.MetricsAddr, func(ctx context.Context) error {
			if err := pool.Ping(ctx); err != nil {
				return err
			}
			if redisClient != nil {
				return redisClient.Ping(ctx).Err()
			}
			return nil
		})
	}

	return &App{
		Bot:       b,
		Scheduler: scheduler,
		Metrics:   metricsServer,
		DB:        pool,
		Redis:     redisClient,
		BotAPI:    botAPI,
		timeout:   cfg.BotUpdateTimeoutSeconds,
	}, nil
}

// newCooldowns выбирает хранилище кулдаунов: Redis, если включён, иначе память процесса.
func newCooldowns(ctx context.Context, cfg *config.Config) (icons.Cooldowns, *redis.Client, error) {
	if !cfg.RedisEnabled {
		return icons.NewMemoryCooldowns(cfg.IconCooldown), nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("redis недоступен (%s): %w", cfg.RedisAddr, err)
	}
	log.WithField("addr", cfg.RedisAddr).Info("Кулдауны значков хранятся в Redis")
	return icons.NewRedisCooldowns(client, cfg.IconCooldown), client, nil
}

// Updates открывает long polling.
func (a *App) Updates(ctx context.Context) (<-chan telego.Update, error) {
	return a.BotAPI.UpdatesViaLongPolling(ctx, &telego.GetUpdatesParams{
		Timeout:        a.timeout,
		AllowedUpdates: bot.AllowedUpdates,
	})
}

// Close освобождает соединения.
func (a *App) Close() {
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			log.WithError(err).Warn("Ошибка закрытия Redis")
		}
	}
	a.DB.Close()
}
