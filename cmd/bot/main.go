// Package main: точка входа бота.
// Загружает конфигурацию, инициализирует приложение и запускает.
// Поддерживает graceful shutdown по SIGINT/SIGTERM.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata" // встроенная база часовых поясов

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/streak-bot/internal/app"
	"serotonyl.ru/streak-bot/internal/config"
)

func main() {
	setupLogging()

	log.Info("=== Бот запускается ===")

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("Не удалось загрузить конфигурацию")
	}

	level, err := log.ParseLevel(cfg.AppLogLevel)
	if err == nil {
		log.SetLevel(level)
	}

	// Контекст отменяется по Ctrl+C или docker stop
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("Не удалось инициализировать приложение")
	}
	defer application.Close()

	if application.Metrics != nil {
		application.Metrics.Start()
	}

	if err := application.Scheduler.Start(ctx); err != nil {
		log.WithError(err).Fatal("Не удалось запустить планировщик")
	}
	defer application.Scheduler.Stop()

	updates, err := application.Updates(ctx)
	if err != nil {
		log.WithError(err).Fatal("Не удалось начать получение апдейтов")
	}

	log.Info("=== Бот готов к работе ===")
	application.Bot.Start(ctx, updates)

	log.Info("Получен сигнал остановки, завершаем обработчики...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	application.Bot.Wait(shutdownCtx)
	if application.Metrics != nil {
		if err := application.Metrics.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("Ошибка остановки сервера метрик")
		}
	}

	log.Info("=== Бот остановлен ===")
}

// setupLogging настраивает формат логов.
func setupLogging() {
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	log.SetOutput(os.Stdout)
	log.SetLevel(log.DebugLevel)
}
