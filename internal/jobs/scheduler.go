// Package jobs управляет фоновыми задачами (cron).
// scheduler.go настраивает расписание: проверка обрывов в 00:00,
// дневной сброс в 00:05 и истечение премиума несколько раз в сутки.
package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/streak-bot/internal/metrics"
)

// Расписание в часовом поясе бота.
const (
	SpecBreakCheck    = "0 0 * * *"
	SpecDailyReset    = "5 0 * * *"
	SpecPremiumExpiry = "0 6,12,18 * * *"
)

// Sweeps: ночные проходы по стрикам.
type Sweeps interface {
	BreakCheck(ctx context.Context) (int, error)
	DailyReset(ctx context.Context) (int, error)
}

// PremiumExpirer выключает просроченные премиумы.
type PremiumExpirer interface {
	ExpirePremium(ctx context.Context) (int, error)
}

// Scheduler управляет фоновыми задачами.
type Scheduler struct {
	cron    *cron.Cron
	loc     *time.Location
	sweeps  Sweeps
	premium PremiumExpirer
}

// NewScheduler создаёт планировщик задач в часовом поясе loc.
func NewScheduler(loc *time.Location, sweeps Sweeps, premium PremiumExpirer) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{
		cron:    cron.New(cron.WithLocation(loc)),
		loc:     loc,
		sweeps:  sweeps,
		premium: premium,
	}
}

// Start регистрирует задачи и запускает планировщик.
func (s *Scheduler) Start(ctx context.Context) error {
	jobs := []struct {
		spec string
		run  func(context.Context)
	}{
		{SpecBreakCheck, s.RunMidnight},
		{SpecDailyReset, s.RunDailyReset},
		{SpecPremiumExpiry, s.RunPremiumExpiry},
	}
	for _, j := range jobs {
		run := j.run
		if _, err := s.cron.AddFunc(j.spec, func() { run(ctx) }); err != nil {
			return err
		}
	}

	s.cron.Start()
	log.WithField("timezone", s.loc.String()).Info("Планировщик задач запущен")
	return nil
}

// RunMidnight выполняет проход 00:00: обрывы стриков, затем просроченный премиум.
func (s *Scheduler) RunMidnight(ctx context.Context) {
	log.Info("[CRON] Проверка обрывов стриков")
	started := time.Now()
	broken, err := s.sweeps.BreakCheck(ctx)
	metrics.RecordSweep("break_check", started, err)
	if err != nil {
		log.WithError(err).Error("[CRON] Ошибка проверки обрывов")
	} else {
		log.WithField("broken", broken).Info("[CRON] Проверка обрывов завершена")
	}

	s.RunPremiumExpiry(ctx)
}

// RunDailyReset выполняет проход 00:05 и снимает дневные флаги и счётчики.
func (s *Scheduler) RunDailyReset(ctx context.Context) {
	log.Info("[CRON] Ежедневный сброс")
	started := time.Now()
	_, err := s.sweeps.DailyReset(ctx)
	metrics.RecordSweep("daily_reset", started, err)
	if err != nil {
		log.WithError(err).Error("[CRON] Ошибка сброса")
	}
}

// RunPremiumExpiry выключает просроченные премиумы.
func (s *Scheduler) RunPremiumExpiry(ctx context.Context) {
	started := time.Now()
	expired, err := s.premium.ExpirePremium(ctx)
	metrics.RecordSweep("premium_expiry", started, err)
	metrics.RecordPremiumExpired(expired)
	if err != nil {
		log.WithError(err).Error("[CRON] Ошибка проверки премиума")
		return
	}
	if expired > 0 {
		log.WithField("expired", expired).Info("[CRON] Премиум истёк")
	}
}

// Stop останавливает планировщик и ждёт выполняющиеся задачи.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info("Планировщик задач остановлен")
}
