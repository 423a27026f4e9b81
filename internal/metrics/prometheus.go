// Package metrics содержит счётчики Prometheus для стриков, ночных проходов и премиума.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Исходы обработки сообщения в теме активности.
const (
	OutcomeCounted     = "counted"
	OutcomeEarned      = "earned"
	OutcomeWrongThread = "wrong_thread"
	OutcomeNoRole      = "no_role"
	OutcomeBlocked     = "blocked"
	OutcomeBlackout    = "blackout"
	OutcomeStale       = "stale"
	OutcomeError       = "error"
)

var (
	ActivityEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streak_activity_events_total",
			Help: "Сообщения, прошедшие через автомат стриков, по исходу",
		},
		[]string{"outcome"},
	)

	StreakIncrementsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streak_increments_total",
			Help: "Увеличения стрика, по рангу после увеличения",
		},
		[]string{"rank"},
	)

	StreakBreaksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "streak_breaks_total",
			Help: "Стрики, оборванные ночной проверкой",
		},
	)

	ModerationActionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streak_moderation_actions_total",
			Help: "Действия администраторов над стриками",
		},
		[]string{"action"},
	)

	IconSelectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streak_icon_selections_total",
			Help: "Попытки выбора значка, по результату",
		},
		[]string{"status"},
	)

	PremiumExpiredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "streak_premium_expired_total",
			Help: "Премиумы, выключенные по истечении срока",
		},
	)

	SweepRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streak_sweep_runs_total",
			Help: "Запуски ночных проходов",
		},
		[]string{"pass", "status"},
	)

	SweepDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "streak_sweep_duration_seconds",
			Help:    "Длительность ночных проходов",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms .. ~20s
		},
		[]string{"pass"},
	)

	SweepLastRunTimestamp = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "streak_sweep_last_run_timestamp",
			Help: "Unix-время последнего запуска прохода",
		},
		[]string{"pass"},
	)

	NotificationsFailedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streak_notifications_failed_total",
			Help: "Недоставленные уведомления",
		},
		[]string{"kind"},
	)

	CommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streak_bot_commands_total",
			Help: "Обработанные команды, по имени и результату",
		},
		[]string{"command", "status"},
	)

	PanicsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streak_bot_panics_total",
			Help: "Паники, перехваченные в обработчиках",
		},
		[]string{"where"},
	)
)

// RecordActivity учитывает исход обработки сообщения.
func RecordActivity(outcome string) {
	ActivityEventsTotal.WithLabelValues(outcome).Inc()
}

// RecordIncrement учитывает увеличение стрика.
func RecordIncrement(rankKey string) {
	StreakIncrementsTotal.WithLabelValues(rankKey).Inc()
}

// RecordBreaks учитывает оборванные стрики.
func RecordBreaks(n int) {
	StreakBreaksTotal.Add(float64(n))
}

// RecordModeration учитывает действие администратора.
func RecordModeration(action string) {
	ModerationActionsTotal.WithLabelValues(action).Inc()
}

// RecordIconSelection учитывает попытку выбора значка.
func RecordIconSelection(status string) {
	IconSelectionsTotal.WithLabelValues(status).Inc()
}

// RecordPremiumExpired учитывает выключенные премиумы.
func RecordPremiumExpired(n int) {
	PremiumExpiredTotal.Add(float64(n))
}

// RecordSweep учитывает запуск ночного прохода.
func RecordSweep(pass string, started time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	SweepRunsTotal.WithLabelValues(pass, status).Inc()
	SweepDurationSeconds.WithLabelValues(pass).Observe(time.Since(started).Seconds())
	SweepLastRunTimestamp.WithLabelValues(pass).Set(float64(time.Now().Unix()))
}

// RecordNotificationFailed учитывает недоставленное уведомление.
func RecordNotificationFailed(kind string) {
	NotificationsFailedTotal.WithLabelValues(kind).Inc()
}

// RecordCommand учитывает команду: status = ok, denied, limited, unknown.
func RecordCommand(command, status string) {
	CommandsTotal.WithLabelValues(command, status).Inc()
}

// RecordPanic учитывает перехваченную панику.
func RecordPanic(where string) {
	PanicsTotal.WithLabelValues(where).Inc()
}
