package middleware

import (
	"fmt"
	"runtime/debug"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/streak-bot/internal/metrics"
)

// RecoverFromPanic вызывается через defer в горутине обработчика.
// where попадает в лог и в метрику паник.
func RecoverFromPanic(where string) {
	if r := recover(); r != nil {
		metrics.RecordPanic(where)
		log.WithFields(log.Fields{
			"component": "panic_recovery",
			"where":     where,
			"panic":     fmt.Sprintf("%v", r),
			"stack":     string(debug.Stack()),
		}).Error("ПАНИКА в обработчике — восстановлено")
	}
}
