package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// HealthFunc проверяет готовность зависимостей (БД и т.п.).
type HealthFunc func(ctx context.Context) error

// Server отдаёт /metrics и /healthz.
type Server struct {
	srv *http.Server
}

// NewRouter собирает gin-роутер с эндпоинтами метрик и здоровья.
func NewRouter(health HealthFunc) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/healthz", func(c *gin.Context) {
		if health != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
			defer cancel()
			if err := health(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return router
}

// NewServer создаёт HTTP-сервер на addr (например ":9090").
func NewServer(addr string, health HealthFunc) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           NewRouter(health),
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Start запускает сервер в отдельной горутине.
func (s *Server) Start() {
	go func() {
		log.WithField("addr", s.srv.Addr).Info("Сервер метрик запущен")
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("Сервер метрик остановлен с ошибкой")
		}
	}()
}

// Shutdown останавливает сервер.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
