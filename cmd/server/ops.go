package main

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"gorm.io/gorm"

	"github.com/jgirmay/pyguide/internal/common/handlers"
	"github.com/jgirmay/pyguide/internal/common/health"
	"github.com/jgirmay/pyguide/internal/metrics"
	"github.com/jgirmay/pyguide/internal/realtime"
)

// opsRouter serves health probes and the prometheus scrape endpoint on their own port.
func opsRouter(db *gorm.DB, redisBus *realtime.RedisBus, m *metrics.Metrics) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	checker := health.NewHealthChecker(db, version)
	if redisBus != nil {
		checker.Register("redis", redisBus.Ping)
	}
	handlers.NewHealthHandler(checker).RegisterRoutes(r)
	r.Handle("/metrics", m.Handler())

	return r
}
