package main

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/jgirmay/pyguide/internal/common/middleware"
	contenthandlers "github.com/jgirmay/pyguide/internal/content/handlers"
	contentrepo "github.com/jgirmay/pyguide/internal/content/repository"
	contentservices "github.com/jgirmay/pyguide/internal/content/services"
	identityhandlers "github.com/jgirmay/pyguide/internal/identity/handlers"
	identityrepo "github.com/jgirmay/pyguide/internal/identity/repository"
	identityservices "github.com/jgirmay/pyguide/internal/identity/services"
	learninghandlers "github.com/jgirmay/pyguide/internal/learning/handlers"
	"github.com/jgirmay/pyguide/internal/learning/practice"
	learningservices "github.com/jgirmay/pyguide/internal/learning/services"
	"github.com/jgirmay/pyguide/internal/metrics"
	"github.com/jgirmay/pyguide/internal/realtime"
	"github.com/jgirmay/pyguide/pkg/config"
)

type app struct {
	router  *gin.Engine
	lessons *learningservices.LessonService
}

// buildApp wires services and mounts the /api/v1 routes.
func buildApp(cfg *config.Config, db *gorm.DB, bus realtime.Bus, hub *realtime.Hub, m *metrics.Metrics, lg *zap.Logger) *app {
	users := identityrepo.NewUserRepository(db)
	tokens := identityservices.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, cfg.Auth.Issuer)
	auth := identityservices.NewAuthService(users, tokens, bus, lg)
	roles := identityservices.NewRoleService(users, bus, lg)

	catalog := contentservices.NewCatalogService(contentrepo.NewContentRepository(db), bus, lg)

	policy := cfg.Learning
	store := learningservices.NewStore(db)
	lessons := learningservices.NewLessonService(store, catalog, bus, m, policy, lg)
	practiceSvc := learningservices.NewPracticeService(store, catalog, practice.NewSelector(policy.PracticeSize, nil), m, lg)
	leaderboard := learningservices.NewLeaderboardService(store, m, policy, lg)
	stats := learningservices.NewStatsService(store, catalog, practiceSvc)

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.LoggerMiddleware(lg))
	router.Use(middleware.CORS(cfg.Server.AllowedOrigins))
	router.Use(m.GinMiddleware())

	v1 := router.Group("/api/v1")
	protected := v1.Group("")
	protected.Use(middleware.AuthRequired(tokens))
	admin := protected.Group("/admin")
	admin.Use(middleware.AdminRequired(roles))

	identityhandlers.NewAuthHandler(auth).RegisterRoutes(v1, protected)
	identityhandlers.NewAdminUserHandler(roles).RegisterRoutes(admin)
	contenthandlers.NewCatalogHandler(catalog, roles).RegisterRoutes(protected, admin)
	learninghandlers.NewLearningHandler(lessons, practiceSvc, leaderboard, stats).RegisterRoutes(protected)

	// Browsers cannot set headers on the upgrade request, so the token rides in ?token=.
	protected.GET("/ws", func(c *gin.Context) {
		userID, _ := middleware.UserID(c)
		if err := hub.ServeWS(c.Writer, c.Request, userID); err != nil {
			lg.Warn("websocket upgrade failed", zap.String("user_id", userID), zap.Error(err))
		}
	})

	return &app{router: router, lessons: lessons}
}
