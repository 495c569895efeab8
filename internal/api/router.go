package api

import (
	"context"
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/planpal/social-system/internal/api/handler"
	"github.com/planpal/social-system/internal/api/middleware"
	"github.com/planpal/social-system/internal/core/service"
	"github.com/planpal/social-system/internal/infrastructure/identity"
	"github.com/planpal/social-system/internal/pkg/config"

	mongodb "github.com/planpal/social-system/internal/infrastructure/db/mongo"
	redisdb "github.com/planpal/social-system/internal/infrastructure/db/redis"
	"github.com/planpal/social-system/internal/infrastructure/queue"
)

// NewRouter wires repositories, services, and handlers, and returns the Echo
// instance with all routes registered. The repair workers run until ctx is
// cancelled.
func NewRouter(ctx context.Context, db *mongo.Database, rdb *redis.Client, cfg *config.Config, log zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = NewHTTPErrorHandler(log)
	e.Validator = handler.NewValidator()

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(echomiddleware.Logger())
	e.Use(echoprometheus.NewMiddleware("social"))

	// --- Dependencies ---
	profileRepo := mongodb.NewProfileRepository(db)
	identityRepo := mongodb.NewIdentityRepository(db)
	usernameCache := redisdb.NewUsernameCache(rdb)

	provider := identity.NewProvider(identityRepo, cfg.MinPasswordEntropy, log)
	tokens := identity.NewTokenIssuer(cfg.JWTSecret, 24*time.Hour)

	repairer := queue.NewRepairer(cfg.RepairWorkers, profileRepo, log)
	repairer.Start(ctx)

	sessionService := service.NewSessionService(provider, profileRepo, usernameCache, log)
	socialService := service.NewSocialService(profileRepo, usernameCache, repairer, log)

	sessionHandler := handler.NewSessionHandler(sessionService, tokens)
	socialHandler := handler.NewSocialHandler(socialService)

	auth := middleware.Auth(cfg.JWTSecret)
	admin := middleware.AdminKey(cfg.AdminKey)

	// --- Session routes ---
	e.POST("/auth/signup", sessionHandler.SignUp)
	e.POST("/auth/signin", sessionHandler.SignIn)
	e.POST("/auth/signout", sessionHandler.SignOut, auth)
	e.POST("/auth/password", sessionHandler.ChangePassword, auth)
	e.GET("/session", sessionHandler.Current, auth)
	e.GET("/profile", sessionHandler.Profile, auth)
	e.PATCH("/profile", sessionHandler.UpdateProfile, auth)

	// --- Social routes ---
	e.GET("/users", socialHandler.FindUser, auth)
	e.GET("/friends", socialHandler.ListFriends, auth)
	e.POST("/friends", socialHandler.AddFriend, auth)
	e.DELETE("/friends/:id", socialHandler.RemoveFriend, auth)

	// --- Operational routes ---
	e.POST("/admin/reconcile", socialHandler.Reconcile, admin)
	e.GET("/metrics", echoprometheus.NewHandler())

	// --- Health probes (no auth required) ---
	healthHandler := handler.NewHealthHandler()
	readinessHandler := handler.NewReadinessHandler(db, rdb)

	e.GET("/health", healthHandler.Liveness)          // liveness  – is the process alive?
	e.GET("/health/ready", readinessHandler.Readiness) // readiness – are dependencies up?

	return e
}
