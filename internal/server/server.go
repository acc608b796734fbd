// Package server contains the HTTP handlers for the moderation engine's API endpoints.
package server

import (
	"context"
	"log"
	"log/slog"
	"time"

	_ "warden/docs" // swagger docs
	"warden/internal/bootstrap"
	"warden/internal/config"
	"warden/internal/featureflags"
	"warden/internal/middleware"
	"warden/internal/models"
	"warden/internal/notifications"
	"warden/internal/restrictions"
	"warden/internal/service"
	"warden/internal/streams"
	"warden/internal/trust"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc
	cases          *service.CaseService
	pipeline       *service.Pipeline
	restrictions   *restrictions.Ledger
	reputation     *trust.ReputationService
	trust          trust.Ledger
	notifier       *notifications.Notifier
	streams        streams.Publisher
	featureFlags   *featureflags.Manager
}

// NewServer creates a server over an already wired engine.
func NewServer(e *bootstrap.Engine) *Server {
	return &Server{
		config:         e.Config,
		db:             e.DB,
		redis:          e.Redis,
		promMiddleware: middleware.InitMetrics("warden-api"),
		cases:          e.Cases,
		pipeline:       e.Pipeline,
		restrictions:   e.Restrictions,
		reputation:     e.Reputation,
		trust:          e.Trust,
		notifier:       e.Notifier,
		streams:        e.Streams,
		featureFlags:   e.Flags,
	}
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())

	// Propagates request and actor ids into the user context for logging
	app.Use(middleware.ContextMiddleware())
	app.Use(middleware.TracingMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())

	// CORS runs before the limiter so rejected requests still carry CORS headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	app.Use(limiter.New(limiter.Config{
		Max:        300,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}
	app.Get("/swagger/*", swagger.HandlerDefault)

	api := app.Group("/api", middleware.AuthRequired)
	moderators := middleware.RequireRole(middleware.RoleModerator, middleware.RoleAdmin)

	// Content-domain ingestion
	api.Post("/events", middleware.RequireRole(middleware.RoleService, middleware.RoleAdmin), s.IngestEvent)

	// Any authenticated user. Registered before the moderator groups so
	// their prefix middleware never sees these routes.
	limiter := middleware.NewRateLimiter(s.redis, s.config.Env)
	api.Post("/reports", limiter.Handler(middleware.ReportLimit), s.SubmitReport)
	api.Post("/cases/:id/appeals", limiter.Handler(middleware.AppealLimit), s.SubmitAppeal)
	api.Get("/notifications", s.GetNotifications)

	// Case workflow
	cases := api.Group("/cases", moderators)
	cases.Get("/", s.ListCases)
	cases.Get("/:id/audit", s.GetCaseAudit)
	cases.Post("/:id/assign", s.AssignCase)
	cases.Post("/:id/escalate", s.EscalateCase)
	cases.Post("/:id/dismiss", s.DismissCase)
	cases.Post("/:id/actions", s.PerformCaseAction)
	cases.Get("/:id", s.GetCase)

	appeals := api.Group("/appeals", moderators)
	appeals.Post("/:id/resolve", s.ResolveAppeal)

	// Restrictions and reputation
	restr := api.Group("/restrictions", moderators)
	restr.Post("/", s.CreateRestriction)
	restr.Delete("/:id", s.RevokeRestriction)
	restr.Get("/:userID/:scope", s.GetRestrictionFlags)
	restr.Get("/:userID", s.ListRestrictions)

	api.Get("/reputation/:userID", moderators, s.GetReputation)

	admin := api.Group("/admin", middleware.RequireRole(middleware.RoleAdmin))
	admin.Get("/feature-flags", s.GetFeatureFlags)
}

// LivenessCheck reports that the process is up
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck reports whether dependencies are reachable
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	if s.db == nil {
		dbStatus = "unavailable"
	} else if sqlDB, err := s.db.DB(); err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "healthy"
	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	} else {
		// Flags, streams and notifications all live in Redis
		redisStatus = "unavailable"
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus != "healthy" || redisStatus != "healthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// App builds the Fiber app with middleware and routes on first use.
func (s *Server) App() *fiber.App {
	if s.app != nil {
		return s.app
	}
	app := fiber.New(fiber.Config{
		AppName: "warden moderation API",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if fe, ok := err.(*fiber.Error); ok {
				return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
			}
			middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", slog.String("error", err.Error()))
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		},
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	s.app = app
	return app
}

// Start starts the server
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	app := s.App()

	if s.notifier != nil {
		err := s.notifier.StartPatternSubscriber(s.shutdownCtx, func(channel, _ string) {
			middleware.Logger.Debug("notification delivered", slog.String("channel", channel))
		})
		if err != nil {
			log.Printf("failed to start notification subscriber: %v", err)
		}
	}

	log.Printf("Server starting on port %s...", s.config.Port)
	return app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			log.Printf("error shutting down HTTP server: %v", err)
		}
	}

	if s.db != nil {
		if sqlDB, err := s.db.DB(); err == nil {
			if cerr := sqlDB.Close(); cerr != nil {
				log.Printf("error closing sql DB: %v", cerr)
			}
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			log.Printf("error closing redis: %v", rerr)
		}
	}

	log.Println("Server shutdown complete")
	return nil
}
