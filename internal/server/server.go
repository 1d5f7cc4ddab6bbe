// Package server wires the HTTP surface: middleware chain, routes and handlers.
package server

import (
	"context"
	"fmt"
	"log"
	"time"

	"chif/internal/access"
	"chif/internal/cache"
	"chif/internal/config"
	"chif/internal/database"
	"chif/internal/featureflags"
	"chif/internal/middleware"
	"chif/internal/models"
	"chif/internal/repository"
	"chif/internal/service"
	"chif/internal/tenant"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
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
	registry       *tenant.Registry
	policy         access.Policy
	featureFlags   *featureflags.Manager
	siteRepo       repository.SiteRepository
	branchService  *service.BranchService
	contentService *service.ContentService
}

// NewServer creates a new server instance with all dependencies. The schema
// is applied first because the registry may be read from the sites table.
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	if err := database.ApplySchema(context.Background(), db, cfg); err != nil {
		return nil, fmt.Errorf("schema: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)

	return NewServerWithDeps(cfg, db, cache.GetClient())
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// The tenant registry is built here, once, and shared read-only by every
// request afterwards.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	flags := featureflags.NewManager(cfg.FeatureFlags)
	queryTimeout := time.Duration(cfg.DBQueryTimeoutSeconds) * time.Second

	server := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("chif-api"),
		policy:         policyFromConfig(cfg),
		featureFlags:   flags,
		siteRepo:       repository.NewSiteRepository(db),
	}
	server.branchService = service.NewBranchService(
		repository.NewBranchRepository(db),
		redisClient,
		flags,
		service.BranchServiceConfig{
			CacheTTL:     time.Duration(cfg.BranchCacheTTLSeconds) * time.Second,
			QueryTimeout: queryTimeout,
		},
	)
	server.contentService = service.NewContentService(repository.NewContentRepository(db), queryTimeout)

	registry, err := server.loadRegistry(context.Background())
	if err != nil {
		return nil, fmt.Errorf("tenant registry: %w", err)
	}
	server.registry = registry

	return server, nil
}

// loadRegistry reads the tenant table from the sites table when configured
// (or flagged) to, otherwise from SITES_FILE.
func (s *Server) loadRegistry(ctx context.Context) (*tenant.Registry, error) {
	if s.config.SiteRegistrySource == "database" || s.featureFlags.On(featureflags.DBSiteRegistry) {
		sites, err := s.siteRepo.List(ctx)
		if err != nil {
			return nil, err
		}
		return tenant.FromSites(sites)
	}
	return tenant.LoadFile(s.config.SitesFile)
}

func policyFromConfig(cfg *config.Config) access.Policy {
	p := access.DefaultPolicy()
	if cfg.AdminPrefix != "" {
		p.AdminPrefix = cfg.AdminPrefix
	}
	if prefixes := cfg.ContentPrefixList(); len(prefixes) > 0 {
		p.ContentPrefixes = prefixes
	}
	if cfg.SignInPath != "" {
		p.SignInPath = cfg.SignInPath
	}
	if cfg.MutationDetection != "" {
		p.Mutation = access.MutationMode(cfg.MutationDetection)
	}
	return p
}

// Registry returns the tenant registry the server resolves hosts against.
func (s *Server) Registry() *tenant.Registry {
	return s.registry
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())

	// Tracing before ContextMiddleware so the trace id reaches log records.
	app.Use(middleware.TracingMiddleware())
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())

	// CORS runs before anything that can short-circuit so error responses
	// still carry CORS headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:3000,http://127.0.0.1:3000"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Viewer-Timezone",
		ExposeHeaders:    "X-Site-Name, X-Site-Title-Header, X-Site-Title-Subheader, X-Site-Description, X-Site-Logo, X-Trace-ID",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions || middleware.IsStaticPath(c.Path())
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

	// Tenant, then identity, then the gate that needs both.
	app.Use(middleware.ResolveSite(s.registry))
	app.Use(middleware.Session(middleware.SessionConfig{
		Secret:     s.config.JWTSecret,
		CookieName: s.config.SessionCookie,
	}))
	app.Use(middleware.AccessGate(s.policy))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	api := app.Group("/api")
	api.Get("/metrics/dashboard", monitor.New(monitor.Config{
		Title: "CHIF Metrics Dashboard",
	}))

	api.Get("/site", s.GetSite)
	api.Get("/feature-flags", s.GetFeatureFlags)
	api.Get("/events", s.GetUpcomingEvents)
	api.Get("/sermons", s.GetSermons)

	branchWrites := middleware.RateLimit(s.redis, 30, time.Minute, "branch_write")
	branches := api.Group("/branches")
	branches.Get("/", s.GetBranches)
	branches.Post("/create", branchWrites, s.CreateBranch)
	branches.Put("/update/:id", branchWrites, s.UpdateBranch)
	branches.Delete("/delete/:id", branchWrites, s.DeleteBranch)
	branches.Get("/:id", s.GetBranch)

	// The access gate has already required an ADMIN session for this prefix.
	admin := app.Group(s.policy.AdminPrefix)
	admin.Get("/branches", s.AdminListBranches)
	admin.Get("/branches/:id", s.AdminGetBranch)
	admin.Get("/sites", s.AdminListSites)
}

// NewApp builds a fully wired fiber app without listening.
func (s *Server) NewApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName: "CHIF API",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if fe, ok := err.(*fiber.Error); ok {
				return models.RespondWithError(c, fe.Code, models.NewValidationError(fe.Message))
			}
			middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", "error", err.Error())
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		},
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	if err := database.Ping(ctx, s.db); err != nil {
		dbStatus = "unhealthy"
	}

	// Redis only backs the branch cache and rate limits; reads degrade to
	// the database without it.
	redisStatus := "healthy"
	if s.redis == nil {
		redisStatus = "unavailable"
	} else if err := s.redis.Ping(ctx).Err(); err != nil {
		redisStatus = "unhealthy"
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus != "healthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	} else if redisStatus != "healthy" {
		overallStatus = "degraded"
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

// Start starts the server
func (s *Server) Start() error {
	s.app = s.NewApp()
	log.Printf("Server starting on port %s...", s.config.Port)
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			log.Printf("error shutting down HTTP server: %v", err)
		}
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			log.Printf("error closing sql DB: %v", cerr)
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
