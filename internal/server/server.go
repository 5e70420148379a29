package server

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"circles/internal/bootstrap"
	"circles/internal/config"
	"circles/internal/database"
	"circles/internal/middleware"
	"circles/internal/models"
	"circles/internal/notifications"
	"circles/internal/repository"
	"circles/internal/service"
	"circles/internal/storage"

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

const serviceName = "circles-api"

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc

	tokens      *middleware.TokenManager
	rateLimiter *middleware.RateLimiter
	blobs       storage.BlobStore
	notifier    *notifications.Notifier
	hub         *notifications.Hub

	authService       *service.AuthService
	userService       *service.UserService
	connectionService *service.ConnectionService
	postService       *service.PostService
	commentService    *service.CommentService
}

// NewServer connects to the database and Redis named by cfg and builds a
// Server on top of them.
func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	db, redisClient, err := bootstrap.InitRuntime(ctx, cfg, bootstrap.Options{
		ApplySchema: true,
		SeedDemo:    cfg.SeedDemo,
	})
	if err != nil {
		return nil, err
	}

	blobs, err := storage.NewDiskStore(cfg.UploadDir, cfg.UploadBaseURL)
	if err != nil {
		return nil, fmt.Errorf("upload store: %w", err)
	}

	return NewServerWithDeps(cfg, db, redisClient, blobs)
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// redisClient and blobs may be nil: revocation, websocket tickets and
// cross-instance events then degrade, and uploads are refused.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, blobs storage.BlobStore) (*Server, error) {
	if cfg == nil || db == nil {
		return nil, fmt.Errorf("config and database are required")
	}

	ttl := time.Duration(cfg.TokenTTLHours) * time.Hour
	tokens := middleware.NewTokenManager(cfg.JWTSecret, ttl, redisClient)

	userRepo := repository.NewUserRepository(db)
	followRepo := repository.NewFollowRepository(db)
	requestRepo := repository.NewRequestRepository(db)
	postRepo := repository.NewPostRepository(db)
	commentRepo := repository.NewCommentRepository(db)

	var images service.ImageStore
	if blobs != nil {
		images = service.NewMediaService(blobs, cfg)
	}

	s := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics(serviceName),
		tokens:         tokens,
		rateLimiter:    middleware.NewRateLimiter(redisClient, cfg.Env),
		blobs:          blobs,
		notifier:       notifications.NewNotifier(redisClient),
		hub:            notifications.NewHub(),

		authService:       service.NewAuthService(userRepo, tokens),
		userService:       service.NewUserService(userRepo, followRepo, requestRepo, images),
		connectionService: service.NewConnectionService(db),
		postService:       service.NewPostService(postRepo, images),
		commentService:    service.NewCommentService(commentRepo, postRepo),
	}
	s.shutdownCtx, s.shutdownFn = context.WithCancel(context.Background())
	return s, nil
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())

	// Propagates request and user ids into the request context for logging.
	app.Use(middleware.ContextMiddleware())
	if s.config.TracingEnabled {
		app.Use(middleware.TracingMiddleware())
	}

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New(helmet.Config{
		// Uploaded images are embedded by the web client from another origin.
		CrossOriginResourcePolicy: "cross-origin",
	}))
	app.Use(middleware.StructuredLogger())

	// CORS middleware should run before middlewares that can short-circuit (e.g. limiter)
	// so browser clients still receive CORS headers on error responses.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: !strings.Contains(origins, "*"),
		MaxAge:           86400,
	}))

	// Global rate limiting (100 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions || s.config.Env == "test"
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

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	if s.config.UploadBaseURL != "" && s.config.UploadDir != "" && strings.HasPrefix(s.config.UploadBaseURL, "/") {
		app.Static(s.config.UploadBaseURL, s.config.UploadDir, fiber.Static{
			MaxAge: 86400,
		})
	}

	api := app.Group("/api")
	api.Get("/metrics/dashboard", monitor.New(monitor.Config{
		Title: "Circles Backend Metrics Dashboard",
	}))

	auth := api.Group("/auth")
	auth.Post("/signup", s.rateLimiter.Limit("signup", 3, 10*time.Minute), s.Signup)
	auth.Post("/login/local", s.rateLimiter.Limit("login", 10, 5*time.Minute), s.LoginLocal)
	auth.Post("/login/google", s.rateLimiter.Limit("login", 10, 5*time.Minute), s.LoginGoogle)
	auth.Post("/logout", s.tokens.AuthRequired(), s.Logout)

	protected := api.Group("", s.tokens.AuthRequired())

	protected.Get("/profile", s.GetMyProfile)
	protected.Put("/profile", s.UpdateMyProfile)
	protected.Post("/profile/avatar", s.rateLimiter.Limit("avatar", 10, time.Hour), s.UploadAvatar)

	users := protected.Group("/users")
	users.Get("/", s.rateLimiter.Limit("search", 30, time.Minute), s.SearchUsers)
	users.Get("/:id", s.GetUserProfile)

	requests := protected.Group("/requests")
	requests.Get("/", s.GetRequests)
	requests.Post("/", s.rateLimiter.Limit("follow_request", 20, 5*time.Minute), s.SendRequest)
	requests.Put("/", s.ResolveRequest)
	// Specific /category route before generic /:id
	requests.Delete("/category/:status", s.DeleteRequestsByCategory)
	requests.Delete("/:id", s.DeleteRequest)

	followers := protected.Group("/followers")
	followers.Get("/", s.GetFollowers)
	followers.Post("/", s.AcceptRequest)
	followers.Post("/:id/follow-back", s.FollowBack)
	followers.Delete("/:id", s.RemoveFollower)

	following := protected.Group("/following")
	following.Get("/", s.GetFollowing)
	following.Delete("/:id", s.Unfollow)

	posts := protected.Group("/posts")
	posts.Get("/", s.GetMyPosts)
	posts.Get("/feed", s.GetFeed)
	posts.Get("/liked", s.GetLikedPosts)
	posts.Get("/followers", s.GetFollowersPosts)
	posts.Get("/following", s.GetFollowingPosts)
	posts.Post("/", s.rateLimiter.Limit("create_post", 10, 5*time.Minute), s.CreatePost)
	posts.Put("/:id/like", s.LikePost)
	posts.Delete("/:id/like", s.UnlikePost)
	posts.Get("/:id/comments", s.GetComments)
	posts.Post("/:id/comments", s.rateLimiter.Limit("create_comment", 10, time.Minute), s.CreateComment)

	api.Post("/ws/ticket", s.tokens.AuthRequired(), s.IssueWSTicket)
	ws := api.Group("/ws", s.tokens.AuthRequired())
	ws.Get("/", s.WebsocketHandler())
}

// App builds a Fiber app with middleware and routes installed.
func (s *Server) App() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:   "Circles API",
		BodyLimit: s.bodyLimit(),
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
	return app
}

// bodyLimit leaves room for multipart overhead on top of the image limit.
func (s *Server) bodyLimit() int {
	mb := s.config.ImageMaxUploadSizeMB
	if mb <= 0 {
		mb = service.DefaultImageMaxUploadSizeMB
	}
	return (mb + 1) * 1024 * 1024
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

	// Redis only backs revocation, tickets and fan-out, so its absence
	// does not fail readiness.
	redisStatus := "unavailable"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
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

// Start wires the event hub to Redis and listens on the configured port.
func (s *Server) Start() error {
	s.app = s.App()

	if s.notifier.Enabled() {
		if err := s.hub.StartWiring(s.shutdownCtx, s.notifier); err != nil {
			middleware.Logger.Error("failed to start event wiring",
				slog.String("hub", s.hub.Name()), slog.String("error", err.Error()))
		}
	}

	middleware.Logger.Info("server starting", slog.String("port", s.config.Port))
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	// Stops the Redis subscriber goroutine.
	s.shutdownFn()

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	if err := s.hub.Shutdown(ctx); err != nil {
		middleware.Logger.Error("error shutting down hub", slog.String("error", err.Error()))
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			middleware.Logger.Error("error closing sql DB", slog.String("error", cerr.Error()))
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			middleware.Logger.Error("error closing redis", slog.String("error", rerr.Error()))
		}
	}

	middleware.Logger.Info("server shutdown complete")
	return nil
}
