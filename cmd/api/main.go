package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/veloraid/velora/velora-backend/internal/config"
	"github.com/veloraid/velora/velora-backend/internal/handler"
	"github.com/veloraid/velora/velora-backend/internal/middleware"
	"github.com/veloraid/velora/velora-backend/internal/repository/postgres"
	"github.com/veloraid/velora/velora-backend/internal/repository/storage"
	"github.com/veloraid/velora/velora-backend/internal/service"
	"github.com/veloraid/velora/velora-backend/internal/websocket"
)

func main() {
	// Initialize zerolog
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if os.Getenv("ENV") != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Connect to database
	pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pool.Close()

	// Verify database connection
	if err := pool.Ping(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Failed to ping database")
	}
	log.Info().Msg("Connected to database")

	// Initialize repositories
	appRepo := postgres.NewApplicationRepository(pool)

	// Document storage is optional; the API runs without uploads when S3 is
	// not configured
	var documentService *service.DocumentService
	if cfg.S3.Bucket != "" && cfg.S3.AccessKeyID != "" {
		docRepo, err := storage.NewS3DocumentRepository(context.Background(), cfg.S3)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize document storage")
		}
		documentService = service.NewDocumentService(docRepo)
		log.Info().Str("bucket", cfg.S3.Bucket).Msg("Document storage enabled")
	} else {
		documentService = service.NewDocumentService(nil)
		log.Warn().Msg("Document storage not configured, proof uploads disabled")
	}

	// Settlement policy from environment
	policy := service.ParseSettlementPolicy(cfg.SettlementPolicy)
	log.Info().Int("rules", len(policy.Rules)).Msg("Settlement policy loaded")

	// Initialize services
	applicationService := service.NewApplicationService(
		appRepo,
		service.NewScheduleService(),
		service.NewOwnershipService(),
		service.NewAggregationService(),
		service.NewSettlementService(),
		policy,
	)

	// WebSocket hub for real-time schedule events
	hub := websocket.NewHub()
	applicationService.SetEventPublisher(hub)

	wsValidator, err := websocket.NewAuth0JWTValidator(cfg.Auth0Domain, cfg.Auth0Audience)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create websocket JWT validator")
	}

	// Initialize auth middleware
	authMiddleware, err := middleware.NewAuthMiddleware(cfg.Auth0Domain, cfg.Auth0Audience)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create auth middleware")
	}

	// Per-IP rate limiter
	rateLimiter := middleware.NewRateLimiter()
	defer rateLimiter.Stop()

	// Initialize handlers
	applicationHandler := handler.NewApplicationHandler(applicationService)
	scheduleHandler := handler.NewScheduleHandler(applicationService, applicationHandler)
	settlementHandler := handler.NewSettlementHandler(applicationService, applicationHandler)
	documentHandler := handler.NewDocumentHandler(documentService, applicationHandler)
	webSocketHandler := handler.NewWebSocketHandler(hub, wsValidator, applicationService, cfg.CORSOrigins)

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Request ID middleware
	e.Use(echomiddleware.RequestID())

	// CORS middleware
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Security headers middleware (helmet-like)
	e.Use(echomiddleware.SecureWithConfig(echomiddleware.SecureConfig{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		HSTSMaxAge:            31536000,
		ContentSecurityPolicy: "default-src 'self'",
		ReferrerPolicy:        "strict-origin-when-cross-origin",
	}))

	// Request logging middleware with zerolog
	e.Use(zerologMiddleware())

	// Rate limiting middleware
	e.Use(middleware.RateLimitMiddleware(rateLimiter))

	// Recovery middleware
	e.Use(echomiddleware.Recover())

	// Health check endpoint
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	// WebSocket endpoint
	e.GET("/ws", webSocketHandler.HandleWS)

	// Register API routes
	handler.RegisterRoutes(e, authMiddleware, applicationHandler, scheduleHandler, settlementHandler, documentHandler)

	// Start server in goroutine
	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting server")
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// zerologMiddleware returns a middleware that logs requests using zerolog
func zerologMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			res := c.Response()

			log.Info().
				Str("method", req.Method).
				Str("path", req.URL.Path).
				Int("status", res.Status).
				Dur("latency", time.Since(start)).
				Str("request_id", res.Header().Get(echo.HeaderXRequestID)).
				Msg("request")

			return nil
		}
	}
}
