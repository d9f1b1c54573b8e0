// internal/app/server.go
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"session-service/internal/config"
	"session-service/internal/db"
	authHandler "session-service/internal/handlers/auth"
	sessionHandler "session-service/internal/handlers/session"
	wsHandler "session-service/internal/handlers/websocket"
	"session-service/internal/jobs"
	"session-service/internal/middleware"
	"session-service/internal/pkg/jwt"
	"session-service/internal/pkg/session"
	"session-service/internal/repository/postgres"
	"session-service/internal/service/audit"
	authUsecase "session-service/internal/service/auth"
	"session-service/internal/websocket"
	wsHandlers "session-service/internal/websocket/handler"
)

const (
	refreshRateLimit  = 20
	refreshRateWindow = time.Minute
)

type Server struct {
	cfg        config.AppConfig
	engine     *gin.Engine
	logger     *zap.Logger
	httpServer *http.Server

	redisClient *redis.Client
	pool        *pgxpool.Pool
	recorder    *audit.Recorder
	stop        context.CancelFunc
}

func NewServer() (*Server, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger, err := NewLogger(cfg)
	if err != nil {
		return nil, err
	}

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	return &Server{cfg: cfg, engine: gin.New(), logger: logger}, nil
}

// Logger returns the server's logger.
func (s *Server) Logger() *zap.Logger {
	return s.logger
}

// Start wires every dependency and serves HTTP until Shutdown is called.
func (s *Server) Start() error {
	ctx := context.Background()
	logger := s.logger

	// ----- Redis -----
	redisClient, err := db.NewRedisClient(ctx, s.cfg.Redis)
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	s.redisClient = redisClient
	logger.Info("connected to redis", zap.String("addr", s.cfg.Redis.Addr()), zap.Int("db", s.cfg.Redis.DB))

	// ----- Metrics -----
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// ----- JWT Manager -----
	jwtManager, err := jwt.LoadAndBuild(s.cfg.JWT())
	if err != nil {
		return fmt.Errorf("failed to load JWT manager: %w", err)
	}

	// ----- WebSocket Hub -----
	hub := websocket.NewHub(logger)
	notifiers := session.Notifiers{hub}

	// ----- Audit trail (optional) -----
	var events sessionHandler.EventLister
	var dbWrapper *postgres.DB
	if s.cfg.AuditEnabled() {
		pool, err := db.ConnectDB(ctx, s.cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
		}
		s.pool = pool
		dbWrapper = postgres.NewDB(pool)

		auditRepo := postgres.NewAuditRepository(dbWrapper)
		if err := auditRepo.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("failed to prepare audit schema: %w", err)
		}
		s.recorder = audit.NewRecorder(auditRepo, logger)
		notifiers = append(notifiers, s.recorder)
		events = auditRepo
		logger.Info("session audit trail enabled")
	}

	// ----- Session store -----
	store := session.NewStore(redisClient, logger,
		session.WithTTL(s.cfg.SessionTTL),
		session.WithStatsCache(s.cfg.StatsCacheDuration),
		session.WithNotifier(notifiers),
		session.WithMetrics(session.NewMetrics(registry)),
	)
	tokens := session.NewTokenStore(redisClient, s.cfg.RefreshTokenTTL)
	rateLimiter := session.NewRateLimiter(redisClient, refreshRateLimit, refreshRateWindow)

	hub.RegisterHandler(wsHandlers.NewStatsHandler(store))

	// ----- Background workers -----
	runCtx, stop := context.WithCancel(context.Background())
	s.stop = stop
	go hub.Run(runCtx)
	jobs.NewCleanupWorker(store, s.cfg.CleanupInterval, logger).Start(runCtx)

	// ----- Services -----
	authService := authUsecase.NewAuthService(store, tokens, jwtManager, s.cfg.RememberTTL, logger)
	if s.cfg.ServiceKey == "" {
		logger.Warn("SERVICE_API_KEY not set, session issuing is disabled")
	}

	// ----- Middlewares -----
	httpMetrics := middleware.NewHTTPMetrics(registry)
	s.engine.Use(
		middleware.RecoveryMiddleware(logger),
		middleware.LoggingMiddleware(logger),
		middleware.CORSMiddleware(),
		httpMetrics.Middleware(),
	)

	// ----- Router -----
	redisHealth := db.RedisHealthcheck(redisClient)
	handlers := &Handlers{
		SessionHandler: sessionHandler.NewSessionHandler(store, events, logger),
		AuthHandler:    authHandler.NewAuthHandler(authService, logger),
		WSHandler:      wsHandler.NewWebSocketHandler(hub, logger),
		AuthMiddleware: middleware.NewAuthMiddleware(authService),
		ServiceAuth:    middleware.ServiceAuth(s.cfg.ServiceKey),
		RefreshLimit:   middleware.RateLimitByIP(rateLimiter, "refresh", logger),
		Metrics:        promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
		Health: func(ctx context.Context) error {
			if err := redisHealth(ctx); err != nil {
				return err
			}
			if dbWrapper != nil {
				if err := dbWrapper.Ping(ctx); err != nil {
					return fmt.Errorf("postgres healthcheck failed: %w", err)
				}
			}
			return nil
		},
	}
	SetupRouter(s.engine, handlers)

	// ----- Start HTTP -----
	s.httpServer = &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	logger.Info("server listening", zap.String("addr", s.cfg.HTTPAddr), zap.String("env", s.cfg.AppEnv))

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown drains HTTP traffic, stops the workers and closes the stores.
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
	}
	if s.stop != nil {
		s.stop()
	}
	if s.recorder != nil {
		s.recorder.Close()
	}
	if s.pool != nil {
		s.pool.Close()
	}
	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close: %w", err))
		}
	}
	_ = s.logger.Sync()

	return errors.Join(errs...)
}
