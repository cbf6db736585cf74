// internal/app/server.go
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"buzz-client/internal/authapi"
	"buzz-client/internal/authctx"
	"buzz-client/internal/config"
	"buzz-client/internal/database"
	"buzz-client/internal/db"
	wstypes "buzz-client/internal/domain/websocket"
	adminHandler "buzz-client/internal/handlers/admin"
	authHandler "buzz-client/internal/handlers/auth"
	pageHandler "buzz-client/internal/handlers/page"
	profileHandler "buzz-client/internal/handlers/profile"
	wsHandler "buzz-client/internal/handlers/websocket"
	"buzz-client/internal/metrics"
	"buzz-client/internal/middleware"
	"buzz-client/internal/pkg/jwt"
	"buzz-client/internal/profile"
	"buzz-client/internal/realtime"
	"buzz-client/internal/recovery"
	"buzz-client/internal/repository/postgres"
	"buzz-client/internal/router"
	"buzz-client/internal/session"
	"buzz-client/internal/websocket"
	wsHandlers "buzz-client/internal/websocket/handler"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

type Server struct {
	cfg     config.AppConfig
	logger  *zap.Logger
	migrate bool
}

// NewServer builds a shell. With migrate set, pending profile migrations run before anything
// else starts.
func NewServer(cfg config.AppConfig, logger *zap.Logger, migrate bool) *Server {
	return &Server{cfg: cfg, logger: logger, migrate: migrate}
}

// Start runs the shell until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	logger := s.logger

	// ----- PostgreSQL -----
	if s.migrate {
		if err := database.RunMigrations(s.cfg.DatabaseURL); err != nil {
			return fmt.Errorf("failed to migrate profile store: %w", err)
		}
	}
	pool, err := db.ConnectDB(ctx, db.PostgresConfig{URL: s.cfg.DatabaseURL, MaxConns: 10})
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	defer pool.Close()
	logger.Info("connected to postgres")

	// ----- Redis -----
	redisClient, err := db.NewRedisClient(db.RedisConfig{
		Addr:     s.cfg.RedisAddr,
		Password: s.cfg.RedisPass,
		PoolSize: 10,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	defer redisClient.Close()
	logger.Info("connected to redis", zap.String("addr", s.cfg.RedisAddr))

	// ----- Metrics -----
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(registry)

	// ----- Core -----
	authClient := authapi.NewClient(s.cfg.AuthURL, s.cfg.AuthAnonKey, s.cfg.HTTPTimeout, logger.Named("authapi"))
	limiter := session.NewRateLimiter(redisClient, session.Limits{
		SignInAttempts: s.cfg.SignInAttempts,
		SignInWindow:   s.cfg.SignInWindow,
		ResetAttempts:  s.cfg.ResetAttempts,
		ResetWindow:    s.cfg.ResetWindow,
	})
	store := session.NewStore(authClient, limiter, collector, logger.Named("session"), session.Options{
		RedirectTo:    s.cfg.RecoveryRedirectURL,
		RefreshMargin: s.cfg.RefreshMargin,
		CallTimeout:   s.cfg.HTTPTimeout,
	})
	defer store.Close()

	resolver := profile.NewResolver(postgres.NewProfileRepository(pool), collector, logger.Named("profile"))
	authCtx := authctx.New(store, resolver, collector, logger.Named("authctx"))
	defer authCtx.Close()

	views := router.New(logger.Named("router"))
	navigator := router.NewNavigator(views, authCtx, collector)

	tokens := jwt.NewVerifier(s.cfg.AuthJWTSecret, s.cfg.AuthAudience)
	if !tokens.Verifies() {
		logger.Warn("AUTH_JWT_SECRET not set, recovery tokens are decoded without signature checks")
	}
	validator := recovery.NewValidator(tokens, recovery.NewRedisLedger(redisClient, ""), logger.Named("recovery"))

	// ----- WebSocket Hub -----
	hub := websocket.NewHub(logger.Named("hub"))
	hub.RegisterHandler(wsHandlers.NewStateHandler(authCtx, navigator, logger.Named("ws")))
	hub.OnConnect(func() []*wstypes.WSMessage {
		return []*wstypes.WSMessage{
			wsHandlers.AuthStateMessage(authCtx.Snapshot()),
			wsHandlers.PageStateMessage(navigator.Current()),
		}
	})

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go hub.Run(runCtx)

	feed := realtime.New(s.cfg.RealtimeURL, s.cfg.AuthAnonKey, authCtx, logger.Named("realtime"))

	// ----- State fan-out -----
	views.OnChange(func(state router.State) {
		hub.Publish(wstypes.ChannelPage, wsHandlers.PageStateMessage(navigator.Decide(state)))
	})
	unsubscribe := authCtx.Subscribe(func(v authctx.Value) {
		views.Reconcile(v)
		hub.Publish(wstypes.ChannelAuth, wsHandlers.AuthStateMessage(v))
		hub.Publish(wstypes.ChannelPage, wsHandlers.PageStateMessage(navigator.Current()))
		feed.Notify(v)
	})
	defer unsubscribe()

	authCtx.Start(runCtx)
	s.mountRecovery(runCtx, views, validator, authCtx, hub)

	feedDone := make(chan struct{})
	go func() {
		defer close(feedDone)
		feed.Run(runCtx)
	}()

	// ----- Handlers -----
	authMiddleware := middleware.NewAuthMiddleware(authCtx)
	handlers := &Handlers{
		AuthHandler:    authHandler.NewAuthHandler(authCtx, validator, navigator, logger.Named("auth")),
		PageHandler:    pageHandler.NewPageHandler(navigator),
		ProfileHandler: profileHandler.NewProfileHandler(authCtx, logger.Named("profile")),
		AdminHandler:   adminHandler.NewAdminHandler(resolver, logger.Named("admin")),
		WSHandler:      wsHandler.NewWebSocketHandler(hub, s.cfg.AllowedOrigins, logger.Named("ws")),
		AuthMiddleware: authMiddleware,
		Metrics:        metrics.Handler(registry),
	}

	engine := gin.New()
	engine.Use(
		middleware.RecoveryMiddleware(logger),
		middleware.RequestLogger(logger.Named("http")),
	)
	SetupRouter(engine, handlers)

	// ----- Start HTTP -----
	srv := &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("shell listening", zap.String("addr", s.cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	logger.Info("shutting down")
	shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
	defer done()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	cancel()
	<-feedDone
	return nil
}

// mountRecovery runs the one-time recovery-link check for the location the app was opened with.
// Only a validated link opens a recovery session; a rejected one is reported to the UI.
func (s *Server) mountRecovery(ctx context.Context, views *router.Router, validator *recovery.Validator, authCtx *authctx.Context, hub *websocket.Hub) {
	if !views.Mount(s.cfg.AppLocation) {
		return
	}

	ident, err := validator.Validate(ctx, s.cfg.AppLocation)
	if err != nil {
		s.logger.Warn("recovery link rejected at startup", zap.Error(err))
		hub.Publish(wstypes.ChannelSystem, wstypes.NewMessage(wstypes.EventTypeError, wstypes.ErrorData{
			Code:    "recovery_rejected",
			Message: "This password reset link is invalid or has expired",
			Details: err.Error(),
		}))
		return
	}

	if err := authCtx.BeginRecovery(ident); err != nil {
		s.logger.Error("failed to start recovery session", zap.Error(err))
	}
}
