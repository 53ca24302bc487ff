package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"solana-agent-wallet/internal/config"
	"solana-agent-wallet/internal/handlers"
	"solana-agent-wallet/internal/middleware"
	"solana-agent-wallet/internal/services"
	"solana-agent-wallet/internal/store"
	"solana-agent-wallet/internal/tools"
	"solana-agent-wallet/pkg/cache"
	"solana-agent-wallet/pkg/logger"
	"solana-agent-wallet/pkg/metrics"
	"solana-agent-wallet/pkg/mutex"
	"solana-agent-wallet/pkg/ratelimiter"
)

// Server represents the main application server
type Server struct {
	httpServer   *http.Server
	config       *config.Config
	mongoClient  *mongo.Client
	gateway      *services.SolanaGateway
	reconciler   *services.Reconciler
	limits       *ratelimiter.Store
	httpLimiter  *ratelimiter.RateLimiter
	locks        *mutex.KeyedMutex
	balanceCache *cache.Cache
	router       *handlers.Router

	workerCancel context.CancelFunc
}

func main() {
	cfg := config.LoadConfig()

	loggerConfig := &logger.Config{
		Level:       cfg.Logging.Level,
		Environment: cfg.Logging.Environment,
		OutputPaths: cfg.Logging.OutputPaths,
	}
	if err := logger.Initialize(loggerConfig); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	log := logger.GetLogger()

	log.Info("Starting agent wallet server",
		zap.String("host", cfg.Server.Host),
		zap.String("port", cfg.Server.Port),
		zap.String("rpc_endpoint", cfg.RPC.Endpoint),
		zap.String("frontend_url", cfg.Server.FrontendURL),
		zap.String("log_level", cfg.Logging.Level),
		zap.String("environment", cfg.Logging.Environment),
	)

	server, err := NewServer(cfg)
	if err != nil {
		log.Fatal("Failed to create server", zap.Error(err))
	}

	if err := server.Start(); err != nil {
		log.Fatal("Server failed to start", zap.Error(err))
	}
}

// NewServer creates a new server instance with all dependencies
func NewServer(cfg *config.Config) (*Server, error) {
	log := logger.GetLogger()

	log.Info("Initializing server components")

	var (
		mongoClient *mongo.Client
		sessions    services.SessionStore
		txs         services.TransactionStore
	)

	// MONGODB_URI=memory runs on in-process stores for local development
	if cfg.MongoDB.URI == "memory" {
		log.Warn("Running with in-memory stores, state is lost on restart")
		sessions = store.NewMemorySessionStore()
		txs = store.NewMemoryTransactionStore()
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.MongoDB.ConnectTimeout)
		defer cancel()

		client, err := store.Connect(ctx, &cfg.MongoDB)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
		}
		mongoClient = client

		db := client.Database(cfg.MongoDB.Database)
		sessionStore := store.NewMongoSessionStore(db, cfg.MongoDB.SessionCollection)
		txStore := store.NewMongoTransactionStore(db, cfg.MongoDB.TransactionCollection)

		if err := sessionStore.EnsureIndexes(ctx); err != nil {
			return nil, fmt.Errorf("failed to create session indexes: %w", err)
		}
		if err := txStore.EnsureIndexes(ctx); err != nil {
			return nil, fmt.Errorf("failed to create transaction indexes: %w", err)
		}

		sessions = sessionStore
		txs = txStore
	}

	collector := metrics.NewCollector()

	log.Debug("Initializing Solana RPC gateway")
	gateway := services.NewSolanaGateway(&cfg.RPC, collector)
	if err := gateway.Health(context.Background()); err != nil {
		log.Warn("Solana RPC health check failed", zap.Error(err))
	} else {
		log.Info("Solana RPC connection healthy")
	}

	locks := mutex.New(10 * time.Minute)
	balanceCache := cache.New(cfg.Cache.TTL)
	limits := ratelimiter.NewStore()
	httpLimiter := ratelimiter.New(cfg.RateLimit.HTTPRequestsPerMinute, time.Minute)

	log.Debug("Initializing services")
	sessionService := services.NewSessionService(sessions, &cfg.Session, cfg.Server.FrontendURL)
	builder := services.NewTransactionBuilder(gateway, &cfg.Transaction)
	pending := services.NewPendingTxService(txs, builder, gateway, locks, &cfg.Transaction, collector)
	reconciler := services.NewReconciler(txs, gateway, &cfg.Transaction, collector)

	toolService := tools.NewService(sessionService, pending, reconciler, builder, gateway, limits, cfg, balanceCache, collector)

	log.Debug("Initializing handlers")
	var pinger handlers.DatabasePinger
	if mongoClient != nil {
		pinger = mongoClient
	}
	router := handlers.NewRouter(
		handlers.NewConnectHandler(sessionService),
		handlers.NewTransactionHandler(pending, reconciler, cfg.RPC.Endpoint),
		handlers.NewToolsHandler(toolService, collector),
		handlers.NewHealthHandler(pinger, gateway, collector),
	)

	log.Info("Server components initialized successfully")

	return &Server{
		config:       cfg,
		mongoClient:  mongoClient,
		gateway:      gateway,
		reconciler:   reconciler,
		limits:       limits,
		httpLimiter:  httpLimiter,
		locks:        locks,
		balanceCache: balanceCache,
		router:       router,
	}, nil
}

// Start starts the HTTP server with graceful shutdown handling
func (s *Server) Start() error {
	log := logger.GetLogger()

	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	s.setupMiddleware(engine)
	s.router.SetupRoutes(engine)
	s.router.SetupHealthRoutes(engine)

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", s.config.Server.Host, s.config.Server.Port),
		Handler:           engine,
		ReadTimeout:       s.config.Server.ReadTimeout,
		WriteTimeout:      s.config.Server.WriteTimeout,
		IdleTimeout:       s.config.Server.IdleTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	log.Info("HTTP server configured",
		zap.String("address", s.httpServer.Addr),
		zap.Duration("read_timeout", s.config.Server.ReadTimeout),
		zap.Duration("write_timeout", s.config.Server.WriteTimeout),
	)

	s.startBackgroundRoutines()

	go func() {
		log.Info("Starting HTTP server", zap.String("address", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	return s.waitForShutdown()
}

// setupMiddleware configures the middleware stack
func (s *Server) setupMiddleware(engine *gin.Engine) {
	engine.Use(logger.RecoveryMiddleware())
	engine.Use(logger.LoggingMiddleware())
	engine.Use(middleware.CORS(s.config.Server.FrontendURL))
	engine.Use(middleware.ActorSession())
	engine.Use(s.httpLimiter.Middleware())
}

// startBackgroundRoutines starts the reconciliation worker and the
// periodic cleanup of rate-limit counters
func (s *Server) startBackgroundRoutines() {
	log := logger.GetLogger()

	ctx, cancel := context.WithCancel(context.Background())
	s.workerCancel = cancel

	go s.reconciler.Run(ctx)

	go func() {
		ticker := time.NewTicker(s.config.RateLimit.CleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.limits.Cleanup()
				s.httpLimiter.Cleanup()
			case <-ctx.Done():
				return
			}
		}
	}()

	log.Info("Background routines started",
		zap.Duration("reconcile_interval", s.config.Transaction.ReconcileInterval),
		zap.Duration("rate_limit_cleanup_interval", s.config.RateLimit.CleanupInterval),
	)
}

// waitForShutdown blocks until an interrupt arrives, then drains
// in-flight requests and releases resources
func (s *Server) waitForShutdown() error {
	log := logger.GetLogger()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info("Shutting down server", zap.String("signal", sig.String()))

	s.reconciler.Stop()
	if s.workerCancel != nil {
		s.workerCancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
		return err
	}

	s.locks.Stop()
	s.balanceCache.Stop()

	if s.mongoClient != nil {
		if err := s.mongoClient.Disconnect(ctx); err != nil {
			log.Warn("Failed to disconnect from mongodb", zap.Error(err))
		}
	}

	log.Info("Server shutdown complete")
	_ = log.Sync()
	return nil
}
