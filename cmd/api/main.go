package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"

	"github.com/hatchmart/api/internal/handlers"
	"github.com/hatchmart/api/internal/platform/auth"
	"github.com/hatchmart/api/internal/platform/config"
	pfirestore "github.com/hatchmart/api/internal/platform/firestore"
	"github.com/hatchmart/api/internal/platform/idempotency"
	"github.com/hatchmart/api/internal/platform/jobs"
	"github.com/hatchmart/api/internal/platform/observability"
	firestoreRepo "github.com/hatchmart/api/internal/repositories/firestore"
	"github.com/hatchmart/api/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"
)

func main() {
	ctx := context.Background()
	startedAt := time.Now().UTC()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")
	ctx = observability.WithLogger(ctx, logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	firestoreProvider := pfirestore.NewProvider(cfg.Firestore)
	firestoreClient, err := firestoreProvider.Client(ctx)
	if err != nil {
		logger.Fatal("failed to initialise firestore client", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := firestoreProvider.Close(closeCtx); err != nil {
			logger.Warn("firestore close error", zap.Error(err))
		}
	}()

	tokenManager, err := auth.NewTokenManager([]byte(cfg.Auth.JWTSecret),
		auth.WithIssuer(cfg.Auth.Issuer),
		auth.WithTokenTTL(cfg.Auth.TokenTTL),
	)
	if err != nil {
		logger.Fatal("failed to initialise token manager", zap.Error(err))
	}
	authenticator := auth.NewAuthenticator(tokenManager)

	idempotencyStore := idempotency.NewFirestoreStore(firestoreClient)
	idempotencyMiddleware := idempotency.Middleware(
		idempotencyStore,
		idempotency.WithHeader(cfg.Idempotency.Header),
		idempotency.WithTTL(cfg.Idempotency.TTL),
		idempotency.WithLogger(zapPrintfLogger{logger: logger.Named("idempotency")}),
	)

	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	var cleanupWG sync.WaitGroup
	var cleanupTicker *time.Ticker
	if cfg.Idempotency.CleanupInterval > 0 {
		cleanupTicker = time.NewTicker(cfg.Idempotency.CleanupInterval)
		cleanupWG.Add(1)
		go func() {
			defer cleanupWG.Done()
			cleanupLogger := logger.Named("idempotency")
			for {
				select {
				case <-cleanupTicker.C:
					runCtx, cancel := context.WithTimeout(cleanupCtx, time.Minute)
					removed, err := idempotencyStore.CleanupExpired(runCtx, time.Now().UTC(), cfg.Idempotency.CleanupBatchSize)
					cancel()
					if err != nil {
						cleanupLogger.Error("idempotency cleanup error", zap.Error(err))
						continue
					}
					if removed > 0 {
						cleanupLogger.Info("idempotency cleanup removed records", zap.Int("count", removed))
					}
				case <-cleanupCtx.Done():
					return
				}
			}
		}()
	}

	categoryRepo, err := firestoreRepo.NewCategoryRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise category repository", zap.Error(err))
	}
	productRepo, err := firestoreRepo.NewProductRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise product repository", zap.Error(err))
	}
	cartRepo, err := firestoreRepo.NewCartRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise cart repository", zap.Error(err))
	}
	orderRepo, err := firestoreRepo.NewOrderRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise order repository", zap.Error(err))
	}
	userRepo, err := firestoreRepo.NewUserRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise user repository", zap.Error(err))
	}
	counterRepo, err := firestoreRepo.NewCounterRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise counter repository", zap.Error(err))
	}

	var orderEvents services.OrderEventPublisher
	if cfg.Events.Enabled {
		pubsubClient, err := pubsub.NewClient(ctx, cfg.Events.ProjectID)
		if err != nil {
			logger.Fatal("failed to initialise pubsub client", zap.Error(err))
		}
		defer func() {
			if err := pubsubClient.Close(); err != nil {
				logger.Warn("pubsub close error", zap.Error(err))
			}
		}()
		topic := pubsubClient.Topic(cfg.Events.OrderTopic)
		defer topic.Stop()
		orderEvents, err = jobs.NewPubSubOrderEventPublisher(topic)
		if err != nil {
			logger.Fatal("failed to initialise order event publisher", zap.Error(err))
		}
	}

	catalogService, err := services.NewCatalogService(services.CatalogServiceDeps{
		Categories:  categoryRepo,
		Products:    productRepo,
		Clock:       time.Now,
		IDGenerator: newID,
	})
	if err != nil {
		logger.Fatal("failed to initialise catalog service", zap.Error(err))
	}

	cartService, err := services.NewCartService(services.CartServiceDeps{
		Carts:    cartRepo,
		Products: productRepo,
		Clock:    time.Now,
	})
	if err != nil {
		logger.Fatal("failed to initialise cart service", zap.Error(err))
	}

	orderLogger := logger.Named("orders")
	orderService, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:      orderRepo,
		Carts:       cartRepo,
		Products:    productRepo,
		Counters:    counterRepo,
		Clock:       time.Now,
		IDGenerator: newID,
		Events:      orderEvents,
		Logger: func(_ context.Context, event string, fields map[string]any) {
			zFields := make([]zap.Field, 0, len(fields)+1)
			zFields = append(zFields, zap.String("event", event))
			for k, v := range fields {
				zFields = append(zFields, zap.Any(k, v))
			}
			orderLogger.Info("order log", zFields...)
		},
	})
	if err != nil {
		logger.Fatal("failed to initialise order service", zap.Error(err))
	}

	userService, err := services.NewUserService(services.UserServiceDeps{
		Users:       userRepo,
		Orders:      orderRepo,
		Tokens:      tokenManager,
		Clock:       time.Now,
		IDGenerator: newID,
	})
	if err != nil {
		logger.Fatal("failed to initialise user service", zap.Error(err))
	}

	reportService, err := services.NewReportService(services.ReportServiceDeps{
		Users:             userRepo,
		Products:          productRepo,
		Orders:            orderRepo,
		Categories:        categoryRepo,
		LowStockThreshold: cfg.Catalog.LowStockThreshold,
		Clock:             time.Now,
	})
	if err != nil {
		logger.Fatal("failed to initialise report service", zap.Error(err))
	}

	authHandlers := handlers.NewAuthHandlers(authenticator, userService,
		handlers.WithCredentialRateLimit(cfg.RateLimits.AuthenticatedPerMinute, time.Minute))
	catalogHandlers := handlers.NewCatalogHandlers(catalogService)
	cartHandlers := handlers.NewCartHandlers(authenticator, cartService)
	orderHandlers := handlers.NewOrderHandlers(authenticator, orderService,
		handlers.WithOrderIdempotency(idempotencyMiddleware))
	adminHandlers := handlers.NewAdminHandlers(userService, reportService)
	adminCatalogHandlers := handlers.NewAdminCatalogHandlers(catalogService)
	adminOrderHandlers := handlers.NewAdminOrderHandlers(orderService)

	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger.Named("http")),
		observability.RecoveryMiddleware(logger.Named("http")),
		observability.RequestLoggerMiddleware(),
	}

	healthHandlers := handlers.NewHealthHandlers(
		handlers.WithHealthBuildInfo(buildVersion(), buildCommit(), environmentLabel()),
		handlers.WithHealthStartedAt(startedAt),
		handlers.WithReadinessCheck("firestore", func(r *http.Request) error {
			checkCtx, cancel := context.WithTimeout(r.Context(), 1500*time.Millisecond)
			defer cancel()
			iter := firestoreClient.Collections(checkCtx)
			if _, err := iter.Next(); err != nil && !errors.Is(err, iterator.Done) {
				return err
			}
			return nil
		}),
	)

	router := handlers.NewRouter(
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithAuthRoutes(authHandlers.Routes),
		handlers.WithCategoryRoutes(catalogHandlers.CategoryRoutes),
		handlers.WithProductRoutes(catalogHandlers.ProductRoutes),
		handlers.WithCartRoutes(cartHandlers.Routes),
		handlers.WithOrderRoutes(orderHandlers.Routes),
		handlers.WithAdminMiddlewares(authenticator.RequireAuth(auth.RoleStaff, auth.RoleAdmin)),
		handlers.WithAdminRoutes(func(r chi.Router) {
			adminHandlers.Routes(r)
			adminCatalogHandlers.Routes(r)
			r.Route("/orders", adminOrderHandlers.Routes)
		}),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("hatchmart api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	if cleanupTicker != nil {
		cleanupTicker.Stop()
	}
	cleanupCancel()
	cleanupWG.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func newID() string {
	return ulid.Make().String()
}

func buildVersion() string {
	if v := strings.TrimSpace(os.Getenv("API_BUILD_VERSION")); v != "" {
		return v
	}
	return "dev"
}

func buildCommit() string {
	if v := strings.TrimSpace(os.Getenv("API_BUILD_COMMIT_SHA")); v != "" {
		return v
	}
	return "unknown"
}

func environmentLabel() string {
	if v := strings.TrimSpace(os.Getenv("API_ENVIRONMENT")); v != "" {
		return v
	}
	return "local"
}

type zapPrintfLogger struct {
	logger *zap.Logger
}

func (l zapPrintfLogger) Printf(format string, args ...any) {
	if l.logger == nil {
		return
	}
	l.logger.Info(fmt.Sprintf(format, args...))
}
