package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/aryan0dhankhar/estatebooks/internal/dispatch"
	"github.com/aryan0dhankhar/estatebooks/internal/events"
	"github.com/aryan0dhankhar/estatebooks/internal/featureflags"
	"github.com/aryan0dhankhar/estatebooks/internal/handler"
	"github.com/aryan0dhankhar/estatebooks/internal/infrastructure/logger"
	"github.com/aryan0dhankhar/estatebooks/internal/infrastructure/redis"
	"github.com/aryan0dhankhar/estatebooks/internal/observability/metrics"
	"github.com/aryan0dhankhar/estatebooks/internal/observability/tracing"
	"github.com/aryan0dhankhar/estatebooks/internal/rent"
	"github.com/aryan0dhankhar/estatebooks/internal/repository"
	"github.com/aryan0dhankhar/estatebooks/internal/security"
	"github.com/aryan0dhankhar/estatebooks/internal/security/audit"
	"github.com/aryan0dhankhar/estatebooks/internal/security/auth"
	"github.com/aryan0dhankhar/estatebooks/internal/security/middleware"
	"github.com/aryan0dhankhar/estatebooks/internal/security/ratelimit"
	"github.com/aryan0dhankhar/estatebooks/internal/service"
	"github.com/aryan0dhankhar/estatebooks/internal/summary"
	"github.com/aryan0dhankhar/estatebooks/internal/tenant"
	"github.com/aryan0dhankhar/estatebooks/pkg/config"
	"github.com/aryan0dhankhar/estatebooks/pkg/database"
)

const serviceName = "estatebooks"

// publicPaths skip authentication
var publicPaths = map[string]bool{
	"/healthz":           true,
	"/readyz":            true,
	"/metrics":           true,
	"/api/auth/login":    true,
	"/api/auth/register": true,
	"/api/auth/logout":   true,
}

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Initialize structured logger
	log := logger.NewLogger(cfg.LogLevel)
	slog.SetDefault(log)
	log.Info("starting estatebooks server", slog.String("environment", cfg.Environment))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := tracing.Init(ctx, log, serviceName, cfg.Environment)
	if err != nil {
		log.Error("failed to initialize tracing", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 3. Database
	pool, err := database.NewConnectionPool(ctx, cfg.Database, cfg.Tenant.RLSSetting, log)
	if err != nil {
		log.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	// 4. Redis is optional; option lists fall back to an in-process cache
	var (
		kv          repository.KV
		redisPinger handler.Pinger
	)
	if cfg.RedisURL != "" {
		redisClient, err := redis.NewClient(cfg.RedisURL, log)
		if err != nil {
			log.Warn("redis unavailable, caching options in process", slog.String("error", err.Error()))
		} else {
			defer redisClient.Close()
			kv, redisPinger = redisClient, redisClient
		}
	}

	// 5. Repositories
	tableRepo := repository.NewPostgresTableRepository(pool, log)
	userRepo := repository.NewPostgresUserRepository(pool.GetDB(), log)
	memberRepo := repository.NewPostgresMembershipRepository(pool.GetDB(), log)
	optionsCache := repository.NewOptionsCache(kv, cfg.OptionsCacheTTL, log)

	// 6. Services
	secret := cfg.JWTSecret
	if secret == "" {
		secret = randomSecret()
		log.Warn("JWT_SECRET not set, sessions will not survive a restart")
	}
	tokenManager := auth.NewTokenManager(secret, cfg.JWTIssuer, cfg.SessionDuration)
	authService := service.NewAuthService(userRepo, tokenManager, log)
	optionsService := service.NewOptionsService(tableRepo, optionsCache, log)
	tableService := service.NewTableService(tableRepo, optionsService, cfg.Grid.DefaultPageSize, cfg.Grid.MaxPageSize, log)
	rentService := rent.NewService(tableRepo, rent.NewBuilder(cfg.CityPayers, cfg.PropertyHints, ""), cfg.RentCategory, log)
	summaryService := summary.NewService(tableRepo, summary.NewBuilder(cfg.RentCategory), log)

	hub := events.NewHub(32, log)
	dispatcher := dispatch.New(tableRepo, log, optionsCache, hub)

	flags := featureflags.FromEnv()
	resolver := tenant.NewResolver(memberRepo, flags, tenant.ResolverOptions{
		CookieName:      cfg.Tenant.CookieName,
		CookieMaxAge:    cfg.Tenant.CookieMaxAge,
		QueryParam:      cfg.Tenant.QueryParam,
		DefaultTenantID: cfg.Tenant.DefaultTenantID,
		SecureCookie:    cfg.IsProduction(),
	}, log)

	// 7. Security components
	rateLimiter := ratelimit.NewLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow)
	auditLogger := audit.NewLogger(log)
	authz := security.NewAuthorizationService(log)

	// 8. Handlers
	authHandler := handler.NewAuthHandler(authService, rateLimiter, resolver, handler.SessionOptions{
		CookieName: cfg.SessionCookieName,
		TTL:        cfg.SessionDuration,
		Secure:     cfg.IsProduction(),
	}, log)
	tenantsHandler := handler.NewTenantsHandler(resolver, auditLogger, log)
	tablesHandler := handler.NewTablesHandler(tableService, optionsService, log)
	updateHandler := handler.NewUpdateHandler(dispatcher, auditLogger, log)
	rentHandler := handler.NewRentHandler(rentService, log)
	summaryHandler := handler.NewSummaryHandler(summaryService, log)
	eventsHandler := handler.NewEventsHandler(hub, flags, cfg.CORSAllowedOrigins, log)
	healthHandler := handler.NewHealthHandler(handler.PingFunc(pool.Health), redisPinger, log)

	// tenant resolution -> rate limit -> audit -> role check
	tenantMW := tenant.Middleware(resolver, middleware.UserIDFromContext, handler.WriteError)
	rateLimitMW := middleware.RateLimitMiddleware(rateLimiter, log)
	auditMW := middleware.AuditMiddleware(auditLogger)
	scoped := func(perm security.Permission, h http.Handler) http.Handler {
		return tenantMW(rateLimitMW(auditMW(middleware.RequirePermission(authz, auditLogger, perm)(h))))
	}

	// 9. Setup HTTP routes
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", healthHandler.Health)
	mux.HandleFunc("GET /readyz", healthHandler.Ready)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("POST /api/auth/register", authHandler.Register)
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)
	mux.HandleFunc("POST /api/auth/logout", authHandler.Logout)
	mux.HandleFunc("GET /api/auth/me", authHandler.Me)
	mux.HandleFunc("POST /api/auth/change-password", authHandler.ChangePassword)

	mux.Handle("GET /api/tenants", tenantMW(http.HandlerFunc(tenantsHandler.List)))
	mux.Handle("POST /api/tenants/select", tenantMW(auditMW(http.HandlerFunc(tenantsHandler.Select))))

	mux.Handle("GET /api/tables", http.HandlerFunc(tablesHandler.List))
	mux.Handle("GET /api/tables/{table}", scoped(security.PermReadTables, http.HandlerFunc(tablesHandler.View)))
	mux.Handle("GET /api/tables/{table}/rows", scoped(security.PermReadTables, http.HandlerFunc(tablesHandler.Rows)))
	mux.Handle("GET /api/sections", scoped(security.PermReadTables, http.HandlerFunc(tablesHandler.Sections)))
	mux.Handle("GET /api/options/{kind}", scoped(security.PermReadOptions, http.HandlerFunc(tablesHandler.Options)))
	mux.Handle("POST /api/database/update", scoped(security.PermEditCells, updateHandler))
	mux.Handle("GET /api/rent-overview", scoped(security.PermViewRent, rentHandler))
	mux.Handle("GET /api/monthly-summary", scoped(security.PermViewReports, summaryHandler))
	mux.Handle("GET /ws/events", scoped(security.PermReadTables, eventsHandler))

	// Chain middleware: tracing -> request ID -> CORS -> JWT -> content type -> metrics -> mux
	public := func(path string) bool { return publicPaths[path] }
	rootHandler := otelhttp.NewHandler(
		middleware.RequestID(log)(
			middleware.CORS(cfg.CORSAllowedOrigins)(
				middleware.JWTMiddleware(tokenManager, cfg.SessionCookieName, public, log)(
					middleware.ValidateJSONContentType(log)(
						metrics.HTTPMetricsMiddleware(mux),
					),
				),
			),
		),
		serviceName,
	)

	// 10. Start HTTP server
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           rootHandler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Info("server starting",
		slog.Int("port", cfg.ServerPort),
		slog.Int("rate_limit", cfg.RateLimitRequests),
		slog.Duration("rate_limit_window", cfg.RateLimitWindow),
		slog.Bool("redis", kv != nil),
	)

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", slog.String("error", err.Error()))
			sigChan <- syscall.SIGTERM
		}
	}()

	// Wait for shutdown signal
	<-sigChan
	log.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", slog.String("error", err.Error()))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error("tracing shutdown error", slog.String("error", err.Error()))
	}

	cancel()
	rateLimiter.Stop()
	log.Info("server stopped")
}

func randomSecret() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("dev-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}
