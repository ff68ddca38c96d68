package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/meridian-crm/meridian/internal/app"
	"github.com/meridian-crm/meridian/internal/audit"
	"github.com/meridian-crm/meridian/internal/authz"
	"github.com/meridian-crm/meridian/internal/companies"
	"github.com/meridian-crm/meridian/internal/identity"
	"github.com/meridian-crm/meridian/internal/modules"
	"github.com/meridian-crm/meridian/internal/observability"
	"github.com/meridian-crm/meridian/internal/platform/db"
	"github.com/meridian-crm/meridian/internal/roles"
	"github.com/meridian-crm/meridian/internal/shared"
	"github.com/meridian-crm/meridian/internal/users"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(dbpool)

	policyStore := authz.NewRepository(dbpool, cfg.StoreTimeout)
	decisionCache := authz.NewCache(redisClient, cfg.DecisionTTL)
	resolver := authz.NewResolver(policyStore, decisionCache, logger, metrics)
	admin := authz.NewAdmin(policyStore, resolver, decisionCache, auditLogger, logger)
	guard := authz.Middleware{Resolver: resolver, Logger: logger}
	authzHandler := authz.NewHandler(logger, admin, resolver)

	userService := users.NewService(users.NewRepository(dbpool))
	roleService := roles.NewService(roles.NewRepository(dbpool))
	moduleService := modules.NewService(modules.NewRepository(dbpool))
	companyService := companies.NewService(companies.NewRepository(dbpool))
	auditService := audit.NewService(dbpool)

	rolesHandler := roles.NewHandler(logger, roleService, admin, guard)
	modulesHandler := modules.NewHandler(logger, moduleService, guard)
	companiesHandler := companies.NewHandler(logger, companyService, guard)
	auditHandler := audit.NewHandler(logger, auditService, guard)

	identityMiddleware := identity.Middleware{Client: redisClient, Actors: userService, Logger: logger}

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		Metrics:          metrics,
		Identity:         identityMiddleware.Handler,
		AuthzHandler:     authzHandler,
		RolesHandler:     rolesHandler,
		ModulesHandler:   modulesHandler,
		CompaniesHandler: companiesHandler,
		AuditHandler:     auditHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
