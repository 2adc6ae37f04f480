package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/cliqshop/shop/internal/api"
	"github.com/cliqshop/shop/internal/bootstrap"
	"github.com/cliqshop/shop/internal/config"
	"github.com/cliqshop/shop/internal/job"
	"github.com/cliqshop/shop/internal/migrations"
	"github.com/cliqshop/shop/internal/repository/sqlite"
	"github.com/cliqshop/shop/internal/service"
	"github.com/cliqshop/shop/internal/support/i18n"
	"github.com/cliqshop/shop/internal/support/logging"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	bootTime := time.Now().UTC()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := logging.New(logging.Options{
		Level:       cfg.Log.SlogLevel(),
		Format:      cfg.Log.Format,
		AddSource:   cfg.Log.AddSource,
		Environment: cfg.Log.Environment,
	})
	slog.SetDefault(logger)

	db, err := bootstrap.OpenSQLite(cfg.DB.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	applied, err := migrations.Up(ctx, db)
	if err != nil {
		return err
	}
	if len(applied) > 0 {
		logger.Info("database migrated", "versions", applied)
	}

	store := sqlite.NewStore(db)

	signingKey, source, err := bootstrap.ResolveJWTSigningKey(ctx, store.Settings(), cfg.Auth.SigningKey, time.Now)
	if err != nil {
		return err
	}
	logger.Info("jwt signing key loaded", "source", string(source))

	infra, err := bootstrap.BuildInfrastructure(ctx, cfg, signingKey, Version, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := infra.Close(ctx); err != nil {
			logger.Warn("infrastructure close", "error", err)
		}
	}()

	i18nManager, err := i18n.NewManager(
		i18n.WithLogger(logger),
		i18n.WithDefaultLang("en-US"),
	)
	if err != nil {
		return err
	}
	if err := i18nManager.LoadFromDir(cfg.I18n.LocalesDir); err != nil {
		return err
	}

	services := buildServices(cfg, store, infra, i18nManager, bootTime, logger)

	scheduler := job.NewScheduler(logger)
	if err := registerJobs(scheduler, cfg, store, infra, logger); err != nil {
		return err
	}

	opts := []api.RouterOption{
		api.WithRateLimiter(infra.RateLimiter),
		api.WithReadiness(db.PingContext),
		api.WithOAuthRedirect(cfg.OAuth.FrontendRedirect),
	}
	if infra.Hub != nil {
		opts = append(opts, api.WithRealtime(http.HandlerFunc(infra.Hub.ServeWS)))
	}
	router := api.NewRouter(logger, services, cfg.HTTP, cfg.Metrics, opts...)
	server := bootstrap.NewHTTPServer(cfg.HTTP, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server starting", "addr", cfg.HTTP.Addr, "env", cfg.Log.Environment)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return scheduler.Run(gctx)
	})
	if infra.Hub != nil {
		g.Go(func() error {
			return infra.Hub.Run(gctx)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		logger.Info("shutting down http server")
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server stopped with error", "error", err)
		return err
	}
	logger.Info("server exited cleanly")
	return nil
}

func buildServices(cfg *config.Config, store *sqlite.Store, infra *bootstrap.Infrastructure, i18nManager *i18n.Manager, bootTime time.Time, logger *slog.Logger) api.Services {
	authService := service.NewAuthService(service.AuthDeps{
		Users:      store.Users(),
		Settings:   store.Settings(),
		LoginLogs:  store.LoginLogs(),
		Tokens:     store.Tokens(),
		Hasher:     infra.Hasher,
		TokenMgr:   infra.Token,
		Rate:       infra.RateLimiter,
		Audit:      infra.Audit,
		Cache:      infra.Cache,
		Notifier:   infra.Notifier,
		RefreshTTL: cfg.Auth.RefreshTTL,
	})
	oauthService := service.NewOAuthService(service.OAuthDeps{
		Providers: infra.OAuthProviders,
		Users:     store.Users(),
		Hasher:    infra.Hasher,
		Auth:      authService,
		Cache:     infra.Cache,
		Audit:     infra.Audit,
		Notifier:  infra.Notifier,
	})

	productDeps := service.ProductDeps{
		Store:        store,
		Cache:        infra.Cache,
		LowThreshold: cfg.Inventory.LowStockThreshold,
		Logger:       logger,
	}
	// A nil *Hub must not reach the interface field.
	if infra.Hub != nil {
		productDeps.Broadcaster = infra.Hub
	}

	orderService := service.NewOrderService(service.OrderDeps{
		Store:    store,
		Events:   infra.Events,
		Notifier: infra.Notifier,
		Audit:    infra.Audit,
		Refunds:  infra.Gateway,
		Logger:   logger,
	})
	paymentService := service.NewPaymentService(service.PaymentDeps{
		Gateway:    infra.Gateway,
		Orders:     orderService,
		Store:      store,
		Currency:   cfg.Stripe.Currency,
		SuccessURL: cfg.Stripe.SuccessURL,
		CancelURL:  cfg.Stripe.CancelURL,
		Audit:      infra.Audit,
		Logger:     logger,
	})

	return api.Services{
		Auth:      authService,
		OAuth:     oauthService,
		User:      service.NewUserService(store.Users(), store.Tokens(), infra.Hasher, infra.Audit),
		AdminUser: service.NewAdminUserService(store.Users(), store.Tokens(), infra.Hasher, infra.Audit),
		AdminSystem: service.NewAdminSystemService(service.AdminSystemOptions{
			Version:           Version,
			Environment:       cfg.Log.Environment,
			StartedAt:         bootTime,
			NotificationQueue: infra.Queue,
			Store:             store,
		}),
		Category: service.NewCategoryService(store, infra.Cache),
		Product:  service.NewProductService(productDeps),
		Inventory: service.NewInventoryService(service.InventoryDeps{
			Store:            store,
			Events:           infra.Events,
			DefaultThreshold: cfg.Inventory.LowStockThreshold,
			Logger:           logger,
		}),
		Cart:    service.NewCartService(store),
		Address: service.NewAddressService(store),
		Order:   orderService,
		Payment: paymentService,
		Report:  service.NewReportService(store),
		I18n:    i18nManager,
	}
}

func registerJobs(scheduler *job.Scheduler, cfg *config.Config, store *sqlite.Store, infra *bootstrap.Infrastructure, logger *slog.Logger) error {
	if err := scheduler.RegisterIfSet(cfg.Jobs.SendEmail, job.NewSendEmailJob(infra.Queue, infra.Delivery, logger)); err != nil {
		return err
	}
	if err := scheduler.RegisterIfSet(cfg.Jobs.LoginLogCleanup, job.NewLoginLogCleanupJob(store.LoginLogs(), store.Tokens(), cfg.Jobs.LoginLogMaxAge, logger)); err != nil {
		return err
	}
	if cfg.Jobs.AlertEmail == "" {
		logger.Info("low stock alert has no recipient; job disabled")
		return nil
	}
	return scheduler.RegisterIfSet(cfg.Jobs.LowStockAlert, job.NewLowStockAlertJob(store.Inventory(), infra.Notifier, cfg.Jobs.AlertEmail, logger))
}
