// 文件路径: internal/api/router.go
// 模块说明: HTTP 路由装配，挂载中间件链、公开接口、用户接口与管理端接口。
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cliqshop/shop/internal/api/handler"
	"github.com/cliqshop/shop/internal/api/middleware"
	"github.com/cliqshop/shop/internal/config"
	"github.com/cliqshop/shop/internal/security"
	"github.com/cliqshop/shop/internal/service"
	"github.com/cliqshop/shop/internal/support/i18n"
)

// Services lists everything the HTTP surface calls into.
type Services struct {
	Auth        service.AuthService
	OAuth       service.OAuthService
	User        service.UserService
	AdminUser   service.AdminUserService
	AdminSystem service.AdminSystemService
	Category    service.CategoryService
	Product     service.ProductService
	Inventory   service.InventoryService
	Cart        service.CartService
	Address     service.AddressService
	Order       service.OrderService
	Payment     service.PaymentService
	Report      service.ReportService
	I18n        *i18n.Manager
}

// RouterOption 允许在创建 Router 时附加可选组件。
type RouterOption func(*routerOptions)

type routerOptions struct {
	registerer       prometheus.Registerer
	gatherer         prometheus.Gatherer
	rateLimiter      *security.RateLimiter
	realtime         http.Handler
	ready            func(context.Context) error
	frontendRedirect string
}

// WithMetricsRegistry swaps the default Prometheus registry, mainly for tests.
func WithMetricsRegistry(reg *prometheus.Registry) RouterOption {
	return func(o *routerOptions) {
		o.registerer = reg
		o.gatherer = reg
	}
}

// WithRateLimiter enables per-IP request limiting backed by the shared cache.
func WithRateLimiter(limiter *security.RateLimiter) RouterOption {
	return func(o *routerOptions) { o.rateLimiter = limiter }
}

// WithRealtime mounts the product update websocket at /ws/product-updates.
func WithRealtime(ws http.Handler) RouterOption {
	return func(o *routerOptions) { o.realtime = ws }
}

// WithReadiness makes /_internal/ready report 503 while check fails.
func WithReadiness(check func(context.Context) error) RouterOption {
	return func(o *routerOptions) { o.ready = check }
}

// WithOAuthRedirect sends OAuth results to a frontend URL instead of returning JSON.
func WithOAuthRedirect(target string) RouterOption {
	return func(o *routerOptions) { o.frontendRedirect = target }
}

// NewRouter wires middleware and every REST route.
func NewRouter(logger *slog.Logger, services Services, httpCfg config.HTTPConfig, metricsCfg config.MetricsConfig, opts ...RouterOption) http.Handler {
	options := routerOptions{
		registerer: prometheus.DefaultRegisterer,
		gatherer:   prometheus.DefaultGatherer,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	requireServices(services)
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(
		chiMiddleware.RequestID,
		chiMiddleware.RealIP,
	)

	if metricsCfg.Enabled {
		mCfg := middleware.DefaultMetricsConfig()
		if metricsCfg.Namespace != "" {
			mCfg.Namespace = metricsCfg.Namespace
		}
		if metricsCfg.Subsystem != "" {
			mCfg.Subsystem = metricsCfg.Subsystem
		}
		if len(metricsCfg.Buckets) > 0 {
			mCfg.Buckets = metricsCfg.Buckets
		}
		mCfg.Registerer = options.registerer
		r.Use(middleware.NewMetrics(mCfg).Middleware())
	}

	rateLimit := middleware.DefaultRateLimitConfig()
	if httpCfg.RateLimit > 0 {
		rateLimit.Limiter = options.rateLimiter
		rateLimit.Limit = httpCfg.RateLimit
		rateLimit.Window = httpCfg.RateWindow
	}

	r.Use(
		middleware.CORS(httpCfg.CORSOrigins),
		middleware.BodyLimit(middleware.DefaultBodyLimitConfig()),
		middleware.RateLimit(rateLimit),
		middleware.StructuredLogger(middleware.LoggingConfig{
			Logger:        logger,
			SlowThreshold: 500 * time.Millisecond,
			SkipPaths:     []string{"/health", "/healthz", "/_internal/ready", "/metrics"},
		}),
		chiMiddleware.Recoverer,
		middleware.I18n(services.I18n),
	)

	health := func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]any{
			"status": "ok",
			"ts":     time.Now().UTC().Format(time.RFC3339Nano),
		})
	}
	r.Get("/healthz", health)
	// Alias for Docker health check
	r.Get("/health", health)
	r.Get("/_internal/ready", func(w http.ResponseWriter, req *http.Request) {
		if options.ready != nil {
			if err := options.ready(req.Context()); err != nil {
				logger.Warn("readiness check failed", "error", err)
				respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})

	if metricsCfg.Enabled {
		metricsHandler := promhttp.HandlerFor(options.gatherer, promhttp.HandlerOpts{})
		if metricsCfg.Token != "" {
			r.With(middleware.MetricsGuard(metricsCfg.Token)).Handle("/metrics", metricsHandler)
		} else {
			r.Handle("/metrics", metricsHandler)
		}
	}

	if options.realtime != nil {
		r.Get("/ws/product-updates", options.realtime.ServeHTTP)
	}

	r.Route("/api", func(api chi.Router) {
		// websocket 之外的接口才压缩，Hijack 与压缩写入器不兼容。
		api.Use(chiMiddleware.Compress(5))
		registerAuthRoutes(api, services, options.frontendRedirect)
		registerCatalogRoutes(api, services)
		registerUserRoutes(api, services)
		registerPaymentRoutes(api, services, logger)
		registerAdminRoutes(api, services)
	})

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		logger.Warn("unmapped route hit", "method", req.Method, "path", req.URL.Path)
		handler.RespondErrorI18n(req.Context(), w, http.StatusNotFound, "error.not_found", services.I18n)
	})

	return r
}

func requireServices(s Services) {
	required := map[string]any{
		"AuthService":        s.Auth,
		"UserService":        s.User,
		"AdminUserService":   s.AdminUser,
		"AdminSystemService": s.AdminSystem,
		"CategoryService":    s.Category,
		"ProductService":     s.Product,
		"InventoryService":   s.Inventory,
		"CartService":        s.Cart,
		"AddressService":     s.Address,
		"OrderService":       s.Order,
		"PaymentService":     s.Payment,
		"ReportService":      s.Report,
	}
	for name, svc := range required {
		if svc == nil {
			panic("router requires " + name)
		}
	}
	if s.I18n == nil {
		panic("router requires I18n Manager")
	}
}

func registerAuthRoutes(api chi.Router, services Services, frontendRedirect string) {
	authHandler := handler.NewAuthHandler(services.Auth, services.OAuth, services.I18n, frontendRedirect)
	api.Route("/auth", func(auth chi.Router) {
		auth.Post("/register", authHandler.Register)
		auth.Post("/login", authHandler.Login)
		auth.Post("/refresh", authHandler.Refresh)
		auth.With(middleware.UserGuard(services.Auth)).Post("/logout", authHandler.Logout)
		auth.Get("/oauth2/{provider}", authHandler.OAuthStart)
		auth.Get("/oauth2/{provider}/callback", authHandler.OAuthCallback)
	})
}

func registerCatalogRoutes(api chi.Router, services Services) {
	catalog := handler.NewCatalogHandler(services.Product, services.Category, services.I18n)
	api.Route("/products", func(products chi.Router) {
		products.Get("/", catalog.ListProducts)
		// 静态路径需要在 {id} 之前，chi 会优先匹配静态段。
		products.Get("/search", catalog.SearchProducts)
		products.Get("/category/{categoryId}", catalog.ProductsByCategory)
		products.Get("/{id}", catalog.GetProduct)
	})
	api.Route("/categories", func(categories chi.Router) {
		categories.Get("/", catalog.ListCategories)
		categories.Get("/{id}", catalog.GetCategory)
	})
}

func registerUserRoutes(api chi.Router, services Services) {
	userHandler := handler.NewUserHandler(services.User, services.I18n)
	orderHandler := handler.NewOrderHandler(services.Order, services.I18n)
	cartHandler := handler.NewCartHandler(services.Cart, services.I18n)
	addressHandler := handler.NewAddressHandler(services.Address, services.I18n)
	inventoryHandler := handler.NewInventoryHandler(services.Inventory, services.I18n)

	api.Group(func(user chi.Router) {
		user.Use(middleware.UserGuard(services.Auth))

		user.Route("/users", func(users chi.Router) {
			users.Get("/profile", userHandler.Profile)
			users.Put("/profile", userHandler.UpdateProfile)
			users.Put("/password", userHandler.ChangePassword)
		})

		user.Route("/orders", func(orders chi.Router) {
			orders.Post("/", orderHandler.PlaceOrder)
			orders.Get("/", orderHandler.ListMine)
			orders.Get("/{id}", orderHandler.GetMine)
			orders.Put("/{id}/cancel", orderHandler.CancelMine)
		})

		user.Route("/cart", func(cart chi.Router) {
			cart.Get("/", cartHandler.Get)
			cart.Delete("/", cartHandler.Clear)
			cart.Post("/items", cartHandler.AddItem)
			cart.Put("/items/{productId}", cartHandler.UpdateItem)
			cart.Delete("/items/{productId}", cartHandler.RemoveItem)
		})

		user.Route("/addresses", func(addresses chi.Router) {
			addresses.Get("/", addressHandler.List)
			addresses.Post("/", addressHandler.Create)
			addresses.Get("/default", addressHandler.Default)
			addresses.Get("/{id}", addressHandler.Get)
			addresses.Put("/{id}", addressHandler.Update)
			addresses.Delete("/{id}", addressHandler.Delete)
			addresses.Put("/{id}/default", addressHandler.SetDefault)
		})

		user.Get("/inventory/product/{productId}", inventoryHandler.GetByProduct)
	})
}

func registerPaymentRoutes(api chi.Router, services Services, logger *slog.Logger) {
	paymentHandler := handler.NewPaymentHandler(services.Payment, services.I18n, logger)
	api.Post("/webhook/stripe", paymentHandler.StripeWebhook)
	api.Route("/payments", func(payments chi.Router) {
		payments.Get("/config", paymentHandler.Config)
		payments.Group(func(user chi.Router) {
			user.Use(middleware.UserGuard(services.Auth))
			user.Post("/create-payment-intent", paymentHandler.CreatePaymentIntent)
			user.Post("/create-checkout-session", paymentHandler.CreateCheckoutSession)
			user.Post("/confirm-payment-intent/{id}", paymentHandler.ConfirmPaymentIntent)
			user.Post("/cancel-payment-intent/{id}", paymentHandler.CancelPaymentIntent)
			user.Get("/payment-intent/{id}", paymentHandler.GetPaymentIntent)
		})
	})
}

func registerAdminRoutes(api chi.Router, services Services) {
	adminHandler := handler.NewAdminHandler(services.Report, services.Inventory, services.I18n)
	systemHandler := handler.NewAdminSystemHandler(services.AdminSystem, services.I18n)
	userHandler := handler.NewAdminUserHandler(services.AdminUser, services.I18n)
	catalog := handler.NewCatalogHandler(services.Product, services.Category, services.I18n)
	orderHandler := handler.NewOrderHandler(services.Order, services.I18n)
	inventoryHandler := handler.NewInventoryHandler(services.Inventory, services.I18n)

	api.Route("/admin", func(admin chi.Router) {
		admin.Use(middleware.AdminGuard(services.Auth))

		admin.Get("/dashboard/stats", adminHandler.Dashboard)
		admin.Get("/dashboard/recent-products", adminHandler.RecentProducts)
		admin.Get("/dashboard/recent-categories", adminHandler.RecentCategories)
		admin.Get("/dashboard/low-stock-items", adminHandler.LowStockItems)

		admin.Get("/system/status", systemHandler.Status)
		admin.Get("/system/languages", systemHandler.Languages)

		admin.Get("/reports", adminHandler.Reports)
		admin.Get("/reports/sales", adminHandler.SalesReport)
		admin.Get("/reports/inventory", adminHandler.InventoryReport)

		admin.Route("/users", func(users chi.Router) {
			users.Get("/", userHandler.List)
			users.Post("/", userHandler.Create)
			users.Get("/export", userHandler.Export)
			users.Get("/{id}", userHandler.Get)
			users.Put("/{id}", userHandler.Update)
			users.Put("/{id}/status", userHandler.ToggleStatus)
			users.Delete("/{id}", userHandler.Delete)
		})

		admin.Route("/products", func(products chi.Router) {
			products.Get("/", catalog.ListProducts)
			products.Post("/", catalog.CreateProduct)
			products.Get("/{id}", catalog.GetProduct)
			products.Put("/{id}", catalog.UpdateProduct)
			products.Delete("/{id}", catalog.DeleteProduct)
		})

		admin.Route("/categories", func(categories chi.Router) {
			categories.Get("/", catalog.ListCategories)
			categories.Post("/", catalog.CreateCategory)
			categories.Get("/{id}", catalog.GetCategory)
			categories.Put("/{id}", catalog.UpdateCategory)
			categories.Delete("/{id}", catalog.DeleteCategory)
		})

		admin.Route("/orders", func(orders chi.Router) {
			orders.Get("/", orderHandler.AdminList)
			orders.Get("/statuses", orderHandler.Statuses)
			orders.Get("/{id}", orderHandler.AdminGet)
			orders.Put("/{id}/status", orderHandler.UpdateStatus)
			orders.Put("/{id}/payment-status", orderHandler.UpdatePaymentStatus)
			orders.Post("/{id}/cancel", orderHandler.AdminCancel)
			orders.Post("/{id}/refund", orderHandler.Refund)
		})

		admin.Route("/inventory", func(inventory chi.Router) {
			inventory.Get("/", inventoryHandler.List)
			inventory.Post("/", inventoryHandler.Create)
			inventory.Get("/low-stock", inventoryHandler.LowStock)
			inventory.Get("/product/{productId}", inventoryHandler.GetByProduct)
			inventory.Put("/{productId}/stock", inventoryHandler.UpdateStock)
			inventory.Put("/{productId}/quantity", inventoryHandler.SetQuantity)
			inventory.Put("/{productId}/threshold", inventoryHandler.UpdateThreshold)
			inventory.Put("/{productId}/location", inventoryHandler.UpdateLocation)
			inventory.Delete("/{id}", inventoryHandler.Delete)
		})
	})
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
