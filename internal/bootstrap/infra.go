// 文件路径: internal/bootstrap/infra.go
// 模块说明: 按配置组装缓存、令牌、通知、事件、实时推送、支付网关与链路追踪等基础设施。
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cliqshop/shop/internal/async"
	"github.com/cliqshop/shop/internal/auth/oauth"
	"github.com/cliqshop/shop/internal/auth/token"
	"github.com/cliqshop/shop/internal/cache"
	"github.com/cliqshop/shop/internal/config"
	"github.com/cliqshop/shop/internal/events"
	"github.com/cliqshop/shop/internal/notifier"
	"github.com/cliqshop/shop/internal/payment"
	"github.com/cliqshop/shop/internal/realtime"
	"github.com/cliqshop/shop/internal/security"
	"github.com/cliqshop/shop/internal/support/hash"
	"github.com/cliqshop/shop/internal/support/tracing"
)

// Infrastructure bundles the shared helpers services are built on.
type Infrastructure struct {
	Cache       cache.Store
	Token       *token.Manager
	Hasher      hash.Hasher
	RateLimiter *security.RateLimiter
	Audit       security.Recorder
	// Queue buffers outgoing email; Notifier enqueues and Delivery renders and sends.
	Queue    *async.NotificationQueue
	Notifier notifier.Service
	Delivery notifier.Service
	Events   events.Publisher
	// Hub is nil when realtime is disabled.
	Hub *realtime.Hub
	// Gateway is nil when no Stripe secret key is configured.
	Gateway        payment.Gateway
	OAuthProviders []oauth.Provider

	shutdownTracing tracing.Shutdown
}

// BuildInfrastructure wires default implementations from cfg. signingKey is the resolved JWT key.
func BuildInfrastructure(ctx context.Context, cfg *config.Config, signingKey, version string, logger *slog.Logger) (*Infrastructure, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required / 配置不能为空")
	}
	if logger == nil {
		logger = slog.Default()
	}

	cacheStore, err := cache.New(ctx, cache.Options{
		Driver:          cfg.Cache.Driver,
		Prefix:          "cliqshop",
		DefaultTTL:      cfg.Cache.DefaultTTL,
		CleanupInterval: cfg.Cache.CleanupInterval,
		Redis: cache.RedisOptions{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}

	tokenManager, err := token.NewManager(token.Options{
		SigningKey: []byte(signingKey),
		Issuer:     cfg.Auth.Issuer,
		Audience:   cfg.Auth.Audience,
		TTL:        cfg.Auth.TokenTTL,
		Leeway:     cfg.Auth.Leeway,
	})
	if err != nil {
		return nil, fmt.Errorf("token manager: %w", err)
	}

	hasher, err := hash.NewBcryptHasher(cfg.Auth.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("bcrypt hasher: %w", err)
	}

	rateLimiter, err := security.NewRateLimiter(cacheStore)
	if err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	publisher, err := events.New(ctx, events.Options{
		Driver:   cfg.Events.Driver,
		Producer: cfg.Events.Producer,
		AMQP:     events.AMQPOptions{URL: cfg.Events.AMQP.URL, Exchange: cfg.Events.AMQP.Exchange},
		Kafka:    events.KafkaOptions{Brokers: cfg.Events.Kafka.Brokers, Topic: cfg.Events.Kafka.Topic},
		// Publish only queues; the buffer's worker runs the broker retries.
		BufferSize: cfg.Events.BufferSize,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("events: %w", err)
	}

	shutdown, err := tracing.Init(tracing.Options{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		Endpoint:    cfg.Tracing.Endpoint,
		SampleRatio: cfg.Tracing.SampleRatio,
		Version:     version,
	})
	if err != nil {
		_ = publisher.Close()
		return nil, fmt.Errorf("tracing: %w", err)
	}

	renderer, err := notifier.NewRenderer()
	if err != nil {
		_ = publisher.Close()
		_ = shutdown(ctx)
		return nil, fmt.Errorf("email templates: %w", err)
	}

	queue := async.NewNotificationQueue()
	infra := &Infrastructure{
		Cache:           cacheStore,
		Token:           tokenManager,
		Hasher:          hasher,
		RateLimiter:     rateLimiter,
		Audit:           security.NewLoggerRecorder(logger),
		Queue:           queue,
		Notifier:        async.NewQueueNotifier(queue),
		Delivery:        notifier.WithRendering(renderer, notifier.NewLoggerService(logger)),
		Events:          publisher,
		shutdownTracing: shutdown,
	}

	if cfg.Realtime.Enabled {
		infra.Hub = realtime.NewHub(realtime.Options{AllowedOrigins: cfg.Realtime.AllowedOrigins, Logger: logger})
	}

	if strings.TrimSpace(cfg.Stripe.SecretKey) != "" {
		gateway, err := payment.NewStripeGateway(payment.StripeOptions{
			SecretKey:      cfg.Stripe.SecretKey,
			PublishableKey: cfg.Stripe.PublishableKey,
			WebhookSecret:  cfg.Stripe.WebhookSecret,
			Currency:       cfg.Stripe.Currency,
		})
		if err != nil {
			infra.Close(ctx)
			return nil, fmt.Errorf("stripe: %w", err)
		}
		infra.Gateway = gateway
	} else {
		logger.Warn("stripe secret key not set; payment endpoints are disabled")
	}

	if cfg.OAuth.Google.Enabled {
		redirect := cfg.OAuth.Google.RedirectURL
		if redirect == "" {
			redirect = strings.TrimRight(cfg.HTTP.PublicURL, "/") + "/api/auth/oauth2/google/callback"
		}
		google, err := oauth.NewGoogleProvider(oauth.GoogleOptions{
			ClientID:     cfg.OAuth.Google.ClientID,
			ClientSecret: cfg.OAuth.Google.ClientSecret,
			RedirectURL:  redirect,
			Scopes:       cfg.OAuth.Google.Scopes,
		})
		if err != nil {
			infra.Close(ctx)
			return nil, fmt.Errorf("google oauth: %w", err)
		}
		infra.OAuthProviders = append(infra.OAuthProviders, google)
	}

	return infra, nil
}

// Close releases broker connections and flushes spans.
func (i *Infrastructure) Close(ctx context.Context) error {
	if i == nil {
		return nil
	}
	var errs []error
	if i.Events != nil {
		errs = append(errs, i.Events.Close())
	}
	if i.shutdownTracing != nil {
		flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		errs = append(errs, i.shutdownTracing(flushCtx))
		cancel()
	}
	return errors.Join(errs...)
}
