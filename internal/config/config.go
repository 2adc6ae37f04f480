package config

import (
	"log/slog"
	"time"
)

// Config 汇总应用的全部配置。
type Config struct {
	HTTP      HTTPConfig      `mapstructure:"http"`
	Log       LogConfig       `mapstructure:"log"`
	DB        DBConfig        `mapstructure:"database"`
	Auth      AuthConfig      `mapstructure:"auth"`
	OAuth     OAuthConfig     `mapstructure:"oauth"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Stripe    StripeConfig    `mapstructure:"stripe"`
	Events    EventsConfig    `mapstructure:"events"`
	Realtime  RealtimeConfig  `mapstructure:"realtime"`
	Inventory InventoryConfig `mapstructure:"inventory"`
	Jobs      JobsConfig      `mapstructure:"jobs"`
	I18n      I18nConfig      `mapstructure:"i18n"`
}

// HTTPConfig 定义 HTTP 服务配置。
type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// PublicURL is used to build OAuth redirect and Stripe return URLs when they are not set.
	PublicURL string `mapstructure:"public_url"`
	// RateLimit is requests per RateWindow per client IP; zero disables limiting.
	RateLimit   int           `mapstructure:"rate_limit"`
	RateWindow  time.Duration `mapstructure:"rate_window"`
	CORSOrigins []string      `mapstructure:"cors_origins"`
	// ReadTimeout bounds reading a whole request; IdleTimeout bounds keep-alive connections.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`
}

// LogConfig 定义日志配置。
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Format      string `mapstructure:"format"`
	AddSource   bool   `mapstructure:"add_source"`
	Environment string `mapstructure:"environment"`
}

// DBConfig 定义数据库配置。
type DBConfig struct {
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
}

// AuthConfig 定义认证配置。
type AuthConfig struct {
	SigningKey string        `mapstructure:"signing_key"`
	TokenTTL   time.Duration `mapstructure:"token_ttl"`
	RefreshTTL time.Duration `mapstructure:"refresh_ttl"`
	Issuer     string        `mapstructure:"issuer"`
	Audience   string        `mapstructure:"audience"`
	Leeway     time.Duration `mapstructure:"leeway"`
	BcryptCost int           `mapstructure:"bcrypt_cost"`
}

// OAuthConfig 定义第三方登录配置。
type OAuthConfig struct {
	Google OAuthProviderConfig `mapstructure:"google"`
	// FrontendRedirect receives the issued token after a successful callback, when set.
	FrontendRedirect string `mapstructure:"frontend_redirect"`
}

type OAuthProviderConfig struct {
	Enabled      bool     `mapstructure:"enabled"`
	ClientID     string   `mapstructure:"client_id"`
	ClientSecret string   `mapstructure:"client_secret"`
	RedirectURL  string   `mapstructure:"redirect_url"`
	Scopes       []string `mapstructure:"scopes"`
}

// MetricsConfig 定义 Prometheus 指标配置。
type MetricsConfig struct {
	Enabled   bool      `mapstructure:"enabled"`
	Namespace string    `mapstructure:"namespace"`
	Subsystem string    `mapstructure:"subsystem"`
	Token     string    `mapstructure:"token"`
	Buckets   []float64 `mapstructure:"buckets"`
}

// TracingConfig 定义链路追踪配置。
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	ServiceName string  `mapstructure:"service_name"`
	Endpoint    string  `mapstructure:"endpoint"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

// CacheConfig selects the cache backend. Driver is "memory" or "redis".
type CacheConfig struct {
	Driver          string        `mapstructure:"driver"`
	DefaultTTL      time.Duration `mapstructure:"default_ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	Redis           RedisConfig   `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// StripeConfig 定义支付网关配置。
type StripeConfig struct {
	SecretKey      string `mapstructure:"secret_key"`
	PublishableKey string `mapstructure:"publishable_key"`
	WebhookSecret  string `mapstructure:"webhook_secret"`
	Currency       string `mapstructure:"currency"`
	SuccessURL     string `mapstructure:"success_url"`
	CancelURL      string `mapstructure:"cancel_url"`
}

// EventsConfig 定义领域事件投递配置。Driver 取值 none、amqp、kafka。
type EventsConfig struct {
	Driver   string      `mapstructure:"driver"`
	Producer string      `mapstructure:"producer"`
	AMQP     AMQPConfig  `mapstructure:"amqp"`
	Kafka    KafkaConfig `mapstructure:"kafka"`
	// BufferSize bounds events waiting for the broker. Events beyond it are dropped and logged.
	BufferSize int `mapstructure:"buffer_size"`
}

type AMQPConfig struct {
	URL      string `mapstructure:"url"`
	Exchange string `mapstructure:"exchange"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// RealtimeConfig 定义商品变更推送配置。
type RealtimeConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type InventoryConfig struct {
	LowStockThreshold int `mapstructure:"low_stock_threshold"`
}

// I18nConfig points at optional locale overrides. Files named <lang>.json there are merged
// over the embedded catalogs.
type I18nConfig struct {
	LocalesDir string `mapstructure:"locales_dir"`
}

// JobsConfig holds cron specs for background jobs. An empty spec disables the job.
type JobsConfig struct {
	SendEmail       string        `mapstructure:"send_email"`
	LowStockAlert   string        `mapstructure:"low_stock_alert"`
	LoginLogCleanup string        `mapstructure:"login_log_cleanup"`
	LoginLogMaxAge  time.Duration `mapstructure:"login_log_max_age"`
	AlertEmail      string        `mapstructure:"alert_email"`
}

func (c LogConfig) SlogLevel() slog.Level {
	switch c.Level {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
