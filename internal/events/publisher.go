// 文件路径: internal/events/publisher.go
// 模块说明: 领域事件发布。driver 为 none 时丢弃事件，amqp/kafka 时经缓冲队列异步投递到消息中间件，并带指数退避重试。
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Publisher 发布领域事件。
type Publisher interface {
	Publish(ctx context.Context, name, key string, payload any) error
	Close() error
}

// Options 配置事件发布。
type Options struct {
	Driver   string
	Producer string
	AMQP     AMQPOptions
	Kafka    KafkaOptions
	Retry    RetryConfig
	// BufferSize bounds the events waiting for the broker. Zero uses DefaultBufferSize.
	BufferSize int
	Logger     *slog.Logger
}

// RetryConfig 控制发布失败后的重试。
type RetryConfig struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func normalizeRetry(cfg RetryConfig) RetryConfig {
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = 200 * time.Millisecond
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = 2 * time.Second
	}
	return cfg
}

// New connects the configured driver. Unknown drivers are rejected.
func New(ctx context.Context, opts Options) (Publisher, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	producer := strings.TrimSpace(opts.Producer)
	if producer == "" {
		producer = "cliqshop"
	}

	var transport sender
	switch strings.ToLower(strings.TrimSpace(opts.Driver)) {
	case "", "none":
		return Noop{}, nil
	case "amqp", "rabbitmq":
		s, err := dialAMQP(opts.AMQP)
		if err != nil {
			return nil, err
		}
		transport = s
	case "kafka":
		s, err := newKafkaSender(opts.Kafka)
		if err != nil {
			return nil, err
		}
		transport = s
	default:
		return nil, fmt.Errorf("unsupported events driver %q / 不支持的事件驱动", opts.Driver)
	}
	return NewBuffered(newPublisher(transport, producer, opts.Retry, logger), opts.BufferSize, logger), nil
}

// message is one encoded envelope addressed to a broker.
type message struct {
	// ID is the envelope event id, unique per publish.
	ID   string
	Name string
	// Key orders events of one aggregate, e.g. "order-42".
	Key  string
	Body []byte
}

// sender moves one message to a broker.
type sender interface {
	send(ctx context.Context, msg message) error
	Close() error
}

type publisher struct {
	transport sender
	producer  string
	retry     RetryConfig
	logger    *slog.Logger
}

func newPublisher(transport sender, producer string, retry RetryConfig, logger *slog.Logger) *publisher {
	return &publisher{
		transport: transport,
		producer:  producer,
		retry:     normalizeRetry(retry),
		logger:    logger.With("component", "events"),
	}
}

func (p *publisher) Publish(ctx context.Context, name, key string, payload any) error {
	env := NewEnvelope(name, key, p.producer, payload)
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal %s envelope: %w", name, err)
	}
	msg := message{ID: env.EventID, Name: name, Key: key, Body: body}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = p.retry.InitialInterval
	policy.MaxInterval = p.retry.MaxInterval
	b := backoff.WithContext(backoff.WithMaxRetries(policy, p.retry.MaxRetries), ctx)

	attempt := 0
	err = backoff.Retry(func() error {
		attempt++
		sendErr := p.transport.send(ctx, msg)
		if sendErr != nil {
			p.logger.WarnContext(ctx, "publish event failed", "event", name, "attempt", attempt, "error", sendErr)
		}
		return sendErr
	}, b)
	if err != nil {
		return fmt.Errorf("publish %s: %w", name, err)
	}
	p.logger.DebugContext(ctx, "event published", "event", name, "event_id", env.EventID, "key", key)
	return nil
}

func (p *publisher) Close() error {
	return p.transport.Close()
}

// Noop drops every event.
type Noop struct{}

func (Noop) Publish(context.Context, string, string, any) error { return nil }
func (Noop) Close() error                                       { return nil }
