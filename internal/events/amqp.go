package events

import (
	"context"
	"fmt"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AMQPOptions 配置 RabbitMQ 连接。事件以事件名作为 routing key 发到 topic exchange。
type AMQPOptions struct {
	URL      string
	Exchange string
}

// amqpChannel is the subset of *amqp.Channel used for publishing.
type amqpChannel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type amqpSender struct {
	conn     *amqp.Connection
	ch       amqpChannel
	exchange string
}

func dialAMQP(opts AMQPOptions) (*amqpSender, error) {
	url := strings.TrimSpace(opts.URL)
	if url == "" {
		return nil, fmt.Errorf("amqp url is required / 缺少 AMQP 地址")
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	s, err := newAMQPSender(ch, opts.Exchange)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	s.conn = conn
	return s, nil
}

func newAMQPSender(ch amqpChannel, exchange string) (*amqpSender, error) {
	exchange = strings.TrimSpace(exchange)
	if exchange == "" {
		exchange = "cliqshop.events"
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return &amqpSender{ch: ch, exchange: exchange}, nil
}

// send uses the event id as MessageId so consumers can dedupe redeliveries. The aggregate
// key travels as CorrelationId and the partition-key header.
func (s *amqpSender) send(ctx context.Context, msg message) error {
	pubCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return s.ch.PublishWithContext(pubCtx, s.exchange, msg.Name, false, false, amqp.Publishing{
		Headers:       amqp.Table{"partition-key": msg.Key},
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		MessageId:     msg.ID,
		CorrelationId: msg.Key,
		Timestamp:     time.Now().UTC(),
		Type:          msg.Name,
		Body:          msg.Body,
	})
}

func (s *amqpSender) Close() error {
	err := s.ch.Close()
	if s.conn != nil {
		if cerr := s.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
