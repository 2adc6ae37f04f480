package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChannel struct {
	mu         sync.Mutex
	declared   []string
	published  []amqp.Publishing
	keys       []string
	failures   int
	declareErr error
}

func (f *fakeChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	f.declared = append(f.declared, name+":"+kind)
	return f.declareErr
}

func (f *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return errors.New("channel closed")
	}
	f.keys = append(f.keys, exchange+"/"+key)
	f.published = append(f.published, msg)
	return nil
}

func (f *fakeChannel) Close() error { return nil }

type fakeWriter struct {
	msgs []kafka.Message
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastRetry() RetryConfig {
	return RetryConfig{MaxRetries: 3, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}
}

func TestAMQPPublishWrapsPayloadInEnvelope(t *testing.T) {
	ch := &fakeChannel{}
	s, err := newAMQPSender(ch, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"cliqshop.events:topic"}, ch.declared)

	p := newPublisher(s, "cliqshop-test", fastRetry(), quietLogger())
	err = p.Publish(context.Background(), OrderPlaced, "42", OrderPayload{OrderID: 42, UserID: 7, Status: "PENDING", TotalAmount: "25.00"})
	require.NoError(t, err)

	require.Len(t, ch.published, 1)
	assert.Equal(t, "cliqshop.events/order.placed", ch.keys[0])
	assert.Equal(t, "application/json", ch.published[0].ContentType)
	assert.Equal(t, amqp.Persistent, ch.published[0].DeliveryMode)

	var env EventEnvelope[OrderPayload]
	require.NoError(t, json.Unmarshal(ch.published[0].Body, &env))
	require.NoError(t, env.Validate(OrderPlaced))
	assert.Equal(t, "cliqshop-test", env.Producer)
	assert.Equal(t, int64(42), env.Payload.OrderID)
	assert.Equal(t, "25.00", env.Payload.TotalAmount)
	assert.NotEmpty(t, env.EventID)
	assert.Equal(t, env.EventID, ch.published[0].MessageId)
}

func TestAMQPMessageIDIsUniquePerEvent(t *testing.T) {
	ch := &fakeChannel{}
	s, err := newAMQPSender(ch, "shop")
	require.NoError(t, err)

	p := newPublisher(s, "cliqshop", fastRetry(), quietLogger())
	require.NoError(t, p.Publish(context.Background(), OrderPlaced, "order-7", OrderPayload{OrderID: 7}))
	require.NoError(t, p.Publish(context.Background(), PaymentSucceeded, "order-7", PaymentPayload{OrderID: 7}))
	require.Len(t, ch.published, 2)

	ids := make([]string, 0, 2)
	for _, msg := range ch.published {
		var env EventEnvelope[json.RawMessage]
		require.NoError(t, json.Unmarshal(msg.Body, &env))
		assert.Equal(t, env.EventID, msg.MessageId)
		assert.Equal(t, "order-7", msg.CorrelationId)
		assert.Equal(t, "order-7", msg.Headers["partition-key"])
		ids = append(ids, msg.MessageId)
	}
	assert.NotEqual(t, ids[0], ids[1])
}

func TestAMQPPublishRetriesTransientFailures(t *testing.T) {
	ch := &fakeChannel{failures: 2}
	s, err := newAMQPSender(ch, "shop")
	require.NoError(t, err)

	p := newPublisher(s, "cliqshop", fastRetry(), quietLogger())
	require.NoError(t, p.Publish(context.Background(), PaymentSucceeded, "1", PaymentPayload{OrderID: 1}))
	assert.Len(t, ch.published, 1)
}

func TestAMQPPublishGivesUpAfterMaxRetries(t *testing.T) {
	ch := &fakeChannel{failures: 10}
	s, err := newAMQPSender(ch, "shop")
	require.NoError(t, err)

	p := newPublisher(s, "cliqshop", fastRetry(), quietLogger())
	err = p.Publish(context.Background(), PaymentFailed, "1", PaymentPayload{OrderID: 1})
	require.Error(t, err)
	assert.Empty(t, ch.published)
}

func TestAMQPSenderDeclareFailure(t *testing.T) {
	_, err := newAMQPSender(&fakeChannel{declareErr: errors.New("access refused")}, "shop")
	require.Error(t, err)
}

func TestKafkaSenderKeysByPartition(t *testing.T) {
	w := &fakeWriter{}
	p := newPublisher(&kafkaSender{writer: w}, "cliqshop", fastRetry(), quietLogger())

	require.NoError(t, p.Publish(context.Background(), OrderCancelled, "9", OrderPayload{OrderID: 9}))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, []byte("9"), w.msgs[0].Key)

	carrier := headerCarrier(w.msgs[0].Headers)
	assert.Equal(t, OrderCancelled, carrier.Get("event-name"))

	var env EventEnvelope[OrderPayload]
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &env))
	assert.Equal(t, env.EventID, carrier.Get("event-id"))
}

func TestNewRejectsUnknownDriver(t *testing.T) {
	_, err := New(context.Background(), Options{Driver: "nats"})
	require.Error(t, err)

	p, err := New(context.Background(), Options{Driver: "none"})
	require.NoError(t, err)
	assert.IsType(t, Noop{}, p)
	assert.NoError(t, p.Publish(context.Background(), OrderPlaced, "1", nil))
}

// gatedPublisher blocks every Publish until gate is closed.
type gatedPublisher struct {
	gate    chan struct{}
	started chan struct{}

	mu      sync.Mutex
	names   []string
	ctxErrs []error
	closed  bool
}

func newGatedPublisher() *gatedPublisher {
	return &gatedPublisher{gate: make(chan struct{}), started: make(chan struct{}, 16)}
}

func (g *gatedPublisher) Publish(ctx context.Context, name, key string, payload any) error {
	g.started <- struct{}{}
	<-g.gate
	g.mu.Lock()
	defer g.mu.Unlock()
	g.names = append(g.names, name)
	g.ctxErrs = append(g.ctxErrs, ctx.Err())
	return nil
}

func (g *gatedPublisher) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
	return nil
}

func TestBufferedPublishDoesNotWaitForBroker(t *testing.T) {
	inner := newGatedPublisher()
	b := NewBuffered(inner, 4, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, b.Publish(ctx, OrderPlaced, "order-1", OrderPayload{OrderID: 1}))
	require.NoError(t, b.Publish(ctx, PaymentSucceeded, "order-1", PaymentPayload{OrderID: 1}))
	cancel()

	close(inner.gate)
	require.NoError(t, b.Close())

	assert.Equal(t, []string{OrderPlaced, PaymentSucceeded}, inner.names)
	assert.Equal(t, []error{nil, nil}, inner.ctxErrs)
	assert.True(t, inner.closed)
}

func TestBufferedDropsWhenFull(t *testing.T) {
	inner := newGatedPublisher()
	b := NewBuffered(inner, 1, quietLogger())
	ctx := context.Background()

	require.NoError(t, b.Publish(ctx, OrderPlaced, "order-1", nil))
	<-inner.started
	require.NoError(t, b.Publish(ctx, OrderPlaced, "order-2", nil))

	err := b.Publish(ctx, OrderPlaced, "order-3", nil)
	require.ErrorIs(t, err, ErrBufferFull)
	assert.EqualValues(t, 1, b.Dropped())

	close(inner.gate)
	require.NoError(t, b.Close())
	assert.Len(t, inner.names, 2)
}

func TestBufferedRejectsAfterClose(t *testing.T) {
	inner := newGatedPublisher()
	close(inner.gate)
	b := NewBuffered(inner, 0, nil)

	require.NoError(t, b.Close())
	require.NoError(t, b.Close())
	require.ErrorIs(t, b.Publish(context.Background(), OrderPlaced, "order-1", nil), ErrClosed)
	assert.Empty(t, inner.names)
}

func TestKafkaRequiresBrokers(t *testing.T) {
	_, err := New(context.Background(), Options{Driver: "kafka"})
	require.Error(t, err)
}
