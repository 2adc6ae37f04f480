package events

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
)

// DefaultBufferSize is used when Options.BufferSize is not set.
const DefaultBufferSize = 256

var (
	// ErrBufferFull is returned when the broker falls behind and the event is dropped.
	ErrBufferFull = errors.New("events: publish buffer full / 事件缓冲区已满")
	// ErrClosed is returned by Publish after Close.
	ErrClosed = errors.New("events: publisher closed / 事件发布器已关闭")
)

type queuedEvent struct {
	ctx     context.Context
	name    string
	key     string
	payload any
}

// Buffered hands events to one background worker, so callers never wait on broker
// retries. Events keep their publish order.
type Buffered struct {
	next    Publisher
	queue   chan queuedEvent
	done    chan struct{}
	logger  *slog.Logger
	dropped atomic.Int64

	mu     sync.RWMutex
	closed bool
}

// NewBuffered starts the worker that feeds next. size <= 0 uses DefaultBufferSize.
func NewBuffered(next Publisher, size int, logger *slog.Logger) *Buffered {
	if size <= 0 {
		size = DefaultBufferSize
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	b := &Buffered{
		next:   next,
		queue:  make(chan queuedEvent, size),
		done:   make(chan struct{}),
		logger: logger.With("component", "events"),
	}
	go b.run()
	return b
}

// Publish queues the event and returns at once. The request context is detached from
// cancellation so the event outlives the request, while trace values are kept.
func (b *Buffered) Publish(ctx context.Context, name, key string, payload any) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}
	select {
	case b.queue <- queuedEvent{ctx: context.WithoutCancel(ctx), name: name, key: key, payload: payload}:
		return nil
	default:
		b.dropped.Add(1)
		return fmt.Errorf("%w: %s", ErrBufferFull, name)
	}
}

// Dropped reports how many events were rejected because the buffer was full.
func (b *Buffered) Dropped() int64 {
	return b.dropped.Load()
}

func (b *Buffered) run() {
	defer close(b.done)
	for evt := range b.queue {
		if err := b.next.Publish(evt.ctx, evt.name, evt.key, evt.payload); err != nil {
			b.logger.WarnContext(evt.ctx, "event lost after retries", "event", evt.name, "key", evt.key, "error", err)
		}
	}
}

// Close stops accepting events, waits for the queued ones and closes next.
func (b *Buffered) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	close(b.queue)
	b.mu.Unlock()

	<-b.done
	return b.next.Close()
}
