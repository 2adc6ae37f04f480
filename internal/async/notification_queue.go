// 文件路径: internal/async/notification_queue.go
// 模块说明: 内存邮件发件箱。业务流程只入队，由 notify.email 定时任务批量投递；
// 队列有容量上限，满了丢弃最旧的邮件，同一收件人同一主题的待发邮件只保留一封。
package async

import (
	"context"
	"fmt"
	"maps"
	"strings"
	"sync"

	"github.com/cliqshop/shop/internal/notifier"
)

// DefaultQueueCapacity bounds pending email when no capacity is given.
const DefaultQueueCapacity = 1000

// NotificationQueue buffers outbound email for background dispatch.
type NotificationQueue struct {
	mu       sync.Mutex
	capacity int
	emails   []notifier.EmailRequest
	dropped  int
}

// NewNotificationQueue returns an empty queue. capacity <= 0 uses DefaultQueueCapacity.
func NewNotificationQueue(capacity ...int) *NotificationQueue {
	c := DefaultQueueCapacity
	if len(capacity) > 0 && capacity[0] > 0 {
		c = capacity[0]
	}
	return &NotificationQueue{capacity: c}
}

// EnqueueEmail appends req unless an identical notification is already waiting.
// Requests without a recipient are ignored.
func (q *NotificationQueue) EnqueueEmail(req notifier.EmailRequest) {
	req.To = normalizeRecipient(req.To)
	if q == nil || req.To == "" {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, pending := range q.emails {
		if sameNotification(pending, req) {
			return
		}
	}
	q.emails = append(q.emails, cloneEmailRequest(req))
	q.trimLocked()
}

// DrainEmails returns every pending request and empties the queue.
func (q *NotificationQueue) DrainEmails() []notifier.EmailRequest {
	if q == nil {
		return nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	drained := q.emails
	q.emails = nil
	return drained
}

// PendingEmails reports how many requests are waiting.
func (q *NotificationQueue) PendingEmails() int {
	if q == nil {
		return 0
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.emails)
}

// Dropped reports how many requests were discarded because the queue was full.
func (q *NotificationQueue) Dropped() int {
	if q == nil {
		return 0
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// RequeueEmail puts failed requests back in front of newer ones, keeping their order.
func (q *NotificationQueue) RequeueEmail(reqs ...notifier.EmailRequest) {
	if q == nil || len(reqs) == 0 {
		return
	}
	retry := make([]notifier.EmailRequest, 0, len(reqs))
	for _, req := range reqs {
		if req.To = normalizeRecipient(req.To); req.To != "" {
			retry = append(retry, cloneEmailRequest(req))
		}
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.emails = append(retry, q.emails...)
	q.trimLocked()
}

func (q *NotificationQueue) trimLocked() {
	if over := len(q.emails) - q.capacity; over > 0 {
		q.emails = q.emails[over:]
		q.dropped += over
	}
}

// QueueNotifier satisfies notifier.Service for request flows: SendEmail only enqueues,
// so checkout and registration never wait on mail delivery.
type QueueNotifier struct {
	queue *NotificationQueue
}

// NewQueueNotifier wraps queue as a notifier.Service.
func NewQueueNotifier(queue *NotificationQueue) notifier.Service {
	return &QueueNotifier{queue: queue}
}

// SendEmail enqueues req. It fails only when no queue is configured or ctx is already done.
func (n *QueueNotifier) SendEmail(ctx context.Context, req notifier.EmailRequest) error {
	if n == nil || n.queue == nil {
		return fmt.Errorf("notification queue unavailable / 通知队列不可用")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	n.queue.EnqueueEmail(req)
	return nil
}

func normalizeRecipient(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

func sameNotification(a, b notifier.EmailRequest) bool {
	return a.To == b.To && a.Template == b.Template && a.Subject == b.Subject && a.Body == b.Body
}

func cloneEmailRequest(req notifier.EmailRequest) notifier.EmailRequest {
	if len(req.Variables) > 0 {
		req.Variables = maps.Clone(req.Variables)
	}
	return req
}
