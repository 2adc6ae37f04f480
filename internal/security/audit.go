package security

import (
	"context"
	"io"
	"log/slog"
	"time"
)

// Audit event kinds.
const (
	EventLoginSuccess    = "auth.login.success"
	EventLoginFailure    = "auth.login.failure"
	EventRegister        = "auth.register"
	EventOAuthProvision  = "auth.oauth.provision"
	EventPasswordChange  = "user.password.change"
	EventUserStatus      = "admin.user.status"
	EventOrderCancel     = "order.cancel"
	EventWebhookRejected = "payment.webhook.rejected"
)

// Event 表示安全相关的行为（如登录或后台操作）。
type Event struct {
	Kind      string
	ActorID   string
	IP        string
	UserAgent string
	Metadata  map[string]any
	Occurred  time.Time
}

// Recorder 记录安全事件，供后续分析。
type Recorder interface {
	Record(ctx context.Context, event Event)
}

// LoggerRecorder 将审计事件写入 slog.Logger。
type LoggerRecorder struct {
	logger *slog.Logger
}

// NewLoggerRecorder 返回记录器，写入指定 logger（为空时丢弃）。
func NewLoggerRecorder(logger *slog.Logger) *LoggerRecorder {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &LoggerRecorder{logger: logger.With("component", "audit")}
}

func (r *LoggerRecorder) Record(ctx context.Context, event Event) {
	if r == nil || r.logger == nil {
		return
	}
	if event.Occurred.IsZero() {
		event.Occurred = time.Now().UTC()
	}
	attrs := []any{"kind", event.Kind, "actor_id", event.ActorID, "occurred", event.Occurred.Format(time.RFC3339)}
	if event.IP != "" {
		attrs = append(attrs, "ip", event.IP)
	}
	if event.UserAgent != "" {
		attrs = append(attrs, "ua", event.UserAgent)
	}
	if len(event.Metadata) > 0 {
		attrs = append(attrs, "metadata", event.Metadata)
	}
	r.logger.InfoContext(ctx, "audit event", attrs...)
}
