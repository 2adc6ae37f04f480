// 文件路径: internal/notifier/notifier.go
// 模块说明: 邮件通知抽象。默认实现只写日志，真实投递通道可替换 Service。
package notifier

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Email templates understood by delivery backends.
const (
	TemplateWelcome           = "welcome"
	TemplateOrderConfirmation = "order_confirmation"
	TemplateLowStockAlert     = "low_stock_alert"
)

// EmailRequest 描述邮件通知请求。
type EmailRequest struct {
	To        string
	Subject   string
	Template  string
	Body      string
	Variables map[string]any
}

// Service 发送通知。
type Service interface {
	SendEmail(ctx context.Context, req EmailRequest) error
}

// ErrNotImplemented 表示未配置真实通知通道。
var ErrNotImplemented = errors.New("notifier: not implemented")

// LoggerService 将通知意图写入日志，适用于测试或未配置邮件通道的部署。
type LoggerService struct {
	logger *slog.Logger
}

// NewLoggerService 创建仅记录日志的通知服务。
func NewLoggerService(logger *slog.Logger) *LoggerService {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &LoggerService{logger: logger.With("component", "notifier")}
}

// SendEmail 记录邮件通知请求。
func (s *LoggerService) SendEmail(ctx context.Context, req EmailRequest) error {
	if strings.TrimSpace(req.To) == "" {
		return fmt.Errorf("recipient is required / 收件人不能为空")
	}
	s.logger.InfoContext(ctx, "email notification", "to", req.To, "subject", req.Subject, "template", req.Template, "body_bytes", len(req.Body))
	return ErrNotImplemented
}
