// 文件路径: internal/job/send_email.go
// 模块说明: 定时清空邮件队列并交给真实通知通道投递，失败的邮件放回队列。
package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cliqshop/shop/internal/async"
	"github.com/cliqshop/shop/internal/notifier"
)

// SendEmailJob 处理邮件通知队列。
type SendEmailJob struct {
	Queue    *async.NotificationQueue
	Notifier notifier.Service
	Logger   *slog.Logger
}

// NewSendEmailJob 构造邮件通知任务。
func NewSendEmailJob(queue *async.NotificationQueue, delivery notifier.Service, logger *slog.Logger) *SendEmailJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &SendEmailJob{Queue: queue, Notifier: delivery, Logger: logger}
}

// Name 返回任务标识。
func (j *SendEmailJob) Name() string { return "notify.email" }

// Run 发送邮件通知。遇到投递错误时当前与剩余的邮件都会回到队列头部。
func (j *SendEmailJob) Run(ctx context.Context) error {
	if j == nil || j.Queue == nil || j.Notifier == nil {
		return fmt.Errorf("email notification job dependencies not configured / 邮件通知任务依赖未配置")
	}
	emails := j.Queue.DrainEmails()
	if len(emails) == 0 {
		return nil
	}
	sent := 0
	for i, req := range emails {
		if err := ctx.Err(); err != nil {
			j.Queue.RequeueEmail(emails[i:]...)
			return err
		}
		if err := j.Notifier.SendEmail(ctx, req); err != nil {
			if errors.Is(err, notifier.ErrNotImplemented) || errors.Is(err, notifier.ErrUnknownTemplate) {
				j.Logger.Warn("notification email not delivered", "to", req.To, "template", req.Template, "reason", err)
				continue
			}
			j.Queue.RequeueEmail(emails[i:]...)
			return fmt.Errorf("send email to %s: %w", req.To, err)
		}
		sent++
	}
	j.Logger.Debug("email notifications sent", "count", sent)
	return nil
}
