package job

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cliqshop/shop/internal/repository"
)

// LoginLogCleanupJob prunes old login logs and expired refresh tokens.
type LoginLogCleanupJob struct {
	LoginLogs repository.LoginLogRepository
	Tokens    repository.TokenRepository
	MaxAge    time.Duration
	Logger    *slog.Logger
	Now       func() time.Time
}

// NewLoginLogCleanupJob creates a new LoginLogCleanupJob. A zero maxAge keeps ninety days.
func NewLoginLogCleanupJob(logs repository.LoginLogRepository, tokens repository.TokenRepository, maxAge time.Duration, logger *slog.Logger) *LoginLogCleanupJob {
	if logger == nil {
		logger = slog.Default()
	}
	if maxAge <= 0 {
		maxAge = 90 * 24 * time.Hour
	}
	return &LoginLogCleanupJob{LoginLogs: logs, Tokens: tokens, MaxAge: maxAge, Logger: logger, Now: time.Now}
}

// Name implements Runnable interface.
func (j *LoginLogCleanupJob) Name() string {
	return "login_log.cleanup"
}

// Run implements Runnable interface.
func (j *LoginLogCleanupJob) Run(ctx context.Context) error {
	if j == nil || j.LoginLogs == nil {
		return fmt.Errorf("login log cleanup job dependencies not configured / 登录日志清理任务依赖未配置")
	}
	now := j.Now()

	deleted, err := j.LoginLogs.DeleteBefore(ctx, now.Add(-j.MaxAge).Unix())
	if err != nil {
		return fmt.Errorf("login log cleanup job: %w", err)
	}
	if deleted > 0 {
		j.Logger.Info("cleaned up old login logs", "deleted_rows", deleted)
	}

	if j.Tokens != nil {
		expired, err := j.Tokens.DeleteExpired(ctx, now.Unix())
		if err != nil {
			return fmt.Errorf("refresh token cleanup: %w", err)
		}
		if expired > 0 {
			j.Logger.Info("cleaned up expired refresh tokens", "deleted_rows", expired)
		}
	}
	return nil
}
