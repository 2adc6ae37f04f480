// 文件路径: internal/repository/sqlite/login_log.go
// 模块说明: 登录日志写入与按时间清理。
package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cliqshop/shop/internal/repository"
)

// loginLogRepo persists login attempts for auditing.
type loginLogRepo struct {
	db querier
}

func (r *loginLogRepo) Create(ctx context.Context, entry *repository.LoginLog) error {
	if entry == nil {
		return fmt.Errorf("login log entry is required / 登录日志条目不能为空")
	}
	if strings.TrimSpace(entry.Identifier) == "" {
		return fmt.Errorf("login log identifier is required / 登录日志账号不能为空")
	}
	if entry.CreatedAt == 0 {
		entry.CreatedAt = time.Now().Unix()
	}
	var userID any
	if entry.UserID != nil && *entry.UserID > 0 {
		userID = *entry.UserID
	}
	const stmt = `INSERT INTO login_logs(user_id, identifier, ip, user_agent, success, reason, created_at)
		VALUES(?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, stmt,
		userID,
		entry.Identifier,
		nullableString(entry.IP),
		nullableString(entry.UserAgent),
		boolToInt(entry.Success),
		nullableString(entry.Reason),
		entry.CreatedAt,
	)
	return err
}

func (r *loginLogRepo) DeleteBefore(ctx context.Context, before int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM login_logs WHERE created_at < ?`, before)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
