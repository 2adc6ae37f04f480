// 文件路径: internal/repository/sqlite/token.go
// 模块说明: 刷新令牌的持久化。
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/cliqshop/shop/internal/repository"
)

// tokenRepo stores issued refresh tokens.
type tokenRepo struct {
	db querier
}

func (r *tokenRepo) Create(ctx context.Context, token *repository.RefreshToken) (*repository.RefreshToken, error) {
	if token == nil {
		return nil, fmt.Errorf("refresh token is required / 刷新令牌数据为空")
	}
	if token.UserID == 0 || strings.TrimSpace(token.Token) == "" {
		return nil, fmt.Errorf("userID and token are required / userID 和 token 不能为空")
	}
	if token.CreatedAt == 0 {
		token.CreatedAt = time.Now().Unix()
	}
	const stmt = `INSERT INTO refresh_tokens(user_id, token, user_agent, ip, expires_at, revoked, created_at)
		VALUES(?, ?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, stmt,
		token.UserID,
		token.Token,
		nullableString(token.UserAgent),
		nullableString(token.IP),
		token.ExpiresAt,
		boolToInt(token.Revoked),
		token.CreatedAt,
	)
	if err != nil {
		return nil, constraint(err)
	}
	if id, err := res.LastInsertId(); err == nil {
		token.ID = id
	}
	return token, nil
}

func (r *tokenRepo) FindByToken(ctx context.Context, token string) (*repository.RefreshToken, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return nil, repository.ErrNotFound
	}
	const query = `SELECT id, user_id, token, user_agent, ip, expires_at, revoked, created_at
		FROM refresh_tokens WHERE token = ? LIMIT 1`
	var (
		rec     repository.RefreshToken
		ua, ip  sql.NullString
		revoked int
	)
	if err := r.db.QueryRowContext(ctx, query, trimmed).Scan(
		&rec.ID,
		&rec.UserID,
		&rec.Token,
		&ua,
		&ip,
		&rec.ExpiresAt,
		&revoked,
		&rec.CreatedAt,
	); err != nil {
		return nil, notFound(err)
	}
	rec.UserAgent = ua.String
	rec.IP = ip.String
	rec.Revoked = revoked == 1
	return &rec, nil
}

func (r *tokenRepo) Revoke(ctx context.Context, token string) error {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return nil
	}
	_, err := r.db.ExecContext(ctx, `UPDATE refresh_tokens SET revoked = 1 WHERE token = ?`, trimmed)
	return err
}

func (r *tokenRepo) RevokeByUser(ctx context.Context, userID int64) error {
	if userID <= 0 {
		return nil
	}
	_, err := r.db.ExecContext(ctx, `UPDATE refresh_tokens SET revoked = 1 WHERE user_id = ?`, userID)
	return err
}

func (r *tokenRepo) DeleteExpired(ctx context.Context, now int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE expires_at < ? OR revoked = 1`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
