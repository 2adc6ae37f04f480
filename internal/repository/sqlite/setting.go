package sqlite

import (
	"context"
	"time"

	"github.com/cliqshop/shop/internal/repository"
)

type settingRepo struct {
	db querier
}

func (r *settingRepo) Get(ctx context.Context, key string) (*repository.Setting, error) {
	const query = `SELECT key, value, category, updated_at FROM settings WHERE key = ?`
	var s repository.Setting
	if err := r.db.QueryRowContext(ctx, query, key).Scan(&s.Key, &s.Value, &s.Category, &s.UpdatedAt); err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

func (r *settingRepo) Upsert(ctx context.Context, setting *repository.Setting) error {
	if setting.UpdatedAt == 0 {
		setting.UpdatedAt = time.Now().Unix()
	}
	const stmt = `INSERT INTO settings(key, value, category, updated_at) VALUES(?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, category = excluded.category, updated_at = excluded.updated_at`
	_, err := r.db.ExecContext(ctx, stmt, setting.Key, setting.Value, setting.Category, setting.UpdatedAt)
	return err
}
