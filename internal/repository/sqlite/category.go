package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cliqshop/shop/internal/repository"
)

const categoryColumns = `id, name, description, created_at, updated_at`

type categoryRepo struct {
	db querier
}

func (r *categoryRepo) FindByID(ctx context.Context, id int64) (*repository.Category, error) {
	return scanCategory(r.db.QueryRowContext(ctx, `SELECT `+categoryColumns+` FROM categories WHERE id = ?`, id))
}

func (r *categoryRepo) FindByName(ctx context.Context, name string) (*repository.Category, error) {
	const query = `SELECT ` + categoryColumns + ` FROM categories WHERE name = ? COLLATE NOCASE LIMIT 1`
	return scanCategory(r.db.QueryRowContext(ctx, query, strings.TrimSpace(name)))
}

func (r *categoryRepo) List(ctx context.Context) ([]*repository.Category, error) {
	return r.query(ctx, `SELECT `+categoryColumns+` FROM categories ORDER BY name ASC`)
}

func (r *categoryRepo) Recent(ctx context.Context, limit int) ([]*repository.Category, error) {
	limit, _ = limitOffset(limit, 0)
	return r.query(ctx, `SELECT `+categoryColumns+` FROM categories ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
}

func (r *categoryRepo) Create(ctx context.Context, category *repository.Category) (*repository.Category, error) {
	if category == nil {
		return nil, fmt.Errorf("category is required / 分类数据不能为空")
	}
	now := time.Now().Unix()
	category.CreatedAt, category.UpdatedAt = now, now
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO categories(name, description, created_at, updated_at) VALUES(?, ?, ?, ?)`,
		category.Name, category.Description, category.CreatedAt, category.UpdatedAt)
	if err != nil {
		return nil, constraint(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	category.ID = id
	return category, nil
}

func (r *categoryRepo) Update(ctx context.Context, category *repository.Category) error {
	category.UpdatedAt = time.Now().Unix()
	res, err := r.db.ExecContext(ctx,
		`UPDATE categories SET name = ?, description = ?, updated_at = ? WHERE id = ?`,
		category.Name, category.Description, category.UpdatedAt, category.ID)
	if err != nil {
		return constraint(err)
	}
	return affected(res, nil)
}

func (r *categoryRepo) Delete(ctx context.Context, id int64) error {
	return affected(r.db.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id))
}

func (r *categoryRepo) Count(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM categories`).Scan(&total)
	return total, err
}

func (r *categoryRepo) query(ctx context.Context, query string, args ...any) ([]*repository.Category, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []*repository.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	return list, rows.Err()
}

func scanCategory(row rowScanner) (*repository.Category, error) {
	var c repository.Category
	if err := row.Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}
