// 文件路径: internal/repository/sqlite/product.go
// 模块说明: 商品表读写，列表查询会联表带出分类名称。
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/cliqshop/shop/internal/repository"
)

const productSelect = `SELECT p.id, p.name, p.description, p.price, p.image_url, p.category_id, COALESCE(c.name, ''), p.created_at, p.updated_at
	FROM products p LEFT JOIN categories c ON c.id = p.category_id`

type productRepo struct {
	db querier
}

func (r *productRepo) FindByID(ctx context.Context, id int64) (*repository.Product, error) {
	return scanProduct(r.db.QueryRowContext(ctx, productSelect+` WHERE p.id = ?`, id))
}

func (r *productRepo) FindByIDs(ctx context.Context, ids []int64) (map[int64]*repository.Product, error) {
	result := make(map[int64]*repository.Product, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	args := make([]any, 0, len(ids))
	for _, id := range ids {
		args = append(args, id)
	}
	list, err := r.query(ctx, productSelect+` WHERE p.id IN (`+placeholders(len(ids))+`)`, args...)
	if err != nil {
		return nil, err
	}
	for _, p := range list {
		result[p.ID] = p
	}
	return result, nil
}

func (r *productRepo) List(ctx context.Context, filter repository.ProductFilter) ([]*repository.Product, error) {
	var conds []string
	var args []any
	if name := strings.TrimSpace(filter.Name); name != "" {
		conds = append(conds, "p.name LIKE ? COLLATE NOCASE")
		args = append(args, "%"+name+"%")
	}
	if filter.CategoryID != nil {
		conds = append(conds, "p.category_id = ?")
		args = append(args, *filter.CategoryID)
	}
	query := productSelect
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	limit, offset := limitOffset(filter.Limit, filter.Offset)
	query += " ORDER BY p.id ASC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)
	return r.query(ctx, query, args...)
}

func (r *productRepo) Recent(ctx context.Context, limit int) ([]*repository.Product, error) {
	limit, _ = limitOffset(limit, 0)
	return r.query(ctx, productSelect+` ORDER BY p.created_at DESC, p.id DESC LIMIT ?`, limit)
}

func (r *productRepo) Create(ctx context.Context, product *repository.Product) (*repository.Product, error) {
	if product == nil {
		return nil, fmt.Errorf("product is required / 商品数据不能为空")
	}
	now := time.Now().Unix()
	product.CreatedAt, product.UpdatedAt = now, now
	const stmt = `INSERT INTO products(name, description, price, image_url, category_id, created_at, updated_at)
		VALUES(?, ?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, stmt,
		product.Name,
		product.Description,
		money(product.Price),
		product.ImageURL,
		optionalInt64(product.CategoryID),
		product.CreatedAt,
		product.UpdatedAt,
	)
	if err != nil {
		return nil, constraint(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	product.ID = id
	return product, nil
}

func (r *productRepo) Update(ctx context.Context, product *repository.Product) error {
	product.UpdatedAt = time.Now().Unix()
	const stmt = `UPDATE products SET name = ?, description = ?, price = ?, image_url = ?, category_id = ?, updated_at = ?
		WHERE id = ?`
	return affected(r.db.ExecContext(ctx, stmt,
		product.Name,
		product.Description,
		money(product.Price),
		product.ImageURL,
		optionalInt64(product.CategoryID),
		product.UpdatedAt,
		product.ID,
	))
}

func (r *productRepo) Delete(ctx context.Context, id int64) error {
	return affected(r.db.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id))
}

func (r *productRepo) Count(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&total)
	return total, err
}

func (r *productRepo) DetachCategory(ctx context.Context, categoryID int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE products SET category_id = NULL, updated_at = ? WHERE category_id = ?`,
		time.Now().Unix(), categoryID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *productRepo) IDsByCategory(ctx context.Context, categoryID int64) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM products WHERE category_id = ? ORDER BY id`, categoryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *productRepo) query(ctx context.Context, query string, args ...any) ([]*repository.Product, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []*repository.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

func scanProduct(row rowScanner) (*repository.Product, error) {
	var (
		p          repository.Product
		categoryID sql.NullInt64
	)
	if err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Description,
		&p.Price,
		&p.ImageURL,
		&categoryID,
		&p.CategoryName,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return nil, notFound(err)
	}
	p.CategoryID = nullableIntPtr(categoryID)
	return &p, nil
}
