// 文件路径: internal/repository/sqlite/inventory.go
// 模块说明: 库存表读写。数量调整在单条 UPDATE 中完成，并拒绝出现负库存。
package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/cliqshop/shop/internal/repository"
)

const inventorySelect = `SELECT i.id, i.product_id, COALESCE(p.name, ''), i.quantity, i.low_stock_threshold, i.location, i.created_at, i.updated_at
	FROM inventory i LEFT JOIN products p ON p.id = i.product_id`

type inventoryRepo struct {
	db querier
}

func (r *inventoryRepo) FindByID(ctx context.Context, id int64) (*repository.Inventory, error) {
	return scanInventory(r.db.QueryRowContext(ctx, inventorySelect+` WHERE i.id = ?`, id))
}

func (r *inventoryRepo) FindByProduct(ctx context.Context, productID int64) (*repository.Inventory, error) {
	return scanInventory(r.db.QueryRowContext(ctx, inventorySelect+` WHERE i.product_id = ?`, productID))
}

func (r *inventoryRepo) List(ctx context.Context) ([]*repository.Inventory, error) {
	return r.query(ctx, inventorySelect+` ORDER BY i.product_id ASC`)
}

func (r *inventoryRepo) LowStock(ctx context.Context) ([]*repository.Inventory, error) {
	return r.query(ctx, inventorySelect+` WHERE i.quantity <= i.low_stock_threshold ORDER BY i.quantity ASC, i.product_id ASC`)
}

func (r *inventoryRepo) CountLowStock(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM inventory WHERE quantity <= low_stock_threshold`).Scan(&total)
	return total, err
}

func (r *inventoryRepo) Create(ctx context.Context, inv *repository.Inventory) (*repository.Inventory, error) {
	if inv == nil {
		return nil, fmt.Errorf("inventory is required / 库存数据不能为空")
	}
	now := time.Now().Unix()
	inv.CreatedAt, inv.UpdatedAt = now, now
	const stmt = `INSERT INTO inventory(product_id, quantity, low_stock_threshold, location, created_at, updated_at)
		VALUES(?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, stmt, inv.ProductID, inv.Quantity, inv.LowStockThreshold, inv.Location, inv.CreatedAt, inv.UpdatedAt)
	if err != nil {
		return nil, constraint(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	inv.ID = id
	return inv, nil
}

func (r *inventoryRepo) Update(ctx context.Context, inv *repository.Inventory) error {
	inv.UpdatedAt = time.Now().Unix()
	const stmt = `UPDATE inventory SET quantity = ?, low_stock_threshold = ?, location = ?, updated_at = ? WHERE id = ?`
	return affected(r.db.ExecContext(ctx, stmt, inv.Quantity, inv.LowStockThreshold, inv.Location, inv.UpdatedAt, inv.ID))
}

func (r *inventoryRepo) AdjustQuantity(ctx context.Context, productID int64, delta int) (*repository.Inventory, error) {
	const stmt = `UPDATE inventory SET quantity = quantity + ?, updated_at = ? WHERE product_id = ? AND quantity + ? >= 0`
	res, err := r.db.ExecContext(ctx, stmt, delta, time.Now().Unix(), productID, delta)
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		// Either the row is missing or the guard rejected the delta.
		if _, err := r.FindByProduct(ctx, productID); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: stock for product %d cannot go below zero", repository.ErrConflict, productID)
	}
	return r.FindByProduct(ctx, productID)
}

func (r *inventoryRepo) Delete(ctx context.Context, id int64) error {
	return affected(r.db.ExecContext(ctx, `DELETE FROM inventory WHERE id = ?`, id))
}

func (r *inventoryRepo) DeleteByProduct(ctx context.Context, productID int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM inventory WHERE product_id = ?`, productID)
	return err
}

func (r *inventoryRepo) query(ctx context.Context, query string, args ...any) ([]*repository.Inventory, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []*repository.Inventory
	for rows.Next() {
		inv, err := scanInventory(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, inv)
	}
	return list, rows.Err()
}

func scanInventory(row rowScanner) (*repository.Inventory, error) {
	var inv repository.Inventory
	if err := row.Scan(
		&inv.ID,
		&inv.ProductID,
		&inv.ProductName,
		&inv.Quantity,
		&inv.LowStockThreshold,
		&inv.Location,
		&inv.CreatedAt,
		&inv.UpdatedAt,
	); err != nil {
		return nil, notFound(err)
	}
	return &inv, nil
}
