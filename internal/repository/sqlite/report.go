// 文件路径: internal/repository/sqlite/report.go
// 模块说明: 报表聚合。金额以文本存储，求和在 Go 侧用 decimal 完成以避免浮点误差。
package sqlite

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/cliqshop/shop/internal/repository"
)

type reportRepo struct {
	db querier
}

func (r *reportRepo) Sales(ctx context.Context) (*repository.SalesSummary, error) {
	summary := &repository.SalesSummary{
		TotalRevenue: decimal.Zero,
		ByStatus:     make(map[repository.OrderStatus]int64),
	}

	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM orders GROUP BY status`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var (
			status string
			count  int64
		)
		if err := rows.Scan(&status, &count); err != nil {
			rows.Close()
			return nil, err
		}
		summary.ByStatus[repository.OrderStatus(status)] = count
		summary.TotalOrders += count
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	paid, err := r.db.QueryContext(ctx, `SELECT total_amount FROM orders WHERE payment_status = ?`, string(repository.PaymentPaid))
	if err != nil {
		return nil, err
	}
	defer paid.Close()
	for paid.Next() {
		var amount decimal.Decimal
		if err := paid.Scan(&amount); err != nil {
			return nil, err
		}
		summary.TotalRevenue = summary.TotalRevenue.Add(amount)
		summary.PaidOrders++
	}
	return summary, paid.Err()
}

func (r *reportRepo) InventoryValuation(ctx context.Context) (*repository.InventoryValuation, error) {
	val := &repository.InventoryValuation{TotalValue: decimal.Zero}
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&val.TotalProducts); err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `SELECT p.price, i.quantity FROM inventory i JOIN products p ON p.id = i.product_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			price decimal.Decimal
			qty   int64
		)
		if err := rows.Scan(&price, &qty); err != nil {
			return nil, err
		}
		val.TotalUnits += qty
		val.TotalValue = val.TotalValue.Add(price.Mul(decimal.NewFromInt(qty)))
	}
	return val, rows.Err()
}
