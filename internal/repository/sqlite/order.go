// 文件路径: internal/repository/sqlite/order.go
// 模块说明: 订单与订单明细。明细在下单时一次写入，之后只读。
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/cliqshop/shop/internal/repository"
)

const orderColumns = `id, user_id, status, payment_status, total_amount, shipping_address_id, billing_address_id,
	payment_intent_id, receipt_url, payment_date, created_at, updated_at`

type orderRepo struct {
	db querier
}

func (r *orderRepo) FindByID(ctx context.Context, id int64) (*repository.Order, error) {
	order, err := scanOrder(r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ?`, id))
	if err != nil {
		return nil, err
	}
	if err := r.attachItems(ctx, []*repository.Order{order}); err != nil {
		return nil, err
	}
	return order, nil
}

func (r *orderRepo) FindByPaymentIntent(ctx context.Context, intentID string) (*repository.Order, error) {
	trimmed := strings.TrimSpace(intentID)
	if trimmed == "" {
		return nil, repository.ErrNotFound
	}
	order, err := scanOrder(r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE payment_intent_id = ?`, trimmed))
	if err != nil {
		return nil, err
	}
	if err := r.attachItems(ctx, []*repository.Order{order}); err != nil {
		return nil, err
	}
	return order, nil
}

func (r *orderRepo) List(ctx context.Context, filter repository.OrderFilter) ([]*repository.Order, error) {
	where, args := orderFilterClause(filter)
	limit, offset := limitOffset(filter.Limit, filter.Offset)
	query := `SELECT ` + orderColumns + ` FROM orders` + where + ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	var orders []*repository.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	// Close before issuing the item query; a single-connection tx cannot interleave them.
	rows.Close()

	if err := r.attachItems(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *orderRepo) Count(ctx context.Context, filter repository.OrderFilter) (int64, error) {
	where, args := orderFilterClause(filter)
	var total int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`+where, args...).Scan(&total)
	return total, err
}

func (r *orderRepo) Create(ctx context.Context, order *repository.Order) (*repository.Order, error) {
	if order == nil {
		return nil, fmt.Errorf("order is required / 订单数据不能为空")
	}
	if len(order.Items) == 0 {
		return nil, fmt.Errorf("order must contain items / 订单明细不能为空")
	}
	now := time.Now().Unix()
	if order.CreatedAt == 0 {
		order.CreatedAt = now
	}
	order.UpdatedAt = order.CreatedAt

	err := withTx(ctx, r.db, func(q querier) error {
		const stmt = `INSERT INTO orders(user_id, status, payment_status, total_amount, shipping_address_id, billing_address_id,
			payment_intent_id, receipt_url, payment_date, created_at, updated_at)
			VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
		res, err := q.ExecContext(ctx, stmt,
			order.UserID,
			string(order.Status),
			string(order.PaymentStatus),
			money(order.TotalAmount),
			optionalInt64(order.ShippingAddressID),
			optionalInt64(order.BillingAddressID),
			nullableString(order.PaymentIntentID),
			nullableString(order.ReceiptURL),
			optionalInt64(order.PaymentDate),
			order.CreatedAt,
			order.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		orderID, err := res.LastInsertId()
		if err != nil {
			return err
		}
		order.ID = orderID

		const itemStmt = `INSERT INTO order_items(order_id, product_id, product_name, quantity, unit_price, subtotal)
			VALUES(?, ?, ?, ?, ?, ?)`
		for i := range order.Items {
			item := &order.Items[i]
			item.OrderID = orderID
			res, err := q.ExecContext(ctx, itemStmt,
				orderID,
				item.ProductID,
				item.ProductName,
				item.Quantity,
				money(item.UnitPrice),
				money(item.Subtotal),
			)
			if err != nil {
				return fmt.Errorf("insert order item: %w", err)
			}
			if id, err := res.LastInsertId(); err == nil {
				item.ID = id
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (r *orderRepo) Update(ctx context.Context, order *repository.Order) error {
	if order == nil || order.ID == 0 {
		return fmt.Errorf("order id is required / 订单 ID 不能为空")
	}
	order.UpdatedAt = time.Now().Unix()
	const stmt = `UPDATE orders SET status = ?, payment_status = ?, total_amount = ?, shipping_address_id = ?, billing_address_id = ?,
		payment_intent_id = ?, receipt_url = ?, payment_date = ?, updated_at = ? WHERE id = ?`
	res, err := r.db.ExecContext(ctx, stmt,
		string(order.Status),
		string(order.PaymentStatus),
		money(order.TotalAmount),
		optionalInt64(order.ShippingAddressID),
		optionalInt64(order.BillingAddressID),
		nullableString(order.PaymentIntentID),
		nullableString(order.ReceiptURL),
		optionalInt64(order.PaymentDate),
		order.UpdatedAt,
		order.ID,
	)
	if err != nil {
		return constraint(err)
	}
	return affected(res, nil)
}

func (r *orderRepo) attachItems(ctx context.Context, orders []*repository.Order) error {
	if len(orders) == 0 {
		return nil
	}
	byID := make(map[int64]*repository.Order, len(orders))
	args := make([]any, 0, len(orders))
	for _, o := range orders {
		byID[o.ID] = o
		args = append(args, o.ID)
	}
	query := `SELECT id, order_id, product_id, product_name, quantity, unit_price, subtotal
		FROM order_items WHERE order_id IN (` + placeholders(len(orders)) + `) ORDER BY order_id, id`
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var item repository.OrderItem
		if err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.ProductID,
			&item.ProductName,
			&item.Quantity,
			&item.UnitPrice,
			&item.Subtotal,
		); err != nil {
			return err
		}
		if o, ok := byID[item.OrderID]; ok {
			o.Items = append(o.Items, item)
		}
	}
	return rows.Err()
}

func orderFilterClause(filter repository.OrderFilter) (string, []any) {
	var conds []string
	var args []any
	if filter.UserID != nil {
		conds = append(conds, "user_id = ?")
		args = append(args, *filter.UserID)
	}
	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(filter.Status))
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func scanOrder(row rowScanner) (*repository.Order, error) {
	var (
		o                 repository.Order
		status, payStatus string
		shipping, billing sql.NullInt64
		intentID, receipt sql.NullString
		paymentDate       sql.NullInt64
	)
	if err := row.Scan(
		&o.ID,
		&o.UserID,
		&status,
		&payStatus,
		&o.TotalAmount,
		&shipping,
		&billing,
		&intentID,
		&receipt,
		&paymentDate,
		&o.CreatedAt,
		&o.UpdatedAt,
	); err != nil {
		return nil, notFound(err)
	}
	o.Status = repository.OrderStatus(status)
	o.PaymentStatus = repository.PaymentStatus(payStatus)
	o.ShippingAddressID = nullableIntPtr(shipping)
	o.BillingAddressID = nullableIntPtr(billing)
	o.PaymentIntentID = intentID.String
	o.ReceiptURL = receipt.String
	o.PaymentDate = nullableIntPtr(paymentDate)
	return &o, nil
}
