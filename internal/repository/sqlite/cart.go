// 文件路径: internal/repository/sqlite/cart.go
// 模块说明: 购物车与条目。读取购物车时联表带出商品当前名称与单价。
package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/cliqshop/shop/internal/repository"
)

const cartItemSelect = `SELECT ci.id, ci.cart_id, ci.product_id, p.name, p.image_url, p.price, ci.quantity, ci.added_at
	FROM cart_items ci JOIN products p ON p.id = ci.product_id`

type cartRepo struct {
	db querier
}

func (r *cartRepo) FindByUser(ctx context.Context, userID int64) (*repository.Cart, error) {
	var cart repository.Cart
	err := r.db.QueryRowContext(ctx, `SELECT id, user_id, created_at, updated_at FROM carts WHERE user_id = ?`, userID).
		Scan(&cart.ID, &cart.UserID, &cart.CreatedAt, &cart.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}

	rows, err := r.db.QueryContext(ctx, cartItemSelect+` WHERE ci.cart_id = ? ORDER BY ci.added_at ASC, ci.id ASC`, cart.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		item, err := scanCartItem(rows)
		if err != nil {
			return nil, err
		}
		cart.Items = append(cart.Items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &cart, nil
}

func (r *cartRepo) Create(ctx context.Context, userID int64) (*repository.Cart, error) {
	now := time.Now().Unix()
	res, err := r.db.ExecContext(ctx, `INSERT INTO carts(user_id, created_at, updated_at) VALUES(?, ?, ?)`, userID, now, now)
	if err != nil {
		return nil, constraint(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &repository.Cart{ID: id, UserID: userID, CreatedAt: now, UpdatedAt: now}, nil
}

func (r *cartRepo) FindItem(ctx context.Context, cartID, productID int64) (*repository.CartItem, error) {
	return scanCartItem(r.db.QueryRowContext(ctx, cartItemSelect+` WHERE ci.cart_id = ? AND ci.product_id = ?`, cartID, productID))
}

func (r *cartRepo) AddItem(ctx context.Context, item *repository.CartItem) (*repository.CartItem, error) {
	if item == nil || item.Quantity <= 0 {
		return nil, fmt.Errorf("cart item quantity must be positive / 购物车数量必须为正数")
	}
	if item.AddedAt == 0 {
		item.AddedAt = time.Now().Unix()
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO cart_items(cart_id, product_id, quantity, added_at) VALUES(?, ?, ?, ?)`,
		item.CartID, item.ProductID, item.Quantity, item.AddedAt)
	if err != nil {
		return nil, constraint(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	item.ID = id
	return item, nil
}

func (r *cartRepo) SetItemQuantity(ctx context.Context, itemID int64, quantity int) error {
	return affected(r.db.ExecContext(ctx, `UPDATE cart_items SET quantity = ? WHERE id = ?`, quantity, itemID))
}

func (r *cartRepo) RemoveItem(ctx context.Context, cartID, productID int64) error {
	return affected(r.db.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = ? AND product_id = ?`, cartID, productID))
}

func (r *cartRepo) Clear(ctx context.Context, cartID int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = ?`, cartID)
	return err
}

func (r *cartRepo) Touch(ctx context.Context, cartID int64, at int64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE carts SET updated_at = ? WHERE id = ?`, at, cartID)
	return err
}

func (r *cartRepo) DeleteItemsByProduct(ctx context.Context, productID int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM cart_items WHERE product_id = ?`, productID)
	return err
}

func scanCartItem(row rowScanner) (*repository.CartItem, error) {
	var item repository.CartItem
	if err := row.Scan(
		&item.ID,
		&item.CartID,
		&item.ProductID,
		&item.ProductName,
		&item.ImageURL,
		&item.UnitPrice,
		&item.Quantity,
		&item.AddedAt,
	); err != nil {
		return nil, notFound(err)
	}
	return &item, nil
}
