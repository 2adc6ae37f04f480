package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/cliqshop/shop/internal/repository"
)

const addressColumns = `id, user_id, street, city, state, postal_code, country, type, is_default, created_at, updated_at`

type addressRepo struct {
	db querier
}

func (r *addressRepo) FindByID(ctx context.Context, id int64) (*repository.Address, error) {
	return scanAddress(r.db.QueryRowContext(ctx, `SELECT `+addressColumns+` FROM addresses WHERE id = ?`, id))
}

func (r *addressRepo) ListByUser(ctx context.Context, userID int64) ([]*repository.Address, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+addressColumns+` FROM addresses WHERE user_id = ? ORDER BY is_default DESC, id ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []*repository.Address
	for rows.Next() {
		addr, err := scanAddress(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, addr)
	}
	return list, rows.Err()
}

func (r *addressRepo) FindDefault(ctx context.Context, userID int64, addrType repository.AddressType) (*repository.Address, error) {
	const query = `SELECT ` + addressColumns + ` FROM addresses WHERE user_id = ? AND type = ? AND is_default = 1 LIMIT 1`
	return scanAddress(r.db.QueryRowContext(ctx, query, userID, string(addrType)))
}

func (r *addressRepo) CountByUserAndType(ctx context.Context, userID int64, addrType repository.AddressType) (int64, error) {
	var total int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM addresses WHERE user_id = ? AND type = ?`, userID, string(addrType)).Scan(&total)
	return total, err
}

func (r *addressRepo) Create(ctx context.Context, addr *repository.Address) (*repository.Address, error) {
	if addr == nil {
		return nil, fmt.Errorf("address is required / 地址数据不能为空")
	}
	now := time.Now().Unix()
	addr.CreatedAt, addr.UpdatedAt = now, now
	const stmt = `INSERT INTO addresses(user_id, street, city, state, postal_code, country, type, is_default, created_at, updated_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, stmt,
		addr.UserID,
		addr.Street,
		addr.City,
		addr.State,
		addr.PostalCode,
		addr.Country,
		string(addr.Type),
		boolToInt(addr.IsDefault),
		addr.CreatedAt,
		addr.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	addr.ID = id
	return addr, nil
}

func (r *addressRepo) Update(ctx context.Context, addr *repository.Address) error {
	addr.UpdatedAt = time.Now().Unix()
	const stmt = `UPDATE addresses SET street = ?, city = ?, state = ?, postal_code = ?, country = ?, type = ?, is_default = ?, updated_at = ?
		WHERE id = ?`
	return affected(r.db.ExecContext(ctx, stmt,
		addr.Street,
		addr.City,
		addr.State,
		addr.PostalCode,
		addr.Country,
		string(addr.Type),
		boolToInt(addr.IsDefault),
		addr.UpdatedAt,
		addr.ID,
	))
}

func (r *addressRepo) ClearDefault(ctx context.Context, userID int64, addrType repository.AddressType) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE addresses SET is_default = 0, updated_at = ? WHERE user_id = ? AND type = ? AND is_default = 1`,
		time.Now().Unix(), userID, string(addrType))
	return err
}

func (r *addressRepo) SetDefault(ctx context.Context, id int64, isDefault bool) error {
	return affected(r.db.ExecContext(ctx,
		`UPDATE addresses SET is_default = ?, updated_at = ? WHERE id = ?`,
		boolToInt(isDefault), time.Now().Unix(), id))
}

func (r *addressRepo) Delete(ctx context.Context, id int64) error {
	return affected(r.db.ExecContext(ctx, `DELETE FROM addresses WHERE id = ?`, id))
}

func scanAddress(row rowScanner) (*repository.Address, error) {
	var (
		a         repository.Address
		addrType  string
		isDefault int
	)
	if err := row.Scan(
		&a.ID,
		&a.UserID,
		&a.Street,
		&a.City,
		&a.State,
		&a.PostalCode,
		&a.Country,
		&addrType,
		&isDefault,
		&a.CreatedAt,
		&a.UpdatedAt,
	); err != nil {
		return nil, notFound(err)
	}
	a.Type = repository.AddressType(addrType)
	a.IsDefault = isDefault == 1
	return &a, nil
}
