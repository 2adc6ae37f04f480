package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/cliqshop/shop/internal/repository"
)

const paymentDetailsColumns = `id, order_id, method, transaction_id, amount, currency, status, payment_date, last_four, gateway, error_message, created_at, updated_at`

// paymentDetailsRepo stores one row per gateway transaction.
type paymentDetailsRepo struct {
	db querier
}

func (r *paymentDetailsRepo) FindByTransaction(ctx context.Context, transactionID string) (*repository.PaymentDetails, error) {
	return scanPaymentDetails(r.db.QueryRowContext(ctx,
		`SELECT `+paymentDetailsColumns+` FROM payment_details WHERE transaction_id = ?`, strings.TrimSpace(transactionID)))
}

func (r *paymentDetailsRepo) ListByOrder(ctx context.Context, orderID int64) ([]*repository.PaymentDetails, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+paymentDetailsColumns+` FROM payment_details WHERE order_id = ? ORDER BY id ASC`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []*repository.PaymentDetails
	for rows.Next() {
		d, err := scanPaymentDetails(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, d)
	}
	return list, rows.Err()
}

func (r *paymentDetailsRepo) Upsert(ctx context.Context, d *repository.PaymentDetails) error {
	if d == nil || strings.TrimSpace(d.TransactionID) == "" {
		return fmt.Errorf("transaction id is required / 交易号不能为空")
	}
	now := time.Now().Unix()
	if d.CreatedAt == 0 {
		d.CreatedAt = now
	}
	d.UpdatedAt = now
	const stmt = `INSERT INTO payment_details(order_id, method, transaction_id, amount, currency, status, payment_date, last_four, gateway, error_message, created_at, updated_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(transaction_id) DO UPDATE SET
			status = excluded.status,
			amount = excluded.amount,
			payment_date = COALESCE(excluded.payment_date, payment_details.payment_date),
			last_four = COALESCE(excluded.last_four, payment_details.last_four),
			error_message = excluded.error_message,
			updated_at = excluded.updated_at`
	res, err := r.db.ExecContext(ctx, stmt,
		d.OrderID,
		string(d.Method),
		d.TransactionID,
		money(d.Amount),
		strings.ToLower(d.Currency),
		string(d.Status),
		optionalInt64(d.PaymentDate),
		nullableString(d.LastFour),
		d.Gateway,
		nullableString(d.ErrorMessage),
		d.CreatedAt,
		d.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if d.ID == 0 {
		if id, err := res.LastInsertId(); err == nil {
			d.ID = id
		}
	}
	return nil
}

func scanPaymentDetails(row rowScanner) (*repository.PaymentDetails, error) {
	var (
		d                   repository.PaymentDetails
		method, status      string
		paymentDate         sql.NullInt64
		lastFour, errorText sql.NullString
	)
	if err := row.Scan(
		&d.ID,
		&d.OrderID,
		&method,
		&d.TransactionID,
		&d.Amount,
		&d.Currency,
		&status,
		&paymentDate,
		&lastFour,
		&d.Gateway,
		&errorText,
		&d.CreatedAt,
		&d.UpdatedAt,
	); err != nil {
		return nil, notFound(err)
	}
	d.Method = repository.PaymentMethod(method)
	d.Status = repository.TransactionStatus(status)
	d.PaymentDate = nullableIntPtr(paymentDate)
	d.LastFour = lastFour.String
	d.ErrorMessage = errorText.String
	return &d, nil
}
