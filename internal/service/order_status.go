package service

import (
	"fmt"
	"strings"

	"github.com/cliqshop/shop/internal/repository"
)

// Order lifecycle rules. A PAID order stays in PROCESSING, SHIPPED or DELIVERED unless it is
// refunded, and a FAILED payment always sits on a PAYMENT_FAILED order.

// ParseOrderStatus accepts any casing of a known status.
func ParseOrderStatus(raw string) (repository.OrderStatus, error) {
	status := repository.OrderStatus(strings.ToUpper(strings.TrimSpace(raw)))
	for _, known := range repository.OrderStatuses {
		if status == known {
			return status, nil
		}
	}
	return "", invalidf("unknown order status %q / 订单状态无效", raw)
}

// ParsePaymentStatus accepts any casing of a known payment status.
func ParsePaymentStatus(raw string) (repository.PaymentStatus, error) {
	status := repository.PaymentStatus(strings.ToUpper(strings.TrimSpace(raw)))
	switch status {
	case repository.PaymentPending, repository.PaymentPaid, repository.PaymentFailed, repository.PaymentRefunded:
		return status, nil
	}
	return "", invalidf("unknown payment status %q / 支付状态无效", raw)
}

func cancellable(status repository.OrderStatus) bool {
	return status == repository.OrderPending || status == repository.OrderProcessing
}

func fulfilled(status repository.OrderStatus) bool {
	return status == repository.OrderShipped || status == repository.OrderDelivered
}

// applyCancel moves the order to CANCELLED. A paid order, already refunded at the gateway by
// the caller, is marked REFUNDED.
func applyCancel(order *repository.Order) bool {
	if !cancellable(order.Status) {
		return false
	}
	order.Status = repository.OrderCancelled
	if order.PaymentStatus == repository.PaymentPaid {
		order.PaymentStatus = repository.PaymentRefunded
	}
	return true
}

// applyOrderStatus is the admin status change.
func applyOrderStatus(order *repository.Order, next repository.OrderStatus) error {
	if next == repository.OrderRefunded {
		return applyRefund(order)
	}
	switch order.PaymentStatus {
	case repository.PaymentPaid:
		switch next {
		case repository.OrderProcessing, repository.OrderShipped, repository.OrderDelivered:
		default:
			return invalidf("order %d is paid and cannot move to %s / 已支付订单不能变更为该状态", order.ID, next)
		}
	case repository.PaymentFailed:
		if next != repository.OrderPaymentFailed {
			return invalidf("order %d has a failed payment and cannot move to %s / 支付失败的订单不能变更为该状态", order.ID, next)
		}
	}
	order.Status = next
	return nil
}

// applyPaymentStatus is the admin payment status change with its derived order status.
func applyPaymentStatus(order *repository.Order, next repository.PaymentStatus, now int64) error {
	switch next {
	case repository.PaymentPaid:
		markPaid(order, now)
		return nil
	case repository.PaymentRefunded:
		return applyRefund(order)
	case repository.PaymentFailed:
		order.Status = repository.OrderPaymentFailed
	case repository.PaymentPending:
		if order.Status == repository.OrderPaymentFailed {
			order.Status = repository.OrderPending
		}
	}
	order.PaymentStatus = next
	return nil
}

// applyRefund only accepts orders that were paid. Refunding twice is a no-op.
func applyRefund(order *repository.Order) error {
	switch order.PaymentStatus {
	case repository.PaymentPaid, repository.PaymentRefunded:
		order.PaymentStatus = repository.PaymentRefunded
		order.Status = repository.OrderRefunded
		return nil
	}
	return invalidf("order %d was never paid / 订单未支付，无法退款", order.ID)
}

func markPaid(order *repository.Order, now int64) {
	order.PaymentStatus = repository.PaymentPaid
	if !fulfilled(order.Status) {
		order.Status = repository.OrderProcessing
	}
	order.PaymentDate = &now
}

// checkInvariant guards every persisted transition.
func checkInvariant(order *repository.Order) error {
	switch order.PaymentStatus {
	case repository.PaymentPaid:
		if order.Status != repository.OrderProcessing && !fulfilled(order.Status) {
			return fmt.Errorf("%w: paid order %d in status %s", ErrConflict, order.ID, order.Status)
		}
	case repository.PaymentFailed:
		if order.Status != repository.OrderPaymentFailed {
			return fmt.Errorf("%w: failed payment on order %d in status %s", ErrConflict, order.ID, order.Status)
		}
	}
	return nil
}
