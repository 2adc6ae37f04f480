package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cliqshop/shop/internal/repository"
)

func TestParseStatuses(t *testing.T) {
	status, err := ParseOrderStatus(" shipped ")
	require.NoError(t, err)
	assert.Equal(t, repository.OrderShipped, status)

	_, err = ParseOrderStatus("lost")
	require.ErrorIs(t, err, ErrInvalidArgument)

	payment, err := ParsePaymentStatus("Refunded")
	require.NoError(t, err)
	assert.Equal(t, repository.PaymentRefunded, payment)

	_, err = ParsePaymentStatus("")
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestApplyCancel(t *testing.T) {
	cases := []struct {
		status      repository.OrderStatus
		payment     repository.PaymentStatus
		wantOK      bool
		wantPayment repository.PaymentStatus
	}{
		{repository.OrderPending, repository.PaymentPending, true, repository.PaymentPending},
		{repository.OrderProcessing, repository.PaymentPaid, true, repository.PaymentRefunded},
		{repository.OrderShipped, repository.PaymentPaid, false, repository.PaymentPaid},
		{repository.OrderDelivered, repository.PaymentPaid, false, repository.PaymentPaid},
		{repository.OrderCancelled, repository.PaymentPending, false, repository.PaymentPending},
		{repository.OrderPaymentFailed, repository.PaymentFailed, false, repository.PaymentFailed},
	}
	for _, tc := range cases {
		t.Run(string(tc.status), func(t *testing.T) {
			order := &repository.Order{Status: tc.status, PaymentStatus: tc.payment}
			assert.Equal(t, tc.wantOK, applyCancel(order))
			assert.Equal(t, tc.wantPayment, order.PaymentStatus)
			if tc.wantOK {
				assert.Equal(t, repository.OrderCancelled, order.Status)
			} else {
				assert.Equal(t, tc.status, order.Status)
			}
		})
	}
}

func TestApplyOrderStatus(t *testing.T) {
	cases := []struct {
		name    string
		payment repository.PaymentStatus
		next    repository.OrderStatus
		wantErr bool
	}{
		{"paid to shipped", repository.PaymentPaid, repository.OrderShipped, false},
		{"paid to pending", repository.PaymentPaid, repository.OrderPending, true},
		{"paid to cancelled", repository.PaymentPaid, repository.OrderCancelled, true},
		{"paid to refunded", repository.PaymentPaid, repository.OrderRefunded, false},
		{"failed to processing", repository.PaymentFailed, repository.OrderProcessing, true},
		{"failed stays failed", repository.PaymentFailed, repository.OrderPaymentFailed, false},
		{"unpaid refund", repository.PaymentPending, repository.OrderRefunded, true},
		{"unpaid to cancelled", repository.PaymentPending, repository.OrderCancelled, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			order := &repository.Order{ID: 1, Status: repository.OrderProcessing, PaymentStatus: tc.payment}
			err := applyOrderStatus(order, tc.next)
			if tc.wantErr {
				require.ErrorIs(t, err, ErrInvalidArgument)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.next, order.Status)
			require.NoError(t, checkInvariant(order))
		})
	}
}

func TestApplyPaymentStatusDerivesOrderStatus(t *testing.T) {
	order := &repository.Order{Status: repository.OrderPending, PaymentStatus: repository.PaymentPending}

	require.NoError(t, applyPaymentStatus(order, repository.PaymentFailed, 10))
	assert.Equal(t, repository.OrderPaymentFailed, order.Status)

	require.ErrorIs(t, applyPaymentStatus(order, repository.PaymentRefunded, 11), ErrInvalidArgument)
	assert.Equal(t, repository.PaymentFailed, order.PaymentStatus)

	require.NoError(t, applyPaymentStatus(order, repository.PaymentPending, 11))
	assert.Equal(t, repository.OrderPending, order.Status)

	require.NoError(t, applyPaymentStatus(order, repository.PaymentPaid, 12))
	assert.Equal(t, repository.OrderProcessing, order.Status)
	require.NotNil(t, order.PaymentDate)
	assert.EqualValues(t, 12, *order.PaymentDate)

	require.NoError(t, applyPaymentStatus(order, repository.PaymentRefunded, 13))
	assert.Equal(t, repository.OrderRefunded, order.Status)
	assert.Equal(t, repository.PaymentRefunded, order.PaymentStatus)
}

func TestApplyRefundRequiresPayment(t *testing.T) {
	cases := []struct {
		name    string
		payment repository.PaymentStatus
		wantErr bool
	}{
		{name: "paid", payment: repository.PaymentPaid},
		{name: "already refunded", payment: repository.PaymentRefunded},
		{name: "pending", payment: repository.PaymentPending, wantErr: true},
		{name: "failed", payment: repository.PaymentFailed, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			order := &repository.Order{ID: 4, Status: repository.OrderProcessing, PaymentStatus: tc.payment}
			err := applyRefund(order)
			if tc.wantErr {
				require.ErrorIs(t, err, ErrInvalidArgument)
				assert.Equal(t, tc.payment, order.PaymentStatus)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, repository.OrderRefunded, order.Status)
			assert.Equal(t, repository.PaymentRefunded, order.PaymentStatus)
		})
	}
}

func TestMarkPaidKeepsFulfilledStatus(t *testing.T) {
	order := &repository.Order{Status: repository.OrderDelivered, PaymentStatus: repository.PaymentPending}
	markPaid(order, 99)
	assert.Equal(t, repository.OrderDelivered, order.Status)
	assert.Equal(t, repository.PaymentPaid, order.PaymentStatus)
}

func TestCheckInvariant(t *testing.T) {
	require.ErrorIs(t, checkInvariant(&repository.Order{Status: repository.OrderPending, PaymentStatus: repository.PaymentPaid}), ErrConflict)
	require.ErrorIs(t, checkInvariant(&repository.Order{Status: repository.OrderPending, PaymentStatus: repository.PaymentFailed}), ErrConflict)
	require.NoError(t, checkInvariant(&repository.Order{Status: repository.OrderCancelled, PaymentStatus: repository.PaymentRefunded}))
}
