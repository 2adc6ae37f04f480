// 文件路径: internal/service/order.go
// 模块说明: 下单、取消与订单/支付状态流转，支付回调最终落到这里。
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	"github.com/cliqshop/shop/internal/events"
	"github.com/cliqshop/shop/internal/notifier"
	"github.com/cliqshop/shop/internal/payment"
	"github.com/cliqshop/shop/internal/repository"
	"github.com/cliqshop/shop/internal/security"
)

// OrderItemInput 描述下单条目。
type OrderItemInput struct {
	ProductID int64
	Quantity  int
}

// PlaceOrderInput 描述下单请求。缺少收货地址时使用账单地址。
type PlaceOrderInput struct {
	UserID            int64
	Items             []OrderItemInput
	ShippingAddressID *int64
	BillingAddressID  *int64
}

// OrderListFilter 描述管理端订单筛选。
type OrderListFilter struct {
	Status repository.OrderStatus
	Page
}

// OrderService 管理订单生命周期。
type OrderService interface {
	PlaceOrder(ctx context.Context, input PlaceOrderInput) (*repository.Order, error)
	Get(ctx context.Context, orderID int64) (*repository.Order, error)
	// GetForUser returns ErrForbidden when the order belongs to someone else.
	GetForUser(ctx context.Context, orderID, userID int64) (*repository.Order, error)
	ListByUser(ctx context.Context, userID int64, page Page) ([]*repository.Order, int64, error)
	List(ctx context.Context, filter OrderListFilter) ([]*repository.Order, int64, error)
	// CancelOrder reports false when the status no longer allows cancelling. A nil userID acts as admin.
	CancelOrder(ctx context.Context, orderID int64, userID *int64) (bool, error)
	UpdateOrderStatus(ctx context.Context, orderID int64, status repository.OrderStatus) (*repository.Order, error)
	UpdatePaymentStatus(ctx context.Context, orderID int64, status repository.PaymentStatus) (*repository.Order, error)
	MarkOrderAsPaid(ctx context.Context, orderID int64, intentID, receiptURL string) (*repository.Order, error)
	// MarkOrderPaymentFailed keeps intentID as the order's latest attempt when it is not empty.
	MarkOrderPaymentFailed(ctx context.Context, orderID int64, intentID string) (*repository.Order, error)
	// MarkAsRefunded records a refund that already happened at the gateway.
	MarkAsRefunded(ctx context.Context, orderID int64) (*repository.Order, error)
	// RefundOrder returns the captured payment through the gateway, then marks the order REFUNDED.
	RefundOrder(ctx context.Context, orderID int64) (*repository.Order, error)
	// SavePaymentSession stores the gateway session id and resets payment to PENDING.
	SavePaymentSession(ctx context.Context, orderID int64, sessionID string) (*repository.Order, error)
}

// Refunder returns captured funds through the payment gateway.
type Refunder interface {
	Refund(ctx context.Context, req payment.RefundRequest) (*payment.Refund, error)
}

// OrderDeps 聚合订单服务依赖。Refunds 为空时，经网关支付的订单无法退款。
type OrderDeps struct {
	Store    repository.Store
	Events   EventPublisher
	Notifier notifier.Service
	Audit    security.Recorder
	Refunds  Refunder
	Logger   *slog.Logger
	Now      func() time.Time
}

// NewOrderService 组装订单服务。
func NewOrderService(deps OrderDeps) OrderService {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &orderService{
		store:    deps.Store,
		events:   deps.Events,
		notifier: deps.Notifier,
		audit:    deps.Audit,
		refunds:  deps.Refunds,
		logger:   orDiscard(deps.Logger).With("component", "order"),
		now:      now,
	}
}

type orderService struct {
	store    repository.Store
	events   EventPublisher
	notifier notifier.Service
	audit    security.Recorder
	refunds  Refunder
	logger   *slog.Logger
	now      func() time.Time
}

func (s *orderService) PlaceOrder(ctx context.Context, input PlaceOrderInput) (order *repository.Order, err error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("order %w", errIncomplete)
	}
	ctx, span := startSpan(ctx, "order.place")
	span.SetAttributes(attribute.Int64("user.id", input.UserID), attribute.Int("order.lines", len(input.Items)))
	defer func() { endSpan(span, err) }()

	if len(input.Items) == 0 {
		return nil, invalidf("order has no items / 订单没有商品")
	}
	ids := make([]int64, 0, len(input.Items))
	for _, item := range input.Items {
		if item.Quantity < 1 {
			return nil, invalidf("quantity for product %d must be at least 1 / 商品数量至少为 1", item.ProductID)
		}
		ids = append(ids, item.ProductID)
	}
	shippingID := input.ShippingAddressID
	if shippingID == nil {
		shippingID = input.BillingAddressID
	}
	if shippingID == nil {
		return nil, invalidf("shipping address is required / 收货地址不能为空")
	}

	var user *repository.User
	err = s.store.InTx(ctx, func(tx repository.Store) error {
		var err error
		user, err = tx.Users().FindByID(ctx, input.UserID)
		if err != nil {
			return err
		}
		if _, err := ownedAddress(ctx, tx, input.UserID, *shippingID); err != nil {
			return err
		}
		if input.BillingAddressID != nil {
			if _, err := ownedAddress(ctx, tx, input.UserID, *input.BillingAddressID); err != nil {
				return err
			}
		}
		products, err := tx.Products().FindByIDs(ctx, ids)
		if err != nil {
			return err
		}

		draft := &repository.Order{
			UserID:            input.UserID,
			Status:            repository.OrderPending,
			PaymentStatus:     repository.PaymentPending,
			ShippingAddressID: shippingID,
			BillingAddressID:  input.BillingAddressID,
			TotalAmount:       decimal.Zero,
		}
		for _, item := range input.Items {
			product, ok := products[item.ProductID]
			if !ok {
				return fmt.Errorf("%w: product %d / 商品不存在", ErrNotFound, item.ProductID)
			}
			subtotal := roundMoney(product.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
			draft.Items = append(draft.Items, repository.OrderItem{
				ProductID:   product.ID,
				ProductName: product.Name,
				Quantity:    item.Quantity,
				UnitPrice:   product.Price,
				Subtotal:    subtotal,
			})
			draft.TotalAmount = draft.TotalAmount.Add(subtotal)
		}
		draft.TotalAmount = roundMoney(draft.TotalAmount)
		order, err = tx.Orders().Create(ctx, draft)
		return err
	})
	if err != nil {
		return nil, mapRepoErr(err)
	}
	span.SetAttributes(attribute.Int64("order.id", order.ID))

	ordersPlaced.Inc()
	publish(ctx, s.events, s.logger, events.OrderPlaced, orderKey(order.ID), orderPayload(order))
	s.sendConfirmation(ctx, user, order)
	return order, nil
}

func (s *orderService) Get(ctx context.Context, orderID int64) (*repository.Order, error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("order %w", errIncomplete)
	}
	order, err := s.store.Orders().FindByID(ctx, orderID)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	return order, nil
}

func (s *orderService) GetForUser(ctx context.Context, orderID, userID int64) (*repository.Order, error) {
	order, err := s.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, fmt.Errorf("%w: order %d / 无权访问该订单", ErrForbidden, orderID)
	}
	return order, nil
}

func (s *orderService) ListByUser(ctx context.Context, userID int64, page Page) ([]*repository.Order, int64, error) {
	return s.list(ctx, repository.OrderFilter{UserID: &userID, Limit: page.Limit, Offset: page.Offset})
}

func (s *orderService) List(ctx context.Context, filter OrderListFilter) ([]*repository.Order, int64, error) {
	if filter.Status != "" {
		status, err := ParseOrderStatus(string(filter.Status))
		if err != nil {
			return nil, 0, err
		}
		filter.Status = status
	}
	return s.list(ctx, repository.OrderFilter{Status: filter.Status, Limit: filter.Limit, Offset: filter.Offset})
}

func (s *orderService) list(ctx context.Context, filter repository.OrderFilter) ([]*repository.Order, int64, error) {
	if s == nil || s.store == nil {
		return nil, 0, fmt.Errorf("order %w", errIncomplete)
	}
	orders, err := s.store.Orders().List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.store.Orders().Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func (s *orderService) CancelOrder(ctx context.Context, orderID int64, userID *int64) (cancelled bool, err error) {
	if s == nil || s.store == nil {
		return false, fmt.Errorf("order %w", errIncomplete)
	}
	ctx, span := startSpan(ctx, "order.cancel")
	span.SetAttributes(attribute.Int64("order.id", orderID), attribute.Bool("order.admin", userID == nil))
	defer func() { endSpan(span, err) }()

	order, err := s.store.Orders().FindByID(ctx, orderID)
	if err != nil {
		return false, mapRepoErr(err)
	}
	if userID != nil && order.UserID != *userID {
		return false, fmt.Errorf("%w: order %d / 无权取消该订单", ErrForbidden, orderID)
	}
	if !cancellable(order.Status) {
		return false, nil
	}
	if err := s.refundCharge(ctx, order); err != nil {
		return false, err
	}

	err = s.store.InTx(ctx, func(tx repository.Store) error {
		var err error
		order, err = tx.Orders().FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		if userID != nil && order.UserID != *userID {
			return fmt.Errorf("%w: order %d / 无权取消该订单", ErrForbidden, orderID)
		}
		if !applyCancel(order) {
			return nil
		}
		cancelled = true
		return tx.Orders().Update(ctx, order)
	})
	if err != nil {
		return false, mapRepoErr(err)
	}
	if cancelled {
		orderTransitions.WithLabelValues(string(order.Status)).Inc()
		publish(ctx, s.events, s.logger, events.OrderCancelled, orderKey(order.ID), orderPayload(order))
		if s.audit != nil {
			actor := "admin"
			if userID != nil {
				actor = fmt.Sprintf("%d", *userID)
			}
			s.audit.Record(ctx, security.Event{
				Kind:     security.EventOrderCancel,
				ActorID:  actor,
				Metadata: map[string]any{"order_id": order.ID, "payment_status": string(order.PaymentStatus)},
				Occurred: s.now(),
			})
		}
	}
	return cancelled, nil
}

func (s *orderService) UpdateOrderStatus(ctx context.Context, orderID int64, status repository.OrderStatus) (*repository.Order, error) {
	status, err := ParseOrderStatus(string(status))
	if err != nil {
		return nil, err
	}
	apply := func(order *repository.Order) error {
		return applyOrderStatus(order, status)
	}
	if status == repository.OrderRefunded {
		return s.refundThenTransition(ctx, "order.update_status", orderID, apply)
	}
	return s.transition(ctx, "order.update_status", orderID, apply)
}

func (s *orderService) UpdatePaymentStatus(ctx context.Context, orderID int64, status repository.PaymentStatus) (*repository.Order, error) {
	status, err := ParsePaymentStatus(string(status))
	if err != nil {
		return nil, err
	}
	apply := func(order *repository.Order) error {
		return applyPaymentStatus(order, status, s.now().Unix())
	}
	var order *repository.Order
	if status == repository.PaymentRefunded {
		order, err = s.refundThenTransition(ctx, "order.update_payment_status", orderID, apply)
	} else {
		order, err = s.transition(ctx, "order.update_payment_status", orderID, apply)
	}
	if err != nil {
		return nil, err
	}
	s.publishPayment(ctx, order, "")
	return order, nil
}

func (s *orderService) MarkOrderAsPaid(ctx context.Context, orderID int64, intentID, receiptURL string) (*repository.Order, error) {
	order, err := s.transition(ctx, "order.mark_paid", orderID, func(order *repository.Order) error {
		markPaid(order, s.now().Unix())
		if intentID != "" {
			order.PaymentIntentID = intentID
		}
		if receiptURL != "" {
			order.ReceiptURL = receiptURL
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	paymentOutcomes.WithLabelValues("succeeded").Inc()
	s.publishPayment(ctx, order, "")
	return order, nil
}

func (s *orderService) MarkOrderPaymentFailed(ctx context.Context, orderID int64, intentID string) (*repository.Order, error) {
	order, err := s.transition(ctx, "order.mark_failed", orderID, func(order *repository.Order) error {
		order.PaymentStatus = repository.PaymentFailed
		order.Status = repository.OrderPaymentFailed
		if intentID != "" {
			order.PaymentIntentID = intentID
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	paymentOutcomes.WithLabelValues("failed").Inc()
	s.publishPayment(ctx, order, "payment failed")
	return order, nil
}

func (s *orderService) MarkAsRefunded(ctx context.Context, orderID int64) (*repository.Order, error) {
	order, err := s.transition(ctx, "order.mark_refunded", orderID, applyRefund)
	if err != nil {
		return nil, err
	}
	paymentOutcomes.WithLabelValues("refunded").Inc()
	s.publishPayment(ctx, order, "")
	return order, nil
}

func (s *orderService) RefundOrder(ctx context.Context, orderID int64) (*repository.Order, error) {
	order, err := s.refundThenTransition(ctx, "order.refund", orderID, applyRefund)
	if err != nil {
		return nil, err
	}
	paymentOutcomes.WithLabelValues("refunded").Inc()
	s.publishPayment(ctx, order, "")
	return order, nil
}

func (s *orderService) SavePaymentSession(ctx context.Context, orderID int64, sessionID string) (*repository.Order, error) {
	if sessionID == "" {
		return nil, invalidf("session id is required / 支付会话不能为空")
	}
	return s.transition(ctx, "order.save_session", orderID, func(order *repository.Order) error {
		if order.PaymentStatus == repository.PaymentPaid {
			return fmt.Errorf("%w: order %d is already paid / 订单已支付", ErrConflict, orderID)
		}
		order.PaymentIntentID = sessionID
		order.PaymentStatus = repository.PaymentPending
		if order.Status == repository.OrderPaymentFailed {
			order.Status = repository.OrderPending
		}
		return nil
	})
}

// transition loads, mutates and stores one order inside a transaction.
func (s *orderService) transition(ctx context.Context, name string, orderID int64, apply func(*repository.Order) error) (order *repository.Order, err error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("order %w", errIncomplete)
	}
	ctx, span := startSpan(ctx, name)
	span.SetAttributes(attribute.Int64("order.id", orderID))
	defer func() { endSpan(span, err) }()

	err = s.store.InTx(ctx, func(tx repository.Store) error {
		var err error
		order, err = tx.Orders().FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		if err := apply(order); err != nil {
			return err
		}
		if err := checkInvariant(order); err != nil {
			return err
		}
		return tx.Orders().Update(ctx, order)
	})
	if err != nil {
		return nil, mapRepoErr(err)
	}
	orderTransitions.WithLabelValues(string(order.Status)).Inc()
	return order, nil
}

// refundThenTransition validates apply against the current row, refunds a PAID order at the
// gateway and only then stores the new status. If the update fails after the refund went
// through, the charge.refunded webhook marks the order later.
func (s *orderService) refundThenTransition(ctx context.Context, name string, orderID int64, apply func(*repository.Order) error) (*repository.Order, error) {
	current, err := s.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	preview := *current
	if err := apply(&preview); err != nil {
		return nil, err
	}
	if err := s.refundCharge(ctx, current); err != nil {
		return nil, err
	}
	return s.transition(ctx, name, orderID, apply)
}

// refundCharge sends the refund for a PAID order. Payments recorded without an intent id
// were taken outside the gateway and have nothing to refund there.
func (s *orderService) refundCharge(ctx context.Context, order *repository.Order) error {
	if order.PaymentStatus != repository.PaymentPaid || order.PaymentIntentID == "" {
		return nil
	}
	if s.refunds == nil {
		return fmt.Errorf("%w: refund for order %d / 支付网关未配置，无法退款", ErrNotConfigured, order.ID)
	}
	refund, err := s.refunds.Refund(ctx, payment.RefundRequest{
		OrderID:         order.ID,
		PaymentIntentID: order.PaymentIntentID,
		Amount:          order.TotalAmount,
	})
	if err != nil {
		paymentOutcomes.WithLabelValues("refund_failed").Inc()
		s.logger.ErrorContext(ctx, "gateway refund failed", "order_id", order.ID, "error", err)
		return fmt.Errorf("%w: refund order %d: %v", ErrGateway, order.ID, err)
	}
	s.logger.InfoContext(ctx, "payment refunded", "order_id", order.ID, "refund_id", refund.ID, "refund_status", refund.Status)
	return nil
}

func (s *orderService) publishPayment(ctx context.Context, order *repository.Order, reason string) {
	var name string
	switch order.PaymentStatus {
	case repository.PaymentPaid:
		name = events.PaymentSucceeded
	case repository.PaymentFailed:
		name = events.PaymentFailed
	case repository.PaymentRefunded:
		name = events.PaymentRefunded
	default:
		return
	}
	publish(ctx, s.events, s.logger, name, orderKey(order.ID), events.PaymentPayload{
		OrderID:         order.ID,
		PaymentIntentID: order.PaymentIntentID,
		Amount:          order.TotalAmount.StringFixed(2),
		Reason:          reason,
	})
}

func (s *orderService) sendConfirmation(ctx context.Context, user *repository.User, order *repository.Order) {
	if s.notifier == nil || user == nil || user.Email == "" {
		return
	}
	lines := make([]map[string]any, 0, len(order.Items))
	for _, item := range order.Items {
		lines = append(lines, map[string]any{
			"name":     item.ProductName,
			"quantity": item.Quantity,
			"price":    item.UnitPrice.StringFixed(2),
			"subtotal": item.Subtotal.StringFixed(2),
		})
	}
	err := s.notifier.SendEmail(ctx, notifier.EmailRequest{
		To:       user.Email,
		Subject:  fmt.Sprintf("Order #%d confirmation", order.ID),
		Template: notifier.TemplateOrderConfirmation,
		Variables: map[string]any{
			"name":    user.Name,
			"orderId": order.ID,
			"total":   order.TotalAmount.StringFixed(2),
			"items":   lines,
		},
	})
	if err != nil {
		s.logger.WarnContext(ctx, "order confirmation not queued", "order_id", order.ID, "error", err)
	}
}

func orderKey(id int64) string {
	return fmt.Sprintf("order-%d", id)
}

func orderPayload(order *repository.Order) events.OrderPayload {
	count := 0
	for _, item := range order.Items {
		count += item.Quantity
	}
	return events.OrderPayload{
		OrderID:       order.ID,
		UserID:        order.UserID,
		Status:        string(order.Status),
		PaymentStatus: string(order.PaymentStatus),
		TotalAmount:   order.TotalAmount.StringFixed(2),
		ItemCount:     count,
	}
}
