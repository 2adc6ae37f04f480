// 文件路径: internal/service/payment.go
// 模块说明: 包装支付网关，创建支付意图/收银台会话并处理网关回调。
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/cliqshop/shop/internal/payment"
	"github.com/cliqshop/shop/internal/repository"
	"github.com/cliqshop/shop/internal/security"
)

const gatewayName = "stripe"

// CheckoutInput 描述收银台会话请求。空的跳转地址使用配置值。
type CheckoutInput struct {
	OrderID    int64
	SuccessURL string
	CancelURL  string
}

// PaymentService 对接外部支付网关。所有用户操作都会校验订单归属。
type PaymentService interface {
	CreatePaymentIntent(ctx context.Context, userID, orderID int64) (*payment.Intent, error)
	ConfirmPaymentIntent(ctx context.Context, userID int64, intentID, paymentMethodID string) (*payment.Intent, error)
	CancelPaymentIntent(ctx context.Context, userID int64, intentID string) (*payment.Intent, error)
	GetPaymentIntent(ctx context.Context, userID int64, intentID string) (*payment.Intent, error)
	CreateCheckoutSession(ctx context.Context, userID int64, input CheckoutInput) (*payment.CheckoutSession, error)
	PublishableKey() string
	// HandleWebhook returns an error only when the signature is rejected.
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
}

// PaymentDeps 聚合支付服务依赖。
type PaymentDeps struct {
	Gateway    payment.Gateway
	Orders     OrderService
	Store      repository.Store
	Currency   string
	SuccessURL string
	CancelURL  string
	Audit      security.Recorder
	Logger     *slog.Logger
}

// NewPaymentService 组装支付服务。Gateway 为空时除 PublishableKey 外均返回 ErrNotConfigured。
func NewPaymentService(deps PaymentDeps) PaymentService {
	return &paymentService{
		gateway:    deps.Gateway,
		orders:     deps.Orders,
		store:      deps.Store,
		currency:   strings.ToLower(strings.TrimSpace(deps.Currency)),
		successURL: deps.SuccessURL,
		cancelURL:  deps.CancelURL,
		audit:      deps.Audit,
		logger:     orDiscard(deps.Logger).With("component", "payment"),
	}
}

type paymentService struct {
	gateway    payment.Gateway
	orders     OrderService
	store      repository.Store
	currency   string
	successURL string
	cancelURL  string
	audit      security.Recorder
	logger     *slog.Logger
}

func (s *paymentService) ready() error {
	if s == nil || s.gateway == nil {
		return ErrNotConfigured
	}
	if s.orders == nil || s.store == nil {
		return fmt.Errorf("payment %w", errIncomplete)
	}
	return nil
}

func (s *paymentService) PublishableKey() string {
	if s == nil || s.gateway == nil {
		return ""
	}
	return s.gateway.PublishableKey()
}

func (s *paymentService) CreatePaymentIntent(ctx context.Context, userID, orderID int64) (intent *payment.Intent, err error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	ctx, span := startSpan(ctx, "payment.create_intent")
	span.SetAttributes(attribute.Int64("order.id", orderID))
	defer func() { endSpan(span, err) }()

	order, err := s.payableOrder(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	req := payment.IntentRequest{
		OrderID:     order.ID,
		UserID:      userID,
		Amount:      order.TotalAmount,
		Currency:    s.currency,
		Description: fmt.Sprintf("Order #%d", order.ID),
	}
	if user, err := s.store.Users().FindByID(ctx, userID); err == nil {
		req.ReceiptEmail = user.Email
	}
	intent, err = s.gateway.CreatePaymentIntent(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGateway, err)
	}
	if _, err := s.orders.SavePaymentSession(ctx, order.ID, intent.ID); err != nil {
		return nil, err
	}
	s.recordDetails(ctx, order.ID, intent.ID, intent, repository.TxPending, "")
	return intent, nil
}

func (s *paymentService) ConfirmPaymentIntent(ctx context.Context, userID int64, intentID, paymentMethodID string) (*payment.Intent, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	order, err := s.orderForIntent(ctx, userID, intentID)
	if err != nil {
		return nil, err
	}
	intent, err := s.gateway.ConfirmPaymentIntent(ctx, intentID, strings.TrimSpace(paymentMethodID))
	if err != nil {
		s.recordDetails(ctx, order.ID, intentID, nil, repository.TxFailed, err.Error())
		return nil, fmt.Errorf("%w: %v", ErrGateway, err)
	}
	status := repository.TxPending
	if intent.Status == "succeeded" {
		status = repository.TxCompleted
	}
	s.recordDetails(ctx, order.ID, intentID, intent, status, "")
	return intent, nil
}

func (s *paymentService) CancelPaymentIntent(ctx context.Context, userID int64, intentID string) (*payment.Intent, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	order, err := s.orderForIntent(ctx, userID, intentID)
	if err != nil {
		return nil, err
	}
	intent, err := s.gateway.CancelPaymentIntent(ctx, intentID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGateway, err)
	}
	s.recordDetails(ctx, order.ID, intentID, intent, repository.TxCancelled, "")
	return intent, nil
}

func (s *paymentService) GetPaymentIntent(ctx context.Context, userID int64, intentID string) (*payment.Intent, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if _, err := s.orderForIntent(ctx, userID, intentID); err != nil {
		return nil, err
	}
	intent, err := s.gateway.GetPaymentIntent(ctx, intentID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGateway, err)
	}
	return intent, nil
}

func (s *paymentService) CreateCheckoutSession(ctx context.Context, userID int64, input CheckoutInput) (session *payment.CheckoutSession, err error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	ctx, span := startSpan(ctx, "payment.create_checkout")
	span.SetAttributes(attribute.Int64("order.id", input.OrderID))
	defer func() { endSpan(span, err) }()

	order, err := s.payableOrder(ctx, userID, input.OrderID)
	if err != nil {
		return nil, err
	}
	req := payment.CheckoutRequest{
		OrderID:    order.ID,
		UserID:     userID,
		Amount:     order.TotalAmount,
		Currency:   s.currency,
		SuccessURL: firstNonEmpty(input.SuccessURL, s.successURL),
		CancelURL:  firstNonEmpty(input.CancelURL, s.cancelURL),
	}
	if req.SuccessURL == "" || req.CancelURL == "" {
		return nil, invalidf("success and cancel urls are required / 支付跳转地址不能为空")
	}
	if user, err := s.store.Users().FindByID(ctx, userID); err == nil {
		req.CustomerEmail = user.Email
	}
	session, err = s.gateway.CreateCheckoutSession(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGateway, err)
	}
	if _, err := s.orders.SavePaymentSession(ctx, order.ID, session.ID); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *paymentService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	if err := s.ready(); err != nil {
		return err
	}
	evt, err := s.gateway.ParseWebhook(payload, signature)
	if err != nil {
		if s.audit != nil {
			s.audit.Record(ctx, security.Event{
				Kind:     security.EventWebhookRejected,
				Metadata: map[string]any{"error": err.Error()},
				Occurred: time.Now(),
			})
		}
		if errors.Is(err, payment.ErrInvalidSignature) {
			return err
		}
		return fmt.Errorf("%w: %v", payment.ErrInvalidSignature, err)
	}

	ctx, span := startSpan(ctx, "payment.webhook")
	span.SetAttributes(attribute.String("webhook.type", evt.Type), attribute.String("webhook.id", evt.ID))
	procErr := s.dispatch(ctx, evt)
	endSpan(span, procErr)
	if procErr != nil {
		s.logger.ErrorContext(ctx, "webhook processing failed", "event_id", evt.ID, "type", evt.Type, "order_id", evt.OrderID, "error", procErr)
	}
	return nil
}

func (s *paymentService) dispatch(ctx context.Context, evt *payment.Event) error {
	switch evt.Type {
	case payment.EventCheckoutCompleted, payment.EventIntentSucceeded,
		payment.EventIntentFailed, payment.EventChargeRefunded:
	default:
		s.logger.InfoContext(ctx, "webhook ignored", "event_id", evt.ID, "type", evt.Type)
		return nil
	}

	orderID, err := s.resolveOrder(ctx, evt)
	if err != nil {
		return err
	}
	transaction := firstNonEmpty(evt.PaymentIntentID, evt.ObjectID)

	switch evt.Type {
	case payment.EventCheckoutCompleted, payment.EventIntentSucceeded:
		order, err := s.orders.MarkOrderAsPaid(ctx, orderID, evt.PaymentIntentID, evt.ReceiptURL)
		if err != nil {
			return err
		}
		now := time.Now().Unix()
		s.upsertDetails(ctx, &repository.PaymentDetails{
			OrderID:       order.ID,
			Method:        repository.MethodStripe,
			TransactionID: transaction,
			Amount:        evt.Amount,
			Currency:      evt.Currency,
			Status:        repository.TxCompleted,
			PaymentDate:   &now,
			LastFour:      evt.LastFour,
			Gateway:       gatewayName,
		})
	case payment.EventIntentFailed:
		order, err := s.orders.MarkOrderPaymentFailed(ctx, orderID, evt.PaymentIntentID)
		if err != nil {
			return err
		}
		s.upsertDetails(ctx, &repository.PaymentDetails{
			OrderID:       order.ID,
			Method:        repository.MethodStripe,
			TransactionID: transaction,
			Amount:        evt.Amount,
			Currency:      evt.Currency,
			Status:        repository.TxFailed,
			Gateway:       gatewayName,
			ErrorMessage:  evt.FailureMessage,
		})
	case payment.EventChargeRefunded:
		order, err := s.orders.MarkAsRefunded(ctx, orderID)
		if err != nil {
			return err
		}
		s.upsertDetails(ctx, &repository.PaymentDetails{
			OrderID:       order.ID,
			Method:        repository.MethodStripe,
			TransactionID: transaction,
			Amount:        evt.Amount,
			Currency:      evt.Currency,
			Status:        repository.TxRefunded,
			Gateway:       gatewayName,
		})
	}
	return nil
}

// resolveOrder prefers the orderId metadata and falls back to the stored session or intent id.
func (s *paymentService) resolveOrder(ctx context.Context, evt *payment.Event) (int64, error) {
	if evt.OrderID > 0 {
		return evt.OrderID, nil
	}
	for _, ref := range []string{evt.ObjectID, evt.PaymentIntentID} {
		if ref == "" {
			continue
		}
		order, err := s.store.Orders().FindByPaymentIntent(ctx, ref)
		if err == nil {
			return order.ID, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return 0, err
		}
	}
	return 0, fmt.Errorf("%w: no order for event %s", ErrNotFound, evt.ID)
}

func (s *paymentService) payableOrder(ctx context.Context, userID, orderID int64) (*repository.Order, error) {
	order, err := s.orders.GetForUser(ctx, orderID, userID)
	if err != nil {
		return nil, err
	}
	switch order.PaymentStatus {
	case repository.PaymentPaid, repository.PaymentRefunded:
		return nil, fmt.Errorf("%w: order %d is %s / 订单无需支付", ErrConflict, orderID, order.PaymentStatus)
	}
	if order.Status == repository.OrderCancelled {
		return nil, fmt.Errorf("%w: order %d is cancelled / 订单已取消", ErrConflict, orderID)
	}
	return order, nil
}

func (s *paymentService) orderForIntent(ctx context.Context, userID int64, intentID string) (*repository.Order, error) {
	intentID = strings.TrimSpace(intentID)
	if intentID == "" {
		return nil, invalidf("payment intent id is required / 支付意图不能为空")
	}
	order, err := s.store.Orders().FindByPaymentIntent(ctx, intentID)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	if order.UserID != userID {
		return nil, fmt.Errorf("%w: payment intent %s / 无权访问该支付", ErrForbidden, intentID)
	}
	return order, nil
}

func (s *paymentService) recordDetails(ctx context.Context, orderID int64, transactionID string, intent *payment.Intent, status repository.TransactionStatus, failure string) {
	details := &repository.PaymentDetails{
		OrderID:       orderID,
		Method:        repository.MethodStripe,
		TransactionID: transactionID,
		Currency:      s.currency,
		Status:        status,
		Gateway:       gatewayName,
		ErrorMessage:  failure,
	}
	if intent != nil {
		details.Amount = intent.Amount
		details.Currency = firstNonEmpty(intent.Currency, s.currency)
		details.LastFour = intent.LastFour
	}
	if status == repository.TxCompleted {
		now := time.Now().Unix()
		details.PaymentDate = &now
	}
	s.upsertDetails(ctx, details)
}

func (s *paymentService) upsertDetails(ctx context.Context, details *repository.PaymentDetails) {
	if details.TransactionID == "" {
		return
	}
	if err := s.store.Payments().Upsert(ctx, details); err != nil {
		s.logger.WarnContext(ctx, "payment details not recorded", "order_id", details.OrderID, "transaction", details.TransactionID, "error", err)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
