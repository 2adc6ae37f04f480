// 文件路径: internal/payment/gateway.go
// 模块说明: 支付网关抽象与通用类型，业务层只依赖 Gateway 接口。
package payment

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Metadata keys attached to every intent and session.
const (
	MetaOrderID = "orderId"
	MetaUserID  = "userId"
)

// Webhook event types the shop reacts to.
const (
	EventCheckoutCompleted = "checkout.session.completed"
	EventIntentSucceeded   = "payment_intent.succeeded"
	EventIntentFailed      = "payment_intent.payment_failed"
	EventChargeRefunded    = "charge.refunded"
)

var (
	// ErrInvalidSignature is returned when a webhook payload fails verification.
	ErrInvalidSignature = errors.New("payment: invalid webhook signature / 签名校验失败")
	// ErrNotConfigured is returned when required gateway keys are missing.
	ErrNotConfigured = errors.New("payment: gateway not configured / 支付网关未配置")
)

// IntentRequest describes a new payment intent.
type IntentRequest struct {
	OrderID      int64
	UserID       int64
	Amount       decimal.Decimal
	Currency     string
	Description  string
	ReceiptEmail string
}

// Intent is the gateway view of a payment intent.
type Intent struct {
	ID           string
	ClientSecret string
	Status       string
	Amount       decimal.Decimal
	Currency     string
	ReceiptURL   string
	LastFour     string
	OrderID      int64
}

// CheckoutRequest describes a hosted checkout session for one order.
type CheckoutRequest struct {
	OrderID       int64
	UserID        int64
	Amount        decimal.Decimal
	Currency      string
	SuccessURL    string
	CancelURL     string
	CustomerEmail string
}

// CheckoutSession is the gateway view of a hosted checkout session.
type CheckoutSession struct {
	ID  string
	URL string
}

// RefundRequest returns captured funds for one order.
type RefundRequest struct {
	OrderID         int64
	PaymentIntentID string
	// Amount zero refunds whatever remains on the charge.
	Amount decimal.Decimal
}

// Refund is the gateway view of a created refund.
type Refund struct {
	ID       string
	Status   string
	Amount   decimal.Decimal
	Currency string
}

// Event is a verified webhook notification reduced to what order handling needs.
type Event struct {
	ID              string
	Type            string
	ObjectID        string
	OrderID         int64
	UserID          int64
	PaymentIntentID string
	Amount          decimal.Decimal
	Currency        string
	ReceiptURL      string
	LastFour        string
	FailureMessage  string
}

// Gateway 抽象外部支付服务。
type Gateway interface {
	CreatePaymentIntent(ctx context.Context, req IntentRequest) (*Intent, error)
	ConfirmPaymentIntent(ctx context.Context, intentID, paymentMethodID string) (*Intent, error)
	CancelPaymentIntent(ctx context.Context, intentID string) (*Intent, error)
	GetPaymentIntent(ctx context.Context, intentID string) (*Intent, error)
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
	Refund(ctx context.Context, req RefundRequest) (*Refund, error)
	// ParseWebhook verifies the signature header and decodes the event.
	ParseWebhook(payload []byte, signature string) (*Event, error)
	PublishableKey() string
}

// ToMinorUnits converts a 2dp amount to cents, rounding half-up.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// FromMinorUnits converts cents back to a 2dp amount.
func FromMinorUnits(units int64) decimal.Decimal {
	return decimal.New(units, -2)
}

func parseMetaID(meta map[string]string, key string) int64 {
	if meta == nil {
		return 0
	}
	id, err := strconv.ParseInt(strings.TrimSpace(meta[key]), 10, 64)
	if err != nil || id < 0 {
		return 0
	}
	return id
}
