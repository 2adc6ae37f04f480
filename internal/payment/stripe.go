package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

// StripeOptions 配置 Stripe 网关。
type StripeOptions struct {
	SecretKey      string
	PublishableKey string
	WebhookSecret  string
	Currency       string
	// Backends overrides the API endpoint, used by tests.
	Backends *stripe.Backends
}

// StripeGateway implements Gateway on stripe-go.
type StripeGateway struct {
	api            *client.API
	publishableKey string
	webhookSecret  string
	currency       string
}

// NewStripeGateway builds a gateway with its own API client so the global stripe.Key stays unset.
func NewStripeGateway(opts StripeOptions) (*StripeGateway, error) {
	if strings.TrimSpace(opts.SecretKey) == "" {
		return nil, fmt.Errorf("stripe secret key: %w", ErrNotConfigured)
	}
	currency := strings.ToLower(strings.TrimSpace(opts.Currency))
	if currency == "" {
		currency = string(stripe.CurrencyUSD)
	}
	return &StripeGateway{
		api:            client.New(opts.SecretKey, opts.Backends),
		publishableKey: opts.PublishableKey,
		webhookSecret:  opts.WebhookSecret,
		currency:       currency,
	}, nil
}

func (g *StripeGateway) PublishableKey() string {
	return g.publishableKey
}

func (g *StripeGateway) currencyOr(c string) string {
	if c = strings.ToLower(strings.TrimSpace(c)); c != "" {
		return c
	}
	return g.currency
}

func (g *StripeGateway) CreatePaymentIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(ToMinorUnits(req.Amount)),
		Currency:      stripe.String(g.currencyOr(req.Currency)),
		CaptureMethod: stripe.String(string(stripe.PaymentIntentCaptureMethodAutomatic)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	if req.Description != "" {
		params.Description = stripe.String(req.Description)
	}
	if req.ReceiptEmail != "" {
		params.ReceiptEmail = stripe.String(req.ReceiptEmail)
	}
	params.AddMetadata(MetaOrderID, strconv.FormatInt(req.OrderID, 10))
	if req.UserID > 0 {
		params.AddMetadata(MetaUserID, strconv.FormatInt(req.UserID, 10))
	}
	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		return nil, fmt.Errorf("create payment intent: %w", err)
	}
	return intentFromStripe(pi), nil
}

func (g *StripeGateway) ConfirmPaymentIntent(ctx context.Context, intentID, paymentMethodID string) (*Intent, error) {
	params := &stripe.PaymentIntentConfirmParams{}
	params.Context = ctx
	if paymentMethodID != "" {
		params.PaymentMethod = stripe.String(paymentMethodID)
	}
	pi, err := g.api.PaymentIntents.Confirm(intentID, params)
	if err != nil {
		return nil, fmt.Errorf("confirm payment intent: %w", err)
	}
	return intentFromStripe(pi), nil
}

func (g *StripeGateway) CancelPaymentIntent(ctx context.Context, intentID string) (*Intent, error) {
	params := &stripe.PaymentIntentCancelParams{}
	params.Context = ctx
	pi, err := g.api.PaymentIntents.Cancel(intentID, params)
	if err != nil {
		return nil, fmt.Errorf("cancel payment intent: %w", err)
	}
	return intentFromStripe(pi), nil
}

func (g *StripeGateway) GetPaymentIntent(ctx context.Context, intentID string) (*Intent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	params.AddExpand("latest_charge")
	pi, err := g.api.PaymentIntents.Get(intentID, params)
	if err != nil {
		return nil, fmt.Errorf("get payment intent: %w", err)
	}
	return intentFromStripe(pi), nil
}

// Refund is keyed per order so a retried cancel never refunds twice.
func (g *StripeGateway) Refund(ctx context.Context, req RefundRequest) (*Refund, error) {
	if strings.TrimSpace(req.PaymentIntentID) == "" {
		return nil, errors.New("refund: payment intent id is required / 缺少支付意图")
	}
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(req.PaymentIntentID),
		Reason:        stripe.String(string(stripe.RefundReasonRequestedByCustomer)),
	}
	params.Context = ctx
	if req.Amount.IsPositive() {
		params.Amount = stripe.Int64(ToMinorUnits(req.Amount))
	}
	if req.OrderID > 0 {
		params.AddMetadata(MetaOrderID, strconv.FormatInt(req.OrderID, 10))
		params.SetIdempotencyKey(fmt.Sprintf("refund-order-%d", req.OrderID))
	}
	r, err := g.api.Refunds.New(params)
	if err != nil {
		return nil, fmt.Errorf("create refund: %w", err)
	}
	return &Refund{
		ID:       r.ID,
		Status:   string(r.Status),
		Amount:   FromMinorUnits(r.Amount),
		Currency: string(r.Currency),
	}, nil
}

func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	currency := g.currencyOr(req.Currency)
	orderID := strconv.FormatInt(req.OrderID, 10)
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		ClientReferenceID: stripe.String(orderID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(currency),
				UnitAmount: stripe.Int64(ToMinorUnits(req.Amount)),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name:        stripe.String("Order #" + orderID),
					Description: stripe.String("Purchase from CliqShop"),
				},
			},
			Quantity: stripe.Int64(1),
		}},
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: map[string]string{MetaOrderID: orderID},
		},
	}
	params.Context = ctx
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	params.AddMetadata(MetaOrderID, orderID)
	if req.UserID > 0 {
		params.AddMetadata(MetaUserID, strconv.FormatInt(req.UserID, 10))
		params.PaymentIntentData.Metadata[MetaUserID] = strconv.FormatInt(req.UserID, 10)
	}
	sess, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	return &CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

func (g *StripeGateway) ParseWebhook(payload []byte, signature string) (*Event, error) {
	if g.webhookSecret == "" {
		return nil, fmt.Errorf("stripe webhook secret: %w", ErrNotConfigured)
	}
	evt, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return decodeEvent(evt)
}

func decodeEvent(evt stripe.Event) (*Event, error) {
	out := &Event{ID: evt.ID, Type: string(evt.Type)}
	if evt.Data == nil {
		return out, nil
	}
	switch out.Type {
	case EventCheckoutCompleted:
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(evt.Data.Raw, &sess); err != nil {
			return nil, fmt.Errorf("decode checkout session: %w", err)
		}
		out.ObjectID = sess.ID
		out.OrderID = parseMetaID(sess.Metadata, MetaOrderID)
		out.UserID = parseMetaID(sess.Metadata, MetaUserID)
		if out.OrderID == 0 && sess.ClientReferenceID != "" {
			out.OrderID, _ = strconv.ParseInt(sess.ClientReferenceID, 10, 64)
		}
		if sess.PaymentIntent != nil {
			out.PaymentIntentID = sess.PaymentIntent.ID
		}
		out.Amount = FromMinorUnits(sess.AmountTotal)
		out.Currency = string(sess.Currency)
	case EventIntentSucceeded, EventIntentFailed:
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(evt.Data.Raw, &pi); err != nil {
			return nil, fmt.Errorf("decode payment intent: %w", err)
		}
		intent := intentFromStripe(&pi)
		out.ObjectID = pi.ID
		out.PaymentIntentID = pi.ID
		out.OrderID = intent.OrderID
		out.UserID = parseMetaID(pi.Metadata, MetaUserID)
		out.Amount = intent.Amount
		out.Currency = intent.Currency
		out.ReceiptURL = intent.ReceiptURL
		out.LastFour = intent.LastFour
		if pi.LastPaymentError != nil {
			out.FailureMessage = pi.LastPaymentError.Msg
		}
	case EventChargeRefunded:
		var ch stripe.Charge
		if err := json.Unmarshal(evt.Data.Raw, &ch); err != nil {
			return nil, fmt.Errorf("decode charge: %w", err)
		}
		out.ObjectID = ch.ID
		out.OrderID = parseMetaID(ch.Metadata, MetaOrderID)
		if ch.PaymentIntent != nil {
			out.PaymentIntentID = ch.PaymentIntent.ID
		}
		out.Amount = FromMinorUnits(ch.AmountRefunded)
		out.Currency = string(ch.Currency)
		out.ReceiptURL = ch.ReceiptURL
	}
	return out, nil
}

func intentFromStripe(pi *stripe.PaymentIntent) *Intent {
	if pi == nil {
		return nil
	}
	out := &Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       string(pi.Status),
		Amount:       FromMinorUnits(pi.Amount),
		Currency:     string(pi.Currency),
		OrderID:      parseMetaID(pi.Metadata, MetaOrderID),
	}
	if ch := pi.LatestCharge; ch != nil {
		out.ReceiptURL = ch.ReceiptURL
		if ch.PaymentMethodDetails != nil && ch.PaymentMethodDetails.Card != nil {
			out.LastFour = ch.PaymentMethodDetails.Card.Last4
		}
	}
	return out
}

var _ Gateway = (*StripeGateway)(nil)
