package notifier

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureService struct {
	got []EmailRequest
}

func (c *captureService) SendEmail(_ context.Context, req EmailRequest) error {
	c.got = append(c.got, req)
	return nil
}

func TestRendererOrderConfirmation(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	out, err := r.Render(EmailRequest{
		To:       "buyer@example.com",
		Template: TemplateOrderConfirmation,
		Variables: map[string]any{
			"name":    "Ada",
			"orderId": int64(42),
			"total":   "25.00",
			"items": []map[string]any{
				{"name": "Mug", "quantity": 2, "price": "10.00", "subtotal": "20.00"},
				{"name": "Pen", "quantity": 1, "price": "5.00", "subtotal": "5.00"},
			},
		},
	})
	require.NoError(t, err)
	assert.Contains(t, out.Body, "Hi Ada,")
	assert.Contains(t, out.Body, "order #42")
	assert.Contains(t, out.Body, "Mug  x2 @ 10.00 = 20.00")
	assert.Contains(t, out.Body, "Total: 25.00")
}

func TestRendererWelcomeFallsBackToUsername(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	out, err := r.Render(EmailRequest{
		Template:  TemplateWelcome,
		Variables: map[string]any{"name": "", "username": "ada", "provider": "google"},
	})
	require.NoError(t, err)
	assert.Contains(t, out.Body, "Hi ada,")
	assert.Contains(t, out.Body, "linked to your google login")
}

func TestRendererKeepsExistingBodyAndRejectsUnknownTemplate(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	out, err := r.Render(EmailRequest{Template: TemplateWelcome, Body: "custom"})
	require.NoError(t, err)
	assert.Equal(t, "custom", out.Body)

	_, err = r.Render(EmailRequest{Template: "nope"})
	require.ErrorIs(t, err, ErrUnknownTemplate)
}

func TestWithRenderingPassesRenderedRequest(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)
	next := &captureService{}

	svc := WithRendering(r, next)
	require.NoError(t, svc.SendEmail(context.Background(), EmailRequest{
		To:        "ops@example.com",
		Template:  TemplateLowStockAlert,
		Variables: map[string]any{"items": []map[string]any{{"productId": int64(7), "name": "Lamp", "quantity": 1, "threshold": 5}}},
	}))
	require.Len(t, next.got, 1)
	assert.Contains(t, next.got[0].Body, "#7 Lamp: 1 left (threshold 5)")

	err = svc.SendEmail(context.Background(), EmailRequest{Template: "missing"})
	require.ErrorIs(t, err, ErrUnknownTemplate)
	assert.Len(t, next.got, 1)
}
