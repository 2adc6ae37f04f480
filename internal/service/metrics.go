package service

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	ordersPlaced = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "cliqshop",
		Subsystem: "orders",
		Name:      "placed_total",
		Help:      "Orders placed.",
	})
	orderTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cliqshop",
		Subsystem: "orders",
		Name:      "transitions_total",
		Help:      "Order status changes by resulting status.",
	}, []string{"status"})
	paymentOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cliqshop",
		Subsystem: "payments",
		Name:      "outcomes_total",
		Help:      "Payment callbacks by outcome.",
	}, []string{"outcome"})
)

var tracer = otel.Tracer("github.com/cliqshop/shop/internal/service")

func startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name)
}

// endSpan records err on the span before ending it.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
