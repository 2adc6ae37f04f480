// 文件路径: internal/service/helpers.go
// 模块说明: 服务层共用的小工具与外部协作者接口。
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/cliqshop/shop/internal/repository"
)

// EventPublisher is satisfied by events.Publisher.
type EventPublisher interface {
	Publish(ctx context.Context, name, key string, payload any) error
}

// ProductBroadcaster is satisfied by the realtime hub.
type ProductBroadcaster interface {
	BroadcastProduct(action string, payload any)
}

// Page describes offset pagination.
type Page struct {
	Limit  int
	Offset int
}

// mapRepoErr converts repository sentinels to service sentinels, leaving other errors intact.
func mapRepoErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, repository.ErrConflict):
		return ErrConflict
	default:
		return err
	}
}

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// roundMoney rounds half-up (away from zero) to cents.
func roundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func orDiscard(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return discardLogger()
	}
	return logger
}

func publish(ctx context.Context, pub EventPublisher, logger *slog.Logger, name, key string, payload any) {
	if pub == nil {
		return
	}
	if err := pub.Publish(ctx, name, key, payload); err != nil {
		logger.WarnContext(ctx, "event not published", "event", name, "key", key, "error", err)
	}
}
