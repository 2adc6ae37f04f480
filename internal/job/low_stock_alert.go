package job

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cliqshop/shop/internal/notifier"
	"github.com/cliqshop/shop/internal/repository"
)

// LowStockAlertJob mails the stock keeper a digest of products at or below their threshold.
type LowStockAlertJob struct {
	Inventory repository.InventoryRepository
	Notifier  notifier.Service
	Recipient string
	Logger    *slog.Logger
}

func NewLowStockAlertJob(inventory repository.InventoryRepository, n notifier.Service, recipient string, logger *slog.Logger) *LowStockAlertJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &LowStockAlertJob{Inventory: inventory, Notifier: n, Recipient: recipient, Logger: logger}
}

func (j *LowStockAlertJob) Name() string { return "inventory.low_stock_alert" }

func (j *LowStockAlertJob) Run(ctx context.Context) error {
	if j == nil || j.Inventory == nil {
		return fmt.Errorf("low stock alert job dependencies not configured / 库存预警任务依赖未配置")
	}
	items, err := j.Inventory.LowStock(ctx)
	if err != nil {
		return fmt.Errorf("low stock alert: %w", err)
	}
	if len(items) == 0 {
		return nil
	}
	lines := make([]map[string]any, 0, len(items))
	for _, inv := range items {
		lines = append(lines, map[string]any{
			"productId": inv.ProductID,
			"name":      inv.ProductName,
			"quantity":  inv.Quantity,
			"threshold": inv.LowStockThreshold,
		})
	}
	j.Logger.Warn("products at or below stock threshold", "count", len(items))

	if j.Notifier == nil || j.Recipient == "" {
		return nil
	}
	return j.Notifier.SendEmail(ctx, notifier.EmailRequest{
		To:        j.Recipient,
		Subject:   fmt.Sprintf("%d products are low on stock", len(items)),
		Template:  notifier.TemplateLowStockAlert,
		Variables: map[string]any{"items": lines},
	})
}
