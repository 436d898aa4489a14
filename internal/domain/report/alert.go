package report

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/carehub/hms/internal/platform/scheduler"
)

// AlertJob logs medicines below their minimum level and batches expiring
// within window. It is meant to run on the scheduler.
func AlertJob(stock Stock, window time.Duration, logger zerolog.Logger) scheduler.Job {
	return func(ctx context.Context) error {
		low, err := stock.LowStock(ctx)
		if err != nil {
			return err
		}
		for _, m := range low {
			logger.Warn().
				Str("medicine_id", m.ID.String()).
				Str("medicine", m.Name).
				Int("current_stock", m.CurrentStock).
				Int("min_stock_level", m.MinStockLevel).
				Msg("low stock")
		}

		expiring, err := stock.Expiring(ctx, window)
		if err != nil {
			return err
		}
		for _, b := range expiring {
			logger.Warn().
				Str("medicine", b.MedicineName).
				Str("batch", b.BatchNumber).
				Int("quantity", b.Quantity).
				Time("expiry_date", b.ExpiryDate).
				Bool("expired", b.Expired).
				Msg("batch expiring")
		}

		logger.Info().Int("low_stock", len(low)).Int("expiring", len(expiring)).Msg("stock check complete")
		return nil
	}
}
