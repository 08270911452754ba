// Package stockwatch consumes order-placed events and re-evaluates the
// stock health of the affected products, publishing low-stock alerts.
package stockwatch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/EnzoBerlesi/Kachau-Loja-sub000/internal/catalog"
	kafkax "github.com/EnzoBerlesi/Kachau-Loja-sub000/internal/kafka"
	"github.com/EnzoBerlesi/Kachau-Loja-sub000/internal/orders"
	"github.com/EnzoBerlesi/Kachau-Loja-sub000/internal/redisx"
	"github.com/EnzoBerlesi/Kachau-Loja-sub000/internal/reports"
)

// AlertPublisher is the slice of the Kafka producer the watcher needs;
// *kafkax.Producer satisfies it.
type AlertPublisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

// Dedup is the slice of the Redis client used for event dedup;
// *redis.Client satisfies it.
type Dedup interface {
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

type Watcher struct {
	Ledger          catalog.Ledger
	Redis           Dedup
	Producer        AlertPublisher // publishes stock.low
	MinStockDefault int
	ServiceName     string
	Log             *zap.Logger
}

// HandleOrderPlaced is wired as the consumer handler for order.placed.
func (w *Watcher) HandleOrderPlaced(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}
	if env.EventType != orders.EventOrderPlaced {
		return nil
	}

	// event-level dedup; reprocessing an already seen event must not
	// raise duplicate alerts
	dkey := fmt.Sprintf(redisx.KeyDedup, "stockwatch", env.EventID)
	if n, _ := w.Redis.Exists(ctx, dkey).Result(); n > 0 {
		return nil
	}

	p, err := kafkax.UnwrapPayload[orders.OrderPlacedPayload](env.Payload)
	if err != nil {
		return err
	}

	for _, item := range p.Items {
		prod, err := w.Ledger.Product(ctx, item.ProductID)
		if err != nil {
			// product may have been removed from the catalog; skip
			continue
		}
		threshold := prod.MinStock
		if threshold <= 0 {
			threshold = w.MinStockDefault
		}
		level := reports.Classify(prod.Stock, threshold)
		if level == reports.LevelNormal {
			continue
		}
		w.publishAlert(prod, threshold, level, env.TraceID)
	}

	// mark the event seen only after a full pass; a failed run is
	// redelivered and tried again
	_ = w.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()
	return nil
}

func (w *Watcher) publishAlert(p catalog.Product, threshold int, level reports.StockLevel, trace string) {
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     orders.EventStockLow,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      w.ServiceName,
		TraceID:       trace,
		CorrelationID: p.ID,
		Payload: kafkax.MustMarshal(orders.StockLowPayload{
			ProductID: p.ID,
			Stock:     p.Stock,
			Threshold: threshold,
			Level:     string(level),
		}),
	}
	w.Producer.Publish([]byte(p.ID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventStockLow)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
	if w.Log != nil {
		w.Log.Warn("stock below threshold",
			zap.String("product_id", p.ID),
			zap.String("sku", p.SKU),
			zap.Int("stock", p.Stock),
			zap.Int("threshold", threshold),
			zap.String("level", string(level)),
		)
	}
}
