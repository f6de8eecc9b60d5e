package checkout

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/dancrook1/w2f-config/internal/domain"
)

// Worker persists accepted configurations from the event bus. Keeping
// the write off the request path lets the submit endpoint answer as
// soon as the configuration is validated.
type Worker struct {
	bus  domain.EventBus
	repo domain.Repository

	// DuplicateWindow bounds how far back duplicate detection looks.
	duplicateWindow time.Duration

	subscriptions []domain.Subscription
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewWorker creates an order persistence worker.
func NewWorker(bus domain.EventBus, repo domain.Repository, duplicateWindow time.Duration) *Worker {
	if duplicateWindow <= 0 {
		duplicateWindow = 24 * time.Hour
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:             bus,
		repo:            repo,
		duplicateWindow: duplicateWindow,
		ctx:             ctx,
		cancel:          cancel,
	}
}

// Start subscribes to accepted configurations.
func (w *Worker) Start() error {
	sub, err := w.bus.Subscribe(w.ctx, domain.TopicConfigurationAccepted, w.handleMessage)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("checkout worker started",
		"topic", domain.TopicConfigurationAccepted,
	)
	return nil
}

func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	start := time.Now()

	var order domain.Order
	if err := json.Unmarshal(msg.Payload, &order); err != nil {
		slog.Error("failed to parse accepted configuration",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	duplicate, err := w.isDuplicate(ctx, &order)
	if err != nil {
		slog.Error("duplicate check failed",
			"order_id", order.ID,
			"error", err,
		)
	}
	if duplicate {
		slog.Info("duplicate configuration skipped",
			"order_id", order.ID,
			"configurator_id", order.ConfiguratorID,
		)
		return nil
	}

	order.Status = domain.OrderStatusAccepted
	if err := w.repo.SaveOrder(ctx, &order); err != nil {
		slog.Error("failed to save order",
			"order_id", order.ID,
			"error", err,
		)
		return err
	}

	payload, _ := json.Marshal(&order)
	if err := w.bus.Publish(ctx, domain.TopicOrderCreated, payload); err != nil {
		slog.Error("failed to publish order created",
			"order_id", order.ID,
			"error", err,
		)
	}

	slog.Info("order persisted",
		"order_id", order.ID,
		"configurator_id", order.ConfiguratorID,
		"total", order.Total,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// isDuplicate reports whether an identical configuration was already
// persisted inside the duplicate window. Configurations compare by
// normalized key set, so slot order never matters.
func (w *Worker) isDuplicate(ctx context.Context, order *domain.Order) (bool, error) {
	since := time.Now().UTC().Add(-w.duplicateWindow)
	existing, err := w.repo.ListOrdersByConfigurator(ctx, order.ConfiguratorID, since)
	if err != nil {
		return false, err
	}

	for _, o := range existing {
		if o.ID == order.ID {
			continue
		}
		if o.Configuration.Equal(order.Configuration) && quantitiesEqual(o.Quantities, order.Quantities) {
			return true, nil
		}
	}
	return false, nil
}

func quantitiesEqual(a, b domain.Quantities) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

// Stop gracefully stops the worker.
func (w *Worker) Stop() error {
	w.cancel()

	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	slog.Info("checkout worker stopped")
	return nil
}
