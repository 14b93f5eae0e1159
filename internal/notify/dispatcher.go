package notify

import (
	"context"

	"lenspool/pkg/kafka"
	"lenspool/pkg/logger"
)

// Dispatcher delivers lifecycle notifications. Delivery is best-effort
// and fire-and-forget: implementations log failures and never return
// them, so a broken broker cannot block a booking transition.
type Dispatcher interface {
	Dispatch(ctx context.Context, event Event)
}

type publisher interface {
	Publish(ctx context.Context, msg kafka.Message) error
}

type kafkaDispatcher struct {
	producer publisher
	log      *logger.Logger
	source   string
}

func NewKafkaDispatcher(producer *kafka.Producer, log *logger.Logger, source string) Dispatcher {
	return &kafkaDispatcher{
		producer: producer,
		log:      log,
		source:   source,
	}
}

func (d *kafkaDispatcher) Dispatch(ctx context.Context, event Event) {
	msg := kafka.NewMessage().
		WithKey(event.Booking.BookingID).
		WithEventType(string(event.Type)).
		WithSource(d.source).
		WithSchemaVersion("1").
		WithValue(event).
		Build()

	if err := d.producer.Publish(ctx, msg); err != nil {
		// Swallowed: the store, not the broker, is authoritative.
		d.log.Warn("Failed to publish notification",
			"event_type", event.Type,
			"booking_id", event.Booking.BookingID,
			"error", err,
		)
		return
	}

	d.log.Debug("Notification published",
		"event_type", event.Type,
		"booking_id", event.Booking.BookingID,
	)
}

type nopDispatcher struct {
	log *logger.Logger
}

// NewNopDispatcher logs events without delivering them. Used when no
// broker is configured and in tests.
func NewNopDispatcher(log *logger.Logger) Dispatcher {
	return &nopDispatcher{log: log}
}

func (d *nopDispatcher) Dispatch(_ context.Context, event Event) {
	d.log.Info("Notification suppressed (no broker configured)",
		"event_type", event.Type,
		"booking_id", event.Booking.BookingID,
	)
}
