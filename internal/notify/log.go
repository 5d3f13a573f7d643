package notify

import (
	"context"

	"github.com/rs/zerolog"

	"agenda/backend/internal/domain"
)

// LogNotifier records booking events in the service log. It is used when no
// Kafka brokers are configured.
type LogNotifier struct {
	log zerolog.Logger
}

func NewLogNotifier(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: log.With().Str("component", "notify.log").Logger()}
}

func (n *LogNotifier) Publish(ctx context.Context, ev domain.BookingEvent) error {
	m := NewBookingMessage(ev)
	n.log.Info().
		Str("event_id", m.EventID).
		Str("event_type", m.EventType).
		Str("booking_id", m.Booking.ID).
		Str("doctor_id", m.Booking.DoctorID).
		Str("date", m.Booking.Date).
		Str("start_time", m.Booking.StartTime).
		Str("status", m.Booking.Status).
		Msg("booking event")
	return nil
}
