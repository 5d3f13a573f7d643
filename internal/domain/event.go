package domain

import (
	"time"

	"github.com/google/uuid"
)

type BookingEventType string

const (
	BookingCreated   BookingEventType = "booking.created"
	BookingUpdated   BookingEventType = "booking.updated"
	BookingCancelled BookingEventType = "booking.cancelled"
	BookingDeleted   BookingEventType = "booking.deleted"
)

// BookingEvent describes a committed change to a booking.
type BookingEvent struct {
	ID         uuid.UUID
	Type       BookingEventType
	Booking    Booking
	Actor      string
	OccurredAt time.Time
}

func NewBookingEvent(typ BookingEventType, b Booking, actor string, at time.Time) BookingEvent {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return BookingEvent{ID: id, Type: typ, Booking: b, Actor: actor, OccurredAt: at}
}
