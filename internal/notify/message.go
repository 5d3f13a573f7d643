package notify

import (
	"time"

	"github.com/google/uuid"

	"agenda/backend/internal/domain"
)

// BookingMessage is the JSON body of a booking event.
type BookingMessage struct {
	EventID    string         `json:"event_id"`
	EventType  string         `json:"event_type"`
	OccurredAt time.Time      `json:"occurred_at"`
	Actor      string         `json:"actor,omitempty"`
	Booking    BookingPayload `json:"booking"`
}

type BookingPayload struct {
	ID          string `json:"id"`
	DoctorID    string `json:"doctor_id"`
	PatientID   string `json:"patient_id"`
	SpecialtyID string `json:"specialty_id,omitempty"`
	Date        string `json:"date"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	Status      string `json:"status"`
}

func NewBookingMessage(ev domain.BookingEvent) BookingMessage {
	b := ev.Booking
	p := BookingPayload{
		ID:        b.ID.String(),
		DoctorID:  b.DoctorID.String(),
		PatientID: b.PatientID.String(),
		Date:      domain.FormatDay(b.Date),
		StartTime: b.StartTime,
		EndTime:   b.EndTime,
		Status:    string(b.Status),
	}
	if b.SpecialtyID != uuid.Nil {
		p.SpecialtyID = b.SpecialtyID.String()
	}
	return BookingMessage{
		EventID:    ev.ID.String(),
		EventType:  string(ev.Type),
		OccurredAt: ev.OccurredAt.UTC(),
		Actor:      ev.Actor,
		Booking:    p,
	}
}
