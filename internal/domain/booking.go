package domain

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const DayLayout = "2006-01-02"

// ParseDay parses an ISO calendar date and returns midnight UTC of that day.
// Timestamps are accepted and truncated to their date.
func ParseDay(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(DayLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD", s)
	}
	return NormalizeDay(t), nil
}

func NormalizeDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func FormatDay(t time.Time) string {
	return t.UTC().Format(DayLayout)
}

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusCompleted BookingStatus = "completed"
	BookingStatusCancelled BookingStatus = "cancelled"
)

func (s BookingStatus) Valid() bool {
	switch s {
	case BookingStatusPending, BookingStatusCompleted, BookingStatusCancelled:
		return true
	}
	return false
}

type Booking struct {
	bun.BaseModel `bun:"table:bookings"`

	ID          uuid.UUID     `bun:"id,pk,type:uuid"`
	DoctorID    uuid.UUID     `bun:"doctor_id,notnull,type:uuid"`
	PatientID   uuid.UUID     `bun:"patient_id,notnull,type:uuid"`
	SpecialtyID uuid.UUID     `bun:"specialty_id,nullzero,type:uuid"`
	Date        time.Time     `bun:"date,notnull,type:date"`
	StartTime   string        `bun:"start_time,notnull"`
	EndTime     string        `bun:"end_time,notnull"`
	Status      BookingStatus `bun:"status,notnull"`
	Notes       string        `bun:"notes"`
	CreatedBy   string        `bun:"created_by"`
	UpdatedBy   string        `bun:"updated_by"`
	CreatedAt   time.Time     `bun:"created_at,notnull"`
	UpdatedAt   time.Time     `bun:"updated_at,notnull"`
}

// Occupies reports whether the booking holds its time range. Cancelled bookings never do.
func (b Booking) Occupies() bool {
	return b.Status != BookingStatusCancelled
}

func (b Booking) Interval() (Interval, error) {
	return ParseInterval(b.StartTime, b.EndTime)
}

func (b *Booking) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if b.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			b.ID = id
		}
		if b.Status == "" {
			b.Status = BookingStatusPending
		}
		if b.CreatedAt.IsZero() {
			b.CreatedAt = now
		}
		if b.UpdatedAt.IsZero() {
			b.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		b.UpdatedAt = now
	}
	return nil
}

const DefaultBlockReason = "Manual block"

// ScheduleBlock is a manually declared period in which a doctor takes no bookings.
type ScheduleBlock struct {
	bun.BaseModel `bun:"table:schedule_blocks"`

	ID        uuid.UUID `bun:"id,pk,type:uuid"`
	DoctorID  uuid.UUID `bun:"doctor_id,notnull,type:uuid"`
	Date      time.Time `bun:"date,notnull,type:date"`
	StartTime string    `bun:"start_time,notnull"`
	EndTime   string    `bun:"end_time,notnull"`
	Reason    string    `bun:"reason,notnull"`
	CreatedBy string    `bun:"created_by"`
	CreatedAt time.Time `bun:"created_at,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

func (b ScheduleBlock) Interval() (Interval, error) {
	return ParseInterval(b.StartTime, b.EndTime)
}

func (b *ScheduleBlock) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if b.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			b.ID = id
		}
		if b.CreatedAt.IsZero() {
			b.CreatedAt = now
		}
		if b.UpdatedAt.IsZero() {
			b.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		b.UpdatedAt = now
	}
	return nil
}
