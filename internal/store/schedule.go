package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"agenda/backend/internal/domain"
)

// DayReader reads one doctor's schedule state. Implementations return
// ErrNotFound for unknown ids.
type DayReader interface {
	GetDoctor(ctx context.Context, doctorID uuid.UUID) (domain.Doctor, error)
	ListDayBookings(ctx context.Context, doctorID uuid.UUID, day time.Time) ([]domain.Booking, error)
	ListDayBlocks(ctx context.Context, doctorID uuid.UUID, day time.Time) ([]domain.ScheduleBlock, error)
}

// ScheduleTx is the view of the store inside a doctor-day critical section.
type ScheduleTx interface {
	DayReader

	GetBookingForUpdate(ctx context.Context, id uuid.UUID) (domain.Booking, error)
	InsertBooking(ctx context.Context, b domain.Booking) (domain.Booking, error)
	UpdateBooking(ctx context.Context, b domain.Booking) (domain.Booking, error)

	GetBlockForUpdate(ctx context.Context, id uuid.UUID) (domain.ScheduleBlock, error)
	InsertBlock(ctx context.Context, b domain.ScheduleBlock) (domain.ScheduleBlock, error)
	UpdateBlock(ctx context.Context, b domain.ScheduleBlock) (domain.ScheduleBlock, error)
}

type BookingFilter struct {
	DoctorID  uuid.UUID
	PatientID uuid.UUID
	Day       *time.Time
	Status    domain.BookingStatus
}

type BlockFilter struct {
	DoctorID uuid.UUID
	Day      *time.Time
	Limit    int
	Offset   int
}

// ScheduleRepository owns bookings and schedule blocks.
//
// InDoctorDayTransaction runs fn so that no other call for the same
// (doctorID, day) key interleaves with it: everything fn reads through tx is
// still true when its writes commit. Reads outside fn are unsynchronized.
type ScheduleRepository interface {
	DayReader

	InDoctorDayTransaction(ctx context.Context, doctorID uuid.UUID, day time.Time, fn func(ctx context.Context, tx ScheduleTx) error) error

	GetBooking(ctx context.Context, id uuid.UUID) (domain.Booking, error)
	ListBookings(ctx context.Context, f BookingFilter) ([]domain.Booking, error)
	DeleteBooking(ctx context.Context, id uuid.UUID) error

	GetBlock(ctx context.Context, id uuid.UUID) (domain.ScheduleBlock, error)
	ListBlocks(ctx context.Context, f BlockFilter) ([]domain.ScheduleBlock, int, error)
	DeleteBlock(ctx context.Context, id uuid.UUID) error

	Ping(ctx context.Context) error
	Close() error
}
