package scheduling

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"agenda/backend/internal/domain"
	"agenda/backend/internal/store"
)

// errKeyMoved aborts an edit whose record changed doctor or day between the
// unlocked read and the locked re-read.
var errKeyMoved = errors.New("record moved to another doctor day")

type CreateBookingInput struct {
	DoctorID       uuid.UUID
	PatientID      uuid.UUID
	SpecialtyID    uuid.UUID
	Date           string
	StartTime      string
	EndTime        string
	Notes          string
	Actor          string
	IdempotencyKey string
}

// UpdateBookingInput carries a partial edit. Nil fields keep the stored value.
type UpdateBookingInput struct {
	ID          uuid.UUID
	DoctorID    *uuid.UUID
	SpecialtyID *uuid.UUID
	Date        *string
	StartTime   *string
	EndTime     *string
	Status      *domain.BookingStatus
	Notes       *string
	Actor       string
}

func (s *Service) CreateBooking(ctx context.Context, in CreateBookingInput) (_ domain.Booking, err error) {
	defer func() { s.metrics.recordAdmission("booking", "create", err) }()

	if in.DoctorID == uuid.Nil {
		return domain.Booking{}, validationError("doctor_id is required")
	}
	if in.PatientID == uuid.Nil {
		return domain.Booking{}, validationError("patient_id is required")
	}
	day, err := parseDay(in.Date)
	if err != nil {
		return domain.Booking{}, err
	}
	iv, err := domain.ParseInterval(in.StartTime, in.EndTime)
	if err != nil {
		return domain.Booking{}, invalidInput(err)
	}

	candidate := domain.Booking{
		DoctorID:    in.DoctorID,
		PatientID:   in.PatientID,
		SpecialtyID: in.SpecialtyID,
		Date:        day,
		StartTime:   iv.StartClock(),
		EndTime:     iv.EndClock(),
		Status:      domain.BookingStatusPending,
		Notes:       strings.TrimSpace(in.Notes),
		CreatedBy:   in.Actor,
		UpdatedBy:   in.Actor,
	}
	candidate.ID, err = idempotentID("create_booking", in.Actor, in.IdempotencyKey)
	if err != nil {
		return domain.Booking{}, err
	}

	var out domain.Booking
	replayed := false
	err = s.repo.InDoctorDayTransaction(ctx, in.DoctorID, day, func(ctx context.Context, tx store.ScheduleTx) error {
		if candidate.ID != uuid.Nil {
			existing, err := tx.GetBookingForUpdate(ctx, candidate.ID)
			switch {
			case err == nil:
				if !sameBooking(existing, candidate) {
					return store.ErrIdempotencyConflict
				}
				out, replayed = existing, true
				return nil
			case !errors.Is(err, store.ErrNotFound):
				return err
			}
		}

		doctor, err := activeDoctor(ctx, tx, in.DoctorID)
		if err != nil {
			return err
		}
		if candidate.SpecialtyID == uuid.Nil {
			candidate.SpecialtyID = doctor.SpecialtyID
		}
		if err := s.checkWorkingHours(doctor, iv); err != nil {
			return err
		}

		occ, err := occupancyFor(ctx, tx, in.DoctorID, day, scopeAll)
		if err != nil {
			return err
		}
		if conflicts := domain.Conflicts(iv, occ, uuid.Nil); len(conflicts) > 0 {
			return &ConflictError{Conflicts: conflicts}
		}

		out, err = tx.InsertBooking(ctx, candidate)
		return err
	})
	if err != nil {
		return domain.Booking{}, err
	}

	if !replayed {
		s.publish(ctx, domain.BookingCreated, out, in.Actor)
	}
	s.log.Debug().
		Str("booking_id", out.ID.String()).
		Str("doctor_id", out.DoctorID.String()).
		Str("date", domain.FormatDay(out.Date)).
		Str("slot", iv.String()).
		Bool("replayed", replayed).
		Msg("booking admitted")
	return out, nil
}

func (s *Service) UpdateBooking(ctx context.Context, in UpdateBookingInput) (_ domain.Booking, err error) {
	defer func() { s.metrics.recordAdmission("booking", "update", err) }()

	if in.ID == uuid.Nil {
		return domain.Booking{}, validationError("booking id is required")
	}
	if in.Status != nil && !in.Status.Valid() {
		return domain.Booking{}, validationError(fmt.Sprintf("invalid status %q", *in.Status))
	}

	for attempt := 0; attempt < maxEditAttempts; attempt++ {
		current, err := s.repo.GetBooking(ctx, in.ID)
		if err != nil {
			return domain.Booking{}, err
		}
		target, err := applyBookingEdit(current, in)
		if err != nil {
			return domain.Booking{}, err
		}

		var out, prev domain.Booking
		err = s.repo.InDoctorDayTransaction(ctx, target.DoctorID, target.Date, func(ctx context.Context, tx store.ScheduleTx) error {
			fresh, err := tx.GetBookingForUpdate(ctx, in.ID)
			if err != nil {
				return err
			}
			next, err := applyBookingEdit(fresh, in)
			if err != nil {
				return err
			}
			if next.DoctorID != target.DoctorID || !next.Date.Equal(target.Date) {
				return errKeyMoved
			}
			if err := s.admitBookingEdit(ctx, tx, fresh, &next, in); err != nil {
				return err
			}
			prev = fresh
			out, err = tx.UpdateBooking(ctx, next)
			return err
		})
		if errors.Is(err, errKeyMoved) {
			s.log.Debug().Str("booking_id", in.ID.String()).Int("attempt", attempt+1).Msg("booking moved during edit, retrying")
			continue
		}
		if err != nil {
			return domain.Booking{}, err
		}

		typ := domain.BookingUpdated
		if out.Status == domain.BookingStatusCancelled && prev.Status != domain.BookingStatusCancelled {
			typ = domain.BookingCancelled
		}
		s.publish(ctx, typ, out, in.Actor)
		return out, nil
	}
	return domain.Booking{}, &ConflictError{}
}

// admitBookingEdit re-runs admission for an edited booking unless the edit
// leaves it cancelled. Working hours and doctor status are only rechecked when
// the booking moves or comes back from cancellation.
func (s *Service) admitBookingEdit(ctx context.Context, tx store.ScheduleTx, prev domain.Booking, next *domain.Booking, in UpdateBookingInput) error {
	if next.Status == domain.BookingStatusCancelled {
		return nil
	}
	iv, err := next.Interval()
	if err != nil {
		return invalidInput(err)
	}

	doctorChanged := next.DoctorID != prev.DoctorID
	moved := doctorChanged ||
		!next.Date.Equal(domain.NormalizeDay(prev.Date)) ||
		next.StartTime != prev.StartTime ||
		next.EndTime != prev.EndTime
	if moved || prev.Status == domain.BookingStatusCancelled {
		doctor, err := activeDoctor(ctx, tx, next.DoctorID)
		if err != nil {
			return err
		}
		if doctorChanged && in.SpecialtyID == nil {
			next.SpecialtyID = doctor.SpecialtyID
		}
		if err := s.checkWorkingHours(doctor, iv); err != nil {
			return err
		}
	}

	occ, err := occupancyFor(ctx, tx, next.DoctorID, next.Date, scopeAll)
	if err != nil {
		return err
	}
	if conflicts := domain.Conflicts(iv, occ, next.ID); len(conflicts) > 0 {
		return &ConflictError{Conflicts: conflicts}
	}
	return nil
}

func applyBookingEdit(current domain.Booking, in UpdateBookingInput) (domain.Booking, error) {
	next := current
	next.Date = domain.NormalizeDay(current.Date)
	if in.DoctorID != nil {
		if *in.DoctorID == uuid.Nil {
			return domain.Booking{}, validationError("doctor_id must not be empty")
		}
		next.DoctorID = *in.DoctorID
	}
	if in.SpecialtyID != nil {
		next.SpecialtyID = *in.SpecialtyID
	}
	if in.Date != nil {
		day, err := parseDay(*in.Date)
		if err != nil {
			return domain.Booking{}, err
		}
		next.Date = day
	}
	if in.StartTime != nil {
		next.StartTime = *in.StartTime
	}
	if in.EndTime != nil {
		next.EndTime = *in.EndTime
	}
	if in.Status != nil {
		next.Status = *in.Status
	}
	if in.Notes != nil {
		next.Notes = strings.TrimSpace(*in.Notes)
	}
	next.UpdatedBy = in.Actor

	iv, err := domain.ParseInterval(next.StartTime, next.EndTime)
	if err != nil {
		return domain.Booking{}, invalidInput(err)
	}
	next.StartTime, next.EndTime = iv.StartClock(), iv.EndClock()
	return next, nil
}

// DeleteBooking removes a booking outright. Cancelling through UpdateBooking
// is the usual way to free a slot; deletion leaves no record behind.
func (s *Service) DeleteBooking(ctx context.Context, id uuid.UUID, actor string) (domain.Booking, error) {
	if id == uuid.Nil {
		return domain.Booking{}, validationError("booking id is required")
	}
	b, err := s.repo.GetBooking(ctx, id)
	if err != nil {
		return domain.Booking{}, err
	}
	if err := s.repo.DeleteBooking(ctx, id); err != nil {
		return domain.Booking{}, err
	}
	s.publish(ctx, domain.BookingDeleted, b, actor)
	return b, nil
}

func (s *Service) GetBooking(ctx context.Context, id uuid.UUID) (domain.Booking, error) {
	if id == uuid.Nil {
		return domain.Booking{}, validationError("booking id is required")
	}
	return s.repo.GetBooking(ctx, id)
}

type BookingQuery struct {
	DoctorID  uuid.UUID
	PatientID uuid.UUID
	Date      string
	Status    string
}

func (s *Service) ListBookings(ctx context.Context, q BookingQuery) ([]domain.Booking, error) {
	f := store.BookingFilter{DoctorID: q.DoctorID, PatientID: q.PatientID}
	if strings.TrimSpace(q.Date) != "" {
		day, err := parseDay(q.Date)
		if err != nil {
			return nil, err
		}
		f.Day = &day
	}
	if q.Status != "" {
		st := domain.BookingStatus(q.Status)
		if !st.Valid() {
			return nil, validationError(fmt.Sprintf("invalid status %q", q.Status))
		}
		f.Status = st
	}
	return s.repo.ListBookings(ctx, f)
}

func (s *Service) checkWorkingHours(doctor domain.Doctor, iv domain.Interval) error {
	if !s.policy.EnforceWorkingHours {
		return nil
	}
	hours, ok, err := doctor.WorkingHours()
	if err != nil {
		return fmt.Errorf("doctor %s working hours: %w", doctor.ID, err)
	}
	if !ok {
		return nil
	}
	if !iv.Within(hours) {
		return validationError(fmt.Sprintf("%s is outside working hours %s", iv, hours))
	}
	return nil
}

func activeDoctor(ctx context.Context, r store.DayReader, doctorID uuid.UUID) (domain.Doctor, error) {
	d, err := r.GetDoctor(ctx, doctorID)
	if err != nil {
		return domain.Doctor{}, doctorLookup(err)
	}
	if !d.Active {
		return domain.Doctor{}, ErrDoctorNotFound
	}
	return d, nil
}

func parseDay(s string) (time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return time.Time{}, validationError("date is required")
	}
	day, err := domain.ParseDay(s)
	if err != nil {
		return time.Time{}, validationError(err.Error())
	}
	return day, nil
}

// idempotentID derives a stable record id from a client key so that a retried
// create finds the row its first attempt wrote.
func idempotentID(op, actor, key string) (uuid.UUID, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return uuid.Nil, nil
	}
	if len(key) > maxIdempotencyKeyLen {
		return uuid.Nil, validationError("idempotency key too long")
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("agenda:"+op+":"+actor+":"+key)), nil
}

func sameBooking(a, b domain.Booking) bool {
	return a.DoctorID == b.DoctorID &&
		a.PatientID == b.PatientID &&
		domain.NormalizeDay(a.Date).Equal(domain.NormalizeDay(b.Date)) &&
		a.StartTime == b.StartTime &&
		a.EndTime == b.EndTime
}
