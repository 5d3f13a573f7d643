package scheduling

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"agenda/backend/internal/domain"
)

type AvailabilityQuery struct {
	DoctorID uuid.UUID
	Date     string
	// Duration is the slot length in minutes; zero selects the configured default.
	Duration int
}

type AvailabilityResult struct {
	Date            time.Time
	DoctorID        uuid.UUID
	DurationMinutes int
	WorkingHours    domain.Interval
	Total           int
	Free            []string
	Occupied        []string
}

type SuggestQuery struct {
	AvailabilityQuery
	Count int
}

type SuggestionResult struct {
	Date            time.Time
	DoctorID        uuid.UUID
	DurationMinutes int
	Suggestions     []string
	TotalAvailable  int
}

// Availability lists the free slot starts of a doctor's working day. It reads
// without taking the admission lock, so a listed slot can still be refused by
// CreateBooking.
func (s *Service) Availability(ctx context.Context, q AvailabilityQuery) (AvailabilityResult, error) {
	defer s.metrics.observeQuery("availability", time.Now())
	return s.availability(ctx, q)
}

// Suggest returns the earliest Count free slots of the day.
func (s *Service) Suggest(ctx context.Context, q SuggestQuery) (SuggestionResult, error) {
	defer s.metrics.observeQuery("suggestions", time.Now())

	count := q.Count
	if count == 0 {
		count = DefaultSuggestionCount
	}
	if count < 0 {
		return SuggestionResult{}, validationError("count must be positive")
	}

	res, err := s.availability(ctx, q.AvailabilityQuery)
	if err != nil {
		return SuggestionResult{}, err
	}
	n := count
	if n > len(res.Free) {
		n = len(res.Free)
	}
	return SuggestionResult{
		Date:            res.Date,
		DoctorID:        res.DoctorID,
		DurationMinutes: res.DurationMinutes,
		Suggestions:     append([]string{}, res.Free[:n]...),
		TotalAvailable:  len(res.Free),
	}, nil
}

func (s *Service) availability(ctx context.Context, q AvailabilityQuery) (AvailabilityResult, error) {
	var missing []string
	if q.DoctorID == uuid.Nil {
		missing = append(missing, "doctorId")
	}
	if q.Date == "" {
		missing = append(missing, "date")
	}
	if len(missing) > 0 {
		return AvailabilityResult{}, missingParams(missing...)
	}

	day, err := parseDay(q.Date)
	if err != nil {
		return AvailabilityResult{}, err
	}
	duration := q.Duration
	if duration == 0 {
		duration = s.policy.DefaultDuration
	}
	if duration < 0 || duration > domain.MinutesPerDay {
		return AvailabilityResult{}, validationError(fmt.Sprintf("duration must be between 1 and %d minutes", domain.MinutesPerDay))
	}

	doctor, err := activeDoctor(ctx, s.repo, q.DoctorID)
	if err != nil {
		return AvailabilityResult{}, err
	}
	hours, ok, err := doctor.WorkingHours()
	if err != nil {
		return AvailabilityResult{}, fmt.Errorf("doctor %s working hours: %w", doctor.ID, err)
	}
	if !ok {
		return AvailabilityResult{}, ErrDoctorScheduleMissing
	}

	occ, err := occupancyFor(ctx, s.repo, q.DoctorID, day, scopeAll)
	if err != nil {
		return AvailabilityResult{}, err
	}

	slots := domain.GenerateSlots(hours.Start, hours.End, duration)
	return AvailabilityResult{
		Date:            day,
		DoctorID:        q.DoctorID,
		DurationMinutes: duration,
		WorkingHours:    hours,
		Total:           len(slots),
		Free:            domain.FreeSlots(slots, duration, occ),
		Occupied:        occ.Starts(),
	}, nil
}
