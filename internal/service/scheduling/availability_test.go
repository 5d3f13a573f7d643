package scheduling

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"agenda/backend/internal/domain"
)

func TestAvailability_FreeSlotsAroundBooking(t *testing.T) {
	svc, st, _, _ := newTestService(t)
	doc := testDoctor()
	doc.WorkStart, doc.WorkEnd = "08:00", "10:00"
	st.PutDoctor(doc)
	book(t, svc, doc.ID, "09:00", "09:30")

	res, err := svc.Availability(context.Background(), AvailabilityQuery{DoctorID: doc.ID, Date: testDate, Duration: 30})
	if err != nil {
		t.Fatalf("Availability error: %v", err)
	}
	if res.Total != 4 {
		t.Fatalf("total = %d, want 4", res.Total)
	}
	if want := []string{"08:00", "08:30", "09:30"}; !reflect.DeepEqual(res.Free, want) {
		t.Fatalf("free = %v, want %v", res.Free, want)
	}
	if !reflect.DeepEqual(res.Occupied, []string{"09:00"}) {
		t.Fatalf("occupied = %v", res.Occupied)
	}
	if res.DurationMinutes != 30 || domain.FormatDay(res.Date) != testDate {
		t.Fatalf("result = %+v", res)
	}
}

func TestAvailability_DefaultDurationAndBlocks(t *testing.T) {
	svc, _, doc, _ := newTestService(t)
	block(t, svc, doc.ID, "08:00", "11:00")

	res, err := svc.Availability(context.Background(), AvailabilityQuery{DoctorID: doc.ID, Date: testDate})
	if err != nil {
		t.Fatalf("Availability error: %v", err)
	}
	if res.DurationMinutes != DefaultSlotDuration || res.Total != 8 {
		t.Fatalf("duration=%d total=%d", res.DurationMinutes, res.Total)
	}
	if !reflect.DeepEqual(res.Free, []string{"11:00", "11:30"}) {
		t.Fatalf("free = %v", res.Free)
	}
}

func TestAvailability_CancelledBookingIsFree(t *testing.T) {
	svc, _, doc, _ := newTestService(t)
	b := book(t, svc, doc.ID, "08:00", "08:30")
	if _, err := svc.UpdateBooking(context.Background(), UpdateBookingInput{ID: b.ID, Status: ptr(domain.BookingStatusCancelled)}); err != nil {
		t.Fatalf("cancel error: %v", err)
	}

	res, err := svc.Availability(context.Background(), AvailabilityQuery{DoctorID: doc.ID, Date: testDate, Duration: 60})
	if err != nil {
		t.Fatalf("Availability error: %v", err)
	}
	if len(res.Free) != res.Total || len(res.Occupied) != 0 {
		t.Fatalf("free=%v occupied=%v", res.Free, res.Occupied)
	}
}

func TestAvailability_Errors(t *testing.T) {
	svc, st, doc, _ := newTestService(t)

	_, err := svc.Availability(context.Background(), AvailabilityQuery{})
	if !errors.Is(err, ErrMissingParams) {
		t.Fatalf("missing params err = %v", err)
	}
	if err.Error() != "missing required parameters: doctorId, date" {
		t.Fatalf("message = %q", err.Error())
	}

	_, err = svc.Availability(context.Background(), AvailabilityQuery{DoctorID: uuid.New(), Date: testDate})
	if !errors.Is(err, ErrDoctorNotFound) {
		t.Fatalf("unknown doctor err = %v", err)
	}

	noHours := testDoctor()
	noHours.WorkStart, noHours.WorkEnd = "", ""
	st.PutDoctor(noHours)
	_, err = svc.Availability(context.Background(), AvailabilityQuery{DoctorID: noHours.ID, Date: testDate})
	if !errors.Is(err, ErrDoctorScheduleMissing) {
		t.Fatalf("no hours err = %v", err)
	}

	for _, d := range []int{-30, domain.MinutesPerDay + 1} {
		_, err = svc.Availability(context.Background(), AvailabilityQuery{DoctorID: doc.ID, Date: testDate, Duration: d})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("duration %d err = %v, want *ValidationError", d, err)
		}
	}

	_, err = svc.Availability(context.Background(), AvailabilityQuery{DoctorID: doc.ID, Date: "03/09/2026"})
	if !errors.Is(err, domain.ErrInvalidInterval) {
		t.Fatalf("bad date err = %v", err)
	}
}

func TestAvailability_DurationLongerThanDay(t *testing.T) {
	svc, _, doc, _ := newTestService(t)
	res, err := svc.Availability(context.Background(), AvailabilityQuery{DoctorID: doc.ID, Date: testDate, Duration: 300})
	if err != nil {
		t.Fatalf("Availability error: %v", err)
	}
	if res.Total != 0 || len(res.Free) != 0 || res.Free == nil {
		t.Fatalf("result = %+v, want empty non-nil free list", res)
	}
}

func TestSuggest(t *testing.T) {
	svc, _, doc, _ := newTestService(t)
	book(t, svc, doc.ID, "08:00", "08:30")
	book(t, svc, doc.ID, "09:00", "09:30")

	res, err := svc.Suggest(context.Background(), SuggestQuery{AvailabilityQuery: AvailabilityQuery{DoctorID: doc.ID, Date: testDate}})
	if err != nil {
		t.Fatalf("Suggest error: %v", err)
	}
	if want := []string{"08:30", "09:30", "10:00"}; !reflect.DeepEqual(res.Suggestions, want) {
		t.Fatalf("suggestions = %v, want %v", res.Suggestions, want)
	}
	if res.TotalAvailable != 6 {
		t.Fatalf("total available = %d, want 6", res.TotalAvailable)
	}

	res, err = svc.Suggest(context.Background(), SuggestQuery{AvailabilityQuery: AvailabilityQuery{DoctorID: doc.ID, Date: testDate, Duration: 120}, Count: 5})
	if err != nil {
		t.Fatalf("Suggest error: %v", err)
	}
	if !reflect.DeepEqual(res.Suggestions, []string{"10:00"}) {
		t.Fatalf("suggestions = %v", res.Suggestions)
	}

	_, err = svc.Suggest(context.Background(), SuggestQuery{AvailabilityQuery: AvailabilityQuery{DoctorID: doc.ID, Date: testDate}, Count: -1})
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("negative count err = %v", err)
	}
}

func TestAvailability_ObservesQueryDuration(t *testing.T) {
	reg := prometheus.NewRegistry()
	svc, _, doc, _ := newTestService(t, WithMetrics(NewMetrics(reg)))
	if _, err := svc.Availability(context.Background(), AvailabilityQuery{DoctorID: doc.ID, Date: testDate}); err != nil {
		t.Fatalf("Availability error: %v", err)
	}
	if n, err := testutil.GatherAndCount(reg, "agenda_availability_query_duration_seconds"); err != nil || n != 1 {
		t.Fatalf("histogram series = %d (%v), want 1", n, err)
	}
}

func TestAvailability_FreeAndOccupiedSlotsPartitionWorkingHours(t *testing.T) {
	svc, _, doc, _ := newTestService(t, WithPolicy(Policy{
		BlockPolicy:         BlockPolicyBlocksOnly,
		EnforceWorkingHours: true,
		DefaultDuration:     DefaultSlotDuration,
	}))
	book(t, svc, doc.ID, "08:15", "08:45")
	book(t, svc, doc.ID, "10:00", "11:00")
	cancelled := book(t, svc, doc.ID, "09:00", "09:30")
	if _, err := svc.UpdateBooking(context.Background(), UpdateBookingInput{ID: cancelled.ID, Status: ptr(domain.BookingStatusCancelled)}); err != nil {
		t.Fatalf("cancel error: %v", err)
	}
	block(t, svc, doc.ID, "10:30", "10:45")
	block(t, svc, doc.ID, "11:30", "13:00")
	block(t, svc, doc.ID, "06:00", "07:00")

	taken := []domain.Interval{
		{Start: 8*60 + 15, End: 8*60 + 45},
		{Start: 10 * 60, End: 11 * 60},
		{Start: 10*60 + 30, End: 10*60 + 45},
		{Start: 11*60 + 30, End: 13 * 60},
		{Start: 6 * 60, End: 7 * 60},
	}
	overlapsTaken := func(start, duration int) bool {
		slot := domain.Interval{Start: start, End: start + duration}
		for _, iv := range taken {
			if slot.Overlaps(iv) {
				return true
			}
		}
		return false
	}

	for _, duration := range []int{15, 20, 30, 45, 60, 90, 240, 241} {
		res, err := svc.Availability(context.Background(), AvailabilityQuery{DoctorID: doc.ID, Date: testDate, Duration: duration})
		if err != nil {
			t.Fatalf("duration %d: Availability error: %v", duration, err)
		}
		generated := domain.GenerateSlots(8*60, 12*60, duration)
		if res.Total != len(generated) {
			t.Fatalf("duration %d: total = %d, want %d", duration, res.Total, len(generated))
		}

		isFree := make(map[string]bool, len(res.Free))
		for _, s := range res.Free {
			isFree[s] = true
		}
		occupied := 0
		for _, s := range generated {
			start, err := domain.ToMinutes(s)
			if err != nil {
				t.Fatalf("duration %d: slot %q: %v", duration, s, err)
			}
			busy := overlapsTaken(start, duration)
			if busy {
				occupied++
			}
			if busy == isFree[s] {
				t.Fatalf("duration %d: slot %s free=%v but overlaps=%v", duration, s, isFree[s], busy)
			}
		}
		if len(res.Free)+occupied > res.Total {
			t.Fatalf("duration %d: free %d + occupied %d exceeds total %d", duration, len(res.Free), occupied, res.Total)
		}
		for _, s := range res.Free {
			start, _ := domain.ToMinutes(s)
			if start < 8*60 || start+duration > 12*60 {
				t.Fatalf("duration %d: free slot %s outside working hours", duration, s)
			}
		}
	}
}
