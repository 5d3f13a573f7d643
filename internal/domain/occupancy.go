package domain

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
)

type OccupantKind string

const (
	OccupantBooking OccupantKind = "booking"
	OccupantBlock   OccupantKind = "block"
)

// Occupant is one time range that makes a doctor unavailable on a given day.
type Occupant struct {
	ID       uuid.UUID
	Kind     OccupantKind
	Interval Interval
	Label    string
}

// Occupancy is the unordered set of occupied ranges for one doctor and date.
type Occupancy []Occupant

// NewOccupancy merges bookings and blocks into one set. Bookings that do not
// occupy (cancelled) are skipped. A stored record with an unreadable range is
// an error rather than a silent gap.
func NewOccupancy(bookings []Booking, blocks []ScheduleBlock) (Occupancy, error) {
	occ := make(Occupancy, 0, len(bookings)+len(blocks))
	seen := make(map[occupantKey]struct{}, len(bookings)+len(blocks))

	add := func(o Occupant) {
		k := occupantKey{kind: o.Kind, id: o.ID}
		if _, ok := seen[k]; ok {
			return
		}
		seen[k] = struct{}{}
		occ = append(occ, o)
	}

	for _, b := range bookings {
		if !b.Occupies() {
			continue
		}
		iv, err := b.Interval()
		if err != nil {
			return nil, fmt.Errorf("booking %s: %w", b.ID, err)
		}
		add(Occupant{ID: b.ID, Kind: OccupantBooking, Interval: iv, Label: string(b.Status)})
	}
	for _, b := range blocks {
		iv, err := b.Interval()
		if err != nil {
			return nil, fmt.Errorf("schedule block %s: %w", b.ID, err)
		}
		add(Occupant{ID: b.ID, Kind: OccupantBlock, Interval: iv, Label: b.Reason})
	}
	return occ, nil
}

type occupantKey struct {
	kind OccupantKind
	id   uuid.UUID
}

// Conflicts returns every occupant overlapping candidate. The occupant whose
// ID equals excludeID is ignored so a record being edited never collides with itself.
func Conflicts(candidate Interval, occ Occupancy, excludeID uuid.UUID) []Occupant {
	var out []Occupant
	for _, o := range occ {
		if excludeID != uuid.Nil && o.ID == excludeID {
			continue
		}
		if candidate.Overlaps(o.Interval) {
			out = append(out, o)
		}
	}
	return out
}

// Free reports whether candidate collides with nothing in the set.
func (occ Occupancy) Free(candidate Interval) bool {
	return len(Conflicts(candidate, occ, uuid.Nil)) == 0
}

// Starts returns the distinct start markers of all occupants in chronological order.
func (occ Occupancy) Starts() []string {
	mins := make([]int, 0, len(occ))
	seen := make(map[int]struct{}, len(occ))
	for _, o := range occ {
		if _, ok := seen[o.Interval.Start]; ok {
			continue
		}
		seen[o.Interval.Start] = struct{}{}
		mins = append(mins, o.Interval.Start)
	}
	sort.Ints(mins)

	out := make([]string, 0, len(mins))
	for _, m := range mins {
		out = append(out, FromMinutes(m))
	}
	return out
}

// FreeSlots filters slot starts down to those whose [start, start+duration) range is unoccupied.
func FreeSlots(slots []string, duration int, occ Occupancy) []string {
	free := make([]string, 0, len(slots))
	for _, s := range slots {
		start, err := ToMinutes(s)
		if err != nil {
			continue
		}
		if occ.Free(Interval{Start: start, End: start + duration}) {
			free = append(free, s)
		}
	}
	return free
}
