package domain

import (
	"errors"
	"fmt"
)

const MinutesPerDay = 24 * 60

var (
	ErrInvalidFormat   = errors.New("invalid time format, want HH:mm")
	ErrInvalidInterval = errors.New("invalid interval")
)

// ToMinutes parses a 24-hour "HH:mm" wall-clock string into minutes since
// midnight. Both fields must be exactly two ASCII digits.
func ToMinutes(hhmm string) (int, error) {
	if len(hhmm) != 5 || hhmm[2] != ':' {
		return 0, fmt.Errorf("%w: %q", ErrInvalidFormat, hhmm)
	}
	for _, i := range [...]int{0, 1, 3, 4} {
		if hhmm[i] < '0' || hhmm[i] > '9' {
			return 0, fmt.Errorf("%w: %q", ErrInvalidFormat, hhmm)
		}
	}
	h := int(hhmm[0]-'0')*10 + int(hhmm[1]-'0')
	m := int(hhmm[3]-'0')*10 + int(hhmm[4]-'0')
	if h > 23 || m > 59 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidFormat, hhmm)
	}
	return h*60 + m, nil
}

// FromMinutes formats minutes since midnight as zero-padded "HH:mm".
func FromMinutes(n int) string {
	return fmt.Sprintf("%02d:%02d", n/60, n%60)
}

// Overlaps reports whether the half-open ranges [aStart,aEnd) and [bStart,bEnd) intersect.
// Ranges that only touch at an endpoint do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd int) bool {
	return aStart < bEnd && aEnd > bStart
}

// Interval is a half-open range of minutes within a single calendar day.
type Interval struct {
	Start int
	End   int
}

func ParseInterval(start, end string) (Interval, error) {
	s, err := ToMinutes(start)
	if err != nil {
		return Interval{}, fmt.Errorf("%w: start_time: %w", ErrInvalidInterval, err)
	}
	e, err := ToMinutes(end)
	if err != nil {
		return Interval{}, fmt.Errorf("%w: end_time: %w", ErrInvalidInterval, err)
	}
	if s >= e {
		return Interval{}, fmt.Errorf("%w: end_time must be after start_time", ErrInvalidInterval)
	}
	return Interval{Start: s, End: e}, nil
}

func (i Interval) Overlaps(o Interval) bool {
	return Overlaps(i.Start, i.End, o.Start, o.End)
}

func (i Interval) Within(o Interval) bool {
	return i.Start >= o.Start && i.End <= o.End
}

func (i Interval) StartClock() string { return FromMinutes(i.Start) }
func (i Interval) EndClock() string   { return FromMinutes(i.End) }

func (i Interval) String() string {
	return i.StartClock() + "-" + i.EndClock()
}
