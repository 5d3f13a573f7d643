package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Doctor is the slice of the doctor profile the scheduler reads. Profiles are
// maintained elsewhere; this service never writes them.
type Doctor struct {
	bun.BaseModel `bun:"table:doctors"`

	ID          uuid.UUID `bun:"id,pk,type:uuid"`
	UserID      string    `bun:"user_id"`
	SpecialtyID uuid.UUID `bun:"specialty_id,nullzero,type:uuid"`
	WorkStart   string    `bun:"work_start,nullzero"`
	WorkEnd     string    `bun:"work_end,nullzero"`
	Active      bool      `bun:"active,notnull"`
	UpdatedAt   time.Time `bun:"updated_at,notnull"`
}

// WorkingHours returns the configured daily window, or ok=false if either end is unset.
func (d Doctor) WorkingHours() (Interval, bool, error) {
	if d.WorkStart == "" || d.WorkEnd == "" {
		return Interval{}, false, nil
	}
	iv, err := ParseInterval(d.WorkStart, d.WorkEnd)
	if err != nil {
		return Interval{}, false, err
	}
	return iv, true, nil
}
