package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"

	"agenda/backend/internal/domain"
	"agenda/backend/internal/store/memory"
)

type seedDoctor struct {
	ID          uuid.UUID `json:"id"`
	UserID      string    `json:"userId"`
	SpecialtyID uuid.UUID `json:"specialtyId"`
	WorkStart   string    `json:"workStart"`
	WorkEnd     string    `json:"workEnd"`
	Active      *bool     `json:"active"`
}

// seedDoctors loads doctor profiles into st. An empty path loads nothing.
func seedDoctors(st *memory.ScheduleStore, path string) (int, error) {
	if path == "" {
		return 0, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read doctor seed: %w", err)
	}
	var rows []seedDoctor
	if err := json.Unmarshal(raw, &rows); err != nil {
		return 0, fmt.Errorf("parse doctor seed %s: %w", path, err)
	}
	for i, r := range rows {
		if r.ID == uuid.Nil {
			return 0, fmt.Errorf("doctor seed entry %d has no id", i)
		}
		d := domain.Doctor{
			ID:          r.ID,
			UserID:      r.UserID,
			SpecialtyID: r.SpecialtyID,
			WorkStart:   r.WorkStart,
			WorkEnd:     r.WorkEnd,
			Active:      r.Active == nil || *r.Active,
		}
		if _, _, err := d.WorkingHours(); err != nil {
			return 0, fmt.Errorf("doctor %s: %w", d.ID, err)
		}
		st.PutDoctor(d)
	}
	return len(rows), nil
}
