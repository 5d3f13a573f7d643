package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"agenda/backend/internal/store"
)

type fakeResult struct {
	affected int64
	err      error
}

func (r fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (r fakeResult) RowsAffected() (int64, error) { return r.affected, r.err }

func TestDoctorDayKey(t *testing.T) {
	id := uuid.MustParse("00000000-0000-0000-0000-000000000042")
	day := time.Date(2026, 3, 9, 23, 30, 0, 0, time.UTC)

	got := doctorDayKey(id, day)
	want := "00000000-0000-0000-0000-000000000042:2026-03-09"
	if got != want {
		t.Fatalf("key = %q, want %q", got, want)
	}

	other := doctorDayKey(id, day.Add(time.Hour))
	if other == got {
		t.Fatalf("next day must lock a different key")
	}
}

func TestNotFound(t *testing.T) {
	if !errors.Is(notFound(sql.ErrNoRows), store.ErrNotFound) {
		t.Fatalf("sql.ErrNoRows must map to store.ErrNotFound")
	}
	wrapped := fmt.Errorf("scan: %w", sql.ErrNoRows)
	if !errors.Is(notFound(wrapped), store.ErrNotFound) {
		t.Fatalf("wrapped sql.ErrNoRows must map to store.ErrNotFound")
	}
	other := errors.New("boom")
	if notFound(other) != other {
		t.Fatalf("other errors must pass through")
	}
}

func TestUniqueViolation(t *testing.T) {
	err := uniqueViolation(&pgconn.PgError{Code: "23505"})
	if !errors.Is(err, store.ErrIdempotencyConflict) {
		t.Fatalf("err = %v, want ErrIdempotencyConflict", err)
	}
	check := &pgconn.PgError{Code: "23514"}
	if uniqueViolation(check) != error(check) {
		t.Fatalf("check violations must pass through")
	}
}

func TestAffectedOne(t *testing.T) {
	if err := affectedOne(fakeResult{affected: 1}, nil); err != nil {
		t.Fatalf("affectedOne(1) = %v", err)
	}
	if err := affectedOne(fakeResult{affected: 0}, nil); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("affectedOne(0) = %v, want ErrNotFound", err)
	}
	boom := errors.New("boom")
	if err := affectedOne(nil, boom); err != boom {
		t.Fatalf("exec error not returned: %v", err)
	}
}
