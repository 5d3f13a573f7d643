// Package memory is an in-process ScheduleRepository for tests and single-node
// deployments without Postgres.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"agenda/backend/internal/domain"
	"agenda/backend/internal/store"
)

type ScheduleStore struct {
	mu       sync.RWMutex
	doctors  map[uuid.UUID]domain.Doctor
	bookings map[uuid.UUID]domain.Booking
	blocks   map[uuid.UUID]domain.ScheduleBlock

	locks *keyLocks
	now   func() time.Time
}

var _ store.ScheduleRepository = (*ScheduleStore)(nil)

func NewScheduleStore() *ScheduleStore {
	return &ScheduleStore{
		doctors:  make(map[uuid.UUID]domain.Doctor),
		bookings: make(map[uuid.UUID]domain.Booking),
		blocks:   make(map[uuid.UUID]domain.ScheduleBlock),
		locks:    newKeyLocks(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// PutDoctor seeds or replaces a doctor profile.
func (s *ScheduleStore) PutDoctor(d domain.Doctor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doctors[d.ID] = d
}

// InDoctorDayTransaction serializes fn with every other transaction on the
// same doctor and day. Writes made through tx become visible only if fn
// returns nil.
func (s *ScheduleStore) InDoctorDayTransaction(ctx context.Context, doctorID uuid.UUID, day time.Time, fn func(ctx context.Context, tx store.ScheduleTx) error) error {
	key := doctorID.String() + ":" + domain.FormatDay(day)
	unlock, err := s.locks.lock(ctx, key)
	if err != nil {
		return err
	}
	defer unlock()

	tx := &memTx{
		s:        s,
		bookings: make(map[uuid.UUID]domain.Booking),
		blocks:   make(map[uuid.UUID]domain.ScheduleBlock),
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.commit(tx)
	return nil
}

func (s *ScheduleStore) commit(tx *memTx) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, b := range tx.bookings {
		s.bookings[id] = b
	}
	for id, b := range tx.blocks {
		s.blocks[id] = b
	}
}

func (s *ScheduleStore) GetDoctor(ctx context.Context, doctorID uuid.UUID) (domain.Doctor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.doctors[doctorID]
	if !ok {
		return domain.Doctor{}, store.ErrNotFound
	}
	return d, nil
}

func (s *ScheduleStore) ListDayBookings(ctx context.Context, doctorID uuid.UUID, day time.Time) ([]domain.Booking, error) {
	return s.dayBookings(doctorID, day, nil), nil
}

func (s *ScheduleStore) ListDayBlocks(ctx context.Context, doctorID uuid.UUID, day time.Time) ([]domain.ScheduleBlock, error) {
	return s.dayBlocks(doctorID, day, nil), nil
}

func (s *ScheduleStore) GetBooking(ctx context.Context, id uuid.UUID) (domain.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bookings[id]
	if !ok {
		return domain.Booking{}, store.ErrNotFound
	}
	return b, nil
}

func (s *ScheduleStore) ListBookings(ctx context.Context, f store.BookingFilter) ([]domain.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var day time.Time
	if f.Day != nil {
		day = domain.NormalizeDay(*f.Day)
	}
	out := make([]domain.Booking, 0)
	for _, b := range s.bookings {
		if f.DoctorID != uuid.Nil && b.DoctorID != f.DoctorID {
			continue
		}
		if f.PatientID != uuid.Nil && b.PatientID != f.PatientID {
			continue
		}
		if f.Day != nil && !domain.NormalizeDay(b.Date).Equal(day) {
			continue
		}
		if f.Status != "" && b.Status != f.Status {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].StartTime < out[j].StartTime
	})
	return out, nil
}

func (s *ScheduleStore) DeleteBooking(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bookings[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.bookings, id)
	return nil
}

func (s *ScheduleStore) GetBlock(ctx context.Context, id uuid.UUID) (domain.ScheduleBlock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.blocks[id]
	if !ok {
		return domain.ScheduleBlock{}, store.ErrNotFound
	}
	return b, nil
}

func (s *ScheduleStore) ListBlocks(ctx context.Context, f store.BlockFilter) ([]domain.ScheduleBlock, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var day time.Time
	if f.Day != nil {
		day = domain.NormalizeDay(*f.Day)
	}
	rows := make([]domain.ScheduleBlock, 0)
	for _, b := range s.blocks {
		if f.DoctorID != uuid.Nil && b.DoctorID != f.DoctorID {
			continue
		}
		if f.Day != nil && !domain.NormalizeDay(b.Date).Equal(day) {
			continue
		}
		rows = append(rows, b)
	}
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].Date.Equal(rows[j].Date) {
			return rows[i].Date.After(rows[j].Date)
		}
		return rows[i].StartTime < rows[j].StartTime
	})

	total := len(rows)
	if f.Offset > 0 {
		if f.Offset >= len(rows) {
			return []domain.ScheduleBlock{}, total, nil
		}
		rows = rows[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(rows) {
		rows = rows[:f.Limit]
	}
	return rows, total, nil
}

func (s *ScheduleStore) DeleteBlock(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blocks[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.blocks, id)
	return nil
}

func (s *ScheduleStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *ScheduleStore) Close() error {
	return nil
}

// dayBookings returns the committed bookings of one doctor and day with the
// staged rows of tx (if any) laid over them.
func (s *ScheduleStore) dayBookings(doctorID uuid.UUID, day time.Time, tx *memTx) []domain.Booking {
	day = domain.NormalizeDay(day)
	s.mu.RLock()
	merged := make(map[uuid.UUID]domain.Booking)
	for id, b := range s.bookings {
		merged[id] = b
	}
	s.mu.RUnlock()
	if tx != nil {
		for id, b := range tx.bookings {
			merged[id] = b
		}
	}

	out := make([]domain.Booking, 0)
	for _, b := range merged {
		if b.DoctorID == doctorID && domain.NormalizeDay(b.Date).Equal(day) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime < out[j].StartTime })
	return out
}

func (s *ScheduleStore) dayBlocks(doctorID uuid.UUID, day time.Time, tx *memTx) []domain.ScheduleBlock {
	day = domain.NormalizeDay(day)
	s.mu.RLock()
	merged := make(map[uuid.UUID]domain.ScheduleBlock)
	for id, b := range s.blocks {
		merged[id] = b
	}
	s.mu.RUnlock()
	if tx != nil {
		for id, b := range tx.blocks {
			merged[id] = b
		}
	}

	out := make([]domain.ScheduleBlock, 0)
	for _, b := range merged {
		if b.DoctorID == doctorID && domain.NormalizeDay(b.Date).Equal(day) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime < out[j].StartTime })
	return out
}

type memTx struct {
	s        *ScheduleStore
	bookings map[uuid.UUID]domain.Booking
	blocks   map[uuid.UUID]domain.ScheduleBlock
}

func (t *memTx) GetDoctor(ctx context.Context, doctorID uuid.UUID) (domain.Doctor, error) {
	return t.s.GetDoctor(ctx, doctorID)
}

func (t *memTx) ListDayBookings(ctx context.Context, doctorID uuid.UUID, day time.Time) ([]domain.Booking, error) {
	return t.s.dayBookings(doctorID, day, t), nil
}

func (t *memTx) ListDayBlocks(ctx context.Context, doctorID uuid.UUID, day time.Time) ([]domain.ScheduleBlock, error) {
	return t.s.dayBlocks(doctorID, day, t), nil
}

func (t *memTx) GetBookingForUpdate(ctx context.Context, id uuid.UUID) (domain.Booking, error) {
	if b, ok := t.bookings[id]; ok {
		return b, nil
	}
	return t.s.GetBooking(ctx, id)
}

func (t *memTx) InsertBooking(ctx context.Context, b domain.Booking) (domain.Booking, error) {
	if b.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return domain.Booking{}, err
		}
		b.ID = id
	}
	if _, err := t.GetBookingForUpdate(ctx, b.ID); err == nil {
		return domain.Booking{}, store.ErrIdempotencyConflict
	}
	now := t.s.now()
	if b.Status == "" {
		b.Status = domain.BookingStatusPending
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	if b.UpdatedAt.IsZero() {
		b.UpdatedAt = now
	}
	b.Date = domain.NormalizeDay(b.Date)
	t.bookings[b.ID] = b
	return b, nil
}

func (t *memTx) UpdateBooking(ctx context.Context, b domain.Booking) (domain.Booking, error) {
	prev, err := t.GetBookingForUpdate(ctx, b.ID)
	if err != nil {
		return domain.Booking{}, err
	}
	b.PatientID = prev.PatientID
	b.CreatedBy = prev.CreatedBy
	b.CreatedAt = prev.CreatedAt
	b.UpdatedAt = t.s.now()
	b.Date = domain.NormalizeDay(b.Date)
	t.bookings[b.ID] = b
	return b, nil
}

func (t *memTx) GetBlockForUpdate(ctx context.Context, id uuid.UUID) (domain.ScheduleBlock, error) {
	if b, ok := t.blocks[id]; ok {
		return b, nil
	}
	return t.s.GetBlock(ctx, id)
}

func (t *memTx) InsertBlock(ctx context.Context, b domain.ScheduleBlock) (domain.ScheduleBlock, error) {
	if b.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return domain.ScheduleBlock{}, err
		}
		b.ID = id
	}
	if _, err := t.GetBlockForUpdate(ctx, b.ID); err == nil {
		return domain.ScheduleBlock{}, store.ErrIdempotencyConflict
	}
	now := t.s.now()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	if b.UpdatedAt.IsZero() {
		b.UpdatedAt = now
	}
	b.Date = domain.NormalizeDay(b.Date)
	t.blocks[b.ID] = b
	return b, nil
}

func (t *memTx) UpdateBlock(ctx context.Context, b domain.ScheduleBlock) (domain.ScheduleBlock, error) {
	prev, err := t.GetBlockForUpdate(ctx, b.ID)
	if err != nil {
		return domain.ScheduleBlock{}, err
	}
	b.DoctorID = prev.DoctorID
	b.CreatedBy = prev.CreatedBy
	b.CreatedAt = prev.CreatedAt
	b.UpdatedAt = t.s.now()
	b.Date = domain.NormalizeDay(b.Date)
	t.blocks[b.ID] = b
	return b, nil
}
