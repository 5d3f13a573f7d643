package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"

	"agenda/backend/internal/domain"
	"agenda/backend/internal/store"
)

type ScheduleRepo struct {
	db *bun.DB
}

var _ store.ScheduleRepository = (*ScheduleRepo)(nil)

func NewScheduleRepo(db *bun.DB) *ScheduleRepo {
	return &ScheduleRepo{db: db}
}

type scheduleTx struct {
	tx bun.Tx
}

func (r *ScheduleRepo) InDoctorDayTransaction(ctx context.Context, doctorID uuid.UUID, day time.Time, fn func(ctx context.Context, tx store.ScheduleTx) error) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := lockDoctorDay(ctx, tx, doctorID, day); err != nil {
			return err
		}
		return fn(ctx, scheduleTx{tx: tx})
	})
}

func doctorDayKey(doctorID uuid.UUID, day time.Time) string {
	return doctorID.String() + ":" + domain.FormatDay(day)
}

// lockDoctorDay takes a transaction-scoped advisory lock; it is released on commit or rollback.
func lockDoctorDay(ctx context.Context, tx bun.Tx, doctorID uuid.UUID, day time.Time) error {
	_, err := tx.NewRaw("SELECT pg_advisory_xact_lock(hashtext(?))", doctorDayKey(doctorID, day)).Exec(ctx)
	return err
}

func (r *ScheduleRepo) GetDoctor(ctx context.Context, doctorID uuid.UUID) (domain.Doctor, error) {
	return getDoctor(ctx, r.db, doctorID)
}

func (r *ScheduleRepo) ListDayBookings(ctx context.Context, doctorID uuid.UUID, day time.Time) ([]domain.Booking, error) {
	return listDayBookings(ctx, r.db, doctorID, day)
}

func (r *ScheduleRepo) ListDayBlocks(ctx context.Context, doctorID uuid.UUID, day time.Time) ([]domain.ScheduleBlock, error) {
	return listDayBlocks(ctx, r.db, doctorID, day)
}

func (r *ScheduleRepo) GetBooking(ctx context.Context, id uuid.UUID) (domain.Booking, error) {
	var b domain.Booking
	err := r.db.NewSelect().Model(&b).Where("id = ?", id).Limit(1).Scan(ctx)
	if err != nil {
		return domain.Booking{}, notFound(err)
	}
	return b, nil
}

func (r *ScheduleRepo) ListBookings(ctx context.Context, f store.BookingFilter) ([]domain.Booking, error) {
	var rows []domain.Booking
	q := r.db.NewSelect().Model(&rows)
	if f.DoctorID != uuid.Nil {
		q = q.Where("doctor_id = ?", f.DoctorID)
	}
	if f.PatientID != uuid.Nil {
		q = q.Where("patient_id = ?", f.PatientID)
	}
	if f.Day != nil {
		q = q.Where("date = ?", domain.NormalizeDay(*f.Day))
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	err := q.OrderExpr("date ASC, start_time ASC").Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *ScheduleRepo) DeleteBooking(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.NewDelete().
		Model((*domain.Booking)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	return affectedOne(res, err)
}

func (r *ScheduleRepo) GetBlock(ctx context.Context, id uuid.UUID) (domain.ScheduleBlock, error) {
	var b domain.ScheduleBlock
	err := r.db.NewSelect().Model(&b).Where("id = ?", id).Limit(1).Scan(ctx)
	if err != nil {
		return domain.ScheduleBlock{}, notFound(err)
	}
	return b, nil
}

func (r *ScheduleRepo) ListBlocks(ctx context.Context, f store.BlockFilter) ([]domain.ScheduleBlock, int, error) {
	var rows []domain.ScheduleBlock
	q := r.db.NewSelect().Model(&rows)
	if f.DoctorID != uuid.Nil {
		q = q.Where("doctor_id = ?", f.DoctorID)
	}
	if f.Day != nil {
		q = q.Where("date = ?", domain.NormalizeDay(*f.Day))
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	if f.Offset > 0 {
		q = q.Offset(f.Offset)
	}
	total, err := q.OrderExpr("date DESC, start_time ASC").ScanAndCount(ctx)
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (r *ScheduleRepo) DeleteBlock(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.NewDelete().
		Model((*domain.ScheduleBlock)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	return affectedOne(res, err)
}

func (r *ScheduleRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *ScheduleRepo) Close() error {
	return Close(r.db)
}

func (t scheduleTx) GetDoctor(ctx context.Context, doctorID uuid.UUID) (domain.Doctor, error) {
	return getDoctor(ctx, t.tx, doctorID)
}

func (t scheduleTx) ListDayBookings(ctx context.Context, doctorID uuid.UUID, day time.Time) ([]domain.Booking, error) {
	return listDayBookings(ctx, t.tx, doctorID, day)
}

func (t scheduleTx) ListDayBlocks(ctx context.Context, doctorID uuid.UUID, day time.Time) ([]domain.ScheduleBlock, error) {
	return listDayBlocks(ctx, t.tx, doctorID, day)
}

func (t scheduleTx) GetBookingForUpdate(ctx context.Context, id uuid.UUID) (domain.Booking, error) {
	var b domain.Booking
	err := t.tx.NewSelect().Model(&b).Where("id = ?", id).For("UPDATE").Limit(1).Scan(ctx)
	if err != nil {
		return domain.Booking{}, notFound(err)
	}
	return b, nil
}

func (t scheduleTx) InsertBooking(ctx context.Context, b domain.Booking) (domain.Booking, error) {
	m := b
	if _, err := t.tx.NewInsert().Model(&m).Exec(ctx); err != nil {
		return domain.Booking{}, uniqueViolation(err)
	}
	return m, nil
}

func (t scheduleTx) UpdateBooking(ctx context.Context, b domain.Booking) (domain.Booking, error) {
	m := b
	res, err := t.tx.NewUpdate().
		Model(&m).
		Column("doctor_id", "specialty_id", "date", "start_time", "end_time", "status", "notes", "updated_by", "updated_at").
		WherePK().
		Exec(ctx)
	if err := affectedOne(res, err); err != nil {
		return domain.Booking{}, err
	}
	return m, nil
}

func (t scheduleTx) GetBlockForUpdate(ctx context.Context, id uuid.UUID) (domain.ScheduleBlock, error) {
	var b domain.ScheduleBlock
	err := t.tx.NewSelect().Model(&b).Where("id = ?", id).For("UPDATE").Limit(1).Scan(ctx)
	if err != nil {
		return domain.ScheduleBlock{}, notFound(err)
	}
	return b, nil
}

func (t scheduleTx) InsertBlock(ctx context.Context, b domain.ScheduleBlock) (domain.ScheduleBlock, error) {
	m := b
	if _, err := t.tx.NewInsert().Model(&m).Exec(ctx); err != nil {
		return domain.ScheduleBlock{}, uniqueViolation(err)
	}
	return m, nil
}

func (t scheduleTx) UpdateBlock(ctx context.Context, b domain.ScheduleBlock) (domain.ScheduleBlock, error) {
	m := b
	res, err := t.tx.NewUpdate().
		Model(&m).
		Column("date", "start_time", "end_time", "reason", "updated_at").
		WherePK().
		Exec(ctx)
	if err := affectedOne(res, err); err != nil {
		return domain.ScheduleBlock{}, err
	}
	return m, nil
}

func getDoctor(ctx context.Context, db bun.IDB, doctorID uuid.UUID) (domain.Doctor, error) {
	var d domain.Doctor
	err := db.NewSelect().Model(&d).Where("id = ?", doctorID).Limit(1).Scan(ctx)
	if err != nil {
		return domain.Doctor{}, notFound(err)
	}
	return d, nil
}

// listDayBookings returns every booking of the day, cancelled ones included;
// callers decide occupancy through domain.Booking.Occupies.
func listDayBookings(ctx context.Context, db bun.IDB, doctorID uuid.UUID, day time.Time) ([]domain.Booking, error) {
	var rows []domain.Booking
	err := db.NewSelect().
		Model(&rows).
		Where("doctor_id = ?", doctorID).
		Where("date = ?", domain.NormalizeDay(day)).
		OrderExpr("start_time ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func listDayBlocks(ctx context.Context, db bun.IDB, doctorID uuid.UUID, day time.Time) ([]domain.ScheduleBlock, error) {
	var rows []domain.ScheduleBlock
	err := db.NewSelect().
		Model(&rows).
		Where("doctor_id = ?", doctorID).
		Where("date = ?", domain.NormalizeDay(day)).
		OrderExpr("start_time ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

func uniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return store.ErrIdempotencyConflict
	}
	return err
}

func affectedOne(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}
