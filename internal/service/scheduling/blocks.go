package scheduling

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"agenda/backend/internal/domain"
	"agenda/backend/internal/store"
)

const (
	defaultBlockPageLimit = 10
	maxBlockPageLimit     = 100
)

type CreateBlockInput struct {
	DoctorID       uuid.UUID
	Date           string
	StartTime      string
	EndTime        string
	Reason         string
	Actor          string
	IdempotencyKey string
}

// UpdateBlockInput carries a partial edit. A block never changes doctor.
type UpdateBlockInput struct {
	ID        uuid.UUID
	Date      *string
	StartTime *string
	EndTime   *string
	Reason    *string
	Actor     string
}

func (s *Service) CreateBlock(ctx context.Context, in CreateBlockInput) (_ domain.ScheduleBlock, err error) {
	defer func() { s.metrics.recordAdmission("block", "create", err) }()

	if in.DoctorID == uuid.Nil {
		return domain.ScheduleBlock{}, validationError("doctor_id is required")
	}
	day, err := parseDay(in.Date)
	if err != nil {
		return domain.ScheduleBlock{}, err
	}
	iv, err := domain.ParseInterval(in.StartTime, in.EndTime)
	if err != nil {
		return domain.ScheduleBlock{}, invalidInput(err)
	}

	candidate := domain.ScheduleBlock{
		DoctorID:  in.DoctorID,
		Date:      day,
		StartTime: iv.StartClock(),
		EndTime:   iv.EndClock(),
		Reason:    blockReason(in.Reason),
		CreatedBy: in.Actor,
	}
	candidate.ID, err = idempotentID("create_block", in.Actor, in.IdempotencyKey)
	if err != nil {
		return domain.ScheduleBlock{}, err
	}

	var out domain.ScheduleBlock
	err = s.repo.InDoctorDayTransaction(ctx, in.DoctorID, day, func(ctx context.Context, tx store.ScheduleTx) error {
		if candidate.ID != uuid.Nil {
			existing, err := tx.GetBlockForUpdate(ctx, candidate.ID)
			switch {
			case err == nil:
				if !sameBlock(existing, candidate) {
					return store.ErrIdempotencyConflict
				}
				out = existing
				return nil
			case !errors.Is(err, store.ErrNotFound):
				return err
			}
		}

		if _, err := tx.GetDoctor(ctx, in.DoctorID); err != nil {
			return doctorLookup(err)
		}
		occ, err := occupancyFor(ctx, tx, in.DoctorID, day, s.blockScope())
		if err != nil {
			return err
		}
		if conflicts := domain.Conflicts(iv, occ, uuid.Nil); len(conflicts) > 0 {
			return &ConflictError{Conflicts: conflicts}
		}

		out, err = tx.InsertBlock(ctx, candidate)
		return err
	})
	if err != nil {
		return domain.ScheduleBlock{}, err
	}

	s.log.Debug().
		Str("block_id", out.ID.String()).
		Str("doctor_id", out.DoctorID.String()).
		Str("date", domain.FormatDay(out.Date)).
		Str("slot", iv.String()).
		Msg("schedule block admitted")
	return out, nil
}

func (s *Service) UpdateBlock(ctx context.Context, in UpdateBlockInput) (_ domain.ScheduleBlock, err error) {
	defer func() { s.metrics.recordAdmission("block", "update", err) }()

	if in.ID == uuid.Nil {
		return domain.ScheduleBlock{}, validationError("block id is required")
	}

	for attempt := 0; attempt < maxEditAttempts; attempt++ {
		current, err := s.repo.GetBlock(ctx, in.ID)
		if err != nil {
			return domain.ScheduleBlock{}, err
		}
		target, _, err := applyBlockEdit(current, in)
		if err != nil {
			return domain.ScheduleBlock{}, err
		}

		var out domain.ScheduleBlock
		err = s.repo.InDoctorDayTransaction(ctx, target.DoctorID, target.Date, func(ctx context.Context, tx store.ScheduleTx) error {
			fresh, err := tx.GetBlockForUpdate(ctx, in.ID)
			if err != nil {
				return err
			}
			next, iv, err := applyBlockEdit(fresh, in)
			if err != nil {
				return err
			}
			if next.DoctorID != target.DoctorID || !next.Date.Equal(target.Date) {
				return errKeyMoved
			}

			occ, err := occupancyFor(ctx, tx, next.DoctorID, next.Date, s.blockScope())
			if err != nil {
				return err
			}
			if conflicts := domain.Conflicts(iv, occ, next.ID); len(conflicts) > 0 {
				return &ConflictError{Conflicts: conflicts}
			}

			out, err = tx.UpdateBlock(ctx, next)
			return err
		})
		if errors.Is(err, errKeyMoved) {
			continue
		}
		if err != nil {
			return domain.ScheduleBlock{}, err
		}
		return out, nil
	}
	return domain.ScheduleBlock{}, &ConflictError{}
}

func applyBlockEdit(current domain.ScheduleBlock, in UpdateBlockInput) (domain.ScheduleBlock, domain.Interval, error) {
	next := current
	next.Date = domain.NormalizeDay(current.Date)
	if in.Date != nil {
		day, err := parseDay(*in.Date)
		if err != nil {
			return domain.ScheduleBlock{}, domain.Interval{}, err
		}
		next.Date = day
	}
	if in.StartTime != nil {
		next.StartTime = *in.StartTime
	}
	if in.EndTime != nil {
		next.EndTime = *in.EndTime
	}
	if in.Reason != nil {
		next.Reason = blockReason(*in.Reason)
	}

	iv, err := domain.ParseInterval(next.StartTime, next.EndTime)
	if err != nil {
		return domain.ScheduleBlock{}, domain.Interval{}, invalidInput(err)
	}
	next.StartTime, next.EndTime = iv.StartClock(), iv.EndClock()
	return next, iv, nil
}

func (s *Service) DeleteBlock(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return validationError("block id is required")
	}
	return s.repo.DeleteBlock(ctx, id)
}

func (s *Service) GetBlock(ctx context.Context, id uuid.UUID) (domain.ScheduleBlock, error) {
	if id == uuid.Nil {
		return domain.ScheduleBlock{}, validationError("block id is required")
	}
	return s.repo.GetBlock(ctx, id)
}

type BlockQuery struct {
	DoctorID uuid.UUID
	Date     string
	Page     int
	Limit    int
}

type BlockPage struct {
	Total  int
	Page   int
	Limit  int
	Blocks []domain.ScheduleBlock
}

func (s *Service) ListBlocks(ctx context.Context, q BlockQuery) (BlockPage, error) {
	page := q.Page
	if page < 1 {
		page = 1
	}
	limit := q.Limit
	if limit < 1 {
		limit = defaultBlockPageLimit
	}
	if limit > maxBlockPageLimit {
		limit = maxBlockPageLimit
	}

	f := store.BlockFilter{DoctorID: q.DoctorID, Limit: limit, Offset: (page - 1) * limit}
	if strings.TrimSpace(q.Date) != "" {
		day, err := parseDay(q.Date)
		if err != nil {
			return BlockPage{}, err
		}
		f.Day = &day
	}

	rows, total, err := s.repo.ListBlocks(ctx, f)
	if err != nil {
		return BlockPage{}, err
	}
	return BlockPage{Total: total, Page: page, Limit: limit, Blocks: rows}, nil
}

func blockReason(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return domain.DefaultBlockReason
	}
	return s
}

func sameBlock(a, b domain.ScheduleBlock) bool {
	return a.DoctorID == b.DoctorID &&
		domain.NormalizeDay(a.Date).Equal(domain.NormalizeDay(b.Date)) &&
		a.StartTime == b.StartTime &&
		a.EndTime == b.EndTime
}
