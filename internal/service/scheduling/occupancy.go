package scheduling

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"agenda/backend/internal/domain"
	"agenda/backend/internal/store"
)

type occupancyScope int

const (
	scopeAll occupancyScope = iota
	scopeBlocksOnly
)

// blockScope is the occupancy a new or edited block is checked against.
func (s *Service) blockScope() occupancyScope {
	if s.policy.BlockPolicy == BlockPolicyBlocksOnly {
		return scopeBlocksOnly
	}
	return scopeAll
}

func occupancyFor(ctx context.Context, r store.DayReader, doctorID uuid.UUID, day time.Time, scope occupancyScope) (domain.Occupancy, error) {
	var bookings []domain.Booking
	if scope == scopeAll {
		rows, err := r.ListDayBookings(ctx, doctorID, day)
		if err != nil {
			return nil, fmt.Errorf("list bookings: %w", err)
		}
		bookings = rows
	}
	blocks, err := r.ListDayBlocks(ctx, doctorID, day)
	if err != nil {
		return nil, fmt.Errorf("list schedule blocks: %w", err)
	}
	return domain.NewOccupancy(bookings, blocks)
}
