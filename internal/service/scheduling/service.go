package scheduling

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"agenda/backend/internal/domain"
	"agenda/backend/internal/store"
)

var (
	ErrDoctorNotFound        = errors.New("doctor not found")
	ErrDoctorScheduleMissing = errors.New("doctor has no working hours configured")
	ErrMissingParams         = errors.New("missing required parameters")
	ErrSchedulingConflict    = errors.New("scheduling conflict")
)

// ValidationError reports input the caller must fix. It unwraps to
// domain.ErrInvalidInterval or ErrMissingParams.
type ValidationError struct {
	msg string
	err error
}

func (e *ValidationError) Error() string {
	return e.msg
}

func (e *ValidationError) Unwrap() error {
	return e.err
}

func validationError(msg string) error {
	return &ValidationError{msg: msg, err: domain.ErrInvalidInterval}
}

func invalidInput(err error) error {
	return &ValidationError{msg: err.Error(), err: domain.ErrInvalidInterval}
}

func missingParams(names ...string) error {
	return &ValidationError{
		msg: "missing required parameters: " + strings.Join(names, ", "),
		err: ErrMissingParams,
	}
}

// ConflictError lists the occupied ranges a candidate collides with.
// An empty list means the record kept moving between days while being edited.
type ConflictError struct {
	Conflicts []domain.Occupant
}

func (e *ConflictError) Error() string {
	if len(e.Conflicts) == 0 {
		return "schedule changed concurrently, retry the request"
	}
	parts := make([]string, 0, len(e.Conflicts))
	for _, c := range e.Conflicts {
		parts = append(parts, fmt.Sprintf("%s %s", c.Kind, c.Interval))
	}
	return "time range overlaps " + strings.Join(parts, ", ")
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrSchedulingConflict
}

type BlockPolicy string

const (
	// BlockPolicyRejectBookings refuses a block that overlaps any active booking or block.
	BlockPolicyRejectBookings BlockPolicy = "reject_bookings"
	// BlockPolicyBlocksOnly checks a block against other blocks only; existing
	// bookings stay in place underneath it.
	BlockPolicyBlocksOnly BlockPolicy = "blocks_only"
)

func ParseBlockPolicy(s string) (BlockPolicy, error) {
	switch BlockPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", BlockPolicyRejectBookings:
		return BlockPolicyRejectBookings, nil
	case BlockPolicyBlocksOnly:
		return BlockPolicyBlocksOnly, nil
	}
	return "", fmt.Errorf("unknown block policy %q", s)
}

const (
	DefaultSlotDuration    = 30
	DefaultSuggestionCount = 3
	maxEditAttempts        = 3
	maxIdempotencyKeyLen   = 256
	publishTimeout         = 5 * time.Second
)

type Policy struct {
	BlockPolicy         BlockPolicy
	EnforceWorkingHours bool
	DefaultDuration     int
}

func DefaultPolicy() Policy {
	return Policy{
		BlockPolicy:         BlockPolicyRejectBookings,
		EnforceWorkingHours: true,
		DefaultDuration:     DefaultSlotDuration,
	}
}

// Notifier receives booking events after they are committed.
type Notifier interface {
	Publish(ctx context.Context, ev domain.BookingEvent) error
}

type Service struct {
	repo     store.ScheduleRepository
	notifier Notifier
	policy   Policy
	log      zerolog.Logger
	metrics  *Metrics
	now      func() time.Time
}

type Option func(*Service)

func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

func WithPolicy(p Policy) Option {
	return func(s *Service) {
		if p.BlockPolicy == "" {
			p.BlockPolicy = BlockPolicyRejectBookings
		}
		if p.DefaultDuration <= 0 {
			p.DefaultDuration = DefaultSlotDuration
		}
		s.policy = p
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.log = l.With().Str("component", "scheduling").Logger() }
}

func WithMetrics(m *Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func NewService(repo store.ScheduleRepository, opts ...Option) *Service {
	s := &Service{
		repo:   repo,
		policy: DefaultPolicy(),
		log:    zerolog.Nop(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Policy() Policy {
	return s.policy
}

// publish hands a committed change to the notifier. Delivery failures are
// logged only; the change is already durable. The publish outlives a
// cancelled request but is bounded by publishTimeout.
func (s *Service) publish(ctx context.Context, typ domain.BookingEventType, b domain.Booking, actor string) {
	if s.notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	ev := domain.NewBookingEvent(typ, b, actor, s.now())
	if err := s.notifier.Publish(ctx, ev); err != nil {
		s.log.Warn().Err(err).
			Str("event_type", string(typ)).
			Str("booking_id", b.ID.String()).
			Msg("booking event not delivered")
	}
}

func doctorLookup(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return ErrDoctorNotFound
	}
	return err
}
