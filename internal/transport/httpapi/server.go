package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"agenda/backend/internal/domain"
	"agenda/backend/internal/service/scheduling"
)

type schedulingService interface {
	CreateBooking(ctx context.Context, in scheduling.CreateBookingInput) (domain.Booking, error)
	UpdateBooking(ctx context.Context, in scheduling.UpdateBookingInput) (domain.Booking, error)
	DeleteBooking(ctx context.Context, id uuid.UUID, actor string) (domain.Booking, error)
	GetBooking(ctx context.Context, id uuid.UUID) (domain.Booking, error)
	ListBookings(ctx context.Context, q scheduling.BookingQuery) ([]domain.Booking, error)

	CreateBlock(ctx context.Context, in scheduling.CreateBlockInput) (domain.ScheduleBlock, error)
	UpdateBlock(ctx context.Context, in scheduling.UpdateBlockInput) (domain.ScheduleBlock, error)
	DeleteBlock(ctx context.Context, id uuid.UUID) error
	GetBlock(ctx context.Context, id uuid.UUID) (domain.ScheduleBlock, error)
	ListBlocks(ctx context.Context, q scheduling.BlockQuery) (scheduling.BlockPage, error)

	Availability(ctx context.Context, q scheduling.AvailabilityQuery) (scheduling.AvailabilityResult, error)
	Suggest(ctx context.Context, q scheduling.SuggestQuery) (scheduling.SuggestionResult, error)
}

var _ schedulingService = (*scheduling.Service)(nil)

type Config struct {
	JWTSecret []byte
	// Limiter is optional; nil disables rate limiting.
	Limiter Limiter
	// Ready backs /healthz. Nil always reports ready.
	Ready func(ctx context.Context) error
	// Metrics is served at /metrics when set.
	Metrics http.Handler
	Logger  zerolog.Logger
}

type Server struct {
	svc schedulingService
	log zerolog.Logger
}

func NewServer(svc schedulingService, log zerolog.Logger) *Server {
	return &Server{svc: svc, log: log.With().Str("component", "http").Logger()}
}

// NewRouter builds the echo instance serving the scheduling API.
func NewRouter(svc schedulingService, cfg Config) *echo.Echo {
	s := NewServer(svc, cfg.Logger)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = ErrorHandler(s.log)

	e.Use(Recovery(s.log))
	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{
		RequestIDHandler: func(c echo.Context, id string) {
			c.Set(requestIDKey, id)
		},
	}))
	e.Use(Logger(s.log))

	e.GET("/healthz", healthHandler(cfg.Ready))
	if cfg.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(cfg.Metrics))
	}

	api := e.Group("/api", JWTAuth(cfg.JWTSecret))
	if cfg.Limiter != nil {
		api.Use(RateLimit(cfg.Limiter, s.log))
	}

	staff := []Role{RoleAdmin, RoleDoctor, RoleAssistant}
	everyone := []Role{RoleAdmin, RoleDoctor, RoleAssistant, RolePatient}

	api.POST("/bookings", s.createBooking, RequireRole(RoleDoctor, RoleAssistant))
	api.PUT("/bookings/:id", s.updateBooking, RequireRole(RoleDoctor, RoleAssistant))
	api.DELETE("/bookings/:id", s.deleteBooking, RequireRole(staff...))
	api.GET("/bookings", s.listBookings, RequireRole(everyone...))
	api.GET("/bookings/:id", s.getBooking, RequireRole(everyone...))

	api.POST("/schedule-blocks", s.createBlock, RequireRole(staff...))
	api.PUT("/schedule-blocks/:id", s.updateBlock, RequireRole(staff...))
	api.DELETE("/schedule-blocks/:id", s.deleteBlock, RequireRole(RoleAdmin, RoleDoctor))
	api.GET("/schedule-blocks", s.listBlocks, RequireRole(staff...))
	api.GET("/schedule-blocks/:id", s.getBlock, RequireRole(staff...))

	api.GET("/availability", s.availability, RequireRole(everyone...))
	api.GET("/suggestions", s.suggestions, RequireRole(everyone...))

	return e
}

func healthHandler(ready func(ctx context.Context) error) echo.HandlerFunc {
	return func(c echo.Context) error {
		if ready != nil {
			ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
			defer cancel()
			if err := ready(ctx); err != nil {
				return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			}
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	}
}

func pathID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, badRequest(KindInvalidRequest, "id must be a UUID")
	}
	return id, nil
}

// optionalUUID parses a query or body id; empty means unset.
func optionalUUID(name, raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, badRequest(KindInvalidRequest, name+" must be a UUID")
	}
	return id, nil
}
