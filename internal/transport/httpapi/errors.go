package httpapi

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"agenda/backend/internal/domain"
	"agenda/backend/internal/service/scheduling"
	"agenda/backend/internal/store"
)

const (
	KindInvalidInterval       = "InvalidInterval"
	KindInvalidRequest        = "InvalidRequest"
	KindMissingParams         = "MissingParams"
	KindDoctorNotFound        = "DoctorNotFound"
	KindDoctorScheduleMissing = "DoctorScheduleMissing"
	KindNotFound              = "NotFound"
	KindSchedulingConflict    = "SchedulingConflict"
	KindIdempotencyConflict   = "IdempotencyConflict"
	KindForbidden             = "Forbidden"
	KindUnauthorized          = "Unauthorized"
	KindRateLimited           = "RateLimited"
	KindStoreFailure          = "StoreFailure"
)

type errorBody struct {
	Error     string        `json:"error"`
	Message   string        `json:"message"`
	Conflicts []conflictDTO `json:"conflicts,omitempty"`
}

type conflictDTO struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	Label     string `json:"label,omitempty"`
}

// badRequest reports a malformed request detected before reaching the service.
func badRequest(kind, msg string) error {
	return &requestError{kind: kind, msg: msg}
}

type requestError struct {
	kind string
	msg  string
}

func (e *requestError) Error() string { return e.msg }

func errorResponse(err error) (int, errorBody) {
	var (
		reqErr      *requestError
		conflictErr *scheduling.ConflictError
		vErr        *scheduling.ValidationError
		httpErr     *echo.HTTPError
	)
	switch {
	case errors.As(err, &reqErr):
		return http.StatusBadRequest, errorBody{Error: reqErr.kind, Message: reqErr.msg}
	case errors.As(err, &conflictErr):
		return http.StatusConflict, errorBody{
			Error:     KindSchedulingConflict,
			Message:   conflictErr.Error(),
			Conflicts: toConflictDTOs(conflictErr.Conflicts),
		}
	case errors.As(err, &vErr):
		if errors.Is(err, scheduling.ErrMissingParams) {
			return http.StatusBadRequest, errorBody{Error: KindMissingParams, Message: vErr.Error()}
		}
		return http.StatusBadRequest, errorBody{Error: KindInvalidInterval, Message: vErr.Error()}
	case errors.Is(err, scheduling.ErrDoctorNotFound):
		return http.StatusNotFound, errorBody{Error: KindDoctorNotFound, Message: "doctor not found"}
	case errors.Is(err, scheduling.ErrDoctorScheduleMissing):
		return http.StatusNotFound, errorBody{Error: KindDoctorScheduleMissing, Message: "doctor has no working hours configured"}
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, errorBody{Error: KindNotFound, Message: "record not found"}
	case errors.Is(err, store.ErrIdempotencyConflict):
		return http.StatusConflict, errorBody{Error: KindIdempotencyConflict, Message: "idempotency key already used for a different request"}
	case errors.As(err, &httpErr):
		return httpErr.Code, errorBody{Error: kindForStatus(httpErr.Code), Message: fmt.Sprint(httpErr.Message)}
	default:
		return http.StatusInternalServerError, errorBody{Error: KindStoreFailure, Message: "internal error"}
	}
}

func kindForStatus(code int) string {
	switch code {
	case http.StatusUnauthorized:
		return KindUnauthorized
	case http.StatusForbidden:
		return KindForbidden
	case http.StatusNotFound:
		return KindNotFound
	case http.StatusTooManyRequests:
		return KindRateLimited
	case http.StatusBadRequest:
		return KindInvalidRequest
	}
	if code >= 500 {
		return KindStoreFailure
	}
	return http.StatusText(code)
}

func toConflictDTOs(occ []domain.Occupant) []conflictDTO {
	out := make([]conflictDTO, 0, len(occ))
	for _, o := range occ {
		out = append(out, conflictDTO{
			ID:        o.ID.String(),
			Kind:      string(o.Kind),
			StartTime: o.Interval.StartClock(),
			EndTime:   o.Interval.EndClock(),
			Label:     o.Label,
		})
	}
	return out
}

// ErrorHandler renders every handler error as a JSON errorBody. Server-side
// failures are logged with the request id; the client only sees a generic message.
func ErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		status, body := errorResponse(err)
		if status >= 500 {
			rid, _ := c.Get(requestIDKey).(string)
			logger.Error().Err(err).
				Str("request_id", rid).
				Str("method", c.Request().Method).
				Str("path", c.Request().URL.Path).
				Msg("request failed")
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(status)
		} else {
			werr = c.JSON(status, body)
		}
		if werr != nil {
			logger.Warn().Err(werr).Msg("write error response")
		}
	}
}
