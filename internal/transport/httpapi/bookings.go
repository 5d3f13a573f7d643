package httpapi

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"agenda/backend/internal/domain"
	"agenda/backend/internal/service/scheduling"
)

const idempotencyKeyHeader = "Idempotency-Key"

type bookingDTO struct {
	ID          string    `json:"id"`
	DoctorID    string    `json:"doctorId"`
	PatientID   string    `json:"patientId"`
	SpecialtyID string    `json:"specialtyId,omitempty"`
	Date        string    `json:"date"`
	StartTime   string    `json:"startTime"`
	EndTime     string    `json:"endTime"`
	Status      string    `json:"status"`
	Notes       string    `json:"notes,omitempty"`
	CreatedBy   string    `json:"createdBy,omitempty"`
	UpdatedBy   string    `json:"updatedBy,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func toBookingDTO(b domain.Booking) bookingDTO {
	dto := bookingDTO{
		ID:        b.ID.String(),
		DoctorID:  b.DoctorID.String(),
		PatientID: b.PatientID.String(),
		Date:      domain.FormatDay(b.Date),
		StartTime: b.StartTime,
		EndTime:   b.EndTime,
		Status:    string(b.Status),
		Notes:     b.Notes,
		CreatedBy: b.CreatedBy,
		UpdatedBy: b.UpdatedBy,
		CreatedAt: b.CreatedAt,
		UpdatedAt: b.UpdatedAt,
	}
	if b.SpecialtyID != uuid.Nil {
		dto.SpecialtyID = b.SpecialtyID.String()
	}
	return dto
}

type createBookingRequest struct {
	DoctorID    string `json:"doctorId"`
	PatientID   string `json:"patientId"`
	SpecialtyID string `json:"specialtyId"`
	Date        string `json:"date"`
	StartTime   string `json:"startTime"`
	EndTime     string `json:"endTime"`
	Notes       string `json:"notes"`
}

type updateBookingRequest struct {
	DoctorID    *string `json:"doctorId"`
	SpecialtyID *string `json:"specialtyId"`
	Date        *string `json:"date"`
	StartTime   *string `json:"startTime"`
	EndTime     *string `json:"endTime"`
	Status      *string `json:"status"`
	Notes       *string `json:"notes"`
}

func (s *Server) createBooking(c echo.Context) error {
	actor, _ := actorFrom(c)

	var req createBookingRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(KindInvalidRequest, "invalid request body")
	}
	doctorID, err := optionalUUID("doctorId", req.DoctorID)
	if err != nil {
		return err
	}
	patientID, err := optionalUUID("patientId", req.PatientID)
	if err != nil {
		return err
	}
	specialtyID, err := optionalUUID("specialtyId", req.SpecialtyID)
	if err != nil {
		return err
	}
	if doctorID == uuid.Nil && actor.Role != RoleAdmin {
		doctorID = actor.DoctorID
	}
	if doctorID != uuid.Nil && !canManageDoctor(actor, doctorID) {
		return forbidden("cannot book for another doctor")
	}

	b, err := s.svc.CreateBooking(c.Request().Context(), scheduling.CreateBookingInput{
		DoctorID:       doctorID,
		PatientID:      patientID,
		SpecialtyID:    specialtyID,
		Date:           req.Date,
		StartTime:      req.StartTime,
		EndTime:        req.EndTime,
		Notes:          req.Notes,
		Actor:          actor.Subject,
		IdempotencyKey: c.Request().Header.Get(idempotencyKeyHeader),
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toBookingDTO(b))
}

func (s *Server) updateBooking(c echo.Context) error {
	actor, _ := actorFrom(c)
	id, err := pathID(c)
	if err != nil {
		return err
	}

	var req updateBookingRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(KindInvalidRequest, "invalid request body")
	}

	current, err := s.svc.GetBooking(c.Request().Context(), id)
	if err != nil {
		return err
	}
	if !canManageDoctor(actor, current.DoctorID) {
		return forbidden("booking belongs to another doctor")
	}

	in := scheduling.UpdateBookingInput{
		ID:        id,
		Date:      req.Date,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Notes:     req.Notes,
		Actor:     actor.Subject,
	}
	if req.DoctorID != nil {
		doctorID, err := uuid.Parse(*req.DoctorID)
		if err != nil {
			return badRequest(KindInvalidRequest, "doctorId must be a UUID")
		}
		if !canManageDoctor(actor, doctorID) {
			return forbidden("cannot move booking to another doctor")
		}
		in.DoctorID = &doctorID
	}
	if req.SpecialtyID != nil {
		specialtyID, err := uuid.Parse(*req.SpecialtyID)
		if err != nil {
			return badRequest(KindInvalidRequest, "specialtyId must be a UUID")
		}
		in.SpecialtyID = &specialtyID
	}
	if req.Status != nil {
		st := domain.BookingStatus(*req.Status)
		in.Status = &st
	}

	b, err := s.svc.UpdateBooking(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toBookingDTO(b))
}

func (s *Server) deleteBooking(c echo.Context) error {
	actor, _ := actorFrom(c)
	id, err := pathID(c)
	if err != nil {
		return err
	}
	current, err := s.svc.GetBooking(c.Request().Context(), id)
	if err != nil {
		return err
	}
	if !canManageDoctor(actor, current.DoctorID) {
		return forbidden("booking belongs to another doctor")
	}
	b, err := s.svc.DeleteBooking(c.Request().Context(), id, actor.Subject)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toBookingDTO(b))
}

func (s *Server) getBooking(c echo.Context) error {
	actor, _ := actorFrom(c)
	id, err := pathID(c)
	if err != nil {
		return err
	}
	b, err := s.svc.GetBooking(c.Request().Context(), id)
	if err != nil {
		return err
	}
	if !canViewBooking(actor, b) {
		return forbidden("booking belongs to another doctor or patient")
	}
	return c.JSON(http.StatusOK, toBookingDTO(b))
}

func (s *Server) listBookings(c echo.Context) error {
	actor, _ := actorFrom(c)

	doctorID, err := optionalUUID("doctorId", c.QueryParam("doctorId"))
	if err != nil {
		return err
	}
	patientID, err := optionalUUID("patientId", c.QueryParam("patientId"))
	if err != nil {
		return err
	}

	switch actor.Role {
	case RoleDoctor, RoleAssistant:
		if actor.DoctorID == uuid.Nil {
			return forbidden("token carries no doctor")
		}
		doctorID = actor.DoctorID
	case RolePatient:
		if actor.PatientID == uuid.Nil {
			return forbidden("token carries no patient")
		}
		patientID = actor.PatientID
	}

	rows, err := s.svc.ListBookings(c.Request().Context(), scheduling.BookingQuery{
		DoctorID:  doctorID,
		PatientID: patientID,
		Date:      c.QueryParam("date"),
		Status:    c.QueryParam("status"),
	})
	if err != nil {
		return err
	}
	out := make([]bookingDTO, 0, len(rows))
	for _, b := range rows {
		out = append(out, toBookingDTO(b))
	}
	return c.JSON(http.StatusOK, out)
}

func canViewBooking(a Actor, b domain.Booking) bool {
	if a.Role == RolePatient {
		return a.PatientID != uuid.Nil && a.PatientID == b.PatientID
	}
	return canManageDoctor(a, b.DoctorID)
}
