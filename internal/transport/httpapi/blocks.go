package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"agenda/backend/internal/domain"
	"agenda/backend/internal/service/scheduling"
)

type blockDTO struct {
	ID        string    `json:"id"`
	DoctorID  string    `json:"doctorId"`
	Date      string    `json:"date"`
	StartTime string    `json:"startTime"`
	EndTime   string    `json:"endTime"`
	Reason    string    `json:"reason"`
	CreatedBy string    `json:"createdBy,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func toBlockDTO(b domain.ScheduleBlock) blockDTO {
	return blockDTO{
		ID:        b.ID.String(),
		DoctorID:  b.DoctorID.String(),
		Date:      domain.FormatDay(b.Date),
		StartTime: b.StartTime,
		EndTime:   b.EndTime,
		Reason:    b.Reason,
		CreatedBy: b.CreatedBy,
		CreatedAt: b.CreatedAt,
		UpdatedAt: b.UpdatedAt,
	}
}

type blockPageDTO struct {
	Total  int        `json:"total"`
	Page   int        `json:"page"`
	Limit  int        `json:"limit"`
	Blocks []blockDTO `json:"blocks"`
}

type createBlockRequest struct {
	DoctorID  string `json:"doctorId"`
	Date      string `json:"date"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	Reason    string `json:"reason"`
}

type updateBlockRequest struct {
	Date      *string `json:"date"`
	StartTime *string `json:"startTime"`
	EndTime   *string `json:"endTime"`
	Reason    *string `json:"reason"`
}

func (s *Server) createBlock(c echo.Context) error {
	actor, _ := actorFrom(c)

	var req createBlockRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(KindInvalidRequest, "invalid request body")
	}
	doctorID, err := optionalUUID("doctorId", req.DoctorID)
	if err != nil {
		return err
	}
	// Doctors and assistants default to the doctor named in their token.
	if doctorID == uuid.Nil && actor.Role != RoleAdmin {
		doctorID = actor.DoctorID
	}
	if doctorID != uuid.Nil && !canManageDoctor(actor, doctorID) {
		return forbidden("cannot block another doctor's schedule")
	}

	b, err := s.svc.CreateBlock(c.Request().Context(), scheduling.CreateBlockInput{
		DoctorID:       doctorID,
		Date:           req.Date,
		StartTime:      req.StartTime,
		EndTime:        req.EndTime,
		Reason:         req.Reason,
		Actor:          actor.Subject,
		IdempotencyKey: c.Request().Header.Get(idempotencyKeyHeader),
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toBlockDTO(b))
}

func (s *Server) updateBlock(c echo.Context) error {
	actor, _ := actorFrom(c)
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req updateBlockRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(KindInvalidRequest, "invalid request body")
	}

	current, err := s.svc.GetBlock(c.Request().Context(), id)
	if err != nil {
		return err
	}
	if !canManageDoctor(actor, current.DoctorID) {
		return forbidden("block belongs to another doctor")
	}

	b, err := s.svc.UpdateBlock(c.Request().Context(), scheduling.UpdateBlockInput{
		ID:        id,
		Date:      req.Date,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Reason:    req.Reason,
		Actor:     actor.Subject,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toBlockDTO(b))
}

func (s *Server) deleteBlock(c echo.Context) error {
	actor, _ := actorFrom(c)
	id, err := pathID(c)
	if err != nil {
		return err
	}
	current, err := s.svc.GetBlock(c.Request().Context(), id)
	if err != nil {
		return err
	}
	if !canManageDoctor(actor, current.DoctorID) {
		return forbidden("block belongs to another doctor")
	}
	if err := s.svc.DeleteBlock(c.Request().Context(), id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toBlockDTO(current))
}

func (s *Server) getBlock(c echo.Context) error {
	actor, _ := actorFrom(c)
	id, err := pathID(c)
	if err != nil {
		return err
	}
	b, err := s.svc.GetBlock(c.Request().Context(), id)
	if err != nil {
		return err
	}
	if !canManageDoctor(actor, b.DoctorID) {
		return forbidden("block belongs to another doctor")
	}
	return c.JSON(http.StatusOK, toBlockDTO(b))
}

func (s *Server) listBlocks(c echo.Context) error {
	actor, _ := actorFrom(c)

	doctorID, err := optionalUUID("doctorId", c.QueryParam("doctorId"))
	if err != nil {
		return err
	}
	if actor.Role != RoleAdmin {
		if actor.DoctorID == uuid.Nil {
			return forbidden("token carries no doctor")
		}
		doctorID = actor.DoctorID
	}
	page, err := queryInt(c, "page")
	if err != nil {
		return err
	}
	limit, err := queryInt(c, "limit")
	if err != nil {
		return err
	}

	res, err := s.svc.ListBlocks(c.Request().Context(), scheduling.BlockQuery{
		DoctorID: doctorID,
		Date:     c.QueryParam("date"),
		Page:     page,
		Limit:    limit,
	})
	if err != nil {
		return err
	}
	out := blockPageDTO{Total: res.Total, Page: res.Page, Limit: res.Limit, Blocks: make([]blockDTO, 0, len(res.Blocks))}
	for _, b := range res.Blocks {
		out.Blocks = append(out.Blocks, toBlockDTO(b))
	}
	return c.JSON(http.StatusOK, out)
}

// queryInt reads an optional integer query parameter; absent means zero.
func queryInt(c echo.Context, names ...string) (int, error) {
	for _, name := range names {
		raw := c.QueryParam(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return 0, badRequest(KindInvalidRequest, name+" must be an integer")
		}
		return n, nil
	}
	return 0, nil
}
