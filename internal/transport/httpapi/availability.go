package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"agenda/backend/internal/domain"
	"agenda/backend/internal/service/scheduling"
)

type workingHoursDTO struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type availabilityDTO struct {
	Date            string          `json:"date"`
	DoctorID        string          `json:"doctorId"`
	DurationMinutes int             `json:"durationMinutes"`
	WorkingHours    workingHoursDTO `json:"workingHours"`
	Total           int             `json:"total"`
	Free            []string        `json:"free"`
	Occupied        []string        `json:"occupied"`
}

type suggestionsDTO struct {
	Date            string   `json:"date"`
	DoctorID        string   `json:"doctorId"`
	DurationMinutes int      `json:"durationMinutes"`
	Suggestions     []string `json:"suggestions"`
	TotalAvailable  int      `json:"totalAvailable"`
}

func (s *Server) availabilityQuery(c echo.Context) (scheduling.AvailabilityQuery, error) {
	doctorID, err := optionalUUID("doctorId", c.QueryParam("doctorId"))
	if err != nil {
		return scheduling.AvailabilityQuery{}, err
	}
	duration, err := queryInt(c, "durationMinutes", "duration", "durationMin")
	if err != nil {
		return scheduling.AvailabilityQuery{}, err
	}
	return scheduling.AvailabilityQuery{
		DoctorID: doctorID,
		Date:     c.QueryParam("date"),
		Duration: duration,
	}, nil
}

func (s *Server) availability(c echo.Context) error {
	q, err := s.availabilityQuery(c)
	if err != nil {
		return err
	}
	res, err := s.svc.Availability(c.Request().Context(), q)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, availabilityDTO{
		Date:            domain.FormatDay(res.Date),
		DoctorID:        res.DoctorID.String(),
		DurationMinutes: res.DurationMinutes,
		WorkingHours:    workingHoursDTO{Start: res.WorkingHours.StartClock(), End: res.WorkingHours.EndClock()},
		Total:           res.Total,
		Free:            nonNil(res.Free),
		Occupied:        nonNil(res.Occupied),
	})
}

func (s *Server) suggestions(c echo.Context) error {
	q, err := s.availabilityQuery(c)
	if err != nil {
		return err
	}
	count, err := queryInt(c, "count")
	if err != nil {
		return err
	}
	res, err := s.svc.Suggest(c.Request().Context(), scheduling.SuggestQuery{AvailabilityQuery: q, Count: count})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, suggestionsDTO{
		Date:            domain.FormatDay(res.Date),
		DoctorID:        res.DoctorID.String(),
		DurationMinutes: res.DurationMinutes,
		Suggestions:     nonNil(res.Suggestions),
		TotalAvailable:  res.TotalAvailable,
	})
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
