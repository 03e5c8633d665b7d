package handlers

import (
	"net/http"

	"github.com/lojf/gymclass/internal/models"
	"github.com/lojf/gymclass/internal/services"
)

type scheduleRequest struct {
	ActivityID uint             `json:"activityId" validate:"required"`
	TrainerID  *uint            `json:"trainerId"`
	StartTime  string           `json:"startTime" validate:"required,len=5"`
	EndTime    string           `json:"endTime" validate:"required,len=5"`
	DaysOfWeek []models.Weekday `json:"daysOfWeek" validate:"required,min=1,max=7,dive,oneof=MONDAY TUESDAY WEDNESDAY THURSDAY FRIDAY SATURDAY SUNDAY"`
	ValidFrom  string           `json:"validFrom" validate:"required"`
	ValidUntil *string          `json:"validUntil"`
	Capacity   *int             `json:"capacity" validate:"omitempty,gt=0"`
	Notes      string           `json:"notes" validate:"max=500"`
	Version    int              `json:"version"`
}

func (req scheduleRequest) input() (services.ScheduleInput, error) {
	from, err := parseDate("validFrom", req.ValidFrom)
	if err != nil {
		return services.ScheduleInput{}, err
	}
	until, err := parseOptionalDate("validUntil", req.ValidUntil)
	if err != nil {
		return services.ScheduleInput{}, err
	}
	return services.ScheduleInput{
		ActivityID: req.ActivityID,
		TrainerID:  req.TrainerID,
		StartTime:  req.StartTime,
		EndTime:    req.EndTime,
		DaysOfWeek: req.DaysOfWeek,
		ValidFrom:  from,
		ValidUntil: until,
		Capacity:   req.Capacity,
		Notes:      req.Notes,
	}, nil
}

// POST /api/clubs/{clubID}/schedules
func (h *Handlers) CreateSchedule(w http.ResponseWriter, r *http.Request) {
	clubID, err := idParam(r, "clubID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req scheduleRequest
	if err := h.bind(r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	in, err := req.input()
	if err != nil {
		writeError(w, r, err)
		return
	}
	sc, err := h.Svc.CreateSchedule(r.Context(), clubID, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sc)
}

// GET /api/schedules/{id}
func (h *Handlers) GetSchedule(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	sc, err := h.Svc.GetSchedule(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sc)
}

// PUT /api/schedules/{id}
func (h *Handlers) UpdateSchedule(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req scheduleRequest
	if err := h.bind(r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Version <= 0 {
		writeError(w, r, badRequest("version is required"))
		return
	}
	in, err := req.input()
	if err != nil {
		writeError(w, r, err)
		return
	}
	sc, err := h.Svc.UpdateSchedule(r.Context(), id, req.Version, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sc)
}

// POST /api/schedules/{id}/deactivate
func (h *Handlers) DeactivateSchedule(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	sc, err := h.Svc.DeactivateSchedule(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sc)
}
