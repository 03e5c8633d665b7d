package handlers

import (
	"net/http"

	"github.com/lojf/gymclass/internal/models"
	"github.com/lojf/gymclass/internal/services"
)

type expandRequest struct {
	StartDate string `json:"startDate" validate:"required"`
	EndDate   string `json:"endDate" validate:"required"`
}

// POST /api/clubs/{clubID}/sessions/expand
func (h *Handlers) ExpandSchedules(w http.ResponseWriter, r *http.Request) {
	clubID, err := idParam(r, "clubID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req expandRequest
	if err := h.bind(r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	start, err := parseDate("startDate", req.StartDate)
	if err != nil {
		writeError(w, r, err)
		return
	}
	end, err := parseDate("endDate", req.EndDate)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.Svc.ExpandSchedules(r.Context(), clubID, start, end)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type sessionRequest struct {
	ActivityID uint   `json:"activityId" validate:"required"`
	TrainerID  *uint  `json:"trainerId"`
	Date       string `json:"date" validate:"required"`
	StartTime  string `json:"startTime" validate:"required,len=5"`
	EndTime    string `json:"endTime" validate:"required,len=5"`
	Capacity   *int   `json:"capacity" validate:"omitempty,gt=0"`
	Notes      string `json:"notes" validate:"max=500"`
}

// POST /api/clubs/{clubID}/sessions
func (h *Handlers) CreateSession(w http.ResponseWriter, r *http.Request) {
	clubID, err := idParam(r, "clubID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req sessionRequest
	if err := h.bind(r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	on, err := parseDate("date", req.Date)
	if err != nil {
		writeError(w, r, err)
		return
	}
	sess, err := h.Svc.CreateSession(r.Context(), clubID, services.SessionInput{
		ActivityID: req.ActivityID,
		TrainerID:  req.TrainerID,
		Date:       on,
		StartTime:  req.StartTime,
		EndTime:    req.EndTime,
		Capacity:   req.Capacity,
		Notes:      req.Notes,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

type sessionView struct {
	ID          uint   `json:"id"`
	ScheduleID  *uint  `json:"scheduleId"`
	ActivityID  uint   `json:"activityId"`
	TrainerID   *uint  `json:"trainerId"`
	Date        string `json:"date"`
	StartTime   string `json:"startTime"`
	EndTime     string `json:"endTime"`
	Capacity    int    `json:"capacity"`
	BookedCount int    `json:"bookedCount"`
	Available   int    `json:"available"`
	Status      string `json:"status"`
}

func viewSession(s models.Session) sessionView {
	return sessionView{
		ID:          s.ID,
		ScheduleID:  s.ScheduleID,
		ActivityID:  s.ActivityID,
		TrainerID:   s.TrainerID,
		Date:        s.SessionDate.Format(models.DateLayout),
		StartTime:   s.StartTime,
		EndTime:     s.EndTime,
		Capacity:    s.Capacity,
		BookedCount: s.BookedCount,
		Available:   s.Available(),
		Status:      string(s.Status),
	}
}

// GET /api/clubs/{clubID}/sessions?from&to
func (h *Handlers) ListSessions(w http.ResponseWriter, r *http.Request) {
	clubID, err := idParam(r, "clubID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	from, to, err := h.dateRange(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	sessions, err := h.Svc.ListSessions(r.Context(), clubID, from, to)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]sessionView, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, viewSession(s))
	}
	writeJSON(w, http.StatusOK, out)
}

// GET /api/sessions/{id}
func (h *Handlers) GetSession(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	sess, err := h.Svc.GetSession(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewSession(sess))
}

// GET /api/clubs/{clubID}/capacity?from&to
func (h *Handlers) Capacity(w http.ResponseWriter, r *http.Request) {
	clubID, err := idParam(r, "clubID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	from, to, err := h.dateRange(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rep, err := h.Svc.CapacityReport(r.Context(), clubID, from, to)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// POST /api/sessions/{id}/cancel
func (h *Handlers) CancelSession(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.Svc.CancelSession(r.Context(), id, actor(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
