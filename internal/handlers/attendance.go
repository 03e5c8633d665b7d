package handlers

import (
	"net/http"

	"github.com/lojf/gymclass/internal/services"
)

type attendanceRequest struct {
	UserID       uint   `json:"userId" validate:"required"`
	MembershipID uint   `json:"membershipId" validate:"required"`
	SessionID    *uint  `json:"sessionId"`
	RecordedBy   *uint  `json:"recordedBy"`
	Notes        string `json:"notes" validate:"max=500"`
}

// POST /api/clubs/{clubID}/attendance
func (h *Handlers) CheckIn(w http.ResponseWriter, r *http.Request) {
	clubID, err := idParam(r, "clubID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req attendanceRequest
	if err := h.bind(r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	a, err := h.Svc.CheckIn(r.Context(), services.CheckInInput{
		UserID:       req.UserID,
		MembershipID: req.MembershipID,
		ClubID:       clubID,
		SessionID:    req.SessionID,
		RecordedBy:   req.RecordedBy,
		Notes:        req.Notes,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

// GET /api/clubs/{clubID}/attendance?from&to
func (h *Handlers) ListAttendance(w http.ResponseWriter, r *http.Request) {
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
	list, err := h.Svc.ListAttendance(r.Context(), clubID, from, to)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}
