package handlers

import (
	"net/http"

	"github.com/lojf/gymclass/internal/services"
)

// POST /api/sessions/{id}/reservations (X-User-ID)
func (h *Handlers) BookSession(w http.ResponseWriter, r *http.Request) {
	sessionID, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	userID, err := userHeader(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.Svc.BookSession(r.Context(), userID, sessionID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// GET /api/reservations/{id}
func (h *Handlers) GetReservation(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.Svc.GetReservation(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// GET /api/users/{userID}/reservations
func (h *Handlers) ListUserReservations(w http.ResponseWriter, r *http.Request) {
	userID, err := idParam(r, "userID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	list, err := h.Svc.ListUserReservations(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// POST /api/reservations/{id}/pay
func (h *Handlers) PayReservation(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.Svc.PayReservation(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type cancelRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

// POST /api/reservations/{id}/cancel
func (h *Handlers) CancelReservation(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req cancelRequest
	if err := h.bind(r, &req, true); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.Svc.CancelReservation(r.Context(), id, actor(r), req.Reason)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// POST /api/reservations/{id}/checkin
func (h *Handlers) CheckInReservation(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.Svc.CheckInReservation(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type codeRequest struct {
	Code string `json:"code" validate:"required"`
}

// POST /api/checkin/code
func (h *Handlers) CheckInByCode(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if err := h.bind(r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.Svc.CheckInByCode(r.Context(), services.NormalizeCode(req.Code))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
