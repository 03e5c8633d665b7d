package handlers

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/lojf/gymclass/internal/models"
)

// GET /api/sessions/{id}/reservations?status=
func (h *Handlers) SessionRoster(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	roster, err := h.Svc.SessionRoster(r.Context(), id, r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, roster)
}

// GET /api/sessions/{id}/reservations.csv?status=
func (h *Handlers) SessionRosterCSV(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	roster, err := h.Svc.SessionRoster(r.Context(), id, r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	loc := h.Svc.Location()
	stamp := func(t *time.Time) string {
		if t == nil {
			return ""
		}
		return t.In(loc).Format("2006-01-02 15:04")
	}

	sess := roster.Session
	filename := fmt.Sprintf("roster-session-%d-%s.csv", sess.ID, sess.SessionDate.Format(models.DateLayout))
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)

	cw := csv.NewWriter(w)
	defer cw.Flush()

	_ = cw.Write([]string{
		"Booked At", "Date", "Start", "User", "Code", "Status",
		"Paid At", "Checked In At", "Cancelled At", "Cancel Reason",
	})
	for _, res := range roster.Reservations {
		booked := res.BookedAt
		_ = cw.Write([]string{
			stamp(&booked),
			sess.SessionDate.Format(models.DateLayout),
			sess.StartTime,
			strconv.FormatUint(uint64(res.UserID), 10),
			res.Code,
			string(res.Status),
			stamp(res.PaidAt),
			stamp(res.CheckedInAt),
			stamp(res.CancelledAt),
			res.CancelReason,
		})
	}
}

// GET /api/clubs/{clubID}/reservations?from&to&status=
func (h *Handlers) ListClubReservations(w http.ResponseWriter, r *http.Request) {
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
	list, err := h.Svc.ListClubReservations(r.Context(), clubID, from, to, r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// GET /api/sessions/{id}/attendance
func (h *Handlers) SessionAttendance(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	list, err := h.Svc.ListSessionAttendance(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}
