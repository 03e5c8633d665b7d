package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/lojf/gymclass/internal/models"
	"github.com/lojf/gymclass/internal/services"
)

// GET /api/clubs/{clubID}/memberships/validate?userId=
func (h *Handlers) ValidateMembership(w http.ResponseWriter, r *http.Request) {
	clubID, err := idParam(r, "clubID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	raw := r.URL.Query().Get("userId")
	userID, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || userID == 0 {
		writeError(w, r, badRequest("invalid userId %q", raw))
		return
	}
	v, err := h.Svc.ValidateMembership(r.Context(), uint(userID), clubID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

type membershipRequest struct {
	UserID    uint    `json:"userId" validate:"required"`
	PlanID    uint    `json:"planId" validate:"required"`
	ClubID    uint    `json:"clubId" validate:"required"`
	StartDate *string `json:"startDate"`
}

// POST /api/memberships
func (h *Handlers) RequestMembership(w http.ResponseWriter, r *http.Request) {
	var req membershipRequest
	if err := h.bind(r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	start, err := parseOptionalDate("startDate", req.StartDate)
	if err != nil {
		writeError(w, r, err)
		return
	}
	m, err := h.Svc.RequestMembership(r.Context(), services.MembershipRequest{
		UserID:    req.UserID,
		PlanID:    req.PlanID,
		ClubID:    req.ClubID,
		StartDate: start,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

// GET /api/memberships/{id}
func (h *Handlers) GetMembership(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	m, err := h.Svc.GetMembership(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// GET /api/clubs/{clubID}/memberships?status=
func (h *Handlers) ListClubMemberships(w http.ResponseWriter, r *http.Request) {
	clubID, err := idParam(r, "clubID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	status := models.MembershipStatus(strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("status"))))
	list, err := h.Svc.ListClubMemberships(r.Context(), clubID, status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// GET /api/users/{userID}/memberships
func (h *Handlers) ListUserMemberships(w http.ResponseWriter, r *http.Request) {
	userID, err := idParam(r, "userID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	list, err := h.Svc.ListUserMemberships(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// versionRequest carries the optional optimistic version; 0 skips the check.
type versionRequest struct {
	Version int `json:"version" validate:"gte=0"`
}

type membershipOp func(ctx context.Context, id uint, version int) (models.Membership, error)

// membershipAction serves POST /api/memberships/{id}/approve|suspend|resume|cancel.
func (h *Handlers) membershipAction(op membershipOp) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r, "id")
		if err != nil {
			writeError(w, r, err)
			return
		}
		var req versionRequest
		if err := h.bind(r, &req, true); err != nil {
			writeError(w, r, err)
			return
		}
		m, err := op(r.Context(), id, req.Version)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, m)
	}
}

func (h *Handlers) ApproveMembership() http.HandlerFunc {
	return h.membershipAction(h.Svc.ApproveMembership)
}

func (h *Handlers) SuspendMembership() http.HandlerFunc {
	return h.membershipAction(h.Svc.SuspendMembership)
}

func (h *Handlers) ResumeMembership() http.HandlerFunc {
	return h.membershipAction(h.Svc.ResumeMembership)
}

func (h *Handlers) CancelMembership() http.HandlerFunc {
	return h.membershipAction(h.Svc.CancelMembership)
}
