package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/lojf/gymclass/internal/handlers"
)

func Router(h *handlers.Handlers) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.Health)

	// QR image
	r.Get("/qr/{code}.png", h.QR)

	r.Route("/api", func(api chi.Router) {
		// Club-scoped
		api.Route("/clubs/{clubID}", func(cr chi.Router) {
			cr.Post("/schedules", h.CreateSchedule)

			cr.Post("/sessions/expand", h.ExpandSchedules)
			cr.Post("/sessions", h.CreateSession)
			cr.Get("/sessions", h.ListSessions)
			cr.Get("/capacity", h.Capacity)
			cr.Get("/reservations", h.ListClubReservations)

			cr.Get("/memberships/validate", h.ValidateMembership)
			cr.Get("/memberships", h.ListClubMemberships)

			cr.Post("/attendance", h.CheckIn)
			cr.Get("/attendance", h.ListAttendance)
		})

		// Schedules
		api.Get("/schedules/{id}", h.GetSchedule)
		api.Put("/schedules/{id}", h.UpdateSchedule)
		api.Post("/schedules/{id}/deactivate", h.DeactivateSchedule)

		// Sessions and booking
		api.Get("/sessions/{id}", h.GetSession)
		api.Post("/sessions/{id}/cancel", h.CancelSession)
		api.Post("/sessions/{id}/reservations", h.BookSession)
		api.Get("/sessions/{id}/reservations", h.SessionRoster)
		api.Get("/sessions/{id}/reservations.csv", h.SessionRosterCSV)
		api.Get("/sessions/{id}/attendance", h.SessionAttendance)

		// Reservations
		api.Get("/reservations/{id}", h.GetReservation)
		api.Post("/reservations/{id}/pay", h.PayReservation)
		api.Post("/reservations/{id}/cancel", h.CancelReservation)
		api.Post("/reservations/{id}/checkin", h.CheckInReservation)
		api.Get("/users/{userID}/reservations", h.ListUserReservations)
		api.Post("/checkin/code", h.CheckInByCode)

		// Memberships
		api.Post("/memberships", h.RequestMembership)
		api.Get("/memberships/{id}", h.GetMembership)
		api.Get("/users/{userID}/memberships", h.ListUserMemberships)
		api.Post("/memberships/{id}/approve", h.ApproveMembership())
		api.Post("/memberships/{id}/suspend", h.SuspendMembership())
		api.Post("/memberships/{id}/resume", h.ResumeMembership())
		api.Post("/memberships/{id}/cancel", h.CancelMembership())
	})

	return r
}
