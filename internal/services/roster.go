package services

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/lojf/gymclass/internal/models"
)

// RosterCheckedIn narrows a roster to reservations whose holder checked in,
// whatever their status.
const RosterCheckedIn = "CHECKED_IN"

type Roster struct {
	Session      models.Session       `json:"session"`
	Reservations []models.Reservation `json:"reservations"`
}

// SessionRoster lists everyone who booked the session, oldest booking first.
// filter is empty, a reservation status or RosterCheckedIn.
func (s *Service) SessionRoster(ctx context.Context, sessionID uint, filter string) (Roster, error) {
	out := Roster{Reservations: []models.Reservation{}}
	q := s.db.WithContext(ctx)
	sess, err := first[models.Session](q, "session", sessionID)
	if err != nil {
		return out, classify("roster", err)
	}
	out.Session = sess

	q, err = rosterFilter(q.Where("reservations.session_id = ?", sessionID), filter)
	if err != nil {
		return out, err
	}
	err = q.Order("reservations.booked_at asc, reservations.id asc").Find(&out.Reservations).Error
	return out, classify("roster", err)
}

// ListClubReservations returns the club's reservations for sessions on days
// [from, to], ordered by session and then booking time.
func (s *Service) ListClubReservations(ctx context.Context, clubID uint, from, to time.Time, filter string) ([]models.Reservation, error) {
	from, to, err := s.checkRange(from, to)
	if err != nil {
		return nil, err
	}
	q := s.db.WithContext(ctx).
		Select("reservations.*").
		Preload("Session").
		Joins("JOIN class_sessions ON class_sessions.id = reservations.session_id").
		Where("class_sessions.club_id = ? AND class_sessions.session_date BETWEEN ? AND ?", clubID, from, to)
	if q, err = rosterFilter(q, filter); err != nil {
		return nil, err
	}
	out := []models.Reservation{}
	err = q.Order("class_sessions.session_date asc, class_sessions.start_time asc, reservations.booked_at asc, reservations.id asc").
		Find(&out).Error
	return out, classify("list club reservations", err)
}

func rosterFilter(q *gorm.DB, filter string) (*gorm.DB, error) {
	filter = strings.ToUpper(strings.TrimSpace(filter))
	switch {
	case filter == "":
		return q, nil
	case filter == RosterCheckedIn:
		return q.Where("reservations.checked_in_at IS NOT NULL"), nil
	case models.ReservationStatus(filter).Valid():
		return q.Where("reservations.status = ?", filter), nil
	}
	return q, invalidArg("unknown reservation status %q", filter)
}
