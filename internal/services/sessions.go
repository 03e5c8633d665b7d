package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/lojf/gymclass/internal/apperr"
	"github.com/lojf/gymclass/internal/events"
	"github.com/lojf/gymclass/internal/lifecycle"
	"github.com/lojf/gymclass/internal/models"
)

const (
	reasonSessionCancelled = "session cancelled"
	reasonUnpaidAtEnd      = "unpaid at session end"
	actorSystem            = "system"
)

type SessionInput struct {
	ActivityID uint
	TrainerID  *uint
	Date       time.Time
	StartTime  string
	EndTime    string
	Capacity   *int // defaults to the activity's capacity
	Notes      string
}

// CreateSession adds an ad hoc session that belongs to no schedule.
func (s *Service) CreateSession(ctx context.Context, clubID uint, in SessionInput) (models.Session, error) {
	if err := validateWindow(in.StartTime, in.EndTime); err != nil {
		return models.Session{}, err
	}
	if in.Capacity != nil && *in.Capacity <= 0 {
		return models.Session{}, invalidArg("capacity must be positive, got %d", *in.Capacity)
	}

	var out models.Session
	err := s.transaction(ctx, "create session", func(tx *gorm.DB) error {
		act, err := checkRefs(tx, clubID, in.ActivityID, in.TrainerID)
		if err != nil {
			return err
		}
		capacity := act.DefaultCapacity
		if in.Capacity != nil {
			capacity = *in.Capacity
		}
		if capacity <= 0 {
			return invalidArg("activity %d has no usable default capacity", act.ID)
		}
		out = models.Session{
			ClubID:      clubID,
			ActivityID:  in.ActivityID,
			TrainerID:   in.TrainerID,
			SessionDate: models.Day(in.Date),
			StartTime:   in.StartTime,
			EndTime:     in.EndTime,
			Capacity:    capacity,
			Status:      models.SessionScheduled,
			Notes:       in.Notes,
		}
		return tx.Create(&out).Error
	})
	return out, err
}

func (s *Service) GetSession(ctx context.Context, id uint) (models.Session, error) {
	sess, err := first[models.Session](s.db.WithContext(ctx), "session", id)
	return sess, classify("get session", err)
}

// ListSessions returns the club's sessions in [from, to] by day and start time.
func (s *Service) ListSessions(ctx context.Context, clubID uint, from, to time.Time) ([]models.Session, error) {
	from, to, err := s.checkRange(from, to)
	if err != nil {
		return nil, err
	}
	var out []models.Session
	err = s.db.WithContext(ctx).
		Where("club_id = ? AND session_date BETWEEN ? AND ?", clubID, from, to).
		Order("session_date asc, start_time asc, id asc").
		Find(&out).Error
	return out, classify("list sessions", err)
}

type SessionCancellation struct {
	Session               models.Session `json:"session"`
	ReservationsCancelled int            `json:"reservationsCancelled"`
}

// CancelSession cancels a SCHEDULED session and every live reservation on it,
// releasing their seats. The session keeps its capacity for history.
func (s *Service) CancelSession(ctx context.Context, id uint, actor string) (SessionCancellation, error) {
	var out SessionCancellation
	err := s.transaction(ctx, "cancel session", func(tx *gorm.DB) error {
		sess, err := first[models.Session](tx, "session", id)
		if err != nil {
			return err
		}
		now := s.now()
		if err := moveSessionTx(tx, &sess, lifecycle.EvCancel, map[string]any{"cancelled_at": now}); err != nil {
			return err
		}
		sess.CancelledAt = &now

		n, err := s.closeReservationsTx(tx, sess.ID, lifecycle.EvSessionCancelled, nil, actor, reasonSessionCancelled)
		if err != nil {
			return err
		}
		if err := releaseSeatsTx(tx, sess.ID, n); err != nil {
			return err
		}
		if err := tx.First(&sess, sess.ID).Error; err != nil {
			return err
		}
		if sess.BookedCount != 0 {
			log.Printf("[ledger] INVARIANT session=%d booked=%d after cancelling %d reservations",
				sess.ID, sess.BookedCount, n)
			return apperr.New(apperr.CodeInvariantViolation,
				fmt.Sprintf("session %d still holds %d seats after cancellation", sess.ID, sess.BookedCount))
		}
		out = SessionCancellation{Session: sess, ReservationsCancelled: int(n)}
		return nil
	})
	if err != nil {
		return out, err
	}
	log.Printf("[sessions] session=%d cancelled by %s, %d reservations cancelled", id, actor, out.ReservationsCancelled)
	if events.OnSessionCancelled != nil {
		events.OnSessionCancelled(out.Session, out.ReservationsCancelled)
	}
	return out, nil
}

type CloseResult struct {
	Sessions  int `json:"sessions"`
	Completed int `json:"completed"`
	NoShow    int `json:"noShow"`
	Unpaid    int `json:"unpaid"`
}

// CloseElapsedSessions completes every SCHEDULED session whose end has
// passed. PAID reservations resolve to COMPLETED (checked in) or NO_SHOW,
// unpaid ones are cancelled. No-shows and unpaid reservations release their
// seat, so a closed session's booked count is its attendance. Each session
// closes in its own transaction.
func (s *Service) CloseElapsedSessions(ctx context.Context) (CloseResult, error) {
	var res CloseResult
	now := s.now()

	var candidates []models.Session
	if err := s.db.WithContext(ctx).
		Where("status = ? AND session_date <= ?", models.SessionScheduled, s.today()).
		Order("session_date asc, end_time asc").
		Find(&candidates).Error; err != nil {
		return res, classify("close sessions", err)
	}

	for _, sess := range candidates {
		if now.Before(sess.EndsAt(s.opts.Loc)) {
			continue
		}
		var completed, noShow, unpaid int64
		err := s.transaction(ctx, "close session", func(tx *gorm.DB) error {
			if err := moveSessionTx(tx, &sess, lifecycle.EvClose, nil); err != nil {
				return err
			}
			var err error
			attended := func(q *gorm.DB) *gorm.DB { return q.Where("checked_in_at IS NOT NULL") }
			missed := func(q *gorm.DB) *gorm.DB { return q.Where("checked_in_at IS NULL") }
			if completed, err = s.closeReservationsTx(tx, sess.ID, lifecycle.EvAttended, attended, "", ""); err != nil {
				return err
			}
			if noShow, err = s.closeReservationsTx(tx, sess.ID, lifecycle.EvMissed, missed, "", ""); err != nil {
				return err
			}
			if unpaid, err = s.closeReservationsTx(tx, sess.ID, lifecycle.EvUnpaidAtClose, nil, actorSystem, reasonUnpaidAtEnd); err != nil {
				return err
			}
			return releaseSeatsTx(tx, sess.ID, noShow+unpaid)
		})
		if errors.Is(err, apperr.ErrInvalidTransition) {
			continue // closed or cancelled by someone else meanwhile
		}
		if err != nil {
			return res, err
		}
		res.Sessions++
		res.Completed += int(completed)
		res.NoShow += int(noShow)
		res.Unpaid += int(unpaid)
		if events.OnSessionClosed != nil {
			events.OnSessionClosed(sess, int(completed), int(noShow), int(unpaid))
		}
	}
	if res.Sessions > 0 {
		log.Printf("[sessions] closed %d sessions: completed=%d no_show=%d unpaid=%d",
			res.Sessions, res.Completed, res.NoShow, res.Unpaid)
	}
	return res, nil
}

// closeReservationsTx moves every reservation of the session that can take ev
// to its target status in one statement and reports how many moved.
func (s *Service) closeReservationsTx(tx *gorm.DB, sessionID uint, ev lifecycle.Event, scope func(*gorm.DB) *gorm.DB, actor, reason string) (int64, error) {
	var total int64
	for _, from := range lifecycle.ReservationSources(ev) {
		to, err := lifecycle.Reservation(from, ev)
		if err != nil {
			return 0, err
		}
		fields := map[string]any{"status": to}
		if to == models.ReservationCancelled {
			fields["cancelled_at"] = s.now()
			fields["cancel_reason"] = reason
			fields["cancelled_by"] = actor
		}
		q := tx.Model(&models.Reservation{}).Where("session_id = ? AND status = ?", sessionID, from)
		if scope != nil {
			q = scope(q)
		}
		upd := q.Updates(fields)
		if upd.Error != nil {
			return 0, upd.Error
		}
		total += upd.RowsAffected
	}
	return total, nil
}

// moveSessionTx applies ev with a compare-and-set on the session status.
func moveSessionTx(tx *gorm.DB, sess *models.Session, ev lifecycle.Event, extra map[string]any) error {
	to, err := lifecycle.Session(sess.Status, ev)
	if err != nil {
		return err
	}
	fields := map[string]any{"status": to}
	for k, v := range extra {
		fields[k] = v
	}
	upd := tx.Model(&models.Session{}).
		Where("id = ? AND status = ?", sess.ID, sess.Status).
		Updates(fields)
	if upd.Error != nil {
		return upd.Error
	}
	if upd.RowsAffected == 0 {
		var cur models.Session
		if err := tx.First(&cur, sess.ID).Error; err != nil {
			return err
		}
		if _, err := lifecycle.Session(cur.Status, ev); err != nil {
			return err
		}
		return apperr.New(apperr.CodeContention, fmt.Sprintf("session %d changed concurrently", sess.ID))
	}
	sess.Status = to
	return nil
}

// checkRange normalises and bounds a [from, to] day range.
func (s *Service) checkRange(from, to time.Time) (time.Time, time.Time, error) {
	from, to = models.Day(from), models.Day(to)
	if to.Before(from) {
		return from, to, invalidArg("to %s is before from %s", to.Format(models.DateLayout), from.Format(models.DateLayout))
	}
	if n := models.DaysBetween(from, to); n > s.opts.MaxExpansionDays {
		return from, to, apperr.New(apperr.CodeRangeTooLarge,
			fmt.Sprintf("range spans %d days, at most %d allowed", n, s.opts.MaxExpansionDays))
	}
	return from, to, nil
}

// validateWindow checks an "HH:MM"-"HH:MM" same-day window with end after start.
func validateWindow(start, end string) error {
	a, err := models.ParseClock(start)
	if err != nil {
		return invalidArg("start time: %v", err)
	}
	b, err := models.ParseClock(end)
	if err != nil {
		return invalidArg("end time: %v", err)
	}
	if b <= a {
		return invalidArg("end time %s must be after start time %s", end, start)
	}
	return nil
}

// checkRefs loads the activity (and trainer) a session or schedule points at
// and verifies both are live and belong to the club.
func checkRefs(tx *gorm.DB, clubID, activityID uint, trainerID *uint) (models.Activity, error) {
	act, err := first[models.Activity](tx, "activity", activityID)
	if err != nil {
		return act, err
	}
	if act.ClubID != clubID {
		return act, invalidArg("activity %d belongs to another club", activityID)
	}
	if !act.IsActive {
		return act, invalidArg("activity %d is inactive", activityID)
	}
	if trainerID != nil {
		tr, err := first[models.Trainer](tx, "trainer", *trainerID)
		if err != nil {
			return act, err
		}
		if tr.ClubID != clubID {
			return act, invalidArg("trainer %d belongs to another club", *trainerID)
		}
		if !tr.IsActive {
			return act, invalidArg("trainer %d is inactive", *trainerID)
		}
	}
	return act, nil
}
