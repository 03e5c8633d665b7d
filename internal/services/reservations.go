package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/lojf/gymclass/internal/apperr"
	"github.com/lojf/gymclass/internal/events"
	"github.com/lojf/gymclass/internal/lifecycle"
	"github.com/lojf/gymclass/internal/models"
)

// PayReservation records payment (ledger finalize): PENDING_PAYMENT -> PAID,
// booked count unchanged.
func (s *Service) PayReservation(ctx context.Context, id uint) (models.Reservation, error) {
	var r models.Reservation
	err := s.transaction(ctx, "pay reservation", func(tx *gorm.DB) error {
		var err error
		if r, err = first[models.Reservation](tx, "reservation", id); err != nil {
			return err
		}
		now := s.now()
		if err := moveReservationTx(tx, &r, lifecycle.EvPay, map[string]any{"paid_at": now}); err != nil {
			return err
		}
		r.PaidAt = &now
		return nil
	})
	return r, err
}

// CancelReservation cancels a PENDING_PAYMENT or PAID reservation and gives
// its seat back. A second cancel is refused with ALREADY_CANCELLED and never
// releases twice.
func (s *Service) CancelReservation(ctx context.Context, id uint, actor, reason string) (models.Reservation, error) {
	var r models.Reservation
	err := s.transaction(ctx, "cancel reservation", func(tx *gorm.DB) error {
		var err error
		if r, err = first[models.Reservation](tx, "reservation", id); err != nil {
			return err
		}
		return s.cancelReservationTx(tx, &r, lifecycle.EvCancel, actor, reason)
	})
	if err != nil {
		return r, err
	}
	if events.OnReservationCancelled != nil {
		events.OnReservationCancelled(r)
	}
	return r, nil
}

func (s *Service) cancelReservationTx(tx *gorm.DB, r *models.Reservation, ev lifecycle.Event, actor, reason string) error {
	now := s.now()
	reason = strings.TrimSpace(reason)
	fields := map[string]any{
		"cancelled_at":  now,
		"cancel_reason": reason,
		"cancelled_by":  actor,
	}
	if err := moveReservationTx(tx, r, ev, fields); err != nil {
		return err
	}
	r.CancelledAt, r.CancelReason, r.CancelledBy = &now, reason, actor
	return releaseSeatTx(tx, r.SessionID)
}

// CheckInReservation stamps checkedInAt on a PAID reservation whose session
// is still SCHEDULED. The reservation resolves to COMPLETED at close-out.
func (s *Service) CheckInReservation(ctx context.Context, id uint) (models.Reservation, error) {
	var r models.Reservation
	err := s.transaction(ctx, "check in reservation", func(tx *gorm.DB) error {
		var err error
		if r, err = first[models.Reservation](tx, "reservation", id); err != nil {
			return err
		}
		return s.checkInReservationTx(tx, &r)
	})
	return r, err
}

// CheckInByCode resolves a scanned check-in code and checks it in.
func (s *Service) CheckInByCode(ctx context.Context, code string) (models.Reservation, error) {
	r, err := s.GetReservationByCode(ctx, code)
	if err != nil {
		return r, err
	}
	return s.CheckInReservation(ctx, r.ID)
}

func (s *Service) checkInReservationTx(tx *gorm.DB, r *models.Reservation) error {
	if _, err := lifecycle.Reservation(r.Status, lifecycle.EvCheckIn); err != nil {
		return err
	}
	if r.CheckedInAt != nil {
		return apperr.New(apperr.CodeAlreadyCheckedIn,
			fmt.Sprintf("reservation %s checked in at %s", r.Code, r.CheckedInAt.Format("15:04")))
	}

	sess, err := first[models.Session](tx, "session", r.SessionID)
	if err != nil {
		return err
	}
	if sess.Status != models.SessionScheduled {
		return apperr.New(apperr.CodeNotCheckInable,
			fmt.Sprintf("session %d is %s", sess.ID, sess.Status))
	}

	now := s.now()
	upd := tx.Model(&models.Reservation{}).
		Where("id = ? AND status = ? AND checked_in_at IS NULL", r.ID, models.ReservationPaid).
		Update("checked_in_at", now)
	if upd.Error != nil {
		return upd.Error
	}
	if upd.RowsAffected == 0 {
		return apperr.New(apperr.CodeAlreadyCheckedIn,
			fmt.Sprintf("reservation %s was checked in concurrently", r.Code))
	}
	r.CheckedInAt = &now
	return nil
}

// moveReservationTx applies ev with a compare-and-set on the current status.
// If another writer moved the row first, the guard is evaluated again on the
// fresh status so the caller gets the typed reason.
func moveReservationTx(tx *gorm.DB, r *models.Reservation, ev lifecycle.Event, extra map[string]any) error {
	to, err := lifecycle.Reservation(r.Status, ev)
	if err != nil {
		return err
	}
	fields := map[string]any{"status": to}
	for k, v := range extra {
		fields[k] = v
	}
	upd := tx.Model(&models.Reservation{}).
		Where("id = ? AND status = ?", r.ID, r.Status).
		Updates(fields)
	if upd.Error != nil {
		return upd.Error
	}
	if upd.RowsAffected == 0 {
		var cur models.Reservation
		if err := tx.First(&cur, r.ID).Error; err != nil {
			return err
		}
		if _, err := lifecycle.Reservation(cur.Status, ev); err != nil {
			return err
		}
		return apperr.New(apperr.CodeContention,
			fmt.Sprintf("reservation %d changed concurrently", r.ID))
	}
	r.Status = to
	return nil
}

func (s *Service) GetReservation(ctx context.Context, id uint) (models.Reservation, error) {
	r, err := first[models.Reservation](s.db.WithContext(ctx), "reservation", id)
	return r, classify("get reservation", err)
}

func (s *Service) GetReservationByCode(ctx context.Context, code string) (models.Reservation, error) {
	code = NormalizeCode(code)
	if code == "" {
		return models.Reservation{}, invalidArg("missing check-in code")
	}
	var r models.Reservation
	err := s.db.WithContext(ctx).Where("code = ?", code).First(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return r, apperr.New(apperr.CodeNotFound, fmt.Sprintf("check-in code %s not found", code))
	}
	return r, classify("get reservation", err)
}

// ListUserReservations returns the user's reservations, newest first, with
// their sessions loaded.
func (s *Service) ListUserReservations(ctx context.Context, userID uint) ([]models.Reservation, error) {
	var out []models.Reservation
	err := s.db.WithContext(ctx).
		Preload("Session").
		Where("user_id = ?", userID).
		Order("booked_at desc, id desc").
		Find(&out).Error
	return out, classify("list reservations", err)
}
