package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"gorm.io/gorm"

	"github.com/lojf/gymclass/internal/apperr"
	"github.com/lojf/gymclass/internal/db"
	"github.com/lojf/gymclass/internal/models"
)

// BookSession admits a booking through the capacity ledger. A lock wait that
// runs out of time is retried once before CONTENTION reaches the caller;
// the retry is safe because a second live booking is refused by the
// DuplicateBooking guard.
func (s *Service) BookSession(ctx context.Context, userID, sessionID uint) (models.Reservation, error) {
	res, err := s.tryReserve(ctx, userID, sessionID)
	if errors.Is(err, apperr.ErrContention) && ctx.Err() == nil {
		log.Printf("[ledger] session=%d user=%d lock wait timed out, retrying", sessionID, userID)
		res, err = s.tryReserve(ctx, userID, sessionID)
	}
	return res, err
}

func (s *Service) tryReserve(ctx context.Context, userID, sessionID uint) (models.Reservation, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.LockTimeout)
	defer cancel()

	var out models.Reservation
	err := s.transaction(ctx, "reserve", func(tx *gorm.DB) error {
		if err := db.SetLockTimeout(tx, s.opts.LockTimeout); err != nil {
			return err
		}
		var err error
		out, err = s.TryReserveTx(tx, userID, sessionID)
		return err
	})
	return out, err
}

// TryReserveTx increments the session's booked count and creates the
// PENDING_PAYMENT reservation inside tx. The increment is a single
// conditional UPDATE, so concurrent bookers serialise on the session row
// and the count can never pass capacity. Any failure after the increment
// rolls both writes back together.
func (s *Service) TryReserveTx(tx *gorm.DB, userID, sessionID uint) (models.Reservation, error) {
	sess, err := first[models.Session](tx, "session", sessionID)
	if err != nil {
		return models.Reservation{}, err
	}
	if err := s.bookable(sess); err != nil {
		return models.Reservation{}, err
	}
	if held, err := holdsLiveReservation(tx, userID, sessionID); err != nil {
		return models.Reservation{}, err
	} else if held {
		return models.Reservation{}, duplicateBooking(userID, sessionID)
	}

	upd := tx.Model(&models.Session{}).
		Where("id = ? AND status = ? AND booked_count < capacity", sessionID, models.SessionScheduled).
		UpdateColumn("booked_count", gorm.Expr("booked_count + 1"))
	if upd.Error != nil {
		return models.Reservation{}, upd.Error
	}
	if upd.RowsAffected == 0 {
		return models.Reservation{}, s.rejectReason(tx, userID, sessionID)
	}

	r := models.Reservation{
		UserID:    userID,
		SessionID: sessionID,
		Status:    models.ReservationPendingPayment,
		Code:      newCheckInCode(),
		BookedAt:  s.now(),
	}
	if err := tx.Create(&r).Error; err != nil {
		if db.IsUniqueViolation(err) {
			return models.Reservation{}, duplicateBooking(userID, sessionID)
		}
		return models.Reservation{}, err
	}

	var after models.Session
	if err := tx.Select("id", "capacity", "booked_count").First(&after, sessionID).Error; err != nil {
		return models.Reservation{}, err
	}
	if after.BookedCount > after.Capacity {
		log.Printf("[ledger] INVARIANT session=%d booked=%d capacity=%d after reserve, aborting",
			sessionID, after.BookedCount, after.Capacity)
		return models.Reservation{}, apperr.New(apperr.CodeInvariantViolation,
			fmt.Sprintf("session %d would exceed capacity", sessionID))
	}
	return r, nil
}

// bookable rejects sessions that are not open for booking.
func (s *Service) bookable(sess models.Session) error {
	if sess.Status != models.SessionScheduled {
		return apperr.New(apperr.CodeSessionUnavailable,
			fmt.Sprintf("session %d is %s", sess.ID, sess.Status))
	}
	if !s.now().Before(sess.StartsAt(s.opts.Loc)) {
		return apperr.New(apperr.CodeSessionUnavailable,
			fmt.Sprintf("session %d has already started", sess.ID))
	}
	return nil
}

// rejectReason explains a refused conditional increment from the row as it
// stands now.
func (s *Service) rejectReason(tx *gorm.DB, userID, sessionID uint) error {
	sess, err := first[models.Session](tx, "session", sessionID)
	if err != nil {
		return err
	}
	if sess.Status != models.SessionScheduled {
		return apperr.New(apperr.CodeSessionUnavailable,
			fmt.Sprintf("session %d is %s", sess.ID, sess.Status))
	}
	if held, err := holdsLiveReservation(tx, userID, sessionID); err != nil {
		return err
	} else if held {
		return duplicateBooking(userID, sessionID)
	}
	return apperr.New(apperr.CodeCapacityExceeded,
		fmt.Sprintf("session %d is full (%d/%d)", sess.ID, sess.BookedCount, sess.Capacity))
}

func holdsLiveReservation(tx *gorm.DB, userID, sessionID uint) (bool, error) {
	var n int64
	err := tx.Model(&models.Reservation{}).
		Where("user_id = ? AND session_id = ? AND status <> ?", userID, sessionID, models.ReservationCancelled).
		Count(&n).Error
	return n > 0, err
}

func duplicateBooking(userID, sessionID uint) error {
	return apperr.New(apperr.CodeDuplicateBooking,
		fmt.Sprintf("user %d already holds a reservation for session %d", userID, sessionID))
}

// releaseSeatTx gives one seat back. Callers only invoke it after their own
// conditional status write succeeded, so a reservation releases at most once.
func releaseSeatTx(tx *gorm.DB, sessionID uint) error {
	return tx.Model(&models.Session{}).
		Where("id = ? AND booked_count > 0", sessionID).
		UpdateColumn("booked_count", gorm.Expr("booked_count - 1")).Error
}

// releaseSeatsTx gives n seats back without going below zero.
func releaseSeatsTx(tx *gorm.DB, sessionID uint, n int64) error {
	if n <= 0 {
		return nil
	}
	return tx.Model(&models.Session{}).
		Where("id = ?", sessionID).
		UpdateColumn("booked_count",
			gorm.Expr("CASE WHEN booked_count > ? THEN booked_count - ? ELSE 0 END", n, n)).Error
}
