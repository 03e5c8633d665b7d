package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/lojf/gymclass/internal/apperr"
	"github.com/lojf/gymclass/internal/db"
	"github.com/lojf/gymclass/internal/lifecycle"
	"github.com/lojf/gymclass/internal/models"
)

type CheckInInput struct {
	UserID       uint
	MembershipID uint
	ClubID       uint
	SessionID    *uint
	RecordedBy   *uint
	Notes        string
}

// CheckIn records one attendance against a usable membership. For a
// session-based plan the remaining counter drops by one, and reaching zero
// expires the membership. If the user holds a PAID reservation for the
// session it is checked in within the same transaction.
func (s *Service) CheckIn(ctx context.Context, in CheckInInput) (models.Attendance, error) {
	var out models.Attendance
	err := s.transaction(ctx, "check in", func(tx *gorm.DB) error {
		m, err := first[models.Membership](tx, "membership", in.MembershipID)
		if err != nil {
			return err
		}
		if m.UserID != in.UserID || m.ClubID != in.ClubID {
			return apperr.New(apperr.CodeMembershipInvalid,
				fmt.Sprintf("membership %d does not belong to user %d at club %d", m.ID, in.UserID, in.ClubID))
		}
		if reason := usableReason(m, s.today()); reason != "" {
			return apperr.New(apperr.CodeMembershipInvalid, reason)
		}

		out = models.Attendance{
			UserID:       in.UserID,
			MembershipID: m.ID,
			ClubID:       in.ClubID,
			SessionID:    in.SessionID,
			CheckInTime:  s.now(),
			RecordedBy:   in.RecordedBy,
			Notes:        in.Notes,
		}

		if in.SessionID != nil {
			rid, err := s.attachSessionTx(tx, in.UserID, in.ClubID, *in.SessionID)
			if err != nil {
				return err
			}
			out.ReservationID = rid
		}

		if err := tx.Create(&out).Error; err != nil {
			if db.IsUniqueViolation(err) {
				return alreadyAttended(in.UserID, *in.SessionID)
			}
			return err
		}
		return consumeSessionTx(tx, m)
	})
	return out, err
}

// attachSessionTx verifies the session and checks in the user's PAID
// reservation for it, returning that reservation's id if there is one.
func (s *Service) attachSessionTx(tx *gorm.DB, userID, clubID, sessionID uint) (*uint, error) {
	sess, err := first[models.Session](tx, "session", sessionID)
	if err != nil {
		return nil, err
	}
	if sess.ClubID != clubID {
		return nil, invalidArg("session %d belongs to another club", sessionID)
	}
	if sess.Status == models.SessionCancelled {
		return nil, apperr.New(apperr.CodeSessionUnavailable, fmt.Sprintf("session %d is cancelled", sessionID))
	}

	var n int64
	if err := tx.Model(&models.Attendance{}).
		Where("user_id = ? AND session_id = ?", userID, sessionID).
		Count(&n).Error; err != nil {
		return nil, err
	}
	if n > 0 {
		return nil, alreadyAttended(userID, sessionID)
	}

	var r models.Reservation
	err = tx.Where("user_id = ? AND session_id = ? AND status = ?", userID, sessionID, models.ReservationPaid).
		First(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if r.CheckedInAt == nil && sess.Status == models.SessionScheduled {
		if err := s.checkInReservationTx(tx, &r); err != nil {
			return nil, err
		}
	}
	return &r.ID, nil
}

// consumeSessionTx decrements a session-based membership; the last session
// expires it.
func consumeSessionTx(tx *gorm.DB, m models.Membership) error {
	if m.RemainingSessions == nil {
		return nil
	}
	upd := tx.Model(&models.Membership{}).
		Where("id = ? AND status = ? AND remaining_sessions > 0", m.ID, models.MembershipActive).
		Updates(map[string]any{
			"remaining_sessions": gorm.Expr("remaining_sessions - 1"),
			"version":            gorm.Expr("version + 1"),
		})
	if upd.Error != nil {
		return upd.Error
	}
	if upd.RowsAffected == 0 {
		return apperr.New(apperr.CodeMembershipInvalid, msgNoSessions)
	}

	var cur models.Membership
	if err := tx.Select("id", "status", "remaining_sessions", "version").First(&cur, m.ID).Error; err != nil {
		return err
	}
	if cur.RemainingSessions != nil && *cur.RemainingSessions == 0 {
		to, err := lifecycle.Membership(cur.Status, lifecycle.EvExpire)
		if err != nil {
			return err
		}
		return tx.Model(&models.Membership{}).
			Where("id = ? AND version = ?", cur.ID, cur.Version).
			Updates(map[string]any{"status": to, "version": gorm.Expr("version + 1")}).Error
	}
	return nil
}

func alreadyAttended(userID, sessionID uint) error {
	return apperr.New(apperr.CodeAlreadyCheckedIn,
		fmt.Sprintf("user %d is already checked in to session %d", userID, sessionID))
}

// ListAttendance returns the club's check-ins on club-local days [from, to].
func (s *Service) ListAttendance(ctx context.Context, clubID uint, from, to time.Time) ([]models.Attendance, error) {
	from, to, err := s.checkRange(from, to)
	if err != nil {
		return nil, err
	}
	loc := s.opts.Loc
	lo := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, loc).UTC()
	hi := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, 1).UTC()

	var out []models.Attendance
	err = s.db.WithContext(ctx).
		Where("club_id = ? AND check_in_time >= ? AND check_in_time < ?", clubID, lo, hi).
		Order("check_in_time asc, id asc").
		Find(&out).Error
	return out, classify("list attendance", err)
}

// ListSessionAttendance returns who checked in to the session, in arrival order.
func (s *Service) ListSessionAttendance(ctx context.Context, sessionID uint) ([]models.Attendance, error) {
	q := s.db.WithContext(ctx)
	if _, err := first[models.Session](q, "session", sessionID); err != nil {
		return nil, classify("session attendance", err)
	}
	out := []models.Attendance{}
	err := q.Where("session_id = ?", sessionID).
		Order("check_in_time asc, id asc").
		Find(&out).Error
	return out, classify("session attendance", err)
}
