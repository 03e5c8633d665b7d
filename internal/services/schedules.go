package services

import (
	"context"
	"fmt"
	"slices"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/lojf/gymclass/internal/apperr"
	"github.com/lojf/gymclass/internal/models"
)

type ScheduleInput struct {
	ActivityID uint
	TrainerID  *uint
	StartTime  string
	EndTime    string
	DaysOfWeek []models.Weekday
	ValidFrom  time.Time
	ValidUntil *time.Time
	Capacity   *int
	Notes      string
}

func (in *ScheduleInput) normalize() error {
	if err := validateWindow(in.StartTime, in.EndTime); err != nil {
		return err
	}
	if len(in.DaysOfWeek) == 0 {
		return invalidArg("at least one weekday is required")
	}
	seen := make(map[models.Weekday]bool, len(in.DaysOfWeek))
	days := in.DaysOfWeek[:0:0]
	for _, d := range in.DaysOfWeek {
		if !d.Valid() {
			return invalidArg("unknown weekday %q", d)
		}
		if !seen[d] {
			seen[d] = true
			days = append(days, d)
		}
	}
	in.DaysOfWeek = days

	in.ValidFrom = models.Day(in.ValidFrom)
	if in.ValidUntil != nil {
		vu := models.Day(*in.ValidUntil)
		if vu.Before(in.ValidFrom) {
			return invalidArg("validUntil %s is before validFrom %s",
				vu.Format(models.DateLayout), in.ValidFrom.Format(models.DateLayout))
		}
		in.ValidUntil = &vu
	}
	if in.Capacity != nil && *in.Capacity <= 0 {
		return invalidArg("capacity must be positive, got %d", *in.Capacity)
	}
	return nil
}

func (s *Service) CreateSchedule(ctx context.Context, clubID uint, in ScheduleInput) (models.Schedule, error) {
	if err := in.normalize(); err != nil {
		return models.Schedule{}, err
	}
	var out models.Schedule
	err := s.transaction(ctx, "create schedule", func(tx *gorm.DB) error {
		if _, err := checkRefs(tx, clubID, in.ActivityID, in.TrainerID); err != nil {
			return err
		}
		out = models.Schedule{
			ClubID:     clubID,
			ActivityID: in.ActivityID,
			TrainerID:  in.TrainerID,
			StartTime:  in.StartTime,
			EndTime:    in.EndTime,
			DaysOfWeek: in.DaysOfWeek,
			ValidFrom:  in.ValidFrom,
			ValidUntil: in.ValidUntil,
			Capacity:   in.Capacity,
			Notes:      in.Notes,
			IsActive:   true,
			Version:    1,
		}
		return tx.Create(&out).Error
	})
	return out, err
}

func (s *Service) GetSchedule(ctx context.Context, id uint) (models.Schedule, error) {
	sc, err := first[models.Schedule](s.db.WithContext(ctx), "schedule", id)
	return sc, classify("get schedule", err)
}

// UpdateSchedule rewrites a schedule under optimistic versioning. Once
// sessions have been generated from it only validUntil, capacity and notes
// may change; anything else is refused with SCHEDULE_LOCKED.
func (s *Service) UpdateSchedule(ctx context.Context, id uint, version int, in ScheduleInput) (models.Schedule, error) {
	if err := in.normalize(); err != nil {
		return models.Schedule{}, err
	}
	var out models.Schedule
	err := s.transaction(ctx, "update schedule", func(tx *gorm.DB) error {
		cur, err := first[models.Schedule](tx, "schedule", id)
		if err != nil {
			return err
		}
		if cur.Version != version {
			return staleVersion("schedule", id, version, cur.Version)
		}

		var generated int64
		if err := tx.Model(&models.Session{}).Where("schedule_id = ?", id).Count(&generated).Error; err != nil {
			return err
		}
		if generated > 0 && !onlyTrailingChanges(cur, in) {
			return apperr.New(apperr.CodeScheduleLocked, fmt.Sprintf(
				"schedule %d has %d generated sessions; only validUntil, capacity and notes can change", id, generated))
		}
		if _, err := checkRefs(tx, cur.ClubID, in.ActivityID, in.TrainerID); err != nil {
			return err
		}

		fields := map[string]any{
			"activity_id":  in.ActivityID,
			"trainer_id":   in.TrainerID,
			"start_time":   in.StartTime,
			"end_time":     in.EndTime,
			"days_of_week": datatypes.JSONSlice[models.Weekday](in.DaysOfWeek),
			"valid_from":   in.ValidFrom,
			"valid_until":  in.ValidUntil,
			"capacity":     in.Capacity,
			"notes":        in.Notes,
			"version":      gorm.Expr("version + 1"),
		}
		if err := updateVersioned(tx, &models.Schedule{}, id, version, fields, "schedule"); err != nil {
			return err
		}
		return tx.First(&out, id).Error
	})
	return out, err
}

// DeactivateSchedule stops future expansion. Generated sessions stay as they are.
func (s *Service) DeactivateSchedule(ctx context.Context, id uint) (models.Schedule, error) {
	var out models.Schedule
	err := s.transaction(ctx, "deactivate schedule", func(tx *gorm.DB) error {
		cur, err := first[models.Schedule](tx, "schedule", id)
		if err != nil {
			return err
		}
		if !cur.IsActive {
			out = cur
			return nil
		}
		fields := map[string]any{"is_active": false, "version": gorm.Expr("version + 1")}
		if err := updateVersioned(tx, &models.Schedule{}, id, cur.Version, fields, "schedule"); err != nil {
			return err
		}
		return tx.First(&out, id).Error
	})
	return out, err
}

func onlyTrailingChanges(cur models.Schedule, in ScheduleInput) bool {
	return cur.ActivityID == in.ActivityID &&
		equalPtr(cur.TrainerID, in.TrainerID) &&
		cur.StartTime == in.StartTime &&
		cur.EndTime == in.EndTime &&
		sameDays(cur.DaysOfWeek, in.DaysOfWeek) &&
		models.Day(cur.ValidFrom).Equal(in.ValidFrom)
}

func sameDays(a, b []models.Weekday) bool {
	if len(a) != len(b) {
		return false
	}
	for _, d := range a {
		if !slices.Contains(b, d) {
			return false
		}
	}
	return true
}

func equalPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// updateVersioned writes fields only if the row still carries version.
func updateVersioned(tx *gorm.DB, model any, id uint, version int, fields map[string]any, what string) error {
	upd := tx.Model(model).Where("id = ? AND version = ?", id, version).Updates(fields)
	if upd.Error != nil {
		return upd.Error
	}
	if upd.RowsAffected == 0 {
		return apperr.New(apperr.CodeContention, fmt.Sprintf("%s %d was modified concurrently", what, id))
	}
	return nil
}

func staleVersion(what string, id uint, got, want int) error {
	return apperr.New(apperr.CodeContention,
		fmt.Sprintf("%s %d is at version %d, request was based on %d", what, id, want, got))
}
