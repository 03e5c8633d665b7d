package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lojf/gymclass/internal/apperr"
	"github.com/lojf/gymclass/internal/models"
)

const expandBatchSize = 200

type ExpansionWarning struct {
	ScheduleID uint     `json:"scheduleId"`
	Reason     string   `json:"reason"`
	Dates      []string `json:"dates"` // skipped calendar days
}

type ExpansionResult struct {
	SessionsCreated int                `json:"sessionsCreated"`
	Warnings        []ExpansionWarning `json:"warnings"`
}

// ExpandSchedules materialises sessions for every active schedule of the club
// over [start, end] inclusive. Existing (schedule, day) sessions are left
// alone by the storage-level unique key, so overlapping runs only add the
// missing days. A schedule whose activity or trainer is gone is skipped and
// reported; it never aborts the batch.
func (s *Service) ExpandSchedules(ctx context.Context, clubID uint, start, end time.Time) (ExpansionResult, error) {
	res := ExpansionResult{Warnings: []ExpansionWarning{}}

	start, end = models.Day(start), models.Day(end)
	if end.Before(start) {
		return res, invalidArg("end date %s is before start date %s",
			end.Format(models.DateLayout), start.Format(models.DateLayout))
	}
	if n := models.DaysBetween(start, end); n > s.opts.MaxExpansionDays {
		return res, apperr.New(apperr.CodeRangeTooLarge,
			fmt.Sprintf("range spans %d days, at most %d allowed", n, s.opts.MaxExpansionDays))
	}

	gdb := s.db.WithContext(ctx)

	var schedules []models.Schedule
	if err := gdb.
		Where("club_id = ? AND is_active = ?", clubID, true).
		Where("valid_from <= ?", end).
		Where("valid_until IS NULL OR valid_until >= ?", start).
		Order("id").
		Find(&schedules).Error; err != nil {
		return res, classify("expand", err)
	}
	if len(schedules) == 0 {
		return res, nil
	}

	activities, trainers, err := s.loadRefs(gdb, schedules)
	if err != nil {
		return res, classify("expand", err)
	}

	var rows []models.Session
	for _, sc := range schedules {
		days := scheduleDays(sc, start, end)
		if len(days) == 0 {
			continue
		}

		capacity, reason := resolveSchedule(sc, clubID, activities, trainers)
		if reason != "" {
			w := ExpansionWarning{ScheduleID: sc.ID, Reason: reason}
			for _, d := range days {
				w.Dates = append(w.Dates, d.Format(models.DateLayout))
			}
			res.Warnings = append(res.Warnings, w)
			continue
		}

		for _, d := range days {
			sid := sc.ID
			rows = append(rows, models.Session{
				ClubID:      clubID,
				ScheduleID:  &sid,
				ActivityID:  sc.ActivityID,
				TrainerID:   sc.TrainerID,
				SessionDate: d,
				StartTime:   sc.StartTime,
				EndTime:     sc.EndTime,
				Capacity:    capacity,
				Status:      models.SessionScheduled,
			})
		}
	}

	if len(rows) > 0 {
		ins := gdb.Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(&rows, expandBatchSize)
		if ins.Error != nil {
			return res, classify("expand", ins.Error)
		}
		res.SessionsCreated = int(ins.RowsAffected)
	}

	log.Printf("[expand] club=%d range=%s..%s candidates=%d created=%d warnings=%d",
		clubID, start.Format(models.DateLayout), end.Format(models.DateLayout),
		len(rows), res.SessionsCreated, len(res.Warnings))
	return res, nil
}

// scheduleDays lists the days in [start, end] the schedule runs on.
func scheduleDays(sc models.Schedule, start, end time.Time) []time.Time {
	from, to := start, end
	if vf := models.Day(sc.ValidFrom); vf.After(from) {
		from = vf
	}
	if sc.ValidUntil != nil {
		if vu := models.Day(*sc.ValidUntil); vu.Before(to) {
			to = vu
		}
	}
	var out []time.Time
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		if sc.RunsOn(d) {
			out = append(out, d)
		}
	}
	return out
}

// resolveSchedule returns the session capacity, or a reason the schedule
// cannot be materialised right now.
func resolveSchedule(sc models.Schedule, clubID uint, activities map[uint]models.Activity, trainers map[uint]models.Trainer) (int, string) {
	act, ok := activities[sc.ActivityID]
	switch {
	case !ok || act.DeletedAt.Valid:
		return 0, fmt.Sprintf("activity %d no longer exists", sc.ActivityID)
	case !act.IsActive:
		return 0, fmt.Sprintf("activity %d is inactive", sc.ActivityID)
	case act.ClubID != clubID:
		return 0, fmt.Sprintf("activity %d belongs to another club", sc.ActivityID)
	}

	if sc.TrainerID != nil {
		tr, ok := trainers[*sc.TrainerID]
		switch {
		case !ok || tr.DeletedAt.Valid:
			return 0, fmt.Sprintf("trainer %d no longer exists", *sc.TrainerID)
		case !tr.IsActive:
			return 0, fmt.Sprintf("trainer %d is inactive", *sc.TrainerID)
		}
	}

	capacity := act.DefaultCapacity
	if sc.Capacity != nil {
		capacity = *sc.Capacity
	}
	if capacity <= 0 {
		return 0, fmt.Sprintf("capacity %d is not positive", capacity)
	}
	return capacity, ""
}

// loadRefs fetches referenced activities and trainers, soft-deleted rows included.
func (s *Service) loadRefs(gdb *gorm.DB, schedules []models.Schedule) (map[uint]models.Activity, map[uint]models.Trainer, error) {
	var actIDs, trIDs []uint
	for _, sc := range schedules {
		actIDs = append(actIDs, sc.ActivityID)
		if sc.TrainerID != nil {
			trIDs = append(trIDs, *sc.TrainerID)
		}
	}

	activities := make(map[uint]models.Activity)
	var acts []models.Activity
	if err := gdb.Unscoped().Where("id IN ?", actIDs).Find(&acts).Error; err != nil {
		return nil, nil, err
	}
	for _, a := range acts {
		activities[a.ID] = a
	}

	trainers := make(map[uint]models.Trainer)
	if len(trIDs) > 0 {
		var trs []models.Trainer
		if err := gdb.Unscoped().Where("id IN ?", trIDs).Find(&trs).Error; err != nil {
			return nil, nil, err
		}
		for _, t := range trs {
			trainers[t.ID] = t
		}
	}
	return activities, trainers, nil
}
