package services

import (
	"context"
	"errors"
	"testing"

	"github.com/lojf/gymclass/internal/apperr"
	"github.com/lojf/gymclass/internal/models"
)

func TestCreateScheduleValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	base := ScheduleInput{
		ActivityID: f.act.ID,
		StartTime:  "07:00",
		EndTime:    "08:00",
		DaysOfWeek: []models.Weekday{models.Monday},
		ValidFrom:  day(t, "2024-01-01"),
	}

	cases := []struct {
		name   string
		mutate func(*ScheduleInput)
	}{
		{"no days", func(in *ScheduleInput) { in.DaysOfWeek = nil }},
		{"unknown day", func(in *ScheduleInput) { in.DaysOfWeek = []models.Weekday{"FUNDAY"} }},
		{"empty window", func(in *ScheduleInput) { in.EndTime = "07:00" }},
		{"until before from", func(in *ScheduleInput) { u := day(t, "2023-12-01"); in.ValidUntil = &u }},
		{"negative capacity", func(in *ScheduleInput) { in.Capacity = intp(-1) }},
	}
	for _, c := range cases {
		in := base
		c.mutate(&in)
		if _, err := f.svc.CreateSchedule(ctx, f.club.ID, in); !errors.Is(err, apperr.ErrInvalidArgument) {
			t.Errorf("%s: want INVALID_ARGUMENT, got %v", c.name, err)
		}
	}

	in := base
	in.DaysOfWeek = []models.Weekday{models.Monday, models.Monday, models.Friday}
	sc, err := f.svc.CreateSchedule(ctx, f.club.ID, in)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(sc.DaysOfWeek) != 2 {
		t.Errorf("duplicate weekdays must collapse, got %v", sc.DaysOfWeek)
	}
	if !sc.IsActive || sc.Version != 1 {
		t.Errorf("new schedule: want active v1, got %v v%d", sc.IsActive, sc.Version)
	}

	got, err := f.svc.GetSchedule(ctx, sc.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !sameDays(got.DaysOfWeek, in.DaysOfWeek[1:]) {
		t.Errorf("stored days: got %v", got.DaysOfWeek)
	}
}

func TestUpdateScheduleBeforeExpansion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sc := f.schedule(t, []models.Weekday{models.Monday}, "2024-01-01", nil)

	in := ScheduleInput{
		ActivityID: f.act.ID,
		StartTime:  "09:00",
		EndTime:    "10:00",
		DaysOfWeek: []models.Weekday{models.Tuesday},
		ValidFrom:  day(t, "2024-01-01"),
	}
	got, err := f.svc.UpdateSchedule(ctx, sc.ID, sc.Version, in)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Version != 2 || got.StartTime != "09:00" || got.TrainerID != nil {
		t.Errorf("updated: got v%d %s trainer=%v", got.Version, got.StartTime, got.TrainerID)
	}

	if _, err := f.svc.UpdateSchedule(ctx, sc.ID, 1, in); !errors.Is(err, apperr.ErrContention) {
		t.Errorf("stale version: want CONTENTION, got %v", err)
	}
}

func TestUpdateScheduleLockedAfterExpansion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sc := f.schedule(t, []models.Weekday{models.Monday}, "2024-01-01", intp(8))
	if _, err := f.svc.ExpandSchedules(ctx, f.club.ID, day(t, "2024-01-01"), day(t, "2024-01-07")); err != nil {
		t.Fatalf("expand: %v", err)
	}

	in := ScheduleInput{
		ActivityID: sc.ActivityID,
		TrainerID:  sc.TrainerID,
		StartTime:  sc.StartTime,
		EndTime:    sc.EndTime,
		DaysOfWeek: []models.Weekday{models.Monday},
		ValidFrom:  sc.ValidFrom,
		Capacity:   intp(12),
		Notes:      "bigger room",
	}
	moved := in
	moved.StartTime = "10:00"
	moved.EndTime = "11:00"
	if _, err := f.svc.UpdateSchedule(ctx, sc.ID, sc.Version, moved); !errors.Is(err, apperr.ErrScheduleLocked) {
		t.Errorf("time change: want SCHEDULE_LOCKED, got %v", err)
	}

	until := day(t, "2024-03-31")
	in.ValidUntil = &until
	got, err := f.svc.UpdateSchedule(ctx, sc.ID, sc.Version, in)
	if err != nil {
		t.Fatalf("trailing update: %v", err)
	}
	if got.Capacity == nil || *got.Capacity != 12 || got.ValidUntil == nil {
		t.Errorf("trailing fields not written: %+v", got)
	}

	// Already generated sessions keep their capacity.
	var s models.Session
	f.db.Where("schedule_id = ?", sc.ID).First(&s)
	if s.Capacity != 8 {
		t.Errorf("generated session capacity: want 8, got %d", s.Capacity)
	}
}

func TestDeactivateScheduleIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sc := f.schedule(t, []models.Weekday{models.Monday}, "2024-01-01", nil)

	off, err := f.svc.DeactivateSchedule(ctx, sc.ID)
	if err != nil || off.IsActive {
		t.Fatalf("deactivate: %v active=%v", err, off.IsActive)
	}
	again, err := f.svc.DeactivateSchedule(ctx, sc.ID)
	if err != nil {
		t.Fatalf("deactivate again: %v", err)
	}
	if again.Version != off.Version {
		t.Errorf("second deactivate must not bump the version: %d -> %d", off.Version, again.Version)
	}
	if _, err := f.svc.DeactivateSchedule(ctx, 999); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing: want NOT_FOUND, got %v", err)
	}
}
