package models

import (
	"time"

	"gorm.io/datatypes"
)

type Weekday string

const (
	Monday    Weekday = "MONDAY"
	Tuesday   Weekday = "TUESDAY"
	Wednesday Weekday = "WEDNESDAY"
	Thursday  Weekday = "THURSDAY"
	Friday    Weekday = "FRIDAY"
	Saturday  Weekday = "SATURDAY"
	Sunday    Weekday = "SUNDAY"
)

var weekdays = map[time.Weekday]Weekday{
	time.Monday:    Monday,
	time.Tuesday:   Tuesday,
	time.Wednesday: Wednesday,
	time.Thursday:  Thursday,
	time.Friday:    Friday,
	time.Saturday:  Saturday,
	time.Sunday:    Sunday,
}

// WeekdayOf maps a Go weekday to the stored enum.
func WeekdayOf(d time.Weekday) Weekday {
	return weekdays[d]
}

func (w Weekday) Valid() bool {
	for _, v := range weekdays {
		if v == w {
			return true
		}
	}
	return false
}

type Schedule struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	ClubID     uint  `gorm:"index;not null" json:"clubId"`
	ActivityID uint  `gorm:"not null" json:"activityId"`
	TrainerID  *uint `json:"trainerId"`

	StartTime  string                       `gorm:"size:5;not null" json:"startTime"` // "15:04"
	EndTime    string                       `gorm:"size:5;not null" json:"endTime"`
	DaysOfWeek datatypes.JSONSlice[Weekday] `gorm:"not null" json:"daysOfWeek"`

	ValidFrom  time.Time  `gorm:"not null" json:"validFrom"` // calendar day, midnight UTC
	ValidUntil *time.Time `json:"validUntil"`

	Capacity *int   `json:"capacity"` // overrides Activity.DefaultCapacity
	Notes    string `json:"notes"`
	IsActive bool   `gorm:"not null" json:"isActive"`

	Version int `gorm:"not null;default:1" json:"version"`
}

// RunsOn reports whether the schedule covers the given calendar day.
func (s Schedule) RunsOn(day time.Time) bool {
	if !s.IsActive {
		return false
	}
	if day.Before(s.ValidFrom) {
		return false
	}
	if s.ValidUntil != nil && day.After(*s.ValidUntil) {
		return false
	}
	wd := WeekdayOf(day.Weekday())
	for _, d := range s.DaysOfWeek {
		if d == wd {
			return true
		}
	}
	return false
}
