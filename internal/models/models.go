package models

import (
	"time"

	"gorm.io/gorm"
)

type Club struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Name string `gorm:"not null" json:"name"`
}

type Activity struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	ClubID          uint   `gorm:"index;not null" json:"clubId"`
	Name            string `gorm:"not null" json:"name"`
	DefaultCapacity int    `gorm:"not null;default:20" json:"defaultCapacity"`
	DurationMinutes int    `gorm:"not null;default:60" json:"durationMinutes"`
	IsActive        bool   `gorm:"not null" json:"isActive"`
}

type Trainer struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	ClubID   uint   `gorm:"index;not null" json:"clubId"`
	Name     string `gorm:"not null" json:"name"`
	IsActive bool   `gorm:"not null" json:"isActive"`
}

type Session struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	ClubID     uint  `gorm:"index;not null" json:"clubId"`
	ScheduleID *uint `json:"scheduleId"` // nil for ad hoc sessions
	ActivityID uint  `gorm:"not null" json:"activityId"`
	TrainerID  *uint `json:"trainerId"`

	SessionDate time.Time `gorm:"not null" json:"sessionDate"` // calendar day, midnight UTC
	StartTime   string    `gorm:"size:5;not null" json:"startTime"`
	EndTime     string    `gorm:"size:5;not null" json:"endTime"`

	Capacity    int           `gorm:"not null" json:"capacity"`
	BookedCount int           `gorm:"not null;default:0" json:"bookedCount"`
	Status      SessionStatus `gorm:"size:16;not null;default:SCHEDULED" json:"status"`
	Notes       string        `json:"notes"`

	CancelledAt *time.Time `json:"cancelledAt"`
}

func (Session) TableName() string { return "class_sessions" }

// StartsAt returns the session start instant in the club's timezone.
func (s Session) StartsAt(loc *time.Location) time.Time {
	return At(s.SessionDate, s.StartTime, loc)
}

// EndsAt returns the session end instant in the club's timezone.
func (s Session) EndsAt(loc *time.Location) time.Time {
	return At(s.SessionDate, s.EndTime, loc)
}

// Available is the number of free seats.
func (s Session) Available() int {
	if n := s.Capacity - s.BookedCount; n > 0 {
		return n
	}
	return 0
}

type Reservation struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	UserID    uint              `gorm:"index;not null" json:"userId"`
	SessionID uint              `gorm:"index;not null" json:"sessionId"`
	Session   *Session          `json:"session,omitempty"`
	Status    ReservationStatus `gorm:"size:16;not null" json:"status"`
	Code      string            `gorm:"uniqueIndex;not null" json:"code"` // e.g., RSV-1A2B3C4D

	BookedAt     time.Time  `gorm:"not null" json:"bookedAt"`
	PaidAt       *time.Time `json:"paidAt"`
	CheckedInAt  *time.Time `json:"checkedInAt"`
	CancelledAt  *time.Time `json:"cancelledAt"`
	CancelReason string     `json:"cancelReason,omitempty"`
	CancelledBy  string     `json:"cancelledBy,omitempty"`
}

type MembershipPlan struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	ClubID       uint   `gorm:"index;not null" json:"clubId"`
	Name         string `gorm:"not null" json:"name"`
	DurationDays *int   `json:"durationDays"` // time-based when set
	SessionCount *int   `json:"sessionCount"` // session-based when set
	IsActive     bool   `gorm:"not null" json:"isActive"`
}

type Membership struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	UserID uint             `gorm:"index;not null" json:"userId"`
	PlanID uint             `gorm:"not null" json:"planId"`
	Plan   *MembershipPlan  `json:"plan,omitempty"`
	ClubID uint             `gorm:"index;not null" json:"clubId"`
	Status MembershipStatus `gorm:"size:16;not null" json:"status"`

	StartDate         time.Time  `gorm:"not null" json:"startDate"`
	EndDate           *time.Time `json:"endDate"`
	RemainingSessions *int       `json:"remainingSessions"`

	Version int `gorm:"not null;default:1" json:"version"`
}

// Attendance is append-only.
type Attendance struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`

	UserID        uint  `gorm:"index;not null" json:"userId"`
	MembershipID  uint  `gorm:"index;not null" json:"membershipId"`
	ClubID        uint  `gorm:"index;not null" json:"clubId"`
	SessionID     *uint `json:"sessionId"`
	ReservationID *uint `json:"reservationId"`

	CheckInTime time.Time `gorm:"not null" json:"checkInTime"`
	RecordedBy  *uint     `json:"recordedBy"`
	Notes       string    `json:"notes,omitempty"`
}
