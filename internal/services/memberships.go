package services

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/lojf/gymclass/internal/apperr"
	"github.com/lojf/gymclass/internal/lifecycle"
	"github.com/lojf/gymclass/internal/models"
)

const (
	msgValid        = "membership is valid"
	msgNoMembership = "no active membership"
	msgExpired      = "membership expired"
	msgNoSessions   = "no sessions left"
	msgNotStarted   = "membership has not started yet"
)

// Validation is the answer to "may this user use the club today".
type Validation struct {
	Valid             bool       `json:"valid"`
	Message           string     `json:"message"`
	MembershipID      *uint      `json:"membershipId,omitempty"`
	EndDate           *time.Time `json:"endDate,omitempty"`
	RemainingSessions *int       `json:"remainingSessions,omitempty"`
}

// ValidateMembership checks the user's ACTIVE memberships at the club. Any
// usable one makes the user valid; the one with the latest end date (open
// ended counts as latest) is reported.
func (s *Service) ValidateMembership(ctx context.Context, userID, clubID uint) (Validation, error) {
	var ms []models.Membership
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND club_id = ? AND status = ?", userID, clubID, models.MembershipActive).
		Find(&ms).Error; err != nil {
		return Validation{}, classify("validate membership", err)
	}
	return pickMembership(ms, s.today()), nil
}

func pickMembership(ms []models.Membership, today time.Time) Validation {
	if len(ms) == 0 {
		return Validation{Message: msgNoMembership}
	}
	sort.SliceStable(ms, func(i, j int) bool { return laterEnd(ms[i].EndDate, ms[j].EndDate) })

	for _, m := range ms {
		if usableReason(m, today) == "" {
			id := m.ID
			return Validation{
				Valid:             true,
				Message:           msgValid,
				MembershipID:      &id,
				EndDate:           m.EndDate,
				RemainingSessions: m.RemainingSessions,
			}
		}
	}
	// Nothing usable: explain the most generous one.
	return Validation{Message: usableReason(ms[0], today)}
}

// usableReason returns "" for a usable membership, else why it is not.
func usableReason(m models.Membership, today time.Time) string {
	switch {
	case m.Status != models.MembershipActive:
		return msgNoMembership
	case today.Before(models.Day(m.StartDate)):
		return msgNotStarted
	case m.EndDate != nil && today.After(models.Day(*m.EndDate)):
		return msgExpired
	case m.RemainingSessions != nil && *m.RemainingSessions <= 0:
		return msgNoSessions
	}
	return ""
}

func laterEnd(a, b *time.Time) bool {
	switch {
	case a == nil:
		return b != nil
	case b == nil:
		return false
	default:
		return a.After(*b)
	}
}

type MembershipRequest struct {
	UserID    uint
	PlanID    uint
	ClubID    uint
	StartDate *time.Time // defaults to today
}

// RequestMembership records a purchase request as PENDING.
func (s *Service) RequestMembership(ctx context.Context, req MembershipRequest) (models.Membership, error) {
	var out models.Membership
	err := s.transaction(ctx, "request membership", func(tx *gorm.DB) error {
		plan, err := first[models.MembershipPlan](tx, "membership plan", req.PlanID)
		if err != nil {
			return err
		}
		if plan.ClubID != req.ClubID {
			return invalidArg("plan %d belongs to another club", plan.ID)
		}
		if !plan.IsActive {
			return invalidArg("plan %d is not offered anymore", plan.ID)
		}
		start := s.today()
		if req.StartDate != nil && models.Day(*req.StartDate).After(start) {
			start = models.Day(*req.StartDate)
		}
		out = models.Membership{
			UserID:    req.UserID,
			PlanID:    plan.ID,
			ClubID:    req.ClubID,
			Status:    models.MembershipPending,
			StartDate: start,
			Version:   1,
		}
		return tx.Create(&out).Error
	})
	return out, err
}

func (s *Service) GetMembership(ctx context.Context, id uint) (models.Membership, error) {
	m, err := first[models.Membership](s.db.WithContext(ctx), "membership", id)
	return m, classify("get membership", err)
}

// ListClubMemberships returns the club's memberships in request order,
// optionally only those in one status. PENDING gives the approval queue.
func (s *Service) ListClubMemberships(ctx context.Context, clubID uint, status models.MembershipStatus) ([]models.Membership, error) {
	q := s.db.WithContext(ctx).Preload("Plan").Where("club_id = ?", clubID)
	if status != "" {
		if !status.Valid() {
			return nil, invalidArg("unknown membership status %q", status)
		}
		q = q.Where("status = ?", status)
	}
	out := []models.Membership{}
	err := q.Order("created_at asc, id asc").Find(&out).Error
	return out, classify("list memberships", err)
}

// ListUserMemberships returns every membership the user holds at any club,
// latest start first.
func (s *Service) ListUserMemberships(ctx context.Context, userID uint) ([]models.Membership, error) {
	out := []models.Membership{}
	err := s.db.WithContext(ctx).
		Preload("Plan").
		Where("user_id = ?", userID).
		Order("start_date desc, id desc").
		Find(&out).Error
	return out, classify("list memberships", err)
}

// ApproveMembership activates a PENDING membership after staff confirm
// payment. The term starts today (or the requested later start) and the
// plan fixes the end date and session allowance.
func (s *Service) ApproveMembership(ctx context.Context, id uint, version int) (models.Membership, error) {
	return s.changeMembership(ctx, "approve membership", id, version, func(tx *gorm.DB, m *models.Membership) (lifecycle.Event, map[string]any, error) {
		plan, err := first[models.MembershipPlan](tx, "membership plan", m.PlanID)
		if err != nil {
			return "", nil, err
		}
		start := models.Day(m.StartDate)
		if today := s.today(); start.Before(today) {
			start = today
		}
		fields := map[string]any{"start_date": start}
		if m.EndDate == nil && plan.DurationDays != nil && *plan.DurationDays > 0 {
			fields["end_date"] = start.AddDate(0, 0, *plan.DurationDays-1)
		}
		if plan.SessionCount != nil {
			fields["remaining_sessions"] = *plan.SessionCount
		}
		return lifecycle.EvApprove, fields, nil
	})
}

func (s *Service) SuspendMembership(ctx context.Context, id uint, version int) (models.Membership, error) {
	return s.changeMembership(ctx, "suspend membership", id, version, func(*gorm.DB, *models.Membership) (lifecycle.Event, map[string]any, error) {
		return lifecycle.EvSuspend, nil, nil
	})
}

// ResumeMembership re-activates a SUSPENDED membership. The remaining session
// counter and attendance history are untouched; a membership whose end date
// passed while suspended resumes straight into EXPIRED.
func (s *Service) ResumeMembership(ctx context.Context, id uint, version int) (models.Membership, error) {
	return s.changeMembership(ctx, "resume membership", id, version, func(_ *gorm.DB, m *models.Membership) (lifecycle.Event, map[string]any, error) {
		if m.Status == models.MembershipSuspended && m.EndDate != nil && s.today().After(models.Day(*m.EndDate)) {
			return lifecycle.EvExpire, nil, nil
		}
		return lifecycle.EvResume, nil, nil
	})
}

func (s *Service) CancelMembership(ctx context.Context, id uint, version int) (models.Membership, error) {
	return s.changeMembership(ctx, "cancel membership", id, version, func(*gorm.DB, *models.Membership) (lifecycle.Event, map[string]any, error) {
		return lifecycle.EvCancel, nil, nil
	})
}

// ExpireMemberships moves ACTIVE memberships past their end date, or with no
// sessions left, to EXPIRED.
func (s *Service) ExpireMemberships(ctx context.Context) (int64, error) {
	upd := s.db.WithContext(ctx).Model(&models.Membership{}).
		Where("status = ?", models.MembershipActive).
		Where("(end_date IS NOT NULL AND end_date < ?) OR (remaining_sessions IS NOT NULL AND remaining_sessions <= 0)", s.today()).
		Updates(map[string]any{
			"status":  models.MembershipExpired,
			"version": gorm.Expr("version + 1"),
		})
	if upd.Error != nil {
		return 0, classify("expire memberships", upd.Error)
	}
	if upd.RowsAffected > 0 {
		log.Printf("[memberships] expired %d memberships", upd.RowsAffected)
	}
	return upd.RowsAffected, nil
}

type membershipChange func(tx *gorm.DB, m *models.Membership) (lifecycle.Event, map[string]any, error)

// changeMembership loads the membership, checks the caller's version, asks
// decide for the event, and writes it with a status+version compare-and-set.
// A version of 0 skips the caller-side check.
func (s *Service) changeMembership(ctx context.Context, op string, id uint, version int, decide membershipChange) (models.Membership, error) {
	var out models.Membership
	err := s.transaction(ctx, op, func(tx *gorm.DB) error {
		m, err := first[models.Membership](tx, "membership", id)
		if err != nil {
			return err
		}
		if version != 0 && m.Version != version {
			return staleVersion("membership", id, version, m.Version)
		}
		ev, extra, err := decide(tx, &m)
		if err != nil {
			return err
		}
		to, err := lifecycle.Membership(m.Status, ev)
		if err != nil {
			return err
		}
		fields := map[string]any{"status": to, "version": gorm.Expr("version + 1")}
		for k, v := range extra {
			fields[k] = v
		}
		upd := tx.Model(&models.Membership{}).
			Where("id = ? AND status = ? AND version = ?", m.ID, m.Status, m.Version).
			Updates(fields)
		if upd.Error != nil {
			return upd.Error
		}
		if upd.RowsAffected == 0 {
			return apperr.New(apperr.CodeContention, fmt.Sprintf("membership %d was modified concurrently", id))
		}
		return tx.First(&out, id).Error
	})
	return out, err
}
