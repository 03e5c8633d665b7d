// Package lifecycle holds the status transition tables for reservations,
// sessions and memberships. Services consult it before every status write
// and use ReservationSources to build bulk conditional updates, so the
// legality of a transition is decided here and nowhere else.
package lifecycle

import (
	"fmt"

	"github.com/lojf/gymclass/internal/apperr"
	"github.com/lojf/gymclass/internal/models"
)

type Event string

const (
	// Reservation events
	EvPay              Event = "pay"
	EvCancel           Event = "cancel"
	EvCheckIn          Event = "check_in"
	EvSessionCancelled Event = "session_cancelled"
	EvAttended         Event = "attended"
	EvMissed           Event = "missed"
	EvUnpaidAtClose    Event = "unpaid_at_close"

	// Session events (EvCancel is shared)
	EvClose Event = "close"

	// Membership events (EvCancel is shared)
	EvApprove Event = "approve"
	EvSuspend Event = "suspend"
	EvResume  Event = "resume"
	EvExpire  Event = "expire"
)

// Transition is a single allowed edge in a status machine.
type Transition[S ~string] struct {
	From  S
	To    S
	Event Event
}

type table[S ~string] []Transition[S]

func (t table[S]) lookup(from S, ev Event) (Transition[S], bool) {
	for _, tr := range t {
		if tr.From == from && tr.Event == ev {
			return tr, true
		}
	}
	return Transition[S]{}, false
}

func (t table[S]) sources(ev Event) []S {
	var out []S
	for _, tr := range t {
		if tr.Event == ev {
			out = append(out, tr.From)
		}
	}
	return out
}

var reservationTable = table[models.ReservationStatus]{
	{From: models.ReservationPendingPayment, To: models.ReservationPaid, Event: EvPay},

	{From: models.ReservationPendingPayment, To: models.ReservationCancelled, Event: EvCancel},
	{From: models.ReservationPaid, To: models.ReservationCancelled, Event: EvCancel},

	// Check-in stamps checkedInAt; the status resolves at close-out.
	{From: models.ReservationPaid, To: models.ReservationPaid, Event: EvCheckIn},

	{From: models.ReservationPendingPayment, To: models.ReservationCancelled, Event: EvSessionCancelled},
	{From: models.ReservationPaid, To: models.ReservationCancelled, Event: EvSessionCancelled},

	// Close-out
	{From: models.ReservationPaid, To: models.ReservationCompleted, Event: EvAttended},
	{From: models.ReservationPaid, To: models.ReservationNoShow, Event: EvMissed},
	{From: models.ReservationPendingPayment, To: models.ReservationCancelled, Event: EvUnpaidAtClose},
}

var sessionTable = table[models.SessionStatus]{
	{From: models.SessionScheduled, To: models.SessionCancelled, Event: EvCancel},
	{From: models.SessionScheduled, To: models.SessionCompleted, Event: EvClose},
}

var membershipTable = table[models.MembershipStatus]{
	{From: models.MembershipPending, To: models.MembershipActive, Event: EvApprove},

	{From: models.MembershipActive, To: models.MembershipSuspended, Event: EvSuspend},
	{From: models.MembershipSuspended, To: models.MembershipActive, Event: EvResume},

	{From: models.MembershipActive, To: models.MembershipExpired, Event: EvExpire},
	{From: models.MembershipSuspended, To: models.MembershipExpired, Event: EvExpire},

	{From: models.MembershipPending, To: models.MembershipCancelled, Event: EvCancel},
	{From: models.MembershipActive, To: models.MembershipCancelled, Event: EvCancel},
	{From: models.MembershipSuspended, To: models.MembershipCancelled, Event: EvCancel},
}

// Reservation returns the target status for ev, or the typed guard error.
func Reservation(from models.ReservationStatus, ev Event) (models.ReservationStatus, error) {
	if tr, ok := reservationTable.lookup(from, ev); ok {
		return tr.To, nil
	}
	switch ev {
	case EvCancel, EvSessionCancelled:
		if from == models.ReservationCancelled {
			return from, apperr.Wrap(apperr.CodeAlreadyCancelled, "reservation already cancelled", nil)
		}
		return from, apperr.Wrap(apperr.CodeNotCancellable,
			fmt.Sprintf("reservation is %s and can no longer be cancelled", from), nil)
	case EvCheckIn:
		return from, apperr.Wrap(apperr.CodeNotCheckInable,
			fmt.Sprintf("reservation is %s, only PAID reservations can check in", from), nil)
	}
	return from, invalid("reservation", string(from), ev)
}

// Session returns the target status for ev, or the typed guard error.
func Session(from models.SessionStatus, ev Event) (models.SessionStatus, error) {
	if tr, ok := sessionTable.lookup(from, ev); ok {
		return tr.To, nil
	}
	if ev == EvCancel {
		if from == models.SessionCancelled {
			return from, apperr.Wrap(apperr.CodeAlreadyCancelled, "session already cancelled", nil)
		}
		return from, apperr.Wrap(apperr.CodeSessionNotCancellable,
			fmt.Sprintf("session is %s and can no longer be cancelled", from), nil)
	}
	return from, invalid("session", string(from), ev)
}

// Membership returns the target status for ev, or the typed guard error.
func Membership(from models.MembershipStatus, ev Event) (models.MembershipStatus, error) {
	if tr, ok := membershipTable.lookup(from, ev); ok {
		return tr.To, nil
	}
	if ev == EvCancel && from == models.MembershipCancelled {
		return from, apperr.Wrap(apperr.CodeAlreadyCancelled, "membership already cancelled", nil)
	}
	return from, invalid("membership", string(from), ev)
}

// ReservationSources lists the statuses from which ev is legal.
func ReservationSources(ev Event) []models.ReservationStatus {
	return reservationTable.sources(ev)
}

func invalid(entity, from string, ev Event) error {
	return apperr.Wrap(apperr.CodeInvalidTransition,
		fmt.Sprintf("%s cannot %s from %s", entity, ev, from), nil)
}
