package models

type SessionStatus string

const (
	SessionScheduled SessionStatus = "SCHEDULED"
	SessionCancelled SessionStatus = "CANCELLED"
	SessionCompleted SessionStatus = "COMPLETED"
)

type ReservationStatus string

const (
	ReservationPendingPayment ReservationStatus = "PENDING_PAYMENT"
	ReservationPaid           ReservationStatus = "PAID"
	ReservationCancelled      ReservationStatus = "CANCELLED"
	ReservationNoShow         ReservationStatus = "NO_SHOW"
	ReservationCompleted      ReservationStatus = "COMPLETED"
)

func (s ReservationStatus) Valid() bool {
	switch s {
	case ReservationPendingPayment, ReservationPaid, ReservationCancelled, ReservationNoShow, ReservationCompleted:
		return true
	}
	return false
}

type MembershipStatus string

const (
	MembershipPending   MembershipStatus = "PENDING"
	MembershipActive    MembershipStatus = "ACTIVE"
	MembershipExpired   MembershipStatus = "EXPIRED"
	MembershipSuspended MembershipStatus = "SUSPENDED"
	MembershipCancelled MembershipStatus = "CANCELLED"
)

func (s MembershipStatus) Valid() bool {
	switch s {
	case MembershipPending, MembershipActive, MembershipExpired, MembershipSuspended, MembershipCancelled:
		return true
	}
	return false
}
