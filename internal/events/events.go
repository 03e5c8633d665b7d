package events

import "github.com/lojf/gymclass/internal/models"

// Hooks run after the owning transaction commits. services call them if set.

// OnReservationCancelled is called after a member or staff cancels a reservation.
var OnReservationCancelled func(r models.Reservation)

// OnSessionCancelled is called after staff cancel a session; n is the number
// of reservations cancelled with it.
var OnSessionCancelled func(s models.Session, n int)

// OnSessionClosed is called after an elapsed session is resolved.
var OnSessionClosed func(s models.Session, completed, noShow, unpaid int)
