package vaba

import "time"

// Slot is a bookable moment on a calendar date with remaining capacity.
// The portal never reports fully booked times through this API; Count is
// always at least 1.
type Slot struct {
	Timestamp time.Time
	Count     int
}

// Reservation is one of the user's existing bookings. The id is stable
// across reschedules; only the timestamp changes.
type Reservation struct {
	ID        int
	Timestamp time.Time
}
