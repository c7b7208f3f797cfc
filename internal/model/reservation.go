package model

import "time"

// Reservation records a guest's RSVP. It is owned by exactly one Guest
// and is never addressed on its own; every read or write goes through
// the owning guest. SubmittedAt is always held in UTC.
//
// Fields:
//  ID          – reservations.RESERVATION_ID, assigned by the store.
//  IsAttending – whether the guest will attend.
//  SubmittedAt – when the RSVP was submitted (UTC).
type Reservation struct {
    ID          uint64    `json:"-"`
    IsAttending bool      `json:"isAttending"`
    SubmittedAt time.Time `json:"submittedDateTime"`
}

// Equal reports whether both reservations hold the same values. Two nil
// reservations are equal; a nil and a non-nil reservation are not.
func (r *Reservation) Equal(other *Reservation) bool {
    if r == nil || other == nil {
        return r == nil && other == nil
    }
    return r.ID == other.ID &&
        r.IsAttending == other.IsAttending &&
        r.SubmittedAt.Equal(other.SubmittedAt)
}

// Clone returns a copy that shares no memory with r.
func (r *Reservation) Clone() *Reservation {
    if r == nil {
        return nil
    }
    cp := *r
    cp.SubmittedAt = r.SubmittedAt.UTC()
    return &cp
}
