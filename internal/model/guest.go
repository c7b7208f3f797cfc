package model

import (
    "errors"
    "fmt"
)

// ErrIDAssigned is returned by AssignID when the guest already carries a
// different identifier.
var ErrIDAssigned = errors.New("guest id already assigned")

// Guest is the aggregate root of the RSVP domain. A guest owns at most one
// Reservation; whether the reservation is present is meaningful state and
// nil is not the same as an empty reservation.
//
// Fields:
//  ID                  – guests.GUEST_ID, zero until the store assigns one.
//  GivenName           – guests.FIRST_NAME.
//  Surname             – guests.LAST_NAME.
//  Description         – guests.GUEST_DESCRIPTION (free text).
//  InviteCode          – guests.INVITE_CODE.
//  DietaryRestrictions – guests.GUEST_DIETARY_RESTRICTIONS (free text).
//  Reservation         – optional RSVP, deleted together with the guest.
type Guest struct {
    ID                  uint64       `json:"id"`
    GivenName           string       `json:"givenName"`
    Surname             string       `json:"surName"`
    Description         string       `json:"description"`
    InviteCode          string       `json:"inviteCode"`
    DietaryRestrictions string       `json:"dietaryRestrictions"`
    Reservation         *Reservation `json:"reservation,omitempty"`
}

// HasReservation reports whether the guest currently owns a reservation.
func (g Guest) HasReservation() bool { return g.Reservation != nil }

// AssignID sets the store-assigned identifier. Once a guest is identified
// its id cannot change; assigning the same id again is a no-op.
func (g *Guest) AssignID(id uint64) error {
    if g.ID != 0 && g.ID != id {
        return fmt.Errorf("%w: have %d, got %d", ErrIDAssigned, g.ID, id)
    }
    g.ID = id
    return nil
}

// Equal compares every field, including the reservation, by value.
func (g Guest) Equal(other Guest) bool {
    return g.ID == other.ID &&
        g.GivenName == other.GivenName &&
        g.Surname == other.Surname &&
        g.Description == other.Description &&
        g.InviteCode == other.InviteCode &&
        g.DietaryRestrictions == other.DietaryRestrictions &&
        g.Reservation.Equal(other.Reservation)
}

// Clone returns a deep copy so that callers cannot reach the original
// reservation through the result.
func (g Guest) Clone() Guest {
    g.Reservation = g.Reservation.Clone()
    return g
}
