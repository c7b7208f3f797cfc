package repository

import "github.com/iliyamo/wedding-rsvp/internal/model"

// cascadeAction is the reservation-side effect of replacing a guest, chosen
// from whether the stored guest and the desired guest carry a reservation.
//
//  existing | desired | action
//  ---------+---------+---------------------------------------------
//  absent   | present | cascadeCreate: create, link the new id
//  present  | present | cascadeUpdate: update in place, keep link
//  present  | absent  | cascadeDelete: unlink, then delete the row
//  absent   | absent  | cascadeNone:   link stays empty
type cascadeAction int

const (
    cascadeNone cascadeAction = iota
    cascadeCreate
    cascadeUpdate
    cascadeDelete
)

func decideCascade(existing, desired *model.Reservation) cascadeAction {
    switch {
    case existing == nil && desired == nil:
        return cascadeNone
    case existing == nil:
        return cascadeCreate
    case desired == nil:
        return cascadeDelete
    default:
        return cascadeUpdate
    }
}

func (a cascadeAction) String() string {
    switch a {
    case cascadeNone:
        return "none"
    case cascadeCreate:
        return "create"
    case cascadeUpdate:
        return "update"
    case cascadeDelete:
        return "delete"
    }
    return "unknown"
}
