// Package queue defines the RSVP messages exchanged over RabbitMQ, the
// publisher the service uses and the background consumer that records
// them.
package queue

import (
    "time"

    "github.com/iliyamo/wedding-rsvp/internal/model"
)

// ReservationQueueName is the durable queue RSVP events are routed to.
const ReservationQueueName = "rsvp.submitted"

// ReservationSubmittedEvent is published after a guest's reservation is
// created or changed. It carries enough for downstream consumers to log or
// notify without querying the database.
type ReservationSubmittedEvent struct {
    GuestID             uint64 `json:"guest_id"`
    GivenName           string `json:"given_name"`
    Surname             string `json:"surname"`
    InviteCode          string `json:"invite_code"`
    DietaryRestrictions string `json:"dietary_restrictions,omitempty"`
    IsAttending         bool   `json:"is_attending"`
    SubmittedAt         string `json:"submitted_at"`
}

// NewReservationSubmittedEvent builds the event for g, which must carry a
// reservation. A zero submission instant is reported as now.
func NewReservationSubmittedEvent(g model.Guest, now time.Time) ReservationSubmittedEvent {
    ev := ReservationSubmittedEvent{
        GuestID:             g.ID,
        GivenName:           g.GivenName,
        Surname:             g.Surname,
        InviteCode:          g.InviteCode,
        DietaryRestrictions: g.DietaryRestrictions,
    }
    submitted := now
    if g.Reservation != nil {
        ev.IsAttending = g.Reservation.IsAttending
        if !g.Reservation.SubmittedAt.IsZero() {
            submitted = g.Reservation.SubmittedAt
        }
    }
    ev.SubmittedAt = submitted.UTC().Format(time.RFC3339)
    return ev
}
