package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleGuest() Guest {
	return Guest{
		ID:                  7,
		GivenName:           "Ada",
		Surname:             "Lovelace",
		Description:         "college friend",
		InviteCode:          "AB12CD34",
		DietaryRestrictions: "vegetarian",
		Reservation: &Reservation{
			ID:          3,
			IsAttending: true,
			SubmittedAt: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
		},
	}
}

func TestGuest_EqualIdenticalValues(t *testing.T) {
	a := sampleGuest()
	b := sampleGuest()
	assert.True(t, a.Equal(b))
	assert.True(t, b.Equal(a))

	a.Reservation, b.Reservation = nil, nil
	assert.True(t, a.Equal(b), "both reservations absent")
}

func TestGuest_EqualDetectsEveryField(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(g *Guest)
	}{
		{"id", func(g *Guest) { g.ID = 8 }},
		{"given name", func(g *Guest) { g.GivenName = "Ava" }},
		{"surname", func(g *Guest) { g.Surname = "Byron" }},
		{"description", func(g *Guest) { g.Description = "" }},
		{"invite code", func(g *Guest) { g.InviteCode = "ZZ" }},
		{"dietary restrictions", func(g *Guest) { g.DietaryRestrictions = "none" }},
		{"reservation removed", func(g *Guest) { g.Reservation = nil }},
		{"reservation id", func(g *Guest) { g.Reservation.ID = 4 }},
		{"attendance", func(g *Guest) { g.Reservation.IsAttending = false }},
		{"submitted at", func(g *Guest) { g.Reservation.SubmittedAt = g.Reservation.SubmittedAt.Add(time.Second) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := sampleGuest()
			changed := sampleGuest()
			tt.mutate(&changed)
			assert.False(t, base.Equal(changed))
		})
	}
}

func TestReservation_EqualComparesInstantsNotZones(t *testing.T) {
	utc := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	plus2 := utc.In(time.FixedZone("CEST", 2*60*60))
	a := &Reservation{IsAttending: true, SubmittedAt: utc}
	b := &Reservation{IsAttending: true, SubmittedAt: plus2}
	assert.True(t, a.Equal(b))
}

func TestGuest_CloneIsDeep(t *testing.T) {
	orig := sampleGuest()
	cp := orig.Clone()
	require.True(t, orig.Equal(cp))

	cp.Reservation.IsAttending = false
	assert.True(t, orig.Reservation.IsAttending, "mutating the clone must not reach the original")
}

func TestGuest_AssignID(t *testing.T) {
	var g Guest
	require.NoError(t, g.AssignID(5))
	assert.Equal(t, uint64(5), g.ID)
	assert.NoError(t, g.AssignID(5))
	assert.ErrorIs(t, g.AssignID(6), ErrIDAssigned)
	assert.Equal(t, uint64(5), g.ID)
}
