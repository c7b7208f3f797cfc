package repository

import (
    "context"
    "database/sql"
    "errors"
    "fmt"
    "math"
    "time"

    "github.com/iliyamo/wedding-rsvp/internal/database"
    "github.com/iliyamo/wedding-rsvp/internal/model"
)

// Stored procedure signatures. Each is prepared as "CALL <signature>".
const (
    procGetGuest          = "GetGuest(?)"
    procLockGuest         = "GetGuestForUpdate(?)"
    procGetGuests         = "GetGuests(?, ?, ?, ?, ?)"
    procCreateGuest       = "CreateGuest(?, ?, ?, ?, ?, ?)"
    procUpdateGuest       = "UpdateGuest(?, ?, ?, ?, ?, ?, ?)"
    procDeleteGuest       = "DeleteGuest(?)"
    procCreateReservation = "CreateReservation(?)"
    procUpdateReservation = "UpdateReservation(?, ?, ?)"
    procDeleteReservation = "DeleteReservation(?)"
)

// DefaultTake is the limit used when a query does not set one: the largest
// value the INT procedure parameter accepts.
const DefaultTake = math.MaxInt32

// Executor is the unit of work a GuestRepo issues its calls through.
// *database.UnitOfWork satisfies it.
type Executor interface {
    CreateCall(ctx context.Context, signature string) (database.Call, error)
    Destroy(call database.Call) error
}

// GuestRepo reads and writes guests together with their reservations. A
// GuestRepo is bound to one unit of work and shares its lifetime; it never
// commits or rolls back.
type GuestRepo struct {
    exec Executor
    now  func() time.Time
}

// NewGuestRepo returns a GuestRepo issuing calls through exec.
func NewGuestRepo(exec Executor) *GuestRepo {
    return &GuestRepo{exec: exec, now: time.Now}
}

// GetGuest returns the guest with the given id, or a *NotFoundError.
func (r *GuestRepo) GetGuest(ctx context.Context, id uint64) (model.Guest, error) {
    guests, err := r.queryGuests(ctx, procGetGuest, id)
    if err != nil {
        return model.Guest{}, err
    }
    if len(guests) == 0 {
        return model.Guest{}, &NotFoundError{ID: id}
    }
    return guests[0], nil
}

// LockGuest reads the guest like GetGuest and holds row locks on the guest
// and its reservation until the unit of work ends, so a check made against
// the returned state still holds for writes issued in the same unit.
func (r *GuestRepo) LockGuest(ctx context.Context, id uint64) (model.Guest, error) {
    guests, err := r.queryGuests(ctx, procLockGuest, id)
    if err != nil {
        return model.Guest{}, err
    }
    if len(guests) == 0 {
        return model.Guest{}, &NotFoundError{ID: id}
    }
    return guests[0], nil
}

// GetGuests returns the guests matching q in store order. A nil q, or any
// unset field of q, falls back to no filter, skip 0 and DefaultTake.
func (r *GuestRepo) GetGuests(ctx context.Context, q *model.GuestSearchQuery) ([]model.Guest, error) {
    var (
        inviteCode, givenName, surname sql.NullString
        skip                           = 0
        take                           = DefaultTake
    )
    if q != nil {
        inviteCode = nullString(q.InviteCode)
        givenName = nullString(q.GivenName)
        surname = nullString(q.Surname)
        if q.Skip != nil {
            skip = *q.Skip
        }
        if q.Take != nil {
            take = *q.Take
        }
    }
    return r.queryGuests(ctx, procGetGuests, inviteCode, givenName, surname, skip, take)
}

// InsertGuest creates g and returns the id assigned by the store. When g
// carries a reservation it is created first and the guest row is linked to
// it. The reservation's submission instant is stamped by the store.
func (r *GuestRepo) InsertGuest(ctx context.Context, g model.Guest) (uint64, error) {
    var link sql.NullInt64
    if g.Reservation != nil {
        resID, err := r.createReservation(ctx, g.Reservation)
        if err != nil {
            return 0, err
        }
        link = nullID(resID)
    }
    return r.queryID(ctx, procCreateGuest,
        g.GivenName, g.Surname, g.Description, g.DietaryRestrictions, g.InviteCode, link)
}

// UpdateGuest replaces the stored state of g.ID with g, creating, updating
// or deleting the reservation as decided by decideCascade. It returns a
// *NotFoundError when no guest has g.ID.
//
// Calls are issued in this order: reservation create or update, guest row
// update with the resulting link, then reservation delete. The guest row
// therefore never points at a deleted reservation, even between
// statements.
func (r *GuestRepo) UpdateGuest(ctx context.Context, g model.Guest) error {
    existing, err := r.GetGuest(ctx, g.ID)
    if err != nil {
        return err
    }

    action := decideCascade(existing.Reservation, g.Reservation)
    var link sql.NullInt64
    switch action {
    case cascadeCreate:
        resID, err := r.createReservation(ctx, g.Reservation)
        if err != nil {
            return err
        }
        link = nullID(resID)
    case cascadeUpdate:
        if err := r.updateReservation(ctx, existing.Reservation.ID, g.Reservation); err != nil {
            return err
        }
        link = nullID(existing.Reservation.ID)
    case cascadeDelete, cascadeNone:
        // link stays NULL
    }

    if err := r.execCall(ctx, procUpdateGuest,
        g.ID, g.GivenName, g.Surname, g.Description, g.DietaryRestrictions, g.InviteCode, link); err != nil {
        return err
    }

    if action == cascadeDelete {
        return r.execCall(ctx, procDeleteReservation, existing.Reservation.ID)
    }
    return nil
}

// DeleteGuest removes the guest and then its reservation, if it had one.
// It returns a *NotFoundError when no guest has id.
func (r *GuestRepo) DeleteGuest(ctx context.Context, id uint64) error {
    existing, err := r.GetGuest(ctx, id)
    if err != nil {
        return err
    }
    if err := r.execCall(ctx, procDeleteGuest, id); err != nil {
        return err
    }
    if existing.Reservation != nil {
        return r.execCall(ctx, procDeleteReservation, existing.Reservation.ID)
    }
    return nil
}

func (r *GuestRepo) createReservation(ctx context.Context, res *model.Reservation) (uint64, error) {
    return r.queryID(ctx, procCreateReservation, res.IsAttending)
}

func (r *GuestRepo) updateReservation(ctx context.Context, id uint64, res *model.Reservation) error {
    submitted := res.SubmittedAt
    if submitted.IsZero() {
        submitted = r.now()
    }
    return r.execCall(ctx, procUpdateReservation, id, submitted.UTC(), res.IsAttending)
}

// withCall prepares signature, runs fn and destroys the call on every
// path. A destroy failure is reported only when fn succeeded.
func (r *GuestRepo) withCall(ctx context.Context, signature string, fn func(database.Call) error) (err error) {
    call, err := r.exec.CreateCall(ctx, signature)
    if err != nil {
        return storeErr(signature, err)
    }
    defer func() {
        if derr := r.exec.Destroy(call); derr != nil && err == nil {
            err = storeErr(signature, derr)
        }
    }()
    return fn(call)
}

func (r *GuestRepo) execCall(ctx context.Context, signature string, args ...any) error {
    return r.withCall(ctx, signature, func(call database.Call) error {
        _, err := call.Exec(ctx, args...)
        return storeErr(signature, err)
    })
}

// queryID runs a procedure that ends with "SELECT LAST_INSERT_ID() AS Id".
func (r *GuestRepo) queryID(ctx context.Context, signature string, args ...any) (uint64, error) {
    var id uint64
    err := r.withCall(ctx, signature, func(call database.Call) error {
        rows, err := call.Query(ctx, args...)
        if err != nil {
            return storeErr(signature, err)
        }
        defer rows.Close()
        if !rows.Next() {
            if err := rows.Err(); err != nil {
                return storeErr(signature, err)
            }
            return storeErr(signature, errors.New("no id returned"))
        }
        if err := rows.Scan(&id); err != nil {
            return storeErr(signature, err)
        }
        return storeErr(signature, rows.Err())
    })
    if err != nil {
        return 0, err
    }
    return id, nil
}

func (r *GuestRepo) queryGuests(ctx context.Context, signature string, args ...any) ([]model.Guest, error) {
    var guests []model.Guest
    err := r.withCall(ctx, signature, func(call database.Call) error {
        rows, err := call.Query(ctx, args...)
        if err != nil {
            return storeErr(signature, err)
        }
        defer rows.Close()
        for rows.Next() {
            g, err := scanGuest(rows)
            if err != nil {
                return storeErr(signature, err)
            }
            guests = append(guests, g)
        }
        return storeErr(signature, rows.Err())
    })
    if err != nil {
        return nil, err
    }
    return guests, nil
}

// scanGuest reads one row in the column order shared by GetGuest and
// GetGuests: GUEST_ID, FIRST_NAME, LAST_NAME, GUEST_DESCRIPTION,
// GUEST_DIETARY_RESTRICTIONS, INVITE_CODE, RESERVATION_ID, IS_ATTENDING,
// DATETIME_SUBMITTED.
func scanGuest(rows database.Rows) (model.Guest, error) {
    var (
        g           model.Guest
        description sql.NullString
        dietary     sql.NullString
        reservation sql.NullInt64
        isAttending sql.NullBool
        submittedAt sql.NullTime
    )
    if err := rows.Scan(&g.ID, &g.GivenName, &g.Surname, &description, &dietary,
        &g.InviteCode, &reservation, &isAttending, &submittedAt); err != nil {
        return model.Guest{}, fmt.Errorf("scan guest: %w", err)
    }
    g.Description = description.String
    g.DietaryRestrictions = dietary.String
    if reservation.Valid {
        g.Reservation = &model.Reservation{
            ID:          uint64(reservation.Int64),
            IsAttending: isAttending.Bool,
            SubmittedAt: submittedAt.Time.UTC(),
        }
    }
    return g, nil
}

func nullString(s *string) sql.NullString {
    if s == nil {
        return sql.NullString{}
    }
    return sql.NullString{String: *s, Valid: true}
}

func nullID(id uint64) sql.NullInt64 {
    return sql.NullInt64{Int64: int64(id), Valid: true}
}
