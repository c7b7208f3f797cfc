package repository

import (
    "context"
    "database/sql"
    "errors"
    "fmt"
    "reflect"
    "sort"
    "strings"
    "time"

    "github.com/go-sql-driver/mysql"

    "github.com/iliyamo/wedding-rsvp/internal/database"
)

// fakeStore emulates the stored procedures in memory, including the
// foreign key from guest to reservation, and records every procedure it
// runs in order.
type fakeStore struct {
    guests       map[uint64]guestRow
    reservations map[uint64]reservationRow
    nextGuest    uint64
    nextRes      uint64
    clock        time.Time

    calls  []string
    args   map[string][]any
    open   int
    failOn map[string]error
}

type guestRow struct {
    given, surname, description, dietary, invite string
    reservation                                  sql.NullInt64
}

type reservationRow struct {
    attending bool
    submitted time.Time
}

func newFakeStore() *fakeStore {
    return &fakeStore{
        guests:       map[uint64]guestRow{},
        reservations: map[uint64]reservationRow{},
        clock:        time.Date(2026, 5, 4, 18, 30, 0, 0, time.UTC),
        args:         map[string][]any{},
        failOn:       map[string]error{},
    }
}

func (s *fakeStore) CreateCall(_ context.Context, signature string) (database.Call, error) {
    s.open++
    return &fakeCall{store: s, signature: signature}, nil
}

func (s *fakeStore) Destroy(call database.Call) error {
    if call == nil {
        return nil
    }
    s.open--
    return nil
}

// seedGuest stores a guest row directly and returns its id.
func (s *fakeStore) seedGuest(given, surname string, res *reservationRow) uint64 {
    row := guestRow{given: given, surname: surname, invite: "code-" + given}
    if res != nil {
        s.nextRes++
        s.reservations[s.nextRes] = *res
        row.reservation = sql.NullInt64{Int64: int64(s.nextRes), Valid: true}
    }
    s.nextGuest++
    s.guests[s.nextGuest] = row
    return s.nextGuest
}

func (s *fakeStore) resetCalls() { s.calls = nil }

func procName(signature string) string {
    if i := strings.IndexByte(signature, '('); i >= 0 {
        return signature[:i]
    }
    return signature
}

func (s *fakeStore) run(signature string, args []any) ([][]any, error) {
    name := procName(signature)
    s.calls = append(s.calls, name)
    s.args[name] = args
    if err := s.failOn[name]; err != nil {
        return nil, err
    }
    switch name {
    case "GetGuest", "GetGuestForUpdate":
        id := args[0].(uint64)
        if _, ok := s.guests[id]; !ok {
            return nil, nil
        }
        return [][]any{s.row(id)}, nil
    case "GetGuests":
        invite, given, surname := args[0].(sql.NullString), args[1].(sql.NullString), args[2].(sql.NullString)
        skip, take := args[3].(int), args[4].(int)
        ids := make([]uint64, 0, len(s.guests))
        for id, g := range s.guests {
            if (invite.Valid && g.invite != invite.String) ||
                (given.Valid && g.given != given.String) ||
                (surname.Valid && g.surname != surname.String) {
                continue
            }
            ids = append(ids, id)
        }
        sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
        var out [][]any
        for i, id := range ids {
            if i < skip || len(out) >= take {
                continue
            }
            out = append(out, s.row(id))
        }
        return out, nil
    case "CreateGuest":
        link := args[5].(sql.NullInt64)
        if err := s.checkLink(link); err != nil {
            return nil, err
        }
        s.nextGuest++
        s.guests[s.nextGuest] = guestRow{
            given: args[0].(string), surname: args[1].(string), description: args[2].(string),
            dietary: args[3].(string), invite: args[4].(string), reservation: link,
        }
        return [][]any{{s.nextGuest}}, nil
    case "UpdateGuest":
        link := args[6].(sql.NullInt64)
        if err := s.checkLink(link); err != nil {
            return nil, err
        }
        id := args[0].(uint64)
        if _, ok := s.guests[id]; ok {
            s.guests[id] = guestRow{
                given: args[1].(string), surname: args[2].(string), description: args[3].(string),
                dietary: args[4].(string), invite: args[5].(string), reservation: link,
            }
        }
        return nil, nil
    case "DeleteGuest":
        delete(s.guests, args[0].(uint64))
        return nil, nil
    case "CreateReservation":
        s.nextRes++
        s.reservations[s.nextRes] = reservationRow{attending: args[0].(bool), submitted: s.clock}
        return [][]any{{s.nextRes}}, nil
    case "UpdateReservation":
        id := args[0].(uint64)
        if _, ok := s.reservations[id]; ok {
            s.reservations[id] = reservationRow{submitted: args[1].(time.Time), attending: args[2].(bool)}
        }
        return nil, nil
    case "DeleteReservation":
        id := args[0].(uint64)
        for _, g := range s.guests {
            if g.reservation.Valid && uint64(g.reservation.Int64) == id {
                return nil, &mysql.MySQLError{Number: 1451, Message: "Cannot delete or update a parent row"}
            }
        }
        delete(s.reservations, id)
        return nil, nil
    }
    return nil, fmt.Errorf("unknown procedure %s", signature)
}

func (s *fakeStore) checkLink(link sql.NullInt64) error {
    if !link.Valid {
        return nil
    }
    if _, ok := s.reservations[uint64(link.Int64)]; !ok {
        return &mysql.MySQLError{Number: 1452, Message: "Cannot add or update a child row"}
    }
    return nil
}

func (s *fakeStore) row(id uint64) []any {
    g := s.guests[id]
    row := []any{id, g.given, g.surname, g.description, g.dietary, g.invite, nil, nil, nil}
    if g.reservation.Valid {
        r := s.reservations[uint64(g.reservation.Int64)]
        row[6], row[7], row[8] = g.reservation.Int64, r.attending, r.submitted
    }
    return row
}

type fakeCall struct {
    store     *fakeStore
    signature string
}

func (c *fakeCall) Signature() string { return c.signature }

func (c *fakeCall) Query(_ context.Context, args ...any) (database.Rows, error) {
    data, err := c.store.run(c.signature, args)
    if err != nil {
        return nil, err
    }
    return &fakeRows{data: data, pos: -1}, nil
}

func (c *fakeCall) Exec(_ context.Context, args ...any) (sql.Result, error) {
    if _, err := c.store.run(c.signature, args); err != nil {
        return nil, err
    }
    return driverResult(0), nil
}

func (c *fakeCall) Close() error { return nil }

type driverResult int64

func (r driverResult) LastInsertId() (int64, error) { return int64(r), nil }
func (r driverResult) RowsAffected() (int64, error) { return 1, nil }

type fakeRows struct {
    data [][]any
    pos  int
}

func (r *fakeRows) Next() bool {
    r.pos++
    return r.pos < len(r.data)
}

func (r *fakeRows) Scan(dest ...any) error {
    row := r.data[r.pos]
    if len(dest) != len(row) {
        return fmt.Errorf("scan: %d destinations for %d columns", len(dest), len(row))
    }
    for i, d := range dest {
        if sc, ok := d.(sql.Scanner); ok {
            if err := sc.Scan(row[i]); err != nil {
                return err
            }
            continue
        }
        if row[i] == nil {
            return errors.New("scan: NULL into non-nullable destination")
        }
        reflect.ValueOf(d).Elem().Set(reflect.ValueOf(row[i]))
    }
    return nil
}

func (r *fakeRows) Err() error   { return nil }
func (r *fakeRows) Close() error { return nil }
