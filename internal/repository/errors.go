// Package repository holds the guest repository and the error values it
// shares with higher layers. Handlers use these to tell a missing guest
// (404) from a conflicting write (409) from an unexpected store failure
// (500).
package repository

import (
    "errors"
    "fmt"

    "github.com/go-sql-driver/mysql"
)

// ErrNotFound is matched by every NotFoundError.
var ErrNotFound = errors.New("not found")

// ErrConflict is matched by a StoreError whose cause is a constraint
// violation, such as a reservation that is still referenced by another
// guest. Handlers should translate this into an HTTP 409 response.
var ErrConflict = errors.New("conflict")

// NotFoundError reports that no guest row exists for ID. It is a business
// outcome rather than a store failure.
type NotFoundError struct {
    ID uint64
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("guest %d not found", e.ID) }

// Is lets errors.Is(err, ErrNotFound) match.
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// StoreError wraps an unexpected error from the relational store with the
// procedure that produced it.
type StoreError struct {
    Op  string
    Err error
}

func (e *StoreError) Error() string { return fmt.Sprintf("store %s: %v", e.Op, e.Err) }

func (e *StoreError) Unwrap() error { return e.Err }

// Is reports constraint violations as ErrConflict.
func (e *StoreError) Is(target error) bool {
    if target != ErrConflict {
        return false
    }
    var me *mysql.MySQLError
    if !errors.As(e.Err, &me) {
        return false
    }
    switch me.Number {
    case 1062, // duplicate entry
        1451, // row is referenced by a foreign key
        1452: // referenced row does not exist
        return true
    }
    return false
}

func storeErr(op string, err error) error {
    if err == nil {
        return nil
    }
    return &StoreError{Op: op, Err: err}
}
