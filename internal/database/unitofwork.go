package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrUnitOfWorkDone is returned when a unit of work is used after Commit
// or Rollback.
var ErrUnitOfWorkDone = errors.New("unit of work already finished")

// Rows is the subset of *sql.Rows the repositories read from.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

// Call is a prepared stored-procedure call bound to one unit of work.
type Call interface {
	Signature() string
	Query(ctx context.Context, args ...any) (Rows, error)
	Exec(ctx context.Context, args ...any) (sql.Result, error)
	Close() error
}

// UnitOfWorkFactory hands out units of work on a shared pool.
type UnitOfWorkFactory struct {
	db        *sql.DB
	isolation sql.IsolationLevel
}

// NewUnitOfWorkFactory returns a factory whose transactions run at READ
// COMMITTED.
func NewUnitOfWorkFactory(db *sql.DB) *UnitOfWorkFactory {
	return &UnitOfWorkFactory{db: db, isolation: sql.LevelReadCommitted}
}

// Create pins one pooled connection and begins a transaction on it. The
// connection goes back to the pool on Commit or Rollback.
func (f *UnitOfWorkFactory) Create(ctx context.Context) (*UnitOfWork, error) {
	conn, err := f.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	tx, err := conn.BeginTx(ctx, &sql.TxOptions{Isolation: f.isolation})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return &UnitOfWork{conn: conn, tx: tx}, nil
}

// UnitOfWork is one connection-scoped transaction. It is not safe for
// concurrent use; one request owns it from Create to Commit/Rollback.
type UnitOfWork struct {
	conn *sql.Conn
	tx   *sql.Tx
	done bool
}

// CreateCall prepares "CALL <signature>" on the transaction, e.g.
// CreateCall(ctx, "GetGuest(?)"). The caller must Destroy the call.
func (u *UnitOfWork) CreateCall(ctx context.Context, signature string) (Call, error) {
	return u.prepare(ctx, signature, "CALL "+signature)
}

func (u *UnitOfWork) prepare(ctx context.Context, signature, query string) (Call, error) {
	if u.done {
		return nil, ErrUnitOfWorkDone
	}
	stmt, err := u.tx.PrepareContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("prepare %s: %w", signature, err)
	}
	return &stmtCall{signature: signature, stmt: stmt}, nil
}

// Destroy releases the statement behind call. A nil call is ignored.
func (u *UnitOfWork) Destroy(call Call) error {
	if call == nil {
		return nil
	}
	if err := call.Close(); err != nil {
		return fmt.Errorf("close %s: %w", call.Signature(), err)
	}
	return nil
}

// DestroyAll releases every call, continuing past failures.
func (u *UnitOfWork) DestroyAll(calls ...Call) error {
	var errs []error
	for _, c := range calls {
		if err := u.Destroy(c); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Commit finalizes all work issued through u and releases the connection.
func (u *UnitOfWork) Commit() error {
	if u.done {
		return ErrUnitOfWorkDone
	}
	u.done = true
	err := u.tx.Commit()
	u.conn.Close()
	if err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Rollback discards all work issued through u and releases the connection.
func (u *UnitOfWork) Rollback() error {
	if u.done {
		return ErrUnitOfWorkDone
	}
	u.done = true
	err := u.tx.Rollback()
	u.conn.Close()
	if err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

type stmtCall struct {
	signature string
	stmt      *sql.Stmt
}

func (c *stmtCall) Signature() string { return c.signature }

func (c *stmtCall) Query(ctx context.Context, args ...any) (Rows, error) {
	rows, err := c.stmt.QueryContext(ctx, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", c.signature, err)
	}
	return rows, nil
}

func (c *stmtCall) Exec(ctx context.Context, args ...any) (sql.Result, error) {
	res, err := c.stmt.ExecContext(ctx, args...)
	if err != nil {
		return nil, fmt.Errorf("exec %s: %w", c.signature, err)
	}
	return res, nil
}

func (c *stmtCall) Close() error { return c.stmt.Close() }
