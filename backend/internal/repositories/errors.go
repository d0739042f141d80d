package repositories

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNoFieldsProvided = errors.New("no task fields provided for update")
	ErrDueDateConflict  = errors.New("due date already exists for this task, use PUT to update it")
	ErrDueDateNotFound  = errors.New("due date not found for this task")
	// ErrInvalidValue means the store refused a value that passed shape
	// validation, such as the calendar date 2024-13-40.
	ErrInvalidValue = errors.New("value rejected by the store")
)

// StoreError wraps a failure of the relational store.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

const (
	pgUniqueViolation = "23505"
	pgDataException   = "22"
)

// storeError classifies err for op. Postgres unique violations on due dates
// become ErrDueDateConflict and data exceptions become ErrInvalidValue; the
// driver error stays reachable through errors.As.
func storeError(op string, err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == pgUniqueViolation && pgErr.TableName == "Due_by":
			return fmt.Errorf("%s: %w: %w", op, ErrDueDateConflict, err)
		case len(pgErr.Code) == 5 && pgErr.Code[:2] == pgDataException:
			return fmt.Errorf("%s: %w: %s", op, ErrInvalidValue, pgErr.Message)
		}
	}

	return &StoreError{Op: op, Err: err}
}
