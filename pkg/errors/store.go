package errors

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// StoreFailure is the driver-neutral view of a postgres error, taken from
// either pgx or lib/pq.
type StoreFailure struct {
	SQLState   string `json:"sqlstate"`
	Constraint string `json:"constraint,omitempty"`
	Table      string `json:"table,omitempty"`
	Column     string `json:"column,omitempty"`
	Detail     string `json:"detail,omitempty"`
	Message    string `json:"message,omitempty"`
}

// SQLSTATE values that mean more than "the database is unavailable".
var codeBySQLState = map[string]Code{
	"23505": CodeConflict, // unique_violation
	"23514": CodeConflict, // check_violation
	"55P03": CodeLockBusy, // lock_not_available
}

// AsStoreFailure extracts the postgres error in err's chain, if any.
func AsStoreFailure(err error) (StoreFailure, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return StoreFailure{
			SQLState:   pgErr.Code,
			Constraint: pgErr.ConstraintName,
			Table:      pgErr.TableName,
			Column:     pgErr.ColumnName,
			Detail:     pgErr.Detail,
			Message:    pgErr.Message,
		}, true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return StoreFailure{
			SQLState:   string(pqErr.Code),
			Constraint: pqErr.Constraint,
			Table:      pqErr.Table,
			Column:     pqErr.Column,
			Detail:     pqErr.Detail,
			Message:    pqErr.Message,
		}, true
	}
	return StoreFailure{}, false
}

// WrapStore wraps a persistence failure. Constraint and lock errors keep
// their meaning; everything else is a retryable dependency error.
func WrapStore(err error, message string) *Error {
	if failure, ok := AsStoreFailure(err); ok {
		if code, known := codeBySQLState[failure.SQLState]; known {
			return Wrap(code, err, message)
		}
	}
	return Wrap(CodeDependency, err, message)
}
