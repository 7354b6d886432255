// Package repository defines error helpers that are reused across
// multiple repositories.  Sentinel values let handlers and the booking
// engine distinguish failure scenarios, e.g. a duplicate slot insert
// (another actor won the booking race) versus a plain database error.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrEmailExists is returned by UserRepo.Create when the email is
// already registered.  Handlers translate this into HTTP 409.
var ErrEmailExists = errors.New("email already exists")

// ErrDuplicate is returned when an insert violates a unique key.  For
// reservations this means the (room, date, start) slot was taken by a
// concurrent transaction that committed first.
var ErrDuplicate = errors.New("duplicate row")

// mysqlDuplicateEntry is the server error number for unique key
// violations.
const mysqlDuplicateEntry = 1062

// isDuplicate reports whether err is a MySQL duplicate-entry error.
func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}
