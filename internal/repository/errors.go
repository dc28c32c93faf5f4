// Package repository defines error types that are reused across multiple
// repositories.  These sentinel values allow the service layer to tell a
// missing row apart from a constraint conflict without inspecting driver
// specific errors itself.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when a lookup by key matches no row.  The
// service layer translates it into its own not-found error.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert violates a unique index, such
// as a second payment row for a reservation or a repeated ticket code.
var ErrDuplicate = errors.New("duplicate key")

// mysqlDuplicateEntry is the server error number for ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

// isDuplicate reports whether err is a MySQL unique key violation.
func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}
