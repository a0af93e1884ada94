// Package repository is the data access layer. Repositories speak portable
// SQL (`?` placeholders, no vendor functions in the hot paths) against
// MySQL in production and SQLite in tests, and translate driver errors into
// apperror values so higher layers never inspect driver types.
package repository

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
)

const (
	mysqlDuplicateEntry  = 1062 // ER_DUP_ENTRY
	mysqlNoReferencedRow = 1452 // ER_NO_REFERENCED_ROW_2
)

// isDuplicateKey reports whether err is a unique-index violation.
func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == mysqlDuplicateEntry
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint")
}

// isForeignKeyViolation reports whether err is a missing parent row.
func isForeignKeyViolation(err error) bool {
	if err == nil {
		return false
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == mysqlNoReferencedRow
	}
	return strings.Contains(strings.ToLower(err.Error()), "foreign key constraint")
}
