package repo

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

type constraintKind int

const (
	constraintNone constraintKind = iota
	constraintUnique
	constraintForeignKey
	constraintCheck
)

// MySQL server error numbers.
const (
	mysqlDupEntry        = 1062
	mysqlRowIsReferenced = 1451
	mysqlNoReferencedRow = 1452
	mysqlCheckViolated   = 3819
)

// constraintOf reports which storage constraint err violated, for either driver.
func constraintOf(err error) constraintKind {
	if err == nil {
		return constraintNone
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case mysqlDupEntry:
			return constraintUnique
		case mysqlRowIsReferenced, mysqlNoReferencedRow:
			return constraintForeignKey
		case mysqlCheckViolated:
			return constraintCheck
		}
		return constraintNone
	}

	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return constraintUnique
		case sqlite3lib.SQLITE_CONSTRAINT_FOREIGNKEY:
			return constraintForeignKey
		case sqlite3lib.SQLITE_CONSTRAINT_CHECK:
			return constraintCheck
		}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "unique constraint failed"):
		return constraintUnique
	case strings.Contains(msg, "foreign key constraint failed"):
		return constraintForeignKey
	case strings.Contains(msg, "check constraint failed"):
		return constraintCheck
	}
	return constraintNone
}
