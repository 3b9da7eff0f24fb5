// Package store holds the MySQL repositories behind users, lessons and
// progress.
package store

import (
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"
)

var (
	ErrNotFound         = errors.New("record not found")
	ErrUnknownReference = errors.New("referenced row does not exist")
)

// MySQL ER_NO_REFERENCED_ROW_2
const errNoReferencedRow = 1452

func isMySQL(err error, code uint16) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == code
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
