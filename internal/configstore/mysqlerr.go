package configstore

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

const mysqlDuplicateEntryNumber = 1062

// mysqlDuplicateEntry reports whether err is a MySQL duplicate-key error,
// used to detect a losing SetIfAbsent race.
func mysqlDuplicateEntry(err error) bool {
	var mErr *mysql.MySQLError
	if errors.As(err, &mErr) {
		return mErr.Number == mysqlDuplicateEntryNumber
	}
	return false
}
