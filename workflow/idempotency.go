package workflow

import (
	"errors"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

func isDuplicateKeyErr(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

// createIfAbsent inserts value and treats a duplicate-key collision as
// "already applied". This is the existence-check discipline that makes
// at-least-once delivery safe: every aggregate is keyed by an id supplied by
// the producing event, so re-insertion is detectable without extra state.
func createIfAbsent(tx *gorm.DB, value interface{}) (created bool, err error) {
	if err := tx.Create(value).Error; err != nil {
		if isDuplicateKeyErr(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
