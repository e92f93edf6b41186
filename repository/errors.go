// Package repository holds the persistence collaborators of the engine:
// gorm-backed stores for MySQL and in-memory twins for local runs and tests.
// The record lifecycle is applied here and nowhere else.
package repository

import (
	"errors"

	mysqldriver "github.com/go-sql-driver/mysql"
	"gorm.io/gorm"

	"github.com/Web2Bizz/atom-dbro-backend-sub000/models"
)

var (
	// ErrNotFound means the referenced record does not exist or is deleted.
	ErrNotFound = errors.New("record not found")
	// ErrConflict means the write would duplicate an existing unique record.
	ErrConflict = errors.New("record already exists")
)

const mysqlDuplicateEntry = 1062

func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var myErr *mysqldriver.MySQLError
	return errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry
}

func active(db *gorm.DB) *gorm.DB {
	return db.Where("record_status = ?", models.Active)
}
