package models

import (
	"database/sql/driver"
	"fmt"
)

// Lifecycle is the storage lifecycle of a record, persisted in the
// record_status column using the legacy CREATED/DELETED spelling. The zero
// value is treated as Active so in-memory records need no initialisation.
type Lifecycle string

const (
	Active  Lifecycle = "CREATED"
	Deleted Lifecycle = "DELETED"
)

// IsActive reports whether the record is visible to readers.
func (l Lifecycle) IsActive() bool {
	return l == Active || l == ""
}

func (l Lifecycle) String() string {
	if l.IsActive() {
		return "active"
	}
	return "deleted"
}

// Value implements driver.Valuer.
func (l Lifecycle) Value() (driver.Value, error) {
	switch l {
	case Active, "":
		return string(Active), nil
	case Deleted:
		return string(Deleted), nil
	default:
		return nil, fmt.Errorf("invalid lifecycle %q", string(l))
	}
}

// Scan implements sql.Scanner.
func (l *Lifecycle) Scan(src interface{}) error {
	var s string
	switch v := src.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	case nil:
		*l = Active
		return nil
	default:
		return fmt.Errorf("cannot scan %T into Lifecycle", src)
	}
	switch Lifecycle(s) {
	case Active, "":
		*l = Active
	case Deleted:
		*l = Deleted
	default:
		return fmt.Errorf("unknown record status %q", s)
	}
	return nil
}
