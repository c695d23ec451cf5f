package datastores

import (
	"errors"
	"fmt"
)

var (
	ErrObjectNotFound = errors.New("store: object not found")

	// ErrEmptyContact is returned by [DecodeCard] when no field is recognized.
	ErrEmptyContact = errors.New("card: empty contact")

	// ErrMissingIdentifier is returned by [DecodeCard] when fields were
	// recognized but neither an ID line nor an external id is available.
	ErrMissingIdentifier = errors.New("card: missing identifier")

	ErrIdentifierConflict = errors.New("store: conflicting identifier")
	ErrInvalidIdentifier  = errors.New("store: invalid identifier")
	ErrInvalidContact     = errors.New("store: invalid contact")
)

// IOError reports a failed filesystem operation. Causes are not
// distinguished: permission, disk full and transient errors all end up here.
type IOError struct {
	Op  string // list, stat, write or delete
	ID  ContactID
	Err error
}

func (e *IOError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("store: %s %q: %v", e.Op, e.ID, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }
