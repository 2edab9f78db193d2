package cart

import (
	"errors"
	"fmt"
)

var (
	ErrStoreNotProvided = errors.New("cart store not provided")
	ErrClosed           = errors.New("cart store is closed")
	ErrInvalidProduct   = errors.New("invalid product")
	ErrVersionConflict  = errors.New("cart slot version conflict")
)

// CorruptStateError is returned when the persisted slot does not hold a valid
// list of line-items.
type CorruptStateError struct {
	SlotKey string
	Reason  string
	Err     error
}

func (e *CorruptStateError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("corrupt cart state in slot %s: %s: %s", e.SlotKey, e.Reason, e.Err)
	}
	return fmt.Sprintf("corrupt cart state in slot %s: %s", e.SlotKey, e.Reason)
}

func (e *CorruptStateError) Unwrap() error {
	return e.Err
}
