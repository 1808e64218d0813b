package naming

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownEntity is returned when a mapping targets an id the catalogue
	// does not know.
	ErrUnknownEntity = errors.New("unknown original id")
	// ErrEmptyName rejects a rename whose new name is empty or whitespace.
	ErrEmptyName = errors.New("display name must not be empty")
	// ErrNothingToUngroup rejects an ungroup where no target carries a custom name.
	ErrNothingToUngroup = errors.New("no custom names to remove")
)

// StorageUnavailableError reports that the durable store could not be read
// or written. The session continues in memory.
type StorageUnavailableError struct {
	Op  string
	Err error
}

func (e StorageUnavailableError) Error() string {
	return fmt.Sprintf("storage unavailable during %s: %v", e.Op, e.Err)
}

func (e StorageUnavailableError) Unwrap() error { return e.Err }
