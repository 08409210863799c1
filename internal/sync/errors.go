package sync

import "fmt"

// PersistenceError means one mapped event could not be written.
type PersistenceError struct {
	Index int
	Title string
	Err   error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to persist event %d (%s): %v", e.Index, e.Title, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
