package tracker

import (
	"errors"
	"fmt"
)

// ErrValidation marks input rejected before any fetch.
var ErrValidation = errors.New("tracker: invalid input")

// FetchError reports a failure to open or extract a page.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("tracker: fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// StorageWriteError reports a failure to persist the new snapshot. The
// track call fails; previously stored data is left as the backend left it.
type StorageWriteError struct {
	URL string
	Key string
	Err error
}

func (e *StorageWriteError) Error() string {
	return fmt.Sprintf("tracker: write snapshot %s (%s): %v", e.URL, e.Key, e.Err)
}

func (e *StorageWriteError) Unwrap() error { return e.Err }
