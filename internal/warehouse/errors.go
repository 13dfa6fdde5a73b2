package warehouse

import "fmt"

// TransientBackendError is a failure the backend may not repeat, such as
// overload or a dropped connection.
type TransientBackendError struct {
	Err error
}

func (e *TransientBackendError) Error() string {
	return fmt.Sprintf("transient backend error: %v", e.Err)
}

func (e *TransientBackendError) Unwrap() error { return e.Err }

// FatalBackendError is a failure retrying cannot fix: malformed SQL,
// missing tables, permission or authentication problems.
type FatalBackendError struct {
	Err error
}

func (e *FatalBackendError) Error() string {
	return fmt.Sprintf("backend error: %v", e.Err)
}

func (e *FatalBackendError) Unwrap() error { return e.Err }

// RetriesExhaustedError is returned once every attempt failed transiently.
type RetriesExhaustedError struct {
	Attempts int
	Err      error
}

func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("max retries exceeded after %d attempts: %v", e.Attempts, e.Err)
}

func (e *RetriesExhaustedError) Unwrap() error { return e.Err }
