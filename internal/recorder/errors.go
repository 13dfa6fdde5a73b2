package recorder

import (
	"errors"
	"fmt"

	"github.com/ppiankov/tablespectre/internal/sink"
)

// InsertionError reports rows a sink rejected. Rows not listed were
// stored and stay stored.
type InsertionError struct {
	Table  string
	Total  int
	Errors []sink.RowError
}

func (e *InsertionError) Error() string {
	msg := fmt.Sprintf("%d of %d rows rejected by %s", len(e.Errors), e.Total, e.Table)
	if len(e.Errors) > 0 {
		msg += ": " + e.Errors[0].Error()
	}
	return msg
}

// Unwrap exposes every row error to errors.Is and errors.As.
func (e *InsertionError) Unwrap() []error {
	errs := make([]error, len(e.Errors))
	for i, re := range e.Errors {
		errs[i] = re
	}
	return errs
}

// IsInsertionError reports whether err carries rejected rows.
func IsInsertionError(err error) bool {
	var ie *InsertionError
	return errors.As(err, &ie)
}
