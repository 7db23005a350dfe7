package include

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMissingInclude is returned when a buffer is inlined before every one of
// its includes has been resolved.
var ErrMissingInclude = errors.New("include not resolved")

// UnresolvedError reports the includes that were still pending when a
// resolution round failed.
type UnresolvedError struct {
	// Spans are the literal directives that never resolved, sorted.
	Spans []string

	// Files are the filenames referenced by Spans, in the same order.
	Files []string

	// Err is the first fetch error, or the context error when the wait
	// was cut short.
	Err error
}

func (e *UnresolvedError) Error() string {
	return fmt.Sprintf("missing GLSL header files [%s]: %v", strings.Join(e.Files, ", "), e.Err)
}

func (e *UnresolvedError) Unwrap() error {
	return e.Err
}
