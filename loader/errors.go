package loader

import (
	"errors"
	"fmt"
	"io"
)

type ErrorCollector struct {
	Errors []error

	// Errors beyond this many are dropped
	// 0 => no limit
	MaxErrors int
}

func (f *ErrorCollector) HasErrors() bool {
	return len(f.Errors) > 0
}

func (f *ErrorCollector) PrintErrors(w io.Writer) {
	for _, err := range f.Errors {
		fmt.Fprintln(w, err)
	}
}

func (f *ErrorCollector) AddErrors(errs ...error) {
	for _, err := range errs {
		if f.MaxErrors > 0 && len(f.Errors) >= f.MaxErrors {
			return
		}
		f.Errors = append(f.Errors, err)
	}
}

// Err joins the collected errors, nil if there are none.
func (f *ErrorCollector) Err() error {
	return errors.Join(f.Errors...)
}
