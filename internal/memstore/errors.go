package memstore

import "fmt"

// DuplicateError mirrors a unique-constraint violation.
type DuplicateError struct {
	Column string
	Value  string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate %s %q", e.Column, e.Value)
}

func errDuplicate(column, value string) error {
	return &DuplicateError{Column: column, Value: value}
}
