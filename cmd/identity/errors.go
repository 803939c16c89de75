package identity

import (
	"errors"
	"fmt"
)

// Kinds wrapped by OpError, ConflictError and NotFoundError.
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("account not found")
	ErrConflict     = errors.New("account conflict")
)

// OpError is a typed operation error with a stable Op + Kind contract.
// Msg names the offending field for ErrInvalidInput and never carries secrets.
type OpError struct {
	Op   string
	Kind error
	Msg  string
}

func (e OpError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %s", e.Op, e.Kind, e.Msg)
}

func (e OpError) Unwrap() error { return e.Kind }

// Logical conflict fields reported by ConflictError.
const (
	FieldHandle = "handle"
	FieldEmail  = "email"
	FieldPhone  = "phone"
)

// ConflictError reports a uniqueness conflict on a logical field
// (FieldHandle, FieldEmail or FieldPhone).
type ConflictError struct {
	Op    string
	Field string
}

func (e ConflictError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %v", e.Op, ErrConflict)
	}
	return fmt.Sprintf("%s: %v: %s", e.Op, ErrConflict, e.Field)
}

func (e ConflictError) Unwrap() error { return ErrConflict }

// NotFoundError reports a missing account.
type NotFoundError struct {
	Op       string
	Resource string
}

func (e NotFoundError) Error() string {
	if e.Resource == "" {
		return fmt.Sprintf("%s: %v", e.Op, ErrNotFound)
	}
	return fmt.Sprintf("%s: %v: %s", e.Op, ErrNotFound, e.Resource)
}

func (e NotFoundError) Unwrap() error { return ErrNotFound }

// ConflictField returns the conflicting field when err is a ConflictError.
func ConflictField(err error) (string, bool) {
	var ce ConflictError
	if errors.As(err, &ce) {
		return ce.Field, true
	}
	return "", false
}

// IsConflict reports whether err is a ConflictError.
func IsConflict(err error) bool {
	_, ok := ConflictField(err)
	return ok
}

// IsNotFound reports whether err represents ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsInvalidInput reports whether err represents ErrInvalidInput.
func IsInvalidInput(err error) bool { return errors.Is(err, ErrInvalidInput) }

// InvalidField returns the field named by an ErrInvalidInput OpError.
func InvalidField(err error) string {
	var oe OpError
	if errors.As(err, &oe) && errors.Is(oe.Kind, ErrInvalidInput) {
		return oe.Msg
	}
	return ""
}

func invalid(op, field string) error {
	return OpError{Op: op, Kind: ErrInvalidInput, Msg: field}
}
