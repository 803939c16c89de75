// Package apperr defines the client-visible failure taxonomy shared by the
// auth and oauth services. Every kind carries a stable code and HTTP status;
// anything that is not an *Error is treated as Internal at the boundary.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is a stable, client-visible failure class.
type Kind struct {
	Name    string
	Status  int
	Code    string
	Message string
}

func (k Kind) String() string { return k.Name }

var (
	Internal             = Kind{Name: "internal", Status: http.StatusInternalServerError, Code: "C_001", Message: "internal server error"}
	InvalidInput         = Kind{Name: "invalid_input", Status: http.StatusBadRequest, Code: "C_003", Message: "invalid input value"}
	DuplicateHandle      = Kind{Name: "duplicate_handle", Status: http.StatusConflict, Code: "U_001", Message: "id is already in use"}
	DuplicateEmail       = Kind{Name: "duplicate_email", Status: http.StatusConflict, Code: "U_002", Message: "email is already in use"}
	DuplicatePhone       = Kind{Name: "duplicate_phone", Status: http.StatusConflict, Code: "U_003", Message: "phone number is already in use"}
	PasswordMismatch     = Kind{Name: "password_mismatch", Status: http.StatusBadRequest, Code: "U_004", Message: "passwords do not match"}
	UserNotFound         = Kind{Name: "user_not_found", Status: http.StatusNotFound, Code: "U_005", Message: "user not found"}
	SubjectNotFound      = Kind{Name: "subject_not_found", Status: http.StatusNotFound, Code: "U_006", Message: "provider user sequence number is not linked"}
	InvalidCredentials   = Kind{Name: "invalid_credentials", Status: http.StatusUnauthorized, Code: "M_003", Message: "invalid id or password"}
	InvalidToken         = Kind{Name: "invalid_token", Status: http.StatusUnauthorized, Code: "M_004", Message: "invalid token"}
	Forbidden            = Kind{Name: "forbidden", Status: http.StatusForbidden, Code: "M_005", Message: "access denied"}
	ExpiredToken         = Kind{Name: "expired_token", Status: http.StatusUnauthorized, Code: "T_002", Message: "token has expired"}
	RemoteExchangeFailed = Kind{Name: "remote_exchange_failed", Status: http.StatusInternalServerError, Code: "C_001", Message: "internal server error"}
)

// Error is a classified operation failure.
// Err holds the underlying cause for server-side logs and is never rendered to clients.
type Error struct {
	Op     string
	Kind   Kind
	Detail string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Op + ": " + e.Kind.Name
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// E builds a classified error.
func E(op string, kind Kind, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err}
}

// Ef builds a classified error with a client-safe detail message.
func Ef(op string, kind Kind, format string, args ...any) *Error {
	return &Error{Op: op, Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind carried by err, or Internal when err is unclassified.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return Internal
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	var ae *Error
	if !errors.As(err, &ae) {
		return kind == Internal && err != nil
	}
	return ae.Kind == kind
}

// DetailOf returns the client-safe detail of a classified error, if any.
func DetailOf(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Detail
	}
	return ""
}
