package service

import (
	"errors"
)

type ErrorKind int

const (
	KindNotFound ErrorKind = iota + 1
	KindExpired
	KindLocked
	KindInvalidCredentials
	KindCapacityExceeded
	KindConflict
	KindPermissionDenied
	KindInvalidInput
	KindStoreError
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindExpired:
		return "expired"
	case KindLocked:
		return "locked"
	case KindInvalidCredentials:
		return "invalid_credentials"
	case KindCapacityExceeded:
		return "capacity_exceeded"
	case KindConflict:
		return "conflict"
	case KindPermissionDenied:
		return "permission_denied"
	case KindInvalidInput:
		return "invalid_input"
	case KindStoreError:
		return "store_error"
	}
	return "unknown"
}

// User-facing messages. Handlers return these verbatim.
const (
	MsgInvalidSession     = "Invalid session"
	MsgInvalidCredentials = "Invalid credentials"
	MsgSessionExpired     = "Session expired"
	MsgNoActiveShift      = "No active shift found"
	MsgStaffNotFound      = "Staff member not found"
	MsgAccountLocked      = "Account is temporarily locked"
	MsgInvalidPIN         = "Invalid PIN"
	MsgCapacityReached    = "Maximum staff sessions reached"
	MsgShiftNotFound      = "Shift not found"
	MsgShiftStartConflict = "Another shift is already being started"
	MsgPermissionDenied   = "Permission denied"
	MsgAdminNotFound      = "Admin not found"
)

// AuthError is the only error type the manager returns. Message is safe to
// show to callers; Err keeps the underlying cause for logs.
type AuthError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	return e.Message
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

func newAuthError(kind ErrorKind, message string) *AuthError {
	return &AuthError{Kind: kind, Message: message}
}

// storeError hides the driver error behind "<operation> failed".
func storeError(operation string, err error) *AuthError {
	return &AuthError{Kind: KindStoreError, Message: operation + " failed", Err: err}
}

func invalidInput(message string) *AuthError {
	return &AuthError{Kind: KindInvalidInput, Message: message}
}

// KindOf returns the kind of an *AuthError in err's chain, or KindStoreError.
func KindOf(err error) ErrorKind {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr.Kind
	}
	return KindStoreError
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var authErr *AuthError
	return errors.As(err, &authErr) && authErr.Kind == kind
}
