package domain

// ErrorKind classifies domain failures so transports can map them uniformly.
type ErrorKind string

const (
	KindValidation ErrorKind = "validation"
	KindNotFound   ErrorKind = "not_found"
	KindConflict   ErrorKind = "conflict"
	KindAuth       ErrorKind = "auth"
	KindRateLimit  ErrorKind = "rate_limit"
	KindState      ErrorKind = "state"
)

// Error is a domain failure carrying a machine-readable kind and code.
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// NewValidationError builds a validation-kind domain error.
func NewValidationError(code, message string) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: message}
}

// NewNotFoundError builds a not-found-kind domain error.
func NewNotFoundError(code, message string) *Error {
	return &Error{Kind: KindNotFound, Code: code, Message: message}
}

// NewConflictError builds a conflict-kind domain error.
func NewConflictError(code, message string) *Error {
	return &Error{Kind: KindConflict, Code: code, Message: message}
}

// NewAuthError builds an auth-kind domain error.
func NewAuthError(code, message string) *Error {
	return &Error{Kind: KindAuth, Code: code, Message: message}
}

// NewRateLimitError builds a rate-limit-kind domain error.
func NewRateLimitError(code, message string) *Error {
	return &Error{Kind: KindRateLimit, Code: code, Message: message}
}

// NewStateError builds a state-kind domain error for illegal transitions.
func NewStateError(code, message string) *Error {
	return &Error{Kind: KindState, Code: code, Message: message}
}
