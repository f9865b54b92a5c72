package models

// Error codes for everything the domain layer can refuse to do. Controllers
// translate these into HTTP statuses; nothing here knows about transport.
const (
	CodeValidation        = "validation_error"
	CodePermissionDenied  = "permission_denied"
	CodeNotFound          = "not_found"
	CodeConflict          = "conflict"
	CodeInvalidState      = "invalid_state"
	CodeInvalidOperation  = "invalid_operation"
	CodeAttemptsExhausted = "attempts_exhausted"
	CodeExpired           = "expired"
	CodeLocked            = "locked"
	CodeInternal          = "internal"
)

type DomainError struct {
	Code    string
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
}

func ErrValidation(msg string) *DomainError {
	return &DomainError{Code: CodeValidation, Message: msg}
}

func ErrPermissionDenied(msg string) *DomainError {
	return &DomainError{Code: CodePermissionDenied, Message: msg}
}

func ErrNotFound(msg string) *DomainError {
	return &DomainError{Code: CodeNotFound, Message: msg}
}

func ErrConflict(msg string) *DomainError {
	return &DomainError{Code: CodeConflict, Message: msg}
}

func ErrInvalidState(msg string) *DomainError {
	return &DomainError{Code: CodeInvalidState, Message: msg}
}

func ErrInvalidOperation(msg string) *DomainError {
	return &DomainError{Code: CodeInvalidOperation, Message: msg}
}

func ErrAttemptsExhausted(msg string) *DomainError {
	return &DomainError{Code: CodeAttemptsExhausted, Message: msg}
}

func ErrExpired(msg string) *DomainError {
	return &DomainError{Code: CodeExpired, Message: msg}
}

func ErrLocked(msg string) *DomainError {
	return &DomainError{Code: CodeLocked, Message: msg}
}
