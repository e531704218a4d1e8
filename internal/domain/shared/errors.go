package shared

import "errors"

// ErrorClass groups domain failures by how a caller is expected to react to them.
type ErrorClass string

const (
	ClassValidation        ErrorClass = "VALIDATION"
	ClassAuthorization     ErrorClass = "AUTHORIZATION"
	ClassNotFound          ErrorClass = "NOT_FOUND"
	ClassConflict          ErrorClass = "CONFLICT"
	ClassResourceExhausted ErrorClass = "RESOURCE_EXHAUSTED"
	ClassPersistence       ErrorClass = "PERSISTENCE"
)

// Classified is implemented by every error the ledger core reports to its callers.
type Classified interface {
	error
	ErrorClass() ErrorClass
	ErrorCode() string
}

// DomainError is a classified sentinel error. Compare with errors.Is.
type DomainError struct {
	Class   ErrorClass
	Code    string
	Message string
}

// NewError creates a classified sentinel error
func NewError(class ErrorClass, code, message string) *DomainError {
	return &DomainError{
		Class:   class,
		Code:    code,
		Message: message,
	}
}

func (e *DomainError) Error() string {
	return e.Message
}

func (e *DomainError) ErrorClass() ErrorClass {
	return e.Class
}

func (e *DomainError) ErrorCode() string {
	return e.Code
}

// ClassOf returns the class of err. Anything unclassified is a storage failure.
func ClassOf(err error) ErrorClass {
	var classified Classified
	if errors.As(err, &classified) {
		return classified.ErrorClass()
	}
	return ClassPersistence
}

// CodeOf returns the stable machine-readable code of err.
func CodeOf(err error) string {
	var classified Classified
	if errors.As(err, &classified) {
		return classified.ErrorCode()
	}
	return "INTERNAL_ERROR"
}
