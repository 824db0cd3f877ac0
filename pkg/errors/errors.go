// Package errors defines the typed errors surfaced by the graph engine.
//
// Every validation failure of the engine is a *DomainError carrying a Type.
// Callers branch on the type with errors.Is against the sentinels below or
// with the Is* helpers; none of these errors is fatal to the engine.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// DomainErrorType represents the category of a domain error
type DomainErrorType string

const (
	// DuplicateIDError: a node or edge id is already registered in the store
	DuplicateIDError DomainErrorType = "DUPLICATE_ID"

	// DanglingEdgeError: an edge endpoint does not reference an existing node
	DanglingEdgeError DomainErrorType = "DANGLING_EDGE"

	// EmptyInputError: user supplied text is blank after trimming
	EmptyInputError DomainErrorType = "EMPTY_INPUT"

	// InvalidBulletReferenceError: a bullet reference does not resolve
	InvalidBulletReferenceError DomainErrorType = "INVALID_BULLET_REFERENCE"

	// MaterializationError: the answering service failed to produce an answer
	MaterializationError DomainErrorType = "MATERIALIZATION_ERROR"

	ValidationError  DomainErrorType = "VALIDATION_ERROR"
	NotFoundError    DomainErrorType = "NOT_FOUND"
	ConflictError    DomainErrorType = "CONFLICT"
	ExternalError    DomainErrorType = "EXTERNAL_ERROR"
	UnavailableError DomainErrorType = "UNAVAILABLE"
)

// DomainError represents a domain-specific error with rich context
type DomainError struct {
	Type       DomainErrorType        `json:"type"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Cause      error                  `json:"-"`
	Retryable  bool                   `json:"retryable"`
	StatusCode int                    `json:"status_code"`
}

// NewDomainError creates a new domain error
func NewDomainError(errorType DomainErrorType, message string) *DomainError {
	return &DomainError{
		Type:       errorType,
		Message:    message,
		Details:    make(map[string]interface{}),
		StatusCode: statusCodeFor(errorType),
	}
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the underlying cause
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a *DomainError of the same type.
// This lets errors.Is(err, ErrDuplicateID) match any duplicate id error.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// WithCause adds a cause to the error
func (e *DomainError) WithCause(cause error) *DomainError {
	e.Cause = cause
	return e
}

// WithDetail adds a detail to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	e.Details[key] = value
	return e
}

// WithRetryable sets whether the error is retryable
func (e *DomainError) WithRetryable(retryable bool) *DomainError {
	e.Retryable = retryable
	return e
}

func statusCodeFor(errorType DomainErrorType) int {
	switch errorType {
	case EmptyInputError, ValidationError:
		return http.StatusBadRequest
	case InvalidBulletReferenceError:
		return http.StatusUnprocessableEntity
	case NotFoundError:
		return http.StatusNotFound
	case DuplicateIDError, DanglingEdgeError, ConflictError:
		return http.StatusConflict
	case ExternalError:
		return http.StatusBadGateway
	case UnavailableError:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Sentinels for errors.Is matching. Never mutate these.
var (
	ErrDuplicateID            = &DomainError{Type: DuplicateIDError}
	ErrDanglingEdge           = &DomainError{Type: DanglingEdgeError}
	ErrEmptyInput             = &DomainError{Type: EmptyInputError}
	ErrInvalidBulletReference = &DomainError{Type: InvalidBulletReferenceError}
	ErrMaterialization        = &DomainError{Type: MaterializationError}
	ErrValidation             = &DomainError{Type: ValidationError}
	ErrNotFound               = &DomainError{Type: NotFoundError}
	ErrConflict               = &DomainError{Type: ConflictError}
	ErrExternal               = &DomainError{Type: ExternalError}
)

// NewDuplicateIDError reports an id that is already present in the store
func NewDuplicateIDError(resource, id string) *DomainError {
	return NewDomainError(DuplicateIDError, fmt.Sprintf("%s %q already exists", resource, id)).
		WithDetail("id", id)
}

// NewDanglingEdgeError reports an edge whose endpoint is not in the store
func NewDanglingEdgeError(source, target, missing string) *DomainError {
	return NewDomainError(DanglingEdgeError, fmt.Sprintf("edge %s -> %s references missing node %q", source, target, missing)).
		WithDetail("source", source).
		WithDetail("target", target).
		WithDetail("missing", missing)
}

// NewEmptyInputError reports blank user input
func NewEmptyInputError(field string) *DomainError {
	return NewDomainError(EmptyInputError, fmt.Sprintf("%s cannot be empty", field)).
		WithDetail("field", field)
}

// NewInvalidBulletReferenceError reports a bullet reference that does not resolve
func NewInvalidBulletReferenceError(answerID string, index int, reason string) *DomainError {
	return NewDomainError(InvalidBulletReferenceError, fmt.Sprintf("bullet %d of %q: %s", index, answerID, reason)).
		WithDetail("answer_id", answerID).
		WithDetail("index", index)
}

// NewMaterializationError reports a failed attempt to answer a query
func NewMaterializationError(queryID string, attempt int, cause error) *DomainError {
	return NewDomainError(MaterializationError, fmt.Sprintf("answering %q failed on attempt %d", queryID, attempt)).
		WithDetail("query_id", queryID).
		WithDetail("attempt", attempt).
		WithCause(cause).
		WithRetryable(true)
}

// NewValidationError creates a validation error
func NewValidationError(message string) *DomainError {
	return NewDomainError(ValidationError, message)
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string) *DomainError {
	return NewDomainError(NotFoundError, fmt.Sprintf("%s not found", resource))
}

// NewConflictError creates a conflict error
func NewConflictError(message string) *DomainError {
	return NewDomainError(ConflictError, message)
}

// NewExternalError wraps a failure of an external collaborator
func NewExternalError(service string, cause error) *DomainError {
	return NewDomainError(ExternalError, fmt.Sprintf("external service '%s' error", service)).
		WithCause(cause).
		WithRetryable(true)
}

// NewUnavailableError creates a service unavailable error
func NewUnavailableError(service string) *DomainError {
	return NewDomainError(UnavailableError, fmt.Sprintf("service '%s' is unavailable", service))
}

// Helper functions

// GetDomainError extracts a DomainError from an error chain
func GetDomainError(err error) *DomainError {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return nil
}

// IsType checks if an error chain carries a DomainError of the given type
func IsType(err error, errorType DomainErrorType) bool {
	domainErr := GetDomainError(err)
	return domainErr != nil && domainErr.Type == errorType
}

func IsDuplicateID(err error) bool            { return IsType(err, DuplicateIDError) }
func IsDanglingEdge(err error) bool           { return IsType(err, DanglingEdgeError) }
func IsEmptyInput(err error) bool             { return IsType(err, EmptyInputError) }
func IsInvalidBulletReference(err error) bool { return IsType(err, InvalidBulletReferenceError) }
func IsMaterialization(err error) bool        { return IsType(err, MaterializationError) }
func IsValidation(err error) bool             { return IsType(err, ValidationError) }
func IsNotFound(err error) bool               { return IsType(err, NotFoundError) }
func IsConflict(err error) bool               { return IsType(err, ConflictError) }

// StatusCode maps an error to the HTTP status the REST adapter should use
func StatusCode(err error) int {
	if domainErr := GetDomainError(err); domainErr != nil {
		if domainErr.StatusCode != 0 {
			return domainErr.StatusCode
		}
		return statusCodeFor(domainErr.Type)
	}
	return http.StatusInternalServerError
}
