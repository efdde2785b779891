// Package errors provides error handling utilities.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Type identifies the category of error
type Type string

const (
	// TypeValidation indicates invalid caller input (contact form, quote selection)
	TypeValidation Type = "VALIDATION_ERROR"

	// TypeDataUnavailable indicates the device catalog could not be loaded
	TypeDataUnavailable Type = "DATA_UNAVAILABLE"

	// TypeUnresolvable indicates every pricing tier was exhausted
	TypeUnresolvable Type = "PRICE_UNRESOLVABLE"

	// TypeForwarding indicates a lead could not be delivered to the CRM
	TypeForwarding Type = "FORWARDING_FAILURE"

	// TypeConfig indicates a configuration error
	TypeConfig Type = "CONFIG_ERROR"

	// TypeNetwork indicates a network error talking to a collaborator
	TypeNetwork Type = "NETWORK_ERROR"

	// TypeInternal indicates an internal error
	TypeInternal Type = "INTERNAL_ERROR"

	// TypeNotFound indicates a resource not found error
	TypeNotFound Type = "NOT_FOUND"
)

// Error represents a domain error with context
type Error struct {
	Type    Type                   `json:"type"`
	Message string                 `json:"message"`
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is checks if the error is of a specific type
func (e *Error) Is(t Type) bool {
	return e.Type == t
}

// WithContext adds context to the error
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// New creates a new error
func New(errType Type, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
	}
}

// Newf creates a new formatted error
func Newf(errType Type, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an error with context
func Wrap(errType Type, message string, cause error) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Cause:   cause,
	}
}

// Wrapf wraps an error with formatted context
func Wrapf(errType Type, cause error, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// IsType checks if an error, or anything it wraps, is of a specific type
func IsType(err error, t Type) bool {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type == t
	}
	return false
}

// TypeOf returns the type of the first domain error in the chain, or TypeInternal.
func TypeOf(err error) Type {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type
	}
	return TypeInternal
}

// Validation creates a validation error
func Validation(message string) *Error {
	return New(TypeValidation, message)
}

// DataUnavailable creates a catalog load error
func DataUnavailable(message string, cause error) *Error {
	return Wrap(TypeDataUnavailable, message, cause)
}

// Unresolvable creates a price-not-found error for a defect/device type pair
func Unresolvable(defect, deviceType string) *Error {
	return Newf(TypeUnresolvable, "no price for %s on %s", defect, deviceType).
		WithContext("defect", defect).
		WithContext("device_type", deviceType)
}

// Forwarding creates a lead forwarding error
func Forwarding(message string, cause error) *Error {
	return Wrap(TypeForwarding, message, cause)
}

// Network creates a collaborator network error
func Network(message string, cause error) *Error {
	return Wrap(TypeNetwork, message, cause)
}

// Config creates a configuration error
func Config(message string, cause error) *Error {
	return Wrap(TypeConfig, message, cause)
}

// NotFound creates a not found error
func NotFound(resourceType, identifier string) *Error {
	return Newf(TypeNotFound, "%s not found: %s", resourceType, identifier)
}

// Internal creates an internal error
func Internal(message string, cause error) *Error {
	return Wrap(TypeInternal, message, cause)
}

// ContextOf returns the value stored under key on the first domain error
// in the chain.
func ContextOf(err error, key string) (interface{}, bool) {
	var e *Error
	if !stderrors.As(err, &e) || e.Context == nil {
		return nil, false
	}
	v, ok := e.Context[key]
	return v, ok
}
