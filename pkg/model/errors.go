// Package model defines the typed graph objects (Component, Interface,
// Environment, Service, Endpoint, Relation) that sit on top of the layered
// entity document model, plus the error taxonomy shared by the planner and
// the render pipeline.
package model

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a ModelError for handling and reporting.
type ErrorKind string

const (
	// KindConfiguration indicates a reference to an unknown component,
	// endpoint, interface, role or runtime, or a malformed relation.
	KindConfiguration ErrorKind = "configuration"

	// KindValidation indicates a schema or contract violation such as a
	// missing required value or a value of the wrong type.
	KindValidation ErrorKind = "validation"

	// KindMissingContext indicates an interpolation reference that could
	// not be resolved against the supplied context.
	KindMissingContext ErrorKind = "missing-context"

	// KindUnsupportedCapability indicates that no plugin in a runtime
	// implements a required method or attribute.
	KindUnsupportedCapability ErrorKind = "unsupported-capability"
)

// ModelError is the base error type for all planning, validation and
// rendering failures. It carries enough context (object qual-name, offending
// path) to locate the source facet.
// nolint:revive // ModelError is intentionally named to distinguish from standard errors
type ModelError struct {
	// Kind is the error classification.
	Kind ErrorKind `json:"kind"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Code is an optional error code for programmatic handling.
	Code string `json:"code,omitempty"`

	// Object is the qual-name (kind:name) of the object that caused the
	// error, if applicable.
	Object string `json:"object,omitempty"`

	// Path is the dotted path inside the object the error refers to.
	Path string `json:"path,omitempty"`

	// Err is the underlying error that caused this error.
	Err error `json:"-"`

	// Details contains additional context-specific information.
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *ModelError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Kind, e.Message)
	if e.Object != "" {
		msg += fmt.Sprintf(" (object=%s", e.Object)
		if e.Path != "" {
			msg += fmt.Sprintf(", path=%s", e.Path)
		}
		msg += ")"
	} else if e.Path != "" {
		msg += fmt.Sprintf(" (path=%s)", e.Path)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error for error chain inspection.
func (e *ModelError) Unwrap() error {
	return e.Err
}

// Is implements error equality checking for errors.Is.
func (e *ModelError) Is(target error) bool {
	t, ok := target.(*ModelError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Code == t.Code
}

// NewConfigurationError creates a new configuration error.
func NewConfigurationError(message string, err error) *ModelError {
	return &ModelError{
		Kind:    KindConfiguration,
		Message: message,
		Err:     err,
	}
}

// NewValidationError creates a new validation error.
func NewValidationError(message string, err error) *ModelError {
	return &ModelError{
		Kind:    KindValidation,
		Message: message,
		Err:     err,
	}
}

// NewMissingContextError creates a new missing-context error.
func NewMissingContextError(message string, err error) *ModelError {
	return &ModelError{
		Kind:    KindMissingContext,
		Message: message,
		Err:     err,
	}
}

// NewUnsupportedCapabilityError creates a new unsupported-capability error.
func NewUnsupportedCapabilityError(message string, err error) *ModelError {
	return &ModelError{
		Kind:    KindUnsupportedCapability,
		Message: message,
		Err:     err,
	}
}

// WithObject adds the qual-name of the offending object to an error.
func (e *ModelError) WithObject(qualName string) *ModelError {
	e.Object = qualName
	return e
}

// WithPath adds the offending dotted path to an error.
func (e *ModelError) WithPath(path string) *ModelError {
	e.Path = path
	return e
}

// WithCode adds an error code to an error.
func (e *ModelError) WithCode(code string) *ModelError {
	e.Code = code
	return e
}

// WithDetail adds a detail field to the error context.
func (e *ModelError) WithDetail(key string, value interface{}) *ModelError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// IsConfiguration returns true if the error is a configuration error.
func IsConfiguration(err error) bool {
	var e *ModelError
	if errors.As(err, &e) {
		return e.Kind == KindConfiguration
	}
	return false
}

// IsValidation returns true if the error is a validation error.
func IsValidation(err error) bool {
	var e *ModelError
	if errors.As(err, &e) {
		return e.Kind == KindValidation
	}
	return false
}

// IsMissingContext returns true if the error is a missing-context error.
func IsMissingContext(err error) bool {
	var e *ModelError
	if errors.As(err, &e) {
		return e.Kind == KindMissingContext
	}
	return false
}

// IsUnsupportedCapability returns true if the error reports a capability no
// plugin provides.
func IsUnsupportedCapability(err error) bool {
	var e *ModelError
	if errors.As(err, &e) {
		return e.Kind == KindUnsupportedCapability
	}
	return false
}

// Common error codes.
const (
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeAlreadyExists = "ALREADY_EXISTS"
	ErrCodeBadReference  = "BAD_REFERENCE"
	ErrCodeContract      = "CONTRACT_VIOLATION"
	ErrCodeInternal      = "INTERNAL_ERROR"
)
