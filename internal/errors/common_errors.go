package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents the type of error
type ErrorType string

const (
	ErrTypeInvalidYear ErrorType = "INVALID_YEAR"
	ErrTypeNoData      ErrorType = "NO_DATA"
	ErrTypeSchema      ErrorType = "SCHEMA"
	ErrTypeSource      ErrorType = "SOURCE"
	ErrTypeStorage     ErrorType = "STORAGE"
	ErrTypeValidation  ErrorType = "VALIDATION"
	ErrTypeConfig      ErrorType = "CONFIG"
)

// AppError represents an application-specific error
type AppError struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap allows errors.Is and errors.As to work with AppError
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewAppError creates a new application error
func NewAppError(errType ErrorType, message string, cause error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// NewInvalidYearError reports a requested end year outside the supported range.
func NewInvalidYearError(endYear, minYear, maxYear int, cause error) *AppError {
	return NewAppError(ErrTypeInvalidYear,
		fmt.Sprintf("end year %d is outside the supported range %d-%d", endYear, minYear, maxYear), cause).
		WithContext("end_year", endYear).
		WithContext("min_year", minYear).
		WithContext("max_year", maxYear)
}

// NewNoDataError reports a year whose sources produced no usable rows.
func NewNoDataError(endYear int, cause error) *AppError {
	return NewAppError(ErrTypeNoData, fmt.Sprintf("no enrollment rows for end year %d", endYear), cause).
		WithContext("end_year", endYear)
}

// NewSchemaError creates a schema-recognition error
func NewSchemaError(message string, cause error) *AppError {
	return NewAppError(ErrTypeSchema, message, cause)
}

// NewSourceError creates an upstream-source error
func NewSourceError(message string, cause error) *AppError {
	return NewAppError(ErrTypeSource, message, cause)
}

// NewStorageError creates a storage-related error
func NewStorageError(message string, cause error) *AppError {
	return NewAppError(ErrTypeStorage, message, cause)
}

// NewAppValidationError creates a validation error for AppError type
func NewAppValidationError(message string) *AppError {
	return NewAppError(ErrTypeValidation, message, nil)
}

// NewConfigError creates a configuration error
func NewConfigError(message string, cause error) *AppError {
	return NewAppError(ErrTypeConfig, message, cause)
}

// TypeOf returns the type of the outermost AppError in err's chain, or ""
// when there is none.
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ""
}
