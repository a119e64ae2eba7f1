package recordstore

import (
	"errors"
	"fmt"
)

// Sentinel errors for common storage operations.
var (
	// Connection errors
	ErrConnectionFailed = errors.New("connection failed")
	ErrConnectionClosed = errors.New("connection closed")

	// Driver errors
	ErrDriverNotFound = errors.New("driver not found")

	// Transaction errors
	ErrTransactionFailed = errors.New("transaction failed")

	// Record errors
	ErrConflict   = errors.New("record conflict")
	ErrNotFound   = errors.New("record not found")
	ErrStoreFault = errors.New("store fault")

	// Validation errors
	ErrValidation = errors.New("validation failed")

	// Configuration errors
	ErrInvalidConfig = errors.New("invalid configuration")
)

// ConflictError reports that a declared-unique field value is already held by
// another record.
type ConflictError struct {
	Entity string
	Field  string
	Value  any
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s with %s %v already exists", e.Entity, e.Field, e.Value)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// NotFoundError reports that no record matched an id or a unique field value.
type NotFoundError struct {
	Entity string
	Field  string
	Value  any
}

func (e *NotFoundError) Error() string {
	field := e.Field
	if field == "" {
		field = "id"
	}
	return fmt.Sprintf("%s with %s %v not found", e.Entity, field, e.Value)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// StoreFault wraps a failure of the underlying persistence store.
type StoreFault struct {
	Entity    string
	Operation string
	Err       error
}

func (e *StoreFault) Error() string {
	return fmt.Sprintf("store fault in %s.%s: %v", e.Entity, e.Operation, e.Err)
}

func (e *StoreFault) Unwrap() error {
	return e.Err
}

func (e *StoreFault) Is(target error) bool {
	return target == ErrStoreFault
}

// ValidationError represents validation errors.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error for field %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// ConfigError represents configuration errors.
type ConfigError struct {
	Field   string
	Value   any
	Message string
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config error for field %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("config error: %s", e.Message)
}

func (e *ConfigError) Is(target error) bool {
	return target == ErrInvalidConfig
}

// ConnectionError represents connection-related errors.
type ConnectionError struct {
	Operation string
	Driver    string
	Host      string
	Err       error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection error during %s with %s driver at %s: %v",
		e.Operation, e.Driver, e.Host, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// DriverError represents driver-related errors.
type DriverError struct {
	Driver    string
	Operation string
	Err       error
}

func (e *DriverError) Error() string {
	return fmt.Sprintf("driver error with %s during %s: %v",
		e.Driver, e.Operation, e.Err)
}

func (e *DriverError) Unwrap() error {
	return e.Err
}

// TransactionError represents transaction-related errors.
type TransactionError struct {
	Operation string
	Err       error
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("transaction error during %s: %v", e.Operation, e.Err)
}

func (e *TransactionError) Unwrap() error {
	return e.Err
}

// Constructor functions for custom errors

// NewConflictError creates a new conflict error.
func NewConflictError(entity, field string, value any) *ConflictError {
	return &ConflictError{Entity: entity, Field: field, Value: value}
}

// NewNotFoundError creates a not found error for a record id.
func NewNotFoundError(entity, id string) *NotFoundError {
	return &NotFoundError{Entity: entity, Field: "id", Value: id}
}

// NewNotFoundErrorForField creates a not found error for a unique field lookup.
func NewNotFoundErrorForField(entity, field string, value any) *NotFoundError {
	return &NotFoundError{Entity: entity, Field: field, Value: value}
}

// NewValidationError creates a new validation error.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		Message: message,
	}
}

// NewValidationErrorForField creates a new validation error for a specific field.
func NewValidationErrorForField(field string, value any, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// NewConfigError creates a new config error.
func NewConfigError(message string) *ConfigError {
	return &ConfigError{
		Message: message,
	}
}

// NewConfigErrorForField creates a new config error for a specific field.
func NewConfigErrorForField(field string, value any, message string) *ConfigError {
	return &ConfigError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// Wrapper functions for adding context to errors

// WrapFault wraps err as a StoreFault. Errors that already carry a domain
// classification (conflict, not found, validation, fault) pass through unchanged.
func WrapFault(err error, entity, operation string) error {
	if err == nil {
		return nil
	}
	if IsConflictError(err) || IsNotFoundError(err) || IsValidationError(err) || IsStoreFault(err) {
		return err
	}
	return &StoreFault{Entity: entity, Operation: operation, Err: err}
}

// WrapConnectionError wraps an error as a connection error.
func WrapConnectionError(err error, operation, driver, host string) error {
	if err == nil {
		return nil
	}
	return &ConnectionError{Operation: operation, Driver: driver, Host: host, Err: err}
}

// WrapDriverError wraps an error as a driver error.
func WrapDriverError(err error, driver, operation string) error {
	if err == nil {
		return nil
	}
	return &DriverError{Driver: driver, Operation: operation, Err: err}
}

// WrapTransactionError wraps an error as a transaction error. Domain errors
// returned from inside the transaction are kept as they are.
func WrapTransactionError(err error, operation string) error {
	if err == nil {
		return nil
	}
	if IsConflictError(err) || IsNotFoundError(err) || IsValidationError(err) {
		return err
	}
	return &TransactionError{Operation: operation, Err: err}
}

// Error checking functions

// IsConflictError checks if an error is a conflict error.
func IsConflictError(err error) bool {
	var conflictErr *ConflictError
	return errors.As(err, &conflictErr)
}

// IsNotFoundError checks if an error is a not found error.
func IsNotFoundError(err error) bool {
	var notFoundErr *NotFoundError
	return errors.As(err, &notFoundErr)
}

// IsStoreFault checks if an error is a store fault.
func IsStoreFault(err error) bool {
	var fault *StoreFault
	return errors.As(err, &fault)
}

// IsValidationError checks if an error is a validation error.
func IsValidationError(err error) bool {
	var validationErr *ValidationError
	return errors.As(err, &validationErr)
}

// IsConfigError checks if an error is a config error.
func IsConfigError(err error) bool {
	var configErr *ConfigError
	return errors.As(err, &configErr)
}

// IsConnectionError checks if an error is a connection error.
func IsConnectionError(err error) bool {
	var connErr *ConnectionError
	return errors.As(err, &connErr)
}

// IsTransactionError checks if an error is a transaction error.
func IsTransactionError(err error) bool {
	var txErr *TransactionError
	return errors.As(err, &txErr)
}
