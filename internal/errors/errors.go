package errors

import (
	"fmt"
	"strings"
)

// Category classifies the failures the decision core and its collaborators
// can observe.
type Category string

const (
	// Fatal at startup, before any trading loop begins.
	CategoryConfig      Category = "CONFIG"
	CategoryCredentials Category = "CREDENTIALS"

	// Normal, non-fatal rejections inside the decision core.
	CategoryInsufficientData Category = "INSUFFICIENT_DATA"
	CategoryGateRejected     Category = "GATE_REJECTED"
	CategorySizingRejected   Category = "SIZING_REJECTED"

	// Transient failures at the exchange boundary, retried by the caller.
	CategoryExecutionTransient Category = "EXECUTION_TRANSIENT"
	CategoryRateLimit          Category = "RATE_LIMIT"

	// The core observed state the exchange disagrees with; reconciled,
	// never fatal.
	CategoryStateInconsistency Category = "STATE_INCONSISTENCY"
)

// CoreError is a categorized error with component and operation context.
type CoreError struct {
	Category   Category
	Component  string
	Operation  string
	Message    string
	Underlying error
	Retryable  bool
}

// Error implements the error interface.
func (e *CoreError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("[%s:%s] %s: %s: %v", e.Category, e.Component, e.Operation, e.Message, e.Underlying)
	}
	return fmt.Sprintf("[%s:%s] %s: %s", e.Category, e.Component, e.Operation, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As chains.
func (e *CoreError) Unwrap() error {
	return e.Underlying
}

// IsRetryable reports whether the caller may retry the operation.
func (e *CoreError) IsRetryable() bool {
	return e.Retryable
}

// IsFatal reports whether the error must stop startup. Only configuration
// and credential problems qualify; everything observed during normal
// operation is handled in place.
func (e *CoreError) IsFatal() bool {
	return e.Category == CategoryConfig || e.Category == CategoryCredentials
}

// WithRetryable overrides the category's default retryability.
func (e *CoreError) WithRetryable(retryable bool) *CoreError {
	e.Retryable = retryable
	return e
}

// New creates a categorized error.
func New(category Category, component, operation, message string) *CoreError {
	return &CoreError{
		Category:  category,
		Component: component,
		Operation: operation,
		Message:   message,
		Retryable: defaultRetryable(category),
	}
}

// Wrap attaches category and context to an existing error. Returns nil for
// a nil error.
func Wrap(err error, category Category, component, operation string) *CoreError {
	if err == nil {
		return nil
	}
	return &CoreError{
		Category:   category,
		Component:  component,
		Operation:  operation,
		Message:    "operation failed",
		Underlying: err,
		Retryable:  defaultRetryable(category),
	}
}

func defaultRetryable(category Category) bool {
	switch category {
	case CategoryExecutionTransient, CategoryRateLimit:
		return true
	default:
		return false
	}
}

// Categorize maps a generic error from the exchange boundary onto the
// taxonomy by message inspection.
func Categorize(err error, component, operation string) *CoreError {
	if err == nil {
		return nil
	}
	if coreErr, ok := err.(*CoreError); ok {
		return coreErr
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "api key") || strings.Contains(msg, "authentication") || strings.Contains(msg, "unauthorized"):
		return Wrap(err, CategoryCredentials, component, operation)
	case strings.Contains(msg, "rate limit") || strings.Contains(msg, "too many requests"):
		return Wrap(err, CategoryRateLimit, component, operation)
	case strings.Contains(msg, "position not found") || strings.Contains(msg, "already closed"):
		return Wrap(err, CategoryStateInconsistency, component, operation)
	default:
		return Wrap(err, CategoryExecutionTransient, component, operation)
	}
}

// Convenience constructors for the common cases.

func NewConfigError(component, operation, message string) *CoreError {
	return New(CategoryConfig, component, operation, message)
}

func NewInsufficientDataError(component, operation, message string) *CoreError {
	return New(CategoryInsufficientData, component, operation, message)
}

func NewGateRejectedError(component, symbol, reason string) *CoreError {
	return New(CategoryGateRejected, component, symbol, reason)
}

func NewSizingRejectedError(component, symbol, reason string) *CoreError {
	return New(CategorySizingRejected, component, symbol, reason)
}

func NewStateInconsistencyError(component, operation, message string) *CoreError {
	return New(CategoryStateInconsistency, component, operation, message)
}

func NewExecutionError(component, operation string, err error) *CoreError {
	return Wrap(err, CategoryExecutionTransient, component, operation)
}
