package domain

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ValidationError reports a missing or malformed request field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NotFoundError is returned when a referenced requirement, supplier or sample
// does not exist.
type NotFoundError struct {
	Entity EntityType
	ID     int64
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

// UnsupportedOperationError is returned when no route matches a verb and path.
type UnsupportedOperationError struct {
	Method string
	Path   string
}

func (e UnsupportedOperationError) Error() string {
	return fmt.Sprintf("endpoint not implemented for %s %s", strings.ToUpper(e.Method), e.Path)
}

// StorageError wraps a failure reading or writing the durable snapshot slot.
// It is logged by the persistence adapter and never surfaced to callers.
type StorageError struct {
	Op  string
	Err error
}

func (e StorageError) Error() string {
	return fmt.Sprintf("snapshot %s: %v", e.Op, e.Err)
}

func (e StorageError) Unwrap() error { return e.Err }

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	for _, v := range e.Result.Violations {
		if v.Severity == SeverityBlock {
			return "transaction blocked by rules: " + v.Message
		}
	}
	return "transaction blocked by rules"
}

// StatusCode maps an error returned by the engine onto the status code a
// REST caller would observe.
func StatusCode(err error) int {
	var (
		validation  ValidationError
		notFound    NotFoundError
		unsupported UnsupportedOperationError
		blocked     RuleViolationError
	)
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &unsupported):
		return http.StatusNotImplemented
	case errors.As(err, &blocked):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
