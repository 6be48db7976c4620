package assessment

import (
	"errors"
	"fmt"
	"strings"
)

// ConfigurationError means the course mapping or pool could not be resolved.
type ConfigurationError struct {
	CourseID     string
	AssessmentID string
	Reason       string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error for course %q assessment %q: %s", e.CourseID, e.AssessmentID, e.Reason)
}

type EmptyPoolError struct {
	CourseID     string
	AssessmentID string
}

func (e *EmptyPoolError) Error() string {
	return fmt.Sprintf("question pool for course %q assessment %q is empty", e.CourseID, e.AssessmentID)
}

type InvalidOperationError struct {
	Operation string
	Type      string
	Allowed   []string
}

func (e *InvalidOperationError) Error() string {
	return fmt.Sprintf("operation %q is not supported for %s assessments (allowed: %s)",
		e.Operation, e.Type, strings.Join(e.Allowed, ", "))
}

// AttemptsExceededError rejects a regeneration of a terminal assessment.
type AttemptsExceededError struct {
	Attempts    int
	MaxAttempts int
	Completed   bool
}

func (e *AttemptsExceededError) Error() string {
	if e.Completed {
		return "this assessment has already been completed"
	}
	return fmt.Sprintf("maximum attempts reached (%d of %d)", e.Attempts, e.MaxAttempts)
}

type NotFoundError struct {
	What string
}

func (e *NotFoundError) Error() string { return e.What + " not found" }

// IntegrityError signals the secure key is missing while the public state
// still accepts submissions.
type IntegrityError struct {
	Path   string
	Reason string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity violation at %s: %s", e.Path, e.Reason)
}

// InvalidSelectionError describes an unrecognised option id. Evaluate never
// returns it; it is reported as an incorrect answer.
type InvalidSelectionError struct {
	OptionID string
}

func (e *InvalidSelectionError) Error() string {
	return fmt.Sprintf("option %q is not one of the choices", e.OptionID)
}

const invalidSelectionMessage = "Invalid selection. Please choose one of the listed options."

// UserMessage returns the text a student may see for err. Configuration
// errors are shown as they are; internal failures collapse to a generic
// message.
func UserMessage(err error) string {
	var (
		cfg   *ConfigurationError
		empty *EmptyPoolError
		op    *InvalidOperationError
		ex    *AttemptsExceededError
		nf    *NotFoundError
		integ *IntegrityError
	)
	switch {
	case errors.As(err, &cfg):
		return cfg.Error()
	case errors.As(err, &empty):
		return "This assessment is not available right now. Please contact your teacher."
	case errors.As(err, &op):
		return op.Error()
	case errors.As(err, &ex):
		return ex.Error()
	case errors.As(err, &nf):
		return "No question has been generated for this assessment yet."
	case errors.As(err, &integ):
		return "This question is temporarily unavailable. Please generate a new question."
	default:
		return "Something went wrong. Please try again."
	}
}
