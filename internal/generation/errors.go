package generation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Sentinel errors for errors.Is checks.
var (
	ErrGeneration           = errors.New("content generation failed")
	ErrRetryBudgetExhausted = errors.New("could not generate clean content within attempt limit")
	ErrInvalidRequest       = errors.New("invalid generation request")
)

// GenerationError reports that the language model could not produce content.
// It is fatal to the current run.
type GenerationError struct {
	Attempt int
	Message string
	Cause   error
}

func (e *GenerationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("generation error (attempt %d): %s: %v", e.Attempt, e.Message, e.Cause)
	}
	return fmt.Sprintf("generation error (attempt %d): %s", e.Attempt, e.Message)
}

func (e *GenerationError) Unwrap() error {
	return e.Cause
}

// Is matches ErrGeneration.
func (e *GenerationError) Is(target error) bool {
	return target == ErrGeneration
}

// RetryBudgetExhaustedError reports that no attempt met the acceptance threshold.
type RetryBudgetExhaustedError struct {
	Attempts  int
	BestScore float64
	Threshold float64
}

func (e *RetryBudgetExhaustedError) Error() string {
	return fmt.Sprintf("%s: %d attempts, best score %.2f%% (threshold %.2f%%)",
		ErrRetryBudgetExhausted.Error(), e.Attempts, e.BestScore, e.Threshold)
}

// Is matches ErrRetryBudgetExhausted.
func (e *RetryBudgetExhaustedError) Is(target error) bool {
	return target == ErrRetryBudgetExhausted
}

// ValidationError reports an invalid request field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s %s", e.Field, e.Message)
}

// Is matches ErrInvalidRequest.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidRequest
}

// validationErrorFrom converts the first validator field error.
func validationErrorFrom(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &ValidationError{Field: "request", Message: err.Error()}
	}

	fe := fieldErrs[0]
	field := jsonFieldName(fe.Field())
	switch fe.Tag() {
	case "required":
		return &ValidationError{Field: field, Message: "is required"}
	case "oneof":
		return &ValidationError{Field: field, Message: "must be one of " + strings.ReplaceAll(fe.Param(), " ", ", ")}
	case "min":
		return &ValidationError{Field: field, Message: "must be at least " + fe.Param()}
	case "max":
		return &ValidationError{Field: field, Message: "must be at most " + fe.Param()}
	default:
		return &ValidationError{Field: field, Message: "failed " + fe.Tag() + " check"}
	}
}

func jsonFieldName(structField string) string {
	switch structField {
	case "Topic":
		return "topic"
	case "ContentType":
		return "content_type"
	case "TargetLength":
		return "target_length"
	default:
		return strings.ToLower(structField)
	}
}
