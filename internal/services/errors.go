package services

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientText indicates the extracted input was empty or too
	// short to generate anything useful from. Recoverable by re-upload.
	ErrInsufficientText = errors.New("failed to extract usable text from the file")

	// ErrNoMaterialGenerated indicates the whole-document aggregation
	// produced no flashcards and no quiz items.
	ErrNoMaterialGenerated = errors.New("the model was unable to generate any study materials from this document")

	// ErrInvalidDateRange indicates the supplied target date yields a
	// non-positive study day count.
	ErrInvalidDateRange = errors.New("target date must be today or later")
)

// MalformedPlanError indicates the study plan response could not be parsed
// into a usable plan. A plan with no timeline is not a usable partial
// result, so this is always surfaced.
type MalformedPlanError struct {
	Cause error
}

func (e *MalformedPlanError) Error() string {
	return fmt.Sprintf("malformed study plan response: %v", e.Cause)
}

func (e *MalformedPlanError) Unwrap() error { return e.Cause }

// ExplanationError indicates the error-explanation call failed. There is no
// partial result to degrade to, so this is always surfaced.
type ExplanationError struct {
	Cause error
}

func (e *ExplanationError) Error() string {
	return fmt.Sprintf("failed to generate explanation: %v", e.Cause)
}

func (e *ExplanationError) Unwrap() error { return e.Cause }
