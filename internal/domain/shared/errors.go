// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrNegativeValue   = errors.New("value cannot be negative")
	ErrValueOutOfRange = errors.New("value out of range")
	ErrInvalidFormat   = errors.New("invalid format")

	// State errors
	ErrConflict         = errors.New("conflict")
	ErrInvalidState     = errors.New("invalid state")
	ErrStateTransition  = errors.New("invalid state transition")
	ErrAlreadyProcessed = errors.New("already processed")

	// Authorization errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// Concurrency errors
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// External service errors
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "user", "lesson", "league"
	Op      string // Operation that failed, e.g., "Submit", "AddPoints"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Detail returns a copy of a sentinel domain error with a more specific message.
// errors.Is still matches the sentinel.
func Detail(sentinel *DomainError, format string, args ...any) *DomainError {
	return &DomainError{
		Domain:  sentinel.Domain,
		Op:      sentinel.Op,
		Kind:    sentinel.Kind,
		Message: fmt.Sprintf(format, args...),
		Err:     sentinel,
	}
}

// User domain errors
var (
	ErrUserNotFound       = NewDomainError("user", "Find", ErrNotFound, "user not found")
	ErrUserAlreadyExists  = NewDomainError("user", "Create", ErrAlreadyExists, "username or email already taken")
	ErrInvalidUsername    = NewDomainError("user", "Validate", ErrInvalidInput, "username must be 3-30 letters, digits or underscores")
	ErrInvalidEmail       = NewDomainError("user", "Validate", ErrInvalidFormat, "invalid email")
	ErrWeakPassword       = NewDomainError("user", "Validate", ErrInvalidInput, "password must be at least 8 characters")
	ErrInvalidCredentials = NewDomainError("user", "Login", ErrUnauthorized, "invalid credentials")
	ErrSelfFollow         = NewDomainError("user", "Follow", ErrInvalidInput, "cannot follow yourself")
	ErrAlreadyFollowing   = NewDomainError("user", "Follow", ErrAlreadyExists, "already following this user")
	ErrNotFollowing       = NewDomainError("user", "Unfollow", ErrNotFound, "not following this user")
	ErrNegativeReward     = NewDomainError("user", "ApplyReward", ErrNegativeValue, "reward cannot be negative")
)

// Lesson domain errors
var (
	ErrLessonNotFound       = NewDomainError("lesson", "Find", ErrNotFound, "lesson not found")
	ErrLessonAlreadyExists  = NewDomainError("lesson", "Create", ErrAlreadyExists, "lesson already exists")
	ErrInvalidExerciseIndex = NewDomainError("lesson", "Score", ErrValueOutOfRange, "exercise index out of range")
	ErrDuplicateAnswer      = NewDomainError("lesson", "Score", ErrInvalidInput, "exercise answered more than once")
	ErrLessonHasNoExercises = NewDomainError("lesson", "Validate", ErrInvalidInput, "lesson has no exercises")
	ErrInvalidExercise      = NewDomainError("lesson", "Validate", ErrInvalidInput, "invalid exercise")
	ErrInvalidLesson        = NewDomainError("lesson", "Validate", ErrInvalidInput, "invalid lesson")
	ErrPrerequisitesNotMet  = NewDomainError("lesson", "Start", ErrInvalidState, "prerequisite lessons not completed")
)

// Progress domain errors
var (
	ErrProgressNotFound  = NewDomainError("progress", "Find", ErrNotFound, "progress not found")
	ErrAlreadyCompleted  = NewDomainError("progress", "Submit", ErrAlreadyProcessed, "lesson already completed")
	ErrInvalidTimeSpent  = NewDomainError("progress", "Submit", ErrNegativeValue, "time spent cannot be negative")
	ErrInvalidScore      = NewDomainError("progress", "Validate", ErrValueOutOfRange, "score must be between 0 and 100")
	ErrProgressNoAnswers = NewDomainError("progress", "Submit", ErrEmptyValue, "no answers submitted")
)

// League domain errors
var (
	ErrInvalidPoints     = NewDomainError("league", "AddPoints", ErrNegativeValue, "points must be non-negative")
	ErrTierNotFound      = NewDomainError("league", "FindTier", ErrNotFound, "league tier not found")
	ErrEmptyLadder       = NewDomainError("league", "Validate", ErrInvalidInput, "league ladder has no tiers")
	ErrOverlappingTiers  = NewDomainError("league", "Validate", ErrConflict, "league tier ranges overlap or leave gaps")
	ErrInvalidLeaderSize = NewDomainError("league", "Leaderboard", ErrValueOutOfRange, "leaderboard limit out of range")
)

// Quest domain errors
var (
	ErrQuestNotFound       = NewDomainError("quest", "Find", ErrNotFound, "quest not found")
	ErrQuestNotCompleted   = NewDomainError("quest", "Claim", ErrValidation, "quest is not completed yet")
	ErrQuestAlreadyClaimed = NewDomainError("quest", "Claim", ErrAlreadyExists, "quest reward already claimed")
	ErrUnknownQuestMetric  = NewDomainError("quest", "Validate", ErrInvalidInput, "unknown quest metric")
	ErrInvalidQuest        = NewDomainError("quest", "Validate", ErrInvalidInput, "invalid quest definition")
)

// Auth errors
var (
	ErrMissingToken  = NewDomainError("auth", "Authenticate", ErrUnauthorized, "missing bearer token")
	ErrInvalidToken  = NewDomainError("auth", "Authenticate", ErrUnauthorized, "invalid or expired token")
	ErrAdminRequired = NewDomainError("auth", "Authorize", ErrForbidden, "admin role required")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if the error is an "already exists" error.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrNegativeValue) ||
		errors.Is(err, ErrValueOutOfRange) ||
		errors.Is(err, ErrInvalidFormat)
}

// IsConflict checks if the error conflicts with current state.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrAlreadyExists) ||
		errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrStateTransition) ||
		errors.Is(err, ErrAlreadyProcessed)
}

// IsForbidden checks if the caller lacks permission.
func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden)
}

// IsUnauthenticated checks if the caller identity is missing or invalid.
func IsUnauthenticated(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsRetryable checks if the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrConcurrentModification)
}
