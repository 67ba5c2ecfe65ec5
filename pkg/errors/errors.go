package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"strings"
)

// Resolution and synchronization errors. Every failure the engine reports
// wraps exactly one of these so callers can classify with errors.Is.
var (
	ErrNotFound         = fmt.Errorf("not found")
	ErrAmbiguous        = fmt.Errorf("ambiguous identity")
	ErrIncompatible     = fmt.Errorf("incompatible")
	ErrRateLimited      = fmt.Errorf("rate limited")
	ErrUnavailable      = fmt.Errorf("provider unavailable")
	ErrChecksumMismatch = fmt.Errorf("checksum mismatch")
	ErrNameConflict     = fmt.Errorf("name conflict")
	ErrMetadataCorrupt  = fmt.Errorf("metadata corrupt")
)

// ErrServerError is a 5xx answer. It counts as unavailable and is retried.
var ErrServerError = fmt.Errorf("%w: server error", ErrUnavailable)

// Common error types.
var (
	// Config errors.
	ErrEmptyConfigPath   = fmt.Errorf("config file path cannot be empty")
	ErrInvalidConfigPath = fmt.Errorf("invalid config file path")
	ErrConfigParse       = fmt.Errorf("failed to parse config")
	ErrConfigValidation  = fmt.Errorf("invalid configuration")
	ErrConfigEncode      = fmt.Errorf("failed to encode config")
	ErrConfigDirectory   = fmt.Errorf("failed to create config directory")
	ErrConfigFileCreate  = fmt.Errorf("failed to create config file")

	// Argument errors.
	ErrValidation   = fmt.Errorf("validation failed")
	ErrInvalidInput = fmt.Errorf("invalid input")

	// Hook errors.
	ErrHookExecution = fmt.Errorf("error executing hook")
	ErrHookScript    = fmt.Errorf("hook script error")
)

// Wrap wraps an error with additional context.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf wraps an error with additional formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// AmbiguousError carries the candidate set that could not be told apart.
type AmbiguousError struct {
	Query      string
	Candidates []string
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("ambiguous identity for %q: candidates [%s]", e.Query, strings.Join(e.Candidates, ", "))
}

// Is reports ErrAmbiguous so callers can classify without a type assertion.
func (e *AmbiguousError) Is(target error) bool { return target == ErrAmbiguous }

// DuplicateError reports several local artifacts resolving to one remote identity.
type DuplicateError struct {
	Identity string
	Paths    []string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate install of %s: %s", e.Identity, strings.Join(e.Paths, ", "))
}

func (e *DuplicateError) Is(target error) bool { return target == ErrAmbiguous }

// ConflictError reports a rename or write whose destination is already taken.
type ConflictError struct {
	Path     string
	Existing string
}

func (e *ConflictError) Error() string {
	if e.Existing == "" {
		return fmt.Sprintf("name conflict: %s already exists", e.Path)
	}
	return fmt.Sprintf("name conflict: %s collides with %s", e.Path, e.Existing)
}

func (e *ConflictError) Is(target error) bool { return target == ErrNameConflict }

// IsTransient reports whether err is worth retrying: rate limits, 5xx answers
// and network timeouts. Other unavailable errors are not retried, a disabled
// provider stays disabled.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if stderrors.Is(err, ErrRateLimited) || stderrors.Is(err, ErrServerError) {
		return true
	}
	if stderrors.Is(err, context.Canceled) {
		return false
	}
	var netErr net.Error
	if stderrors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}

// IsProviderDown reports whether err means the provider could not answer,
// as opposed to answering with a negative result.
func IsProviderDown(err error) bool {
	return stderrors.Is(err, ErrUnavailable) || stderrors.Is(err, ErrRateLimited) || IsTransient(err)
}

// Is and As re-export the standard helpers so callers need a single import.
func Is(err, target error) bool { return stderrors.Is(err, target) }

func As(err error, target any) bool { return stderrors.As(err, target) }
