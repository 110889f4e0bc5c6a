package models

import (
	"errors"
	"fmt"
)

// Recommendation engine error taxonomy. Callers test with errors.Is; the
// engine wraps these with context.
var (
	// ErrNotFound is returned when a title, genre, or row cannot be resolved.
	ErrNotFound = errors.New("not found")

	// ErrEmptyCorpus is returned when an operation requires a non-empty catalog.
	ErrEmptyCorpus = errors.New("catalog is empty")

	// ErrInvalidInput is returned for malformed filters, records, or options.
	ErrInvalidInput = errors.New("invalid input")

	// ErrSnapshotMismatch is returned when a row handle from one snapshot is
	// used against structures derived from another. It matches ErrInvalidInput.
	ErrSnapshotMismatch = fmt.Errorf("%w: row belongs to a different snapshot", ErrInvalidInput)
)

// LookupError is a failed title or genre resolution. It matches ErrNotFound and
// carries close matches the caller may offer the user; the engine never
// substitutes one on its own.
type LookupError struct {
	Kind        string // "title" or "genre"
	Query       string
	Reason      string
	Suggestions []string
}

func (e *LookupError) Error() string {
	msg := fmt.Sprintf("%s %q not found", e.Kind, e.Query)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// Unwrap makes errors.Is(err, ErrNotFound) hold.
func (e *LookupError) Unwrap() error { return ErrNotFound }

// SuggestionsOf returns the suggestions carried by a LookupError in err's chain.
func SuggestionsOf(err error) []string {
	var le *LookupError
	if errors.As(err, &le) {
		return le.Suggestions
	}
	return nil
}
