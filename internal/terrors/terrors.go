// Package terrors provides a tagged error type so callers can distinguish
// failure categories (via KindOf or Is) without resorting to string
// matching on error text.
package terrors

import (
	"errors"
	"fmt"
)

// Kind classifies an error for callers that branch on failure category.
type Kind int

const (
	KindInternal Kind = iota
	KindIO
	KindDatabase
	KindParse
	KindConfig
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindIO:
		return "io"
	case KindDatabase:
		return "database"
	case KindParse:
		return "parse"
	case KindConfig:
		return "configuration"
	case KindNotFound:
		return "not_found"
	default:
		return "internal"
	}
}

// Error wraps an underlying error with a Kind, following canopy's own
// fmt.Errorf("...: %w", err) wrapping idiom plus a classification tag.
type Error struct {
	Kind Kind
	Op   string // operation, e.g. "index file", "parse cargo toml"
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %s", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New wraps err with a Kind and an operation label.
func New(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Wrap is New with a formatted operation label.
func Wrap(kind Kind, err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: fmt.Sprintf(format, args...), Err: err}
}

// Is reports whether err (or any error it wraps) carries the given Kind.
func Is(err error, kind Kind) bool {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind == kind
	}
	return false
}

// KindOf extracts the Kind from err, defaulting to KindInternal if err
// isn't (or doesn't wrap) a *terrors.Error.
func KindOf(err error) Kind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return KindInternal
}
