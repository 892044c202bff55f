package apperr

import (
	"errors"
	"fmt"
)

// Kind is the closed set of failure categories the pipeline distinguishes.
// Callers branch on Kind, never on error message text.
type Kind string

const (
	// KindValidation marks malformed input (bad webhook body, bad request).
	KindValidation Kind = "validation"
	// KindAuth marks a rejected shared secret or bearer token.
	KindAuth Kind = "auth"
	// KindCredential marks decryption failures or a missing encryption key.
	// Fatal to an account sync; the account is moved to status error.
	KindCredential Kind = "credential"
	// KindProvider marks an external mailbox API failure. The sync aborts
	// without advancing the cursor and is safe to retry.
	KindProvider Kind = "provider"
	// KindDelivery marks a push send failure to a single endpoint.
	KindDelivery Kind = "delivery"
)

// Error tags an underlying error with a Kind.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a tagged error from a message.
func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Err: errors.New(msg)}
}

// Wrap tags an existing error. Returns nil when err is nil.
func Wrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: err}
}

// Wrapf tags a formatted error.
func Wrapf(kind Kind, format string, args ...interface{}) error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the Kind of err, or "" when err carries no tag.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err is tagged with kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
