// Package apperr defines the error taxonomy shared by the store, session,
// projection and reconciliation layers.
package apperr

import (
	"errors"
	"fmt"
)

// Kind categorizes an Error.
type Kind string

const (
	// KindAuthRequired marks an operation attempted without an authenticated session.
	KindAuthRequired Kind = "auth_required"

	// KindInvalidCredentials marks a login with empty or rejected credentials.
	KindInvalidCredentials Kind = "invalid_credentials"

	// KindValidation marks unparsable input or a request without a resolvable target.
	KindValidation Kind = "validation_error"

	// KindStoreFailure marks a store operation the document database could not complete.
	KindStoreFailure Kind = "store_failure"

	// KindProjectionInconsistency marks documents lacking the internal identifier field.
	KindProjectionInconsistency Kind = "projection_inconsistency"
)

// Error is a recoverable failure carrying the message shown to the user.
type Error struct {
	// Kind identifies the error category.
	Kind Kind

	// Op names the operation that failed, e.g. "store.delete".
	Op string

	// Message is the user-visible text.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s: %v", e.Op, e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// New creates an Error without an underlying cause.
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Wrap creates an Error around cause.
func Wrap(kind Kind, op, message string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Err: cause}
}

// KindOf returns the Kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// UserMessage returns the single textual message for the UI.
// Errors outside the taxonomy are reported with their Error text.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// User-visible messages.
const (
	MsgLoginFirst         = "Login first!"
	MsgInvalidCredentials = "Invalid Credentials!"
	MsgCannotConvert      = "Cannot convert!"
	MsgSpecifyDelete      = "Specify something to delete!"
	MsgSelectRow          = "Select a row first!"
	MsgUnknownAction      = "Unknown action!"
	MsgInsertFailed       = "The insertion failed."
	MsgUpdateFailed       = "The document could not be updated!"
	MsgDeleteFailed       = "The document could not be deleted!"
	MsgReadFailed         = "The documents could not be read!"
	MsgCloseFailed        = "The connection could not be closed!"
	MsgDropFailed         = "The database could not be deleted!"
	MsgIDNotFound         = "_id was not found!"
	MsgEmptyTable         = "There is no product to continue the ids from!"
)
