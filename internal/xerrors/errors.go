// Package xerrors defines the exchange's error taxonomy. Every failure
// crossing a component boundary is one of the Kinds below, wrapped with
// github.com/pkg/errors so a caller can both match its Kind with Is and
// recover a stack trace at the boundary for logging.
package xerrors

import (
	stderrors "errors"
	"fmt"

	"github.com/pkg/errors"
)

// Kind identifies a taxonomy entry.
type Kind string

const (
	InvalidData                 Kind = "InvalidData"
	InvalidPriceOperation        Kind = "InvalidPriceOperation"
	InvalidMarketState           Kind = "InvalidMarketState"
	InvalidMarketStateTransition Kind = "InvalidMarketStateTransition"
	NoSuchProduct                Kind = "NoSuchProduct"
	ProductAlreadyExists         Kind = "ProductAlreadyExists"
	OrderNotFound                Kind = "OrderNotFound"
	AlreadyConnected             Kind = "AlreadyConnected"
	UserNotConnected             Kind = "UserNotConnected"
	InvalidConnectionID          Kind = "InvalidConnectionId"
	AlreadySubscribed            Kind = "AlreadySubscribed"
	NotSubscribed                Kind = "NotSubscribed"
)

// Error is a taxonomy-tagged error. Cause carries the pkg/errors stack.
type Error struct {
	Kind  Kind
	cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.cause)
}

// Unwrap lets errors.Is/errors.As see through to the wrapped cause, and lets
// callers match a specific Kind with Is(err, kind).
func (e *Error) Unwrap() error {
	return e.cause
}

// New builds a taxonomy error with a stack trace captured at the call site.
func New(kind Kind, msg string) error {
	return &Error{Kind: kind, cause: errors.New(msg)}
}

// Newf is New with fmt.Sprintf-style formatting.
func Newf(kind Kind, format string, args ...interface{}) error {
	return &Error{Kind: kind, cause: errors.Errorf(format, args...)}
}

// Wrap tags an existing error with a Kind. pkg/errors.Wrap records a new
// stack at this call site; any stack err already carries stays further
// down the chain.
func Wrap(kind Kind, err error, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, cause: errors.Wrap(err, msg)}
}

// Is reports whether err is a taxonomy Error of the given Kind.
func Is(err error, kind Kind) bool {
	var te *Error
	if stderrors.As(err, &te) {
		return te.Kind == kind
	}
	return false
}

// KindOf extracts the Kind from err, returning ("", false) if err is not a
// taxonomy Error.
func KindOf(err error) (Kind, bool) {
	var te *Error
	if stderrors.As(err, &te) {
		return te.Kind, true
	}
	return "", false
}

// StackTrace exposes the pkg/errors stack for boundary logging, e.g.
// logger.Error("...", "stack", fmt.Sprintf("%+v", xerrors.StackTrace(err))).
func StackTrace(err error) error {
	var te *Error
	if stderrors.As(err, &te) {
		return te.cause
	}
	return err
}
