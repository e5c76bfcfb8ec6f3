package navigation

import (
	"errors"

	"backend-taputapu/internal/location"
	"backend-taputapu/internal/routing"
)

type ErrorKind string

const (
	PermissionDenied       ErrorKind = "PermissionDenied"
	LocationTimeout        ErrorKind = "LocationTimeout"
	LocationUnavailable    ErrorKind = "LocationUnavailable"
	RouteUnavailable       ErrorKind = "RouteUnavailable"
	StaleResponseDiscarded ErrorKind = "StaleResponseDiscarded"
	IndexOutOfRange        ErrorKind = "IndexOutOfRange"
	NoRoute                ErrorKind = "NoRoute"
	InvalidInput           ErrorKind = "InvalidInput"
)

// Error tags a failure with its kind. errors.Is matches any *Error of the
// same kind, so the Err* values below work as sentinels.
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return e.Msg + ": " + e.Err.Error()
	case e.Msg != "":
		return e.Msg
	case e.Err != nil:
		return string(e.Kind) + ": " + e.Err.Error()
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrIndexOutOfRange  = &Error{Kind: IndexOutOfRange, Msg: "index out of range"}
	ErrNoRoute          = &Error{Kind: NoRoute, Msg: "no route to navigate"}
	ErrInvalidInput     = &Error{Kind: InvalidInput, Msg: "invalid input"}
	ErrRouteUnavailable = &Error{Kind: RouteUnavailable, Msg: "route unavailable"}
	ErrStaleResponse    = &Error{Kind: StaleResponseDiscarded, Msg: "stale route response discarded"}
	ErrSessionClosed    = errors.New("navigation session closed")
)

func newError(kind ErrorKind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf classifies err, including the location and routing sentinels.
func KindOf(err error) ErrorKind {
	var e *Error
	switch {
	case err == nil:
		return ""
	case errors.As(err, &e):
		return e.Kind
	case errors.Is(err, location.ErrPermissionDenied):
		return PermissionDenied
	case errors.Is(err, location.ErrTimeout):
		return LocationTimeout
	case errors.Is(err, location.ErrUnavailable):
		return LocationUnavailable
	case errors.Is(err, routing.ErrRouteUnavailable):
		return RouteUnavailable
	}
	return ""
}
