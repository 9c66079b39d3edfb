// Package errors defines the typed error taxonomy shared by the RMI core.
//
// Configuration errors (duplicate registration, duplicate host id) are
// fatal to the call that produced them but never to the runtime itself.
// Protocol and timeout errors are surfaced to a blocked caller as a
// sentinel outcome rather than a panic.
package errors

import "fmt"

// DuplicateTypeError is returned when a type is registered twice.
type DuplicateTypeError struct {
	TypeName string
}

func (e *DuplicateTypeError) Error() string {
	return fmt.Sprintf("type %q is already registered", e.TypeName)
}

// DuplicateSignatureError is returned when a remotable type declares two
// methods with identical canonical signatures.
type DuplicateSignatureError struct {
	TypeName  string
	Signature string
}

func (e *DuplicateSignatureError) Error() string {
	return fmt.Sprintf("type %q declares duplicate signature %q", e.TypeName, e.Signature)
}

// DuplicateHostIDError is returned when host_with_id is called with an id
// that already identifies a different object.
type DuplicateHostIDError struct {
	ObjectID int64
}

func (e *DuplicateHostIDError) Error() string {
	return fmt.Sprintf("object id %d is already hosted", e.ObjectID)
}

// UnknownMethodError is returned when a method id has no registry entry.
type UnknownMethodError struct {
	MethodID int32
}

func (e *UnknownMethodError) Error() string {
	return fmt.Sprintf("unknown method id %d", e.MethodID)
}

// UnknownObjectError is returned when an invocation frame targets an
// object id that is not (or no longer) hosted.
type UnknownObjectError struct {
	ObjectID int64
}

func (e *UnknownObjectError) Error() string {
	return fmt.Sprintf("unknown object id %d", e.ObjectID)
}

// ClosedCallError marks a method whose policy is Closed; the call was
// silently elided and the caller got the zero value.
type ClosedCallError struct {
	MethodID int32
}

func (e *ClosedCallError) Error() string {
	return fmt.Sprintf("method %d is closed", e.MethodID)
}

// TimeoutError is returned from a blocking wait whose deadline expired.
// A proxy wrapper that discards the error hands back the zero value, which
// looks the same as a legitimately null result; callers that care must
// check for this type explicitly.
type TimeoutError struct {
	TransactionID int64
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("transaction %d timed out waiting for a result", e.TransactionID)
}

// ConnectionClosedError is posted to waiters of a connection that drops
// before their transaction completes.
type ConnectionClosedError struct {
	ConnectionID string
}

func (e *ConnectionClosedError) Error() string {
	return fmt.Sprintf("connection %q closed with transactions outstanding", e.ConnectionID)
}

// ApplicationError wraps a panic or error raised by a target operation so
// it can be surfaced to the caller's thread on wake.
type ApplicationError struct {
	MethodID int32
	Cause    error
}

func (e *ApplicationError) Error() string {
	return fmt.Sprintf("method %d failed: %v", e.MethodID, e.Cause)
}

func (e *ApplicationError) Unwrap() error {
	return e.Cause
}

// ShutdownError aggregates failures observed while draining the worker
// pool.
type ShutdownError struct {
	Errors []error
}

func (e *ShutdownError) Error() string {
	switch len(e.Errors) {
	case 0:
		return "shutdown completed with no errors"
	case 1:
		return fmt.Sprintf("shutdown error: %v", e.Errors[0])
	default:
		return fmt.Sprintf("shutdown completed with %d errors", len(e.Errors))
	}
}

func (e *ShutdownError) Unwrap() error {
	if len(e.Errors) > 0 {
		return e.Errors[0]
	}
	return nil
}
