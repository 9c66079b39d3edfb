package registry

import "time"

// CallPolicy is the set of per-method attributes: transport
// selector, return-handling mode, and timeout. Unlike an annotation-driven
// source, policies are supplied at registration time keyed by method name
// (RegisterRemotable's policies argument), since Go has no method
// annotations.
type CallPolicy struct {
	// UseUnreliableTransport is stored with the method's policy, but no
	// transport.Connection offers an unordered/unreliable send and the
	// invoker does not read this field: every frame goes over the
	// connection's one reliable channel whatever its value. Default false.
	UseUnreliableTransport bool
	// NoReturn marks a fire-and-forget call: no execution frame is ever
	// sent or awaited. Default false.
	NoReturn bool
	// NonBlocking marks a deferred-result call: the invoker returns
	// immediately and the caller later retrieves the result with
	// GetResult. Default false.
	NonBlocking bool
	// Closed marks a call that is silently elided; Invoke returns the
	// declared return type's zero value without sending anything.
	// Default false.
	Closed bool
	// ResponseTimeout bounds how long a blocking or deferred caller waits
	// for a result. <= 0 means unbounded.
	ResponseTimeout time.Duration
	// DelegateIdentity routes Equals/identity-style calls to a supplied
	// delegate rather than across the wire, when true.
	DelegateIdentity bool
	// DelegateHash routes HashCode/hash-style calls to a supplied
	// delegate rather than across the wire, when true.
	DelegateHash bool
}

// DefaultCallPolicy returns the zero-value policy: reliable transport,
// blocking, unbounded timeout.
func DefaultCallPolicy() CallPolicy {
	return CallPolicy{}
}
