package eventbus

// MessageCategory is the routing class every Message reports through
// Category().
type MessageCategory string

const (
	MessageCategoryEvent   MessageCategory = "event"
	MessageCategoryQuery   MessageCategory = "query"
	MessageCategoryCommand MessageCategory = "command"
)

// ConnectionEstablished is published once a transport.Connection has
// completed its handshake and is ready to carry frames, in either
// direction.
type ConnectionEstablished struct {
	ConnectionID string
	Address      string
	Dialed       bool // true if this side dialed out, false if it accepted
}

func (m *ConnectionEstablished) Category() string { return string(MessageCategoryEvent) }

// InvocationReceived is published when a connection's frame handler takes
// delivery of an inbound invocation event, before dispatch resolves it.
type InvocationReceived struct {
	ConnectionID   string
	TransactionID  int64
	TargetObjectID int64
	MethodID       int32
}

func (m *InvocationReceived) Category() string { return string(MessageCategoryEvent) }

// ExecutionPosted is published when a connection's frame handler takes
// delivery of an execution event, before the rendezvous store resolves its
// waiter.
type ExecutionPosted struct {
	ConnectionID  string
	TransactionID int64
	Failed        bool
}

func (m *ExecutionPosted) Category() string { return string(MessageCategoryEvent) }

// TransactionTimedOut is published when a pending rendezvous wait expires
// without a matching execution event ever arriving.
type TransactionTimedOut struct {
	ConnectionID  string
	TransactionID int64
	WaitedMS      int64
}

func (m *TransactionTimedOut) Category() string { return string(MessageCategoryEvent) }

// TypedMessage lets a message report its own routing key instead of
// falling back to a static type switch, the shape a message arriving
// already-named off a transport (rather than constructed in-process) needs.
type TypedMessage interface {
	Message
	MessageType() string
}

// MessageType returns the routing key used for subscriptions and handler
// registration.
func MessageType(msg Message) string {
	if typed, ok := msg.(TypedMessage); ok {
		return typed.MessageType()
	}

	switch msg.(type) {
	case *ConnectionEstablished:
		return "ConnectionEstablished"
	case *InvocationReceived:
		return "InvocationReceived"
	case *ExecutionPosted:
		return "ExecutionPosted"
	case *TransactionTimedOut:
		return "TransactionTimedOut"
	default:
		return "Unknown"
	}
}
