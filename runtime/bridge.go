package runtime

import (
	"github.com/Minecraftian14/RobotsMakingIcecream/coreengine/transport"
	"github.com/Minecraftian14/RobotsMakingIcecream/coreengine/wire"
)

// Handler adapts a Runtime to transport.FrameHandler: invocation frames go
// to the dispatcher, execution frames wake the rendezvous store. Pass one
// per connection to whichever transport.Transport the application dials or
// serves with.
type Handler struct {
	rt *Runtime
}

// NewHandler returns the transport.FrameHandler for rt.
func NewHandler(rt *Runtime) *Handler {
	return &Handler{rt: rt}
}

func (h *Handler) HandleInvocation(conn transport.Connection, event *wire.InvocationEvent) {
	h.rt.dispatcher.HandleInvocation(conn, event)
}

func (h *Handler) HandleExecution(conn transport.Connection, event *wire.ExecutionEvent) {
	h.rt.PostExecution(event)
}

var _ transport.FrameHandler = (*Handler)(nil)
