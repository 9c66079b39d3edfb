// Package grpctransport carries invocation and execution frames over a
// single bidirectional gRPC stream. There is no generated service here:
// wire frames are small and already codec-agnostic, so the
// stream exchanges wrapperspb.BytesValue messages directly instead of
// compiling a .proto file. Each message is a one-byte frame tag, added
// here, followed by the bytes coreengine/serialize's Codec produces for
// the frame.
package grpctransport

import (
	"fmt"

	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/Minecraftian14/RobotsMakingIcecream/coreengine/serialize"
	"github.com/Minecraftian14/RobotsMakingIcecream/coreengine/wire"
)

const (
	frameTagInvocation byte = 1
	frameTagExecution  byte = 2
)

// encodeInvocation wraps an invocation frame as a tagged BytesValue.
func encodeInvocation(codec serialize.Codec, event *wire.InvocationEvent) (*wrapperspb.BytesValue, error) {
	payload, err := codec.EncodeInvocation(event)
	if err != nil {
		return nil, err
	}
	return &wrapperspb.BytesValue{Value: append([]byte{frameTagInvocation}, payload...)}, nil
}

// encodeExecution wraps an execution frame as a tagged BytesValue.
func encodeExecution(codec serialize.Codec, event *wire.ExecutionEvent) (*wrapperspb.BytesValue, error) {
	payload, err := codec.EncodeExecution(event)
	if err != nil {
		return nil, err
	}
	return &wrapperspb.BytesValue{Value: append([]byte{frameTagExecution}, payload...)}, nil
}

// decodeFrame unwraps a BytesValue into whichever frame its tag names.
// Exactly one of the two return values is non-nil.
func decodeFrame(codec serialize.Codec, msg *wrapperspb.BytesValue, invPool *wire.InvocationPool, execPool *wire.ExecutionPool) (*wire.InvocationEvent, *wire.ExecutionEvent, error) {
	data := msg.GetValue()
	if len(data) == 0 {
		return nil, nil, fmt.Errorf("grpctransport: empty frame")
	}
	tag, body := data[0], data[1:]
	switch tag {
	case frameTagInvocation:
		event, err := codec.DecodeInvocation(body, invPool)
		if err != nil {
			return nil, nil, err
		}
		return event, nil, nil
	case frameTagExecution:
		event, err := codec.DecodeExecution(body, execPool)
		if err != nil {
			return nil, nil, err
		}
		return nil, event, nil
	default:
		return nil, nil, fmt.Errorf("grpctransport: unknown frame tag %d", tag)
	}
}
