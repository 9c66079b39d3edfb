// Package serialize turns wire frames into bytes and back, for any
// transport that cannot carry Go values directly (the in-memory transport
// does not need this; grpctransport does). The default codec is JSON,
// matching the loosely-typed decode the rest of the core already expects
// from coreengine/typeutil: every param and result comes back as float64,
// string, bool, []any, or map[string]any, never the original static type.
package serialize

import (
	"encoding/json"
	"fmt"

	"github.com/Minecraftian14/RobotsMakingIcecream/coreengine/wire"
)

// Codec encodes and decodes the two wire frame shapes.
type Codec interface {
	EncodeInvocation(event *wire.InvocationEvent) ([]byte, error)
	DecodeInvocation(data []byte, pool *wire.InvocationPool) (*wire.InvocationEvent, error)
	EncodeExecution(event *wire.ExecutionEvent) ([]byte, error)
	DecodeExecution(data []byte, pool *wire.ExecutionPool) (*wire.ExecutionEvent, error)
}

type jsonInvocation struct {
	TransactionID  int64  `json:"transaction_id"`
	TargetObjectID int64  `json:"target_object_id"`
	MethodID       int32  `json:"method_id"`
	Params         []any  `json:"params,omitempty"`
}

type jsonExecution struct {
	TransactionID  int64  `json:"transaction_id"`
	OriginObjectID int64  `json:"origin_object_id"`
	MethodID       int32  `json:"method_id"`
	Result         any    `json:"result,omitempty"`
	Err            string `json:"error,omitempty"`
}

// JSON is the default Codec.
type JSON struct{}

// NewJSON creates a JSON codec.
func NewJSON() *JSON { return &JSON{} }

func (JSON) EncodeInvocation(event *wire.InvocationEvent) ([]byte, error) {
	return json.Marshal(jsonInvocation{
		TransactionID:  event.TransactionID,
		TargetObjectID: event.TargetObjectID,
		MethodID:       event.MethodID,
		Params:         event.Params,
	})
}

func (JSON) DecodeInvocation(data []byte, pool *wire.InvocationPool) (*wire.InvocationEvent, error) {
	var raw jsonInvocation
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("serialize: decode invocation: %w", err)
	}
	event := pool.Get()
	event.TransactionID = raw.TransactionID
	event.TargetObjectID = raw.TargetObjectID
	event.MethodID = raw.MethodID
	event.Params = raw.Params
	return event, nil
}

func (JSON) EncodeExecution(event *wire.ExecutionEvent) ([]byte, error) {
	raw := jsonExecution{
		TransactionID:  event.TransactionID,
		OriginObjectID: event.OriginObjectID,
		MethodID:       event.MethodID,
		Result:         event.Result,
	}
	if event.Err != nil {
		raw.Err = event.Err.Error()
	}
	return json.Marshal(raw)
}

func (JSON) DecodeExecution(data []byte, pool *wire.ExecutionPool) (*wire.ExecutionEvent, error) {
	var raw jsonExecution
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("serialize: decode execution: %w", err)
	}
	event := pool.Get()
	event.TransactionID = raw.TransactionID
	event.OriginObjectID = raw.OriginObjectID
	event.MethodID = raw.MethodID
	event.Result = raw.Result
	if raw.Err != "" {
		event.Err = fmt.Errorf("%s", raw.Err)
	}
	return event, nil
}
