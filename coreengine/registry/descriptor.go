package registry

import "reflect"

// MethodDescriptor is the registry's cached, dense-id view of one remotable
// operation. Dispatch and invoke look
// methods up by MethodID; Name is used for the reflect.Value.MethodByName
// lookup against a concrete target, since interface methods carry no bound
// Func to call directly.
type MethodDescriptor struct {
	MethodID int32
	TypeID   int32
	Name     string

	ParamTypes        []reflect.Type
	LocalParamIndices []int // indices whose declared type is itself remotable

	ReturnType     reflect.Type // nil when the method returns no value
	HasError       bool         // method's final return value is error
	IsRemoteReturn bool         // ReturnType is itself a remotable capability set

	Policy CallPolicy
}

// TypeDescriptor is the registry's view of one registered remotable
// capability set: a Go interface type with at least one method.
type TypeDescriptor struct {
	TypeID    int32
	Name      string
	Type      reflect.Type
	MethodIDs []int32 // in canonical registration order
}
