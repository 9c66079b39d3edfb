// Package registry implements the type and method registry:
// the table that turns a declared Go interface into a dense, deterministic
// set of method ids, and transitively pulls in every remotable interface
// reachable from a method's parameters or return type.
//
// A remotable type here is any Go interface with at least one method,
// other than error and context.Context, which are excluded because they
// are ambient rather than application capability sets.
package registry

import (
	"fmt"
	"reflect"
	"sort"
	"sync"

	coreerrors "github.com/Minecraftian14/RobotsMakingIcecream/coreengine/errors"
	"github.com/Minecraftian14/RobotsMakingIcecream/coreengine/rlog"
)

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// ambientTypeNames are interfaces excluded from auto-registration even
// though they are interface-kinded with methods: they are part of Go's
// ambient plumbing, not an application capability set.
var ambientTypeNames = map[string]bool{
	"context.Context": true,
}

// Registry holds every registered type and the dense method_id space
// assigned across all of them, in registration order.
type Registry struct {
	mu     sync.RWMutex
	logger rlog.Logger

	typesByType map[reflect.Type]*TypeDescriptor
	typesByName map[string]*TypeDescriptor
	typesByID   map[int32]*TypeDescriptor

	methodsByID          map[int32]*MethodDescriptor
	methodsByTypeAndName map[reflect.Type]map[string]*MethodDescriptor

	nextTypeID   int32
	nextMethodID int32
}

// New creates an empty registry. A nil logger falls back to rlog.Std().
func New(logger rlog.Logger) *Registry {
	return &Registry{
		logger:               rlog.OrStd(logger),
		typesByType:          make(map[reflect.Type]*TypeDescriptor),
		typesByName:          make(map[string]*TypeDescriptor),
		typesByID:            make(map[int32]*TypeDescriptor),
		methodsByID:          make(map[int32]*MethodDescriptor),
		methodsByTypeAndName: make(map[reflect.Type]map[string]*MethodDescriptor),
	}
}

// IsRegistered reports whether t has already been registered, directly or
// as a transitive dependency of another registration.
func (r *Registry) IsRegistered(t reflect.Type) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.typesByType[t]
	return ok
}

// RegisterRemotable registers t, an interface type, assigning it the next
// type id and each of its methods the next method ids in canonical order.
// Every parameter or return type that is itself a remotable candidate is
// registered transitively, skipping types already known to the registry.
//
// policies supplies the call policy for each method by name; a method with
// no entry gets DefaultCallPolicy.
func (r *Registry) RegisterRemotable(t reflect.Type, policies map[string]CallPolicy) (*TypeDescriptor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.registerLocked(t, policies)
}

func (r *Registry) registerLocked(t reflect.Type, policies map[string]CallPolicy) (*TypeDescriptor, error) {
	if t.Kind() != reflect.Interface {
		return nil, fmt.Errorf("registry: %s is not an interface type", t)
	}
	if t.NumMethod() == 0 {
		return nil, fmt.Errorf("registry: %s declares no operations", t)
	}
	if _, ok := r.typesByType[t]; ok {
		return nil, &coreerrors.DuplicateTypeError{TypeName: t.String()}
	}

	raw := make([]rawMethod, t.NumMethod())
	for i := 0; i < t.NumMethod(); i++ {
		raw[i] = rawMethod{name: t.Method(i).Name, sig: t.Method(i).Type}
	}
	ordered, err := sortMethodsCanonical(t.String(), raw)
	if err != nil {
		return nil, err
	}

	typeID := r.nextTypeID
	r.nextTypeID++
	td := &TypeDescriptor{TypeID: typeID, Name: t.String(), Type: t}

	// Register before processing methods so a type that is reachable from
	// its own method signatures (directly or through a cycle) terminates
	// recursion instead of looping forever.
	r.typesByType[t] = td
	r.typesByName[td.Name] = td
	r.typesByID[typeID] = td
	r.methodsByTypeAndName[t] = make(map[string]*MethodDescriptor)

	for _, rm := range ordered {
		md, err := r.buildMethodDescriptor(t, rm, policies)
		if err != nil {
			return nil, err
		}
		md.MethodID = r.nextMethodID
		md.TypeID = typeID
		r.nextMethodID++

		r.methodsByID[md.MethodID] = md
		r.methodsByTypeAndName[t][md.Name] = md
		td.MethodIDs = append(td.MethodIDs, md.MethodID)
	}

	r.logger.Info("registered remotable type", "type", td.Name, "typeID", typeID, "methods", len(td.MethodIDs))
	return td, nil
}

func (r *Registry) buildMethodDescriptor(owner reflect.Type, rm rawMethod, policies map[string]CallPolicy) (*MethodDescriptor, error) {
	numIn := rm.sig.NumIn()
	paramTypes := make([]reflect.Type, numIn)
	var localIdx []int
	for i := 0; i < numIn; i++ {
		pt := rm.sig.In(i)
		paramTypes[i] = pt
		if isRemotableCandidate(pt) {
			if _, err := r.ensureRegisteredLocked(pt); err != nil {
				return nil, err
			}
			localIdx = append(localIdx, i)
		}
	}

	var returnType reflect.Type
	hasError := false
	switch rm.sig.NumOut() {
	case 0:
	case 1:
		if rm.sig.Out(0) == errorType {
			hasError = true
		} else {
			returnType = rm.sig.Out(0)
		}
	case 2:
		if rm.sig.Out(1) != errorType {
			return nil, fmt.Errorf("registry: %s.%s: second return value must be error", owner, rm.name)
		}
		returnType = rm.sig.Out(0)
		hasError = true
	default:
		return nil, fmt.Errorf("registry: %s.%s: unsupported return arity %d", owner, rm.name, rm.sig.NumOut())
	}

	isRemoteReturn := false
	if returnType != nil && isRemotableCandidate(returnType) {
		if _, err := r.ensureRegisteredLocked(returnType); err != nil {
			return nil, err
		}
		isRemoteReturn = true
	}

	policy := DefaultCallPolicy()
	if p, ok := policies[rm.name]; ok {
		policy = p
	}

	return &MethodDescriptor{
		Name:              rm.name,
		ParamTypes:        paramTypes,
		LocalParamIndices: localIdx,
		ReturnType:        returnType,
		HasError:          hasError,
		IsRemoteReturn:    isRemoteReturn,
		Policy:            policy,
	}, nil
}

func (r *Registry) ensureRegisteredLocked(t reflect.Type) (*TypeDescriptor, error) {
	if td, ok := r.typesByType[t]; ok {
		return td, nil
	}
	return r.registerLocked(t, nil)
}

// isRemotableCandidate reports whether t is an interface capability set
// eligible for auto-registration: it has at least one method and is not
// one of the ambient interfaces (error, context-shaped).
func isRemotableCandidate(t reflect.Type) bool {
	if t.Kind() != reflect.Interface {
		return false
	}
	if t == errorType {
		return false
	}
	if ambientTypeNames[t.String()] {
		return false
	}
	return t.NumMethod() > 0
}

// TypeByName returns the descriptor for a previously registered type.
func (r *Registry) TypeByName(name string) (*TypeDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	td, ok := r.typesByName[name]
	return td, ok
}

// TypeOf returns the descriptor registered for the exact reflect.Type t.
func (r *Registry) TypeOf(t reflect.Type) (*TypeDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	td, ok := r.typesByType[t]
	return td, ok
}

// MethodByID resolves a wire method_id back to its descriptor.
func (r *Registry) MethodByID(id int32) (*MethodDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	md, ok := r.methodsByID[id]
	if !ok {
		return nil, &coreerrors.UnknownMethodError{MethodID: id}
	}
	return md, nil
}

// MethodByName resolves a method on a registered capability set by Go
// method name, the lookup an outbound Invoke performs before it has a
// method_id to work with.
func (r *Registry) MethodByName(t reflect.Type, name string) (*MethodDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	byName, ok := r.methodsByTypeAndName[t]
	if !ok {
		return nil, fmt.Errorf("registry: type %s is not registered", t)
	}
	md, ok := byName[name]
	if !ok {
		return nil, fmt.Errorf("registry: %s declares no method %q", t, name)
	}
	return md, nil
}

type rawMethod struct {
	name string
	sig  reflect.Type // func type, no receiver (interface method shape)
}

// compareMethods implements the canonical comparator: name, then
// arity, then parameter type names pairwise, left to right. It returns
// -1, 0, or 1 the way sort comparators conventionally do; 0 means the two
// methods are indistinguishable under the ordering and is a configuration
// error when it occurs between distinct methods.
func compareMethods(a, b rawMethod) int {
	if a.name != b.name {
		if a.name < b.name {
			return -1
		}
		return 1
	}
	if a.sig.NumIn() != b.sig.NumIn() {
		if a.sig.NumIn() < b.sig.NumIn() {
			return -1
		}
		return 1
	}
	for i := 0; i < a.sig.NumIn(); i++ {
		an, bn := a.sig.In(i).String(), b.sig.In(i).String()
		if an != bn {
			if an < bn {
				return -1
			}
			return 1
		}
	}
	return 0
}

// sortMethodsCanonical orders methods by compareMethods and aborts with
// DuplicateSignatureError if two adjacent methods compare equal, meaning
// the ordering could not distinguish them and registration order would not
// be reproducible.
func sortMethodsCanonical(typeName string, methods []rawMethod) ([]rawMethod, error) {
	sort.SliceStable(methods, func(i, j int) bool { return compareMethods(methods[i], methods[j]) < 0 })
	for i := 1; i < len(methods); i++ {
		if compareMethods(methods[i-1], methods[i]) == 0 {
			return nil, &coreerrors.DuplicateSignatureError{TypeName: typeName, Signature: methods[i].name}
		}
	}
	return methods, nil
}
