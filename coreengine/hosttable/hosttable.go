// Package hosttable implements the host table: the bidirectional
// mapping between an object_id and the local object instance it names.
package hosttable

import (
	"sync"

	coreerrors "github.com/Minecraftian14/RobotsMakingIcecream/coreengine/errors"
)

// Table is a thread-safe object_id <-> object mapping. The zero value is
// not usable; construct with New.
//
// Hosted objects are used as map keys, so they must be comparable in the Go
// sense: pointers to the implementation struct, not arbitrary interface
// values wrapping slices or maps. This mirrors the usual identity contract
// for remotable objects — two host calls on the same pointer must be
// recognized as the same object.
type Table struct {
	mu       sync.RWMutex
	byID     map[int64]any
	byObject map[any]int64
	nextID   int64
}

// New creates an empty host table whose ids start at 0 and increase by one
// on each call to Host.
func New() *Table {
	return &Table{
		byID:     make(map[int64]any),
		byObject: make(map[any]int64),
	}
}

// Host assigns the next available object_id to obj and returns it. If obj
// is already hosted, the id it was first hosted under is returned instead:
// hosting the same object twice returns the same id.
func (t *Table) Host(obj any) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	if id, ok := t.byObject[obj]; ok {
		return id
	}
	id := t.nextID
	t.nextID++
	t.byID[id] = obj
	t.byObject[obj] = id
	return id
}

// HostWithID hosts obj under an explicit id, advancing the table's
// next-id cursor past it so future Host calls never collide with it. It
// fails if id already names a different object.
func (t *Table) HostWithID(id int64, obj any) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if existing, ok := t.byID[id]; ok {
		if existing == obj {
			return nil
		}
		return &coreerrors.DuplicateHostIDError{ObjectID: id}
	}
	t.byID[id] = obj
	t.byObject[obj] = id
	if id >= t.nextID {
		t.nextID = id + 1
	}
	return nil
}

// Lookup resolves an object_id back to the hosted object.
func (t *Table) Lookup(id int64) (any, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	obj, ok := t.byID[id]
	return obj, ok
}

// IDOf returns the object_id an already-hosted object was assigned, if any.
func (t *Table) IDOf(obj any) (int64, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	id, ok := t.byObject[obj]
	return id, ok
}

// Unhost removes an object from the table. Safe to call on an id that was
// never hosted.
func (t *Table) Unhost(id int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	obj, ok := t.byID[id]
	if !ok {
		return
	}
	delete(t.byID, id)
	delete(t.byObject, obj)
}

// Len reports how many objects are currently hosted.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.byID)
}
