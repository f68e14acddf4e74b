package state

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
)

// MemoryRepository keeps objects and states in maps. Values are stored in
// their JSON form so reads behave like the SQLite repository.
type MemoryRepository struct {
	mu      sync.RWMutex
	objects map[string]*Object
	states  map[string]memoryState
}

type memoryState struct {
	st  State
	val []byte
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		objects: make(map[string]*Object),
		states:  make(map[string]memoryState),
	}
}

// GetObject returns a copy of the object for id.
func (r *MemoryRepository) GetObject(_ context.Context, id string) (*Object, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	obj, ok := r.objects[id]
	if !ok {
		return nil, ErrObjectNotFound
	}
	return obj.Clone(), nil
}

// CreateObject stores obj unless id is taken.
func (r *MemoryRepository) CreateObject(_ context.Context, obj *Object) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.objects[obj.ID]; ok {
		return false, nil
	}
	r.objects[obj.ID] = obj.Clone()
	return true, nil
}

// PutObject stores obj, replacing any previous definition.
func (r *MemoryRepository) PutObject(_ context.Context, obj *Object) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.objects[obj.ID] = obj.Clone()
	return nil
}

// DeleteObject removes the object and state for id.
func (r *MemoryRepository) DeleteObject(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, hadObject := r.objects[id]
	_, hadState := r.states[id]
	delete(r.objects, id)
	delete(r.states, id)
	return hadObject || hadState, nil
}

// ListObjects returns copies of objects under prefix, sorted by id.
func (r *MemoryRepository) ListObjects(_ context.Context, prefix string) ([]*Object, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Object
	for id, obj := range r.objects {
		if strings.HasPrefix(id, prefix) {
			out = append(out, obj.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetState returns a copy of the state for id.
func (r *MemoryRepository) GetState(_ context.Context, id string) (*State, error) {
	r.mu.RLock()
	ms, ok := r.states[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrStateNotFound
	}

	st := ms.st
	st.Val = nil
	if err := json.Unmarshal(ms.val, &st.Val); err != nil {
		return nil, err
	}
	return &st, nil
}

// PutState stores st for id.
func (r *MemoryRepository) PutState(_ context.Context, id string, st *State, val []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states[id] = memoryState{st: *st, val: append([]byte(nil), val...)}
	return nil
}
