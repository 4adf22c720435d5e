package unit

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

var (
	ErrHandleExists  = errors.New("unit: handle already registered")
	ErrUnknownHandle = errors.New("unit: unknown handle")
	ErrInvalidUnit   = errors.New("unit: invalid unit")
)

// Lookup is the read-only query surface selectors resolve against.
type Lookup interface {
	Get(handle int32) (Unit, bool)
	All() []Unit
}

// Registry stores live units by instance handle.
type Registry struct {
	mu    sync.RWMutex
	items map[int32]Unit
}

func NewRegistry() *Registry {
	return &Registry{items: make(map[int32]Unit)}
}

// ValidateUnit checks handle and category bounds.
func ValidateUnit(u Unit) error {
	if u.Handle < 0 {
		return fmt.Errorf("%w: negative handle %d", ErrInvalidUnit, u.Handle)
	}
	if !u.Category.Valid() {
		return fmt.Errorf("%w: unknown category %d", ErrInvalidUnit, uint8(u.Category))
	}
	return nil
}

// Add registers u under its handle.
func (r *Registry) Add(u Unit) error {
	if err := ValidateUnit(u); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[u.Handle]; ok {
		return fmt.Errorf("%w: %d", ErrHandleExists, u.Handle)
	}
	r.items[u.Handle] = u
	return nil
}

// Remove drops the unit with handle and reports whether it existed.
func (r *Registry) Remove(handle int32) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.items[handle]
	delete(r.items, handle)
	return ok
}

// SetRunning updates the running flag and reports whether it changed.
func (r *Registry) SetRunning(handle int32, running bool) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.items[handle]
	if !ok {
		return false, fmt.Errorf("%w: %d", ErrUnknownHandle, handle)
	}
	if u.Running == running {
		return false, nil
	}
	u.Running = running
	r.items[handle] = u
	return true, nil
}

func (r *Registry) Get(handle int32) (Unit, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.items[handle]
	return u, ok
}

// All returns a snapshot ordered by handle.
func (r *Registry) All() []Unit {
	r.mu.RLock()
	list := make([]Unit, 0, len(r.items))
	for _, u := range r.items {
		list = append(list, u)
	}
	r.mu.RUnlock()
	slices.SortFunc(list, func(a, b Unit) int {
		return int(a.Handle) - int(b.Handle)
	})
	return list
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}
