package store

import (
	"sync"

	"github.com/muurk/fieldlink/internal/fault"
)

// Store is a synchronous namespaced key/value store
type Store interface {
	// Get returns the value for key, reporting false when it is absent
	Get(ns Namespace, key string) (Value, bool, error)
	// Put writes a value; on failure the prior value is kept
	Put(ns Namespace, key string, v Value) error
	// Delete removes key; deleting an absent key is not an error
	Delete(ns Namespace, key string) error
	// Clear removes every key in the namespace
	Clear(ns Namespace) error
}

// Memory is an in-process Store. The zero value is not usable; call NewMemory.
type Memory struct {
	mu   sync.Mutex
	data map[Namespace]map[string]Value

	// FailPuts, when set, is returned (wrapped) by every Put and Clear.
	FailPuts error
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{data: make(map[Namespace]map[string]Value)}
}

// Get implements Store
func (m *Memory) Get(ns Namespace, key string) (Value, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.data[ns][key]
	return v, ok, nil
}

// Put implements Store
func (m *Memory) Put(ns Namespace, key string, v Value) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailPuts != nil {
		return fault.NewStorageError("put "+string(ns)+"/"+key, m.FailPuts)
	}

	if m.data[ns] == nil {
		m.data[ns] = make(map[string]Value)
	}
	m.data[ns][key] = v
	return nil
}

// Delete implements Store
func (m *Memory) Delete(ns Namespace, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailPuts != nil {
		return fault.NewStorageError("delete "+string(ns)+"/"+key, m.FailPuts)
	}

	delete(m.data[ns], key)
	return nil
}

// Clear implements Store
func (m *Memory) Clear(ns Namespace) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailPuts != nil {
		return fault.NewStorageError("clear "+string(ns), m.FailPuts)
	}

	delete(m.data, ns)
	return nil
}

// Len returns the number of keys in a namespace
func (m *Memory) Len(ns Namespace) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data[ns])
}
