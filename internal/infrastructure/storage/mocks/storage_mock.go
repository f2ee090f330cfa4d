package mocks

import (
	"context"
	"sync"

	"github.com/example/cart-sync/internal/infrastructure/storage"
)

// MockStorage is a mock implementation of storage.Storage for testing
type MockStorage struct {
	mu     sync.RWMutex
	values map[string][]byte

	// For tracking calls in tests
	GetCalls    []string
	SetCalls    []SetCall
	RemoveCalls []string

	GetErr    error
	SetErr    error
	RemoveErr error
}

// SetCall records parameters passed to Set
type SetCall struct {
	Key   string
	Value []byte
}

// NewMockStorage creates a new MockStorage
func NewMockStorage() *MockStorage {
	return &MockStorage{values: make(map[string][]byte)}
}

func (m *MockStorage) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetCalls = append(m.GetCalls, key)
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	v, ok := m.values[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return v, nil
}

func (m *MockStorage) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SetCalls = append(m.SetCalls, SetCall{Key: key, Value: value})
	if m.SetErr != nil {
		return m.SetErr
	}
	m.values[key] = value
	return nil
}

func (m *MockStorage) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RemoveCalls = append(m.RemoveCalls, key)
	if m.RemoveErr != nil {
		return m.RemoveErr
	}
	delete(m.values, key)
	return nil
}

// Put sets a raw value directly for testing
func (m *MockStorage) Put(key string, value []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
}

// Value returns a raw stored value
func (m *MockStorage) Value(key string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok
}

// Reset clears all values, recorded calls and injected errors
func (m *MockStorage) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values = make(map[string][]byte)
	m.GetCalls = nil
	m.SetCalls = nil
	m.RemoveCalls = nil
	m.GetErr = nil
	m.SetErr = nil
	m.RemoveErr = nil
}
