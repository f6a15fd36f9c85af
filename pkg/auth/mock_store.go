package auth

import (
	"sort"
	"sync"
)

// MockStore is an in-memory CredentialStore for tests. The *Error fields
// make the matching operation fail.
type MockStore struct {
	mu       sync.RWMutex
	accounts map[string]Account

	StoreError    error
	RetrieveError error
	ListError     error
	DeleteError   error
}

func NewMockStore() *MockStore {
	return &MockStore{accounts: make(map[string]Account)}
}

// NewMockManager returns a Manager whose only store is the returned MockStore
func NewMockManager() (*Manager, *MockStore) {
	store := NewMockStore()
	return NewManagerWithStores(store), store
}

func (m *MockStore) Store(account *Account) error {
	switch {
	case m.StoreError != nil:
		return m.StoreError
	case account == nil || account.Name == "":
		return ErrInvalidCredentials
	}

	m.mu.Lock()
	m.accounts[account.Name] = *account
	m.mu.Unlock()
	return nil
}

func (m *MockStore) Retrieve(name string) (*Account, error) {
	switch {
	case m.RetrieveError != nil:
		return nil, m.RetrieveError
	case name == "":
		return nil, ErrInvalidCredentials
	}

	m.mu.RLock()
	account, ok := m.accounts[name]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrCredentialsNotFound
	}
	return &account, nil
}

func (m *MockStore) List() ([]*Account, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}

	m.mu.RLock()
	out := make([]*Account, 0, len(m.accounts))
	for _, account := range m.accounts {
		a := account
		out = append(out, &a)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MockStore) Delete(name string) error {
	switch {
	case m.DeleteError != nil:
		return m.DeleteError
	case name == "":
		return ErrInvalidCredentials
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[name]; !ok {
		return ErrCredentialsNotFound
	}
	delete(m.accounts, name)
	return nil
}

func (m *MockStore) Exists(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.accounts[name]
	return ok
}

// Count is the number of stored accounts
func (m *MockStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.accounts)
}
