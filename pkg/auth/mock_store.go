package auth

import "sync"

// MockStore is an in-memory CredentialStore with error injection, for tests
type MockStore struct {
	creds map[string]Credential
	mu    sync.RWMutex

	StoreError    error
	RetrieveError error
	DeleteError   error
}

// NewMockStore creates an empty mock store
func NewMockStore() *MockStore {
	return &MockStore{creds: make(map[string]Credential)}
}

// Store saves a copy of cred
func (m *MockStore) Store(cred *Credential) error {
	if m.StoreError != nil {
		return m.StoreError
	}
	if cred == nil || cred.Name == "" {
		return ErrInvalidCredentials
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds[cred.Name] = *cred
	return nil
}

// Retrieve returns a copy of the named credential
func (m *MockStore) Retrieve(name string) (*Credential, error) {
	if m.RetrieveError != nil {
		return nil, m.RetrieveError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	cred, ok := m.creds[name]
	if !ok {
		return nil, ErrCredentialsNotFound
	}
	return &cred, nil
}

// List returns copies of all credentials
func (m *MockStore) List() ([]*Credential, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Credential, 0, len(m.creds))
	for _, cred := range m.creds {
		c := cred
		out = append(out, &c)
	}
	return out, nil
}

// Delete removes the named credential
func (m *MockStore) Delete(name string) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.creds[name]; !ok {
		return ErrCredentialsNotFound
	}
	delete(m.creds, name)
	return nil
}

// Exists checks if the named credential is stored
func (m *MockStore) Exists(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.creds[name]
	return ok
}

// Count returns the number of stored credentials
func (m *MockStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.creds)
}

// NewManagerWithStores creates a Manager over the given stores, in priority order
func NewManagerWithStores(stores ...CredentialStore) *Manager {
	return &Manager{stores: stores}
}
