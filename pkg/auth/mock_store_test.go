package auth

import (
	"sync"
)

// mockStore implements CredentialStore in memory with error injection
type mockStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	StoreError  error
	DeleteError error
}

func newMockStore() *mockStore {
	return &mockStore{sessions: make(map[string]*Session)}
}

func (m *mockStore) Store(session *Session) error {
	if m.StoreError != nil {
		return m.StoreError
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if session == nil || session.Name == "" {
		return ErrInvalidCredentials
	}
	cp := *session
	m.sessions[session.Name] = &cp
	return nil
}

func (m *mockStore) Retrieve(name string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[name]
	if !ok {
		return nil, ErrCredentialsNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *mockStore) List() ([]*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Session
	for _, s := range m.sessions {
		cp := *s
		out = append(out, &cp)
	}
	return out, nil
}

func (m *mockStore) Delete(name string) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[name]; !ok {
		return ErrCredentialsNotFound
	}
	delete(m.sessions, name)
	return nil
}

func (m *mockStore) Exists(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.sessions[name]
	return ok
}

func (m *mockStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
