package auth

import (
	"os"
	"time"
)

// EnvironmentStore reads a single read-only session from FXARCHIVE_COOKIE
// and FXARCHIVE_USER_AGENT.
type EnvironmentStore struct{}

// EnvSessionName names the session built from the environment.
const EnvSessionName = "env"

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(session *Session) error {
	return ErrStoreUnavailable
}

// Retrieve returns the environment session. Any name matches, since the
// environment holds at most one.
func (e *EnvironmentStore) Retrieve(name string) (*Session, error) {
	cookie := os.Getenv("FXARCHIVE_COOKIE")
	if cookie == "" {
		return nil, ErrCredentialsNotFound
	}

	if name == "" {
		name = EnvSessionName
	}

	return &Session{
		Name:         name,
		Cookie:       cookie,
		UserAgent:    os.Getenv("FXARCHIVE_USER_AGENT"),
		LastModified: time.Now(),
	}, nil
}

// List returns the environment session if one is set
func (e *EnvironmentStore) List() ([]*Session, error) {
	session, err := e.Retrieve("")
	if err != nil {
		return []*Session{}, nil
	}
	return []*Session{session}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(name string) error {
	return ErrStoreUnavailable
}

// Exists checks if environment credentials exist
func (e *EnvironmentStore) Exists(name string) bool {
	return os.Getenv("FXARCHIVE_COOKIE") != ""
}
