package auth

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"
)

// Session is a named browser cookie bundle for labs.google. The cookie string
// is sent verbatim and never parsed.
type Session struct {
	Name         string    `json:"name"`
	Cookie       string    `json:"cookie"`
	UserAgent    string    `json:"user_agent,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// Validate checks the fields a request needs.
func (s *Session) Validate() error {
	if s == nil || s.Name == "" {
		return errors.New("session name is required")
	}
	if strings.TrimSpace(s.Cookie) == "" {
		return errors.New("cookie is required")
	}
	if strings.ContainsAny(s.Cookie, "\r\n") {
		return errors.New("cookie must be a single line")
	}
	return nil
}

// Headers returns the header bundle attached to every API request.
func (s *Session) Headers() http.Header {
	h := http.Header{}
	h.Set("Accept", "application/json")
	h.Set("Cookie", strings.TrimSpace(s.Cookie))
	if s.UserAgent != "" {
		h.Set("User-Agent", s.UserAgent)
	}
	return h
}

// CredentialStore is the interface for storing and retrieving sessions
type CredentialStore interface {
	Store(session *Session) error
	Retrieve(name string) (*Session, error)
	List() ([]*Session, error)
	Delete(name string) error
	Exists(name string) bool
}

// Errors
var (
	ErrCredentialsNotFound = errors.New("credentials not found")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrStoreUnavailable    = errors.New("credential store unavailable")
)

// defaultFile holds the name chosen with `auth switch`.
const defaultFile = "default_session"

// Manager handles credential storage with fallback mechanisms
type Manager struct {
	stores    []CredentialStore
	configDir string
}

// NewManager creates a credential manager backed by the system keychain when
// available, then an encrypted file, then environment variables.
func NewManager() (*Manager, error) {
	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}

	var stores []CredentialStore
	if keyringStore, err := NewKeyringStore(); err == nil {
		stores = append(stores, keyringStore)
	}

	encryptedStore, err := NewEncryptedFileStore(filepath.Join(configDir, "credentials.enc"), "")
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypted store: %w", err)
	}
	stores = append(stores, encryptedStore, NewEnvironmentStore())

	return &Manager{stores: stores, configDir: configDir}, nil
}

// NewManagerWithStores builds a manager over explicit stores. configDir holds
// the default-session marker.
func NewManagerWithStores(configDir string, stores ...CredentialStore) *Manager {
	return &Manager{stores: stores, configDir: configDir}
}

// Store saves the session in the first store that accepts it
func (m *Manager) Store(session *Session) error {
	if err := session.Validate(); err != nil {
		return err
	}

	session.LastModified = time.Now()

	var lastErr error
	for _, store := range m.stores {
		err := store.Store(session)
		if err == nil {
			return nil
		}
		lastErr = err
	}

	if lastErr != nil {
		return fmt.Errorf("failed to store credentials: %w", lastErr)
	}
	return errors.New("no available credential stores")
}

// Retrieve gets a session from the first store that has it
func (m *Manager) Retrieve(name string) (*Session, error) {
	for _, store := range m.stores {
		if session, err := store.Retrieve(name); err == nil && session != nil {
			return session, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrCredentialsNotFound, name)
}

// RetrieveDefault returns the session picked with SetDefault, then any
// environment session, then the first stored one.
func (m *Manager) RetrieveDefault() (*Session, error) {
	if name := m.Default(); name != "" {
		if session, err := m.Retrieve(name); err == nil {
			return session, nil
		}
	}

	for _, store := range m.stores {
		if envStore, ok := store.(*EnvironmentStore); ok {
			if session, err := envStore.Retrieve(""); err == nil {
				return session, nil
			}
		}
	}

	sessions, err := m.List()
	if err == nil && len(sessions) > 0 {
		return sessions[0], nil
	}

	return nil, ErrCredentialsNotFound
}

// List returns every stored session, newest copy per name, sorted by name
func (m *Manager) List() ([]*Session, error) {
	byName := make(map[string]*Session)

	for _, store := range m.stores {
		sessions, err := store.List()
		if err != nil {
			continue
		}
		for _, s := range sessions {
			if existing, ok := byName[s.Name]; !ok || s.LastModified.After(existing.LastModified) {
				byName[s.Name] = s
			}
		}
	}

	result := make([]*Session, 0, len(byName))
	for _, s := range byName {
		result = append(result, s)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })

	return result, nil
}

// Delete removes a session from all stores
func (m *Manager) Delete(name string) error {
	var deleted bool
	var lastErr error

	for _, store := range m.stores {
		if err := store.Delete(name); err == nil {
			deleted = true
		} else {
			lastErr = err
		}
	}

	if !deleted && lastErr != nil && !errors.Is(lastErr, ErrCredentialsNotFound) && !errors.Is(lastErr, ErrStoreUnavailable) {
		return fmt.Errorf("failed to delete credentials: %w", lastErr)
	}
	if !deleted {
		return fmt.Errorf("%w: %s", ErrCredentialsNotFound, name)
	}

	if m.Default() == name {
		_ = m.clearDefault()
	}
	return nil
}

// DeleteAll removes all stored sessions
func (m *Manager) DeleteAll() error {
	sessions, err := m.List()
	if err != nil {
		return err
	}

	for _, s := range sessions {
		_ = m.Delete(s.Name)
	}
	return nil
}

// SetDefault records name as the session used when none is given.
func (m *Manager) SetDefault(name string) error {
	if _, err := m.Retrieve(name); err != nil {
		return err
	}
	if m.configDir == "" {
		return ErrStoreUnavailable
	}
	if err := os.MkdirAll(m.configDir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return os.WriteFile(filepath.Join(m.configDir, defaultFile), []byte(name), 0600)
}

// Default returns the name recorded by SetDefault, or "".
func (m *Manager) Default() string {
	if m.configDir == "" {
		return ""
	}
	data, err := os.ReadFile(filepath.Join(m.configDir, defaultFile))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func (m *Manager) clearDefault() error {
	err := os.Remove(filepath.Join(m.configDir, defaultFile))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// getConfigDir returns the per-user configuration directory
func getConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", "fxarchive")
	case "windows":
		configDir = filepath.Join(os.Getenv("APPDATA"), "fxarchive")
	default:
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			configDir = filepath.Join(xdgConfig, "fxarchive")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configDir = filepath.Join(home, ".config", "fxarchive")
		}
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return configDir, nil
}

// Sanitize returns a copy of the session with the cookie masked
func Sanitize(session *Session) *Session {
	if session == nil {
		return nil
	}

	return &Session{
		Name:         session.Name,
		Cookie:       maskString(session.Cookie),
		UserAgent:    session.UserAgent,
		LastModified: session.LastModified,
	}
}

// maskString masks all but the first 4 and last 4 characters of a string
func maskString(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}
